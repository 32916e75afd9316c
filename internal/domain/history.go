package domain

import "time"

// ActionKind is the tag of a history event.
type ActionKind string

const (
	ActionCreated     ActionKind = "created"
	ActionStateChange ActionKind = "state_change"
	ActionComment     ActionKind = "comment"
	ActionAssignment  ActionKind = "assignment"
)

// Action is the variant part of a HistoryEvent. The set of implementations is
// closed: StateChange, Assignment, CommentAdded, Created and UnknownAction.
type Action interface {
	Kind() ActionKind
	isAction()
}

// StateChange moves a ticket from one state to another.
type StateChange struct {
	From TicketState
	To   TicketState
}

func (StateChange) Kind() ActionKind { return ActionStateChange }
func (StateChange) isAction()        {}

// Assignment hands the ticket to an agent.
type Assignment struct {
	AssignedTo string
}

func (Assignment) Kind() ActionKind { return ActionAssignment }
func (Assignment) isAction()        {}

// CommentAdded records a note; the text lives on HistoryEvent.Comment.
type CommentAdded struct{}

func (CommentAdded) Kind() ActionKind { return ActionComment }
func (CommentAdded) isAction()        {}

// Created is the first event written when a ticket is opened.
type Created struct{}

func (Created) Kind() ActionKind { return ActionCreated }
func (Created) isAction()        {}

// UnknownAction keeps kinds this build does not model.
type UnknownAction struct {
	Name string
}

func (u UnknownAction) Kind() ActionKind { return ActionKind(u.Name) }
func (UnknownAction) isAction()          {}

// EventDetails carries optional metadata recorded on the first event.
type EventDetails struct {
	InitialState          TicketState
	InitialClassification string
}

// HistoryEvent is one immutable record of something that happened to a ticket.
type HistoryEvent struct {
	Timestamp time.Time
	UserID    string
	Comment   string
	Details   *EventDetails
	Action    Action
}

// Kind returns the action tag, or "" when Action is unset.
func (e HistoryEvent) Kind() ActionKind {
	if e.Action == nil {
		return ""
	}
	return e.Action.Kind()
}

// StateChange returns the transition carried by the event, if it is one.
func (e HistoryEvent) StateChange() (StateChange, bool) {
	sc, ok := e.Action.(StateChange)
	return sc, ok
}

// IsReopen reports a closed -> non-closed transition.
func (e HistoryEvent) IsReopen() bool {
	sc, ok := e.StateChange()
	return ok && sc.From.IsClosed() && sc.To != "" && !sc.To.IsClosed()
}

// IsClosure reports a transition into the closed state.
func (e HistoryEvent) IsClosure() bool {
	sc, ok := e.StateChange()
	return ok && sc.To.IsClosed()
}

// TicketEvent is a history event tagged with its owning ticket, as returned by
// cross-ticket event streams.
type TicketEvent struct {
	TicketID    string
	TicketTitle string
	Index       int
	Event       HistoryEvent
}
