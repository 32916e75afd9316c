package domain

import (
	"encoding/json"
	"time"
)

// The JSON shapes below follow the ticket documents exported from the
// original document store, so fixtures and dumps load without conversion.

type eventDetailsDoc struct {
	InitialState          TicketState `json:"initialState,omitempty"`
	InitialClassification string      `json:"initialClassification,omitempty"`
}

type historyEventDoc struct {
	Action     ActionKind       `json:"action"`
	Timestamp  time.Time        `json:"timestamp"`
	UserID     string           `json:"userId,omitempty"`
	From       TicketState      `json:"from,omitempty"`
	To         TicketState      `json:"to,omitempty"`
	AssignedTo string           `json:"assignedTo,omitempty"`
	Comment    string           `json:"comment,omitempty"`
	Details    *eventDetailsDoc `json:"details,omitempty"`
}

// MarshalJSON writes the flat document form of the event.
func (e HistoryEvent) MarshalJSON() ([]byte, error) {
	doc := historyEventDoc{
		Action:    e.Kind(),
		Timestamp: e.Timestamp,
		UserID:    e.UserID,
		Comment:   e.Comment,
	}
	switch a := e.Action.(type) {
	case StateChange:
		doc.From, doc.To = a.From, a.To
	case Assignment:
		doc.AssignedTo = a.AssignedTo
	}
	if e.Details != nil {
		doc.Details = &eventDetailsDoc{
			InitialState:          e.Details.InitialState,
			InitialClassification: e.Details.InitialClassification,
		}
	}
	return json.Marshal(doc)
}

// UnmarshalJSON reads the flat document form into the tagged union. An event
// without an action decodes with a nil Action; history validation reports it.
func (e *HistoryEvent) UnmarshalJSON(data []byte) error {
	var doc historyEventDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	*e = HistoryEvent{
		Timestamp: doc.Timestamp,
		UserID:    doc.UserID,
		Comment:   doc.Comment,
		Action:    NewAction(doc.Action, doc.From, doc.To, doc.AssignedTo),
	}
	if doc.Details != nil {
		e.Details = &EventDetails{
			InitialState:          doc.Details.InitialState,
			InitialClassification: doc.Details.InitialClassification,
		}
	}
	return nil
}

// NewAction builds the variant for a stored action tag. An empty tag yields
// nil.
func NewAction(kind ActionKind, from, to TicketState, assignedTo string) Action {
	switch kind {
	case "":
		return nil
	case ActionStateChange:
		return StateChange{From: from, To: to}
	case ActionAssignment:
		return Assignment{AssignedTo: assignedTo}
	case ActionComment:
		return CommentAdded{}
	case ActionCreated:
		return Created{}
	default:
		return UnknownAction{Name: string(kind)}
	}
}

type ticketDoc struct {
	ID                string            `json:"_id"`
	Title             string            `json:"title"`
	Description       string            `json:"description,omitempty"`
	CreatedBy         string            `json:"createdBy,omitempty"`
	AssignedTo        *string           `json:"assignedTo,omitempty"`
	Classifications   map[string]string `json:"currentClassifications,omitempty"`
	CreatedAt         time.Time         `json:"createdAt"`
	CurrentState      TicketState       `json:"currentState"`
	ClosedAt          *time.Time        `json:"closedAt,omitempty"`
	ReopenCount       int               `json:"reopenCount"`
	StateChangeCount  int               `json:"stateChangeCount"`
	CommentCount      int               `json:"commentCount"`
	LastStateChangeAt *time.Time        `json:"lastStateChangeAt,omitempty"`
	LastModifiedAt    *time.Time        `json:"lastModifiedAt,omitempty"`
	History           []HistoryEvent    `json:"history"`
}

// MarshalJSON writes the ticket document form.
func (t Ticket) MarshalJSON() ([]byte, error) {
	return json.Marshal(ticketDoc{
		ID:                t.ID,
		Title:             t.Title,
		Description:       t.Description,
		CreatedBy:         t.CreatedBy,
		AssignedTo:        t.AssignedTo,
		Classifications:   t.Classifications,
		CreatedAt:         t.CreatedAt,
		CurrentState:      t.CurrentState,
		ClosedAt:          t.ClosedAt,
		ReopenCount:       t.ReopenCount,
		StateChangeCount:  t.StateChangeCount,
		CommentCount:      t.CommentCount,
		LastStateChangeAt: t.LastStateChangeAt,
		LastModifiedAt:    t.LastModifiedAt,
		History:           t.History,
	})
}

// UnmarshalJSON reads the ticket document form.
func (t *Ticket) UnmarshalJSON(data []byte) error {
	var doc ticketDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	*t = Ticket{
		ID:                doc.ID,
		Title:             doc.Title,
		Description:       doc.Description,
		CreatedBy:         doc.CreatedBy,
		AssignedTo:        doc.AssignedTo,
		Classifications:   doc.Classifications,
		CreatedAt:         doc.CreatedAt,
		CurrentState:      doc.CurrentState,
		ClosedAt:          doc.ClosedAt,
		ReopenCount:       doc.ReopenCount,
		StateChangeCount:  doc.StateChangeCount,
		CommentCount:      doc.CommentCount,
		LastStateChangeAt: doc.LastStateChangeAt,
		LastModifiedAt:    doc.LastModifiedAt,
		History:           doc.History,
	}
	return nil
}

type classifierDoc struct {
	ID        string   `json:"_id"`
	Name      string   `json:"name,omitempty"`
	ParentID  *string  `json:"parentId"`
	RootID    string   `json:"rootId"`
	Ancestors []string `json:"ancestors"`
	Path      string   `json:"path,omitempty"`
	Level     int      `json:"level"`
}

// MarshalJSON writes the classifier document form.
func (n ClassifierNode) MarshalJSON() ([]byte, error) {
	ancestors := n.Ancestors
	if ancestors == nil {
		ancestors = []string{}
	}
	return json.Marshal(classifierDoc{
		ID:        n.ID,
		Name:      n.Name,
		ParentID:  n.ParentID,
		RootID:    n.RootID,
		Ancestors: ancestors,
		Path:      n.Path,
		Level:     n.Level,
	})
}

// UnmarshalJSON reads the classifier document form.
func (n *ClassifierNode) UnmarshalJSON(data []byte) error {
	var doc classifierDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	*n = ClassifierNode{
		ID:        doc.ID,
		Name:      doc.Name,
		ParentID:  doc.ParentID,
		RootID:    doc.RootID,
		Ancestors: doc.Ancestors,
		Path:      doc.Path,
		Level:     doc.Level,
	}
	return nil
}
