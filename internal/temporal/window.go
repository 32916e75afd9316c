package temporal

import (
	"errors"
	"time"
)

// ErrInvalidWindow is returned when a window's end does not follow its start.
var ErrInvalidWindow = errors.New("window end must be after start")

// Forever is a cutoff later than any recorded event.
var Forever = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)

// Window is the half-open interval [Start, End).
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow builds a validated window.
func NewWindow(start, end time.Time) (Window, error) {
	w := Window{Start: start, End: end}
	return w, w.Validate()
}

// Validate checks that the window is non-empty.
func (w Window) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() || !w.End.After(w.Start) {
		return ErrInvalidWindow
	}
	return nil
}

// Contains reports whether ts lies in [Start, End).
func (w Window) Contains(ts time.Time) bool {
	return !ts.Before(w.Start) && ts.Before(w.End)
}
