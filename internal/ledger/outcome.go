package ledger

import (
	"encoding/json"
	"fmt"
	"time"
)

// State is the lifecycle position of an Outcome.
type State int

const (
	Pending State = iota
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "pending"
	}
}

// Outcome is the result of one import: either a ledger or the errors that
// prevented it, plus any warnings collected along the way.
//
// Any error moves the outcome to Failed and drops its ledger. Warnings never
// change the state. Not safe for concurrent use; each import owns its own.
type Outcome struct {
	state    State
	ledger   *Ledger
	errors   []string
	warnings []string
	elapsed  time.Duration
}

// NewOutcome returns a pending outcome.
func NewOutcome() *Outcome {
	return &Outcome{}
}

// State returns the current state.
func (o *Outcome) State() State { return o.state }

// Success reports whether a ledger was produced.
func (o *Outcome) Success() bool { return o.state == Succeeded }

// Ledger returns the ledger, nil unless the import succeeded.
func (o *Outcome) Ledger() *Ledger {
	if o.state != Succeeded {
		return nil
	}
	return o.ledger
}

// Errors returns a copy of the error messages.
func (o *Outcome) Errors() []string { return append([]string(nil), o.errors...) }

// Warnings returns a copy of the warning messages.
func (o *Outcome) Warnings() []string { return append([]string(nil), o.warnings...) }

// Elapsed returns the processing time recorded by Finish.
func (o *Outcome) Elapsed() time.Duration { return o.elapsed }

// AddError records an error and marks the outcome failed.
func (o *Outcome) AddError(msg string) {
	o.errors = append(o.errors, msg)
	o.state = Failed
	o.ledger = nil
}

// Errorf is AddError with formatting.
func (o *Outcome) Errorf(format string, args ...any) {
	o.AddError(fmt.Sprintf(format, args...))
}

// AddWarning records a warning.
func (o *Outcome) AddWarning(msg string) {
	o.warnings = append(o.warnings, msg)
}

// Warnf is AddWarning with formatting.
func (o *Outcome) Warnf(format string, args ...any) {
	o.AddWarning(fmt.Sprintf(format, args...))
}

// Succeed attaches the ledger. It only takes effect on a pending outcome;
// a failed outcome stays failed and reports false.
func (o *Outcome) Succeed(l *Ledger) bool {
	if o.state != Pending || l == nil {
		return false
	}
	o.ledger = l
	o.state = Succeeded
	return true
}

// Finish records the time elapsed since start.
func (o *Outcome) Finish(start time.Time) {
	o.elapsed = time.Since(start)
}

// MarshalJSON writes a report form of the outcome. The ledger itself is
// summarized by its metadata.
func (o *Outcome) MarshalJSON() ([]byte, error) {
	out := struct {
		Success        bool      `json:"success"`
		Errors         []string  `json:"errors"`
		Warnings       []string  `json:"warnings"`
		ProcessingTime float64   `json:"processing_time"`
		Metadata       *Metadata `json:"metadata,omitempty"`
	}{
		Success:        o.Success(),
		Errors:         o.Errors(),
		Warnings:       o.Warnings(),
		ProcessingTime: o.elapsed.Seconds(),
	}
	if out.Errors == nil {
		out.Errors = []string{}
	}
	if out.Warnings == nil {
		out.Warnings = []string{}
	}
	if l := o.Ledger(); l != nil {
		m := l.Metadata()
		out.Metadata = &m
	}
	return json.Marshal(out)
}
