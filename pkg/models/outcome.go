package models

import (
	"encoding/json"
	"fmt"
)

// OutcomeKind tags an ImportOutcome
type OutcomeKind string

const (
	OutcomeSuccess   OutcomeKind = "success"
	OutcomeCancelled OutcomeKind = "cancel"
	OutcomeFailed    OutcomeKind = "error"
)

// ImportOutcome is the single terminal result of an import session.
// Payload is set only for OutcomeSuccess, Message only for OutcomeFailed.
type ImportOutcome struct {
	Kind    OutcomeKind
	Payload json.RawMessage
	Message string
}

// Success builds a successful outcome carrying the widget payload.
func Success(payload json.RawMessage) ImportOutcome {
	return ImportOutcome{Kind: OutcomeSuccess, Payload: payload}
}

// Cancelled builds a cancelled outcome.
func Cancelled() ImportOutcome {
	return ImportOutcome{Kind: OutcomeCancelled}
}

// Failed builds a failed outcome with the widget's message.
func Failed(message string) ImportOutcome {
	return ImportOutcome{Kind: OutcomeFailed, Message: message}
}

// ImporterEvent is the body posted by the importer when a session ends
type ImporterEvent struct {
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
}

// Outcome converts the event into an ImportOutcome.
func (e ImporterEvent) Outcome() (ImportOutcome, error) {
	switch OutcomeKind(e.Event) {
	case OutcomeSuccess:
		if len(e.Data) == 0 {
			return ImportOutcome{}, fmt.Errorf("success event without data")
		}
		return Success(e.Data), nil
	case OutcomeCancelled:
		return Cancelled(), nil
	case OutcomeFailed:
		return Failed(e.Message), nil
	default:
		return ImportOutcome{}, fmt.Errorf("unknown importer event %q", e.Event)
	}
}
