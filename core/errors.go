package core

import (
	"errors"
	"fmt"
)

// Kind classifies failures so adapters can map them to a response.
type Kind string

const (
	KindInvalidInput       Kind = "invalid_input"
	KindTransportExchange  Kind = "transport_exchange"
	KindMissingLinkage     Kind = "missing_linkage"
	KindCollaborator       Kind = "collaborator"
	KindUniquenessConflict Kind = "uniqueness_conflict"
)

// Error carries the failing operation and its kind.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func fail(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}
