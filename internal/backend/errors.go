package backend

import (
	"errors"
	"fmt"
)

// Kind classifies a failed backend call
type Kind int

const (
	// KindRequest means the request could not be built or started
	KindRequest Kind = iota
	// KindNetwork means the request was sent but no response arrived
	KindNetwork
	// KindServer means the backend answered with an error status
	KindServer
	// KindNotFound is a KindServer answer with status 404
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindNetwork:
		return "network"
	case KindServer:
		return "server"
	case KindNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error is returned by every Client method that fails
type Error struct {
	Kind    Kind
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindServer, KindNotFound:
		return fmt.Sprintf("%s: backend returned %d: %s", e.Op, e.Status, e.Message)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s: %s error: %v", e.Op, e.Kind, e.Err)
		}
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf reports the Kind of a backend error anywhere in err's chain
func KindOf(err error) (Kind, bool) {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind, true
	}
	return 0, false
}

// IsNotFound reports whether err is a backend 404
func IsNotFound(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == KindNotFound
}
