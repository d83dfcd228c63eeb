package polite

import (
	"errors"
	"fmt"
)

// Kind discriminates the failures of the public operations.
type Kind int

// Error kinds.
const (
	// KindConnect: the store could not be opened.
	KindConnect Kind = iota + 1
	// KindExec: a statement failed to execute.
	KindExec
	// KindQuery: a query failed to prepare or run before the bridge was engaged.
	KindQuery
	// KindBridge: the bridge failed while moving rows.
	KindBridge
	// KindConversion: bridge output could not become a frame.
	KindConversion
	// KindSave: a frame could not be persisted.
	KindSave
	// KindLoad: a frame could not be loaded by path.
	KindLoad
)

func (k Kind) String() string {
	switch k {
	case KindConnect:
		return "connect"
	case KindExec:
		return "exec"
	case KindQuery:
		return "query"
	case KindBridge:
		return "bridge"
	case KindConversion:
		return "conversion"
	case KindSave:
		return "save"
	case KindLoad:
		return "load"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Error is returned by every public operation. Path, SQL and Table are set
// when they apply to the kind.
type Error struct {
	Kind  Kind
	Path  string
	SQL   string
	Table string
	Err   error
}

func (e *Error) Error() string {
	switch e.Kind {
	case KindConnect:
		return fmt.Sprintf("failed to connect to %s: %v", e.Path, e.Err)
	case KindExec:
		return fmt.Sprintf("failed to execute SQL: %s: %v", e.SQL, e.Err)
	case KindQuery:
		return fmt.Sprintf("failed to run query on %s: %v", e.Path, e.Err)
	case KindBridge:
		return fmt.Sprintf("bridge arrow conversion failed on %s: %v", e.Path, e.Err)
	case KindConversion:
		return fmt.Sprintf("arrow to frame conversion failed: %v", e.Err)
	case KindSave:
		return fmt.Sprintf("failed to save frame to table '%s' in %s: %v", e.Table, e.Path, e.Err)
	case KindLoad:
		return fmt.Sprintf("failed to load frame from %s: %v", e.Path, e.Err)
	default:
		return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether any *Error in err's chain has kind k.
func IsKind(err error, k Kind) bool {
	for err != nil {
		var pe *Error
		if !errors.As(err, &pe) {
			return false
		}
		if pe.Kind == k {
			return true
		}
		err = pe.Err
	}
	return false
}

// KindOf returns the kind of the outermost *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return 0, false
}
