package service

import (
	"fmt"
	"strings"
)

// ValidationMode selects what AddBills does with a bill that fails validation.
type ValidationMode int

const (
	// ModePropagate returns the validation error; the whole batch rolls back.
	ModePropagate ValidationMode = iota
	// ModePropagateRollbackAny is ModePropagate with the rollback rule set
	// explicitly to roll back on any error.
	ModePropagateRollbackAny
	// ModePanic validates with a panicking validator; the batch rolls back and
	// the panic reaches the caller.
	ModePanic
	// ModeCatch recovers the validation panic at the call site, logs it and
	// keeps going. Valid bills are committed.
	ModeCatch
	// ModeCatchRemote is ModeCatch with validation done by the separate
	// validation.Service collaborator.
	ModeCatchRemote
)

var validationModeNames = map[ValidationMode]string{
	ModePropagate:            "propagate",
	ModePropagateRollbackAny: "propagate_rollback_any",
	ModePanic:                "panic",
	ModeCatch:                "catch",
	ModeCatchRemote:          "catch_remote",
}

func (m ValidationMode) String() string {
	if name, ok := validationModeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("ValidationMode(%d)", int(m))
}

// ParseValidationMode converts a mode name such as "catch" into a ValidationMode.
func ParseValidationMode(s string) (ValidationMode, error) {
	want := strings.ToLower(strings.TrimSpace(s))
	for mode, name := range validationModeNames {
		if name == want {
			return mode, nil
		}
	}
	return 0, fmt.Errorf("%w: validation mode %q", ErrInvalidMode, s)
}

// NestedMode selects how AddBillsThenFail runs the per-bill unit of work.
type NestedMode int

const (
	// NestedDirect calls the bill-writing function directly with the
	// caller's context, so the write lands in the caller's boundary.
	NestedDirect NestedMode = iota
	// NestedManaged goes through CreateBill, which opens a RequiresNew
	// boundary for each bill.
	NestedManaged
)

func (m NestedMode) String() string {
	switch m {
	case NestedDirect:
		return "direct"
	case NestedManaged:
		return "managed"
	default:
		return fmt.Sprintf("NestedMode(%d)", int(m))
	}
}

// ParseNestedMode converts "direct" or "managed" into a NestedMode.
func ParseNestedMode(s string) (NestedMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "direct":
		return NestedDirect, nil
	case "managed":
		return NestedManaged, nil
	default:
		return 0, fmt.Errorf("%w: nested mode %q", ErrInvalidMode, s)
	}
}
