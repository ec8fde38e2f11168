package store

import "fmt"

// NotFoundError is an identifier lookup miss.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// DanglingReferenceError means an ingested record tried to link to a target
// that does not exist. The record is skipped; the sync goes on.
type DanglingReferenceError struct {
	Entity   string
	Target   string
	TargetID string
}

func (e *DanglingReferenceError) Error() string {
	return fmt.Sprintf("cannot link %s to missing %s %s", e.Entity, e.Target, e.TargetID)
}

// InvariantViolationError means a write would break a required invariant
// (start after end, duplicate barcode, clearing a mandatory reference). The
// write is rejected before anything lands.
type InvariantViolationError struct {
	Reason string
}

func (e *InvariantViolationError) Error() string {
	return "invariant violation: " + e.Reason
}
