package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound marks a lookup miss. Consumers generally log and drop:
// the entity may legitimately be gone by the time an event arrives.
var ErrNotFound = errors.New("not found")

// ErrConflict marks a stale optimistic-concurrency token. The caller
// must retry with a fresh read, never overwrite.
var ErrConflict = errors.New("concurrency conflict")

// RuleError is a business-rule refusal. It is reported back to the
// caller as a failure event, never as a transport-level error.
type RuleError struct {
	Reason string
}

func (e *RuleError) Error() string {
	return e.Reason
}

func NewRuleError(format string, args ...interface{}) *RuleError {
	return &RuleError{Reason: fmt.Sprintf(format, args...)}
}

func IsRuleError(err error) bool {
	var re *RuleError
	return errors.As(err, &re)
}
