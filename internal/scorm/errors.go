package scorm

import (
	"fmt"
	"unicode/utf8"
)

// SuspendDataLimit12 is the suspend_data ceiling SCORM 1.2 imposes.
const SuspendDataLimit12 = 4096

// LimitExceededError reports encoded suspend data longer than the negotiated
// version allows. Callers are expected to shrink the payload.
type LimitExceededError struct {
	Version Version
	Length  int
	Limit   int
}

func (e *LimitExceededError) Error() string {
	return fmt.Sprintf("suspend data length %d exceeds SCORM %s limit of %d", e.Length, e.Version, e.Limit)
}

// DecodeError reports suspend data that is not valid JSON once the
// substitutions are reversed.
type DecodeError struct {
	Input string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode suspend data: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// CheckSuspendLimit returns a *LimitExceededError when encoded is too long
// for version. Only SCORM 1.2 has a limit.
func CheckSuspendLimit(version Version, encoded string) error {
	if version != Version12 {
		return nil
	}
	// Length is counted in characters, not bytes: ¬ is one character.
	if n := utf8.RuneCountInString(encoded); n > SuspendDataLimit12 {
		return &LimitExceededError{Version: version, Length: n, Limit: SuspendDataLimit12}
	}
	return nil
}
