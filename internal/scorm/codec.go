package scorm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// The LMS transport mangles quotes and commas, so encoded suspend data swaps
// them for characters that pass through untouched. The swap is not escape
// aware: payload strings that already contain ¬, ~ or | do not survive a
// round trip. Stored data depends on this exact alphabet.
var (
	suspendEncoder = strings.NewReplacer("'", "¬", `"`, "~", ",", "|")
	suspendDecoder = strings.NewReplacer("~", `"`, "|", ",", "¬", "'")
)

// Encode serialises v to JSON and applies the suspend-data substitutions.
func Encode(v any) (string, error) {
	raw, err := MarshalPlain(v)
	if err != nil {
		return "", err
	}
	return suspendEncoder.Replace(raw), nil
}

// Decode reverses Encode.
func Decode(s string) (any, error) {
	var v any
	if err := DecodeInto(s, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// DecodeInto reverses Encode into dst.
func DecodeInto(s string, dst any) error {
	if err := json.Unmarshal([]byte(suspendDecoder.Replace(s)), dst); err != nil {
		return &DecodeError{Input: s, Err: err}
	}
	return nil
}

// MarshalPlain renders v as compact JSON without HTML escaping, the form
// written to the local fallback store.
func MarshalPlain(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("marshal suspend data: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
