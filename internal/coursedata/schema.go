package coursedata

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/p-n-ai/pai-scorm/internal/scorm"
)

// documentSchema describes a stored course-data document: one flat object
// of primitive values.
const documentSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": {
    "type": ["string", "number", "boolean", "null"]
  }
}`

var compiledSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(documentSchema))
})

// ParseDocument parses and validates a plain JSON course-data document.
// Malformed JSON fails with *scorm.DecodeError, a well-formed document of
// the wrong shape with *ValidationError.
func ParseDocument(raw []byte) (map[string]Value, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &scorm.DecodeError{Input: string(raw), Err: err}
	}
	return validateDocument(doc)
}

func validateDocument(doc any) (map[string]Value, error) {
	schema, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("compile course data schema: %w", err)
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("validate course data: %w", err)
	}
	if !result.Valid() {
		first := result.Errors()[0]
		return nil, &ValidationError{Key: fieldKey(first.Field()), Kind: first.Description()}
	}

	obj, ok := doc.(map[string]any)
	if !ok {
		return nil, &ValidationError{Key: "(root)", Kind: fmt.Sprintf("%T", doc)}
	}
	return obj, nil
}

// fieldKey turns a gojsonschema field path such as "(root).page" into the
// course-data key.
func fieldKey(field string) string {
	if field == "(root)" {
		return field
	}
	return strings.TrimPrefix(field, "(root).")
}
