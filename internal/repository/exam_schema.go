package repository

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// examSchemaJSON describes the structure every exam document must have
// before it is decoded. Grading-level rules (unique ids, label sets) are
// checked afterwards by grading.Validate.
const examSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "definitions": {
    "id": {"type": ["string", "integer"]},
    "option": {
      "type": "object",
      "properties": {
        "label":       {"type": "string"},
        "text":        {"type": "string"},
        "explanation": {"type": "string"},
        "percent":     {"type": "string"}
      }
    },
    "problem": {
      "type": "object",
      "required": ["id"],
      "properties": {
        "id":         {"$ref": "#/definitions/id"},
        "type":       {"type": "string"},
        "allocation": {"type": "number", "minimum": 0},
        "points":     {"type": "number", "minimum": 0},
        "options":    {"type": "array", "items": {"$ref": "#/definitions/option"}},
        "tags":       {"type": "array", "items": {"type": "string"}}
      }
    },
    "block": {
      "type": "object",
      "required": ["problems"],
      "properties": {
        "title":      {"type": "string"},
        "blockTitle": {"type": "string"},
        "problems":   {"type": "array", "items": {"$ref": "#/definitions/problem"}}
      }
    }
  },
  "oneOf": [
    {"type": "array", "items": {"$ref": "#/definitions/block"}},
    {"type": "object", "additionalProperties": {"$ref": "#/definitions/block"}}
  ]
}`

var examSchema = mustCompileSchema(examSchemaJSON)

func mustCompileSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("compile exam schema: %v", err))
	}
	return s
}

// validateExamDocument checks a decoded document (JSON bytes or a generic
// value from YAML) against the exam schema.
func validateExamDocument(doc gojsonschema.JSONLoader) error {
	res, err := examSchema.Validate(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidExamDocument, err)
	}
	if res.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalidExamDocument, strings.Join(msgs, "; "))
}
