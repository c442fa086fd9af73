package backboard

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// SchemaError reports a Backboard payload that does not match its contract.
type SchemaError struct {
	Schema string
	Err    error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("unexpected %s payload: %v", e.Schema, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

var (
	assistantSchema = jsonschema.MustCompileString("assistant.json", `{
		"type": "object",
		"required": ["assistant_id"],
		"properties": {
			"assistant_id": {"type": "string", "minLength": 1},
			"name": {"type": "string"}
		}
	}`)

	assistantListSchema = jsonschema.MustCompileString("assistant_list.json", `{
		"type": "array",
		"items": {
			"type": "object",
			"required": ["assistant_id"],
			"properties": {"assistant_id": {"type": "string"}}
		}
	}`)

	threadSchema = jsonschema.MustCompileString("thread.json", `{
		"type": "object",
		"required": ["thread_id"],
		"properties": {
			"thread_id": {"type": "string", "minLength": 1},
			"created_at": {"type": ["string", "null"]}
		}
	}`)

	documentSchema = jsonschema.MustCompileString("document.json", `{
		"type": "object",
		"required": ["document_id"],
		"properties": {
			"document_id": {"type": "string", "minLength": 1}
		}
	}`)

	documentStatusSchema = jsonschema.MustCompileString("document_status.json", `{
		"type": "object",
		"required": ["status"],
		"properties": {
			"status": {"type": "string"}
		}
	}`)

	streamEventSchema = jsonschema.MustCompileString("stream_event.json", `{
		"type": "object",
		"required": ["type"],
		"properties": {
			"type": {"type": "string", "minLength": 1},
			"content": {"type": ["string", "null"]},
			"error": {"type": ["string", "null"]},
			"message": {"type": ["string", "null"]}
		}
	}`)
)

func validateJSON(schema *jsonschema.Schema, raw []byte) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return &SchemaError{Schema: schema.Location, Err: err}
	}
	if err := schema.Validate(doc); err != nil {
		return &SchemaError{Schema: schema.Location, Err: err}
	}
	return nil
}
