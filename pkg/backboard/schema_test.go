package backboard

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateJSONAcceptsNumericFields(t *testing.T) {
	raw := []byte(`{"status":"indexed","progress":0.75,"chunks":12}`)
	require.NoError(t, validateJSON(documentStatusSchema, raw))
}

func TestValidateJSONRejectsTypeMismatch(t *testing.T) {
	err := validateJSON(documentStatusSchema, []byte(`{"status":3}`))

	var schemaErr *SchemaError
	require.True(t, errors.As(err, &schemaErr))
	require.Contains(t, schemaErr.Schema, "document_status.json")
}

func TestValidateJSONRejectsMalformedBody(t *testing.T) {
	err := validateJSON(threadSchema, []byte(`{"thread_id":`))

	var schemaErr *SchemaError
	require.True(t, errors.As(err, &schemaErr))
}
