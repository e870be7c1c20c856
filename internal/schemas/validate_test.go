package schemas

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Followups(t *testing.T) {
	tests := []struct {
		name  string
		doc   string
		valid bool
	}{
		{name: "valid", doc: `{"questions": [{"id": "dq1", "question": "Why Go?", "type": "textarea"}]}`, valid: true},
		{name: "options", doc: `{"questions": [{"question": "Pick", "type": "radio", "options": ["a", "b"]}]}`, valid: true},
		{name: "missing questions", doc: `{}`},
		{name: "empty questions", doc: `{"questions": []}`},
		{name: "blank question", doc: `{"questions": [{"question": ""}]}`},
		{name: "numeric options", doc: `{"questions": [{"question": "Pick", "options": [1, 2]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(Followups, []byte(tt.doc))
			if tt.valid {
				assert.NoError(t, err)
				return
			}
			var ve *ValidationError
			require.True(t, errors.As(err, &ve), "expected ValidationError, got %v", err)
			assert.NotEmpty(t, ve.Errors)
			assert.Equal(t, Followups, ve.Schema)
		})
	}
}

func TestValidate_FinalAnalysis(t *testing.T) {
	assert.NoError(t, Validate(FinalAnalysis, []byte(`{"skillLevel": "Beginner", "keywords": ["go"], "skills": [{"name": "go"}]}`)))

	err := Validate(FinalAnalysis, []byte(`{"skills": []}`))
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Contains(t, ve.Error(), "skillLevel")
	assert.Contains(t, ve.Error(), "keywords")
}

func TestValidate_MalformedDocument(t *testing.T) {
	err := Validate(FinalAnalysis, []byte(`{not json`))
	require.Error(t, err)
	var ve *ValidationError
	assert.False(t, errors.As(err, &ve))
}

func TestValidate_UnknownSchema(t *testing.T) {
	err := Validate("missing.schema.json", []byte(`{}`))
	var le *SchemaLoadError
	assert.True(t, errors.As(err, &le))
}
