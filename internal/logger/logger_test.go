package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	for _, json := range []bool{false, true} {
		l, err := New(json, true)
		require.NoError(t, err)
		assert.NotNil(t, l)
	}
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
}

func TestTruncateForLog(t *testing.T) {
	tests := []struct {
		in    string
		limit int
		want  string
	}{
		{in: "  short  ", limit: 10, want: "short"},
		{in: "résumé text", limit: 6, want: "résumé..."},
		{in: "anything", limit: 0, want: ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TruncateForLog(tt.in, tt.limit))
	}
}
