package write

import (
	"testing"

	"github.com/CodeMonkeyCybersecurity/kvault/pkg/kv_err"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePairs(t *testing.T) {
	t.Parallel()
	got, err := ParsePairs([]string{"user=admin", "dsn=a=b", "api-key=x"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"user": "admin", "dsn": "a=b", "api-key": "x"}, got)
}

func TestParsePairsErrors(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no separator", []string{"user"}, "is not key=value"},
		{"empty key", []string{"=v"}, "key cannot be empty"},
		{"bad key", []string{"a.b=v"}, "key can only contain"},
		{"empty value", []string{"k="}, "cannot be empty"},
		{"duplicate", []string{"k=1", "k=2"}, "given more than once"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParsePairs(tt.args)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.True(t, kv_err.IsExpectedUserError(err))
		})
	}
}

func TestMergeFields(t *testing.T) {
	t.Parallel()
	existing := map[string]any{"a": "1", "b": "2"}
	got := mergeFields(existing, map[string]any{"b": "3", "c": "4"})
	assert.Equal(t, map[string]any{"a": "1", "b": "3", "c": "4"}, got)
	assert.Equal(t, "2", existing["b"])
}
