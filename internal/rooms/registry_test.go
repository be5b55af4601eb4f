package rooms

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tcases := []struct {
		name     string
		input    []string
		expected []string
		err      error
	}{
		{
			name:     "keeps order",
			input:    []string{"general", "tech", "sports"},
			expected: []string{"general", "tech", "sports"},
		},
		{
			name:     "trims and drops blanks",
			input:    []string{" general ", "", "  ", "tech"},
			expected: []string{"general", "tech"},
		},
		{
			name:     "removes duplicates",
			input:    []string{"general", "tech", "general"},
			expected: []string{"general", "tech"},
		},
		{
			name:  "empty list",
			input: []string{"", " "},
			err:   ErrNoRooms,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			r, err := New(tc.input)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, r.List())
		})
	}
}

func TestIsValid(t *testing.T) {
	r, err := New([]string{"general", "tech"})
	require.NoError(t, err)

	assert.True(t, r.IsValid("general"))
	assert.True(t, r.IsValid("tech"))
	assert.False(t, r.IsValid("General"), "expected names to be case sensitive")
	assert.False(t, r.IsValid(""))
	assert.False(t, r.IsValid("random"))
}

func TestList_ReturnsCopy(t *testing.T) {
	r, err := New([]string{"general"})
	require.NoError(t, err)

	l := r.List()
	l[0] = "changed"
	assert.Equal(t, []string{"general"}, r.List(), "expected registry to be immutable")
}
