package pin

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name  string
		in    int
		want  ID
		valid bool
	}{
		{name: "lowest", in: 2, want: GPIO2, valid: true},
		{name: "highest", in: 27, want: GPIO27, valid: true},
		{name: "middle", in: 12, want: GPIO12, valid: true},
		{name: "below range", in: 1},
		{name: "zero", in: 0},
		{name: "above range", in: 28},
		{name: "negative", in: -3},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := New(test.in)
			if !test.valid {
				var invalid *InvalidError
				require.True(t, errors.As(err, &invalid), "want InvalidError, got %v", err)
				assert.Equal(t, test.in, invalid.Value)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.want, got)
		})
	}
}

func TestIndexBijection(t *testing.T) {
	assert.Equal(t, 26, Count)

	seen := map[ID]bool{}
	for i := 0; i < Count; i++ {
		id, err := FromIndex(i)
		require.NoError(t, err)
		assert.Equal(t, i, id.Index())
		assert.False(t, seen[id], "index %d maps to %v twice", i, id)
		seen[id] = true
	}

	_, err := FromIndex(Count)
	assert.Error(t, err)
	_, err = FromIndex(-1)
	assert.Error(t, err)
}

func TestParse(t *testing.T) {
	for in, want := range map[string]ID{"GPIO12": GPIO12, "gpio4": GPIO4, " 27 ": GPIO27} {
		got, err := Parse(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := Parse("GPIOx")
	assert.Error(t, err)
	_, err = Parse("GPIO40")
	assert.Error(t, err)
}

func TestDuplicates(t *testing.T) {
	assert.Empty(t, Duplicates([]ID{GPIO4, GPIO6, GPIO9}))
	assert.Equal(t, []ID{GPIO12}, Duplicates([]ID{GPIO12, GPIO6, GPIO12}))
	assert.Equal(t, []ID{GPIO12}, Duplicates([]ID{GPIO12, GPIO12, GPIO12, GPIO12}))
	assert.Equal(t, []ID{GPIO3, GPIO12}, Duplicates([]ID{GPIO12, GPIO3, GPIO12, GPIO3}))
}

func TestString(t *testing.T) {
	assert.Equal(t, "GPIO9", GPIO9.String())
	assert.Equal(t, "GPIO3, GPIO11", Join([]ID{GPIO3, GPIO11}))
}
