package xerrors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPreservesChain(t *testing.T) {
	sentinel := New("dbpool: pool exhausted")

	wrapped := Wrapf(sentinel, "checkout failed (in_use=%d, max=%d)", 50, 50)
	require.Error(t, wrapped)
	assert.True(t, Is(wrapped, sentinel))
	assert.Contains(t, wrapped.Error(), "in_use=50")
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, "context"))
	assert.NoError(t, Wrapf(nil, "context %d", 1))
}

func TestCombine(t *testing.T) {
	e1 := New("first")
	e2 := New("second")

	assert.NoError(t, Combine(nil, nil))
	assert.Equal(t, e1, Combine(nil, e1))

	combined := Combine(e1, nil, e2)
	assert.True(t, Is(combined, e1))
	assert.True(t, Is(combined, e2))
}

func TestMustPanics(t *testing.T) {
	assert.NotPanics(t, func() { Must(1, nil) })
	assert.Panics(t, func() { Must(0, New("boom")) })
}
