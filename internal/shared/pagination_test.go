package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPageBounds(t *testing.T) {
	for _, limit := range []int{0, -1, 101, 150} {
		_, err := NewPage(1, limit)
		require.ErrorIs(t, err, ErrInvalidInput, "limit %d", limit)
	}
	_, err := NewPage(0, 10)
	require.ErrorIs(t, err, ErrInvalidInput)

	p, err := NewPage(1, 100)
	require.NoError(t, err)
	assert.Equal(t, 0, p.Offset())
}

func TestPageOffsetAndWindow(t *testing.T) {
	p := Page{Page: 3, Limit: 10}
	assert.Equal(t, 20, p.Offset())

	start, end := p.Window(25)
	assert.Equal(t, 20, start)
	assert.Equal(t, 25, end)

	start, end = p.Window(5)
	assert.Equal(t, 5, start)
	assert.Equal(t, 5, end)
}

func TestNewPageRejectsUnaddressablePage(t *testing.T) {
	_, err := NewPage(100000000000000000, 100)
	require.ErrorIs(t, err, ErrInvalidInput)

	last := MaxOffset/100 + 1
	p, err := NewPage(last, 100)
	require.NoError(t, err)
	assert.LessOrEqual(t, p.Offset(), MaxOffset)
	assert.GreaterOrEqual(t, p.Offset(), 0)

	_, err = NewPage(last+1, 100)
	require.ErrorIs(t, err, ErrInvalidInput)
}

func TestOffsetSaturatesAndWindowStaysInBounds(t *testing.T) {
	p := Page{Page: 100000000000000000, Limit: 100}
	assert.Equal(t, MaxOffset, p.Offset())

	start, end := p.Window(3)
	assert.Equal(t, 3, start)
	assert.Equal(t, 3, end)

	start, end = Page{Page: -5, Limit: -2}.Window(4)
	assert.Equal(t, 0, start)
	assert.Equal(t, 0, end)
}
