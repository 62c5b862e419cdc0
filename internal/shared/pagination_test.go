package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPagination(t *testing.T) {
	p := NewPagination(2, 0, 2, 3)
	assert.True(t, p.HasMore)
	require.NotNil(t, p.NextOffset)
	assert.Equal(t, 2, *p.NextOffset)

	p = NewPagination(2, 2, 1, 3)
	assert.False(t, p.HasMore)
	assert.Nil(t, p.NextOffset)

	p = NewPagination(50, 10, 0, 3)
	assert.False(t, p.HasMore, "offset past the end")
	assert.Equal(t, 10, p.Offset)
}
