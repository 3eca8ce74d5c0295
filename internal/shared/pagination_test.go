package shared

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewPaginationNormalizesBounds(t *testing.T) {
	p := NewPagination(-5, 0, 120)
	require.Equal(t, 0, p.Skip)
	require.Equal(t, DefaultPageSize, p.Take)
	require.Equal(t, 120, p.Total)
	require.True(t, p.HasMore)

	p = NewPagination(0, MaxPageSize+1, 10)
	require.Equal(t, DefaultPageSize, p.Take)
}

func TestNewPaginationHasMore(t *testing.T) {
	require.True(t, NewPagination(0, 50, 51).HasMore)
	require.False(t, NewPagination(0, 50, 50).HasMore)
	require.False(t, NewPagination(50, 50, 100).HasMore)
	require.True(t, NewPagination(40, 50, 100).HasMore)
}
