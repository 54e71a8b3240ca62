package mute

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSpeculate(t *testing.T) {
	var tried []int
	got, ok := speculate([]int{1, 2, 3, 4}, func(i int) bool {
		tried = append(tried, i)
		return i%3 == 0
	})
	require.True(t, ok)
	require.Equal(t, 3, got)
	require.Equal(t, []int{1, 2, 3}, tried)

	_, ok = speculate([]int{1, 2}, func(int) bool { return false })
	require.False(t, ok)

	_, ok = speculate(nil, func(int) bool { return true })
	require.False(t, ok)
}
