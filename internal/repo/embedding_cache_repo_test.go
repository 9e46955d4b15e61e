package repo

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDimensionCompatible(t *testing.T) {
	require.True(t, dimensionCompatible(1536, 1536))
	require.True(t, dimensionCompatible(-1, 768), "unconstrained column accepts any dimension")
	require.False(t, dimensionCompatible(1536, 768))
	require.False(t, dimensionCompatible(768, 1536))
}
