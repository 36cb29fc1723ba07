package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_DevelopmentAndProduction(t *testing.T) {
	t.Parallel()

	dev, err := New(true)
	require.NoError(t, err)
	require.True(t, dev.Core().Enabled(-1), "development logger enables debug")

	prod, err := New(false)
	require.NoError(t, err)
	require.False(t, prod.Core().Enabled(-1), "production logger suppresses debug")
}
