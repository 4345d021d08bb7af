package logging

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew_Production(t *testing.T) {
	t.Parallel()

	logger, err := New(false, "")
	require.NoError(t, err)
	require.NotNil(t, logger)
	require.False(t, logger.Core().Enabled(-1)) // debug disabled at info level
}

func TestNew_DevelopmentDebug(t *testing.T) {
	t.Parallel()

	logger, err := New(true, "debug")
	require.NoError(t, err)
	require.True(t, logger.Core().Enabled(-1))
}

func TestNew_BadLevel(t *testing.T) {
	t.Parallel()

	_, err := New(false, "shouting")
	require.Error(t, err)
}
