package ingestionapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBool(t *testing.T) {
	assert.Nil(t, parseBool(""))
	require.NotNil(t, parseBool("true"))
	assert.True(t, *parseBool("true"))
	require.NotNil(t, parseBool("1"))
	assert.True(t, *parseBool("1"))
	require.NotNil(t, parseBool("false"))
	assert.False(t, *parseBool("false"))
	require.NotNil(t, parseBool("nonsense"))
	assert.False(t, *parseBool("nonsense"))
}

func TestParseIntDefault(t *testing.T) {
	assert.Equal(t, 10, parseIntDefault("", 10))
	assert.Equal(t, 25, parseIntDefault("25", 10))
	assert.Equal(t, 10, parseIntDefault("not-a-number", 10))
}
