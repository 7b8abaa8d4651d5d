package cmn

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeUTC(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*60*60)
	local := time.Date(2026, 7, 31, 10, 0, 0, 0, loc)
	got := NormalizeUTC(local)
	assert.Equal(t, time.UTC, got.Location())
	assert.Equal(t, 15, got.Hour())
}

func TestParseEXIFTimestampValid(t *testing.T) {
	got, err := ParseEXIFTimestamp("2020:06:15 08:30:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2020, 6, 15, 8, 30, 0, 0, time.UTC), got)
}

func TestParseEXIFTimestampRejectsEmpty(t *testing.T) {
	_, err := ParseEXIFTimestamp("")
	require.Error(t, err)
	assert.Equal(t, KindDecode, err.(*Error).Kind)
}

func TestParseEXIFTimestampRejectsUnsetSentinel(t *testing.T) {
	_, err := ParseEXIFTimestamp("0000:00:00 00:00:00")
	require.Error(t, err)
}

func TestParseEXIFTimestampRejectsGarbage(t *testing.T) {
	_, err := ParseEXIFTimestamp("not a date")
	require.Error(t, err)
}
