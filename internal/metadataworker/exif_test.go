package metadataworker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatShutterSpeedFastExposure(t *testing.T) {
	s := formatShutterSpeed(1, 250)
	require.NotNil(t, s)
	assert.Equal(t, "1/250", *s)
}

func TestFormatShutterSpeedLongExposure(t *testing.T) {
	s := formatShutterSpeed(2, 1)
	require.NotNil(t, s)
	assert.Equal(t, "2s", *s)
}

func TestFormatShutterSpeedSubSecondNonUnitNumerator(t *testing.T) {
	// 1/3 second exposure expressed as numerator=1, denominator=3 would hit
	// the num==1 branch; exercise the non-unit-numerator sub-second path
	// instead: 3/10 second -> 1/3.33 rounds down to 1/3.
	s := formatShutterSpeed(3, 10)
	require.NotNil(t, s)
	assert.Equal(t, "1/3", *s)
}

func TestFormatShutterSpeedZeroDenominator(t *testing.T) {
	assert.Nil(t, formatShutterSpeed(1, 0))
}

func TestFindTIFFMagicLittleEndian(t *testing.T) {
	buf := append([]byte{0xFF, 0xD8, 0xFF, 0xE1}, tiffMagicLE...)
	assert.Equal(t, 4, findTIFFMagic(buf))
}

func TestFindTIFFMagicBigEndian(t *testing.T) {
	buf := append([]byte{0x00, 0x01}, tiffMagicBE...)
	assert.Equal(t, 2, findTIFFMagic(buf))
}

func TestFindTIFFMagicAbsent(t *testing.T) {
	assert.Equal(t, -1, findTIFFMagic([]byte{0x01, 0x02, 0x03}))
}
