package metadataworker

import (
	"bytes"
	"fmt"
	"io"

	goexif "github.com/rwcarlsen/goexif/exif"

	"github.com/gbolabs/photoindex/internal/cmn"
)

// Fields is the decoded subset of EXIF data the metadata worker extracts
// and normalizes.
type Fields struct {
	Width       *int
	Height      *int
	DateTaken   *string // RFC3339 UTC
	CameraMake  *string
	CameraModel *string
	GPSLat      *float64
	GPSLong     *float64
	ISO         *int
	Aperture    *string
	Shutter     *string
	Orientation *int
}

// tiffMagicLE and tiffMagicBE are the byte sequences marking the start of a
// raw TIFF/Exif structure ("II*\x00" little-endian or "MM\x00*" big-endian). HEIC/HEIF
// containers store their Exif payload as a bare TIFF blob inside an
// 'Exif' item box rather than behind a JPEG APP1 marker, so goexif's
// direct Decode (which expects a JPEG or a bare TIFF starting at byte 0)
// fails on them; scanning for this magic recovers the same payload.
var tiffMagicLE = []byte{0x49, 0x49, 0x2A, 0x00}
var tiffMagicBE = []byte{0x4D, 0x4D, 0x00, 0x2A}

// ExtractEXIF decodes EXIF fields from raw image bytes, supporting both
// JPEG-embedded Exif (the common raster path) and the bare-TIFF payload
// HEIC/HEIF containers carry.
func ExtractEXIF(r io.ReadSeeker) (*Fields, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, cmn.NewIO("exif_read_failed", "failed to read image bytes", err)
	}

	x, err := goexif.Decode(bytes.NewReader(buf))
	if err != nil {
		if idx := findTIFFMagic(buf); idx >= 0 {
			x, err = goexif.Decode(bytes.NewReader(buf[idx:]))
		}
	}
	if err != nil || x == nil {
		return nil, cmn.NewDecode("exif_decode_failed", "failed to decode EXIF data", err)
	}

	f := &Fields{}

	if w, err := x.Get(goexif.PixelXDimension); err == nil {
		if v, err := w.Int(0); err == nil {
			f.Width = &v
		}
	}
	if h, err := x.Get(goexif.PixelYDimension); err == nil {
		if v, err := h.Int(0); err == nil {
			f.Height = &v
		}
	}

	if t, err := x.Get(goexif.Make); err == nil {
		if v, err := t.StringVal(); err == nil {
			f.CameraMake = &v
		}
	}
	if t, err := x.Get(goexif.Model); err == nil {
		if v, err := t.StringVal(); err == nil {
			f.CameraModel = &v
		}
	}

	// goexif's own DateTime() falls back to time.Local when the tag carries
	// no timezone (which it never does in practice), silently anchoring the
	// wall-clock string to whatever zone this process happens to run in.
	// Parse the raw tag through cmn.ParseEXIFTimestamp instead, which always
	// treats it as UTC and rejects the "0000:..." unset sentinel.
	dtTag, err := x.Get(goexif.DateTimeOriginal)
	if err != nil {
		dtTag, err = x.Get(goexif.DateTime)
	}
	if err == nil {
		if raw, err := dtTag.StringVal(); err == nil {
			if dt, err := cmn.ParseEXIFTimestamp(raw); err == nil {
				s := dt.Format("2006-01-02T15:04:05Z07:00")
				f.DateTaken = &s
			}
		}
	}

	if lat, long, err := x.LatLong(); err == nil {
		f.GPSLat = &lat
		f.GPSLong = &long
	}

	if t, err := x.Get(goexif.ISOSpeedRatings); err == nil {
		if v, err := t.Int(0); err == nil {
			f.ISO = &v
		}
	}

	if t, err := x.Get(goexif.FNumber); err == nil {
		if num, den, err := t.Rat2(0); err == nil && den != 0 {
			s := fmt.Sprintf("f/%.1f", float64(num)/float64(den))
			f.Aperture = &s
		}
	}

	if t, err := x.Get(goexif.ExposureTime); err == nil {
		if num, den, err := t.Rat2(0); err == nil && num != 0 {
			f.Shutter = formatShutterSpeed(num, den)
		}
	}

	if t, err := x.Get(goexif.Orientation); err == nil {
		if v, err := t.Int(0); err == nil {
			f.Orientation = &v
		}
	}

	return f, nil
}

// formatShutterSpeed renders a shutter speed as 1/<denom> when the numerator
// is 1, else <seconds>s when >= 1 second, else 1/<1/seconds>.
func formatShutterSpeed(num, den int64) *string {
	if den == 0 {
		return nil
	}
	var s string
	switch {
	case num == 1:
		s = fmt.Sprintf("1/%d", den)
	default:
		seconds := float64(num) / float64(den)
		switch {
		case seconds >= 1:
			s = fmt.Sprintf("%gs", seconds)
		default:
			s = fmt.Sprintf("1/%d", int64(1/seconds))
		}
	}
	return &s
}

func findTIFFMagic(buf []byte) int {
	for i := 0; i <= len(buf)-4; i++ {
		if bytes.Equal(buf[i:i+4], tiffMagicLE) || bytes.Equal(buf[i:i+4], tiffMagicBE) {
			return i
		}
	}
	return -1
}
