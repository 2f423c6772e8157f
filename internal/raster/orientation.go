package raster

import (
	"errors"
	"image"
	"io"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	exif "github.com/dsoprea/go-exif/v3"
)

const orientationTagID = 0x0112

// readOrientation returns the IFD0 orientation tag (1-8). Sources without
// EXIF report 1 and no error.
func readOrientation(rs io.ReadSeeker) (int, error) {
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return 1, err
	}

	tags, _, err := exif.GetFlatExifDataUniversalSearchWithReadSeeker(rs, nil, true)
	if err != nil {
		if isNoExif(err) {
			return 1, nil
		}
		return 1, err
	}

	for _, tag := range tags {
		if tag.TagId != orientationTagID || tag.IfdPath != "IFD" {
			continue
		}
		if o := orientationValue(tag.Value, tag.FormattedFirst); o >= 1 && o <= 8 {
			return o, nil
		}
	}
	return 1, nil
}

func orientationValue(v interface{}, formatted string) int {
	switch val := v.(type) {
	case []uint16:
		if len(val) > 0 {
			return int(val[0])
		}
	case []uint32:
		if len(val) > 0 {
			return int(val[0])
		}
	}
	n, err := strconv.Atoi(strings.Trim(formatted, "[] "))
	if err != nil {
		return 0
	}
	return n
}

// orient applies an EXIF orientation so the pixels are upright.
func orient(img image.Image, o int) image.Image {
	switch o {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

func isNoExif(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, exif.ErrNoExif) || strings.Contains(strings.ToLower(err.Error()), "no exif")
}
