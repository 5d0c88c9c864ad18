package camera

import (
	"bytes"
	"image"
	"image/draw"
	"image/jpeg"

	"github.com/pkg/errors"

	"github.com/oakbridge/oakbridge/internal/frame"
)

// decodeMJPEG decompresses one JPEG payload into a packed BGR24 frame
// buffer. rgba is caller-owned scratch reused across frames. A payload that
// fails to decode, or decodes to the wrong geometry, is reported as
// ErrFrameCorrupt so the relay skips it without touching the session.
func decodeMJPEG(dst []byte, payload []byte, rgba *image.RGBA, f frame.Format) error {
	img, err := jpeg.Decode(bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(ErrFrameCorrupt, err.Error())
	}

	bounds := img.Bounds()
	if bounds.Dx() != f.Width || bounds.Dy() != f.Height {
		return errors.Wrapf(ErrFrameCorrupt, "decoded %dx%d, want %dx%d",
			bounds.Dx(), bounds.Dy(), f.Width, f.Height)
	}

	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	if err := frame.RGBAToBGR(dst, rgba, f); err != nil {
		return errors.Wrap(ErrFrameCorrupt, err.Error())
	}
	return nil
}
