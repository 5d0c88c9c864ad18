package frame

import (
	"image"

	"github.com/pkg/errors"
)

// RGBAToBGR swizzles an RGBA image into a packed BGR24 buffer. dst must hold
// f.FrameBytes() and src must match the format geometry.
func RGBAToBGR(dst []byte, src *image.RGBA, f Format) error {
	bounds := src.Bounds()
	if bounds.Dx() != f.Width || bounds.Dy() != f.Height {
		return errors.Errorf("frame: image is %dx%d, want %dx%d",
			bounds.Dx(), bounds.Dy(), f.Width, f.Height)
	}
	if len(dst) < f.FrameBytes() {
		return errors.Errorf("frame: destination holds %d bytes, want %d", len(dst), f.FrameBytes())
	}

	stride := f.Stride()
	for y := 0; y < f.Height; y++ {
		srcRow := src.Pix[y*src.Stride : y*src.Stride+f.Width*4]
		dstRow := dst[y*stride : y*stride+stride]
		si, di := 0, 0
		for x := 0; x < f.Width; x++ {
			dstRow[di+0] = srcRow[si+2]
			dstRow[di+1] = srcRow[si+1]
			dstRow[di+2] = srcRow[si+0]
			si += 4
			di += 3
		}
	}
	return nil
}

// BGRToRGBA expands a packed BGR24 buffer into an RGBA image with full alpha.
// dst must match the format geometry.
func BGRToRGBA(dst *image.RGBA, src []byte, f Format) error {
	bounds := dst.Bounds()
	if bounds.Dx() != f.Width || bounds.Dy() != f.Height {
		return errors.Errorf("frame: image is %dx%d, want %dx%d",
			bounds.Dx(), bounds.Dy(), f.Width, f.Height)
	}
	if len(src) < f.FrameBytes() {
		return errors.Errorf("frame: source holds %d bytes, want %d", len(src), f.FrameBytes())
	}

	stride := f.Stride()
	for y := 0; y < f.Height; y++ {
		srcRow := src[y*stride : y*stride+stride]
		dstRow := dst.Pix[y*dst.Stride : y*dst.Stride+f.Width*4]
		si, di := 0, 0
		for x := 0; x < f.Width; x++ {
			dstRow[di+0] = srcRow[si+2]
			dstRow[di+1] = srcRow[si+1]
			dstRow[di+2] = srcRow[si+0]
			dstRow[di+3] = 0xff
			si += 3
			di += 4
		}
	}
	return nil
}

// NewRGBA allocates an RGBA image matching the format geometry. Callers on
// the frame path keep one as reusable decode scratch.
func NewRGBA(f Format) *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
}
