// Package image loads video frames from still-image files into sample planes
// and writes prediction planes back out.
package image

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"globalmotion/internal/warp"
)

// ErrUnsupportedFormat is returned for file extensions with no encoder.
var ErrUnsupportedFormat = errors.New("image: unsupported format")

// Frame is a decoded still used as a reference or current frame.
type Frame struct {
	Path   string      // Original file path
	Image  image.Image // Decoded image data
	Format string      // Decoder name reported by image.Decode
}

// Load decodes the image at path. PNG, JPEG, GIF, TIFF, BMP and WebP are
// recognised by content.
func Load(path string) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image %s: %w", path, err)
	}
	return &Frame{Path: path, Image: img, Format: format}, nil
}

// Width returns the image width in pixels.
func (f *Frame) Width() int {
	if f.Image == nil {
		return 0
	}
	return f.Image.Bounds().Dx()
}

// Height returns the image height in pixels.
func (f *Frame) Height() int {
	if f.Image == nil {
		return 0
	}
	return f.Image.Bounds().Dy()
}

// Is16Bit reports whether the decoded image carries more than 8 bits per
// channel.
func (f *Frame) Is16Bit() bool {
	switch f.Image.(type) {
	case *image.Gray16, *image.RGBA64, *image.NRGBA64:
		return true
	}
	return false
}

// Luma converts the frame to a luma plane of the given bit depth.
func Luma[T warp.Sample](f *Frame, bitDepth int) (*warp.Plane[T], error) {
	if f == nil || f.Image == nil {
		return nil, fmt.Errorf("luma: no image: %w", warp.ErrInvalidPlane)
	}
	return ToPlane[T](f.Image, bitDepth)
}

// ToPlane converts img to a luma plane, keeping the top bitDepth bits of the
// 16-bit gray value.
func ToPlane[T warp.Sample](img image.Image, bitDepth int) (*warp.Plane[T], error) {
	b := img.Bounds()
	p, err := warp.NewPlane[T](b.Dx(), b.Dy(), bitDepth)
	if err != nil {
		return nil, err
	}
	shift := 16 - bitDepth
	for y := 0; y < p.Height; y++ {
		row := p.Pix[y*p.Stride:]
		for x := 0; x < p.Width; x++ {
			g := color.Gray16Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16)
			row[x] = T(g.Y >> shift)
		}
	}
	return p, nil
}

// FromPlane returns p as an image: 8-bit planes as *image.Gray, deeper planes
// as *image.Gray16 with samples scaled to the full 16-bit range.
func FromPlane[T warp.Sample](p *warp.Plane[T]) (image.Image, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	r := image.Rect(0, 0, p.Width, p.Height)
	if p.BitDepth == 8 {
		img := image.NewGray(r)
		for y := 0; y < p.Height; y++ {
			for x := 0; x < p.Width; x++ {
				img.Pix[y*img.Stride+x] = uint8(p.At(x, y))
			}
		}
		return img, nil
	}

	img := image.NewGray16(r)
	shift := 16 - p.BitDepth
	for y := 0; y < p.Height; y++ {
		for x := 0; x < p.Width; x++ {
			img.SetGray16(x, y, color.Gray16{Y: uint16(p.At(x, y)) << shift})
		}
	}
	return img, nil
}

// Save encodes img to path, choosing the encoder from the extension.
func Save(path string, img image.Image) error {
	ext := strings.ToLower(filepath.Ext(path))
	var encode func(*os.File) error
	switch ext {
	case ".png":
		encode = func(f *os.File) error { return png.Encode(f, img) }
	case ".jpg", ".jpeg":
		encode = func(f *os.File) error { return jpeg.Encode(f, img, &jpeg.Options{Quality: 95}) }
	case ".tif", ".tiff":
		encode = func(f *os.File) error { return tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate}) }
	case ".bmp":
		encode = func(f *os.File) error { return bmp.Encode(f, img) }
	default:
		return fmt.Errorf("save %s: %w", path, ErrUnsupportedFormat)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create image: %w", err)
	}
	if err := encode(file); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode image %s: %w", path, err)
	}
	return file.Close()
}

// SavePlane writes a plane with Save.
func SavePlane[T warp.Sample](path string, p *warp.Plane[T]) error {
	img, err := FromPlane(p)
	if err != nil {
		return err
	}
	return Save(path, img)
}

// SupportedFormats returns the list of readable image extensions.
func SupportedFormats() []string {
	return []string{".tiff", ".tif", ".png", ".jpg", ".jpeg", ".gif", ".bmp", ".webp"}
}

// IsSupportedFormat checks if the given path has a supported image format.
func IsSupportedFormat(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, format := range SupportedFormats() {
		if ext == format {
			return true
		}
	}
	return false
}
