package image

import (
	"image"
	"image/color"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"globalmotion/internal/warp"
)

func randomGray(rng *rand.Rand, w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = uint8(rng.Intn(256))
	}
	return img
}

func TestRoundTrip8Bit(t *testing.T) {
	dir := t.TempDir()
	src := randomGray(rand.New(rand.NewSource(1)), 23, 17)

	for _, ext := range []string{".png", ".tif", ".bmp"} {
		path := filepath.Join(dir, "frame"+ext)
		require.NoError(t, Save(path, src), ext)

		f, err := Load(path)
		require.NoError(t, err, ext)
		assert.Equal(t, 23, f.Width())
		assert.Equal(t, 17, f.Height())
		assert.False(t, f.Is16Bit())

		p, err := Luma[uint8](f, 8)
		require.NoError(t, err)
		for y := 0; y < 17; y++ {
			for x := 0; x < 23; x++ {
				require.Equal(t, src.GrayAt(x, y).Y, p.At(x, y), "%s (%d,%d)", ext, x, y)
			}
		}
	}
}

func TestRoundTripDeepPlane(t *testing.T) {
	dir := t.TempDir()
	rng := rand.New(rand.NewSource(2))
	for _, depth := range []int{10, 12} {
		p, err := warp.NewPlane[uint16](19, 11, depth)
		require.NoError(t, err)
		for i := range p.Pix {
			p.Pix[i] = uint16(rng.Intn(int(p.MaxValue()) + 1))
		}

		path := filepath.Join(dir, "pred.png")
		require.NoError(t, SavePlane(path, p))

		f, err := Load(path)
		require.NoError(t, err)
		assert.True(t, f.Is16Bit())
		got, err := Luma[uint16](f, depth)
		require.NoError(t, err)
		assert.Equal(t, p.Pix, got.Pix, "depth %d", depth)
	}
}

func TestToPlaneColour(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 1))
	img.Set(0, 0, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	img.Set(1, 0, color.RGBA{A: 255})

	p, err := ToPlane[uint8](img, 8)
	require.NoError(t, err)
	assert.Equal(t, []uint8{255, 0}, p.Pix)

	p16, err := ToPlane[uint16](img, 10)
	require.NoError(t, err)
	assert.Equal(t, []uint16{1023, 0}, p16.Pix)
}

func TestToPlaneOffsetBounds(t *testing.T) {
	src := randomGray(rand.New(rand.NewSource(3)), 10, 10)
	sub := src.SubImage(image.Rect(2, 3, 7, 9))

	p, err := ToPlane[uint8](sub, 8)
	require.NoError(t, err)
	assert.Equal(t, 5, p.Width)
	assert.Equal(t, 6, p.Height)
	assert.Equal(t, src.GrayAt(2, 3).Y, p.At(0, 0))
	assert.Equal(t, src.GrayAt(6, 8).Y, p.At(4, 5))
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.png"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	bad := filepath.Join(t.TempDir(), "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte("not an image"), 0644))
	_, err = Load(bad)
	assert.ErrorIs(t, err, image.ErrFormat)

	_, err = ToPlane[uint8](image.NewGray(image.Rect(0, 0, 4, 4)), 12)
	assert.ErrorIs(t, err, warp.ErrInvalidPlane)

	_, err = Luma[uint8](nil, 8)
	assert.ErrorIs(t, err, warp.ErrInvalidPlane)
}

func TestSaveUnsupported(t *testing.T) {
	err := Save(filepath.Join(t.TempDir(), "out.webp"), image.NewGray(image.Rect(0, 0, 1, 1)))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestIsSupportedFormat(t *testing.T) {
	assert.True(t, IsSupportedFormat("a/b/frame.TIF"))
	assert.True(t, IsSupportedFormat("frame.webp"))
	assert.False(t, IsSupportedFormat("frame.raw"))
}
