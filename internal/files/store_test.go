package files

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngOf(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func jpegOf(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h)), nil))
	return buf.Bytes()
}

func TestValidate(t *testing.T) {
	store := NewStore(afero.NewMemMapFs(), "http://localhost:8080")

	tests := []struct {
		name    string
		data    []byte
		wantExt string
		wantErr error
	}{
		{name: "png", data: pngOf(t, 400, 300), wantExt: "png"},
		{name: "jpeg", data: jpegOf(t, 300, 200), wantExt: "jpg"},
		{name: "too small", data: pngOf(t, 299, 200), wantErr: ErrDimensions},
		{name: "too tall", data: pngOf(t, 400, 2001), wantErr: ErrDimensions},
		{name: "gif header", data: []byte("GIF89a\x01\x00\x01\x00"), wantErr: ErrUnsupportedType},
		{name: "text", data: []byte(strings.Repeat("x", 64)), wantErr: ErrUnsupportedType},
		{name: "too large", data: make([]byte, MaxImageBytes+1), wantErr: ErrTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ext, err := store.Validate(&Image{Filename: "upload", Data: tt.data})
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantExt, ext)
		})
	}
}

func TestSaveAndDelete(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewStore(fs, "http://localhost:8080/")

	name, err := store.Save(&Image{Filename: "cover.png", Data: pngOf(t, 640, 480)})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(name, "posts/"))
	assert.True(t, strings.HasSuffix(name, ".png"))
	assert.Equal(t, "http://localhost:8080/storage/"+name, store.URL(name))

	exists, err := afero.Exists(fs, name)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, store.Delete(name))
	exists, err = afero.Exists(fs, name)
	require.NoError(t, err)
	assert.False(t, exists)

	assert.NoError(t, store.Delete(name), "deleting a missing file is not an error")
	assert.NoError(t, store.Delete(""))
}

func TestSaveRejectsInvalid(t *testing.T) {
	store := NewStore(afero.NewMemMapFs(), "")
	_, err := store.Save(&Image{Filename: "tiny.png", Data: pngOf(t, 10, 10)})
	assert.ErrorIs(t, err, ErrDimensions)
}
