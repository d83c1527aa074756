package docx

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadImageInfo(t *testing.T) {
	path := writeTestPNG(t, 12, 34)

	info, err := ReadImageInfo(path)
	require.NoError(t, err)
	assert.Equal(t, ImageInfo{Width: 12, Height: 34, Format: "png"}, info)
	assert.Equal(t, "png", info.Extension())
	assert.Equal(t, "image/png", info.ContentType())
}

func TestReadImageInfo_Errors(t *testing.T) {
	_, err := ReadImageInfo(filepath.Join(t.TempDir(), "missing.png"))
	assert.True(t, errors.Is(err, ErrImageNotFound))

	notImage := filepath.Join(t.TempDir(), "note.txt")
	require.NoError(t, os.WriteFile(notImage, []byte("not an image"), 0644))
	_, err = ReadImageInfo(notImage)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrImageNotFound))
}

func TestMediaName(t *testing.T) {
	info := ImageInfo{Format: "jpeg"}

	first := mediaName(info)
	second := mediaName(info)
	assert.NotEqual(t, first, second)
	assert.True(t, strings.HasSuffix(first, ".jpeg"))
	assert.NotContains(t, first, "-")
	assert.Equal(t, "application/octet-stream", ImageInfo{Format: "svg"}.ContentType())
}
