package docx

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"os"
	"strings"

	"github.com/google/uuid"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImageInfo 图片的像素尺寸和格式
type ImageInfo struct {
	Width  int
	Height int
	Format string // png、jpeg、gif、bmp、tiff、webp
}

// 图片格式对应的扩展名和内容类型
var imageFormats = map[string]struct {
	ext         string
	contentType string
}{
	"png":  {"png", "image/png"},
	"jpeg": {"jpeg", "image/jpeg"},
	"gif":  {"gif", "image/gif"},
	"bmp":  {"bmp", "image/bmp"},
	"tiff": {"tiff", "image/tiff"},
	"webp": {"webp", "image/webp"},
}

// Extension 返回格式对应的扩展名
func (i ImageInfo) Extension() string {
	if f, ok := imageFormats[i.Format]; ok {
		return f.ext
	}
	return i.Format
}

// ContentType 返回格式对应的内容类型
func (i ImageInfo) ContentType() string {
	if f, ok := imageFormats[i.Format]; ok {
		return f.contentType
	}
	return "application/octet-stream"
}

// ReadImageInfo 读取图片尺寸，文件不存在时返回 ErrImageNotFound
func ReadImageInfo(path string) (ImageInfo, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ImageInfo{}, fmt.Errorf("%w: %s", ErrImageNotFound, path)
		}
		return ImageInfo{}, fmt.Errorf("打开图片 %s 失败: %w", path, err)
	}
	defer file.Close()

	config, format, err := image.DecodeConfig(file)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("读取图片 %s 尺寸失败: %w", path, err)
	}

	return ImageInfo{Width: config.Width, Height: config.Height, Format: format}, nil
}

// mediaName 为新图片生成唯一的文件名
func mediaName(info ImageInfo) string {
	return "image_" + strings.ReplaceAll(uuid.NewString(), "-", "") + "." + info.Extension()
}
