// Пакет imageproc — уменьшение, перекодирование и миниатюры изображений медиа.
package imageproc

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/webp"
)

// Границы кадра экрана и параметры кодирования.
const (
	MaxWidth        = 1920
	MaxHeight       = 1080
	ThumbWidth      = 300
	ThumbQuality    = 85
	DownloadQuality = 85
	OversizeQuality = 75
)

// ErrNotImage — данные не декодируются как изображение.
var ErrNotImage = errors.New("данные не являются изображением")

// Info — размеры и формат изображения.
type Info struct {
	Width  int
	Height int
	Format string
}

// Exceeds сообщает, больше ли изображение кадра 1920×1080.
func (i Info) Exceeds() bool {
	return i.Width > MaxWidth || i.Height > MaxHeight
}

// Inspect читает только заголовок изображения.
func Inspect(data []byte) (*Info, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	return &Info{Width: cfg.Width, Height: cfg.Height, Format: format}, nil
}

// Sniff определяет MIME-тип по содержимому.
func Sniff(data []byte) string {
	return mimetype.Detect(data).String()
}

// Result — перекодированное изображение.
type Result struct {
	Data []byte
	// Ext — расширение итогового формата (.jpg для WebP и JPEG)
	Ext     string
	Width   int
	Height  int
	Resized bool
}

// Fit вписывает изображение в 1920×1080 (если оно больше) и перекодирует
// с качеством quality. Формат сохраняется, кроме WebP: он кодируется в JPEG.
func Fit(data []byte, quality int) (*Result, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotImage, err)
	}

	resized := false
	b := img.Bounds()
	if b.Dx() > MaxWidth || b.Dy() > MaxHeight {
		img = imaging.Fit(img, MaxWidth, MaxHeight, imaging.Lanczos)
		resized = true
	}

	outFormat, ext := encodingFor(format)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, outFormat, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("ошибка кодирования изображения: %w", err)
	}

	nb := img.Bounds()
	return &Result{Data: buf.Bytes(), Ext: ext, Width: nb.Dx(), Height: nb.Dy(), Resized: resized}, nil
}

// Thumbnail — JPEG шириной 300 px с сохранением пропорций.
func Thumbnail(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	thumb := imaging.Resize(img, ThumbWidth, 0, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(ThumbQuality)); err != nil {
		return nil, fmt.Errorf("ошибка кодирования миниатюры: %w", err)
	}
	return buf.Bytes(), nil
}

func encodingFor(decoded string) (imaging.Format, string) {
	switch strings.ToLower(decoded) {
	case "png":
		return imaging.PNG, ".png"
	case "gif":
		return imaging.GIF, ".gif"
	case "bmp":
		return imaging.BMP, ".bmp"
	default:
		return imaging.JPEG, ".jpg"
	}
}
