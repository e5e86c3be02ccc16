package imageproc

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x += 7 {
		img.Set(x, x%h, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestInspect(t *testing.T) {
	info, err := Inspect(encodePNG(t, 2000, 500))
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if info.Width != 2000 || info.Height != 500 || info.Format != "png" {
		t.Errorf("info: %+v", info)
	}
	if !info.Exceeds() {
		t.Error("2000×500 больше кадра")
	}
	if _, err := Inspect([]byte("texte")); !errors.Is(err, ErrNotImage) {
		t.Errorf("ожидалась ErrNotImage, получено %v", err)
	}
}

func TestFit_Downscales(t *testing.T) {
	res, err := Fit(encodePNG(t, 3840, 1080), OversizeQuality)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	if !res.Resized || res.Width != 1920 || res.Height != 540 {
		t.Errorf("размеры: %dx%d resized=%v", res.Width, res.Height, res.Resized)
	}
	if res.Ext != ".png" {
		t.Errorf("формат должен сохраниться: %s", res.Ext)
	}
}

func TestFit_SmallJPEGKeepsSize(t *testing.T) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 640, 480)), nil); err != nil {
		t.Fatal(err)
	}
	res, err := Fit(buf.Bytes(), DownloadQuality)
	if err != nil {
		t.Fatal(err)
	}
	if res.Resized || res.Width != 640 || res.Ext != ".jpg" {
		t.Errorf("результат: %+v", res)
	}
}

func TestThumbnail(t *testing.T) {
	data, err := Thumbnail(encodePNG(t, 2400, 1200))
	if err != nil {
		t.Fatalf("Thumbnail: %v", err)
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if format != "jpeg" || cfg.Width != ThumbWidth || cfg.Height != 150 {
		t.Errorf("миниатюра: %s %dx%d", format, cfg.Width, cfg.Height)
	}
}

func TestSniff(t *testing.T) {
	if got := Sniff(encodePNG(t, 10, 10)); got != "image/png" {
		t.Errorf("Sniff = %s", got)
	}
}
