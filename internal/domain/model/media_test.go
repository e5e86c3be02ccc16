package model

import (
	"errors"
	"testing"
)

func TestParseZone(t *testing.T) {
	for _, z := range []string{"left1", "left2", "left3", "center"} {
		if _, err := ParseZone(z); err != nil {
			t.Errorf("ParseZone(%q): %v", z, err)
		}
	}
	for _, z := range []string{"", "left4", "modal", "CENTER"} {
		if _, err := ParseZone(z); !errors.Is(err, ErrInvalidZone) {
			t.Errorf("ParseZone(%q): ожидалась ErrInvalidZone, получено %v", z, err)
		}
	}
	if z, err := ParseUploadZone("modal"); err != nil || z != ZoneCenter {
		t.Errorf("modal → %q, %v", z, err)
	}
}

func TestContentTypeAllowed(t *testing.T) {
	tests := []struct {
		file, ct string
		want     bool
	}{
		{"a.jpg", "image/jpeg", true},
		{"a.JPEG", "image/jpeg; charset=binary", true},
		{"a.ogg", "audio/ogg", true},
		{"a.png", "image/jpeg", false},
		{"a.exe", "application/octet-stream", false},
	}
	for _, tt := range tests {
		if got := ContentTypeAllowed(tt.file, tt.ct); got != tt.want {
			t.Errorf("ContentTypeAllowed(%q, %q) = %v", tt.file, tt.ct, got)
		}
	}
}

func TestOrderItems(t *testing.T) {
	items := []MediaItem{{ID: "1", Filename: "a"}, {ID: "2", Filename: "b"}, {ID: "3", Filename: "c"}}
	got := OrderItems(items, []string{"3", "b", "3", "zzz"})
	want := []string{"c", "b", "a"}
	if len(got) != len(want) {
		t.Fatalf("получено %d элементов", len(got))
	}
	for i, it := range got {
		if it.Filename != want[i] {
			t.Fatalf("позиция %d: %s, ожидалось %s", i, it.Filename, want[i])
		}
	}
}

func TestDirectURLKind(t *testing.T) {
	tests := []struct {
		url      string
		want     Kind
		wantFile bool
		detected Kind
	}{
		{"https://cdn.example.com/promo.JPG", KindImage, true, KindImage},
		{"https://cdn.example.com/clip.mp4?sig=abc", KindVideo, true, KindVideo},
		{"https://youtu.be/xyz", "", false, KindVideo},
		{"https://example.com/menu", "", false, KindImage},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, ok := DirectURLKind(tt.url)
			if got != tt.want || ok != tt.wantFile {
				t.Errorf("DirectURLKind = %q, %v", got, ok)
			}
			if d := DetectURLKind(tt.url); d != tt.detected {
				t.Errorf("DetectURLKind = %q, ожидалось %q", d, tt.detected)
			}
		})
	}
}
