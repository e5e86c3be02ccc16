// Пакет model — доменные модели teaser-сервиса: зоны экрана, медиа,
// селфи, записи журнала действий и настройки.
package model

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// ErrInvalidZone — зона не входит в перечень зон экрана.
var ErrInvalidZone = errors.New("недопустимая зона")

// Zone — область экрана, в которой крутится карусель медиа.
type Zone string

const (
	ZoneLeft1  Zone = "left1"
	ZoneLeft2  Zone = "left2"
	ZoneLeft3  Zone = "left3"
	ZoneCenter Zone = "center"
)

// ZoneAliasModal — псевдоним центральной зоны, принимаемый при загрузке.
const ZoneAliasModal = "modal"

// AllZones — все зоны в порядке отображения.
var AllZones = []Zone{ZoneLeft1, ZoneLeft2, ZoneLeft3, ZoneCenter}

var zoneTitles = map[Zone]string{
	ZoneCenter: "Zone Centrale (Carrousel)",
	ZoneLeft1:  "Zone Gauche 1",
	ZoneLeft2:  "Zone Gauche 2",
	ZoneLeft3:  "Zone Gauche 3",
}

// ParseZone проверяет имя зоны. Любое значение вне перечня — ErrInvalidZone.
func ParseZone(s string) (Zone, error) {
	z := Zone(s)
	if _, ok := zoneTitles[z]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidZone, s)
	}
	return z, nil
}

// ParseUploadZone — как ParseZone, но дополнительно принимает "modal" → center.
func ParseUploadZone(s string) (Zone, error) {
	if s == ZoneAliasModal {
		return ZoneCenter, nil
	}
	return ParseZone(s)
}

// Title — отображаемое название зоны.
func (z Zone) Title() string {
	return zoneTitles[z]
}

// Kind — грубая классификация медиа.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
	KindURL   Kind = "url"
)

// allowedContentTypes — допустимые заявленные MIME-типы по расширению.
var allowedContentTypes = map[string][]string{
	".jpg":  {"image/jpeg"},
	".jpeg": {"image/jpeg"},
	".png":  {"image/png"},
	".gif":  {"image/gif"},
	".webp": {"image/webp"},
	".bmp":  {"image/bmp"},
	".mp4":  {"video/mp4"},
	".webm": {"video/webm"},
	".ogg":  {"video/ogg", "audio/ogg"},
	".avi":  {"video/avi", "video/x-msvideo"},
	".mov":  {"video/quicktime"},
	".mkv":  {"video/x-matroska"},
}

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true, ".bmp": true,
}

var videoExtensions = map[string]bool{
	".mp4": true, ".webm": true, ".ogg": true, ".avi": true, ".mov": true, ".mkv": true,
}

// KindFromFilename определяет вид медиа по расширению.
// ok=false — расширение не входит в белый список.
func KindFromFilename(name string) (Kind, bool) {
	ext := strings.ToLower(filepath.Ext(name))
	switch {
	case imageExtensions[ext]:
		return KindImage, true
	case videoExtensions[ext]:
		return KindVideo, true
	default:
		return "", false
	}
}

// ContentTypeAllowed проверяет, что заявленный MIME-тип соответствует расширению.
func ContentTypeAllowed(filename, contentType string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	for _, allowed := range allowedContentTypes[ext] {
		if ct == allowed {
			return true
		}
	}
	return false
}

// ExtensionForContentType — расширение файла для MIME-типа скачанного контента.
func ExtensionForContentType(contentType string) (string, bool) {
	ct := strings.ToLower(contentType)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	ct = strings.TrimSpace(ct)
	if ct == "image/jpeg" || ct == "image/jpg" {
		return ".jpg", true
	}
	for _, ext := range []string{".png", ".gif", ".webp", ".bmp", ".mp4", ".webm", ".ogg", ".mov", ".mkv", ".avi"} {
		for _, allowed := range allowedContentTypes[ext] {
			if ct == allowed {
				return ext, true
			}
		}
	}
	return "", false
}

// DirectURLKind — вид файла, на который URL указывает напрямую (по расширению).
// false — страница или сервис, а не файл.
func DirectURLKind(url string) (Kind, bool) {
	u := strings.ToLower(url)
	for ext := range imageExtensions {
		if strings.Contains(u, ext) {
			return KindImage, true
		}
	}
	for _, ext := range []string{".mp4", ".webm", ".ogg", ".avi", ".mov"} {
		if strings.Contains(u, ext) {
			return KindVideo, true
		}
	}
	return "", false
}

// DetectURLKind угадывает вид контента по URL (без запроса).
func DetectURLKind(url string) Kind {
	if kind, ok := DirectURLKind(url); ok {
		return kind
	}
	u := strings.ToLower(url)
	for _, host := range []string{"youtube.com", "youtu.be", "vimeo.com"} {
		if strings.Contains(u, host) {
			return KindVideo
		}
	}
	return KindImage
}

// MediaItem — элемент карусели зоны. Идентичность — пара (Zone, Filename);
// ID — постоянный UUID из сопутствующего attr.json.
type MediaItem struct {
	ID        string    `json:"id"`
	Zone      Zone      `json:"zone"`
	Kind      Kind      `json:"type"`
	Filename  string    `json:"filename"`
	Title     string    `json:"title"`
	Src       string    `json:"src"`
	Size      int64     `json:"size"`
	Duration  int       `json:"duration"`
	Order     int       `json:"order"`
	Exists    bool      `json:"exists"`
	CreatedAt time.Time `json:"created_at"`
	// SourceURL — исходный адрес для скачанного контента и URL-ссылок.
	SourceURL string `json:"source_url,omitempty"`
	// DetectedKind — вид контента URL-ссылки.
	DetectedKind Kind `json:"detected_kind,omitempty"`
}

// MediaAttr — содержимое сопутствующего файла метаданных.
// Для файлов: <имя>.attr.json рядом с файлом. Для URL-ссылок: <slug>.url.json.
type MediaAttr struct {
	// ID — постоянный идентификатор элемента (UUID v4)
	ID string `json:"id"`

	Zone Zone `json:"zone"`

	// Kind — image/video для файлов, url для ссылок
	Kind Kind `json:"kind"`

	// Filename — имя файла на диске (пусто для URL-ссылок)
	Filename string `json:"filename,omitempty"`

	// OriginalFilename — имя файла при загрузке
	OriginalFilename string `json:"original_filename,omitempty"`

	Title string `json:"title,omitempty"`

	// URL — адрес ссылки (только для Kind == url)
	URL string `json:"url,omitempty"`

	// DetectedKind — угаданный по URL вид контента ссылки
	DetectedKind Kind `json:"detected_kind,omitempty"`

	// SourceURL — откуда скачан файл
	SourceURL string `json:"source_url,omitempty"`

	ContentType string `json:"content_type,omitempty"`

	// Checksum — SHA-256 содержимого
	Checksum string `json:"checksum,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// TitleFromFilename — имя файла до первой точки.
func TitleFromFilename(name string) string {
	if i := strings.IndexByte(name, '.'); i > 0 {
		return name[:i]
	}
	return name
}

// OrderItems ставит элементы из order (ID или имя файла) первыми, в заданном порядке.
// Неизвестные ключи пропускаются.
func OrderItems(items []MediaItem, order []string) []MediaItem {
	if len(order) == 0 {
		return items
	}
	used := make([]bool, len(items))
	out := make([]MediaItem, 0, len(items))
	for _, key := range order {
		for i, it := range items {
			if !used[i] && (it.ID == key || it.Filename == key) {
				used[i] = true
				out = append(out, it)
				break
			}
		}
	}
	for i, it := range items {
		if !used[i] {
			out = append(out, it)
		}
	}
	return out
}
