// Пакет service — операции над медиа зон, фоновые задачи и проверки зависимостей.
// media.go — листинг, загрузка, скачивание по URL, ссылки и удаление медиа.
package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/MiotyRan/Leashbot/internal/domain/model"
	"github.com/MiotyRan/Leashbot/internal/imageproc"
	"github.com/MiotyRan/Leashbot/internal/storage/attr"
	"github.com/MiotyRan/Leashbot/internal/storage/filestore"
)

var (
	// ErrNotFound — элемента нет в зоне.
	ErrNotFound = filestore.ErrNotFound
	// ErrTooLarge — файл больше допустимого.
	ErrTooLarge = filestore.ErrTooLarge
	// ErrUnsupportedType — расширение или MIME-тип вне белого списка.
	ErrUnsupportedType = errors.New("тип файла не поддерживается")
	// ErrInvalidURL — URL не http(s) или без хоста.
	ErrInvalidURL = errors.New("недопустимый URL")
	// ErrFetchFailed — удалённый сервер не отдал контент.
	ErrFetchFailed = errors.New("не удалось получить удалённый контент")
)

// DefaultItemDuration — длительность показа элемента карусели, секунды.
const DefaultItemDuration = 5

// remoteImageFactor — во сколько раз лимит скачиваемого изображения больше лимита изображения.
const remoteImageFactor = 5

// remoteImageReencode — скачанные изображения крупнее этого перекодируются.
const remoteImageReencode = 2 * 1024 * 1024

var (
	mediaOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "teaser_media_operations_total",
			Help: "Операции над медиа зон.",
		},
		[]string{"operation", "result"},
	)
	fetchedBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "teaser_media_fetched_bytes_total",
		Help: "Объём скачанного по URL контента в байтах.",
	})
)

// Recorder — получатель записей журнала действий.
type Recorder interface {
	Record(typ model.ActivityType, message, details string, sizeMB *float64)
}

// MediaOptions — лимиты и параметры скачивания.
type MediaOptions struct {
	MaxImageBytes int64
	MaxVideoBytes int64
	FetchTimeout  time.Duration
	UserAgent     string
	// WebPrefix — URL-префикс файлов медиа
	WebPrefix string
}

// MediaService — медиа зон экрана.
type MediaService struct {
	store    *filestore.FileStore
	opts     MediaOptions
	client   *http.Client
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewMediaService создаёт сервис медиа. client == nil — http.DefaultClient.
func NewMediaService(
	store *filestore.FileStore,
	opts MediaOptions,
	client *http.Client,
	recorder Recorder,
	logger *slog.Logger,
) *MediaService {
	if client == nil {
		client = http.DefaultClient
	}
	if opts.WebPrefix == "" {
		opts.WebPrefix = "/static/media"
	}
	return &MediaService{
		store:    store,
		opts:     opts,
		client:   client,
		recorder: recorder,
		logger:   logger.With(slog.String("component", "media_service")),
		now:      time.Now,
	}
}

// List возвращает медиа зоны, новые первыми: файлы и URL-ссылки.
// Файлу без attr.json при первом обнаружении назначается постоянный ID.
func (s *MediaService) List(zone model.Zone) ([]model.MediaItem, error) {
	entries, err := s.store.List(zone)
	if err != nil {
		return nil, err
	}
	dir := s.store.ZoneDir(zone)
	attrs, err := attr.ScanDir(dir)
	if err != nil {
		return nil, err
	}
	refs, err := attr.ScanURLRefs(dir)
	if err != nil {
		return nil, err
	}

	items := make([]model.MediaItem, 0, len(entries)+len(refs))
	for _, e := range entries {
		a := attrs[e.Name]
		if a == nil {
			a = s.adopt(zone, e)
		}
		items = append(items, model.MediaItem{
			ID:        a.ID,
			Zone:      zone,
			Kind:      e.Kind,
			Filename:  e.Name,
			Title:     titleOr(a.Title, e.Name),
			Src:       s.src(zone, e.Name),
			Size:      e.Size,
			Duration:  DefaultItemDuration,
			Exists:    true,
			CreatedAt: e.ModTime,
			SourceURL: a.SourceURL,
		})
	}
	for slug, ref := range refs {
		items = append(items, model.MediaItem{
			ID:        ref.ID,
			Zone:      zone,
			Kind:         model.KindURL,
			Filename:     slug,
			Title:        titleOr(ref.Title, slug),
			Src:          ref.URL,
			Duration:     DefaultItemDuration,
			Exists:       true,
			CreatedAt:    ref.CreatedAt,
			SourceURL:    ref.URL,
			DetectedKind: detectedKind(ref),
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	for i := range items {
		items[i].Order = i
	}
	return items, nil
}

// adopt создаёт attr.json для файла, положенного в зону в обход загрузки.
func (s *MediaService) adopt(zone model.Zone, e filestore.Entry) *model.MediaAttr {
	a := &model.MediaAttr{
		ID:        uuid.NewString(),
		Zone:      zone,
		Kind:      e.Kind,
		Filename:  e.Name,
		CreatedAt: e.ModTime.UTC(),
	}
	if err := attr.Write(attr.AttrFilePath(e.FullPath), a); err != nil {
		s.logger.Warn("Не удалось записать attr.json, ID не сохранён",
			slog.String("zone", string(zone)),
			slog.String("filename", e.Name),
			slog.String("error", err.Error()),
		)
	}
	return a
}

// UploadFile — файл из multipart-запроса.
type UploadFile struct {
	Filename    string
	ContentType string
	Reader      io.Reader
}

// UploadedFile — сохранённый файл.
type UploadedFile struct {
	ID           string     `json:"id"`
	Filename     string     `json:"filename"`
	OriginalName string     `json:"original_name"`
	Kind         model.Kind `json:"type"`
	Size         int64      `json:"size"`
}

// RejectedFile — файл, не прошедший проверку.
type RejectedFile struct {
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
	Err      error  `json:"-"`
}

// SaveUploads сохраняет пакет файлов в зону. Непрошедшие проверку файлы
// пропускаются и возвращаются в rejected. Для пакета пишется одна запись
// журнала "upload" с суммарным размером.
func (s *MediaService) SaveUploads(ctx context.Context, zone model.Zone, files []UploadFile) (uploaded []UploadedFile, rejected []RejectedFile) {
	var total int64
	for _, f := range files {
		res, err := s.SaveUpload(ctx, zone, f)
		if err != nil {
			rejected = append(rejected, RejectedFile{Filename: f.Filename, Reason: err.Error(), Err: err})
			continue
		}
		uploaded = append(uploaded, *res)
		total += res.Size
	}

	if len(uploaded) > 0 && s.recorder != nil {
		mb := bytesToMB(total)
		s.recorder.Record(model.ActivityUpload,
			fmt.Sprintf("%d fichier(s) uploadé(s) dans %s", len(uploaded), zone.Title()),
			joinNames(uploaded), &mb)
	}
	return uploaded, rejected
}

// SaveUpload проверяет и сохраняет один файл.
// Совпадение имени даёт новое имя с суффиксом; существующий файл не перезаписывается.
func (s *MediaService) SaveUpload(ctx context.Context, zone model.Zone, f UploadFile) (*UploadedFile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	kind, ok := model.KindFromFilename(f.Filename)
	if !ok {
		mediaOperationsTotal.WithLabelValues("upload", "rejected").Inc()
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, filepath.Ext(f.Filename))
	}
	if !model.ContentTypeAllowed(f.Filename, f.ContentType) {
		mediaOperationsTotal.WithLabelValues("upload", "rejected").Inc()
		return nil, fmt.Errorf("%w: %s не соответствует %s", ErrUnsupportedType, f.ContentType, filepath.Ext(f.Filename))
	}

	saved, err := s.store.Save(zone, f.Filename, f.Reader, s.opts.MaxVideoBytes)
	if err != nil {
		mediaOperationsTotal.WithLabelValues("upload", "error").Inc()
		s.logger.Error("Ошибка сохранения загруженного файла",
			slog.String("zone", string(zone)),
			slog.String("filename", f.Filename),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	size, checksum := saved.Size, saved.Checksum
	if kind == model.KindImage {
		size, checksum = s.postProcessImage(zone, saved)
	}

	a := &model.MediaAttr{
		ID:               uuid.NewString(),
		Zone:             zone,
		Kind:             kind,
		Filename:         saved.Name,
		OriginalFilename: f.Filename,
		ContentType:      f.ContentType,
		Checksum:         checksum,
		CreatedAt:        s.now().UTC(),
	}
	if err := attr.Write(attr.AttrFilePath(saved.FullPath), a); err != nil {
		// Файл уже сохранён: без attr.json ID будет назначен при листинге
		s.logger.Warn("Ошибка записи attr.json",
			slog.String("filename", saved.Name),
			slog.String("error", err.Error()),
		)
	}

	mediaOperationsTotal.WithLabelValues("upload", "success").Inc()
	s.logger.Info("Файл загружен",
		slog.String("zone", string(zone)),
		slog.String("filename", saved.Name),
		slog.Int64("size", size),
	)
	return &UploadedFile{
		ID:           a.ID,
		Filename:     saved.Name,
		OriginalName: f.Filename,
		Kind:         kind,
		Size:         size,
	}, nil
}

// postProcessImage: миниатюра для изображений больше кадра, перекодирование
// с качеством 75 для файлов больше лимита (если результат меньше исходника).
// Ошибки обработки не отменяют загрузку.
func (s *MediaService) postProcessImage(zone model.Zone, saved *filestore.SaveResult) (int64, string) {
	size, checksum := saved.Size, saved.Checksum

	data, err := os.ReadFile(saved.FullPath)
	if err != nil {
		return size, checksum
	}
	info, err := imageproc.Inspect(data)
	if err != nil {
		s.logger.Warn("Изображение не распознано",
			slog.String("filename", saved.Name),
			slog.String("error", err.Error()),
		)
		return size, checksum
	}

	if info.Exceeds() {
		if err := s.writeThumbnail(zone, saved.Name, data); err != nil {
			s.logger.Warn("Ошибка создания миниатюры",
				slog.String("filename", saved.Name),
				slog.String("error", err.Error()),
			)
		}
	}

	if s.opts.MaxImageBytes > 0 && size > s.opts.MaxImageBytes {
		res, err := imageproc.Fit(data, imageproc.OversizeQuality)
		if err != nil {
			s.logger.Warn("Ошибка оптимизации изображения",
				slog.String("filename", saved.Name),
				slog.String("error", err.Error()),
			)
			return size, checksum
		}
		sameFormat := strings.EqualFold(res.Ext, filepath.Ext(saved.Name)) ||
			(res.Ext == ".jpg" && strings.EqualFold(filepath.Ext(saved.Name), ".jpeg"))
		if sameFormat && int64(len(res.Data)) < size {
			if err := s.store.Replace(zone, saved.Name, res.Data); err == nil {
				s.logger.Info("Изображение оптимизировано",
					slog.String("filename", saved.Name),
					slog.Int64("before", size),
					slog.Int("after", len(res.Data)),
				)
				sum := sha256.Sum256(res.Data)
				return int64(len(res.Data)), hex.EncodeToString(sum[:])
			}
		}
	}
	return size, checksum
}

func (s *MediaService) writeThumbnail(zone model.Zone, name string, data []byte) error {
	thumb, err := imageproc.Thumbnail(data)
	if err != nil {
		return err
	}
	dir := s.store.ThumbDir(zone)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("не удалось создать директорию миниатюр: %w", err)
	}
	return filestore.WriteAtomic(filepath.Join(dir, name), thumb)
}

// FetchRemoteAndStore скачивает изображение или видео по URL в зону.
// Изображения читаются целиком и вписываются в 1920×1080; видео пишутся потоком
// с жёстким лимитом: Content-Length больше лимита отклоняется до чтения тела,
// превышение во время чтения удаляет частичный файл.
func (s *MediaService) FetchRemoteAndStore(ctx context.Context, zone model.Zone, rawURL, title string) (*model.MediaItem, error) {
	u, err := parseRemoteURL(rawURL)
	if err != nil {
		return nil, err
	}

	if s.opts.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.FetchTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if s.opts.UserAgent != "" {
		req.Header.Set("User-Agent", s.opts.UserAgent)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		mediaOperationsTotal.WithLabelValues("fetch", "error").Inc()
		s.logger.Warn("Ошибка скачивания",
			slog.String("url", rawURL),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		mediaOperationsTotal.WithLabelValues("fetch", "error").Inc()
		return nil, fmt.Errorf("%w: HTTP %d", ErrFetchFailed, resp.StatusCode)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	ext, known := model.ExtensionForContentType(mediaType)
	name := remoteSlug(title, "media", rawURL)

	var (
		saved *filestore.SaveResult
		kind  model.Kind
	)
	switch {
	case strings.HasPrefix(mediaType, "image/") && known:
		kind = model.KindImage
		saved, err = s.storeRemoteImage(zone, name, ext, resp)
	case strings.HasPrefix(mediaType, "video/") && known:
		kind = model.KindVideo
		saved, err = s.storeRemoteVideo(zone, name+ext, resp)
	default:
		err = fmt.Errorf("%w: %q", ErrUnsupportedType, mediaType)
	}
	if err != nil {
		mediaOperationsTotal.WithLabelValues("fetch", "rejected").Inc()
		s.logger.Warn("Удалённый контент отклонён",
			slog.String("url", rawURL),
			slog.String("content_type", mediaType),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	fetchedBytesTotal.Add(float64(saved.Size))

	a := &model.MediaAttr{
		ID:          uuid.NewString(),
		Zone:        zone,
		Kind:        kind,
		Filename:    saved.Name,
		Title:       strings.TrimSpace(title),
		SourceURL:   rawURL,
		ContentType: mediaType,
		Checksum:    saved.Checksum,
		CreatedAt:   s.now().UTC(),
	}
	if err := attr.Write(attr.AttrFilePath(saved.FullPath), a); err != nil {
		s.logger.Warn("Ошибка записи attr.json",
			slog.String("filename", saved.Name),
			slog.String("error", err.Error()),
		)
	}

	mediaOperationsTotal.WithLabelValues("fetch", "success").Inc()
	if s.recorder != nil {
		mb := bytesToMB(saved.Size)
		s.recorder.Record(model.ActivityMedia, "Média téléchargé: "+saved.Name, rawURL, &mb)
	}
	s.logger.Info("Удалённый контент сохранён",
		slog.String("zone", string(zone)),
		slog.String("filename", saved.Name),
		slog.Int64("size", saved.Size),
	)

	return &model.MediaItem{
		ID:        a.ID,
		Zone:      zone,
		Kind:      kind,
		Filename:  saved.Name,
		Title:     titleOr(a.Title, saved.Name),
		Src:       s.src(zone, saved.Name),
		Size:      saved.Size,
		Duration:  DefaultItemDuration,
		Exists:    true,
		CreatedAt: a.CreatedAt,
		SourceURL: rawURL,
	}, nil
}

func (s *MediaService) storeRemoteImage(zone model.Zone, name, ext string, resp *http.Response) (*filestore.SaveResult, error) {
	limit := s.opts.MaxImageBytes * remoteImageFactor
	if limit <= 0 {
		limit = 50 * 1024 * 1024
	}
	if resp.ContentLength > limit {
		return nil, fmt.Errorf("%w: Content-Length %d > %d", ErrTooLarge, resp.ContentLength, limit)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: больше %d байт", ErrTooLarge, limit)
	}
	if sniffed := imageproc.Sniff(data); !strings.HasPrefix(sniffed, "image/") {
		return nil, fmt.Errorf("%w: содержимое %s", ErrUnsupportedType, sniffed)
	}

	info, err := imageproc.Inspect(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedType, err)
	}
	if info.Exceeds() || len(data) > remoteImageReencode {
		res, err := imageproc.Fit(data, imageproc.DownloadQuality)
		if err != nil {
			return nil, err
		}
		data, ext = res.Data, res.Ext
	}
	return s.store.Save(zone, name+ext, bytes.NewReader(data), 0)
}

func (s *MediaService) storeRemoteVideo(zone model.Zone, name string, resp *http.Response) (*filestore.SaveResult, error) {
	limit := s.opts.MaxVideoBytes
	if limit > 0 && resp.ContentLength > limit {
		return nil, fmt.Errorf("%w: Content-Length %d > %d", ErrTooLarge, resp.ContentLength, limit)
	}
	return s.store.Save(zone, name, resp.Body, limit)
}

// AddURLReference сохраняет ссылку на удалённый контент без скачивания.
func (s *MediaService) AddURLReference(zone model.Zone, rawURL, title string) (*model.MediaItem, error) {
	if _, err := parseRemoteURL(rawURL); err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	slug := remoteSlug(title, "url", rawURL)

	ref := &model.MediaAttr{
		ID:           uuid.NewString(),
		Zone:         zone,
		Kind:         model.KindURL,
		Title:        title,
		URL:          rawURL,
		DetectedKind: model.DetectURLKind(rawURL),
		CreatedAt:    s.now().UTC(),
	}
	if err := attr.Write(attr.URLRefPath(s.store.ZoneDir(zone), slug), ref); err != nil {
		mediaOperationsTotal.WithLabelValues("add_url", "error").Inc()
		return nil, err
	}

	mediaOperationsTotal.WithLabelValues("add_url", "success").Inc()
	if s.recorder != nil {
		s.recorder.Record(model.ActivityMedia, "URL ajoutée: "+titleOr(title, slug), rawURL, nil)
	}
	return &model.MediaItem{
		ID:        ref.ID,
		Zone:      zone,
		Kind:         model.KindURL,
		Filename:     slug,
		Title:        titleOr(title, slug),
		Src:          rawURL,
		Duration:     DefaultItemDuration,
		Exists:       true,
		CreatedAt:    ref.CreatedAt,
		SourceURL:    rawURL,
		DetectedKind: ref.DetectedKind,
	}, nil
}

// Delete удаляет элемент по имени файла или по ID.
func (s *MediaService) Delete(zone model.Zone, key string) (int64, error) {
	freed, err := s.DeleteItem(zone, key)
	if errors.Is(err, ErrNotFound) {
		return s.DeleteByID(zone, key)
	}
	return freed, err
}

// DeleteItem удаляет файл зоны вместе с attr.json и миниатюрой и возвращает
// освобождённый размер. Нет файла — ErrNotFound, директория не меняется.
func (s *MediaService) DeleteItem(zone model.Zone, filename string) (int64, error) {
	if filename == "" || filename != filepath.Base(filename) || strings.HasPrefix(filename, ".") {
		return 0, fmt.Errorf("%w: %q", ErrNotFound, filename)
	}
	if _, ok := model.KindFromFilename(filename); !ok {
		return 0, fmt.Errorf("%w: %s/%s", ErrNotFound, zone, filename)
	}

	freed, err := s.store.Delete(zone, filename)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			mediaOperationsTotal.WithLabelValues("delete", "error").Inc()
			s.logger.Error("Ошибка удаления файла",
				slog.String("zone", string(zone)),
				slog.String("filename", filename),
				slog.String("error", err.Error()),
			)
		}
		return 0, err
	}
	s.removeCompanions(zone, filename)

	mediaOperationsTotal.WithLabelValues("delete", "success").Inc()
	if s.recorder != nil {
		mb := bytesToMB(freed)
		s.recorder.Record(model.ActivityMedia, "Média supprimé: "+filename, string(zone), &mb)
	}
	s.logger.Info("Файл удалён",
		slog.String("zone", string(zone)),
		slog.String("filename", filename),
		slog.Int64("freed", freed),
	)
	return freed, nil
}

// DeleteByID находит элемент по постоянному ID (файл или URL-ссылка) и удаляет его.
func (s *MediaService) DeleteByID(zone model.Zone, id string) (int64, error) {
	dir := s.store.ZoneDir(zone)
	attrs, err := attr.ScanDir(dir)
	if err != nil {
		return 0, err
	}
	for name, a := range attrs {
		if a.ID == id {
			return s.DeleteItem(zone, name)
		}
	}

	refs, err := attr.ScanURLRefs(dir)
	if err != nil {
		return 0, err
	}
	for slug, ref := range refs {
		if ref.ID == id || slug == id {
			if err := attr.Delete(attr.URLRefPath(dir, slug)); err != nil {
				return 0, err
			}
			mediaOperationsTotal.WithLabelValues("delete", "success").Inc()
			if s.recorder != nil {
				s.recorder.Record(model.ActivityMedia, "URL supprimée: "+titleOr(ref.Title, slug), ref.URL, nil)
			}
			return 0, nil
		}
	}
	return 0, fmt.Errorf("%w: %s/%s", ErrNotFound, zone, id)
}

// MediaCleanupResult — итог очистки старых медиа.
type MediaCleanupResult struct {
	DeletedFiles int     `json:"deleted_files"`
	FreedBytes   int64   `json:"freed_bytes"`
	FreedMB      float64 `json:"freed_mb"`
}

// CleanupOlderThan удаляет файлы медиа, изменённые раньше чем days дней назад.
// Директории зон и .gitkeep не трогаются.
func (s *MediaService) CleanupOlderThan(ctx context.Context, days int) (*MediaCleanupResult, error) {
	if days <= 0 {
		return nil, fmt.Errorf("days должен быть положительным: %d", days)
	}
	cutoff := s.now().AddDate(0, 0, -days)
	res := &MediaCleanupResult{}

	for _, zone := range model.AllZones {
		entries, err := s.store.List(zone)
		if err != nil {
			return res, err
		}
		for _, e := range entries {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			if !e.ModTime.Before(cutoff) {
				continue
			}
			freed, err := s.store.Delete(zone, e.Name)
			if err != nil {
				s.logger.Warn("Не удалось удалить старый файл",
					slog.String("zone", string(zone)),
					slog.String("filename", e.Name),
					slog.String("error", err.Error()),
				)
				continue
			}
			s.removeCompanions(zone, e.Name)
			res.DeletedFiles++
			res.FreedBytes += freed
		}
	}
	res.FreedMB = bytesToMB(res.FreedBytes)

	if s.recorder != nil {
		mb := res.FreedMB
		s.recorder.Record(model.ActivityCleanup,
			fmt.Sprintf("Nettoyage terminé: %d fichier(s) supprimé(s)", res.DeletedFiles),
			fmt.Sprintf("plus de %d jours", days), &mb)
	}
	s.logger.Info("Очистка медиа завершена",
		slog.Int("days", days),
		slog.Int("deleted_files", res.DeletedFiles),
		slog.Int64("freed_bytes", res.FreedBytes),
	)
	return res, nil
}

// removeCompanions удаляет attr.json и миниатюру файла.
func (s *MediaService) removeCompanions(zone model.Zone, name string) {
	_ = attr.Delete(attr.AttrFilePath(s.store.Path(zone, name)))
	thumb := filepath.Join(s.store.ThumbDir(zone), name)
	if err := os.Remove(thumb); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("Не удалось удалить миниатюру",
			slog.String("path", thumb),
			slog.String("error", err.Error()),
		)
	}
}

func (s *MediaService) src(zone model.Zone, name string) string {
	return strings.TrimSuffix(s.opts.WebPrefix, "/") + "/" + string(zone) + "/" + url.PathEscape(name)
}

func parseRemoteURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	return u, nil
}

// maxSlugTitleRunes — длина заголовка в имени файла; хеш адреса всегда остаётся в имени.
const maxSlugTitleRunes = 60

// remoteSlug — безопасный заголовок (или fallback), обрезанный до maxSlugTitleRunes, плюс "_" и хеш адреса.
func remoteSlug(title, fallback, rawURL string) string {
	base := filestore.Sanitize(strings.TrimSpace(title))
	if strings.TrimSpace(title) == "" {
		base = fallback
	}
	if runes := []rune(base); len(runes) > maxSlugTitleRunes {
		base = string(runes[:maxSlugTitleRunes])
	}
	return base + "_" + urlHash(rawURL)
}

// urlHash — первые 8 hex-символов SHA-256 адреса.
func urlHash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])[:8]
}

// detectedKind — сохранённый вид ссылки; для старых записей определяется по URL.
func detectedKind(ref *model.MediaAttr) model.Kind {
	if ref.DetectedKind != "" {
		return ref.DetectedKind
	}
	return model.DetectURLKind(ref.URL)
}

func titleOr(title, filename string) string {
	if title != "" {
		return title
	}
	return model.TitleFromFilename(filename)
}

func bytesToMB(n int64) float64 {
	return float64(n*100/(1024*1024)) / 100
}

func joinNames(files []UploadedFile) string {
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Filename
	}
	return strings.Join(names, ", ")
}
