// Пакет selfie — фото клиентов, которые внешний модуль съёмки кладёт
// в месячные папки YYYY-MM. Здесь файлы только читаются и удаляются целыми месяцами.
package selfie

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/MiotyRan/Leashbot/internal/domain/model"
)

// Prometheus-метрики кэша последних селфи.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "teaser_selfie_cache_hits_total",
		Help: "Попадания в кэш последних селфи.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "teaser_selfie_cache_misses_total",
		Help: "Промахи кэша последних селфи.",
	})
)

// ErrInvalidMonth — метка месяца не в формате YYYY-MM.
var ErrInvalidMonth = errors.New("недопустимый месяц")

// minFileSize — файлы меньше 1 КБ считаются повреждёнными.
const minFileSize = 1024

// recentWindow — селфи моложе этого считаются свежими.
const recentWindow = 24 * time.Hour

var allowedExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
}

// Recorder — получатель записей журнала действий.
type Recorder interface {
	Record(typ model.ActivityType, message, details string, sizeMB *float64)
}

// Options — параметры хранилища.
type Options struct {
	CacheTTL     time.Duration
	CacheSize    int
	DefaultLimit int
	// WebPrefix — URL-префикс файлов селфи для страниц
	WebPrefix string
}

// Store — хранилище селфи.
type Store struct {
	root         string
	webPrefix    string
	defaultLimit int
	cache        *expirable.LRU[string, []model.SelfieItem]
	recorder     Recorder
	logger       *slog.Logger
	now          func() time.Time
}

// File — файл селфи для агрегатов статистики.
type File struct {
	Month   string
	Name    string
	Size    int64
	ModTime time.Time
}

// New создаёт хранилище и папку текущего месяца.
func New(root string, opts Options, recorder Recorder, logger *slog.Logger) (*Store, error) {
	if opts.CacheSize <= 0 {
		opts.CacheSize = 128
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Minute
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 3
	}
	if opts.WebPrefix == "" {
		opts.WebPrefix = "/static/selfies"
	}

	s := &Store{
		root:         root,
		webPrefix:    strings.TrimSuffix(opts.WebPrefix, "/"),
		defaultLimit: opts.DefaultLimit,
		cache:        expirable.NewLRU[string, []model.SelfieItem](opts.CacheSize, nil, opts.CacheTTL),
		recorder:     recorder,
		logger:       logger.With(slog.String("component", "selfie")),
		now:          time.Now,
	}

	dir := filepath.Join(root, s.now().Format(model.MonthLayout))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию селфи %s: %w", dir, err)
	}
	return s, nil
}

// Root возвращает корневую директорию селфи.
func (s *Store) Root() string {
	return s.root
}

// Latest возвращает до limit последних селфи месяца, новые первыми.
// Пустой month — текущий месяц, limit <= 0 — лимит по умолчанию.
// Результат кэшируется по паре (limit, month).
func (s *Store) Latest(limit int, month string) ([]model.SelfieItem, error) {
	if limit <= 0 {
		limit = s.defaultLimit
	}
	if month == "" {
		month = s.now().Format(model.MonthLayout)
	}
	if !validMonth(month) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMonth, month)
	}

	key := strconv.Itoa(limit) + "|" + month
	if items, ok := s.cache.Get(key); ok {
		cacheHitsTotal.Inc()
		return slices.Clone(items), nil
	}
	cacheMissesTotal.Inc()

	items, err := s.ByMonth(month)
	if err != nil {
		return nil, err
	}
	if len(items) > limit {
		items = items[:limit]
	}
	s.cache.Add(key, slices.Clone(items))

	s.logger.Debug("Селфи прочитаны с диска",
		slog.String("month", month),
		slog.Int("count", len(items)),
	)
	return items, nil
}

// ByMonth возвращает все селфи месяца, новые первыми. Нет папки — пустой список.
func (s *Store) ByMonth(month string) ([]model.SelfieItem, error) {
	if !validMonth(month) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMonth, month)
	}
	files, err := s.monthFiles(month)
	if err != nil {
		return nil, err
	}
	items := make([]model.SelfieItem, 0, len(files))
	for _, f := range files {
		items = append(items, s.item(f))
	}
	return items, nil
}

// AvailableMonths — месяцы, где есть хотя бы одно селфи, новые первыми.
func (s *Store) AvailableMonths() ([]string, error) {
	months, err := s.months()
	if err != nil {
		return nil, err
	}
	result := make([]string, 0, len(months))
	for _, m := range months {
		files, err := s.monthFiles(m)
		if err != nil {
			return nil, err
		}
		if len(files) > 0 {
			result = append(result, m)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(result)))
	return result, nil
}

// Search ищет селфи по имени клиента или имени файла без учёта регистра.
func (s *Store) Search(query string, limit int) ([]model.SelfieItem, error) {
	if limit <= 0 {
		limit = 10
	}
	q := strings.ToLower(strings.TrimSpace(query))

	files, err := s.Files()
	if err != nil {
		return nil, err
	}

	var result []model.SelfieItem
	for _, f := range files {
		name := InferClientName(f.Name)
		if strings.Contains(strings.ToLower(f.Name), q) ||
			(name != nil && strings.Contains(strings.ToLower(*name), q)) {
			result = append(result, s.item(f))
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].TakenAt.After(result[j].TakenAt)
	})
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Files перечисляет все валидные селфи всех месяцев.
func (s *Store) Files() ([]File, error) {
	months, err := s.months()
	if err != nil {
		return nil, err
	}
	var all []File
	for _, m := range months {
		files, err := s.monthFiles(m)
		if err != nil {
			return nil, err
		}
		all = append(all, files...)
	}
	return all, nil
}

// MonthStats — агрегаты одного месяца.
type MonthStats struct {
	Count  int     `json:"count"`
	SizeMB float64 `json:"size_mb"`
	Latest string  `json:"latest"`
}

// LatestRef — последний снятый селфи.
type LatestRef struct {
	Filename string    `json:"filename"`
	Month    string    `json:"month"`
	TakenAt  time.Time `json:"taken_at"`
}

// Stats — статистика селфи.
type Stats struct {
	TotalSelfies      int                   `json:"total_selfies"`
	MonthsWithSelfies int                   `json:"months_with_selfies"`
	LatestSelfie      *LatestRef            `json:"latest_selfie"`
	MonthlyStats      map[string]MonthStats `json:"monthly_stats"`
	RecentCount       int                   `json:"recent_count"`
	TodayCount        int                   `json:"today_count"`
	WeekCount         int                   `json:"week_count"`
	TotalSizeMB       float64               `json:"total_size_mb"`
	TotalBytes        int64                 `json:"-"`
}

// Stats обходит все месяцы: количество и размер по месяцам и всего,
// число селфи за 24 часа, за сегодня и за календарную неделю с понедельника.
func (s *Store) Stats() (*Stats, error) {
	files, err := s.Files()
	if err != nil {
		return nil, err
	}

	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	weekStart := today.AddDate(0, 0, -((int(today.Weekday()) + 6) % 7))

	st := &Stats{MonthlyStats: make(map[string]MonthStats)}
	monthBytes := make(map[string]int64)
	monthLatest := make(map[string]File)

	for _, f := range files {
		st.TotalSelfies++
		st.TotalBytes += f.Size
		monthBytes[f.Month] += f.Size

		ms := st.MonthlyStats[f.Month]
		ms.Count++
		st.MonthlyStats[f.Month] = ms
		if cur, ok := monthLatest[f.Month]; !ok || f.ModTime.After(cur.ModTime) {
			monthLatest[f.Month] = f
		}

		if now.Sub(f.ModTime) < recentWindow {
			st.RecentCount++
		}
		if !f.ModTime.Before(today) {
			st.TodayCount++
		}
		if !f.ModTime.Before(weekStart) {
			st.WeekCount++
		}
		if st.LatestSelfie == nil || f.ModTime.After(st.LatestSelfie.TakenAt) {
			st.LatestSelfie = &LatestRef{Filename: f.Name, Month: f.Month, TakenAt: f.ModTime}
		}
	}

	for m, ms := range st.MonthlyStats {
		ms.SizeMB = round2(float64(monthBytes[m]) / (1024 * 1024))
		ms.Latest = monthLatest[m].Name
		st.MonthlyStats[m] = ms
	}
	st.MonthsWithSelfies = len(st.MonthlyStats)
	st.TotalSizeMB = round2(float64(st.TotalBytes) / (1024 * 1024))
	return st, nil
}

// CleanupResult — итог очистки.
type CleanupResult struct {
	DeletedFiles       int     `json:"deleted_files"`
	DeletedDirectories int     `json:"deleted_directories"`
	SizeFreedMB        float64 `json:"size_freed_mb"`
	CutoffDate         string  `json:"cutoff_date"`
}

// CleanupOlderThan удаляет селфи целыми месяцами: каждая папка, чья метка
// строго меньше (now − keepMonths·30 дней) в формате YYYY-MM, очищается полностью,
// даже если часть файлов внутри моложе. .gitkeep сохраняется.
func (s *Store) CleanupOlderThan(keepMonths int) (*CleanupResult, error) {
	if keepMonths < 0 {
		return nil, fmt.Errorf("keep_months должен быть неотрицательным: %d", keepMonths)
	}
	cutoff := s.now().AddDate(0, 0, -keepMonths*30).Format(model.MonthLayout)

	months, err := s.months()
	if err != nil {
		return nil, err
	}

	res := &CleanupResult{CutoffDate: cutoff}
	var freed int64
	for _, m := range months {
		if m >= cutoff {
			continue
		}
		dir := filepath.Join(s.root, m)
		entries, err := os.ReadDir(dir)
		if err != nil {
			s.logger.Warn("Не удалось прочитать папку месяца",
				slog.String("month", m),
				slog.String("error", err.Error()),
			)
			continue
		}

		remaining := 0
		for _, de := range entries {
			if de.IsDir() || de.Name() == ".gitkeep" {
				if de.IsDir() {
					remaining++
				}
				continue
			}
			path := filepath.Join(dir, de.Name())
			info, err := de.Info()
			if err == nil {
				err = os.Remove(path)
			}
			if err != nil {
				remaining++
				s.logger.Warn("Не удалось удалить селфи",
					slog.String("path", path),
					slog.String("error", err.Error()),
				)
				continue
			}
			freed += info.Size()
			res.DeletedFiles++
		}

		if remaining == 0 {
			res.DeletedDirectories++
			// Папка без .gitkeep удаляется, с .gitkeep остаётся пустой
			_ = os.Remove(dir)
		}
	}
	res.SizeFreedMB = round2(float64(freed) / (1024 * 1024))

	s.cache.Purge()

	s.logger.Info("Очистка селфи завершена",
		slog.String("cutoff", cutoff),
		slog.Int("deleted_files", res.DeletedFiles),
		slog.Int("deleted_directories", res.DeletedDirectories),
	)
	if s.recorder != nil {
		size := res.SizeFreedMB
		s.recorder.Record(model.ActivitySelfie,
			fmt.Sprintf("Nettoyage selfies: %d fichier(s) supprimé(s)", res.DeletedFiles),
			"avant "+cutoff, &size)
	}
	return res, nil
}

// Connectivity — результат проверки модуля селфи.
type Connectivity struct {
	Success         bool              `json:"success"`
	Error           string            `json:"error,omitempty"`
	Path            string            `json:"path"`
	TotalSelfies    int               `json:"total_selfies"`
	AvailableMonths int               `json:"available_months"`
	LatestSelfie    *model.SelfieItem `json:"latest_selfie"`
	StorageMB       float64           `json:"storage_mb"`
}

// TestConnectivity проверяет доступность папки селфи и собирает сводку.
func (s *Store) TestConnectivity() *Connectivity {
	c := &Connectivity{Path: s.root}
	if info, err := os.Stat(s.root); err != nil || !info.IsDir() {
		c.Error = "Dossier base inexistant: " + s.root
		return c
	}

	st, err := s.Stats()
	if err != nil {
		c.Error = err.Error()
		return c
	}
	months, err := s.AvailableMonths()
	if err != nil {
		c.Error = err.Error()
		return c
	}
	latest, err := s.Latest(1, "")
	if err != nil {
		c.Error = err.Error()
		return c
	}

	c.Success = true
	c.TotalSelfies = st.TotalSelfies
	c.AvailableMonths = len(months)
	c.StorageMB = st.TotalSizeMB
	if len(latest) > 0 {
		c.LatestSelfie = &latest[0]
	}
	return c
}

// InvalidateCache очищает кэш последних селфи.
func (s *Store) InvalidateCache() {
	s.cache.Purge()
}

// InferClientName извлекает имя клиента из имени файла.
// Меньше двух сегментов через "_" — имени нет.
// selfie_<Имя>_..., <Имя>_..._selfie, <Имя>_<цифры>, иначе первый сегмент, если он не число.
func InferClientName(filename string) *string {
	base := filename
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	parts := strings.Split(base, "_")
	if len(parts) < 2 {
		return nil
	}

	var name string
	switch {
	case strings.EqualFold(parts[0], "selfie"):
		name = parts[1]
	case strings.EqualFold(parts[len(parts)-1], "selfie"):
		name = parts[0]
	case isDigits(parts[len(parts)-1]):
		name = parts[0]
	case !isDigits(parts[0]):
		name = parts[0]
	}
	if name == "" || isDigits(name) {
		return nil
	}
	name = capitalize(name)
	return &name
}

// months — имена папок вида YYYY-MM.
func (s *Store) months() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка чтения директории селфи %s: %w", s.root, err)
	}
	var months []string
	for _, de := range entries {
		if de.IsDir() && validMonth(de.Name()) {
			months = append(months, de.Name())
		}
	}
	return months, nil
}

// monthFiles — валидные селфи месяца, новые первыми.
func (s *Store) monthFiles(month string) ([]File, error) {
	dir := filepath.Join(s.root, month)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка чтения папки месяца %s: %w", dir, err)
	}

	files := make([]File, 0, len(entries))
	for _, de := range entries {
		name := de.Name()
		if de.IsDir() || strings.HasPrefix(name, ".") || !allowedExtensions[strings.ToLower(filepath.Ext(name))] {
			continue
		}
		info, err := de.Info()
		if err != nil || info.Size() < minFileSize {
			continue
		}
		files = append(files, File{Month: month, Name: name, Size: info.Size(), ModTime: info.ModTime()})
	}
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].ModTime.After(files[j].ModTime)
	})
	return files, nil
}

func (s *Store) item(f File) model.SelfieItem {
	return model.SelfieItem{
		Filename:    f.Name,
		Path:        s.webPrefix + "/" + f.Month + "/" + f.Name,
		ClientName:  InferClientName(f.Name),
		TakenAt:     f.ModTime,
		FileSize:    f.Size,
		FileSizeKB:  round2(float64(f.Size) / 1024),
		Month:       f.Month,
		IsRecent:    s.now().Sub(f.ModTime) < recentWindow,
		DisplayTime: f.ModTime.Format("15:04"),
		DisplayDate: f.ModTime.Format("02/01/2006"),
	}
}

func validMonth(m string) bool {
	_, err := time.Parse(model.MonthLayout, m)
	return err == nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// capitalize — первая буква заглавная, остальные строчные.
func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
