// Пакет stats — агрегаты использования медиа и селфи.
// Состояния не хранит: каждый вызов заново обходит файловую систему.
package stats

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/MiotyRan/Leashbot/internal/domain/model"
	"github.com/MiotyRan/Leashbot/internal/selfie"
	"github.com/MiotyRan/Leashbot/internal/storage/filestore"
)

// ErrInvalidPeriod — неизвестный период временного ряда.
var ErrInvalidPeriod = errors.New("недопустимый период")

// Периоды временного ряда.
const (
	Period7Days  = "7d"
	Period30Days = "30d"
	PeriodMonth  = "month"
)

const bytesPerMB = 1024 * 1024

// roundThreshold — дробная часть, начиная с которой мегабайты округляются вверх.
const roundThreshold = 0.55

// RoundMB округляет мегабайты: целая часть + 1, если дробная часть ≥ 0.55, иначе целая часть.
// 4.54 → 4, 4.55 → 5, 4.549999 → 4. Сравнение с допуском 1e-9 компенсирует
// двоичное представление (4.55 хранится как 4.5499999999999998).
func RoundMB(mb float64) float64 {
	if mb < 0 {
		return -RoundMB(-mb)
	}
	whole := math.Floor(mb)
	if mb-whole >= roundThreshold-1e-9 {
		return whole + 1
	}
	return whole
}

// MediaSource — листинг медиа по зонам.
type MediaSource interface {
	List(zone model.Zone) ([]filestore.Entry, error)
	Usage(zone model.Zone) (size int64, files int, dirs int, err error)
	ZoneDir(zone model.Zone) string
}

// SelfieSource — перечень селфи.
type SelfieSource interface {
	Files() ([]selfie.File, error)
	Root() string
}

// Aggregator вычисляет статистику.
type Aggregator struct {
	media   MediaSource
	selfies SelfieSource
	now     func() time.Time
}

// New создаёт Aggregator.
func New(media MediaSource, selfies SelfieSource) *Aggregator {
	return &Aggregator{media: media, selfies: selfies, now: time.Now}
}

// Bucket — количество и объём группы файлов.
type Bucket struct {
	Files int     `json:"files"`
	Bytes int64   `json:"bytes"`
	MB    float64 `json:"mb"`
}

func (b *Bucket) add(size int64) {
	b.Files++
	b.Bytes += size
}

func (b *Bucket) finish() {
	b.MB = RoundMB(float64(b.Bytes) / bytesPerMB)
}

// Totals — количество и объём по зонам и по видам.
type Totals struct {
	Zones       map[model.Zone]Bucket `json:"zones"`
	Images      Bucket                `json:"images"`
	Videos      Bucket                `json:"videos"`
	Selfies     Bucket                `json:"selfies"`
	TotalFiles  int                   `json:"total_files"`
	TotalMB     float64               `json:"total_mb"`
	GeneratedAt time.Time             `json:"generated_at"`
}

// Totals обходит зоны (не рекурсивно) и все месяцы селфи.
func (a *Aggregator) Totals() (*Totals, error) {
	t := &Totals{Zones: make(map[model.Zone]Bucket, len(model.AllZones)), GeneratedAt: a.now()}

	var totalBytes int64
	for _, z := range model.AllZones {
		entries, err := a.media.List(z)
		if err != nil {
			return nil, err
		}
		var zb Bucket
		for _, e := range entries {
			zb.add(e.Size)
			switch e.Kind {
			case model.KindImage:
				t.Images.add(e.Size)
			case model.KindVideo:
				t.Videos.add(e.Size)
			}
		}
		zb.finish()
		t.Zones[z] = zb
		totalBytes += zb.Bytes
		t.TotalFiles += zb.Files
	}

	files, err := a.selfies.Files()
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		t.Selfies.add(f.Size)
	}
	totalBytes += t.Selfies.Bytes
	t.TotalFiles += t.Selfies.Files

	t.Images.finish()
	t.Videos.finish()
	t.Selfies.finish()
	t.TotalMB = RoundMB(float64(totalBytes) / bytesPerMB)
	return t, nil
}

// Point — одна корзина временного ряда: файлы, созданные в [Start, End).
type Point struct {
	Label   string    `json:"label"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Media   int       `json:"media"`
	Selfies int       `json:"selfies"`
	Total   int       `json:"total"`
}

// Series — временной ряд.
type Series struct {
	Period string  `json:"period"`
	Points []Point `json:"points"`
}

// TimeSeries строит ряд: 7d — 7 дневных корзин, 30d — 6 корзин по 5 дней,
// month — недельные корзины текущего календарного месяца.
// Каждая корзина заново просматривает все метки времени файлов.
func (a *Aggregator) TimeSeries(period string) (*Series, error) {
	now := a.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	var points []Point
	switch period {
	case Period7Days, "":
		period = Period7Days
		for i := 6; i >= 0; i-- {
			start := today.AddDate(0, 0, -i)
			points = append(points, Point{Label: start.Format("02/01"), Start: start, End: start.AddDate(0, 0, 1)})
		}
	case Period30Days:
		for i := 5; i >= 0; i-- {
			end := today.AddDate(0, 0, 1-i*5)
			start := end.AddDate(0, 0, -5)
			points = append(points, Point{
				Label: start.Format("02/01") + "-" + end.AddDate(0, 0, -1).Format("02/01"),
				Start: start,
				End:   end,
			})
		}
	case PeriodMonth:
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		next := first.AddDate(0, 1, 0)
		for week, start := 1, first; start.Before(next); week, start = week+1, start.AddDate(0, 0, 7) {
			end := start.AddDate(0, 0, 7)
			if end.After(next) {
				end = next
			}
			points = append(points, Point{Label: fmt.Sprintf("Semaine %d", week), Start: start, End: end})
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidPeriod, period)
	}

	mediaTimes, err := a.mediaTimes()
	if err != nil {
		return nil, err
	}
	files, err := a.selfies.Files()
	if err != nil {
		return nil, err
	}

	for i := range points {
		p := &points[i]
		for _, ts := range mediaTimes {
			if inRange(ts, p.Start, p.End) {
				p.Media++
			}
		}
		for _, f := range files {
			if inRange(f.ModTime, p.Start, p.End) {
				p.Selfies++
			}
		}
		p.Total = p.Media + p.Selfies
	}
	return &Series{Period: period, Points: points}, nil
}

// ZoneShare — доля зоны в общем числе медиа.
type ZoneShare struct {
	Zone       model.Zone `json:"zone"`
	Title      string     `json:"title"`
	Files      int        `json:"files"`
	MB         float64    `json:"mb"`
	Percentage float64    `json:"percentage"`
}

// ZoneDistribution — количество, объём и процент файлов по зонам.
func (a *Aggregator) ZoneDistribution() ([]ZoneShare, error) {
	shares := make([]ZoneShare, 0, len(model.AllZones))
	total := 0
	for _, z := range model.AllZones {
		entries, err := a.media.List(z)
		if err != nil {
			return nil, err
		}
		var b Bucket
		for _, e := range entries {
			b.add(e.Size)
		}
		b.finish()
		total += b.Files
		shares = append(shares, ZoneShare{Zone: z, Title: z.Title(), Files: b.Files, MB: b.MB})
	}
	if total > 0 {
		for i := range shares {
			shares[i].Percentage = math.Round(float64(shares[i].Files)*1000/float64(total)) / 10
		}
	}
	return shares, nil
}

// ZoneDetail — разбивка зоны по видам.
type ZoneDetail struct {
	Title  string `json:"title"`
	Images Bucket `json:"images"`
	Videos Bucket `json:"videos"`
	Total  Bucket `json:"total"`
}

// Detailed — подробная разбивка.
type Detailed struct {
	Zones       map[model.Zone]ZoneDetail `json:"zones"`
	Selfies     map[string]Bucket         `json:"selfies_by_month"`
	GeneratedAt time.Time                 `json:"generated_at"`
}

// Detailed разбивает каждую зону по видам и селфи по месяцам.
func (a *Aggregator) Detailed() (*Detailed, error) {
	d := &Detailed{
		Zones:       make(map[model.Zone]ZoneDetail, len(model.AllZones)),
		Selfies:     make(map[string]Bucket),
		GeneratedAt: a.now(),
	}
	for _, z := range model.AllZones {
		entries, err := a.media.List(z)
		if err != nil {
			return nil, err
		}
		zd := ZoneDetail{Title: z.Title()}
		for _, e := range entries {
			zd.Total.add(e.Size)
			switch e.Kind {
			case model.KindImage:
				zd.Images.add(e.Size)
			case model.KindVideo:
				zd.Videos.add(e.Size)
			}
		}
		zd.Images.finish()
		zd.Videos.finish()
		zd.Total.finish()
		d.Zones[z] = zd
	}

	files, err := a.selfies.Files()
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		b := d.Selfies[f.Month]
		b.add(f.Size)
		d.Selfies[f.Month] = b
	}
	for m, b := range d.Selfies {
		b.finish()
		d.Selfies[m] = b
	}
	return d, nil
}

// DirStats — занятость директории (рекурсивно).
type DirStats struct {
	Size        int64   `json:"size"`
	SizeMB      float64 `json:"size_mb"`
	Files       int     `json:"files"`
	Directories int     `json:"directories"`
	Path        string  `json:"path"`
}

// StorageOverview — занятость диска медиа и селфи.
type StorageOverview struct {
	TotalSize   int64                   `json:"total_size"`
	TotalFiles  int                     `json:"total_files"`
	Zones       map[model.Zone]DirStats `json:"zones"`
	Selfies     DirStats                `json:"selfies"`
	TotalSizeMB float64                 `json:"total_size_mb"`
	TotalSizeGB float64                 `json:"total_size_gb"`
}

// StorageOverview рекурсивно обходит директории зон (с миниатюрами и метаданными) и селфи.
func (a *Aggregator) StorageOverview() (*StorageOverview, error) {
	o := &StorageOverview{Zones: make(map[model.Zone]DirStats, len(model.AllZones))}
	for _, z := range model.AllZones {
		size, files, dirs, err := a.media.Usage(z)
		if err != nil {
			return nil, err
		}
		o.Zones[z] = dirStats(a.media.ZoneDir(z), size, files, dirs)
		o.TotalSize += size
		o.TotalFiles += files
	}

	size, files, dirs, err := filestore.DirUsage(a.selfies.Root())
	if err != nil {
		return nil, err
	}
	o.Selfies = dirStats(a.selfies.Root(), size, files, dirs)
	o.TotalSize += size
	o.TotalFiles += files

	o.TotalSizeMB = RoundMB(float64(o.TotalSize) / bytesPerMB)
	o.TotalSizeGB = math.Round(float64(o.TotalSize)/(1024*bytesPerMB)*100) / 100
	return o, nil
}

func dirStats(path string, size int64, files, dirs int) DirStats {
	return DirStats{
		Size:        size,
		SizeMB:      RoundMB(float64(size) / bytesPerMB),
		Files:       files,
		Directories: dirs,
		Path:        path,
	}
}

func (a *Aggregator) mediaTimes() ([]time.Time, error) {
	var times []time.Time
	for _, z := range model.AllZones {
		entries, err := a.media.List(z)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			times = append(times, e.ModTime)
		}
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })
	return times, nil
}

func inRange(ts, start, end time.Time) bool {
	return !ts.Before(start) && ts.Before(end)
}
