package stats

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/MiotyRan/Leashbot/internal/domain/model"
	"github.com/MiotyRan/Leashbot/internal/selfie"
	"github.com/MiotyRan/Leashbot/internal/storage/filestore"
)

type selfieStub struct {
	root  string
	files []selfie.File
}

func (s *selfieStub) Files() ([]selfie.File, error) { return s.files, nil }
func (s *selfieStub) Root() string                  { return s.root }

func TestRoundMB(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{4.54, 4},
		{4.55, 5},
		{4.549999, 4},
		{0, 0},
		{0.55, 1},
		{0.54, 0},
		{12.99, 13},
		{3.0, 3},
		{100.55, 101},
	}
	for _, tt := range tests {
		if got := RoundMB(tt.in); got != tt.want {
			t.Errorf("RoundMB(%v) = %v, ожидалось %v", tt.in, got, tt.want)
		}
	}
}

// fixture — хранилище с файлами заданного размера и времени.
func fixture(t *testing.T) (*filestore.FileStore, *selfieStub, time.Time) {
	t.Helper()
	fs, err := filestore.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2024, 6, 12, 15, 0, 0, 0, time.Local)

	put := func(zone model.Zone, name string, size int, mtime time.Time) {
		res, err := fs.Save(zone, name, bytes.NewReader(make([]byte, size)), 0)
		if err != nil {
			t.Fatal(err)
		}
		if err := os.Chtimes(res.FullPath, mtime, mtime); err != nil {
			t.Fatal(err)
		}
	}
	put(model.ZoneCenter, "a.jpg", 3*1024*1024, now.Add(-time.Hour))
	put(model.ZoneCenter, "b.mp4", 1024*1024*156/100, now.AddDate(0, 0, -2))
	put(model.ZoneLeft1, "c.png", 512*1024, now.AddDate(0, 0, -10))

	ss := &selfieStub{
		root: t.TempDir(),
		files: []selfie.File{
			{Month: "2024-06", Name: "s1.jpg", Size: 1024 * 1024, ModTime: now.Add(-2 * time.Hour)},
			{Month: "2024-05", Name: "s2.jpg", Size: 1024 * 1024, ModTime: now.AddDate(0, 0, -25)},
		},
	}
	return fs, ss, now
}

func TestTotals(t *testing.T) {
	fs, ss, now := fixture(t)
	a := New(fs, ss)
	a.now = func() time.Time { return now }

	tot, err := a.Totals()
	if err != nil {
		t.Fatalf("Totals: %v", err)
	}
	if tot.TotalFiles != 5 {
		t.Errorf("TotalFiles = %d", tot.TotalFiles)
	}
	if tot.Images.Files != 2 || tot.Videos.Files != 1 || tot.Selfies.Files != 2 {
		t.Errorf("по видам: %+v %+v %+v", tot.Images, tot.Videos, tot.Selfies)
	}
	// 1.56 МБ видео округляется вверх
	if tot.Videos.MB != 2 {
		t.Errorf("Videos.MB = %v", tot.Videos.MB)
	}
	if tot.Zones[model.ZoneCenter].Files != 2 || tot.Zones[model.ZoneLeft2].Files != 0 {
		t.Errorf("по зонам: %+v", tot.Zones)
	}
	// 3 + 1.56 + 0.5 + 2 = 7.06
	if tot.TotalMB != 7 {
		t.Errorf("TotalMB = %v", tot.TotalMB)
	}
}

func TestTimeSeries(t *testing.T) {
	fs, ss, now := fixture(t)
	a := New(fs, ss)
	a.now = func() time.Time { return now }

	s7, err := a.TimeSeries(Period7Days)
	if err != nil {
		t.Fatal(err)
	}
	if len(s7.Points) != 7 {
		t.Fatalf("7d: %d корзин", len(s7.Points))
	}
	last := s7.Points[6]
	if last.Label != "12/06" || last.Media != 1 || last.Selfies != 1 || last.Total != 2 {
		t.Errorf("сегодня: %+v", last)
	}
	if s7.Points[4].Media != 1 {
		t.Errorf("позавчера: %+v", s7.Points[4])
	}

	s30, err := a.TimeSeries(Period30Days)
	if err != nil {
		t.Fatal(err)
	}
	if len(s30.Points) != 6 {
		t.Fatalf("30d: %d корзин", len(s30.Points))
	}
	sum := 0
	for _, p := range s30.Points {
		sum += p.Total
	}
	if sum != 5 {
		t.Errorf("30d: всего %d, ожидалось 5", sum)
	}

	sm, err := a.TimeSeries(PeriodMonth)
	if err != nil {
		t.Fatal(err)
	}
	// июнь 2024: 30 дней → 5 недельных корзин
	if len(sm.Points) != 5 || sm.Points[4].End.Day() != 1 {
		t.Errorf("month: %d корзин", len(sm.Points))
	}

	if _, err := a.TimeSeries("year"); !errors.Is(err, ErrInvalidPeriod) {
		t.Errorf("ожидалась ErrInvalidPeriod, получено %v", err)
	}
}

func TestZoneDistribution(t *testing.T) {
	fs, ss, _ := fixture(t)
	shares, err := New(fs, ss).ZoneDistribution()
	if err != nil {
		t.Fatal(err)
	}
	if len(shares) != 4 {
		t.Fatalf("зон: %d", len(shares))
	}
	got := map[model.Zone]float64{}
	for _, s := range shares {
		got[s.Zone] = s.Percentage
	}
	if got[model.ZoneCenter] != 66.7 || got[model.ZoneLeft1] != 33.3 || got[model.ZoneLeft3] != 0 {
		t.Errorf("проценты: %v", got)
	}
}

func TestDetailedAndOverview(t *testing.T) {
	fs, ss, _ := fixture(t)
	if err := os.WriteFile(filepath.Join(ss.root, "x.jpg"), make([]byte, 2048), 0o644); err != nil {
		t.Fatal(err)
	}
	a := New(fs, ss)

	d, err := a.Detailed()
	if err != nil {
		t.Fatal(err)
	}
	if d.Zones[model.ZoneCenter].Videos.Files != 1 || d.Zones[model.ZoneCenter].Total.Files != 2 {
		t.Errorf("центр: %+v", d.Zones[model.ZoneCenter])
	}
	if d.Selfies["2024-05"].Files != 1 {
		t.Errorf("селфи по месяцам: %+v", d.Selfies)
	}

	o, err := a.StorageOverview()
	if err != nil {
		t.Fatal(err)
	}
	if o.TotalFiles != 4 || o.Selfies.Files != 1 || o.Zones[model.ZoneCenter].Files != 2 {
		t.Errorf("overview: %+v", o)
	}
}
