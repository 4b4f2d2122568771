package state_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/ugagro/greenwatch/internal/model"
	"github.com/ugagro/greenwatch/internal/state"
	"github.com/ugagro/greenwatch/internal/store"
)

func testDB(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// ─── Prefs ────────────────────────────────────────────────────────────────────

func TestLoadDefaults(t *testing.T) {
	p, err := state.New(testDB(t)).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Metric != model.Temperature || p.RangeHours != 24 || p.Theme != state.ThemeLight {
		t.Errorf("unexpected defaults %+v", p)
	}
}

func TestSetAndLoad(t *testing.T) {
	s := state.New(testDB(t))
	if err := s.SetMetric(model.WindSpeed); err != nil {
		t.Fatalf("SetMetric: %v", err)
	}
	if err := s.SetRange(168); err != nil {
		t.Fatalf("SetRange: %v", err)
	}
	if err := s.SetTheme(state.ThemeDark); err != nil {
		t.Fatalf("SetTheme: %v", err)
	}
	p, _ := s.Load()
	if p.Metric != model.WindSpeed || p.RangeHours != 168 || p.Theme != state.ThemeDark {
		t.Errorf("unexpected prefs %+v", p)
	}
}

func TestThemeStoredAsPlainString(t *testing.T) {
	kv := testDB(t)
	_ = state.New(kv).SetTheme(state.ThemeDark)
	b, found, _ := kv.Get(state.KeyTheme)
	if !found || string(b) != `"dark"` {
		t.Errorf("expected \"dark\" under %s, got %q", state.KeyTheme, b)
	}
}

func TestCorruptFallsBack(t *testing.T) {
	kv := testDB(t)
	_ = kv.Put(state.KeyTheme, []byte("{{"))
	_ = kv.Put(state.KeyCurrentMetric, []byte(`"pressure"`))
	_ = kv.Put(state.KeyTimeRange, []byte(`"forever"`))

	p, err := state.New(kv).Load()
	if err != nil {
		t.Fatalf("corrupt prefs should not error: %v", err)
	}
	if p.Metric != state.DefaultMetric || p.RangeHours != state.DefaultRange || p.Theme != state.DefaultTheme {
		t.Errorf("expected defaults, got %+v", p)
	}
}

func TestToggleTheme(t *testing.T) {
	s := state.New(testDB(t))
	th, err := s.ToggleTheme()
	if err != nil || th != state.ThemeDark {
		t.Fatalf("first toggle: got (%q, %v)", th, err)
	}
	th, _ = s.ToggleTheme()
	if th != state.ThemeLight {
		t.Errorf("second toggle: expected light, got %q", th)
	}
}

func TestSetRangeRejectsNegative(t *testing.T) {
	if err := state.New(testDB(t)).SetRange(-1); err == nil {
		t.Error("expected error for negative range")
	}
}

func TestSetThemeRejectsUnknown(t *testing.T) {
	if err := state.New(testDB(t)).SetTheme("sepia"); err == nil {
		t.Error("expected error for unknown theme")
	}
}

// ─── Session ──────────────────────────────────────────────────────────────────

func TestSessionView(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	samples := []model.Sample{
		{Timestamp: now.Add(-30 * time.Minute), Value: 1},
		{Timestamp: now.Add(-3 * time.Hour), Value: 2},
	}
	sess := state.NewSession(state.Prefs{Metric: model.Humidity, RangeHours: 1}, time.UTC)
	if got := sess.View(samples, now); len(got) != 1 || got[0].Value != 1 {
		t.Errorf("1h window: got %+v", got)
	}

	sess.RangeHours = 0
	if err := sess.SetMonthYear(4, 2024); err != nil {
		t.Fatalf("SetMonthYear: %v", err)
	}
	if got := sess.View(samples, now); len(got) != 0 {
		t.Errorf("April filter on May data: got %+v", got)
	}
}

func TestSessionRejectsBadMonth(t *testing.T) {
	sess := state.NewSession(state.Prefs{}, nil)
	if err := sess.SetMonthYear(0, 2024); err == nil {
		t.Error("expected error for year without month")
	}
	if sess.Location == nil {
		t.Error("nil location should default to time.Local")
	}
}
