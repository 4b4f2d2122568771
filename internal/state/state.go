// Package state persists the user's view preferences (selected metric,
// time range, theme) in the key-value store and carries the per-session
// month/year filter that is deliberately not persisted.
package state

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ugagro/greenwatch/internal/model"
	"github.com/ugagro/greenwatch/internal/query"
)

// Storage keys for persisted preferences.
const (
	KeyTheme         = "ugagro_theme"
	KeyCurrentMetric = "ugagro_current_metric"
	KeyTimeRange     = "ugagro_time_range"
)

// Theme is the display theme.
type Theme string

const (
	ThemeLight Theme = "light"
	ThemeDark  Theme = "dark"
)

// ParseTheme accepts "light" or "dark".
func ParseTheme(s string) (Theme, error) {
	switch Theme(strings.ToLower(strings.TrimSpace(s))) {
	case ThemeLight:
		return ThemeLight, nil
	case ThemeDark:
		return ThemeDark, nil
	default:
		return "", fmt.Errorf("unknown theme %q (valid: light, dark)", s)
	}
}

// Defaults applied when a preference is missing or unreadable.
const (
	DefaultMetric = model.Temperature
	DefaultRange  = 24
	DefaultTheme  = ThemeLight
)

// KV is the subset of the key-value store preferences need.
type KV interface {
	Get(key string) ([]byte, bool, error)
	Put(key string, value []byte) error
}

// Prefs is the persisted view selection.
type Prefs struct {
	Metric     model.MetricID `json:"metric"`
	RangeHours int            `json:"range_hours"`
	Theme      Theme          `json:"theme"`
}

// Store loads and saves Prefs.
type Store struct {
	kv KV
}

// New returns a preference store over kv.
func New(kv KV) *Store {
	return &Store{kv: kv}
}

// Load reads all preferences. Missing or corrupt entries fall back to their
// defaults; only store I/O failures are errors.
func (s *Store) Load() (Prefs, error) {
	p := Prefs{Metric: DefaultMetric, RangeHours: DefaultRange, Theme: DefaultTheme}

	var metricStr string
	if ok, err := s.get(KeyCurrentMetric, &metricStr); err != nil {
		return p, err
	} else if ok {
		if id, err := model.ParseMetricID(metricStr); err == nil {
			p.Metric = id
		} else {
			slog.Warn("preference_invalid", "key", KeyCurrentMetric, "value", metricStr)
		}
	}

	var hours int
	if ok, err := s.get(KeyTimeRange, &hours); err != nil {
		return p, err
	} else if ok && hours >= 0 {
		p.RangeHours = hours
	}

	var theme string
	if ok, err := s.get(KeyTheme, &theme); err != nil {
		return p, err
	} else if ok {
		if th, err := ParseTheme(theme); err == nil {
			p.Theme = th
		}
	}
	return p, nil
}

// get decodes key into dst. Returns false when the key is absent or the
// stored value does not decode.
func (s *Store) get(key string, dst any) (bool, error) {
	b, found, err := s.kv.Get(key)
	if err != nil || !found {
		return false, err
	}
	if err := json.Unmarshal(b, dst); err != nil {
		slog.Warn("storage_corrupt", "key", key, "error", err)
		return false, nil
	}
	return true, nil
}

func (s *Store) put(key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	return s.kv.Put(key, b)
}

// SetMetric persists the selected metric.
func (s *Store) SetMetric(id model.MetricID) error {
	return s.put(KeyCurrentMetric, string(id))
}

// SetRange persists the selected window in hours. 0 selects all data.
func (s *Store) SetRange(hours int) error {
	if hours < 0 {
		return fmt.Errorf("range must not be negative, got %d", hours)
	}
	return s.put(KeyTimeRange, hours)
}

// SetTheme persists the theme.
func (s *Store) SetTheme(th Theme) error {
	if _, err := ParseTheme(string(th)); err != nil {
		return err
	}
	return s.put(KeyTheme, string(th))
}

// ToggleTheme flips between light and dark and returns the new theme.
func (s *Store) ToggleTheme() (Theme, error) {
	p, err := s.Load()
	if err != nil {
		return "", err
	}
	next := ThemeDark
	if p.Theme == ThemeDark {
		next = ThemeLight
	}
	return next, s.SetTheme(next)
}

// ─── Session ──────────────────────────────────────────────────────────────────

// Session is the active view: persisted preferences plus the volatile
// month/year filter, resolved against a clock and a display zone.
type Session struct {
	Prefs
	Month    int
	Year     int
	Location *time.Location
}

// NewSession builds a session from prefs. A nil loc means time.Local.
func NewSession(p Prefs, loc *time.Location) *Session {
	if loc == nil {
		loc = time.Local
	}
	return &Session{Prefs: p, Location: loc}
}

// SetMonthYear sets the calendar filter after validating it.
func (s *Session) SetMonthYear(month, year int) error {
	if err := query.ValidateMonthYear(month, year); err != nil {
		return err
	}
	s.Month, s.Year = month, year
	return nil
}

// View filters samples to the session's window as of now.
func (s *Session) View(samples []model.Sample, now time.Time) []model.Sample {
	return query.Filter(samples, now.In(s.Location), s.RangeHours, s.Month, s.Year)
}
