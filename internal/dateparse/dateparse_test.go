package dateparse

import (
	"testing"
	"time"
)

func TestParseExplicitLayouts(t *testing.T) {
	t.Parallel()
	base := time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		raw  string
		y    int
		m    time.Month
		d    int
	}{
		{name: "iso date", raw: "2024-01-05", y: 2024, m: time.January, d: 5},
		{name: "iso with time", raw: "2024-03-01 08:30", y: 2024, m: time.March, d: 1},
		{name: "dotted", raw: "14.02.2024", y: 2024, m: time.February, d: 14},
		{name: "day month name year", raw: "7 Mar 2024", y: 2024, m: time.March, d: 7},
	}
	p := New()
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := p.Parse(tt.raw, base)
			if err != nil {
				t.Fatalf("Parse(%q) error: %v", tt.raw, err)
			}
			gy, gm, gd := got.Date()
			if gy != tt.y || gm != tt.m || gd != tt.d {
				t.Fatalf("Parse(%q) = %v, want %04d-%02d-%02d", tt.raw, got, tt.y, tt.m, tt.d)
			}
		})
	}
}

func TestParseNaturalLanguage(t *testing.T) {
	t.Parallel()
	base := time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)
	p := New()

	got, err := p.Parse("tomorrow", base)
	if err != nil {
		t.Fatalf("Parse(tomorrow) error: %v", err)
	}
	if gy, gm, gd := got.Date(); gy != 2024 || gm != time.January || gd != 2 {
		t.Fatalf("Parse(tomorrow) = %v, want 2024-01-02", got)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	t.Parallel()
	p := New()
	base := time.Date(2024, time.January, 1, 12, 0, 0, 0, time.UTC)
	for _, raw := range []string{"", "   ", "zzzzzz"} {
		if _, err := p.Parse(raw, base); err == nil {
			t.Fatalf("Parse(%q) succeeded, want error", raw)
		}
	}
}
