package calendar

import (
	"testing"
	"time"
)

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestActive(t *testing.T) {
	today := date("2026-07-31")

	tests := []struct {
		name  string
		start *time.Time
		end   *time.Time
		want  bool
	}{
		{"no start", nil, nil, false},
		{"open ended, started", ptr(date("2020-01-01")), nil, true},
		{"open ended, future start", ptr(date("2030-01-01")), nil, true},
		{"within range", ptr(date("2026-01-01")), ptr(date("2026-12-31")), true},
		{"future start, future end", ptr(date("2030-01-01")), ptr(date("2031-01-01")), true},
		{"expired", ptr(date("2020-01-01")), ptr(date("2021-01-01")), false},
		{"ends today", ptr(date("2020-01-01")), ptr(today), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Active(tt.start, tt.end, today); got != tt.want {
				t.Errorf("Active(%v, %v, %v) = %v, want %v", tt.start, tt.end, today, got, tt.want)
			}
		})
	}
}

func ptr(t time.Time) *time.Time { return &t }
