package core

import (
	"errors"
	"testing"
	"time"
)

func TestParseMonthKey(t *testing.T) {
	t.Run("valid keys", func(t *testing.T) {
		for _, s := range []string{"2024-01", "2024-12", "2025-07"} {
			m, err := ParseMonthKey(s)
			if err != nil {
				t.Errorf("ParseMonthKey(%q) returned error: %v", s, err)
			}
			if string(m) != s {
				t.Errorf("ParseMonthKey(%q) = %q", s, m)
			}
		}
	})

	t.Run("invalid keys", func(t *testing.T) {
		for _, s := range []string{"", "2024", "2024-13", "2024-00", "2024/07", "24-07", "2024-7"} {
			if _, err := ParseMonthKey(s); err == nil {
				t.Errorf("ParseMonthKey(%q) should fail", s)
			} else if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("ParseMonthKey(%q) error should wrap ErrInvalidInput, got %v", s, err)
			}
		}
	})
}

func TestMonthKeyRollover(t *testing.T) {
	t.Run("month 13 wraps to next january", func(t *testing.T) {
		if got := MonthKeyOf(2024, 13); got != "2025-01" {
			t.Errorf("MonthKeyOf(2024, 13) = %q, want 2025-01", got)
		}
	})

	t.Run("next wraps december", func(t *testing.T) {
		if got := MonthKey("2024-12").Next(); got != "2025-01" {
			t.Errorf("Next() = %q, want 2025-01", got)
		}
	})

	t.Run("range spans year boundary", func(t *testing.T) {
		months, err := MonthRange("2024-11", "2025-02")
		if err != nil {
			t.Fatalf("MonthRange error: %v", err)
		}
		want := []MonthKey{"2024-11", "2024-12", "2025-01", "2025-02"}
		if len(months) != len(want) {
			t.Fatalf("got %d months, want %d: %v", len(months), len(want), months)
		}
		for i := range want {
			if months[i] != want[i] {
				t.Errorf("months[%d] = %q, want %q", i, months[i], want[i])
			}
		}
	})
}

func TestMonthRangeValidation(t *testing.T) {
	if _, err := MonthRange("2025-02", "2024-11"); err == nil {
		t.Error("inverted range should fail")
	}
	if _, err := MonthRange("bogus", "2024-11"); err == nil {
		t.Error("malformed from key should fail")
	}
}

func TestMonthWindow(t *testing.T) {
	m := MonthKey("2024-07")
	start, end := m.Start(), m.End()
	if !start.Equal(time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Start() = %v", start)
	}
	if !end.Equal(time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("End() = %v", end)
	}

	// Half-open: the last instant of July is inside, midnight of August is not.
	last := end.Add(-time.Nanosecond)
	if MonthOf(last) != m {
		t.Errorf("MonthOf(%v) = %q, want %q", last, MonthOf(last), m)
	}
	if MonthOf(end) == m {
		t.Errorf("MonthOf(%v) should be the next month", end)
	}
}

func TestYearRange(t *testing.T) {
	from, to := YearRange(2025)
	if from != "2025-01" || to != "2025-12" {
		t.Errorf("YearRange(2025) = %q..%q", from, to)
	}
}
