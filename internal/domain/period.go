package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Period is a calendar month used as the billing granularity for payments.
// It is persisted and serialized as "YYYY-MM".
type Period struct {
	Year  int
	Month time.Month
}

// NewPeriod validates year and month.
func NewPeriod(year, month int) (Period, error) {
	if year < 1900 || year > 9999 {
		return Period{}, Validationf("year %d out of range", year)
	}
	if month < 1 || month > 12 {
		return Period{}, Validationf("month %d out of range", month)
	}
	return Period{Year: year, Month: time.Month(month)}, nil
}

// ParsePeriod parses "YYYY-MM".
func ParsePeriod(s string) (Period, error) {
	if len(s) != 7 || s[4] != '-' {
		return Period{}, Validationf("period must be in YYYY-MM format, got %q", s)
	}
	y, err := strconv.Atoi(s[:4])
	if err != nil {
		return Period{}, Validationf("period must be in YYYY-MM format, got %q", s)
	}
	m, err := strconv.Atoi(s[5:])
	if err != nil {
		return Period{}, Validationf("period must be in YYYY-MM format, got %q", s)
	}
	return NewPeriod(y, m)
}

// PeriodOf returns the period containing t (in UTC).
func PeriodOf(t time.Time) Period {
	t = t.UTC()
	return Period{Year: t.Year(), Month: t.Month()}
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

func (p Period) IsZero() bool { return p.Year == 0 && p.Month == 0 }

// Bounds returns the half-open interval [first day of month, first day of next
// month). December wraps into January of the next year.
func (p Period) Bounds() (time.Time, time.Time) {
	start := time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
	var end time.Time
	if p.Month == time.December {
		end = time.Date(p.Year+1, time.January, 1, 0, 0, 0, 0, time.UTC)
	} else {
		end = time.Date(p.Year, p.Month+1, 1, 0, 0, 0, 0, time.UTC)
	}
	return start, end
}

// Contains reports whether t falls inside the period's bounds.
func (p Period) Contains(t time.Time) bool {
	start, end := p.Bounds()
	t = t.UTC()
	return !t.Before(start) && t.Before(end)
}

// Value implements driver.Valuer.
func (p Period) Value() (driver.Value, error) {
	if p.IsZero() {
		return nil, nil
	}
	return p.String(), nil
}

// Scan implements sql.Scanner.
func (p *Period) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*p = Period{}
		return nil
	case string:
		parsed, err := ParsePeriod(v)
		if err != nil {
			return err
		}
		*p = parsed
		return nil
	case []byte:
		return p.Scan(string(v))
	default:
		return fmt.Errorf("cannot scan %T into Period", src)
	}
}

func (p Period) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Period) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return Validationf("period must be a string in YYYY-MM format")
	}
	parsed, err := ParsePeriod(s)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// DateOf truncates t to its UTC calendar date.
func DateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
