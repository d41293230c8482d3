package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("2025-06")
	require.NoError(t, err)
	assert.Equal(t, 2025, p.Year)
	assert.Equal(t, time.June, p.Month)
	assert.Equal(t, "2025-06", p.String())

	for _, bad := range []string{"2025-6", "2025-13", "2025/06", "abcd-01", "", "2025-00"} {
		_, err := ParsePeriod(bad)
		assert.Truef(t, errors.Is(err, ErrValidation), "expected validation error for %q", bad)
	}
}

func TestPeriodBoundsWrapDecember(t *testing.T) {
	start, end := Period{Year: 2024, Month: time.December}.Bounds()
	assert.Equal(t, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), end)
}

func TestPeriodContainsIsHalfOpen(t *testing.T) {
	p := Period{Year: 2025, Month: time.June}
	assert.True(t, p.Contains(time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, p.Contains(time.Date(2025, 6, 30, 23, 59, 59, 0, time.UTC)))
	assert.False(t, p.Contains(time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)))
	assert.False(t, p.Contains(time.Date(2025, 5, 31, 23, 59, 59, 0, time.UTC)))
}

func TestPeriodScanAndJSON(t *testing.T) {
	var p Period
	require.NoError(t, p.Scan([]byte("2023-02")))
	assert.Equal(t, Period{Year: 2023, Month: time.February}, p)

	b, err := p.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"2023-02"`, string(b))

	var q Period
	require.Error(t, q.UnmarshalJSON([]byte(`"2023-2"`)))
}

func TestErrorKinds(t *testing.T) {
	err := Conflictf("unit %s already occupied", "u1")
	assert.True(t, errors.Is(err, ErrConflict))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, KindConflict, KindOf(err))
	assert.Equal(t, "unit u1 already occupied", err.Error())

	wrapped := GatewayError("stk push failed", errors.New("timeout"))
	assert.True(t, errors.Is(wrapped, ErrGateway))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}
