package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDateUTC(t *testing.T) {
	moment := time.Date(2026, 9, 1, 23, 59, 59, 123, time.UTC)
	assert.Equal(t, time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC), DateUTC(moment))

	// Другой пояс сводится к UTC-дню
	jakarta := time.FixedZone("WIB", 7*3600)
	// 2026-09-01 05:00 WIB = 2026-08-31 22:00 UTC
	assert.Equal(t,
		time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC),
		DateUTC(time.Date(2026, 9, 1, 5, 0, 0, 0, jakarta)),
	)
}

func TestSameDayUTC(t *testing.T) {
	a := time.Date(2026, 9, 1, 0, 0, 1, 0, time.UTC)
	b := time.Date(2026, 9, 1, 23, 59, 59, 0, time.UTC)
	c := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)

	assert.True(t, SameDayUTC(a, b))
	assert.False(t, SameDayUTC(b, c))
}

func TestStartOfTomorrowUTC(t *testing.T) {
	now := time.Date(2026, 9, 1, 15, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC), StartOfTomorrowUTC(now))

	// Переход через конец месяца
	eom := time.Date(2026, 9, 30, 23, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), StartOfTomorrowUTC(eom))
}
