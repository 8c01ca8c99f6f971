package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLoad(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func TestLocalWeekday(t *testing.T) {
	saoPaulo := mustLoad(t, "America/Sao_Paulo")

	t.Run("sunday is zero", func(t *testing.T) {
		sunday := time.Date(2026, 1, 4, 12, 0, 0, 0, saoPaulo)
		assert.Equal(t, 0, LocalWeekday(sunday, saoPaulo))
	})

	t.Run("saturday is six", func(t *testing.T) {
		saturday := time.Date(2026, 1, 10, 12, 0, 0, 0, saoPaulo)
		assert.Equal(t, 6, LocalWeekday(saturday, saoPaulo))
	})

	t.Run("weekday follows the wall clock, not UTC", func(t *testing.T) {
		// 01:00 UTC Tuesday is still 22:00 Monday in Sao Paulo (-03).
		utcTuesday := time.Date(2026, 1, 6, 1, 0, 0, 0, time.UTC)
		assert.Equal(t, 1, LocalWeekday(utcTuesday, saoPaulo))
	})
}

func TestLocalMinuteOfDay(t *testing.T) {
	saoPaulo := mustLoad(t, "America/Sao_Paulo")

	assert.Equal(t, 0, LocalMinuteOfDay(time.Date(2026, 1, 5, 0, 0, 0, 0, saoPaulo), saoPaulo))
	assert.Equal(t, 9*60+30, LocalMinuteOfDay(time.Date(2026, 1, 5, 9, 30, 0, 0, saoPaulo), saoPaulo))
	assert.Equal(t, 23*60+59, LocalMinuteOfDay(time.Date(2026, 1, 5, 23, 59, 0, 0, saoPaulo), saoPaulo))

	// Instant expressed in UTC still reads as the Sao Paulo wall clock.
	utc := time.Date(2026, 1, 5, 13, 0, 0, 0, time.UTC)
	assert.Equal(t, 10*60, LocalMinuteOfDay(utc, saoPaulo))
}

func TestCrossesLocalDayBoundary(t *testing.T) {
	saoPaulo := mustLoad(t, "America/Sao_Paulo")

	t.Run("same local day", func(t *testing.T) {
		start := time.Date(2026, 1, 5, 10, 0, 0, 0, saoPaulo)
		assert.False(t, CrossesLocalDayBoundary(start, start.Add(30*time.Minute), saoPaulo))
	})

	t.Run("crosses local midnight", func(t *testing.T) {
		start := time.Date(2026, 1, 5, 23, 50, 0, 0, saoPaulo)
		assert.True(t, CrossesLocalDayBoundary(start, start.Add(20*time.Minute), saoPaulo))
	})

	t.Run("UTC day change alone does not count", func(t *testing.T) {
		// 02:50-03:10 UTC spans a UTC date only when shifted; in Sao Paulo
		// this is 23:50-00:10, crossing. The inverse case: 23:50-00:10 UTC
		// is 20:50-21:10 local, same local day.
		start := time.Date(2026, 1, 5, 23, 50, 0, 0, time.UTC)
		assert.False(t, CrossesLocalDayBoundary(start, start.Add(20*time.Minute), saoPaulo))
	})

	t.Run("consistent across a DST transition", func(t *testing.T) {
		// America/New_York springs forward 2026-03-08 02:00 -> 03:00.
		newYork := mustLoad(t, "America/New_York")
		start := time.Date(2026, 3, 8, 1, 30, 0, 0, newYork)
		end := start.Add(1 * time.Hour) // reads 03:30 on the wall clock
		assert.Equal(t, "03:30", end.In(newYork).Format("15:04"))
		assert.False(t, CrossesLocalDayBoundary(start, end, newYork))

		// Late evening across the shortened day still crosses.
		evening := time.Date(2026, 3, 8, 23, 45, 0, 0, newYork)
		assert.True(t, CrossesLocalDayBoundary(evening, evening.Add(30*time.Minute), newYork))
	})
}

func TestOverlaps(t *testing.T) {
	base := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	at := func(m int) time.Time { return base.Add(time.Duration(m) * time.Minute) }

	t.Run("partial overlap", func(t *testing.T) {
		assert.True(t, Overlaps(at(0), at(30), at(15), at(45)))
	})

	t.Run("containment", func(t *testing.T) {
		assert.True(t, Overlaps(at(0), at(60), at(15), at(30)))
	})

	t.Run("touching endpoints are free", func(t *testing.T) {
		// Half-open: [10:00,10:30) and [10:30,11:00) do not overlap.
		assert.False(t, Overlaps(at(0), at(30), at(30), at(60)))
		assert.False(t, Overlaps(at(30), at(60), at(0), at(30)))
	})

	t.Run("disjoint", func(t *testing.T) {
		assert.False(t, Overlaps(at(0), at(30), at(60), at(90)))
	})
}
