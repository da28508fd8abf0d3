package clock

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayOf_Epoch(t *testing.T) {
	assert.Equal(t, Day(0), DayOf(time.Date(1970, 1, 1, 23, 59, 59, 0, time.UTC), nil))
	assert.Equal(t, Day(1), DayOf(time.Date(1970, 1, 2, 0, 0, 0, 0, time.UTC), nil))
}

func TestDayOf_UsesLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	// 20:00 UTC on Jan 1 is already Jan 2 in Tokyo.
	at := time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC)

	assert.Equal(t, "2024-01-01", DayOf(at, time.UTC).String())
	assert.Equal(t, "2024-01-02", DayOf(at, tokyo).String())
}

func TestParseDay_RoundTrip(t *testing.T) {
	d, err := ParseDay("2024-01-01")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-01", d.String())
	assert.Equal(t, "2024-01-02", d.AddDays(1).String())
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), d.Time())
}

func TestParseDay_RejectsLocaleFormats(t *testing.T) {
	for _, s := range []string{"1/2/2024", "Mon Jan 01 2024", "2024-1-1", ""} {
		_, err := ParseDay(s)
		assert.Error(t, err, s)
	}
}

func TestNew_UnknownZone(t *testing.T) {
	_, err := New("Not/AZone")
	assert.Error(t, err)

	c, err := New("")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, c.Location)
}

func TestFixed_Set(t *testing.T) {
	c := NewFixed("2024-01-01")
	assert.Equal(t, MustParseDay("2024-01-01"), c.Today())
	assert.Equal(t, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), c.Now())

	c.Set(c.Now().Add(24 * time.Hour))
	assert.Equal(t, MustParseDay("2024-01-02"), c.Today())

	c.AdvanceDays(30)
	assert.Equal(t, "2024-02-01", c.Today().String())
}

func TestFixed_TodayUsesLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	c := In(time.Date(2024, 1, 1, 20, 0, 0, 0, time.UTC), tokyo)
	assert.Equal(t, "2024-01-02", c.Today().String())
}

func TestFixed_ConcurrentUse(t *testing.T) {
	c := NewFixed("2024-01-01")

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c.AdvanceDays(1)
		}()
		go func() {
			defer wg.Done()
			_ = c.Today()
		}()
	}
	wg.Wait()

	assert.Equal(t, "2024-01-09", c.Today().String())
}
