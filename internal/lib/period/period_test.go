package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDayStart(t *testing.T) {
	got := DayStart(time.Date(2024, 3, 10, 23, 59, 59, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), got)

	msk := time.FixedZone("MSK", 3*60*60)
	got = DayStart(time.Date(2024, 3, 11, 1, 0, 0, 0, msk))
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), got)
}

func TestSameMonth(t *testing.T) {
	assert.True(t, SameMonth(
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 31, 23, 0, 0, 0, time.UTC)))
	assert.False(t, SameMonth(
		time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)))
	assert.False(t, SameMonth(
		time.Date(2023, 3, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)))
}

func TestNextDaily(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		hour int
		want time.Time
	}{
		{
			name: "later today",
			now:  time.Date(2024, 1, 15, 1, 30, 0, 0, time.UTC),
			hour: 3,
			want: time.Date(2024, 1, 15, 3, 0, 0, 0, time.UTC),
		},
		{
			name: "already passed today",
			now:  time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
			hour: 3,
			want: time.Date(2024, 1, 16, 3, 0, 0, 0, time.UTC),
		},
		{
			name: "exactly at trigger moves to next day",
			now:  time.Date(2024, 1, 15, 3, 0, 0, 0, time.UTC),
			hour: 3,
			want: time.Date(2024, 1, 16, 3, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextDaily(tt.now, tt.hour))
		})
	}
}

func TestNextWeekly(t *testing.T) {
	// 2024-01-15 понедельник
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "monday goes to coming sunday",
			now:  time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
			want: time.Date(2024, 1, 21, 4, 0, 0, 0, time.UTC),
		},
		{
			name: "sunday before trigger",
			now:  time.Date(2024, 1, 21, 2, 0, 0, 0, time.UTC),
			want: time.Date(2024, 1, 21, 4, 0, 0, 0, time.UTC),
		},
		{
			name: "sunday after trigger goes to next week",
			now:  time.Date(2024, 1, 21, 5, 0, 0, 0, time.UTC),
			want: time.Date(2024, 1, 28, 4, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextWeekly(tt.now, time.Sunday, 4)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, time.Sunday, got.Weekday())
		})
	}
}
