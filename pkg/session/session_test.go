package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForMinute(t *testing.T) {
	tests := []struct {
		clock    string
		expected Name
	}{
		{"10:00", Tokyo},
		{"09:00", Tokyo},
		{"16:30", Tokyo},
		{"18:00", London},
		{"23:30", London},
		{"00:30", London},
		{"01:00", NewYork},
		{"05:59", NewYork},
		{"06:00", Sydney},
		{"08:59", Sydney},
	}

	for _, tt := range tests {
		t.Run(tt.clock, func(t *testing.T) {
			c, err := time.Parse("15:04", tt.clock)
			require.NoError(t, err)
			name, ok := ForMinute(c.Hour()*60 + c.Minute())
			require.True(t, ok)
			assert.Equal(t, tt.expected, name)
		})
	}
}

func TestForMinute_CoversWholeDay(t *testing.T) {
	for m := 0; m < 24*60; m++ {
		_, ok := ForMinute(m)
		assert.True(t, ok, "minute %d has no session", m)
	}
}

func TestForHour(t *testing.T) {
	name, ok := ForHour(10)
	assert.True(t, ok)
	assert.Equal(t, Tokyo, name)

	name, ok = ForHour(18)
	assert.True(t, ok)
	assert.Equal(t, London, name)
}

func TestForTimestamp(t *testing.T) {
	// 01:30 UTC is 10:30 in Tokyo
	name, ok := ForTimestamp("2024-03-15T01:30:00Z", nil)
	require.True(t, ok)
	assert.Equal(t, Tokyo, name)

	tests := []struct {
		ts   string
		want Name
	}{
		{"2024-03-15T10:00+09:00", Tokyo},
		{"2024-03-15T01:30Z", Tokyo},
		{"2024-03-15T18:00:00.250+09:00", London},
		{"2024-03-15T09:00+00:00", London},
	}
	for _, tt := range tests {
		t.Run(tt.ts, func(t *testing.T) {
			resolved, ok := ResolveTimestamp(tt.ts, nil)
			require.True(t, ok)
			assert.Equal(t, tt.ts, resolved)

			name, ok := ForTimestamp(resolved, nil)
			require.True(t, ok)
			assert.Equal(t, tt.want, name)
		})
	}

	_, ok = ForTimestamp("", nil)
	assert.False(t, ok)

	_, ok = ForTimestamp("yesterday", nil)
	assert.False(t, ok)
}

func TestForTime_Zero(t *testing.T) {
	_, ok := ForTime(time.Time{}, nil)
	assert.False(t, ok)
}

func TestResolveTimestamp(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected string
	}{
		{"iso with offset passes through", "2024-03-15T10:23:45+09:00", "2024-03-15T10:23:45+09:00"},
		{"iso zulu passes through", "2024-03-15T01:23:45Z", "2024-03-15T01:23:45Z"},
		{"iso fraction passes through", "2024-03-15T01:23:45.123-05:00", "2024-03-15T01:23:45.123-05:00"},
		{"dashed local", "2024-03-15 10:23:45", "2024-03-15T10:23:45+09:00"},
		{"slashed local", "2024/03/15 10:23", "2024-03-15T10:23:00+09:00"},
		{"short month/day", "2024/3/5 09:05:00", "2024-03-05T09:05:00+09:00"},
		{"iso without offset", "2024-03-15T10:23:45", "2024-03-15T10:23:45+09:00"},
		{"date only", "2024-03-15", "2024-03-15T00:00:00+09:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ResolveTimestamp(tt.raw, nil)
			require.True(t, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestResolveTimestamp_OtherZone(t *testing.T) {
	ny := LoadZone("America/New_York")
	got, ok := ResolveTimestamp("2024-07-01 09:30:00", ny)
	require.True(t, ok)
	assert.Equal(t, "2024-07-01T09:30:00-04:00", got)
}

func TestResolveTimestamp_Invalid(t *testing.T) {
	_, ok := ResolveTimestamp("", nil)
	assert.False(t, ok)

	_, ok = ResolveTimestamp("not a date", nil)
	assert.False(t, ok)
}

func TestLoadZone_Fallback(t *testing.T) {
	assert.Equal(t, DefaultZone, LoadZone(""))
	assert.Equal(t, DefaultZone, LoadZone("Mars/Olympus_Mons"))
}
