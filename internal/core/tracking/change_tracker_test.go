package tracking

import (
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckSchedule_FirstThenRepeat(t *testing.T) {
	ct := NewChangeTracker()
	p := map[string]any{"games": []any{map[string]any{"id": "g1", "status": "inprogress"}}}

	assert.True(t, ct.CheckSchedule("nba", p))
	assert.False(t, ct.CheckSchedule("nba", p))

	// a different sport has its own history
	assert.True(t, ct.CheckSchedule("ncaamb", p))
}

func TestCheckSchedule_KeyOrderIndependent(t *testing.T) {
	ct := NewChangeTracker()

	var a, b map[string]any
	require.NoError(t, json.Unmarshal([]byte(`{"date":"2026-02-23","games":[{"id":"g1","status":"scheduled"}]}`), &a))
	require.NoError(t, json.Unmarshal([]byte(`{"games":[{"status":"scheduled","id":"g1"}],"date":"2026-02-23"}`), &b))

	assert.True(t, ct.CheckSchedule("nba", a))
	assert.False(t, ct.CheckSchedule("nba", b))
}

func TestCheckSchedule_ValueChange(t *testing.T) {
	ct := NewChangeTracker()
	p := map[string]any{"games": []any{map[string]any{"id": "g1", "home_points": 10.0}}}
	require.True(t, ct.CheckSchedule("nba", p))

	changed := map[string]any{"games": []any{map[string]any{"id": "g1", "home_points": 12.0}}}
	assert.True(t, ct.CheckSchedule("nba", changed))
	assert.False(t, ct.CheckSchedule("nba", changed))
	assert.True(t, ct.CheckSchedule("nba", p))
}

func TestCheckSummaryContent(t *testing.T) {
	ct := NewChangeTracker()
	s := map[string]any{"id": "g1", "clock": "05:00", "home": map[string]any{"points": 40.0}}

	assert.True(t, ct.CheckSummaryContent("g1", s))
	assert.False(t, ct.CheckSummaryContent("g1", s))
	// independent of schedules and of other games
	assert.True(t, ct.CheckSchedule("g1", s))
	assert.True(t, ct.CheckSummaryContent("g2", s))

	s2 := map[string]any{"id": "g1", "clock": "04:41", "home": map[string]any{"points": 42.0}}
	assert.True(t, ct.CheckSummaryContent("g1", s2))
	assert.False(t, ct.CheckSummaryContent("g1", s2))
}

func TestCheckSummary_StrictlyIncreasing(t *testing.T) {
	ct := NewChangeTracker()

	assert.True(t, ct.CheckSummary("g1", 100))
	assert.False(t, ct.CheckSummary("g1", 100))
	assert.False(t, ct.CheckSummary("g1", 99))
	assert.True(t, ct.CheckSummary("g1", 101))
	assert.False(t, ct.CheckSummary("g1", 100.5))
	assert.True(t, ct.CheckSummary("g2", 1))
}

func TestCheckSummaryRaw(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		want []bool // results of two consecutive calls
	}{
		{"float", 1700000000.5, []bool{true, false}},
		{"numeric string", "1700000000", []bool{true, false}},
		{"rfc3339", "2026-02-23T19:00:00Z", []bool{true, false}},
		{"json number", json.Number("42"), []bool{true, false}},
		{"garbage string", "yesterday", []bool{true, true}},
		{"missing", nil, []bool{true, true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ct := NewChangeTracker()
			assert.Equal(t, tt.want[0], ct.CheckSummaryRaw("g1", tt.raw))
			assert.Equal(t, tt.want[1], ct.CheckSummaryRaw("g1", tt.raw))
		})
	}
}

func TestReset_ForgetsHistory(t *testing.T) {
	ct := NewChangeTracker()
	p := map[string]any{"games": []any{}}
	ct.CheckSchedule("nba", p)
	ct.CheckSummary("g1", 5)
	ct.CheckSummaryContent("g1", p)
	require.True(t, ct.Seen("g1"))

	ct.Reset()

	assert.False(t, ct.Seen("g1"))
	assert.True(t, ct.CheckSchedule("nba", p))
	assert.True(t, ct.CheckSummary("g1", 5))
	assert.True(t, ct.CheckSummaryContent("g1", p))
}

func TestChangeTracker_Concurrent(t *testing.T) {
	ct := NewChangeTracker()
	var wg sync.WaitGroup
	accepted := make(chan float64, 100)
	for i := 1; i <= 100; i++ {
		wg.Add(1)
		go func(ts float64) {
			defer wg.Done()
			if ct.CheckSummary("g1", ts) {
				accepted <- ts
			}
		}(float64(i))
	}
	wg.Wait()
	close(accepted)

	var last float64
	n := 0
	for ts := range accepted {
		n++
		last = max(last, ts)
	}
	assert.GreaterOrEqual(t, n, 1)
	assert.False(t, ct.CheckSummary("g1", 100))
	assert.Equal(t, float64(100), last)
}
