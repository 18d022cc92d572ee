package queue

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueLength(t *testing.T) {
	m := New(0.5, nil)

	// rho = 0.3*60 / (30*0.5) = 1.2 -> oversaturated
	avg, max := m.QueueLength(0.3, 30, 60)
	assert.InDelta(t, 0.2*15/2, avg, 1e-9)
	assert.InDelta(t, 0.2*15, max, 1e-9)

	// rho = 0.1*60 / (30*0.5) = 0.4
	avg, max = m.QueueLength(0.1, 30, 60)
	assert.InDelta(t, 0.16/0.6, avg, 1e-9)
	assert.InDelta(t, 2*avg, max, 1e-12)
	assert.GreaterOrEqual(t, max, avg)
}

func TestDelayWebster(t *testing.T) {
	m := New(0.5, nil)

	d := m.Delay(0.1, 30, 30)
	// capacity = 0.25, x = 0.4
	assert.InDelta(t, 0.4, d.Saturation, 1e-9)
	assert.InDelta(t, 60*0.25/(2*(1-0.2)), d.Uniform, 1e-9)
	assert.InDelta(t, 0.16/(2*0.1*0.6), d.Random, 1e-9)
	assert.InDelta(t, d.Uniform+d.Random, d.Total, 1e-12)
	assert.Greater(t, d.Total, 0.0)

	// an empty approach still waits out the red but has no random delay
	idle := m.Delay(0, 30, 30)
	assert.False(t, math.IsNaN(idle.Total))
	assert.Equal(t, 0.0, idle.Saturation)
	assert.Equal(t, 0.0, idle.Random)
	assert.InDelta(t, 60*0.25/2, idle.Uniform, 1e-9)
	assert.Equal(t, idle.Uniform, idle.Total)
}

func TestDelayOversaturatedFallback(t *testing.T) {
	m := New(0.5, nil)

	d := m.Delay(0.3, 30, 30)
	assert.GreaterOrEqual(t, d.Saturation, 1.0)
	assert.Equal(t, 30.0, d.Uniform)
	assert.Equal(t, 15.0, d.Random)
	assert.Equal(t, 45.0, d.Total)

	zero := m.Delay(0.1, 0, 30)
	assert.Equal(t, 1.0, zero.Saturation)
}

func TestStops(t *testing.T) {
	m := New(0.5, nil)

	// x = 0.1*60/(0.5*30) = 0.4, no adjustment
	assert.InDelta(t, 0.5, m.Stops(0.1, 30, 60), 1e-9)

	// x = 0.3*60/15 = 1.2 -> 0.5 * 1.4
	assert.InDelta(t, 0.7, m.Stops(0.3, 30, 60), 1e-9)

	// heavily saturated probability is capped
	assert.Equal(t, 1.0, m.Stops(2, 30, 60))
}

func TestEvolution(t *testing.T) {
	m := New(0.5, nil)
	seq := m.Evolution(0.3, 30, 30, 10)

	var records []CycleRecord
	for rec := range seq {
		records = append(records, rec)
	}
	require.Len(t, records, 10)

	first := records[0]
	assert.Equal(t, 0, first.Cycle)
	assert.InDelta(t, 18, first.Arrivals, 1e-9)
	assert.InDelta(t, 15, first.Served, 1e-9)
	assert.InDelta(t, 0, first.QueueStart, 1e-9)
	assert.InDelta(t, 3, first.QueueEnd, 1e-9)
	assert.InDelta(t, 9, first.MaxQueue, 1e-9)

	for i := 1; i < len(records); i++ {
		assert.Equal(t, records[i-1].QueueEnd, records[i].QueueStart)
		assert.GreaterOrEqual(t, records[i].QueueEnd, 0.0)
	}

	// restartable: a second pass yields the same records
	var again []CycleRecord
	for rec := range seq {
		again = append(again, rec)
	}
	assert.Equal(t, records, again)
}

func TestEvolutionEarlyStop(t *testing.T) {
	m := New(0.5, nil)

	n := 0
	for range m.Evolution(0.1, 30, 30, 100) {
		n++
		if n == 3 {
			break
		}
	}
	assert.Equal(t, 3, n)
}

func TestSummarize(t *testing.T) {
	m := New(0.5, nil)

	s := Summarize(m.Evolution(0.1, 30, 30, 5))
	assert.Equal(t, 5, s.Cycles)
	assert.InDelta(t, 30, s.TotalThroughput, 1e-9)
	assert.InDelta(t, 3, s.MaxQueueLength, 1e-9)
	assert.InDelta(t, 0, s.AvgQueueLength, 1e-9)

	empty := Summarize(m.Evolution(0.1, 30, 30, 0))
	assert.Equal(t, EvolutionSummary{}, empty)
}

func TestCapacity(t *testing.T) {
	assert.InDelta(t, 750, Capacity(1800, 30, 60, DefaultLostTime), 1e-9)
	assert.Equal(t, 0.0, Capacity(1800, 3, 60, DefaultLostTime))

	prev := Capacity(1800, DefaultLostTime, 90, DefaultLostTime)
	for green := DefaultLostTime; green <= 90; green += 0.5 {
		c := Capacity(1800, green, 90, DefaultLostTime)
		assert.GreaterOrEqual(t, c, prev)
		prev = c
	}
}

func TestLevelOfService(t *testing.T) {
	cases := []struct {
		delay float64
		want  string
	}{
		{0, "A"},
		{10, "A"},
		{10.0001, "B"},
		{20, "B"},
		{20.0001, "C"},
		{35, "C"},
		{55, "D"},
		{80, "E"},
		{81, "F"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, LevelOfService(tc.delay), "delay %v", tc.delay)
	}
}
