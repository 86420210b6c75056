package health

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckHealthy(t *testing.T) {
	r := Check(Stats{
		GeneratorInitialized: true,
		StaffCount:           5,
		ResponseTimeMS:       1200,
		MemoryMB:             40,
	})

	assert.Equal(t, 1.0, r.AIEngine)
	assert.Equal(t, 1.0, r.DataIntegrity)
	assert.Equal(t, 0.9, r.Performance)
	assert.Equal(t, 1.0, r.Memory)
	assert.InDelta(t, 0.4*1+0.3*1+0.2*0.9+0.1*1, r.Overall, 1e-9)
	assert.Equal(t, StatusHealthy, r.Status)
	assert.False(t, r.NeedsRemediation())
}

func TestOverallIsWeightedSum(t *testing.T) {
	samples := []Stats{
		{},
		{GeneratorInitialized: true},
		{StaffCount: 3, MemoryMB: 250},
		{GeneratorErr: true, SnapshotErr: true, ResponseTimeMS: 9000, MemoryMB: 500},
		{GeneratorInitialized: true, StaffCount: 1, ResponseTimeMS: 6000, MemoryMB: 150},
	}

	for _, s := range samples {
		r := Check(s)
		want := 0.4*r.AIEngine + 0.3*r.DataIntegrity + 0.2*r.Performance + 0.1*r.Memory
		assert.InDelta(t, want, r.Overall, 1e-9)
		assert.GreaterOrEqual(t, r.Overall, 0.0)
		assert.LessOrEqual(t, r.Overall, 1.0)
	}
}

func TestSubScores(t *testing.T) {
	t.Run("ai engine", func(t *testing.T) {
		assert.Equal(t, 0.0, Check(Stats{GeneratorErr: true}).AIEngine)
		assert.Equal(t, 0.5, Check(Stats{}).AIEngine)
		assert.Equal(t, 1.0, Check(Stats{GeneratorInitialized: true}).AIEngine)
	})

	t.Run("data integrity", func(t *testing.T) {
		assert.Equal(t, 0.0, Check(Stats{SnapshotErr: true}).DataIntegrity)
		assert.Equal(t, 0.5, Check(Stats{StaffCount: 0}).DataIntegrity)
		assert.Equal(t, 1.0, Check(Stats{StaffCount: 2}).DataIntegrity)
	})

	t.Run("performance penalties", func(t *testing.T) {
		assert.Equal(t, 0.9, Check(Stats{ResponseTimeMS: 5000}).Performance)
		assert.InDelta(t, 0.7, Check(Stats{ResponseTimeMS: 5001}).Performance, 1e-9)
		assert.InDelta(t, 0.8, Check(Stats{MemoryMB: 150}).Performance, 1e-9)
		assert.InDelta(t, 0.6, Check(Stats{ResponseTimeMS: 6000, MemoryMB: 150}).Performance, 1e-9)
	})

	t.Run("memory decay", func(t *testing.T) {
		assert.Equal(t, 1.0, Check(Stats{MemoryMB: 200}).Memory)
		assert.InDelta(t, 0.5, Check(Stats{MemoryMB: 300}).Memory, 1e-9)
		assert.Equal(t, 0.0, Check(Stats{MemoryMB: 400}).Memory)
		assert.Equal(t, 0.0, Check(Stats{MemoryMB: 1000}).Memory)
	})
}

func TestRemediationTriggers(t *testing.T) {
	// Uninitialized generator: ai=0.5 pulls the weighted sum below the
	// remediation threshold and the generator restart threshold is not
	// yet crossed.
	r := Check(Stats{StaffCount: 4, MemoryMB: 40})
	assert.True(t, r.NeedsRemediation())
	assert.False(t, r.NeedsGeneratorRestart())
	assert.False(t, r.NeedsCacheCleanup())

	// Generator probe error crosses the restart threshold.
	r = Check(Stats{GeneratorErr: true, StaffCount: 4})
	assert.True(t, r.NeedsRemediation())
	assert.True(t, r.NeedsGeneratorRestart())

	// Heavy memory pressure triggers cache cleanup.
	r = Check(Stats{GeneratorInitialized: true, StaffCount: 4, MemoryMB: 330})
	assert.True(t, r.NeedsCacheCleanup())
}

func TestStatusBands(t *testing.T) {
	assert.Equal(t, StatusHealthy, Check(Stats{GeneratorInitialized: true, StaffCount: 1, MemoryMB: 10}).Status)
	assert.Equal(t, StatusDegraded, Check(Stats{StaffCount: 1, MemoryMB: 10}).Status)
	assert.Equal(t, StatusCritical, Check(Stats{GeneratorErr: true, SnapshotErr: true, ResponseTimeMS: 9000, MemoryMB: 500}).Status)
}

func TestEstimateMemoryMB(t *testing.T) {
	assert.Equal(t, 20.0, EstimateMemoryMB(50, 10)) // 15 + 5 + 0.1 rounds to 20
	assert.Equal(t, 15.0, EstimateMemoryMB(0, 0))
	assert.Equal(t, 26.0, EstimateMemoryMB(100, 100)) // 15 + 10 + 1
}
