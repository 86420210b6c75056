package roster

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fyrsmithlabs/shiftd/internal/schedule"
)

const rosterYAML = `
staff:
  - id: s1
    name: Aoi
    role: kitchen
    max_shifts_per_week: 5
  - id: s2
    name: Ren
    role: floor
    max_shifts_per_week: 4
periods:
  - month:
      year: 2026
      index: 7
    grid:
      cells:
        s1: [morning, evening, ""]
        s2: ["", off, night]
`

func writeRoster(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "roster.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestFileStoreSnapshot(t *testing.T) {
	path := writeRoster(t, rosterYAML)

	s, err := NewFileStore(path, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer s.Close()

	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, snap.Summary.TotalStaff)
	assert.Equal(t, 1, snap.Summary.TotalPeriods)
	assert.Equal(t, "Aoi", snap.Staff[0].Name)

	period, ok := snap.LatestPeriod()
	require.True(t, ok)
	assert.Equal(t, schedule.Month{Year: 2026, Index: 7}, period.Month)
	assert.InDelta(t, 4.0/6.0, period.Grid.FillRatio(), 1e-9)
}

func TestFileStoreSnapshotIsACopy(t *testing.T) {
	path := writeRoster(t, rosterYAML)

	s, err := NewFileStore(path, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer s.Close()

	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)

	// Mutating the snapshot must not leak back into the store.
	snap.Staff[0].Name = "changed"
	snap.Periods[0].Grid.Cells["s1"][0] = schedule.ShiftNight

	again, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Aoi", again.Staff[0].Name)
	assert.Equal(t, schedule.ShiftMorning, again.Periods[0].Grid.Cells["s1"][0])
}

func TestFileStoreReload(t *testing.T) {
	path := writeRoster(t, rosterYAML)

	s, err := NewFileStore(path, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer s.Close()

	updated := rosterYAML + `
  - month:
      year: 2026
      index: 8
    grid:
      cells:
        s1: [morning]
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o600))

	// The watcher reload is asynchronous.
	assert.Eventually(t, func() bool {
		snap, err := s.Snapshot(context.Background())
		return err == nil && snap.Summary.TotalPeriods == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestFileStoreReloadKeepsLastGoodData(t *testing.T) {
	path := writeRoster(t, rosterYAML)

	s, err := NewFileStore(path, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, os.WriteFile(path, []byte("staff: [not: valid: yaml"), 0o600))

	// Give the watcher a moment to process the bad write.
	time.Sleep(100 * time.Millisecond)

	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Summary.TotalStaff)
}

func TestStaticFileStoreIgnoresChanges(t *testing.T) {
	path := writeRoster(t, rosterYAML)

	s, err := NewStaticFileStore(path, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer s.Close()

	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Summary.TotalStaff)

	require.NoError(t, os.WriteFile(path, []byte("staff: []\n"), 0o600))
	time.Sleep(50 * time.Millisecond)

	snap, err = s.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Summary.TotalStaff)
}

func TestFileStoreErrors(t *testing.T) {
	t.Run("missing path", func(t *testing.T) {
		_, err := NewFileStore("", zaptest.NewLogger(t))
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := NewFileStore(filepath.Join(t.TempDir(), "absent.yaml"), zaptest.NewLogger(t))
		assert.Error(t, err)
	})

	t.Run("snapshot after close", func(t *testing.T) {
		path := writeRoster(t, rosterYAML)
		s, err := NewFileStore(path, zaptest.NewLogger(t))
		require.NoError(t, err)
		require.NoError(t, s.Close())
		require.NoError(t, s.Close()) // idempotent

		_, err = s.Snapshot(context.Background())
		assert.Error(t, err)
	})
}

func TestMemoryStore(t *testing.T) {
	staff := []schedule.StaffProfile{{ID: "s1", Name: "Aoi"}}
	s := NewMemoryStore(staff, nil)

	snap, err := s.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Summary.TotalStaff)
	assert.Equal(t, 0, snap.Summary.TotalPeriods)

	boom := errors.New("extractor down")
	s.SetError(boom)
	_, err = s.Snapshot(context.Background())
	assert.ErrorIs(t, err, boom)

	s.SetError(nil)
	s.SetPeriods([]schedule.Period{{Month: schedule.Month{Year: 2026, Index: 7}}})
	snap, err = s.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Summary.TotalPeriods)
}
