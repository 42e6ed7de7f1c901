package scheduler

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScheduler(t *testing.T, dir string) *Scheduler {
	t.Helper()
	s, err := NewScheduler(nil, dir)
	require.NoError(t, err)
	// Entries only get a next-run time once the cron loop is running.
	s.Start()
	t.Cleanup(func() { <-s.Stop().Done() })
	return s
}

func TestScheduler_AddListRemove(t *testing.T) {
	dir := t.TempDir()
	s := newTestScheduler(t, dir)

	task := &ScheduledTask{
		ID:       "nightly-pg",
		Engine:   "postgres",
		Schedule: "@daily",
		Options: TaskOptions{
			DBName:     "app",
			WebhookURL: "https://discord.com/api/webhooks/1/abc",
		},
	}

	require.NoError(t, s.AddTask(task))

	tasks := s.ListTasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, "nightly-pg", tasks[0].ID)
	assert.Equal(t, StatusPending, tasks[0].Status)
	require.NotNil(t, tasks[0].NextRun)

	require.NoError(t, s.RemoveTask("nightly-pg"))
	assert.Empty(t, s.ListTasks())

	assert.Error(t, s.RemoveTask("nightly-pg"))
}

func TestScheduler_IntervalShorthand(t *testing.T) {
	assert.Equal(t, "@every 24h", normalizeSpec("24h"))
	assert.Equal(t, "@daily", normalizeSpec("@daily"))
	assert.Equal(t, "0 3 * * *", normalizeSpec("0 3 * * *"))

	s := newTestScheduler(t, t.TempDir())
	require.NoError(t, s.AddTask(&ScheduledTask{ID: "t1", Engine: "sqlite", Schedule: "12h"}))
	assert.Error(t, s.AddTask(&ScheduledTask{ID: "t2", Engine: "sqlite", Schedule: "not a schedule"}))
}

func TestScheduler_PersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()

	s := newTestScheduler(t, dir)
	require.NoError(t, s.AddTask(&ScheduledTask{
		ID:       "cache-snap",
		Engine:   "redis",
		Schedule: "@hourly",
		Options: TaskOptions{
			RDBPath:     "/var/lib/redis/dump.rdb",
			SaveTimeout: "5m",
		},
	}))

	// Schedules file must not be world readable; it can hold webhook tokens.
	info, err := os.Stat(filepath.Join(dir, "schedules.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	s2 := newTestScheduler(t, dir)
	require.NoError(t, s2.Load())
	require.NoError(t, s2.Resume())

	tasks := s2.ListTasks()
	require.Len(t, tasks, 1)
	assert.Equal(t, "cache-snap", tasks[0].ID)
	assert.Equal(t, "/var/lib/redis/dump.rdb", tasks[0].Options.RDBPath)
	require.NotNil(t, tasks[0].NextRun)
}

func TestScheduler_ResumeResetsStuckRunningStatus(t *testing.T) {
	dir := t.TempDir()

	tasks := map[string]*ScheduledTask{
		"stuck": {
			ID:       "stuck",
			Engine:   "postgres",
			Schedule: "@daily",
			Status:   StatusRunning,
		},
	}
	data, err := json.MarshalIndent(tasks, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "schedules.json"), data, 0600))

	s := newTestScheduler(t, dir)
	require.NoError(t, s.Load())
	require.NoError(t, s.Resume())

	listed := s.ListTasks()
	require.Len(t, listed, 1)
	assert.Equal(t, StatusPending, listed[0].Status)
}
