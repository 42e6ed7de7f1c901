// Package scheduler runs recurring backup tasks on cron schedules and
// persists them across daemon restarts.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hookdump/hookdump/internal/backup"
	database "github.com/hookdump/hookdump/internal/db"
	"github.com/hookdump/hookdump/internal/deliver"
	"github.com/hookdump/hookdump/internal/logger"
	"github.com/hookdump/hookdump/internal/notify"
	"github.com/robfig/cron/v3"
)

type TaskStatus string

const (
	StatusPending TaskStatus = "pending"
	StatusRunning TaskStatus = "running"
	StatusSuccess TaskStatus = "success"
	StatusFailed  TaskStatus = "failed"
)

// ScheduledTask is one recurring backup job.
type ScheduledTask struct {
	ID        string     `json:"id"`
	Engine    string     `json:"engine"`
	SourceURI string     `json:"source_uri"`
	Schedule  string     `json:"schedule"` // Cron spec or interval (e.g. "@daily" or "24h")
	Status    TaskStatus `json:"status"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	NextRun   *time.Time `json:"next_run,omitempty"`

	Options TaskOptions `json:"options"`

	cronID cron.EntryID
}

type TaskOptions struct {
	DBName        string `json:"db_name,omitempty"`
	Compress      bool   `json:"compress"`
	Algorithm     string `json:"algorithm,omitempty"`
	FileName      string `json:"file_name,omitempty"`
	WebhookURL    string `json:"webhook_url,omitempty"`
	Username      string `json:"username,omitempty"`
	MaxFileBytes  int64  `json:"max_file_bytes,omitempty"`
	ArchiveURI    string `json:"archive_uri,omitempty"`
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
	KeepLocal     bool   `json:"keep_local,omitempty"`
	WorkDir       string `json:"work_dir,omitempty"`
	RDBPath       string `json:"rdb_path,omitempty"`
	PollInterval  string `json:"poll_interval,omitempty"`
	SaveTimeout   string `json:"save_timeout,omitempty"`
	Retries       int    `json:"retries,omitempty"`
	RetryDelay    string `json:"retry_delay,omitempty"`
}

type Scheduler struct {
	cron     *cron.Cron
	tasks    map[string]*ScheduledTask
	registry *database.Registry
	mu       sync.RWMutex
	dataDir  string
	maxTasks int
	running  int
}

// NewScheduler builds a scheduler persisting to dataDir, defaulting to
// ~/.hookdump when empty.
func NewScheduler(registry *database.Registry, dataDir string) (*Scheduler, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		dataDir = filepath.Join(home, ".hookdump")
	}
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, err
	}
	if registry == nil {
		registry = database.DefaultRegistry()
	}

	return &Scheduler{
		cron:     cron.New(),
		tasks:    make(map[string]*ScheduledTask),
		registry: registry,
		dataDir:  dataDir,
	}, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) Save() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saveLocked()
}

func (s *Scheduler) Load() error {
	path := filepath.Join(s.dataDir, "schedules.json")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return json.Unmarshal(data, &s.tasks)
}

// Resume registers loaded tasks with cron. Call after Load.
func (s *Scheduler) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, task := range s.tasks {
		id, err := s.cron.AddFunc(normalizeSpec(task.Schedule), s.runnerFor(task.ID))
		if err != nil {
			return fmt.Errorf("invalid schedule %q for task %s: %w", task.Schedule, task.ID, err)
		}
		task.cronID = id
		// A task that was mid-run when the daemon died is not running now.
		if task.Status == StatusRunning {
			task.Status = StatusPending
		}
	}
	return nil
}

func (s *Scheduler) AddTask(task *ScheduledTask) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.cron.AddFunc(normalizeSpec(task.Schedule), s.runnerFor(task.ID))
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", task.Schedule, err)
	}

	task.cronID = id
	task.Status = StatusPending
	s.tasks[task.ID] = task
	return s.saveLocked()
}

func (s *Scheduler) RemoveTask(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("task not found: %s", id)
	}

	s.cron.Remove(task.cronID)
	delete(s.tasks, id)
	return s.saveLocked()
}

func (s *Scheduler) ListTasks() []*ScheduledTask {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var list []*ScheduledTask
	for _, t := range s.tasks {
		entry := s.cron.Entry(t.cronID)
		if !entry.Next.IsZero() {
			next := entry.Next
			t.NextRun = &next
		}
		list = append(list, t)
	}
	return list
}

// saveLocked persists tasks; the caller must hold mu.
func (s *Scheduler) saveLocked() error {
	data, err := json.MarshalIndent(s.tasks, "", "  ")
	if err != nil {
		return err
	}
	// 0600: task options can carry webhook URLs with embedded tokens.
	return os.WriteFile(filepath.Join(s.dataDir, "schedules.json"), data, 0600)
}

// normalizeSpec accepts plain durations ("24h") as a shorthand for
// "@every 24h" alongside regular cron specs.
func normalizeSpec(spec string) string {
	if !strings.HasPrefix(spec, "@") && strings.Count(spec, " ") < 4 {
		if _, err := time.ParseDuration(spec); err == nil {
			return "@every " + spec
		}
	}
	return spec
}

func (s *Scheduler) runnerFor(id string) func() {
	return func() { s.executeTask(id) }
}

func (s *Scheduler) executeTask(id string) {
	s.mu.RLock()
	task, ok := s.tasks[id]
	running := s.running
	maxTasks := s.maxTasks
	s.mu.RUnlock()
	if !ok {
		return
	}

	l := logger.New(logger.Config{})

	if maxTasks > 0 && running >= maxTasks {
		l.Warn("Skipping task: max concurrent tasks reached", "id", id, "max", maxTasks, "running", running)
		return
	}

	if task.Status == StatusRunning {
		l.Warn("Skipping task: already running", "id", id)
		return
	}

	s.mu.Lock()
	task.Status = StatusRunning
	now := time.Now()
	task.LastRun = &now
	s.running++
	s.mu.Unlock()
	s.Save()

	maxRetries := task.Options.Retries
	retryDelay, _ := time.ParseDuration(task.Options.RetryDelay)
	if retryDelay == 0 {
		retryDelay = 5 * time.Minute
	}

	var err error
	for i := 0; i <= maxRetries; i++ {
		if i > 0 {
			l.Info("Retrying task", "id", task.ID, "attempt", i, "delay", retryDelay)
			time.Sleep(retryDelay)
		}
		err = s.runTask(task, l)
		if err == nil {
			break
		}
	}

	s.mu.Lock()
	if err != nil {
		task.Status = StatusFailed
		l.Error("Scheduled task failed after retries", "id", task.ID, "error", err)
	} else {
		task.Status = StatusSuccess
		l.Info("Scheduled task succeeded", "id", task.ID)
	}
	s.running--
	s.mu.Unlock()
	s.Save()
}

func (s *Scheduler) runTask(t *ScheduledTask, l *logger.Logger) error {
	ctx := context.Background()

	conn := database.ConnectionParams{
		Engine:  t.Engine,
		DBName:  t.Options.DBName,
		URI:     t.SourceURI,
		RDBPath: t.Options.RDBPath,
	}
	if err := conn.ParseURI(); err != nil {
		return err
	}

	adapter, err := s.registry.Get(t.Engine)
	if err != nil {
		return err
	}
	adapter = s.tunedAdapter(adapter, t.Options)
	adapter.SetLogger(l)

	webhookURL := t.Options.WebhookURL
	if env := os.Getenv("HOOKDUMP_WEBHOOK_URL"); env != "" {
		webhookURL = env
	}

	var deliverer deliver.Deliverer
	if webhookURL != "" {
		d := deliver.NewDiscordDeliverer(webhookURL)
		d.Username = t.Options.Username
		if t.Options.MaxFileBytes > 0 {
			d.MaxFileBytes = t.Options.MaxFileBytes
		}
		d.Logger = l
		deliverer = d
	}

	var notifier notify.Notifier
	if slack := os.Getenv("SLACK_WEBHOOK"); slack != "" {
		notifier = notify.NewSlackNotifier(slack, "")
	}

	mgr, err := backup.NewManager(backup.Options{
		TargetID:      t.ID,
		Compress:      t.Options.Compress,
		Algorithm:     t.Options.Algorithm,
		FileName:      t.Options.FileName,
		WorkDir:       t.Options.WorkDir,
		KeepLocal:     t.Options.KeepLocal,
		ArchiveURI:    t.Options.ArchiveURI,
		AllowInsecure: t.Options.AllowInsecure,
		MaxFileBytes:  t.Options.MaxFileBytes,
		Logger:        l,
		Notifier:      notifier,
		Deliverer:     deliverer,
	})
	if err != nil {
		return err
	}

	return mgr.Run(ctx, adapter, conn)
}

// tunedAdapter applies per-task snapshot timing to Redis targets without
// mutating the shared registry adapter.
func (s *Scheduler) tunedAdapter(adapter database.Adapter, opts TaskOptions) database.Adapter {
	ra, ok := adapter.(*database.RedisAdapter)
	if !ok {
		return adapter
	}

	interval, _ := time.ParseDuration(opts.PollInterval)
	timeout, _ := time.ParseDuration(opts.SaveTimeout)
	if interval <= 0 && timeout <= 0 {
		return adapter
	}

	clone := *ra
	if interval > 0 {
		clone.PollInterval = interval
	}
	if timeout > 0 {
		clone.SaveTimeout = timeout
	}
	return &clone
}
