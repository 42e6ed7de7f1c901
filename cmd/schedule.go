package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	database "github.com/hookdump/hookdump/internal/db"
	"github.com/hookdump/hookdump/internal/logger"
	"github.com/hookdump/hookdump/internal/scheduler"
	"github.com/spf13/cobra"
)

var (
	cronSpec   string
	interval   string
	retries    int
	retryDelay string
	daemonMode bool
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Manage recurring backup schedules",
}

var scheduleBackupCmd = &cobra.Command{
	Use:   "backup [engine]",
	Short: "Schedule a recurring backup delivered to the webhook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		l := logger.New(logger.Config{JSON: LogJSON, NoColor: NoColor})
		engine := args[0]

		s, err := scheduler.NewScheduler(database.DefaultRegistry(), "")
		if err != nil {
			return err
		}
		if err := s.Load(); err != nil {
			return err
		}

		sched := cronSpec
		if interval != "" {
			sched = interval
		}
		if sched == "" {
			return fmt.Errorf("either --cron or --interval is required")
		}

		task := &scheduler.ScheduledTask{
			ID:        uuid.New().String(),
			Engine:    engine,
			SourceURI: dbURI,
			Schedule:  sched,
			Options: scheduler.TaskOptions{
				DBName:        dbName,
				Compress:      compress,
				Algorithm:     compressionAlgo,
				FileName:      fileName,
				WebhookURL:    webhookURL,
				Username:      username,
				MaxFileBytes:  maxFileBytes,
				ArchiveURI:    archiveURI,
				AllowInsecure: allowInsecure,
				KeepLocal:     keepLocal,
				WorkDir:       workDir,
				RDBPath:       rdbPath,
				PollInterval:  pollInterval,
				SaveTimeout:   saveTimeout,
				Retries:       retries,
				RetryDelay:    retryDelay,
			},
		}

		if err := s.AddTask(task); err != nil {
			return err
		}

		l.Info("Scheduled backup task added", "schedule", sched, "id", task.ID)

		if !daemonMode {
			return spawnDaemon(l)
		}
		return nil
	},
}

var scheduleRemoveCmd = &cobra.Command{
	Use:   "remove [ID]",
	Short: "Remove a scheduled task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		l := logger.New(logger.Config{JSON: LogJSON, NoColor: NoColor})
		id := args[0]

		s, err := scheduler.NewScheduler(nil, "")
		if err != nil {
			return err
		}
		if err := s.Load(); err != nil {
			return err
		}
		if err := s.Resume(); err != nil {
			return err
		}

		if err := s.RemoveTask(id); err != nil {
			return err
		}

		l.Info("Task removed successfully", "id", id)
		return nil
	},
}

var scheduleStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the scheduler daemon (internal use)",
	RunE: func(cmd *cobra.Command, args []string) error {
		l := logger.New(logger.Config{JSON: LogJSON, NoColor: NoColor})

		s, err := scheduler.NewScheduler(database.DefaultRegistry(), "")
		if err != nil {
			return err
		}
		if err := s.Load(); err != nil {
			return err
		}
		if err := s.Resume(); err != nil {
			return err
		}

		tasks := s.ListTasks()
		l.Info("Starting scheduler", "task_count", len(tasks))

		s.Start()
		defer s.Stop()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		l.Info("Shutting down scheduler")
		return nil
	},
}

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all active schedules",
	RunE: func(cmd *cobra.Command, args []string) error {
		l := logger.New(logger.Config{JSON: LogJSON, NoColor: NoColor})

		s, err := scheduler.NewScheduler(nil, "")
		if err != nil {
			return err
		}
		if err := s.Load(); err != nil {
			return err
		}
		if err := s.Resume(); err != nil {
			return err
		}

		tasks := s.ListTasks()
		if len(tasks) == 0 {
			l.Info("No active schedules found")
			return nil
		}

		for _, t := range tasks {
			next := "N/A"
			if t.NextRun != nil {
				next = t.NextRun.Format("2006-01-02 15:04:05")
			}
			l.Info("Scheduled Task",
				"id", t.ID,
				"engine", t.Engine,
				"status", t.Status,
				"schedule", t.Schedule,
				"next_run", next,
			)
		}
		return nil
	},
}

func spawnDaemon(l *logger.Logger) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	// Run `hookdump schedule start` detached from the terminal.
	cmd := exec.Command(exe, "schedule", "start", "--daemon")
	cmd.Dir = filepath.Dir(exe)
	cmd.Stdout = nil
	cmd.Stderr = nil
	cmd.Stdin = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	l.Info("Scheduler daemon started", "pid", cmd.Process.Pid)
	return nil
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
	scheduleCmd.AddCommand(scheduleBackupCmd)
	scheduleCmd.AddCommand(scheduleRemoveCmd)
	scheduleCmd.AddCommand(scheduleStartCmd)
	scheduleCmd.AddCommand(scheduleListCmd)

	// Hidden flag for daemon mode
	scheduleStartCmd.Flags().BoolVar(&daemonMode, "daemon", false, "Run in daemon mode (internal)")
	scheduleStartCmd.Flags().MarkHidden("daemon")

	scheduleBackupCmd.Flags().StringVar(&cronSpec, "cron", "", "Cron schedule (e.g. \"0 2 * * *\")")
	scheduleBackupCmd.Flags().StringVar(&interval, "interval", "", "Interval schedule (e.g. \"1h\", \"30m\")")
	scheduleBackupCmd.Flags().IntVar(&retries, "retries", 3, "Number of retries on failure")
	scheduleBackupCmd.Flags().StringVar(&retryDelay, "retry-delay", "5m", "Delay between retries")

	scheduleBackupCmd.Flags().StringVar(&dbURI, "uri", "", "full database connection URI")
	scheduleBackupCmd.Flags().StringVar(&dbName, "dbname", "", "database name (file path for sqlite)")
	scheduleBackupCmd.Flags().StringVar(&fileName, "name", "", "custom artifact file name")
	scheduleBackupCmd.Flags().BoolVar(&compress, "compress", false, "compress the dump before delivery")
	scheduleBackupCmd.Flags().StringVar(&compressionAlgo, "compression-algo", "", "compression algorithm (gzip, zstd, lz4)")
	scheduleBackupCmd.Flags().StringVar(&webhookURL, "webhook-url", "", "chat webhook URL to deliver the artifact to")
	scheduleBackupCmd.Flags().StringVar(&username, "webhook-username", "", "override the webhook's display name")
	scheduleBackupCmd.Flags().Int64Var(&maxFileBytes, "max-file-bytes", 0, "upload ceiling per file (default 8 MiB)")
	scheduleBackupCmd.Flags().StringVar(&archiveURI, "archive", "", "also store a copy at this URI")
	scheduleBackupCmd.Flags().BoolVar(&allowInsecure, "allow-insecure", false, "permit plaintext archive protocols such as FTP")
	scheduleBackupCmd.Flags().StringVar(&rdbPath, "rdb-path", "", "redis: path to the server's dump.rdb")
	scheduleBackupCmd.Flags().StringVar(&pollInterval, "poll-interval", "", "redis: background save poll interval")
	scheduleBackupCmd.Flags().StringVar(&saveTimeout, "save-timeout", "", "redis: background save wait ceiling")
}
