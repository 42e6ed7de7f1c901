package cmd

import (
	"fmt"
	"time"

	backuppkg "github.com/hookdump/hookdump/internal/backup"
	"github.com/hookdump/hookdump/internal/config"
	database "github.com/hookdump/hookdump/internal/db"
	"github.com/hookdump/hookdump/internal/deliver"
	"github.com/hookdump/hookdump/internal/logger"
	"github.com/hookdump/hookdump/internal/notify"
	storagepkg "github.com/hookdump/hookdump/internal/storage"
	"github.com/spf13/cobra"
)

var (
	targetID string

	engine   string
	host     string
	user     string
	password string
	dbName   string
	port     int
	dbURI    string

	webhookURL   string
	username     string
	maxFileBytes int64

	compress        bool
	compressionAlgo string
	fileName        string
	keepLocal       bool
	workDir         string

	archiveURI    string
	allowInsecure bool

	rdbPath      string
	pollInterval string
	saveTimeout  string

	tlsEnabled    bool
	tlsMode       string
	tlsCACert     string
	tlsClientCert string
	tlsClientKey  string
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Dump a database and deliver the artifact to the webhook",
	Long: `Dump the specified database, optionally compress and archive the
artifact, then upload it to the configured chat webhook. Artifacts larger
than the platform's upload ceiling are split into ordered parts before
upload. If any step fails, hookdump exits with a non-zero status code.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		l := logger.New(logger.Config{
			JSON:    LogJSON,
			NoColor: NoColor,
		})

		cfg := config.GetConfig()
		if targetID != "" {
			if err := applyTarget(cfg, targetID); err != nil {
				return err
			}
		}

		if dbURI != "" {
			if host != "" || user != "" || password != "" {
				return fmt.Errorf(
					"--uri cannot be used together with --host, --user, or --password",
				)
			}
		} else if engine == "" {
			return fmt.Errorf("--engine is required (or use --target with a configured target)")
		}

		if tlsEnabled && tlsMode == "disable" {
			return fmt.Errorf("--tls is enabled but --tls-mode is set to disable")
		}
		if tlsClientCert != "" && tlsClientKey == "" {
			return fmt.Errorf("--tls-client-key is required when --tls-client-cert is provided")
		}

		conn := database.ConnectionParams{
			Engine:   engine,
			Host:     host,
			Port:     port,
			User:     user,
			Password: password,
			DBName:   dbName,
			URI:      dbURI,
			RDBPath:  rdbPath,
			TLS: database.TLSConfig{
				Enabled:    tlsEnabled,
				Mode:       tlsMode,
				CACert:     tlsCACert,
				ClientCert: tlsClientCert,
				ClientKey:  tlsClientKey,
			},
		}
		if err := conn.ParseURI(); err != nil {
			return err
		}
		if conn.Engine == "" {
			return fmt.Errorf("could not determine the database engine; pass --engine or a scheme-qualified --uri")
		}

		registry := database.DefaultRegistry()
		adapter, err := registry.Get(conn.Engine)
		if err != nil {
			return err
		}
		adapter = tuneRedis(adapter)
		adapter.SetLogger(l)

		url := webhookURL
		if url == "" {
			url = cfg.Webhook.URL
		}
		maxBytes := maxFileBytes
		if maxBytes <= 0 {
			maxBytes = cfg.Webhook.MaxFileBytes
		}
		name := username
		if name == "" {
			name = cfg.Webhook.Username
		}

		deliverer := deliver.NewDiscordDeliverer(url)
		deliverer.Username = name
		if maxBytes > 0 {
			deliverer.MaxFileBytes = maxBytes
		}
		deliverer.Logger = l
		if !LogJSON {
			deliverer.Progress = deliver.NewProgressContainer()
		}

		arcURI := archiveURI
		if arcURI == "" {
			arcURI = cfg.Archive.URI
		}
		insecure := allowInsecure || cfg.Archive.AllowInsecure

		mgr, err := backuppkg.NewManager(backuppkg.Options{
			TargetID:      targetID,
			Compress:      compress,
			Algorithm:     compressionAlgo,
			FileName:      fileName,
			WorkDir:       workDir,
			KeepLocal:     keepLocal,
			ArchiveURI:    arcURI,
			AllowInsecure: insecure,
			MaxFileBytes:  maxBytes,
			Logger:        l,
			Notifier:      buildNotifier(cfg),
			Deliverer:     deliverer,
		})
		if err != nil {
			return err
		}

		if err := adapter.TestConnection(cmd.Context(), conn, &database.LocalRunner{}); err != nil {
			return err
		}

		l.Info("Backup started", "engine", conn.Engine, "database", conn.DBName, "webhook", cfg.Webhook.Provider, "archive", storagepkg.Scrub(arcURI))
		start := time.Now()

		if err := mgr.Run(cmd.Context(), adapter, conn); err != nil {
			l.Error("Backup failed", "error", err)
			return err
		}

		l.Info("Backup finished",
			"database", conn.DBName,
			"duration", time.Since(start).String(),
		)

		return nil
	},
}

// applyTarget fills the connection flags from a configured target. Flags
// given on the command line keep precedence.
func applyTarget(cfg *config.Config, id string) error {
	for _, t := range cfg.Targets {
		if t.ID != id {
			continue
		}
		if engine == "" {
			engine = t.Engine
		}
		if dbURI == "" {
			dbURI = t.URI
		}
		if host == "" {
			host = t.Host
		}
		if user == "" {
			user = t.User
		}
		if password == "" {
			password = t.Pass
		}
		if dbName == "" {
			dbName = t.DB
		}
		if port == 0 {
			port = t.Port
		}
		if rdbPath == "" {
			rdbPath = t.RDBPath
		}
		if pollInterval == "" {
			pollInterval = t.PollInterval
		}
		if saveTimeout == "" {
			saveTimeout = t.SaveTimeout
		}
		if fileName == "" {
			fileName = t.FileName
		}
		if !compress {
			compress = t.Compress
		}
		if compressionAlgo == "" {
			compressionAlgo = t.Algorithm
		}
		if !keepLocal {
			keepLocal = t.KeepLocal
		}
		if !tlsEnabled {
			tlsEnabled = t.TLS.Enabled
			tlsMode = t.TLS.Mode
			tlsCACert = t.TLS.CACert
			tlsClientCert = t.TLS.ClientCert
			tlsClientKey = t.TLS.ClientKey
		}
		return nil
	}
	return fmt.Errorf("target %q not found in configuration", id)
}

// tuneRedis applies --poll-interval and --save-timeout to Redis targets.
func tuneRedis(adapter database.Adapter) database.Adapter {
	ra, ok := adapter.(*database.RedisAdapter)
	if !ok {
		return adapter
	}
	if d, err := time.ParseDuration(pollInterval); err == nil && d > 0 {
		ra.PollInterval = d
	}
	if d, err := time.ParseDuration(saveTimeout); err == nil && d > 0 {
		ra.SaveTimeout = d
	}
	return ra
}

func buildNotifier(cfg *config.Config) notify.Notifier {
	var notifiers []notify.Notifier
	if cfg.Notifications.Slack.WebhookURL != "" {
		notifiers = append(notifiers, notify.NewSlackNotifier(cfg.Notifications.Slack.WebhookURL, ""))
	}
	if cfg.Notifications.Webhook.URL != "" {
		n := cfg.Notifications.Webhook
		notifiers = append(notifiers, notify.NewWebhookNotifier(n.URL, n.Method, n.Template, n.Headers))
	}
	if len(notifiers) == 0 {
		return nil
	}
	if len(notifiers) == 1 {
		return notifiers[0]
	}
	return &notify.MultiNotifier{Notifiers: notifiers}
}

func init() {
	rootCmd.AddCommand(backupCmd)

	backupCmd.Flags().StringVar(&targetID, "target", "", "configured target id to back up")

	backupCmd.Flags().StringVar(&engine, "engine", "", "database engine (postgres, mysql, sqlite, redis)")
	backupCmd.Flags().StringVar(&host, "host", "", "database host")
	backupCmd.Flags().StringVar(&user, "user", "", "database username")
	backupCmd.Flags().StringVar(&password, "password", "", "database password")
	backupCmd.Flags().StringVar(&dbName, "dbname", "", "database name (file path for sqlite)")
	backupCmd.Flags().IntVar(&port, "port", 0, "database port")
	backupCmd.Flags().StringVar(&dbURI, "uri", "", "full database connection URI (overrides individual connection flags)")

	backupCmd.Flags().StringVar(&webhookURL, "webhook-url", "", "chat webhook URL to deliver the artifact to")
	backupCmd.Flags().StringVar(&username, "webhook-username", "", "override the webhook's display name")
	backupCmd.Flags().Int64Var(&maxFileBytes, "max-file-bytes", 0, "upload ceiling per file; larger artifacts are split (default 8 MiB)")

	backupCmd.Flags().BoolVar(&compress, "compress", false, "compress the dump before delivery")
	backupCmd.Flags().StringVar(&compressionAlgo, "compression-algo", "", "compression algorithm (gzip, zstd, lz4; defaults to lz4)")
	backupCmd.Flags().StringVar(&fileName, "name", "", "custom artifact file name")
	backupCmd.Flags().BoolVar(&keepLocal, "keep-local", false, "keep the staged artifact after delivery")
	backupCmd.Flags().StringVar(&workDir, "work-dir", "", "directory to stage artifacts in (defaults to the system temp dir)")

	backupCmd.Flags().StringVar(&archiveURI, "archive", "", "also store a copy at this URI (dir, s3://, sftp://, ftp://)")
	backupCmd.Flags().BoolVar(&allowInsecure, "allow-insecure", false, "permit plaintext archive protocols such as FTP")

	backupCmd.Flags().StringVar(&rdbPath, "rdb-path", "", "redis: path to the server's dump.rdb")
	backupCmd.Flags().StringVar(&pollInterval, "poll-interval", "", "redis: background save poll interval (default 500ms)")
	backupCmd.Flags().StringVar(&saveTimeout, "save-timeout", "", "redis: background save wait ceiling (default 2m)")

	backupCmd.Flags().BoolVar(&tlsEnabled, "tls", false, "enable TLS/SSL for the database connection")
	backupCmd.Flags().StringVar(&tlsMode, "tls-mode", "disable", "TLS mode (disable, require, verify-ca, verify-full)")
	backupCmd.Flags().StringVar(&tlsCACert, "tls-ca-cert", "", "path to CA certificate for TLS verification")
	backupCmd.Flags().StringVar(&tlsClientCert, "tls-client-cert", "", "path to client certificate for mutual TLS (mTLS)")
	backupCmd.Flags().StringVar(&tlsClientKey, "tls-client-key", "", "path to client private key for mutual TLS (mTLS)")
}
