// Package backup drives one full pipeline run: dump the database,
// optionally compress and archive the artifact, then hand it to the
// webhook deliverer.
package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hookdump/hookdump/internal/compress"
	database "github.com/hookdump/hookdump/internal/db"
	"github.com/hookdump/hookdump/internal/notify"
	"github.com/hookdump/hookdump/internal/storage"
)

type Manager struct {
	Options Options
	archive storage.Storage
}

func NewManager(opts Options) (*Manager, error) {
	archive, err := storage.FromURI(opts.ArchiveURI, storage.StorageOptions{
		AllowInsecure: opts.AllowInsecure,
	})
	if err != nil {
		return nil, err
	}

	return &Manager{
		Options: opts,
		archive: archive,
	}, nil
}

func (m *Manager) SetArchive(s storage.Storage) {
	m.archive = s
}

// Run executes the pipeline and reports the outcome to the configured
// notifiers. The returned error is the pipeline error, if any.
func (m *Manager) Run(ctx context.Context, adapter database.Adapter, conn database.ConnectionParams) error {
	start := time.Now()

	artifact, size, err := m.run(ctx, adapter, conn)

	stats := notify.Stats{
		Status:   notify.StatusSuccess,
		Engine:   adapter.Name(),
		Target:   m.Options.TargetID,
		FileName: filepath.Base(artifact),
		Size:     size,
		Parts:    m.estimateParts(size),
		Duration: time.Since(start),
	}
	if err != nil {
		stats.Status = notify.StatusError
		stats.Error = err
	}

	if m.Options.Notifier != nil {
		if nerr := m.Options.Notifier.Notify(ctx, stats); nerr != nil && m.Options.Logger != nil {
			m.Options.Logger.Warn("Failed to send notification", "error", nerr)
		}
	}

	return err
}

func (m *Manager) run(ctx context.Context, adapter database.Adapter, conn database.ConnectionParams) (string, int64, error) {
	if err := conn.ParseURI(); err != nil {
		if m.Options.Logger != nil {
			m.Options.Logger.Warn("Failed to parse DB URI", "error", err)
		}
	}

	if m.Options.Logger != nil {
		m.Options.Logger.Debug("Backup started", "engine", adapter.Name(), "target", m.Options.TargetID)
	}

	algo := compress.Algorithm(m.Options.Algorithm)
	if m.Options.Compress && algo == "" {
		algo = compress.Lz4
	}

	name := m.artifactName(adapter.Name(), algo)
	workDir := m.Options.WorkDir
	if workDir == "" {
		workDir = os.TempDir()
	}
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return name, 0, fmt.Errorf("failed to create work directory: %w", err)
	}

	artifact := filepath.Join(workDir, name)
	size, err := m.writeArtifact(ctx, adapter, conn, artifact, algo)
	if err != nil {
		os.Remove(artifact)
		return name, 0, err
	}

	if m.archive != nil {
		if err := m.archiveArtifact(ctx, artifact, name); err != nil {
			os.Remove(artifact)
			return name, size, err
		}
	}

	if m.Options.Deliverer != nil {
		if err := m.Options.Deliverer.Deliver(ctx, artifact); err != nil {
			// Leave the artifact in place so the run can be retried
			// without another dump.
			if m.Options.Logger != nil {
				m.Options.Logger.Error("Delivery failed, keeping artifact", "path", artifact)
			}
			return name, size, err
		}
	}

	if !m.Options.KeepLocal {
		if err := os.Remove(artifact); err != nil && m.Options.Logger != nil {
			m.Options.Logger.Warn("Failed to remove staged artifact", "path", artifact, "error", err)
		}
	} else if m.Options.Logger != nil {
		m.Options.Logger.Info("Artifact kept locally", "path", artifact)
	}

	if m.Options.Logger != nil {
		m.Options.Logger.Info("Backup completed", "file", name, "size", size)
	}

	return name, size, nil
}

func (m *Manager) writeArtifact(ctx context.Context, adapter database.Adapter, conn database.ConnectionParams, path string, algo compress.Algorithm) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create artifact file: %w", err)
	}
	defer f.Close()

	if m.Options.Compress && algo != compress.None {
		c, err := compress.New(f, algo)
		if err != nil {
			return 0, err
		}
		if err := adapter.Dump(ctx, conn, &database.LocalRunner{}, c); err != nil {
			c.Close()
			return 0, err
		}
		if err := c.Close(); err != nil {
			return 0, err
		}
	} else {
		if err := adapter.Dump(ctx, conn, &database.LocalRunner{}, f); err != nil {
			return 0, err
		}
	}

	if err := f.Sync(); err != nil {
		return 0, err
	}
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (m *Manager) archiveArtifact(ctx context.Context, artifact, name string) error {
	f, err := os.Open(artifact)
	if err != nil {
		return err
	}
	defer f.Close()

	location, err := m.archive.Save(ctx, name, f)
	if err != nil {
		return fmt.Errorf("archive save failed: %w", err)
	}
	if m.Options.Logger != nil {
		m.Options.Logger.Info("Artifact archived", "location", storage.Scrub(location))
	}
	return nil
}

func (m *Manager) artifactName(engine string, algo compress.Algorithm) string {
	name := m.Options.FileName
	if name == "" {
		ext := ".sql"
		if engine == "redis" {
			ext = ".rdb"
		}
		prefix := strings.ToLower(engine)
		if prefix == "" {
			prefix = "backup"
		}
		name = fmt.Sprintf("%s-%s%s", prefix, time.Now().Format("20060102-150405"), ext)
	}
	if m.Options.Compress && algo != compress.None {
		name += compress.Suffix(algo)
	}
	return name
}

func (m *Manager) estimateParts(size int64) int {
	if size <= 0 || m.Options.MaxFileBytes <= 0 {
		return 0
	}
	if size <= m.Options.MaxFileBytes {
		return 1
	}
	return int((size + m.Options.MaxFileBytes - 1) / m.Options.MaxFileBytes)
}
