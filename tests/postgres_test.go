package tests

import (
	"context"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hookdump/hookdump/internal/backup"
	"github.com/hookdump/hookdump/internal/db"
	"github.com/hookdump/hookdump/internal/deliver"
	"github.com/hookdump/hookdump/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// fakeWebhook accepts multipart uploads the way a chat webhook does and
// records the decompressed payloads it received.
type fakeWebhook struct {
	server  *httptest.Server
	uploads []string
}

func newFakeWebhook(t *testing.T) *fakeWebhook {
	t.Helper()
	fw := &fakeWebhook{}
	fw.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		mr := multipart.NewReader(r.Body, params["boundary"])
		for {
			part, err := mr.NextPart()
			if err != nil {
				break
			}
			if part.FormName() == "files[0]" {
				data, _ := io.ReadAll(part)
				fw.uploads = append(fw.uploads, string(data))
			}
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(fw.server.Close)
	return fw
}

func TestPostgresIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	dbName := "testdb"
	dbUser := "postgres"
	dbPassword := "password"

	postgresContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image: "postgres:17-alpine",
			Env: map[string]string{
				"POSTGRES_DB":               dbName,
				"POSTGRES_USER":             dbUser,
				"POSTGRES_PASSWORD":         dbPassword,
				"POSTGRES_HOST_AUTH_METHOD": "trust",
			},
			ExposedPorts: []string{"5432/tcp"},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	defer postgresContainer.Terminate(ctx)

	connHost, err := postgresContainer.Host(ctx)
	require.NoError(t, err)

	connPort, err := postgresContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	l := logger.New(logger.Config{Level: slog.LevelDebug})
	registry := db.DefaultRegistry()
	adapter, err := registry.Get("postgres")
	require.NoError(t, err)
	adapter.SetLogger(l)

	conn := db.ConnectionParams{
		Host:     connHost,
		Port:     connPort.Int(),
		User:     dbUser,
		Password: dbPassword,
		DBName:   dbName,
	}

	t.Run("TestConnection", func(t *testing.T) {
		assert.NoError(t, adapter.TestConnection(ctx, conn, &db.LocalRunner{}))
	})

	t.Run("DumpAndDeliver", func(t *testing.T) {
		fw := newFakeWebhook(t)
		workDir := t.TempDir()
		archiveDir := t.TempDir()

		deliverer := deliver.NewDiscordDeliverer(fw.server.URL)
		deliverer.Logger = l

		mgr, err := backup.NewManager(backup.Options{
			TargetID:   "it-postgres",
			FileName:   "it.sql",
			WorkDir:    workDir,
			ArchiveURI: archiveDir,
			Logger:     l,
			Deliverer:  deliverer,
		})
		require.NoError(t, err)

		require.NoError(t, mgr.Run(ctx, adapter, conn))

		require.Len(t, fw.uploads, 1)
		assert.Contains(t, fw.uploads[0], "PostgreSQL database dump")

		archived, err := os.ReadFile(filepath.Join(archiveDir, "it.sql"))
		require.NoError(t, err)
		assert.Contains(t, string(archived), "PostgreSQL database dump")

		// Staged artifact is gone after successful delivery.
		_, err = os.Stat(filepath.Join(workDir, "it.sql"))
		assert.True(t, os.IsNotExist(err))
	})
}
