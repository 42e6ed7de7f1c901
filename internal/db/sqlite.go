package db

import (
	"context"
	"database/sql"
	"io"
	"os"

	apperrors "github.com/hookdump/hookdump/internal/errors"
	"github.com/hookdump/hookdump/internal/logger"
	_ "github.com/mattn/go-sqlite3"
)

type SqliteAdapter struct {
	logger *logger.Logger
}

func (sq *SqliteAdapter) Name() string {
	return "sqlite"
}

func (sq *SqliteAdapter) SetLogger(l *logger.Logger) {
	sq.logger = l
}

func (sq *SqliteAdapter) TestConnection(ctx context.Context, conn ConnectionParams, runner Runner) error {
	path, err := sq.dbPath(conn)
	if err != nil {
		return err
	}
	if sq.logger != nil {
		sq.logger.Info("Connecting to SQLite database...", "path", path)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return apperrors.Wrap(err, apperrors.TypeConfig, "failed to open SQLite DB", "Verify the file path and permissions.")
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return apperrors.Wrap(err, apperrors.TypeResource, "failed to ping SQLite DB", "Ensure the file is a valid SQLite database.")
	}
	return nil
}

func (sq *SqliteAdapter) dbPath(conn ConnectionParams) (string, error) {
	path := conn.DBName
	if path == "" && conn.URI != "" {
		path = conn.URI
	}

	if path == "" {
		return "", apperrors.New(apperrors.TypeConfig, "sqlite DB path is empty", "Provide a database file path via --dbname.")
	}
	return path, nil
}

func (sq *SqliteAdapter) Dump(ctx context.Context, conn ConnectionParams, runner Runner, w io.Writer) error {
	path, err := sq.dbPath(conn)
	if err != nil {
		return err
	}
	if sq.logger != nil {
		sq.logger.Info("Starting SQLite dump...", "path", path)
	}

	srcFile, err := os.Open(path)
	if err != nil {
		return apperrors.Wrap(err, apperrors.TypeResource, "failed to open SQLite file", "Ensure the database file exists and is readable.")
	}
	defer srcFile.Close()

	_, err = io.Copy(w, srcFile)
	return err
}
