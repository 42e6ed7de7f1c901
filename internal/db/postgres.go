package db

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/url"
	"time"

	apperrors "github.com/hookdump/hookdump/internal/errors"
	"github.com/hookdump/hookdump/internal/logger"
	_ "github.com/lib/pq"
)

type PostgresAdapter struct {
	logger *logger.Logger
}

func (pa *PostgresAdapter) Name() string {
	return "postgres"
}

func (pa *PostgresAdapter) SetLogger(l *logger.Logger) {
	pa.logger = l
}

func (pa *PostgresAdapter) TestConnection(ctx context.Context, conn ConnectionParams, runner Runner) error {
	if pa.logger != nil {
		pa.logger.Info("Testing database connection...", "host", conn.Host, "db", conn.DBName)
	}
	dsn, err := pa.BuildConnection(ctx, conn)
	if err != nil {
		return err
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return apperrors.Wrap(err, apperrors.TypeConfig, "failed to open Postgres connection", "Check your connection string and driver availability.")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return apperrors.Wrap(err, apperrors.TypeConnection, "failed to ping database", "Verify the database host, port, and credentials.")
	}
	return nil
}

func (pa *PostgresAdapter) BuildConnection(ctx context.Context, conn ConnectionParams) (string, error) {
	if conn.URI != "" {
		return conn.URI, nil
	}

	if conn.Host == "" || conn.User == "" || conn.DBName == "" {
		return "", apperrors.New(apperrors.TypeConfig, "missing required Postgres connection fields", "Check --host, --user, and --dbname flags.")
	}

	if conn.Port == 0 {
		conn.Port = 5432
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(conn.User, conn.Password),
		Host:   fmt.Sprintf("%s:%d", conn.Host, conn.Port),
		Path:   conn.DBName,
	}

	q := u.Query()

	if conn.TLS.Enabled {
		if conn.TLS.Mode == "" {
			conn.TLS.Mode = "require"
		}
		q.Set("sslmode", conn.TLS.Mode)

		if conn.TLS.CACert != "" {
			q.Set("sslrootcert", conn.TLS.CACert)
		}
		if conn.TLS.ClientCert != "" && conn.TLS.ClientKey != "" {
			q.Set("sslcert", conn.TLS.ClientCert)
			q.Set("sslkey", conn.TLS.ClientKey)
		} else if conn.TLS.ClientCert != "" || conn.TLS.ClientKey != "" {
			return "", apperrors.New(apperrors.TypeConfig, "both TLS ClientCert and ClientKey must be provided for mTLS", "Pass --tls-client-cert and --tls-client-key together.")
		}
	} else {
		q.Set("sslmode", "disable")
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (pa *PostgresAdapter) Dump(ctx context.Context, conn ConnectionParams, runner Runner, w io.Writer) error {
	dsn, err := pa.BuildConnection(ctx, conn)
	if err != nil {
		return err
	}

	if pa.logger != nil {
		pa.logger.Info("Executing logical dump (pg_dump)...", "db", conn.DBName)
	}

	// The DSN carries credentials, so no PGPASSWORD plumbing is needed.
	args := []string{
		fmt.Sprintf("--dbname=%s", dsn),
		"--no-owner",
		"--no-privileges",
	}

	if err := runner.Run(ctx, "pg_dump", args, w); err != nil {
		if IsNotFound(err) {
			return apperrors.New(apperrors.TypeDependency, "pg_dump not found", "Please install postgresql-client to enable Postgres dumps.")
		}
		return apperrors.Wrap(err, apperrors.TypeInternal, "pg_dump execution failed", "Check pg_dump output or permissions.")
	}

	return nil
}
