package db

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"database/sql"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-sql-driver/mysql"
	apperrors "github.com/hookdump/hookdump/internal/errors"
	"github.com/hookdump/hookdump/internal/logger"
)

type MysqlAdapter struct {
	logger *logger.Logger
}

func (ma *MysqlAdapter) Name() string {
	return "mysql"
}

func (ma *MysqlAdapter) SetLogger(l *logger.Logger) {
	ma.logger = l
}

func (ma *MysqlAdapter) TestConnection(ctx context.Context, conn ConnectionParams, runner Runner) error {
	if ma.logger != nil {
		ma.logger.Info("Testing database connection...", "host", conn.Host, "db", conn.DBName)
	}
	dsn, err := ma.BuildConnection(ctx, conn)
	if err != nil {
		return err
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return apperrors.Wrap(err, apperrors.TypeConfig, "failed to open MySQL connection", "Check your connection string and driver availability.")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return apperrors.Wrap(err, apperrors.TypeConnection, "failed to ping database", "Verify the database host, port, and credentials.")
	}
	return nil
}

func (ma *MysqlAdapter) BuildConnection(ctx context.Context, conn ConnectionParams) (string, error) {
	if conn.URI != "" {
		return conn.URI, nil
	}

	if conn.Host == "" || conn.User == "" || conn.DBName == "" {
		return "", apperrors.New(apperrors.TypeConfig, "missing required MySQL connection fields", "Check --host, --user, and --dbname flags.")
	}

	if conn.Port == 0 {
		conn.Port = 3306
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s", conn.User, conn.Password, conn.Host, conn.Port, conn.DBName)

	if conn.TLS.Enabled {
		tlsName, err := ma.ensureTLSConfig(conn.TLS)
		if err != nil {
			return "", err
		}
		dsn += "?tls=" + tlsName
	}

	return dsn, nil
}

func (ma *MysqlAdapter) ensureTLSConfig(cfg TLSConfig) (string, error) {
	if cfg.CACert == "" && cfg.ClientCert == "" && (cfg.Mode == "" || cfg.Mode == "disable" || cfg.Mode == "require") {
		return "true", nil // Default to basic TLS
	}

	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS12,
	}

	if cfg.CACert != "" {
		rootCertPool := x509.NewCertPool()
		pem, err := os.ReadFile(cfg.CACert)
		if err != nil {
			return "", apperrors.Wrap(err, apperrors.TypeResource, "failed to read CA cert", "Check the path and permissions for your CA certificate.")
		}
		if ok := rootCertPool.AppendCertsFromPEM(pem); !ok {
			return "", apperrors.New(apperrors.TypeAuth, "failed to append CA cert", "Provide a valid PEM-encoded CA certificate.")
		}
		tlsConfig.RootCAs = rootCertPool
	}

	if cfg.ClientCert != "" && cfg.ClientKey != "" {
		certs, err := tls.LoadX509KeyPair(cfg.ClientCert, cfg.ClientKey)
		if err != nil {
			return "", apperrors.Wrap(err, apperrors.TypeAuth, "failed to load client cert/key", "Verify the certificate paths and ensure they match.")
		}
		tlsConfig.Certificates = []tls.Certificate{certs}
	}

	switch cfg.Mode {
	case "skip-verify":
		tlsConfig.InsecureSkipVerify = true
	case "verify-ca", "verify-full":
		tlsConfig.InsecureSkipVerify = false
	}

	configName := fmt.Sprintf("custom_%t_%t", cfg.CACert != "", cfg.ClientCert != "")
	mysql.RegisterTLSConfig(configName, tlsConfig)
	return configName, nil
}

func (ma *MysqlAdapter) Dump(ctx context.Context, conn ConnectionParams, runner Runner, w io.Writer) error {
	if conn.Port == 0 {
		conn.Port = 3306
	}

	if ma.logger != nil {
		ma.logger.Info("Executing logical dump (mysqldump)...", "db", conn.DBName)
	}

	args := []string{
		fmt.Sprintf("--host=%s", conn.Host),
		fmt.Sprintf("--port=%d", conn.Port),
		fmt.Sprintf("--user=%s", conn.User),
		fmt.Sprintf("--password=%s", conn.Password),
		"--single-transaction",
		"--quick",
		"--skip-lock-tables",
		"--no-tablespaces",
	}

	if conn.TLS.Enabled {
		if conn.TLS.CACert != "" {
			args = append(args, fmt.Sprintf("--ssl-ca=%s", conn.TLS.CACert))
		}
	} else {
		args = append(args, "--ssl=OFF")
	}

	args = append(args, conn.DBName)

	if err := runner.Run(ctx, "mysqldump", args, w); err != nil {
		if IsNotFound(err) {
			return apperrors.New(apperrors.TypeDependency, "mysqldump not found", "Please install mysql-client or mariadb-client to enable logical dumps.")
		}
		return apperrors.Wrap(err, apperrors.TypeInternal, "mysqldump execution failed", "Check mysqldump output or permissions.")
	}

	return nil
}
