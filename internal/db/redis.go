package db

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	apperrors "github.com/hookdump/hookdump/internal/errors"
	"github.com/hookdump/hookdump/internal/logger"
	"github.com/redis/go-redis/v9"
)

const (
	defaultPollInterval = 500 * time.Millisecond
	defaultSaveTimeout  = 2 * time.Minute
)

// RedisAdapter snapshots a Redis instance by triggering BGSAVE, waiting
// for the background save to land, then streaming the RDB file from disk.
// It only works when the RDB path is reachable from this process.
type RedisAdapter struct {
	logger *logger.Logger

	PollInterval time.Duration
	SaveTimeout  time.Duration
}

func (ra *RedisAdapter) Name() string {
	return "redis"
}

func (ra *RedisAdapter) SetLogger(l *logger.Logger) {
	ra.logger = l
}

func (ra *RedisAdapter) client(conn ConnectionParams) (*redis.Client, error) {
	if conn.URI != "" {
		opts, err := redis.ParseURL(conn.URI)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.TypeConfig, "invalid Redis URI", "Use the redis://[user:pass@]host:port/db form.")
		}
		return redis.NewClient(opts), nil
	}

	host := conn.Host
	if host == "" {
		host = "localhost"
	}
	port := conn.Port
	if port == 0 {
		port = 6379
	}

	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Username: conn.User,
		Password: conn.Password,
	}), nil
}

func (ra *RedisAdapter) TestConnection(ctx context.Context, conn ConnectionParams, runner Runner) error {
	c, err := ra.client(conn)
	if err != nil {
		return err
	}
	defer c.Close()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := c.Ping(ctx).Err(); err != nil {
		return apperrors.Wrap(err, apperrors.TypeConnection, "failed to ping Redis", "Verify the Redis host, port, and credentials.")
	}
	return nil
}

func (ra *RedisAdapter) Dump(ctx context.Context, conn ConnectionParams, runner Runner, w io.Writer) error {
	if conn.RDBPath == "" {
		return apperrors.New(apperrors.TypeConfig, "redis rdb_path is not set", "Point rdb_path at the server's dump.rdb (e.g. /var/lib/redis/dump.rdb).")
	}

	c, err := ra.client(conn)
	if err != nil {
		return err
	}
	defer c.Close()

	interval := ra.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	timeout := ra.SaveTimeout
	if timeout <= 0 {
		timeout = defaultSaveTimeout
	}

	if ra.logger != nil {
		ra.logger.Info("Waiting for Redis background save...", "interval", interval.String(), "timeout", timeout.String())
	}

	res, err := WaitForSnapshot(ctx, &redisSnapshotter{c: c}, interval, timeout)
	if err != nil {
		return apperrors.Wrap(err, apperrors.TypeConnection, "snapshot wait aborted", "Check connectivity to the Redis server.")
	}

	switch res.Outcome {
	case SaveCompleted:
		// fall through to reading the RDB file
	case SaveFailed:
		return apperrors.New(apperrors.TypeResource,
			fmt.Sprintf("redis background save failed: %s", res.Reason),
			"Check the Redis server logs, its disk space, and the dir/dbfilename settings.")
	case SaveTimedOut:
		return apperrors.New(apperrors.TypeResource,
			fmt.Sprintf("redis background save did not complete within %s", timeout),
			"Increase save_timeout for large datasets or slow disks.")
	}

	srcFile, err := os.Open(conn.RDBPath)
	if err != nil {
		return apperrors.Wrap(err, apperrors.TypeResource, "failed to open RDB file", "Ensure rdb_path matches the server's dir/dbfilename and is readable.")
	}
	defer srcFile.Close()

	_, err = io.Copy(w, srcFile)
	return err
}

// redisSnapshotter adapts a go-redis client to the Snapshotter interface.
type redisSnapshotter struct {
	c *redis.Client
}

func (s *redisSnapshotter) BgSave(ctx context.Context) error {
	err := s.c.BgSave(ctx).Err()
	// Racing another writer that just started a save is fine; the poll
	// loop watches that attempt instead.
	if err != nil && strings.Contains(err.Error(), "already in progress") {
		return nil
	}
	return err
}

func (s *redisSnapshotter) PersistenceInfo(ctx context.Context) (PersistenceInfo, error) {
	raw, err := s.c.Info(ctx, "persistence").Result()
	if err != nil {
		return PersistenceInfo{}, err
	}
	return ParsePersistenceInfo(raw), nil
}
