package db

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strconv"
	"strings"

	apperrors "github.com/hookdump/hookdump/internal/errors"
	"github.com/hookdump/hookdump/internal/logger"
)

type TLSConfig struct {
	Enabled    bool
	Mode       string // disable | require | skip-verify | verify-ca | verify-full
	CACert     string
	ClientCert string
	ClientKey  string
}

type ConnectionParams struct {
	Engine   string
	DBName   string
	Password string
	User     string
	Host     string
	Port     int
	URI      string

	// RDBPath is the on-disk snapshot location for Redis targets.
	RDBPath string

	TLS TLSConfig
}

// ParseURI fills host/user/port fields from URI when they are not set
// explicitly. Engine-specific DSN building still happens per adapter.
func (c *ConnectionParams) ParseURI() error {
	if c.URI == "" {
		return nil
	}

	u, err := url.Parse(c.URI)
	if err != nil {
		return fmt.Errorf("invalid connection URI: %w", err)
	}

	if c.Engine == "" && u.Scheme != "" {
		c.Engine = u.Scheme
	}
	if c.Host == "" {
		c.Host = u.Hostname()
	}
	if c.Port == 0 && u.Port() != "" {
		p, err := strconv.Atoi(u.Port())
		if err != nil {
			return fmt.Errorf("invalid port in URI: %w", err)
		}
		c.Port = p
	}
	if u.User != nil {
		if c.User == "" {
			c.User = u.User.Username()
		}
		if c.Password == "" {
			c.Password, _ = u.User.Password()
		}
	}
	if c.DBName == "" {
		c.DBName = strings.TrimPrefix(u.Path, "/")
	}
	return nil
}

// Adapter produces a dump stream for one database engine.
type Adapter interface {
	Name() string
	SetLogger(l *logger.Logger)
	TestConnection(ctx context.Context, conn ConnectionParams, runner Runner) error
	Dump(ctx context.Context, conn ConnectionParams, runner Runner, w io.Writer) error
}

// Registry maps engine names to adapters. It is built at startup and
// passed to callers explicitly; there is no process-wide adapter state.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

func (r *Registry) Register(a Adapter) error {
	name := a.Name()
	if _, exists := r.adapters[name]; exists {
		return apperrors.New(apperrors.TypeConfig,
			fmt.Sprintf("adapter already registered: %s", name),
			"Each engine name can only be registered once.")
	}
	r.adapters[name] = a
	return nil
}

func (r *Registry) Get(name string) (Adapter, error) {
	a, ok := r.adapters[strings.ToLower(name)]
	if !ok {
		return nil, apperrors.New(apperrors.TypeConfig,
			fmt.Sprintf("unsupported database engine: %s", name),
			fmt.Sprintf("Supported engines: %s.", strings.Join(r.Names(), ", ")))
	}
	return a, nil
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for n := range r.adapters {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry returns a registry with all built-in engine adapters.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, a := range []Adapter{
		&PostgresAdapter{},
		&MysqlAdapter{},
		&SqliteAdapter{},
		&RedisAdapter{},
	} {
		// Built-in names are unique; a duplicate here is a programming error.
		if err := r.Register(a); err != nil {
			panic(err)
		}
	}
	return r
}
