package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
)

type FTPStorage struct {
	client     *ftp.ServerConn
	remotePath string
	host       string
}

func NewFTPStorage(u *url.URL, opts StorageOptions) (*FTPStorage, error) {
	if !opts.AllowInsecure {
		return nil, fmt.Errorf("insecure protocol FTP requires explicit opt-in with --allow-insecure")
	}
	user := u.User.Username()
	pass, _ := u.User.Password()
	host := u.Host
	if !strings.Contains(host, ":") {
		host = host + ":21"
	}

	c, err := ftp.Dial(host, ftp.DialWithTimeout(5*time.Second))
	if err != nil {
		return nil, err
	}

	if err := c.Login(user, pass); err != nil {
		c.Quit()
		return nil, err
	}

	return &FTPStorage{
		client:     c,
		remotePath: u.Path,
		host:       host,
	}, nil
}

func (s *FTPStorage) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	path := filepath.Join(s.remotePath, name)
	if err := s.ensureDir(filepath.Dir(path)); err != nil {
		return "", err
	}
	if err := s.client.Stor(path, r); err != nil {
		return "", err
	}
	return "ftp://" + s.host + path, nil
}

func (s *FTPStorage) Location() string {
	return "ftp://" + s.host + s.remotePath
}

func (s *FTPStorage) ensureDir(path string) error {
	if path == "." || path == "/" {
		return nil
	}
	parts := strings.Split(strings.Trim(path, "/"), "/")
	current := ""
	if strings.HasPrefix(path, "/") {
		current = "/"
	}
	for _, part := range parts {
		current = filepath.Join(current, part)
		_ = s.client.MakeDir(current) // Ignore error if it already exists
	}
	return nil
}

func (s *FTPStorage) Close() error {
	return s.client.Quit()
}
