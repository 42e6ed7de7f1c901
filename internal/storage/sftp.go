package storage

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/hookdump/hookdump/internal/errors"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// SFTPStorage archives artifacts over SSH. The connection is lazy so
// that URI inference and validation never touch the network.
type SFTPStorage struct {
	client     *ssh.Client
	sftpClient *sftp.Client
	remotePath string
	host       string
	user       *url.Userinfo
}

func NewSFTPStorage(u *url.URL) (*SFTPStorage, error) {
	host := u.Host
	if !strings.Contains(host, ":") {
		host = host + ":22"
	}

	remotePath := strings.TrimPrefix(u.Path, "/./")

	return &SFTPStorage{
		remotePath: remotePath,
		host:       host,
		user:       u.User,
	}, nil
}

func (s *SFTPStorage) connect() error {
	if s.sftpClient != nil {
		return nil
	}

	user := s.user.Username()
	pass, _ := s.user.Password()

	config := &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
	}

	if pass != "" {
		config.Auth = append(config.Auth, ssh.Password(pass))
	} else {
		if authSock := os.Getenv("SSH_AUTH_SOCK"); authSock != "" {
			if conn, err := net.Dial("unix", authSock); err == nil {
				ag := agent.NewClient(conn)
				signers, err := ag.Signers()
				if err == nil && len(signers) > 0 {
					config.Auth = append(config.Auth, ssh.PublicKeysCallback(ag.Signers))
				}
			}
		}

		home, err := os.UserHomeDir()
		if err == nil {
			commonKeys := []string{"id_rsa", "id_ed25519", "id_ecdsa"}
			for _, k := range commonKeys {
				keyPath := filepath.Join(home, ".ssh", k)
				if key, err := os.ReadFile(keyPath); err == nil {
					signer, err := ssh.ParsePrivateKey(key)
					if err == nil {
						config.Auth = append(config.Auth, ssh.PublicKeys(signer))
					}
				}
			}
		}
	}

	if len(config.Auth) == 0 {
		return apperrors.New(apperrors.TypeAuth, "no supported SSH authentication methods found", "Ensure you have an SSH agent running or provide valid private keys/passwords.")
	}

	client, err := ssh.Dial("tcp", s.host, config)
	if err != nil {
		return apperrors.Wrap(err, apperrors.TypeConnection, "failed to connect via SSH", "Check host reachability, SSH port, and credentials.")
	}

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		client.Close()
		return apperrors.Wrap(err, apperrors.TypeInternal, "failed to create SFTP client", "Verify the SFTP subsystem is enabled on the remote host.")
	}

	s.client = client
	s.sftpClient = sftpClient
	return nil
}

func (s *SFTPStorage) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	if err := s.connect(); err != nil {
		return "", err
	}
	path := filepath.Join(s.remotePath, name)
	if err := s.sftpClient.MkdirAll(filepath.Dir(path)); err != nil {
		return "", fmt.Errorf("failed to create remote directory %s: %w", filepath.Dir(path), err)
	}

	f, err := s.sftpClient.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create remote file %s: %w", path, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return "", err
	}
	return "sftp://" + s.host + "/" + path, nil
}

func (s *SFTPStorage) Location() string {
	return "sftp://" + s.host + "/" + s.remotePath
}

func (s *SFTPStorage) Close() error {
	if s.sftpClient != nil {
		s.sftpClient.Close()
	}
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
