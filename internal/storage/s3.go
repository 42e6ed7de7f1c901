package storage

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Storage archives artifacts to any S3-compatible endpoint via the
// MinIO client. Credentials come from the URI userinfo, falling back to
// the standard AWS environment variables.
type S3Storage struct {
	client     *minio.Client
	endpoint   string
	bucketName string
	prefix     string
}

func NewS3Storage(u *url.URL) (*S3Storage, error) {
	accessKey := u.User.Username()
	secretKey, _ := u.User.Password()
	if accessKey == "" {
		accessKey = os.Getenv("AWS_ACCESS_KEY_ID")
		secretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")
	}

	useSSL := u.Query().Get("ssl") != "false"

	endpoint := u.Host
	var bucket, prefix string
	if strings.Trim(u.Path, "/") == "" {
		// s3://bucket shorthand: the host is the bucket and the
		// endpoint is AWS proper.
		bucket = u.Host
		endpoint = "s3.amazonaws.com"
	} else {
		parts := strings.SplitN(strings.Trim(u.Path, "/"), "/", 2)
		bucket = parts[0]
		if len(parts) == 2 {
			prefix = parts[1]
		}
	}
	if bucket == "" {
		return nil, fmt.Errorf("s3 archive URI must name a bucket")
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: u.Query().Get("region"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}

	return &S3Storage{
		client:     client,
		endpoint:   endpoint,
		bucketName: bucket,
		prefix:     prefix,
	}, nil
}

func (s *S3Storage) objectName(name string) string {
	if s.prefix == "" {
		return name
	}
	return path.Join(s.prefix, name)
}

func (s *S3Storage) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	size := int64(-1) // unknown, streams as multipart
	if sized, ok := r.(interface{ Size() int64 }); ok {
		size = sized.Size()
	}

	obj := s.objectName(name)
	_, err := s.client.PutObject(ctx, s.bucketName, obj, r, size, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to s3: %w", err)
	}
	return "s3://" + s.bucketName + "/" + obj, nil
}

func (s *S3Storage) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	return s.client.GetObject(ctx, s.bucketName, s.objectName(name), minio.GetObjectOptions{})
}

func (s *S3Storage) Delete(ctx context.Context, name string) error {
	return s.client.RemoveObject(ctx, s.bucketName, s.objectName(name), minio.RemoveObjectOptions{})
}

func (s *S3Storage) Location() string {
	return "s3://" + s.bucketName
}
