package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/chartmuseum/storage"
)

// S3Config encapsulates the connection info for S3-compatible storage.
type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// BackendStore implements ObjectStorage over any chartmuseum storage backend.
type BackendStore struct {
	backend storage.Backend
	name    string
}

// NewLocalStore keeps objects as plain files below dir.
func NewLocalStore(dir string) (*BackendStore, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("local storage directory must be provided")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed creating storage directory %s: %w", dir, err)
	}
	return &BackendStore{
		backend: storage.NewLocalFilesystemBackend(dir),
		name:    "local",
	}, nil
}

// NewS3Store builds a store backed by chartmuseum's Amazon storage backend.
func NewS3Store(cfg S3Config) (*BackendStore, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint must be provided")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("s3 credentials must be provided")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket must be provided")
	}

	endpoint := cfg.Endpoint
	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		scheme := "https"
		if !cfg.UseSSL {
			scheme = "http"
		}
		endpoint = fmt.Sprintf("%s://%s", scheme, strings.TrimPrefix(cfg.Endpoint, "//"))
	}

	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	// the aws session inside chartmuseum only reads credentials from the environment
	os.Setenv("AWS_ACCESS_KEY_ID", cfg.AccessKey)
	os.Setenv("AWS_SECRET_ACCESS_KEY", cfg.SecretKey)
	os.Setenv("AWS_REGION", region)
	os.Setenv("AWS_DEFAULT_REGION", region)

	backend := storage.NewAmazonS3BackendWithOptions(
		cfg.Bucket,
		"",
		region,
		endpoint,
		"",
		&storage.AmazonS3Options{
			S3ForcePathStyle: awsBool(true),
		},
	)

	return &BackendStore{backend: backend, name: "s3"}, nil
}

// ListObjects lists all objects below prefix. Keys are returned with the
// prefix included so they can be passed back to DownloadObject.
func (s *BackendStore) ListObjects(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	prefix = strings.Trim(prefix, "/")
	files, err := s.backend.ListObjects(prefix)
	if err != nil {
		return nil, fmt.Errorf("%s list failed: %w", s.name, err)
	}
	results := make([]ObjectInfo, 0, len(files))
	for _, object := range files {
		key := strings.TrimPrefix(object.Path, "/")
		if prefix != "" && !strings.HasPrefix(key, prefix+"/") {
			key = path.Join(prefix, key)
		}
		results = append(results, ObjectInfo{
			Key:  key,
			Size: int64(len(object.Content)),
		})
	}
	return results, nil
}

// DownloadObject downloads an object to the provided destination path.
func (s *BackendStore) DownloadObject(ctx context.Context, key, destPath string) error {
	object, err := s.backend.GetObject(key)
	if err != nil {
		return fmt.Errorf("%s download %s failed: %w", s.name, key, err)
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("failed creating directory for %s: %w", destPath, err)
	}
	if err := os.WriteFile(destPath, object.Content, 0o644); err != nil {
		return fmt.Errorf("failed writing %s: %w", destPath, err)
	}
	return nil
}

func (s *BackendStore) UploadObject(ctx context.Context, key string, data []byte) error {
	if err := s.backend.PutObject(key, data); err != nil {
		return fmt.Errorf("%s upload %s failed: %w", s.name, key, err)
	}
	return nil
}

var _ ObjectStorage = (*BackendStore)(nil)

func awsBool(v bool) *bool {
	return &v
}

func contentType(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".csv":
		return "text/csv"
	case ".json":
		return "application/json"
	case ".yaml", ".yml":
		return "application/yaml"
	}
	return "text/plain"
}
