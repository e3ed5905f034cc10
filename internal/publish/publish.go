// Package publish uploads finished archives to object storage and fetches
// them back.
package publish

import (
	"context"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"github.com/thanos-io/objstore"
	"github.com/thanos-io/objstore/client"
	"gopkg.in/yaml.v3"
)

// StorageType represents the type of object storage
type StorageType string

const (
	// S3Storage represents Amazon S3 or compatible storage
	S3Storage StorageType = "s3"
	// GCSStorage represents Google Cloud Storage
	GCSStorage StorageType = "gcs"
	// FileStorage is a directory on the local filesystem
	FileStorage StorageType = "file"

	component = "flashpack"
)

// Destination is a parsed scheme://bucket/prefix URL.
type Destination struct {
	Type   StorageType
	Bucket string // directory for FileStorage
	Prefix string
}

// ParseDestination parses s3://bucket/prefix, gcs://bucket/prefix or
// file:///directory.
func ParseDestination(destination string) (Destination, error) {
	u, err := url.Parse(destination)
	if err != nil {
		return Destination{}, errors.Wrap(err, "parse destination URL")
	}

	switch StorageType(u.Scheme) {
	case S3Storage, GCSStorage:
		if u.Host == "" {
			return Destination{}, errors.New("invalid URL format, expected scheme://bucket/prefix")
		}
		return Destination{
			Type:   StorageType(u.Scheme),
			Bucket: u.Host,
			Prefix: strings.Trim(u.Path, "/"),
		}, nil
	case FileStorage:
		dir := filepath.FromSlash(u.Host + u.Path)
		if dir == "" {
			return Destination{}, errors.New("invalid URL format, expected file:///directory")
		}
		return Destination{Type: FileStorage, Bucket: dir}, nil
	case "":
		return Destination{}, errors.New("invalid URL format, expected scheme://bucket/prefix")
	default:
		return Destination{}, errors.Errorf("unsupported storage type: %s", u.Scheme)
	}
}

// BucketConfig returns the objstore client configuration for d, filling S3
// and GCS credentials from the environment.
func (d Destination) BucketConfig() ([]byte, error) {
	var full map[string]interface{}
	switch d.Type {
	case S3Storage:
		s3Config := map[string]interface{}{
			"bucket":     d.Bucket,
			"endpoint":   os.Getenv("S3_ENDPOINT"),
			"access_key": os.Getenv("S3_ACCESS_KEY"),
			"secret_key": os.Getenv("S3_SECRET_KEY"),
			"region":     os.Getenv("S3_REGION"),
			"insecure":   os.Getenv("S3_INSECURE") == "true",
		}
		if os.Getenv("S3_FORCE_PATH_STYLE") == "true" {
			s3Config["bucket_lookup_type"] = "path"
		}
		full = map[string]interface{}{"type": "S3", "config": s3Config}
	case GCSStorage:
		full = map[string]interface{}{
			"type": "GCS",
			"config": map[string]interface{}{
				"bucket":          d.Bucket,
				"service_account": os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
			},
		}
	case FileStorage:
		full = map[string]interface{}{
			"type":   "FILESYSTEM",
			"config": map[string]interface{}{"directory": d.Bucket},
		}
	default:
		return nil, errors.Errorf("unsupported storage type: %s", d.Type)
	}

	out, err := yaml.Marshal(full)
	if err != nil {
		return nil, errors.Wrap(err, "marshal bucket config to YAML")
	}
	return out, nil
}

// Publisher copies files to and from one bucket under a fixed prefix.
type Publisher struct {
	bucket objstore.Bucket
	prefix string
	logger log.Logger
}

// New wraps an existing bucket.
func New(bucket objstore.Bucket, prefix string, logger log.Logger) *Publisher {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Publisher{bucket: bucket, prefix: strings.Trim(prefix, "/"), logger: logger}
}

// NewFromConfig creates a bucket from an objstore client YAML configuration.
func NewFromConfig(conf []byte, prefix string, logger log.Logger) (*Publisher, error) {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	bucket, err := client.NewBucket(logger, conf, component, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create bucket")
	}
	return New(bucket, prefix, logger), nil
}

// NewFromDestination creates a publisher for a destination URL.
func NewFromDestination(destination string, logger log.Logger) (*Publisher, error) {
	d, err := ParseDestination(destination)
	if err != nil {
		return nil, err
	}
	if d.Type == FileStorage {
		if err := os.MkdirAll(d.Bucket, 0o755); err != nil {
			return nil, errors.Wrap(err, "create storage directory")
		}
	}
	conf, err := d.BucketConfig()
	if err != nil {
		return nil, err
	}
	return NewFromConfig(conf, d.Prefix, logger)
}

// ObjectName returns the full object name for name under the prefix.
func (p *Publisher) ObjectName(name string) string {
	if p.prefix == "" {
		return name
	}
	return path.Join(p.prefix, name)
}

// Upload stores the file at localPath as objectName (under the prefix) and
// returns the full object name.
func (p *Publisher) Upload(ctx context.Context, localPath, objectName string) (string, error) {
	file, err := os.Open(localPath)
	if err != nil {
		return "", errors.Wrap(err, "open local file")
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", errors.Wrap(err, "stat local file")
	}

	name := p.ObjectName(objectName)
	level.Info(p.logger).Log("msg", "starting upload", "file", localPath, "object", name, "size", info.Size())

	start := time.Now()
	if err := p.bucket.Upload(ctx, name, file); err != nil {
		return "", errors.Wrap(err, "upload data")
	}

	level.Info(p.logger).Log("msg", "upload complete", "object", name, "size", info.Size(), "duration", time.Since(start))
	return name, nil
}

// Download writes objectName (a full object name) to localPath. The file
// appears only once the download is complete.
func (p *Publisher) Download(ctx context.Context, objectName, localPath string) error {
	exists, err := p.bucket.Exists(ctx, objectName)
	if err != nil {
		return errors.Wrap(err, "check object existence")
	}
	if !exists {
		return errors.Errorf("object %s does not exist", objectName)
	}

	dir := filepath.Dir(localPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "create directory")
	}

	reader, err := p.bucket.Get(ctx, objectName)
	if err != nil {
		return errors.Wrap(err, "get object")
	}
	defer reader.Close()

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(localPath)+".*")
	if err != nil {
		return errors.Wrap(err, "create local file")
	}
	defer os.Remove(tmp.Name())

	start := time.Now()
	n, err := io.Copy(tmp, reader)
	if err != nil {
		tmp.Close()
		return errors.Wrap(err, "copy data")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close local file")
	}
	if err := os.Rename(tmp.Name(), localPath); err != nil {
		return errors.Wrap(err, "move local file into place")
	}

	level.Info(p.logger).Log("msg", "download complete", "object", objectName, "file", localPath, "size", n, "duration", time.Since(start))
	return nil
}

// List returns the object names under the prefix.
func (p *Publisher) List(ctx context.Context) ([]string, error) {
	dir := p.prefix
	if dir != "" {
		dir += objstore.DirDelim
	}
	var objects []string
	err := p.bucket.Iter(ctx, dir, func(name string) error {
		objects = append(objects, name)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "list objects")
	}
	return objects, nil
}

// Delete removes an object.
func (p *Publisher) Delete(ctx context.Context, objectName string) error {
	return p.bucket.Delete(ctx, objectName)
}

// Close closes the underlying bucket.
func (p *Publisher) Close() error {
	return p.bucket.Close()
}
