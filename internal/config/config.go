// Package config loads flashpack settings from a YAML file.
//
// Settings are layered: built-in defaults, then the file, then command-line
// flags applied by the caller.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/TFMV/flashpack/internal/archiver"
	"github.com/TFMV/flashpack/internal/codec"
	"github.com/TFMV/flashpack/internal/history"
	"github.com/dustin/go-humanize"
	"github.com/go-kit/log"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("config: invalid setting")

// Size is a byte count written either as an integer or as a human-readable
// string such as "1MiB" or "64 KB".
type Size int64

// UnmarshalYAML accepts integers and humanize byte strings.
func (s *Size) UnmarshalYAML(value *yaml.Node) error {
	var n int64
	if err := value.Decode(&n); err == nil {
		*s = Size(n)
		return nil
	}
	var str string
	if err := value.Decode(&str); err != nil {
		return errors.Errorf("line %d: size must be a number or a string", value.Line)
	}
	parsed, err := ParseSize(str)
	if err != nil {
		return errors.Wrapf(err, "line %d", value.Line)
	}
	*s = parsed
	return nil
}

// MarshalYAML writes the size in IEC units.
func (s Size) MarshalYAML() (interface{}, error) {
	return s.String(), nil
}

// String formats the size in IEC units.
func (s Size) String() string {
	if s < 0 {
		return "-" + humanize.IBytes(uint64(-s))
	}
	return humanize.IBytes(uint64(s))
}

// ParseSize parses a byte size such as "4MiB", "512k" or "1048576".
func ParseSize(s string) (Size, error) {
	n, err := humanize.ParseBytes(strings.TrimSpace(s))
	if err != nil {
		return 0, errors.Wrapf(err, "parse size %q", s)
	}
	return Size(n), nil
}

// Retention is the history retention section.
type Retention struct {
	MaxEntries int    `yaml:"max_entries"`
	MaxAge     string `yaml:"max_age,omitempty"`
	KeepFailed bool   `yaml:"keep_failed"`
}

// Policy converts the section into a history policy.
func (r Retention) Policy() (history.Policy, error) {
	p := history.Policy{MaxEntries: r.MaxEntries, KeepFailed: r.KeepFailed}
	if r.MaxAge != "" {
		d, err := history.ParseDuration(r.MaxAge)
		if err != nil {
			return p, errors.Wrapf(ErrInvalid, "history_retention.max_age: %v", err)
		}
		p.MaxAge = d
	}
	return p, nil
}

// Config holds every setting a command may need.
type Config struct {
	BlockSize  Size `yaml:"block_size"`
	BufferSize Size `yaml:"buffer_size,omitempty"` // 0 = 20 blocks
	// Worker counts; 0 lets the archiver derive them from the CPU count.
	Workers int `yaml:"workers,omitempty"`
	Readers int `yaml:"readers,omitempty"`
	Writers int `yaml:"writers,omitempty"`

	Codec string `yaml:"codec"`
	Level string `yaml:"level"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	HistoryPath      string    `yaml:"history_path"`
	HistoryRetention Retention `yaml:"history_retention"`

	// Publish is an objstore client configuration (type + config) used
	// when a command publishes without an explicit destination URL.
	Publish map[string]interface{} `yaml:"publish,omitempty"`
	// PublishPrefix is prepended to published object names.
	PublishPrefix string `yaml:"publish_prefix,omitempty"`
}

// Default returns the built-in configuration.
func Default() Config {
	policy := history.DefaultPolicy()
	return Config{
		BlockSize: Size(archiver.DefaultBlockSize),
		Codec:     "zstd",
		Level:     codec.Default.String(),
		LogLevel:  "info",
		LogFormat: "logfmt",
		HistoryRetention: Retention{
			MaxEntries: policy.MaxEntries,
			MaxAge:     "90d",
			KeepFailed: policy.KeepFailed,
		},
		HistoryPath: DefaultHistoryPath(),
	}
}

// DefaultHistoryPath is ~/.flashpack/history.db, or a file in the working
// directory when no home directory is known.
func DefaultHistoryPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "flashpack-history.db"
	}
	return filepath.Join(home, ".flashpack", "history.db")
}

// Load returns the defaults overlaid with the file at path. An empty path
// returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "read config")
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "parse config %s", path)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

// Validate checks every setting.
func (c Config) Validate() error {
	if c.BlockSize <= 0 {
		return errors.Wrapf(ErrInvalid, "block_size must be positive, got %d", c.BlockSize)
	}
	if c.BufferSize < 0 {
		return errors.Wrapf(ErrInvalid, "buffer_size must not be negative, got %d", c.BufferSize)
	}
	if c.Workers < 0 || c.Readers < 0 || c.Writers < 0 {
		return errors.Wrap(ErrInvalid, "worker counts must not be negative")
	}
	if _, err := c.NewCodec(); err != nil {
		return errors.Wrapf(ErrInvalid, "%v", err)
	}
	if c.HistoryRetention.MaxEntries < 0 {
		return errors.Wrap(ErrInvalid, "history_retention.max_entries must not be negative")
	}
	if _, err := c.HistoryRetention.Policy(); err != nil {
		return err
	}
	return nil
}

// NewCodec returns the configured codec.
func (c Config) NewCodec() (codec.Codec, error) {
	lvl, err := codec.ParseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	return codec.New(c.Codec, lvl)
}

// ArchiverOptions maps the configuration onto archiver options.
func (c Config) ArchiverOptions(logger log.Logger) (archiver.Options, error) {
	cd, err := c.NewCodec()
	if err != nil {
		return archiver.Options{}, err
	}
	return archiver.Options{
		BlockSize:  int64(c.BlockSize),
		BufferSize: int64(c.BufferSize),
		Workers:    c.Workers,
		Readers:    c.Readers,
		Writers:    c.Writers,
		Codec:      cd,
		Logger:     logger,
	}, nil
}

// PublishConfig returns the publish section as objstore client YAML, or nil
// when the section is empty.
func (c Config) PublishConfig() ([]byte, error) {
	if len(c.Publish) == 0 {
		return nil, nil
	}
	out, err := yaml.Marshal(c.Publish)
	if err != nil {
		return nil, errors.Wrap(err, "marshal publish config")
	}
	return out, nil
}
