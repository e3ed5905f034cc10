package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/TFMV/flashpack/internal/archiver"
	"github.com/TFMV/flashpack/internal/config"
	"github.com/TFMV/flashpack/internal/history"
	"github.com/dustin/go-humanize"
	"github.com/go-kit/log/level"
	"github.com/spf13/cobra"
)

const (
	progressThrottle = 100 * time.Millisecond
	// configuredBucket selects the config file's publish section.
	configuredBucket = "config"
)

// addArchiveFlags registers the flags shared by compress and decompress.
func addArchiveFlags(cmd *cobra.Command) {
	cmd.Flags().String("block-size", "", "Block size, e.g. 1MiB (default from config)")
	cmd.Flags().String("buffer-size", "", "Raw block buffer cap, e.g. 64MiB (default 20 blocks)")
	cmd.Flags().Int("workers", 0, "Transform workers (0 = number of CPUs)")
	cmd.Flags().Int("readers", 0, "Reader workers (0 = workers/2)")
	cmd.Flags().Int("writers", 0, "Writer workers (0 = workers/2)")
	cmd.Flags().String("codec", "", "Codec: gzip, lz4, snappy or zstd (default from config)")
	cmd.Flags().String("level", "", "Compression level: fastest, default, better or best")
	cmd.Flags().Bool("progress", true, "Show a progress bar")
	cmd.Flags().String("publish", "", "Upload the output after a successful run: --publish=s3://bucket/prefix, gcs:// or file://; bare --publish uses the config file")
	cmd.Flags().Lookup("publish").NoOptDefVal = configuredBucket
}

// applyArchiveFlags overrides cfg with the flags the user set.
func applyArchiveFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	for name, target := range map[string]*config.Size{
		"block-size":  &cfg.BlockSize,
		"buffer-size": &cfg.BufferSize,
	} {
		if !flags.Changed(name) {
			continue
		}
		value, _ := flags.GetString(name)
		size, err := config.ParseSize(value)
		if err != nil {
			return fmt.Errorf("--%s: %w", name, err)
		}
		*target = size
	}
	for name, target := range map[string]*int{
		"workers": &cfg.Workers,
		"readers": &cfg.Readers,
		"writers": &cfg.Writers,
	} {
		if flags.Changed(name) {
			*target, _ = flags.GetInt(name)
		}
	}
	if flags.Changed("codec") {
		cfg.Codec, _ = flags.GetString("codec")
	}
	if flags.Changed("level") {
		cfg.Level, _ = flags.GetString("level")
	}
	return cfg.Validate()
}

// runArchive performs one compress or decompress run and reports it.
func runArchive(cmd *cobra.Command, mode archiver.Mode, src, dst string) error {
	s, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	if err := applyArchiveFlags(cmd, &s.config); err != nil {
		return err
	}
	opts, err := s.config.ArchiverOptions(s.logger)
	if err != nil {
		return err
	}

	var progress *progressObserver
	if show, _ := cmd.Flags().GetBool("progress"); show {
		if info, err := os.Stat(src); err == nil {
			progress = newProgressObserver(info.Size(), mode.String())
			opts.Observer = progress
		}
	}

	a, err := archiver.New(opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startedAt := time.Now()
	var run *archiver.Run
	if mode == archiver.Compress {
		run, err = a.Compress(ctx, src, dst)
	} else {
		run, err = a.Decompress(ctx, src, dst)
	}
	if err != nil {
		return err
	}

	<-run.Done()
	res := run.Result()
	if progress != nil {
		progress.done(res.Status)
	}

	entry := history.Entry{
		ID:          res.ID,
		Mode:        res.Mode.String(),
		Codec:       opts.Codec.Name(),
		Level:       s.config.Level,
		Source:      absPath(res.Source),
		Destination: absPath(res.Destination),
		Status:      res.Status.String(),
		Message:     res.Message,
		Blocks:      res.Blocks,
		SourceBytes: res.SourceBytes,
		OutputBytes: res.OutputBytes,
		Digest:      fmt.Sprintf("%016x", res.Digest),
		StartedAt:   startedAt,
		Elapsed:     res.Elapsed,
	}

	if res.Status == archiver.Success {
		if dest, _ := cmd.Flags().GetString("publish"); dest != "" {
			// Publishing is interruptible on its own; the run is already done.
			name, err := publishFile(ctx, s, dest, dst, filepath.Base(dst))
			if err != nil {
				level.Error(s.logger).Log("msg", "publish failed", "file", dst, "err", err)
				recordRun(s, entry)
				return err
			}
			entry.Published = name
		}
	}
	recordRun(s, entry)

	printResult(res)
	switch res.Status {
	case archiver.Success:
		return nil
	case archiver.Interrupted:
		return &exitError{code: 130, err: res.Err}
	default:
		return &exitError{code: 1, err: res.Err}
	}
}

// recordRun stores the run in the history and applies the retention policy.
// History problems are logged, never fatal.
func recordRun(s settings, entry history.Entry) {
	store, err := s.openHistory()
	if err != nil {
		level.Warn(s.logger).Log("msg", "cannot open history", "err", err)
		return
	}
	if store == nil {
		return
	}
	defer store.Close()

	if err := store.Record(entry); err != nil {
		level.Warn(s.logger).Log("msg", "cannot record run", "id", entry.ID, "err", err)
		return
	}
	policy, err := s.config.HistoryRetention.Policy()
	if err != nil {
		return
	}
	if removed, err := store.Prune(policy, time.Now()); err != nil {
		level.Warn(s.logger).Log("msg", "cannot prune history", "err", err)
	} else if len(removed) > 0 {
		level.Debug(s.logger).Log("msg", "pruned history", "removed", len(removed))
	}
}

func printResult(res archiver.Result) {
	fmt.Printf("%s %s: %s\n", res.ID, res.Status, res.Message)
	if res.Status != archiver.Success {
		return
	}
	ratio := 0.0
	if res.SourceBytes > 0 {
		ratio = float64(res.OutputBytes) / float64(res.SourceBytes)
	}
	fmt.Printf("  %s -> %s\n", res.Source, res.Destination)
	fmt.Printf("  %s blocks, %s -> %s (%.1f%%) in %s\n",
		humanize.Comma(res.Blocks),
		humanize.IBytes(uint64(res.SourceBytes)),
		humanize.IBytes(uint64(res.OutputBytes)),
		ratio*100,
		res.Elapsed.Round(time.Millisecond))
	if secs := res.Elapsed.Seconds(); secs > 0 {
		fmt.Printf("  %s/s, digest %016x\n", humanize.IBytes(uint64(float64(res.SourceBytes)/secs)), res.Digest)
	}
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
