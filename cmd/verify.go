package cmd

import (
	"fmt"
	"os"

	"github.com/TFMV/flashpack/internal/archiver"
	"github.com/TFMV/flashpack/internal/hash"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify ORIGINAL OTHER",
	Short: "Check that two files have identical content",
	Long: `Hash ORIGINAL and OTHER concurrently and compare them. With --archive,
OTHER is a compressed file: it is decompressed to a temporary file first,
so the command checks a compress/decompress round trip.

Examples:
  flashpack verify data.bin restored.bin
  flashpack verify --archive --codec lz4 data.bin data.bin.lz4`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		algo, _ := cmd.Flags().GetString("algorithm")
		algorithm, err := hash.ParseAlgorithm(algo)
		if err != nil {
			return err
		}

		other := args[1]
		if isArchive, _ := cmd.Flags().GetBool("archive"); isArchive {
			if err := applyArchiveFlags(cmd, &s.config); err != nil {
				return err
			}
			restored, err := restoreTemp(cmd, s, other)
			if err != nil {
				return err
			}
			defer os.Remove(restored)
			other = restored
		}

		opts := hash.DefaultOptions()
		opts.Algorithm = algorithm
		same, results, err := hash.Compare(cmd.Context(), args[0], other, opts)
		if err != nil {
			return err
		}

		for i, name := range []string{args[0], args[1]} {
			fmt.Printf("%s  %s  %s\n", results[i].Hash, humanize.IBytes(uint64(results[i].Size)), name)
		}
		if !same {
			return &exitError{code: 1, err: fmt.Errorf("%s: content differs", algorithm)}
		}
		fmt.Printf("OK (%s)\n", algorithm)
		return nil
	},
}

// restoreTemp decompresses archive into a temporary file and returns its path.
func restoreTemp(cmd *cobra.Command, s settings, archive string) (string, error) {
	tmp, err := os.CreateTemp("", "flashpack-verify-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}
	path := tmp.Name()
	tmp.Close()

	opts, err := s.config.ArchiverOptions(s.logger)
	if err != nil {
		os.Remove(path)
		return "", err
	}
	a, err := archiver.New(opts)
	if err != nil {
		os.Remove(path)
		return "", err
	}
	run, err := a.Decompress(cmd.Context(), archive, path)
	if err != nil {
		os.Remove(path)
		return "", err
	}
	<-run.Done()
	if res := run.Result(); res.Status != archiver.Success {
		os.Remove(path)
		return "", fmt.Errorf("decompress %s: %w", archive, res.Err)
	}
	return path, nil
}

func init() {
	RootCmd.AddCommand(verifyCmd)
	verifyCmd.Flags().String("algorithm", "blake3", "Hash algorithm (blake3, xxh64, sha256)")
	verifyCmd.Flags().Bool("archive", false, "Treat OTHER as a compressed file")
	verifyCmd.Flags().String("codec", "", "Codec of the archive (default from config)")
}
