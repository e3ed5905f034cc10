package cmd

import (
	"github.com/TFMV/flashpack/internal/archiver"
	"github.com/spf13/cobra"
)

var compressCmd = &cobra.Command{
	Use:   "compress SOURCE DESTINATION",
	Short: "Compress a file block by block",
	Long: `Compress SOURCE into DESTINATION. Each block becomes one self-delimiting
codec frame, so the output is a plain concatenation of frames that standard
tools for the codec can read.

Examples:
  flashpack compress data.bin data.bin.zst
  flashpack compress --codec lz4 --level best --block-size 4MiB data.bin data.bin.lz4
  flashpack compress --publish=s3://backups/nightly data.bin data.bin.zst`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runArchive(cmd, archiver.Compress, args[0], args[1])
	},
}

func init() {
	addArchiveFlags(compressCmd)
	RootCmd.AddCommand(compressCmd)
}
