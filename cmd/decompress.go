package cmd

import (
	"github.com/TFMV/flashpack/internal/archiver"
	"github.com/spf13/cobra"
)

var decompressCmd = &cobra.Command{
	Use:   "decompress SOURCE DESTINATION",
	Short: "Decompress a file written by compress",
	Long: `Decompress SOURCE into DESTINATION. The codec must match the one used to
compress; frames are located by their headers and decoded in parallel.

Examples:
  flashpack decompress data.bin.zst data.bin
  flashpack decompress --codec lz4 data.bin.lz4 data.bin`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runArchive(cmd, archiver.Decompress, args[0], args[1])
	},
}

func init() {
	addArchiveFlags(decompressCmd)
	RootCmd.AddCommand(decompressCmd)
}
