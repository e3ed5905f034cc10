package cmd

import (
	"context"
	"fmt"
	"path"
	"path/filepath"

	"github.com/TFMV/flashpack/internal/publish"
	"github.com/spf13/cobra"
)

// openPublisher returns a publisher for dest, or for the config file's
// publish section when dest is configuredBucket.
func openPublisher(s settings, dest string) (*publish.Publisher, error) {
	if dest != configuredBucket {
		return publish.NewFromDestination(dest, s.logger)
	}
	conf, err := s.config.PublishConfig()
	if err != nil {
		return nil, err
	}
	if conf == nil {
		return nil, fmt.Errorf("no publish section in the config file; pass a destination URL")
	}
	return publish.NewFromConfig(conf, s.config.PublishPrefix, s.logger)
}

// publishFile uploads localPath as objectName and returns the full object name.
func publishFile(ctx context.Context, s settings, dest, localPath, objectName string) (string, error) {
	p, err := openPublisher(s, dest)
	if err != nil {
		return "", err
	}
	defer p.Close()
	return p.Upload(ctx, localPath, objectName)
}

var publishCmd = &cobra.Command{
	Use:   "publish FILE",
	Short: "Upload a file to object storage",
	Long: `Upload FILE to an object storage destination.

Examples:
  flashpack publish --to s3://backups/nightly data.bin.zst
  flashpack publish --to file:///srv/archives --name today.zst data.bin.zst
  flashpack publish data.bin.zst   # uses the publish section of --config`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		dest, _ := cmd.Flags().GetString("to")
		name, _ := cmd.Flags().GetString("name")
		if name == "" {
			name = filepath.Base(args[0])
		}

		object, err := publishFile(cmd.Context(), s, dest, args[0], name)
		if err != nil {
			return err
		}
		fmt.Printf("Published %s as %s\n", args[0], object)
		return nil
	},
}

var fetchCmd = &cobra.Command{
	Use:   "fetch OBJECT [FILE]",
	Short: "Download an object from object storage",
	Long: `Download OBJECT (relative to the destination prefix) into FILE, which
defaults to the object's base name.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		src, _ := cmd.Flags().GetString("from")
		p, err := openPublisher(s, src)
		if err != nil {
			return err
		}
		defer p.Close()

		local := path.Base(args[0])
		if len(args) == 2 {
			local = args[1]
		}
		if err := p.Download(cmd.Context(), p.ObjectName(args[0]), local); err != nil {
			return err
		}
		fmt.Printf("Fetched %s to %s\n", p.ObjectName(args[0]), local)
		return nil
	},
}

var remoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "List objects in object storage",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		src, _ := cmd.Flags().GetString("from")
		p, err := openPublisher(s, src)
		if err != nil {
			return err
		}
		defer p.Close()

		objects, err := p.List(cmd.Context())
		if err != nil {
			return err
		}
		for _, object := range objects {
			fmt.Println(object)
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(publishCmd)
	RootCmd.AddCommand(fetchCmd)
	RootCmd.AddCommand(remoteCmd)

	publishCmd.Flags().String("to", configuredBucket, "Destination URL (s3://, gcs://, file://)")
	publishCmd.Flags().String("name", "", "Object name (default: the file's base name)")
	fetchCmd.Flags().String("from", configuredBucket, "Source URL (s3://, gcs://, file://)")
	remoteCmd.Flags().String("from", configuredBucket, "Source URL (s3://, gcs://, file://)")
}
