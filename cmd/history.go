package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/TFMV/flashpack/internal/history"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect and prune the run history",
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded runs, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := historyStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		failed, _ := cmd.Flags().GetBool("failed")

		entries, err := store.List()
		if err != nil {
			return err
		}
		if failed {
			kept := entries[:0]
			for _, e := range entries {
				if !e.Succeeded() {
					kept = append(kept, e)
				}
			}
			entries = kept
		}
		if limit > 0 && len(entries) > limit {
			entries = entries[:limit]
		}
		printHistoryTable(entries)
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show one recorded run as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := historyStore(cmd)
		if err != nil {
			return err
		}
		defer store.Close()

		entry, err := store.Get(args[0])
		if err != nil {
			return err
		}
		out, err := json.MarshalIndent(entry, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete runs outside the retention policy",
	Long: `Delete runs outside the retention policy. Flags override the
history_retention section of the config file.

Examples:
  flashpack history prune --max-entries 100
  flashpack history prune --max-age 30d --keep-failed=false --dry-run`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSettings(cmd)
		if err != nil {
			return err
		}
		policy, err := s.config.HistoryRetention.Policy()
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		if flags.Changed("max-entries") {
			policy.MaxEntries, _ = flags.GetInt("max-entries")
		}
		if flags.Changed("max-age") {
			maxAge, _ := flags.GetString("max-age")
			if policy.MaxAge, err = history.ParseDuration(maxAge); err != nil {
				return err
			}
		}
		if flags.Changed("keep-failed") {
			policy.KeepFailed, _ = flags.GetBool("keep-failed")
		}
		dryRun, _ := flags.GetBool("dry-run")

		store, err := s.openHistory()
		if err != nil {
			return err
		}
		if store == nil {
			return fmt.Errorf("history is disabled")
		}
		defer store.Close()

		fmt.Printf("Policy: max entries %d, max age %s, keep failed %t\n",
			policy.MaxEntries, history.FormatDuration(policy.MaxAge), policy.KeepFailed)

		var removed []string
		if dryRun {
			entries, err := store.List()
			if err != nil {
				return err
			}
			removed = history.ApplyPolicy(entries, policy, time.Now())
		} else if removed, err = store.Prune(policy, time.Now()); err != nil {
			return err
		}

		verb := "Removed"
		if dryRun {
			verb = "Would remove"
		}
		fmt.Printf("%s %d runs\n", verb, len(removed))
		for _, id := range removed {
			fmt.Printf("  %s\n", id)
		}
		return nil
	},
}

func historyStore(cmd *cobra.Command) (*history.Store, error) {
	s, err := loadSettings(cmd)
	if err != nil {
		return nil, err
	}
	store, err := s.openHistory()
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, fmt.Errorf("history is disabled")
	}
	return store, nil
}

func printHistoryTable(entries []history.Entry) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	fmt.Fprintln(w, "ID\tSTARTED\tMODE\tCODEC\tSTATUS\tSOURCE\tSIZE\tRATIO\tELAPSED")
	fmt.Fprintln(w, "--\t-------\t----\t-----\t------\t------\t----\t-----\t-------")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%.3f\t%s\n",
			e.ID,
			humanize.Time(e.StartedAt),
			e.Mode,
			e.Codec,
			e.Status,
			e.Source,
			humanize.IBytes(uint64(e.SourceBytes)),
			e.Ratio(),
			e.Elapsed.Round(time.Millisecond))
	}
}

func init() {
	RootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyPruneCmd)

	historyListCmd.Flags().Int("limit", 20, "Maximum number of runs to show (0 = all)")
	historyListCmd.Flags().Bool("failed", false, "Only show faulted and interrupted runs")

	historyPruneCmd.Flags().Int("max-entries", 0, "Maximum number of runs to keep (0 = unlimited)")
	historyPruneCmd.Flags().String("max-age", "", "Maximum age of runs to keep (e.g., 30d, 2w, 6months, 1y)")
	historyPruneCmd.Flags().Bool("keep-failed", true, "Keep faulted and interrupted runs")
	historyPruneCmd.Flags().Bool("dry-run", false, "Show what would be removed without removing it")
}
