package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hafnium/expense-tracker/internal/datemath"
)

var (
	purgeKeepDays int

	purgeCmd = &cobra.Command{
		Use:   "purge",
		Short: "Delete expenses older than the retention window",
		RunE:  runPurge,
	}
)

func init() {
	purgeCmd.Flags().IntVar(&purgeKeepDays, "keep-days", 0, "days of history to keep (defaults to retention.keep_days)")
}

func runPurge(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	keep := purgeKeepDays
	if keep <= 0 {
		keep = a.Config.Retention.KeepDays
	}
	cutoff := datemath.Today().SubDays(keep)

	count, err := a.Repo.PurgeOlderThan(cmd.Context(), cutoff)
	if err != nil {
		return err
	}

	fmt.Printf("purged %d expenses older than %s\n", count, cutoff)
	return nil
}
