package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hafnium/expense-tracker/internal/datemath"
	"github.com/hafnium/expense-tracker/internal/expense"
)

var (
	listDate string

	listCmd = &cobra.Command{
		Use:   "list",
		Short: "List expenses for a date",
		RunE:  runList,
	}
)

func init() {
	listCmd.Flags().StringVarP(&listDate, "date", "d", "", "date to list (YYYY-MM-DD, defaults to today)")
}

func runList(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	flow := expense.NewListFlow(cmd.Context(), a.Repo, a.Logger)
	defer flow.Close()

	if listDate != "" {
		d, err := datemath.Parse(listDate)
		if err != nil {
			return err
		}
		flow.SetDate(cmd.Context(), d)
	}

	state, err := awaitList(flow)
	if err != nil {
		return err
	}

	if state.IsEmpty {
		fmt.Printf("no expenses on %s\n", state.Date)
		return nil
	}

	fmt.Printf("expenses on %s:\n", state.Date)
	for _, rec := range state.Items {
		line := fmt.Sprintf("  %6d  %10d  %s", rec.ID, rec.Amount, rec.Description)
		if rec.ImagePath != "" {
			line += "  [receipt]"
		}
		fmt.Println(line)
	}
	return nil
}

// awaitList waits for the flow's first snapshot; emissions are applied on
// the flow's own update path, so the CLI polls the published state.
func awaitList(flow *expense.ListFlow) (expense.ListState, error) {
	deadline := time.Now().Add(2 * time.Second)
	for {
		state := flow.State()
		if event := state.Event; event != nil && event.Type == expense.ListLoadFailed {
			return state, fmt.Errorf("failed to load expenses: %s", event.Reason)
		}
		if !state.Loading {
			return state, nil
		}
		if time.Now().After(deadline) {
			return state, fmt.Errorf("timed out waiting for expenses")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
