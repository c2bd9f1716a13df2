package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/hafnium/expense-tracker/internal/expense"
)

var removeCmd = &cobra.Command{
	Use:   "remove ID",
	Short: "Delete an expense and its receipt image",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemove,
}

func runRemove(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid expense id %q", args[0])
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	flow := expense.NewListFlow(cmd.Context(), a.Repo, a.Logger)
	defer flow.Close()
	flow.ConsumeEvent()

	flow.DeleteExpense(cmd.Context(), id)

	event := flow.ConsumeEvent()
	if event == nil || event.Type != expense.ListDeleteSucceeded {
		reason := "unknown"
		if event != nil {
			reason = event.Reason
		}
		return fmt.Errorf("failed to delete expense %d: %s", id, reason)
	}

	fmt.Printf("deleted expense %d\n", id)
	return nil
}
