package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hafnium/expense-tracker/internal/datemath"
	"github.com/hafnium/expense-tracker/internal/expense"
)

var (
	addDate        string
	addAmount      string
	addDescription string
	addImage       string

	addCmd = &cobra.Command{
		Use:   "add",
		Short: "Record a new expense",
		RunE:  runAdd,
	}
)

func init() {
	addCmd.Flags().StringVarP(&addDate, "date", "d", "", "expense date (YYYY-MM-DD, defaults to today)")
	addCmd.Flags().StringVarP(&addAmount, "amount", "a", "", "amount in the smallest currency unit")
	addCmd.Flags().StringVarP(&addDescription, "description", "m", "", "free-text description")
	addCmd.Flags().StringVarP(&addImage, "image", "i", "", "path to a receipt image file")
	_ = addCmd.MarkFlagRequired("amount")
}

func runAdd(cmd *cobra.Command, _ []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	flow := expense.NewCaptureFlow(a.Repo, a.Logger)

	if addDate != "" {
		d, err := datemath.Parse(addDate)
		if err != nil {
			return err
		}
		flow.SetDate(d)
	}
	flow.SetAmount(addAmount)
	flow.SetDescription(addDescription)

	if addImage != "" {
		data, err := os.ReadFile(addImage)
		if err != nil {
			return fmt.Errorf("failed to read image file: %w", err)
		}
		flow.SetPendingImage(data)
	}

	flow.Save(cmd.Context())

	if errs := flow.State().Errors; len(errs) > 0 {
		for field, msg := range errs {
			fmt.Fprintf(os.Stderr, "%s: %s\n", field, msg)
		}
		return fmt.Errorf("expense not saved")
	}

	event := flow.ConsumeEvent()
	if event == nil || event.Type != expense.CaptureSaveSucceeded {
		reason := "unknown"
		if event != nil {
			reason = event.Reason
		}
		return fmt.Errorf("failed to save expense: %s", reason)
	}

	fmt.Printf("saved expense %d\n", event.RecordID)
	return nil
}
