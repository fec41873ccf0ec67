package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/plenert/ledger"
	"github.com/plenert/ledger/ledger/cmdparse"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	editDate      string
	editPayee     string
	editNarration string
	editID        string
)

// editDay parses --date, defaulting to today.
func editDay() (time.Time, error) {
	if editDate == "" {
		y, m, d := time.Now().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	return cmdparse.ParseDate(editDate)
}

var addCmd = &cobra.Command{
	Use:   `add "<account> [amount [currency]]"...`,
	Short: "Append a balanced transaction",
	Example: `  ledger add --narration "Lunch" "Expenses:Food 12.50" "Assets:Cash -12.50"
  ledger add --date 2024-03-01 --payee Landlord --narration Rent "Expenses:Rent 900 EUR" "Assets:Bank -900 EUR"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		postings := make([]any, len(args))
		for i, a := range args {
			postings[i] = a
		}
		params := cmdparse.Params{
			"date":      editDate,
			"payee":     editPayee,
			"narration": editNarration,
			"postings":  postings,
		}
		if editDate == "" {
			d, _ := editDay()
			params["date"] = d.Format(ledger.DateLayout)
		}
		draft, err := params.Transaction(cfg.Currency)
		if err != nil {
			return err
		}

		e, err := openEngine()
		if err != nil {
			return err
		}
		if err := e.AddTransaction(&draft); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "added %s\n", draft.ID)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Remove one transaction by --id or by --date and --narration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}

		var found bool
		switch {
		case editID != "":
			found, err = e.DeleteTransactionByID(editID)
		case editDate != "" && editNarration != "":
			var day time.Time
			if day, err = cmdparse.ParseDate(editDate); err != nil {
				return err
			}
			found, err = e.DeleteTransaction(day, editNarration)
		default:
			return errors.New("either --id or both --date and --narration are required")
		}
		if err != nil {
			return err
		}
		if !found {
			return ledger.ErrTransactionNotFound
		}
		fmt.Fprintln(cmd.OutOrStdout(), "deleted")
		return nil
	},
}

var openCmd = &cobra.Command{
	Use:   "open <account> [currency]...",
	Short: "Declare an account",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		day, err := editDay()
		if err != nil {
			return err
		}
		acc, err := ledger.NewAccount(args[0], day, "", nil)
		if err != nil {
			return err
		}
		acc.Currencies = args[1:]
		e, err := openEngine()
		if err != nil {
			return err
		}
		return e.OpenAccount(acc)
	},
}

var closeCmd = &cobra.Command{
	Use:   "close <account>",
	Short: "Close an open account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		day, err := editDay()
		if err != nil {
			return err
		}
		e, err := openEngine()
		if err != nil {
			return err
		}
		return e.CloseAccount(args[0], day)
	},
}

var assertCmd = &cobra.Command{
	Use:   "assert <account> <amount> [currency]",
	Short: "Append a balance assertion",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		day, err := editDay()
		if err != nil {
			return err
		}
		num, err := decimal.NewFromString(args[1])
		if err != nil {
			return fmt.Errorf("invalid amount %q", args[1])
		}
		currency := cfg.Currency
		if len(args) == 3 {
			currency = args[2]
		}
		e, err := openEngine()
		if err != nil {
			return err
		}
		return e.AddBalance(&ledger.Balance{
			Date:    day,
			Account: args[0],
			Amount:  &ledger.Amount{Number: num, Currency: currency},
		})
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore",
	Short: "Replace the ledger file with its last backup",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		if err := e.RestoreBackup(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "restored %s from %s\n", e.Path(), e.Path()+ledger.BackupSuffix)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(addCmd, deleteCmd, openCmd, closeCmd, assertCmd, restoreCmd)

	for _, c := range []*cobra.Command{addCmd, deleteCmd, openCmd, closeCmd, assertCmd} {
		c.Flags().StringVar(&editDate, "date", "", "Date of the entry (default today).")
	}
	for _, c := range []*cobra.Command{addCmd, deleteCmd} {
		c.Flags().StringVar(&editNarration, "narration", "", "Transaction narration.")
	}
	addCmd.Flags().StringVar(&editPayee, "payee", "", "Transaction payee.")
	deleteCmd.Flags().StringVar(&editID, "id", "", "Transaction id, as written in its id: metadata.")
}
