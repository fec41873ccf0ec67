package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/plenert/ledger"
	"github.com/plenert/ledger/ledger/cmdparse"
	"github.com/spf13/cobra"
)

var errExit = errors.New("exit")

// Shell executes slash commands read line by line against one engine.
type Shell struct {
	Engine   *ledger.Engine
	Currency string
	Columns  int
	Out      io.Writer
}

// Run reads commands from r until EOF or exit.
func (s *Shell) Run(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		err := s.Execute(cmdparse.Parse(line))
		if errors.Is(err, errExit) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(s.Out, "error: %v\n", err)
		}
	}
	return scanner.Err()
}

// Execute runs a single decoded command.
func (s *Shell) Execute(c cmdparse.Command) error {
	if !cmdparse.IsValid(c.Name) {
		return fmt.Errorf("unknown command %q, try /help", c.Name)
	}
	p := c.Params
	e := s.Engine

	switch c.Name {
	case "help":
		if name, ok := p.String("command"); ok {
			h, ok := cmdparse.Help(strings.TrimPrefix(name, "/"))
			if !ok {
				return fmt.Errorf("unknown command %q", name)
			}
			fmt.Fprintln(s.Out, "/"+h)
			return nil
		}
		for _, name := range cmdparse.Names {
			h, _ := cmdparse.Help(name)
			fmt.Fprintln(s.Out, "/"+h)
		}
	case "accounts":
		PrintAccounts(s.Out, e.Accounts(), s.Columns)
	case "transactions":
		start, end, err := dates(p, "start", "end")
		if err != nil {
			return err
		}
		PrintLedger(s.Out, e.Transactions(start, end), nil)
	case "balances":
		at, err := p.Date("date")
		if err != nil {
			return err
		}
		account, _ := p.String("account")
		PrintBalances(s.Out, e.Balances(account, at), s.Columns)
	case "net_worth":
		at, err := p.Date("date")
		if err != nil {
			return err
		}
		PrintNetWorth(s.Out, e.NetWorth(at))
	case "income_statement":
		start, end, err := dates(p, "start", "end")
		if err != nil {
			return err
		}
		PrintIncomeStatement(s.Out, e.IncomeStatement(start, end))
	case "balance_sheet":
		at, err := p.Date("date")
		if err != nil {
			return err
		}
		PrintBalanceSheet(s.Out, e.BalanceSheet(at), s.Columns)
	case "add_transaction":
		draft, err := p.Transaction(s.Currency)
		if err != nil {
			return err
		}
		if err := e.AddTransaction(&draft); err != nil {
			return err
		}
		fmt.Fprintf(s.Out, "added %s\n", draft.ID)
	case "delete_transaction":
		found, err := s.delete(p)
		if err != nil {
			return err
		}
		if !found {
			return ledger.ErrTransactionNotFound
		}
		fmt.Fprintln(s.Out, "deleted")
	case "reload":
		if err := e.Reload(); err != nil {
			return err
		}
		fmt.Fprintf(s.Out, "reloaded %d entries\n", len(e.Entries()))
	case "stats":
		PrintStats(s.Out, e.FileStats(), loadTime)
	case "suggest_account":
		text, _ := p.String("narration")
		account, _ := p.String("account")
		suggestion, ok := NewSuggester(e.Entries(), account).Predict(text)
		if !ok {
			suggestion = UnknownAccount
		}
		fmt.Fprintln(s.Out, suggestion)
	case "exit":
		return errExit
	}
	return nil
}

func (s *Shell) delete(p cmdparse.Params) (bool, error) {
	if id, ok := p.String("id"); ok && id != "" {
		return s.Engine.DeleteTransactionByID(id)
	}
	day, err := p.Date("date")
	if err != nil {
		return false, err
	}
	narration, ok := p.String("narration")
	if day.IsZero() || !ok {
		return false, fmt.Errorf("%w: id, or date and narration", cmdparse.ErrMissingParam)
	}
	return s.Engine.DeleteTransaction(day, narration)
}

func dates(p cmdparse.Params, startKey, endKey string) (start, end time.Time, err error) {
	if start, err = p.Date(startKey); err != nil {
		return
	}
	end, err = p.Date(endKey)
	return
}

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Run slash commands from standard input",
	Long: `shell reads one command per line, for example

  /balances account=Assets:Cash date=2024-01-31
  /add_transaction date=2024-01-01 narration="Lunch" postings=[{"account":"Expenses:Food","amount":25},{"account":"Assets:Cash","amount":-25}]

Use /help to list commands and /exit to leave.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		sh := &Shell{Engine: e, Currency: cfg.Currency, Columns: cfg.Columns, Out: cmd.OutOrStdout()}
		return sh.Run(cmd.InOrStdin())
	},
}

func init() {
	rootCmd.AddCommand(shellCmd)
}
