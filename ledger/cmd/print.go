package cmd

import (
	"bufio"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/hako/durafmt"
	"github.com/plenert/ledger"
	"github.com/plenert/ledger/ledger/cmdparse"
	"github.com/plenert/ledger/ledger/internal/fastcolor"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	newLine     = "\n"
	amountWidth = 16
	dateWidth   = 10
)

var startString, endString, dateString string
var payeeFilter string

var numbers = message.NewPrinter(language.English)

// formatNumber renders d with two decimals and thousands separators.
func formatNumber(d decimal.Decimal) string {
	return numbers.Sprintf("%.2f", d.Round(2).InexactFloat64())
}

func amountColor(d decimal.Decimal) fastcolor.Color {
	if d.Sign() < 0 {
		return fastcolor.FgRed
	}
	return fastcolor.Reset
}

// parseDay parses an optional date flag; empty means unbounded.
func parseDay(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return cmdparse.ParseDate(s)
}

func dateRange() (start, end time.Time, err error) {
	if start, err = parseDay(startString); err != nil {
		return
	}
	end, err = parseDay(endString)
	return
}

func accountWidth(columns, fixed int) int {
	if columns-fixed < 12 {
		return 12
	}
	return columns - fixed
}

// PrintAccounts lists accounts with their type and lifetime.
func PrintAccounts(w io.Writer, accounts []ledger.Account, columns int) {
	accWidth := accountWidth(columns, 2*dateWidth+14)
	buf := bufio.NewWriter(w)
	for _, acc := range accounts {
		fastcolor.FgBlue.WriteStringFixed(buf, acc.Name, accWidth, false)
		buf.WriteString(" ")
		fastcolor.Reset.WriteStringFixed(buf, string(acc.Type), 11, false)
		buf.WriteString(" ")
		buf.WriteString(acc.OpenDate.Format(ledger.DateLayout))
		if acc.CloseDate != nil {
			buf.WriteString(" ")
			fastcolor.FgRed.WriteStringFixed(buf, acc.CloseDate.Format(ledger.DateLayout), dateWidth, false)
		}
		buf.WriteString(newLine)
	}
	buf.Flush()
}

// PrintLedger writes transactions in ledger file format. With filters, only
// transactions touching an account containing one of them are written.
func PrintLedger(w io.Writer, transactions []*ledger.Transaction, filterArr []string) {
	buf := bufio.NewWriter(w)
	for _, trans := range transactions {
		inFilter := len(filterArr) == 0
		for _, p := range trans.Postings {
			for _, filter := range filterArr {
				if strings.Contains(p.Account, filter) {
					inFilter = true
				}
			}
		}
		if inFilter {
			ledger.WriteTransaction(buf, trans)
			buf.WriteString(newLine)
		}
	}
	buf.Flush()
}

// PrintBalances lists balance assertions formatted to a width of columns.
func PrintBalances(w io.Writer, balances []*ledger.Balance, columns int) {
	accWidth := accountWidth(columns, dateWidth+amountWidth+2)
	buf := bufio.NewWriter(w)
	for _, bal := range balances {
		if bal.Amount == nil {
			continue
		}
		buf.WriteString(bal.Date.Format(ledger.DateLayout))
		buf.WriteString(" ")
		fastcolor.FgBlue.WriteStringFixed(buf, bal.Account, accWidth, false)
		buf.WriteString(" ")
		amountColor(bal.Amount.Number).WriteStringFixed(buf, formatNumber(bal.Amount.Number)+" "+bal.Amount.Currency, amountWidth, true)
		buf.WriteString(newLine)
	}
	buf.Flush()
}

func writeTotal(buf *bufio.Writer, label string, d decimal.Decimal, labelWidth int) {
	fastcolor.Bold.WriteStringFixed(buf, label, labelWidth, false)
	buf.WriteString(" ")
	amountColor(d).WriteStringFixed(buf, formatNumber(d), amountWidth, true)
	buf.WriteString(newLine)
}

// PrintNetWorth writes the net worth summary.
func PrintNetWorth(w io.Writer, nw ledger.NetWorth) {
	buf := bufio.NewWriter(w)
	fmt.Fprintf(buf, "Net worth as of %s\n", nw.Date.Format(ledger.DateLayout))
	writeTotal(buf, "Assets", nw.TotalAssets, 20)
	writeTotal(buf, "Liabilities", nw.TotalLiabilities, 20)
	buf.WriteString(strings.Repeat("-", 21+amountWidth) + newLine)
	writeTotal(buf, "Net worth", nw.NetWorth, 20)
	buf.Flush()
}

// PrintIncomeStatement writes income, expenses and net income of a period.
func PrintIncomeStatement(w io.Writer, is ledger.IncomeStatement) {
	buf := bufio.NewWriter(w)
	fmt.Fprintf(buf, "Income statement %s to %s\n", describeBound(is.Start, "beginning"), describeBound(is.End, "end"))
	writeTotal(buf, "Income", is.TotalIncome, 20)
	writeTotal(buf, "Expenses", is.TotalExpenses, 20)
	buf.WriteString(strings.Repeat("-", 21+amountWidth) + newLine)
	writeTotal(buf, "Net income", is.NetIncome, 20)
	buf.Flush()
}

func describeBound(t time.Time, unbounded string) string {
	if t.IsZero() {
		return unbounded
	}
	return t.Format(ledger.DateLayout)
}

// PrintBalanceSheet writes the latest assertion of every account, grouped by
// section.
func PrintBalanceSheet(w io.Writer, bs ledger.BalanceSheet, columns int) {
	accWidth := accountWidth(columns, amountWidth+3)
	buf := bufio.NewWriter(w)
	fmt.Fprintf(buf, "Balance sheet as of %s\n", bs.Date.Format(ledger.DateLayout))
	for _, section := range []struct {
		name     string
		balances map[string]decimal.Decimal
	}{
		{"Assets", bs.Assets},
		{"Liabilities", bs.Liabilities},
		{"Equity", bs.Equity},
	} {
		total := decimal.Zero
		buf.WriteString(section.name + newLine)
		for _, name := range slices.Sorted(maps.Keys(section.balances)) {
			d := section.balances[name]
			total = total.Add(d)
			buf.WriteString("  ")
			fastcolor.FgBlue.WriteStringFixed(buf, name, accWidth, false)
			buf.WriteString(" ")
			amountColor(d).WriteStringFixed(buf, formatNumber(d), amountWidth, true)
			buf.WriteString(newLine)
		}
		writeTotal(buf, "  Total "+strings.ToLower(section.name), total, accWidth+2)
	}
	buf.Flush()
}

// PrintStats writes file statistics and how long loading took.
func PrintStats(w io.Writer, stats ledger.FileStats, took time.Duration) {
	buf := bufio.NewWriter(w)
	fmt.Fprintf(buf, "File:         %s\n", stats.FilePath)
	fmt.Fprintf(buf, "Accounts:     %s\n", numbers.Sprintf("%d", stats.TotalAccounts))
	fmt.Fprintf(buf, "Transactions: %s\n", numbers.Sprintf("%d", stats.TotalTransactions))
	fmt.Fprintf(buf, "Balances:     %s\n", numbers.Sprintf("%d", stats.TotalBalances))
	fmt.Fprintf(buf, "Parse errors: %s\n", numbers.Sprintf("%d", stats.TotalErrors))
	fmt.Fprintf(buf, "Load time:    %s\n", durafmt.Parse(took.Round(time.Millisecond)).String())
	buf.Flush()
}

func filterPayee(transactions []*ledger.Transaction, payee string) []*ledger.Transaction {
	if payee == "" {
		return transactions
	}
	var out []*ledger.Transaction
	for _, trans := range transactions {
		if strings.Contains(trans.Payee, payee) {
			out = append(out, trans)
		}
	}
	return out
}

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "List accounts declared by open directives",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		PrintAccounts(cmd.OutOrStdout(), e.Accounts(), cfg.Columns)
		return nil
	},
}

var printCmd = &cobra.Command{
	Use:   "print [account-substring-filter]...",
	Short: "Print transactions in ledger file format",
	RunE: func(cmd *cobra.Command, args []string) error {
		start, end, err := dateRange()
		if err != nil {
			return err
		}
		e, err := openEngine()
		if err != nil {
			return err
		}
		PrintLedger(cmd.OutOrStdout(), filterPayee(e.Transactions(start, end), payeeFilter), args)
		return nil
	},
}

var balancesCmd = &cobra.Command{
	Use:   "balances [account]",
	Short: "List balance assertions up to a date",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		at, err := parseDay(dateString)
		if err != nil {
			return err
		}
		e, err := openEngine()
		if err != nil {
			return err
		}
		var account string
		if len(args) > 0 {
			account = args[0]
		}
		PrintBalances(cmd.OutOrStdout(), e.Balances(account, at), cfg.Columns)
		return nil
	},
}

var netWorthCmd = &cobra.Command{
	Use:     "networth",
	Aliases: []string{"net_worth"},
	Short:   "Assets minus liabilities from balance assertions",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		at, err := parseDay(dateString)
		if err != nil {
			return err
		}
		e, err := openEngine()
		if err != nil {
			return err
		}
		PrintNetWorth(cmd.OutOrStdout(), e.NetWorth(at))
		return nil
	},
}

var incomeCmd = &cobra.Command{
	Use:     "income",
	Aliases: []string{"income_statement"},
	Short:   "Income and expenses over a period",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		start, end, err := dateRange()
		if err != nil {
			return err
		}
		e, err := openEngine()
		if err != nil {
			return err
		}
		PrintIncomeStatement(cmd.OutOrStdout(), e.IncomeStatement(start, end))
		return nil
	},
}

var balanceSheetCmd = &cobra.Command{
	Use:     "balancesheet",
	Aliases: []string{"balance_sheet"},
	Short:   "Latest balance assertion per account",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		at, err := parseDay(dateString)
		if err != nil {
			return err
		}
		e, err := openEngine()
		if err != nil {
			return err
		}
		PrintBalanceSheet(cmd.OutOrStdout(), e.BalanceSheet(at), cfg.Columns)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Counts of accounts, transactions, balances and parse errors",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		PrintStats(cmd.OutOrStdout(), e.FileStats(), loadTime)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(accountsCmd, printCmd, balancesCmd, netWorthCmd, incomeCmd, balanceSheetCmd, statsCmd)

	for _, c := range []*cobra.Command{printCmd, incomeCmd} {
		c.Flags().StringVarP(&startString, "begin-date", "b", "", "Begin date of transaction processing.")
		c.Flags().StringVarP(&endString, "end-date", "e", "", "End date of transaction processing.")
	}
	printCmd.Flags().StringVar(&payeeFilter, "payee", "", "Filter output to payees that contain this string.")

	for _, c := range []*cobra.Command{balancesCmd, netWorthCmd, balanceSheetCmd} {
		c.Flags().StringVar(&dateString, "date", "", "Only consider assertions on or before this date (default today).")
	}
}
