package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/jbrukh/bayesian"
	"github.com/plenert/ledger"
	"github.com/plenert/ledger/ledger/iif"
	"github.com/plenert/ledger/ledger/qif"
	"github.com/spf13/cobra"
)

var ErrNoMatchingAccount = errors.New("unable to find matching account")

// UnknownAccount is the counter account used when no prediction is confident.
const UnknownAccount = "Expenses:Unknown"

// confidenceGap is the minimum log-score lead of the best class over the
// runner-up.
const confidenceGap = 10

var (
	negateAmount     bool
	allowMatching    bool
	dryRun           bool
	overrideCurrency string
	suggestAccount   string
)

// Suggester predicts the counter account of a transaction from the words of
// its payee and narration.
type Suggester struct {
	classifier *bayesian.Classifier
	only       bayesian.Class
	learned    int
}

func words(s string) []string {
	return strings.Fields(strings.ToLower(s))
}

// NewSuggester learns from every transaction that has a posting to account,
// using its other postings as classes. An empty account learns from all
// transactions and all their postings.
func NewSuggester(entries []ledger.Entry, account string) *Suggester {
	type example struct {
		words   []string
		classes []string
	}
	var (
		examples []example
		seen     = make(map[string]bool)
	)
	for _, entry := range entries {
		trans, ok := entry.(*ledger.Transaction)
		if !ok {
			continue
		}
		learn := account == ""
		for _, p := range trans.Postings {
			if p.Account == account {
				learn = true
				break
			}
		}
		if !learn {
			continue
		}
		ex := example{words: words(trans.Payee + " " + trans.Narration)}
		for _, p := range trans.Postings {
			if p.Account != account {
				ex.classes = append(ex.classes, p.Account)
				seen[p.Account] = true
			}
		}
		examples = append(examples, ex)
	}

	s := &Suggester{}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	slices.Sort(names)
	switch len(names) {
	case 0:
		return s
	case 1:
		s.only = bayesian.Class(names[0])
		return s
	}

	classes := make([]bayesian.Class, len(names))
	for i, name := range names {
		classes[i] = bayesian.Class(name)
	}
	s.classifier = bayesian.NewClassifier(classes...)
	for _, ex := range examples {
		if len(ex.words) == 0 {
			continue
		}
		for _, class := range ex.classes {
			s.classifier.Learn(ex.words, bayesian.Class(class))
			s.learned++
		}
	}
	return s
}

// Predict returns the most likely account for text, or false when the
// best guess does not clearly beat the second best.
func (s *Suggester) Predict(text string) (string, bool) {
	if s.only != "" {
		return string(s.only), true
	}
	input := words(text)
	if s.classifier == nil || s.learned == 0 || len(input) == 0 {
		return "", false
	}

	highScore1 := math.Inf(-1)
	highScore2 := math.Inf(-1)
	matchIdx := 0
	scores, _, _ := s.classifier.LogScores(input)
	for j, score := range scores {
		if score > highScore1 {
			highScore2 = highScore1
			highScore1 = score
			matchIdx = j
		} else if score > highScore2 {
			highScore2 = score
		}
	}
	if highScore1-highScore2 > confidenceGap {
		return string(s.classifier.Classes[matchIdx]), true
	}
	return "", false
}

// findMatchingAccount resolves a substring to a declared account, preferring
// a case-insensitive exact match and otherwise the last match.
func findMatchingAccount(accounts []ledger.Account, substring string) (string, error) {
	var matches []string
	for _, acc := range accounts {
		if strings.EqualFold(acc.Name, substring) {
			return acc.Name, nil
		}
		if strings.Contains(strings.ToLower(acc.Name), strings.ToLower(substring)) {
			matches = append(matches, acc.Name)
		}
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoMatchingAccount, substring)
	}
	return matches[len(matches)-1], nil
}

func existingTransaction(existing []*ledger.Transaction, day time.Time, narration string) bool {
	for _, trans := range existing {
		if trans.Date.Equal(day) && strings.TrimSpace(trans.Narration) == strings.TrimSpace(narration) {
			return true
		}
	}
	return false
}

// Importer turns QIF records into transactions against one account.
type Importer struct {
	Account   string
	Currency  string
	Negate    bool
	AllowDups bool

	suggester *Suggester
	existing  []*ledger.Transaction
	logger    *slog.Logger
}

// NewImporter prepares an import into the account matching substring.
func NewImporter(e *ledger.Engine, substring, currency string) (*Importer, error) {
	account, err := findMatchingAccount(e.Accounts(), substring)
	if err != nil {
		return nil, err
	}
	return &Importer{
		Account:   account,
		Currency:  currency,
		suggester: NewSuggester(e.Entries(), account),
		existing:  e.Transactions(time.Time{}, time.Time{}),
		logger:    logger,
	}, nil
}

func (imp *Importer) predict(text string) string {
	if counter, ok := imp.suggester.Predict(text); ok {
		return counter
	}
	return UnknownAccount
}

func (imp *Importer) keep(trans *ledger.Transaction) bool {
	if imp.Negate {
		for i := range trans.Postings {
			trans.Postings[i].Units.Number = trans.Postings[i].Units.Number.Neg()
		}
	}
	return imp.AllowDups || !existingTransaction(imp.existing, trans.Date, trans.Narration)
}

// ConvertQIF decodes a QIF export and returns the transactions to add.
// Records that cannot be converted are logged and skipped.
func (imp *Importer) ConvertQIF(r io.Reader) ([]*ledger.Transaction, error) {
	records, err := qif.ParseQIF(r)
	if err != nil {
		return nil, err
	}

	var out []*ledger.Transaction
	for _, rec := range records {
		trans, err := rec.Transaction(imp.Account, imp.predict(rec.Payee+" "+rec.Memo), imp.Currency)
		if err != nil {
			imp.logger.Warn("skipped qif record", "error", err)
			continue
		}
		if imp.keep(&trans) {
			out = append(out, &trans)
		}
	}
	return out, nil
}

// ConvertIIF decodes the TRNS/SPL blocks of an IIF file. Each split is
// booked on an account predicted from its own memo and name.
func (imp *Importer) ConvertIIF(r io.Reader) ([]*ledger.Transaction, error) {
	txs, err := iif.Parse(r)
	if err != nil {
		return nil, err
	}

	var out []*ledger.Transaction
	for _, tx := range txs {
		trans := tx.Ledger(imp.Account, imp.Currency, func(spl iif.Spl) string {
			return imp.predict(tx.Description() + " " + spl.Name + " " + spl.Memo)
		})
		if imp.keep(&trans) {
			out = append(out, &trans)
		}
	}
	return out, nil
}

var importCmd = &cobra.Command{
	Use:   "import <account-substring> <qif-or-iif-file>",
	Args:  cobra.ExactArgs(2),
	Short: "Import transactions from a QIF or QuickBooks IIF export",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		currency := cfg.Currency
		if overrideCurrency != "" {
			currency = overrideCurrency
		}
		imp, err := NewImporter(e, args[0], currency)
		if err != nil {
			return err
		}
		imp.Negate = negateAmount
		imp.AllowDups = allowMatching

		f, err := os.Open(args[1])
		if err != nil {
			return err
		}
		defer f.Close()

		convert := imp.ConvertQIF
		if strings.HasSuffix(strings.ToLower(args[1]), ".iif") {
			convert = imp.ConvertIIF
		}
		transactions, err := convert(f)
		if err != nil {
			return err
		}
		if dryRun {
			buf := bufio.NewWriter(cmd.OutOrStdout())
			for _, trans := range transactions {
				ledger.WriteTransaction(buf, trans)
				buf.WriteString(newLine)
			}
			return buf.Flush()
		}
		if err := e.AddTransactions(transactions...); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d transactions into %s\n", len(transactions), imp.Account)
		return nil
	},
}

var suggestCmd = &cobra.Command{
	Use:   "suggest <words>...",
	Args:  cobra.MinimumNArgs(1),
	Short: "Guess the counter account for a payee or narration",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEngine()
		if err != nil {
			return err
		}
		account, ok := NewSuggester(e.Entries(), suggestAccount).Predict(strings.Join(args, " "))
		if !ok {
			account = UnknownAccount
		}
		fmt.Fprintln(cmd.OutOrStdout(), account)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd, suggestCmd)

	importCmd.Flags().BoolVar(&negateAmount, "neg", false, "Negate amount column value.")
	importCmd.Flags().BoolVar(&allowMatching, "allow-matching", false, "Include imported transactions that\nmatch existing ledger transactions.")
	importCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the transactions instead of writing them.")
	importCmd.Flags().StringVar(&overrideCurrency, "override-currency", "", "Currency of imported amounts (default from config).")
	suggestCmd.Flags().StringVar(&suggestAccount, "account", "", "Only learn from transactions touching this account.")
}
