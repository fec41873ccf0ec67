package ledger

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the only date format accepted in a ledger file.
const DateLayout = "2006-01-02"

// AccountType is the classification of an account derived from its root
// segment.
type AccountType string

const (
	Assets      AccountType = "ASSETS"
	Liabilities AccountType = "LIABILITIES"
	Equity      AccountType = "EQUITY"
	Income      AccountType = "INCOME"
	Expenses    AccountType = "EXPENSES"
)

// Meta holds the key/value metadata attached to directives and postings.
type Meta map[string]string

// Amount is a number in a single currency.
type Amount struct {
	Number   decimal.Decimal
	Currency string
}

// Posting is one account line inside a transaction. Units is nil when the
// amount was elided in the source.
type Posting struct {
	Account string
	Units   *Amount
	Price   *Amount
	// Cost is the raw text between braces, kept as written.
	Cost string
	Meta Meta
}

// Transaction is a dated, narrated set of postings. Values are never edited in
// place; an edit replaces the whole value by ID.
type Transaction struct {
	ID        string
	Date      time.Time
	Payee     string
	Narration string
	Postings  []Posting
	Tags      []string
	Links     []string
	Meta      Meta
}

// Open declares an account from a date on.
type Open struct {
	Date       time.Time
	Account    string
	Currencies []string
	Booking    string
	Meta       Meta
}

// Close retires an account.
type Close struct {
	Date    time.Time
	Account string
	Meta    Meta
}

// Balance asserts the value of an account at a date. Amount may be nil when
// the entry was built without one; such entries are ignored by queries.
type Balance struct {
	Date    time.Time
	Account string
	Amount  *Amount
	Meta    Meta
}

// Entry is one directive of a ledger file. The set of implementations is
// closed: *Open, *Close, *Balance and *Transaction.
type Entry interface {
	EntryDate() time.Time
	entry()
}

func (o *Open) EntryDate() time.Time        { return o.Date }
func (c *Close) EntryDate() time.Time       { return c.Date }
func (b *Balance) EntryDate() time.Time     { return b.Date }
func (t *Transaction) EntryDate() time.Time { return t.Date }

func (*Open) entry()        {}
func (*Close) entry()       {}
func (*Balance) entry()     {}
func (*Transaction) entry() {}

// Warning is a non-fatal problem found while parsing. The directive it
// refers to was skipped.
type Warning struct {
	Line    int
	Message string
}

func (w Warning) String() string {
	return "line " + strconv.Itoa(w.Line) + ": " + w.Message
}

// FileStats summarizes a loaded ledger file.
type FileStats struct {
	TotalAccounts     int
	TotalTransactions int
	TotalBalances     int
	TotalErrors       int
	FilePath          string
}

// NetWorth is the sum of balance assertions per side of the balance sheet.
type NetWorth struct {
	Date             time.Time
	TotalAssets      decimal.Decimal
	TotalLiabilities decimal.Decimal
	NetWorth         decimal.Decimal
}

// IncomeStatement sums posting numbers over a period.
type IncomeStatement struct {
	Start         time.Time
	End           time.Time
	TotalIncome   decimal.Decimal
	TotalExpenses decimal.Decimal
	NetIncome     decimal.Decimal
}

// BalanceSheet groups balance assertions by account.
type BalanceSheet struct {
	Date        time.Time
	Assets      map[string]decimal.Decimal
	Liabilities map[string]decimal.Decimal
	Equity      map[string]decimal.Decimal
}
