package ledger

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// ErrTransactionNotFound is returned by ReplaceTransaction for an unknown id.
var ErrTransactionNotFound = errors.New("transaction not found")

// Engine owns the entries of one ledger file. Every successful mutation
// rewrites the whole file. An Engine is not safe for concurrent use and does
// not guard against other writers of the same file.
type Engine struct {
	store    fileStore
	entries  []Entry
	warnings []Warning

	logger  *slog.Logger
	now     func() time.Time
	results *cache.Cache
	warnLog rate.Sometimes
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. By default nothing is logged.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithBackup keeps a compressed copy of the previous file content next to the
// ledger before every write.
func WithBackup(enabled bool) Option {
	return func(e *Engine) { e.store.backup = enabled }
}

// WithClock replaces time.Now as the default date of point-in-time queries.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// NewEngine loads the ledger at path. It fails when the file cannot be read;
// malformed directives only produce warnings.
func NewEngine(path string, opts ...Option) (*Engine, error) {
	e := &Engine{
		store:   fileStore{path: path},
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:     time.Now,
		results: cache.New(cache.NoExpiration, 0),
		warnLog: rate.Sometimes{First: 10, Interval: time.Second},
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.load(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *Engine) load() error {
	data, err := e.store.read()
	if err != nil {
		return err
	}
	entries, warnings := ParseString(string(data))
	e.entries = entries
	e.warnings = warnings
	e.results.Flush()

	for _, w := range warnings {
		e.warnLog.Do(func() {
			e.logger.Warn("skipped directive", "file", e.store.path, "line", w.Line, "reason", w.Message)
		})
	}
	e.logger.Info("ledger loaded", "file", e.store.path, "entries", len(entries), "warnings", len(warnings))
	return nil
}

// Reload replaces the in-memory entries with the current file content. On
// failure the previous entries are kept.
func (e *Engine) Reload() error {
	return e.load()
}

// Path returns the ledger file path.
func (e *Engine) Path() string {
	return e.store.path
}

// Entries returns a copy of the entry list in file order.
func (e *Engine) Entries() []Entry {
	return append([]Entry(nil), e.entries...)
}

// Warnings returns the problems found by the last load.
func (e *Engine) Warnings() []Warning {
	return append([]Warning(nil), e.warnings...)
}

func (e *Engine) memo(key string, compute func() any) any {
	if v, ok := e.results.Get(key); ok {
		return v
	}
	v := compute()
	e.results.Set(key, v, cache.NoExpiration)
	return v
}

func (e *Engine) at(t time.Time) time.Time {
	if t.IsZero() {
		return e.now()
	}
	return t
}

func timeKey(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	_, offset := t.Zone()
	return strconv.FormatInt(t.UnixNano(), 10) + "@" + t.Location().String() + strconv.Itoa(offset)
}

// Accounts returns the accounts declared by open directives.
func (e *Engine) Accounts() []Account {
	return slices.Clone(e.memo("accounts", func() any {
		return GetAccounts(e.entries)
	}).([]Account))
}

// Transactions returns the transactions within [start, end], whole days
// inclusive. Zero bounds are unbounded.
func (e *Engine) Transactions(start, end time.Time) []*Transaction {
	key := "transactions|" + timeKey(start) + "|" + timeKey(end)
	return slices.Clone(e.memo(key, func() any {
		return TransactionsInDateRange(e.entries, start, end)
	}).([]*Transaction))
}

// Balances returns the balance assertions on or before at (zero means now),
// limited to account when given.
func (e *Engine) Balances(account string, at time.Time) []*Balance {
	return GetBalances(e.entries, account, e.at(at))
}

// NetWorth sums assets and liabilities assertions on or before at.
func (e *Engine) NetWorth(at time.Time) NetWorth {
	return ComputeNetWorth(e.entries, e.at(at))
}

// IncomeStatement sums income and expense postings between start and end.
func (e *Engine) IncomeStatement(start, end time.Time) IncomeStatement {
	key := "income|" + timeKey(start) + "|" + timeKey(end)
	return e.memo(key, func() any {
		return ComputeIncomeStatement(e.entries, start, end)
	}).(IncomeStatement)
}

// BalanceSheet groups the assertions on or before at by account.
func (e *Engine) BalanceSheet(at time.Time) BalanceSheet {
	return ComputeBalanceSheet(e.entries, e.at(at))
}

// FileStats summarizes the loaded file.
func (e *Engine) FileStats() FileStats {
	return e.memo("stats", func() any {
		stats := FileStats{
			TotalAccounts: len(e.Accounts()),
			TotalErrors:   len(e.warnings),
			FilePath:      e.store.path,
		}
		for _, entry := range e.entries {
			switch entry.(type) {
			case *Transaction:
				stats.TotalTransactions++
			case *Balance:
				stats.TotalBalances++
			}
		}
		return stats
	}).(FileStats)
}

// AddTransaction validates trans, appends it and rewrites the file. Nothing
// changes when validation or the write fails.
func (e *Engine) AddTransaction(trans *Transaction) error {
	valid, err := NewTransaction(*trans)
	if err != nil {
		return err
	}
	if err := e.commit(append(e.Entries(), valid)); err != nil {
		return err
	}
	*trans = *valid
	e.logger.Debug("transaction added", "id", valid.ID, "date", valid.Date.Format(DateLayout))
	return nil
}

// AddTransactions is AddTransaction for a batch written in one go. Either
// all transactions are added or none.
func (e *Engine) AddTransactions(trans ...*Transaction) error {
	next := e.Entries()
	valid := make([]*Transaction, len(trans))
	for i, t := range trans {
		v, err := NewTransaction(*t)
		if err != nil {
			return fmt.Errorf("transaction %d: %w", i+1, err)
		}
		valid[i] = v
		next = append(next, v)
	}
	if err := e.commit(next); err != nil {
		return err
	}
	for i, v := range valid {
		*trans[i] = *v
	}
	e.logger.Debug("transactions added", "count", len(valid))
	return nil
}

// DeleteTransaction removes the first transaction with exactly this date and
// narration. It reports false when none matches.
func (e *Engine) DeleteTransaction(date time.Time, narration string) (bool, error) {
	return e.deleteFirst(func(t *Transaction) bool {
		return t.Date.Equal(date) && t.Narration == narration
	})
}

// DeleteTransactionByID removes the transaction with the given id.
func (e *Engine) DeleteTransactionByID(id string) (bool, error) {
	return e.deleteFirst(func(t *Transaction) bool {
		return t.ID == id
	})
}

func (e *Engine) deleteFirst(match func(*Transaction) bool) (bool, error) {
	for i, entry := range e.entries {
		trans, ok := entry.(*Transaction)
		if !ok || !match(trans) {
			continue
		}
		next := make([]Entry, 0, len(e.entries)-1)
		next = append(next, e.entries[:i]...)
		next = append(next, e.entries[i+1:]...)
		if err := e.commit(next); err != nil {
			return false, err
		}
		e.logger.Debug("transaction deleted", "id", trans.ID)
		return true, nil
	}
	return false, nil
}

// ReplaceTransaction swaps the transaction with the given id for trans,
// keeping its position in the file.
func (e *Engine) ReplaceTransaction(id string, trans *Transaction) error {
	draft := *trans
	draft.ID = id
	valid, err := NewTransaction(draft)
	if err != nil {
		return err
	}
	for i, entry := range e.entries {
		if old, ok := entry.(*Transaction); ok && old.ID == id {
			next := e.Entries()
			next[i] = valid
			if err := e.commit(next); err != nil {
				return err
			}
			*trans = *valid
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrTransactionNotFound, id)
}

// OpenAccount appends an open directive for acc.
func (e *Engine) OpenAccount(acc Account) error {
	if err := acc.Validate(); err != nil {
		return err
	}
	for _, cur := range acc.Currencies {
		if err := checkCurrency(cur); err != nil {
			return &ValidationError{Reasons: []string{err.Error()}}
		}
	}
	for _, existing := range e.Accounts() {
		if existing.Name == acc.Name {
			return &ValidationError{Reasons: []string{fmt.Sprintf("account %s is already open", acc.Name)}}
		}
	}
	meta := maps.Clone(acc.Meta)
	if acc.Description != "" {
		if meta == nil {
			meta = Meta{}
		}
		meta["description"] = acc.Description
	}
	return e.commit(append(e.Entries(), &Open{
		Date:       acc.OpenDate,
		Account:    acc.Name,
		Currencies: acc.Currencies,
		Meta:       meta,
	}))
}

// CloseAccount appends a close directive for an open account.
func (e *Engine) CloseAccount(name string, date time.Time) error {
	for _, acc := range e.Accounts() {
		if acc.Name != name {
			continue
		}
		if _, err := acc.Close(date); err != nil {
			return err
		}
		return e.commit(append(e.Entries(), &Close{Date: date, Account: name}))
	}
	return &ValidationError{Reasons: []string{fmt.Sprintf("account %s is not open", name)}}
}

// AddBalance appends a balance assertion.
func (e *Engine) AddBalance(bal *Balance) error {
	var res validationResult
	if err := checkAccountName(bal.Account); err != nil {
		res.fail(err.Error())
	}
	if bal.Date.IsZero() {
		res.fail("date is invalid")
	}
	if bal.Amount == nil || bal.Amount.Currency == "" {
		res.fail("amount with currency is required")
	} else if err := checkCurrency(bal.Amount.Currency); err != nil {
		res.fail(err.Error())
	}
	checkMeta(&res, "", bal.Meta)
	if err := res.err(); err != nil {
		return err
	}
	return e.commit(append(e.Entries(), bal))
}

// RestoreBackup writes the last backup snapshot over the ledger and reloads.
func (e *Engine) RestoreBackup() error {
	data, err := e.store.readBackup()
	if err != nil {
		return err
	}
	if err := writeFileAtomic(e.store.path, data, 0o644); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrFileWrite, e.store.path, err)
	}
	return e.load()
}

// commit writes next to disk and, once that succeeded, makes it current.
func (e *Engine) commit(next []Entry) error {
	if err := e.store.write([]byte(Serialize(next))); err != nil {
		return err
	}
	e.entries = next
	e.results.Flush()
	return nil
}
