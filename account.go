package ledger

import (
	"fmt"
	"strings"
	"time"
)

// Account is an account as declared by an open directive, optionally closed.
type Account struct {
	Name        string
	Type        AccountType
	Parent      string
	Description string
	OpenDate    time.Time
	CloseDate   *time.Time
	Currencies  []string
	Meta        Meta
}

// NewAccount builds a validated account. The type and parent are derived from
// the name.
func NewAccount(name string, openDate time.Time, description string, meta Meta) (Account, error) {
	acc := Account{
		Name:        name,
		Type:        AccountTypeOf(name),
		Parent:      parentOf(name),
		Description: description,
		OpenDate:    openDate,
		Meta:        meta,
	}
	if err := acc.Validate(); err != nil {
		return Account{}, err
	}
	return acc, nil
}

// Validate checks the account invariants and reports all failures at once.
func (a Account) Validate() error {
	var res validationResult
	if err := checkAccountName(a.Name); err != nil {
		res.fail(err.Error())
	}
	checkLine(&res, "description", a.Description)
	checkMeta(&res, "", a.Meta)
	if a.OpenDate.IsZero() {
		res.fail("account open date is invalid")
	}
	if a.CloseDate != nil && !a.CloseDate.After(a.OpenDate) {
		res.fail("account close date must be after open date")
	}
	return res.err()
}

// IsClosed reports whether a close date is set.
func (a Account) IsClosed() bool {
	return a.CloseDate != nil
}

// Close returns a copy of the account closed on date.
func (a Account) Close(date time.Time) (Account, error) {
	if a.IsClosed() {
		return Account{}, fmt.Errorf("%s: %w", a.Name, ErrAccountClosed)
	}
	closed := a
	closed.CloseDate = &date
	if err := closed.Validate(); err != nil {
		return Account{}, err
	}
	return closed, nil
}

// AccountTypeOf derives the type from the uppercased root segment. Unknown
// roots are treated as assets.
func AccountTypeOf(name string) AccountType {
	root, _, _ := strings.Cut(name, ":")
	switch t := AccountType(strings.ToUpper(root)); t {
	case Assets, Liabilities, Equity, Income, Expenses:
		return t
	}
	return Assets
}

func parentOf(name string) string {
	idx := strings.LastIndex(name, ":")
	if idx < 0 {
		return ""
	}
	return name[:idx]
}
