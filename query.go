package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// GetAccounts returns one account per open directive, in file order. A close
// directive for the account sets its close date.
func GetAccounts(entries []Entry) []Account {
	var accounts []Account
	index := make(map[string]int)
	for _, e := range entries {
		open, ok := e.(*Open)
		if !ok {
			continue
		}
		index[open.Account] = len(accounts)
		accounts = append(accounts, Account{
			Name:        open.Account,
			Type:        AccountTypeOf(open.Account),
			Parent:      parentOf(open.Account),
			Description: open.Meta["description"],
			OpenDate:    open.Date,
			Currencies:  open.Currencies,
			Meta:        open.Meta,
		})
	}
	for _, e := range entries {
		cl, ok := e.(*Close)
		if !ok {
			continue
		}
		i, found := index[cl.Account]
		if !found {
			continue
		}
		if closed, err := accounts[i].Close(cl.Date); err == nil {
			accounts[i] = closed
		}
	}
	return accounts
}

// TransactionsInDateRange returns the transactions dated within the days of
// start and end, inclusive. A zero bound leaves that side open.
func TransactionsInDateRange(entries []Entry, start, end time.Time) []*Transaction {
	var from, to time.Time
	if !start.IsZero() {
		from = startOfDay(start)
	}
	if !end.IsZero() {
		to = endOfDay(end)
	}

	var result []*Transaction
	for _, e := range entries {
		trans, ok := e.(*Transaction)
		if !ok {
			continue
		}
		if !from.IsZero() && trans.Date.Before(from) {
			continue
		}
		if !to.IsZero() && trans.Date.After(to) {
			continue
		}
		result = append(result, trans)
	}
	return result
}

// GetBalances returns the balance assertions dated on or before at, limited
// to account when it is not empty. Assertions without an amount are left out.
func GetBalances(entries []Entry, account string, at time.Time) []*Balance {
	var result []*Balance
	for _, e := range entries {
		bal, ok := e.(*Balance)
		if !ok || bal.Amount == nil {
			continue
		}
		if bal.Date.After(at) {
			continue
		}
		if account != "" && bal.Account != account {
			continue
		}
		result = append(result, bal)
	}
	return result
}

// ComputeNetWorth sums the balance assertions on or before at.
func ComputeNetWorth(entries []Entry, at time.Time) NetWorth {
	nw := NetWorth{Date: at}
	for _, bal := range GetBalances(entries, "", at) {
		switch AccountTypeOf(bal.Account) {
		case Assets:
			nw.TotalAssets = nw.TotalAssets.Add(bal.Amount.Number)
		case Liabilities:
			nw.TotalLiabilities = nw.TotalLiabilities.Add(bal.Amount.Number)
		}
	}
	nw.NetWorth = nw.TotalAssets.Sub(nw.TotalLiabilities)
	return nw
}

// ComputeIncomeStatement sums posting numbers of income and expense accounts
// over the transactions in the range. Signs are kept as written.
func ComputeIncomeStatement(entries []Entry, start, end time.Time) IncomeStatement {
	is := IncomeStatement{Start: start, End: end}
	for _, trans := range TransactionsInDateRange(entries, start, end) {
		for _, p := range trans.Postings {
			if p.Units == nil {
				continue
			}
			switch AccountTypeOf(p.Account) {
			case Income:
				is.TotalIncome = is.TotalIncome.Add(p.Units.Number)
			case Expenses:
				is.TotalExpenses = is.TotalExpenses.Add(p.Units.Number)
			}
		}
	}
	is.NetIncome = is.TotalIncome.Sub(is.TotalExpenses)
	return is
}

// ComputeBalanceSheet keys the latest assertion of every account on or before
// at by account name.
func ComputeBalanceSheet(entries []Entry, at time.Time) BalanceSheet {
	bs := BalanceSheet{
		Date:        at,
		Assets:      make(map[string]decimal.Decimal),
		Liabilities: make(map[string]decimal.Decimal),
		Equity:      make(map[string]decimal.Decimal),
	}
	latest := make(map[string]time.Time)
	for _, bal := range GetBalances(entries, "", at) {
		if seen, ok := latest[bal.Account]; ok && bal.Date.Before(seen) {
			continue
		}
		latest[bal.Account] = bal.Date
		switch AccountTypeOf(bal.Account) {
		case Assets:
			bs.Assets[bal.Account] = bal.Amount.Number
		case Liabilities:
			bs.Liabilities[bal.Account] = bal.Amount.Number
		case Equity:
			bs.Equity[bal.Account] = bal.Amount.Number
		}
	}
	return bs
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return startOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}
