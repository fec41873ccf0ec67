package ledger

import (
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testCase struct {
	name     string
	data     string
	entries  []string
	warnings []int
}

// describe renders entries in a compact form that ignores generated ids.
func describe(entries []Entry) []string {
	var out []string
	for _, e := range entries {
		switch e := e.(type) {
		case *Open:
			out = append(out, fmt.Sprintf("%s open %s %v", e.Date.Format(DateLayout), e.Account, e.Currencies))
		case *Close:
			out = append(out, fmt.Sprintf("%s close %s", e.Date.Format(DateLayout), e.Account))
		case *Balance:
			amt := "-"
			if e.Amount != nil {
				amt = e.Amount.Number.String() + " " + e.Amount.Currency
			}
			out = append(out, fmt.Sprintf("%s balance %s %s", e.Date.Format(DateLayout), e.Account, amt))
		case *Transaction:
			var postings []string
			for _, p := range e.Postings {
				s := p.Account
				if p.Units != nil {
					s += " " + p.Units.Number.String() + " " + p.Units.Currency
				}
				if p.Cost != "" {
					s += " {" + p.Cost + "}"
				}
				if p.Price != nil {
					s += " @ " + p.Price.Number.String() + " " + p.Price.Currency
				}
				postings = append(postings, s)
			}
			out = append(out, fmt.Sprintf("%s txn %q %q [%s]", e.Date.Format(DateLayout), e.Payee, e.Narration, strings.Join(postings, ", ")))
		}
	}
	return out
}

var testCases = []testCase{
	{
		"simple",
		`2024-01-01 open Assets:Cash USD
2024-01-01 open Expenses:Food

2024-01-02 * "Lunch"
  Expenses:Food    25.00 USD
  Assets:Cash     -25.00 USD

2024-01-31 balance Assets:Cash 975 USD
2024-02-01 close Expenses:Food
`,
		[]string{
			`2024-01-01 open Assets:Cash [USD]`,
			`2024-01-01 open Expenses:Food []`,
			`2024-01-02 txn "" "Lunch" [Expenses:Food 25 USD, Assets:Cash -25 USD]`,
			`2024-01-31 balance Assets:Cash 975 USD`,
			`2024-02-01 close Expenses:Food`,
		},
		nil,
	},
	{
		"payee and narration",
		`2024-03-05 * "Cafe" "Coffee with ; semicolon"
  Expenses:Coffee  4.5 USD ; a comment
  Assets:Cash
`,
		[]string{
			`2024-03-05 txn "Cafe" "Coffee with ; semicolon" [Expenses:Coffee 4.5 USD, Assets:Cash]`,
		},
		nil,
	},
	{
		"flags",
		`2024-03-05 ! "Pending"
  Expenses:Coffee  1 USD
  Assets:Cash     -1 USD

2024-03-06 txn "Plain"
  ! Expenses:Coffee  2 USD
  Assets:Cash       -2 USD
`,
		[]string{
			`2024-03-05 txn "" "Pending" [Expenses:Coffee 1 USD, Assets:Cash -1 USD]`,
			`2024-03-06 txn "" "Plain" [Expenses:Coffee 2 USD, Assets:Cash -2 USD]`,
		},
		nil,
	},
	{
		"bad date only skips that directive",
		`2024-02-30 open Assets:Bad
2024-02-01 open Assets:Good

2024-13-01 * "Never"
  Expenses:Food  1 USD
  Assets:Cash   -1 USD
`,
		[]string{`2024-02-01 open Assets:Good []`},
		[]int{1, 4},
	},
	{
		"expression amounts",
		`2024-01-01 * "Triple"
  Expenses:Test  (123 * 3) USD
  Assets:Cash    -369 USD
`,
		[]string{`2024-01-01 txn "" "Triple" [Expenses:Test 369 USD, Assets:Cash -369 USD]`},
		nil,
	},
	{
		"grouped numbers, cost and price",
		`2024-01-01 * "Buy"
  Assets:Broker     10 STOCK {100.00 USD} @ 101 USD
  Assets:Cash       -1,000.00 USD
  Assets:Wise:CZK   -2000.00 CZK @@ 1000 USD
`,
		[]string{`2024-01-01 txn "" "Buy" [Assets:Broker 10 STOCK {100.00 USD} @ 101 USD, Assets:Cash -1000 USD, Assets:Wise:CZK -2000 CZK @ 0.5 USD]`},
		nil,
	},
	{
		"malformed posting drops the transaction",
		`2024-01-01 * "Broken"
  Expenses:Food  abc USD
  Assets:Cash

2024-01-02 * "Fine"
  Expenses:Food  1 USD
  Assets:Cash   -1 USD
`,
		[]string{`2024-01-02 txn "" "Fine" [Expenses:Food 1 USD, Assets:Cash -1 USD]`},
		[]int{2},
	},
	{
		"unsupported and pass-through directives",
		`option "title" "Mine"
plugin "beancount.plugins.auto"
include "other.beancount"
2024-01-01 price USD 1.1 EUR
2024-01-01 commodity USD
2024-01-01 open Assets:Cash
`,
		[]string{`2024-01-01 open Assets:Cash []`},
		[]int{4, 5},
	},
	{
		"header problems",
		`2024-01-01 "No flag"
  Assets:Cash  1 USD
2024-01-01 * "Unterminated
2024-01-01 * "a" "b" "c"
2024-01-01 *
2024-01-01 open Cash
2024-01-01 balance Assets:Cash 10
2024-01-01 close Assets:Cash extra
  stray line
notadate open Assets:Cash
`,
		nil,
		[]int{1, 3, 4, 5, 6, 7, 8, 10},
	},
	{
		"orphan indented line",
		`  Assets:Cash  1 USD
2024-01-01 open Assets:Cash
`,
		[]string{`2024-01-01 open Assets:Cash []`},
		[]int{1},
	},
	{
		"crlf line endings",
		"2024-01-01 open Assets:Cash\r\n\r\n2024-01-02 * \"x\"\r\n  Assets:Cash  1 USD\r\n  Equity:Open  -1 USD\r\n",
		[]string{
			`2024-01-01 open Assets:Cash []`,
			`2024-01-02 txn "" "x" [Assets:Cash 1 USD, Equity:Open -1 USD]`,
		},
		nil,
	},
}

func TestParseLedger(t *testing.T) {
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			entries, warnings := ParseString(tc.data)
			assert.Equal(t, tc.entries, describe(entries))

			var lines []int
			for _, w := range warnings {
				lines = append(lines, w.Line)
			}
			assert.Equal(t, tc.warnings, lines, "warnings: %v", warnings)
		})
	}
}

func TestParseTagsAndLinksAreDropped(t *testing.T) {
	entries, warnings := ParseString(`2024-01-01 * "Trip" "Dinner" #travel ^invoice-1
  Expenses:Food  30 USD
  Assets:Cash   -30 USD
`)
	require.Empty(t, warnings)
	require.Len(t, entries, 1)

	trans := entries[0].(*Transaction)
	assert.Equal(t, "Trip", trans.Payee)
	assert.Equal(t, "Dinner", trans.Narration)
	assert.Empty(t, trans.Tags)
	assert.Empty(t, trans.Links)
}

func TestParseElidedAmount(t *testing.T) {
	entries, _ := ParseString(`2024-01-01 * "Lunch"
  Expenses:Food  25 USD
  Assets:Cash
`)
	require.Len(t, entries, 1)
	trans := entries[0].(*Transaction)
	require.Len(t, trans.Postings, 2)
	assert.NotNil(t, trans.Postings[0].Units)
	assert.Nil(t, trans.Postings[1].Units)
	assert.False(t, trans.IsBalanced())
}

func TestParseMetadata(t *testing.T) {
	entries, warnings := ParseString(`2024-01-01 open Assets:Cash
  description: "Wallet"

2024-01-02 * "Lunch"
  id: "txn_1_abc"
  receipt: scan-1.pdf
  Expenses:Food  25 USD
    category: "meal"
  Assets:Cash   -25 USD
`)
	require.Empty(t, warnings)
	require.Len(t, entries, 2)

	open := entries[0].(*Open)
	assert.Equal(t, Meta{"description": "Wallet"}, open.Meta)

	trans := entries[1].(*Transaction)
	assert.Equal(t, "txn_1_abc", trans.ID)
	assert.Equal(t, "scan-1.pdf", trans.Meta["receipt"])
	assert.Equal(t, Meta{"category": "meal"}, trans.Postings[0].Meta)
	assert.Nil(t, trans.Postings[1].Meta)
}

func TestParseAssignsIDs(t *testing.T) {
	entries, _ := ParseString(`2024-01-01 * "a"
  Assets:Cash  1 USD
  Equity:Open -1 USD

2024-01-01 * "b"
  Assets:Cash  1 USD
  Equity:Open -1 USD
`)
	require.Len(t, entries, 2)
	a, b := entries[0].(*Transaction), entries[1].(*Transaction)
	assert.True(t, strings.HasPrefix(a.ID, "txn_"))
	assert.NotEqual(t, a.ID, b.ID)
}

func TestParsePosting(t *testing.T) {
	p := func(d decimal.Decimal, cur string) *Amount { return &Amount{Number: d, Currency: cur} }
	tests := []struct {
		name    string
		line    string
		want    Posting
		wantErr bool
	}{
		{"elided", "Assets:Cash", Posting{Account: "Assets:Cash"}, false},
		{"amount", "Expenses:Food    -12.50 EUR", Posting{Account: "Expenses:Food", Units: p(decimal.RequireFromString("-12.50"), "EUR")}, false},
		{"tab separated", "Expenses:Food\t7 EUR", Posting{Account: "Expenses:Food", Units: p(decimal.NewFromInt(7), "EUR")}, false},
		{"unicode account", "Expenses:餐饮  25 CNY", Posting{Account: "Expenses:餐饮", Units: p(decimal.NewFromInt(25), "CNY")}, false},
		{"missing currency", "Expenses:Food  7", Posting{}, true},
		{"no colon", "Food  7 USD", Posting{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parsePosting(tt.line)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.Account, got.Account)
			if tt.want.Units == nil {
				assert.Nil(t, got.Units)
				return
			}
			require.NotNil(t, got.Units)
			assert.True(t, tt.want.Units.Number.Equal(got.Units.Number), "got %s", got.Units.Number)
			assert.Equal(t, tt.want.Units.Currency, got.Units.Currency)
		})
	}
}

func TestParseEscapedStrings(t *testing.T) {
	entries, warnings := ParseString(`2024-01-02 * "Joe \"J\"" "rent; C:\\tmp\x" ; paid in cash
  note: "a \"quoted\" ; value"
  Expenses:Rent   5 USD
  Assets:Cash    -5 USD
`)
	require.Empty(t, warnings)
	require.Len(t, entries, 1)
	trans := entries[0].(*Transaction)
	assert.Equal(t, `Joe "J"`, trans.Payee)
	assert.Equal(t, `rent; C:\tmp\x`, trans.Narration)
	assert.Equal(t, `a "quoted" ; value`, trans.Meta["note"])

	_, warnings = ParseString(`2024-01-02 * "open \"
  Expenses:Rent   5 USD
  Assets:Cash    -5 USD
`)
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "unterminated string")
}
