package cmdparse

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	date "github.com/joyt/godate"
	"github.com/plenert/ledger"
	"github.com/shopspring/decimal"
)

// ErrMissingParam is returned by accessors for a required key that is absent.
var ErrMissingParam = errors.New("missing parameter")

// Params holds decoded values: string, bool, int, float64, []any or
// map[string]any.
type Params map[string]any

// String returns the value of key rendered as text.
func (p Params) String(key string) (string, bool) {
	v, ok := p[key]
	if !ok {
		return "", false
	}
	return toString(v), true
}

// Bool returns a boolean value, accepting only decoded booleans.
func (p Params) Bool(key string) (value, ok bool) {
	value, ok = p[key].(bool)
	return
}

// Date parses the value of key as a calendar day. ISO dates are tried first,
// then any layout godate recognizes. An absent key yields the zero time.
func (p Params) Date(key string) (time.Time, error) {
	s, ok := p.String(key)
	if !ok || s == "" {
		return time.Time{}, nil
	}
	return ParseDate(s)
}

// ParseDate parses s as a day at UTC midnight.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(ledger.DateLayout, s)
	if err != nil {
		t, _, err = date.ParseAndGetLayout(s)
		if err != nil {
			return time.Time{}, fmt.Errorf("unable to parse date(%s): %w", s, err)
		}
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
}

// Postings converts the list under key into postings. Elements may be
// objects {"account", "amount", "currency"} or strings "Account [amount
// [currency]]". Amounts without a currency get defaultCurrency.
func (p Params) Postings(key, defaultCurrency string) ([]ledger.Posting, error) {
	raw, ok := p[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingParam, key)
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%s: expected a list", key)
	}

	postings := make([]ledger.Posting, 0, len(list))
	for i, elem := range list {
		var (
			posting ledger.Posting
			err     error
		)
		switch elem := elem.(type) {
		case map[string]any:
			posting, err = postingFromObject(elem, defaultCurrency)
		case string:
			posting, err = postingFromString(elem, defaultCurrency)
		default:
			err = fmt.Errorf("unsupported value %v", elem)
		}
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", key, i, err)
		}
		postings = append(postings, posting)
	}
	return postings, nil
}

func postingFromObject(obj map[string]any, defaultCurrency string) (ledger.Posting, error) {
	posting := ledger.Posting{Account: toString(obj["account"])}
	amount, ok := obj["amount"]
	if !ok || amount == nil {
		return posting, nil
	}
	num, err := toDecimal(amount)
	if err != nil {
		return ledger.Posting{}, err
	}
	currency := toString(obj["currency"])
	if currency == "" {
		currency = defaultCurrency
	}
	posting.Units = &ledger.Amount{Number: num, Currency: currency}
	return posting, nil
}

func postingFromString(s, defaultCurrency string) (ledger.Posting, error) {
	fields := strings.Fields(strings.Trim(s, `"'`))
	if len(fields) == 0 || len(fields) > 3 {
		return ledger.Posting{}, fmt.Errorf("invalid posting %q", s)
	}
	posting := ledger.Posting{Account: fields[0]}
	if len(fields) == 1 {
		return posting, nil
	}
	num, err := toDecimal(fields[1])
	if err != nil {
		return ledger.Posting{}, err
	}
	currency := defaultCurrency
	if len(fields) == 3 {
		currency = fields[2]
	}
	posting.Units = &ledger.Amount{Number: num, Currency: currency}
	return posting, nil
}

// Transaction builds a transaction draft from the date, narration, payee
// and postings parameters. It is not validated.
func (p Params) Transaction(defaultCurrency string) (ledger.Transaction, error) {
	d, err := p.Date("date")
	if err != nil {
		return ledger.Transaction{}, err
	}
	postings, err := p.Postings("postings", defaultCurrency)
	if err != nil {
		return ledger.Transaction{}, err
	}
	narration, _ := p.String("narration")
	payee, _ := p.String("payee")
	id, _ := p.String("id")
	return ledger.Transaction{
		ID:        id,
		Date:      d,
		Payee:     payee,
		Narration: narration,
		Postings:  postings,
	}, nil
}

func toString(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func toDecimal(v any) (decimal.Decimal, error) {
	switch v := v.(type) {
	case int:
		return decimal.NewFromInt(int64(v)), nil
	case float64:
		return decimal.NewFromFloat(v), nil
	case string:
		d, err := decimal.NewFromString(strings.ReplaceAll(v, ",", ""))
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid amount %q", v)
		}
		return d, nil
	}
	return decimal.Zero, fmt.Errorf("invalid amount %v", v)
}
