// Package qif decodes non-investment QIF exports into ledger transactions.
package qif

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	date "github.com/joyt/godate"
	"github.com/plenert/ledger"
	"github.com/shopspring/decimal"
)

// ErrUnterminated is returned when the input ends inside a record.
var ErrUnterminated = errors.New("unexpected EOF while reading record")

// Split is one S/E/$ group of a split record.
type Split struct {
	Category string
	Memo     string
	Amount   string
}

// Record is a single non-investment QIF record.
type Record struct {
	Type     string // from the last "!Type:" header
	Line     int    // line of the D field
	Date     string
	Amount   string
	Number   string
	Payee    string
	Memo     string
	Address  string
	Cleared  string
	Category string
	Splits   []Split
}

// Decoder reads QIF records from an input stream.
type Decoder struct {
	r        *bufio.Reader
	line     int
	typeName string
}

// NewDecoder returns a new QIF decoder that reads from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: bufio.NewReader(r)}
}

// Next returns the next record, or io.EOF when the input is exhausted.
// Lines outside records other than type headers are skipped.
func (d *Decoder) Next() (*Record, error) {
	for {
		line, err := d.readLine()
		if err != nil {
			return nil, err
		}
		switch {
		case line == "":
		case strings.HasPrefix(line, "!Type:"):
			d.typeName = strings.TrimSpace(line[len("!Type:"):])
		case line[0] == 'D':
			return d.decodeRecord(line)
		}
	}
}

// Decode reads every remaining record.
func (d *Decoder) Decode() ([]*Record, error) {
	var records []*Record
	for {
		rec, err := d.Next()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
}

func (d *Decoder) decodeRecord(first string) (*Record, error) {
	rec := &Record{Type: d.typeName, Line: d.line}
	rec.assign(first)
	for {
		line, err := d.readLine()
		if err == io.EOF {
			return nil, fmt.Errorf("line %d: %w", rec.Line, ErrUnterminated)
		}
		if err != nil {
			return nil, err
		}
		if line == "" {
			continue
		}
		if line[0] == '^' {
			return rec, nil
		}
		rec.assign(line)
	}
}

func (rec *Record) assign(line string) {
	value := line[1:]
	switch line[0] {
	case 'D':
		rec.Date = strings.TrimSpace(value)
	case 'T', 'U':
		rec.Amount = strings.TrimSpace(value)
	case 'N':
		rec.Number = value
	case 'P':
		rec.Payee = value
	case 'M':
		rec.Memo = joinLine(rec.Memo, value)
	case 'A':
		rec.Address = joinLine(rec.Address, value)
	case 'C':
		rec.Cleared = value
	case 'L':
		rec.Category = value
	case 'S':
		rec.Splits = append(rec.Splits, Split{Category: value})
	case 'E':
		if n := len(rec.Splits); n > 0 {
			rec.Splits[n-1].Memo = value
		}
	case '$':
		if n := len(rec.Splits); n > 0 {
			rec.Splits[n-1].Amount = strings.TrimSpace(value)
		}
	}
}

func joinLine(existing, value string) string {
	if existing == "" {
		return value
	}
	return existing + "\n" + value
}

// readLine reads one line without its terminator.
func (d *Decoder) readLine() (string, error) {
	line, err := d.r.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	if err == io.EOF && line == "" {
		return "", io.EOF
	}
	d.line++
	return strings.TrimRight(line, "\r\n"), nil
}

// ParseQIF parses all records from a QIF stream.
func ParseQIF(r io.Reader) ([]*Record, error) {
	return NewDecoder(r).Decode()
}

var dateLayouts = []string{"01/02/2006", "1/2/2006", "01/02'06", "1/2'06", "01-02-2006", ledger.DateLayout}

// Time parses the record date. US month-first layouts are tried before
// anything godate can sniff.
func (rec *Record) Time() (time.Time, error) {
	s := strings.ReplaceAll(rec.Date, "' ", "'")
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	t, _, err := date.ParseAndGetLayout(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("line %d: unable to parse date(%s)", rec.Line, rec.Date)
	}
	y, m, dd := t.Date()
	return time.Date(y, m, dd, 0, 0, 0, 0, time.UTC), nil
}

// Value parses the record amount; thousands separators are ignored.
func (rec *Record) Value() (decimal.Decimal, error) {
	v, err := decimal.NewFromString(strings.ReplaceAll(rec.Amount, ",", ""))
	if err != nil {
		return decimal.Zero, fmt.Errorf("line %d: unable to parse amount(%s)", rec.Line, rec.Amount)
	}
	return v, nil
}

// Description is the text used as narration: payee, else memo, else
// category.
func (rec *Record) Description() string {
	for _, s := range []string{rec.Payee, rec.Memo, rec.Category} {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}

// Transaction converts the record into a two-posting transaction draft.
// The record amount lands on account and its negation on counter.
func (rec *Record) Transaction(account, counter, currency string) (ledger.Transaction, error) {
	when, err := rec.Time()
	if err != nil {
		return ledger.Transaction{}, err
	}
	amount, err := rec.Value()
	if err != nil {
		return ledger.Transaction{}, err
	}
	trans := ledger.Transaction{
		Date:      when,
		Narration: rec.Description(),
		Postings: []ledger.Posting{
			{Account: account, Units: &ledger.Amount{Number: amount, Currency: currency}},
			{Account: counter, Units: &ledger.Amount{Number: amount.Neg(), Currency: currency}},
		},
	}
	if rec.Number != "" {
		trans.Meta = ledger.Meta{"qif-number": rec.Number}
	}
	return trans, nil
}
