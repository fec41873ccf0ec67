package iif

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/plenert/ledger"
	"github.com/shopspring/decimal"
)

// Transaction is a TRNS row with its SPL rows.
type Transaction struct {
	Tr     Trns  `type:"TRNS"`
	Splits []Spl `type:"SPL"`
}

type Trns struct {
	TransactionType string          `iif:"TRNSTYPE"`
	Date            time.Time       `iif:"DATE"`
	Account         string          `iif:"ACCNT"`
	Name            string          `iif:"NAME"`
	Amount          decimal.Decimal `iif:"AMOUNT"`
	DocNum          string          `iif:"DOCNUM"`
	Memo            string          `iif:"MEMO"`
}

type Spl struct {
	Account string          `iif:"ACCNT"`
	Name    string          `iif:"NAME"`
	Amount  decimal.Decimal `iif:"AMOUNT"`
	Memo    string          `iif:"MEMO"`
}

// DeserializeTransactions maps every record group of b onto a Transaction.
func DeserializeTransactions(b Block) ([]Transaction, error) {
	var out []Transaction
	for i, group := range b.Records {
		var tx Transaction
		for _, r := range group {
			if err := applyRecord(&tx, r); err != nil {
				return nil, fmt.Errorf("iif: transaction %d: %w", i+1, err)
			}
		}
		out = append(out, tx)
	}
	return out, nil
}

// applyRecord stores r in the field of tx whose type tag matches r.Type.
func applyRecord(tx any, r Record) error {
	txVal := reflect.ValueOf(tx).Elem()
	txType := txVal.Type()

	for i := 0; i < txType.NumField(); i++ {
		if txType.Field(i).Tag.Get("type") != string(r.Type) {
			continue
		}
		fv := txVal.Field(i)
		switch fv.Kind() {
		case reflect.Slice:
			elem := reflect.New(fv.Type().Elem()).Elem()
			if err := populateStructFromRecord(elem, r); err != nil {
				return err
			}
			fv.Set(reflect.Append(fv, elem))
		case reflect.Struct:
			return populateStructFromRecord(fv, r)
		}
		return nil
	}
	return nil
}

func populateStructFromRecord(v reflect.Value, r Record) error {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag := sf.Tag.Get("iif")
		raw, ok := r.Fields[tag]
		if tag == "" || !ok {
			continue
		}
		if err := setFieldValueFromString(v.Field(i), strings.TrimSpace(raw)); err != nil {
			return fmt.Errorf("field %s: %w", tag, err)
		}
	}
	return nil
}

var dateLayouts = []string{"1/2/2006", "1/2/06", ledger.DateLayout}

func setFieldValueFromString(fv reflect.Value, s string) error {
	switch fv.Interface().(type) {
	case string:
		fv.SetString(s)
	case time.Time:
		if s == "" {
			return nil
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				fv.Set(reflect.ValueOf(t))
				return nil
			}
		}
		return fmt.Errorf("unable to parse date(%s)", s)
	case decimal.Decimal:
		d := decimal.Zero
		if s != "" {
			var err error
			if d, err = decimal.NewFromString(strings.ReplaceAll(s, ",", "")); err != nil {
				return err
			}
		}
		fv.Set(reflect.ValueOf(d))
	default:
		return fmt.Errorf("unsupported type %s", fv.Type())
	}
	return nil
}

// Description is the narration of the transaction: name, else memo, else
// the transaction type.
func (tx Transaction) Description() string {
	for _, s := range []string{tx.Tr.Name, tx.Tr.Memo, tx.Tr.TransactionType} {
		if s != "" {
			return s
		}
	}
	return ""
}

// Ledger converts tx into a transaction draft. The TRNS amount is booked on
// account; each split is booked on the account counter returns for it.
func (tx Transaction) Ledger(account, currency string, counter func(Spl) string) ledger.Transaction {
	trans := ledger.Transaction{
		Date:      tx.Tr.Date,
		Narration: tx.Description(),
		Postings: []ledger.Posting{
			{Account: account, Units: &ledger.Amount{Number: tx.Tr.Amount, Currency: currency}},
		},
	}
	for _, spl := range tx.Splits {
		trans.Postings = append(trans.Postings, ledger.Posting{
			Account: counter(spl),
			Units:   &ledger.Amount{Number: spl.Amount, Currency: currency},
		})
	}
	if tx.Tr.DocNum != "" {
		trans.Meta = ledger.Meta{"iif-docnum": tx.Tr.DocNum}
	}
	return trans
}
