package qif_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/plenert/ledger/ledger/qif"
)

const qifSample = "!Type:Cash\r\n" +
	"D08/14/2024\r\n" +
	"T15.00\r\n" +
	"MDeposit\r\n" +
	"LBank Deposit to PP Account \r\n" +
	"SBank Deposit to PP Account \r\n" +
	"$15.00\r\n" +
	"^\r\n" +
	"D08/14/2024\r\n" +
	"T-1,015.00\r\n" +
	"N1042\r\n" +
	"P9171-5573 Quebec Inc\r\n" +
	"MVOIPMS15\r\n" +
	"MSecond memo line\r\n" +
	"LPreApproved Payment Bill User Payment\r\n" +
	"SUtilities\r\n" +
	"EPhone\r\n" +
	"$-1,000.00\r\n" +
	"SFees\r\n" +
	"$-15.00\r\n" +
	"^\r\n" +
	"\r\n" +
	"!Type:Bank\r\n" +
	"D8/27'24\r\n" +
	"U80.00\r\n" +
	"^\r\n"

func TestParseQIF(t *testing.T) {
	entries, err := qif.ParseQIF(strings.NewReader(qifSample))
	if err != nil {
		t.Fatal(err)
	}

	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(entries))
	}

	tests := []struct {
		index  int
		typ    string
		line   int
		date   string
		amount string
		payee  string
		memo   string
		cat    string
		splits int
	}{
		{0, "Cash", 2, "08/14/2024", "15.00", "", "Deposit", "Bank Deposit to PP Account ", 1},
		{1, "Cash", 9, "08/14/2024", "-1,015.00", "9171-5573 Quebec Inc", "VOIPMS15\nSecond memo line", "PreApproved Payment Bill User Payment", 2},
		{2, "Bank", 24, "8/27'24", "80.00", "", "", "", 0},
	}

	for _, tt := range tests {
		e := entries[tt.index]

		if e.Type != tt.typ {
			t.Errorf("entry %d: expected Type %q, got %q", tt.index, tt.typ, e.Type)
		}
		if e.Line != tt.line {
			t.Errorf("entry %d: expected Line %d, got %d", tt.index, tt.line, e.Line)
		}
		if e.Date != tt.date {
			t.Errorf("entry %d: expected Date %q, got %q", tt.index, tt.date, e.Date)
		}
		if e.Amount != tt.amount {
			t.Errorf("entry %d: expected Amount %q, got %q", tt.index, tt.amount, e.Amount)
		}
		if e.Payee != tt.payee {
			t.Errorf("entry %d: expected Payee %q, got %q", tt.index, tt.payee, e.Payee)
		}
		if e.Memo != tt.memo {
			t.Errorf("entry %d: expected Memo %q, got %q", tt.index, tt.memo, e.Memo)
		}
		if e.Category != tt.cat {
			t.Errorf("entry %d: expected Category %q, got %q", tt.index, tt.cat, e.Category)
		}
		if len(e.Splits) != tt.splits {
			t.Errorf("entry %d: expected %d splits, got %d", tt.index, tt.splits, len(e.Splits))
		}
	}

	if s := entries[1].Splits[0]; s.Category != "Utilities" || s.Memo != "Phone" || s.Amount != "-1,000.00" {
		t.Errorf("unexpected split %+v", s)
	}
	if s := entries[1].Splits[1]; s.Category != "Fees" || s.Memo != "" || s.Amount != "-15.00" {
		t.Errorf("unexpected split %+v", s)
	}
}

func TestParseQIFUnterminated(t *testing.T) {
	_, err := qif.ParseQIF(strings.NewReader("!Type:Bank\nD01/02/2024\nT1.00\n"))
	if !errors.Is(err, qif.ErrUnterminated) {
		t.Fatalf("expected ErrUnterminated, got %v", err)
	}
}

func TestRecordTransaction(t *testing.T) {
	entries, err := qif.ParseQIF(strings.NewReader(qifSample))
	if err != nil {
		t.Fatal(err)
	}

	trans, err := entries[1].Transaction("Assets:Bank", "Expenses:Phone", "CAD")
	if err != nil {
		t.Fatal(err)
	}
	if want := time.Date(2024, 8, 14, 0, 0, 0, 0, time.UTC); !trans.Date.Equal(want) {
		t.Errorf("expected date %v, got %v", want, trans.Date)
	}
	if trans.Narration != "9171-5573 Quebec Inc" {
		t.Errorf("unexpected narration %q", trans.Narration)
	}
	if len(trans.Postings) != 2 {
		t.Fatalf("expected 2 postings, got %d", len(trans.Postings))
	}
	if got := trans.Postings[0].Units.Number.String(); got != "-1015" {
		t.Errorf("expected account amount -1015, got %s", got)
	}
	if got := trans.Postings[1].Units.Number.String(); got != "1015" {
		t.Errorf("expected counter amount 1015, got %s", got)
	}
	if trans.Postings[1].Account != "Expenses:Phone" || trans.Postings[1].Units.Currency != "CAD" {
		t.Errorf("unexpected counter posting %+v", trans.Postings[1])
	}
	if trans.Meta["qif-number"] != "1042" {
		t.Errorf("expected check number in meta, got %v", trans.Meta)
	}
	if !trans.IsBalanced() {
		t.Error("expected balanced transaction")
	}

	trans, err = entries[0].Transaction("Assets:Bank", "Income:Misc", "CAD")
	if err != nil {
		t.Fatal(err)
	}
	if trans.Narration != "Deposit" {
		t.Errorf("expected memo as narration, got %q", trans.Narration)
	}

	trans, err = entries[2].Transaction("Assets:Bank", "Income:Misc", "CAD")
	if err != nil {
		t.Fatal(err)
	}
	if want := time.Date(2024, 8, 27, 0, 0, 0, 0, time.UTC); !trans.Date.Equal(want) {
		t.Errorf("expected date %v, got %v", want, trans.Date)
	}
}

func TestRecordBadFields(t *testing.T) {
	rec := &qif.Record{Line: 7, Date: "someday", Amount: "1.00"}
	if _, err := rec.Transaction("Assets:Bank", "Expenses:X", "USD"); err == nil || !strings.Contains(err.Error(), "line 7") {
		t.Errorf("expected date error with line, got %v", err)
	}

	rec = &qif.Record{Line: 3, Date: "01/02/2024", Amount: "ten"}
	if _, err := rec.Transaction("Assets:Bank", "Expenses:X", "USD"); err == nil {
		t.Error("expected amount error")
	}
}
