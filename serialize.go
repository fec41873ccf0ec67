package ledger

import (
	"io"
	"maps"
	"slices"
	"strings"
	"unicode/utf8"
)

// AccountColumnWidth is the width posting accounts are padded to.
const AccountColumnWidth = 40

const newLine = "\n"

var spaceStr = strings.Repeat(" ", AccountColumnWidth+2)

// Serialize renders entries as ledger text. Parsing the result yields the same
// directives and metadata; tags and links are not written.
func Serialize(entries []Entry) string {
	var sb strings.Builder
	WriteEntries(&sb, entries)
	return sb.String()
}

// WriteEntries writes entries to w, each followed by one blank line.
func WriteEntries(w io.StringWriter, entries []Entry) {
	for _, e := range entries {
		WriteEntry(w, e)
		w.WriteString(newLine)
	}
}

// WriteEntry writes the directive lines of a single entry. A balance without
// an amount produces no output.
func WriteEntry(w io.StringWriter, e Entry) {
	switch e := e.(type) {
	case *Transaction:
		WriteTransaction(w, e)
	case *Open:
		w.WriteString(e.Date.Format(DateLayout))
		w.WriteString(" open ")
		w.WriteString(e.Account)
		if len(e.Currencies) > 0 {
			w.WriteString(spaceStr[:1])
			w.WriteString(strings.Join(e.Currencies, ","))
		}
		if e.Booking != "" {
			w.WriteString(spaceStr[:1])
			w.WriteString(quote(e.Booking))
		}
		w.WriteString(newLine)
		writeMeta(w, e.Meta, 2)
	case *Close:
		w.WriteString(e.Date.Format(DateLayout))
		w.WriteString(" close ")
		w.WriteString(e.Account)
		w.WriteString(newLine)
		writeMeta(w, e.Meta, 2)
	case *Balance:
		if e.Amount == nil {
			return
		}
		w.WriteString(e.Date.Format(DateLayout))
		w.WriteString(" balance ")
		w.WriteString(e.Account)
		w.WriteString(spaceStr[:1])
		w.WriteString(formatAmount(*e.Amount))
		w.WriteString(newLine)
		writeMeta(w, e.Meta, 2)
	}
}

// WriteTransaction writes the header line, the id and metadata lines, and
// one line per posting followed by its metadata.
func WriteTransaction(w io.StringWriter, trans *Transaction) {
	w.WriteString(trans.Date.Format(DateLayout))
	w.WriteString(" * ")
	if trans.Payee != "" {
		w.WriteString(quote(trans.Payee))
		w.WriteString(spaceStr[:1])
	}
	w.WriteString(quote(trans.Narration))
	w.WriteString(newLine)
	if trans.ID != "" {
		writeMetaLine(w, "id", trans.ID, 2)
	}
	for _, key := range slices.Sorted(maps.Keys(trans.Meta)) {
		if key != "id" || trans.ID == "" {
			writeMetaLine(w, key, trans.Meta[key], 2)
		}
	}

	for _, p := range trans.Postings {
		w.WriteString(spaceStr[:2])
		w.WriteString(p.Account)
		if p.Units != nil {
			spaceCount := AccountColumnWidth - utf8.RuneCountInString(p.Account)
			if spaceCount < 2 {
				spaceCount = 2
			}
			w.WriteString(spaceStr[:spaceCount])
			w.WriteString(formatAmount(*p.Units))
			if p.Cost != "" {
				w.WriteString(" {")
				w.WriteString(p.Cost)
				w.WriteString("}")
			}
			if p.Price != nil {
				w.WriteString(" @ ")
				w.WriteString(formatAmount(*p.Price))
			}
		}
		w.WriteString(newLine)
		writeMeta(w, p.Meta, 4)
	}
}

// writeMeta writes one indented key: "value" line per entry, sorted by key.
func writeMeta(w io.StringWriter, meta Meta, indent int) {
	for _, key := range slices.Sorted(maps.Keys(meta)) {
		writeMetaLine(w, key, meta[key], indent)
	}
}

func writeMetaLine(w io.StringWriter, key, value string, indent int) {
	w.WriteString(spaceStr[:indent])
	w.WriteString(key)
	w.WriteString(": ")
	w.WriteString(quote(value))
	w.WriteString(newLine)
}

func formatAmount(a Amount) string {
	return a.Number.String() + " " + a.Currency
}

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// quote wraps s in double quotes, escaping backslashes and quotes.
func quote(s string) string {
	return `"` + quoteEscaper.Replace(s) + `"`
}
