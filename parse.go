package ledger

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/alfredxing/calc/compute"
	"github.com/shopspring/decimal"
)

// Parse reads a ledger from r. The returned error is only set when reading
// fails; malformed directives are reported as warnings and skipped.
func Parse(r io.Reader) ([]Entry, []Warning, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, err
	}
	entries, warnings := ParseString(string(data))
	return entries, warnings, nil
}

// ParseString parses ledger text into entries in file order.
func ParseString(text string) ([]Entry, []Warning) {
	lp := parser{scanner: newLineScanner(text)}
	lp.run()
	return lp.entries, lp.warnings
}

// directives that are accepted and ignored
var passThrough = map[string]bool{
	"option":   true,
	"plugin":   true,
	"include":  true,
	"pushtag":  true,
	"poptag":   true,
	"pushmeta": true,
	"popmeta":  true,
}

type parser struct {
	scanner  *lineScanner
	entries  []Entry
	warnings []Warning
}

func (lp *parser) warn(line int, format string, args ...any) {
	lp.warnings = append(lp.warnings, Warning{Line: line, Message: fmt.Sprintf(format, args...)})
}

func (lp *parser) run() {
	for lp.scanner.Scan() {
		raw := lp.scanner.Text()
		line := strings.TrimSpace(stripComment(raw))
		if line == "" {
			continue
		}
		headerLine := lp.scanner.LineNumber()

		if startsIndented(raw) {
			lp.warn(headerLine, "unexpected indented line: %s", line)
			continue
		}

		body := lp.readBody()

		before, after := cutField(line)
		if passThrough[before] {
			continue
		}

		transDate, err := time.Parse(DateLayout, before)
		if err != nil {
			lp.warn(headerLine, "unable to parse date(%s)", before)
			continue
		}

		entry, err := lp.parseDirective(transDate, after, body)
		if err != nil {
			var le *lineError
			if errors.As(err, &le) {
				lp.warn(le.line, "%v", le.err)
			} else {
				lp.warn(headerLine, "%v", err)
			}
			continue
		}
		lp.entries = append(lp.entries, entry)
	}
}

// bodyLine is an indented line following a directive header.
type bodyLine struct {
	number int
	indent int
	text   string
}

// readBody consumes the indented lines belonging to the current directive.
func (lp *parser) readBody() []bodyLine {
	var body []bodyLine
	for lp.scanner.Scan() {
		raw := lp.scanner.Text()
		if !startsIndented(raw) {
			lp.scanner.Unscan()
			break
		}
		text := strings.TrimSpace(stripComment(raw))
		if text == "" {
			continue
		}
		body = append(body, bodyLine{
			number: lp.scanner.LineNumber(),
			indent: len(raw) - len(strings.TrimLeftFunc(raw, unicode.IsSpace)),
			text:   text,
		})
	}
	return body
}

func (lp *parser) parseDirective(date time.Time, rest string, body []bodyLine) (Entry, error) {
	keyword, args := cutField(rest)
	switch keyword {
	case "open":
		return parseOpen(date, args, body)
	case "close":
		return parseClose(date, args, body)
	case "balance":
		return parseBalance(date, args, body)
	case "*", "!", "txn":
		return parseTransaction(date, args, body)
	case "":
		return nil, errors.New("missing directive")
	}
	if strings.HasPrefix(keyword, `"`) {
		return nil, fmt.Errorf("missing transaction flag before %s", keyword)
	}
	return nil, fmt.Errorf("unsupported directive %q", keyword)
}

func parseOpen(date time.Time, args string, body []bodyLine) (Entry, error) {
	toks, err := tokenize(args)
	if err != nil {
		return nil, err
	}
	if len(toks) == 0 {
		return nil, errors.New("open: missing account")
	}
	if err := checkAccountName(toks[0].text); err != nil {
		return nil, err
	}
	open := &Open{Date: date, Account: toks[0].text}
	for _, tok := range toks[1:] {
		if tok.quoted {
			open.Booking = tok.text
			continue
		}
		for _, cur := range strings.Split(tok.text, ",") {
			if cur = strings.TrimSpace(cur); cur != "" {
				open.Currencies = append(open.Currencies, cur)
			}
		}
	}
	open.Meta, err = parseMetaLines(body)
	if err != nil {
		return nil, err
	}
	return open, nil
}

func parseClose(date time.Time, args string, body []bodyLine) (Entry, error) {
	fields := strings.Fields(args)
	if len(fields) != 1 {
		return nil, fmt.Errorf("close: expected one account, got %q", args)
	}
	if err := checkAccountName(fields[0]); err != nil {
		return nil, err
	}
	meta, err := parseMetaLines(body)
	if err != nil {
		return nil, err
	}
	return &Close{Date: date, Account: fields[0], Meta: meta}, nil
}

func parseBalance(date time.Time, args string, body []bodyLine) (Entry, error) {
	fields := strings.Fields(args)
	if len(fields) < 3 {
		return nil, fmt.Errorf("balance: expected account, number and currency, got %q", args)
	}
	if err := checkAccountName(fields[0]); err != nil {
		return nil, err
	}
	// the number may be an expression containing spaces
	number := strings.Join(fields[1:len(fields)-1], " ")
	num, err := parseNumber(number)
	if err != nil {
		return nil, fmt.Errorf("balance: %w", err)
	}
	meta, err := parseMetaLines(body)
	if err != nil {
		return nil, err
	}
	return &Balance{
		Date:    date,
		Account: fields[0],
		Amount:  &Amount{Number: num, Currency: fields[len(fields)-1]},
		Meta:    meta,
	}, nil
}

func parseTransaction(date time.Time, args string, body []bodyLine) (Entry, error) {
	toks, err := tokenize(args)
	if err != nil {
		return nil, err
	}
	var strs []string
	for _, tok := range toks {
		switch {
		case tok.quoted:
			if len(strs) == 2 {
				return nil, errors.New("too many strings on transaction line")
			}
			strs = append(strs, tok.text)
		case strings.HasPrefix(tok.text, "#") && len(tok.text) > 1:
			// tags are recognized but not kept on the transaction
		case strings.HasPrefix(tok.text, "^") && len(tok.text) > 1:
			// links likewise
		default:
			return nil, fmt.Errorf("unexpected token %q on transaction line", tok.text)
		}
	}

	trans := &Transaction{Date: date}
	switch len(strs) {
	case 0:
		return nil, errors.New("transaction is missing a narration")
	case 1:
		trans.Narration = strs[0]
	case 2:
		trans.Payee = strs[0]
		trans.Narration = strs[1]
	}

	postingIndent := -1
	for _, bl := range body {
		if key, value, ok := parseMetaLine(bl.text); ok {
			if len(trans.Postings) > 0 && bl.indent > postingIndent {
				last := &trans.Postings[len(trans.Postings)-1]
				if last.Meta == nil {
					last.Meta = Meta{}
				}
				last.Meta[key] = value
				continue
			}
			if trans.Meta == nil {
				trans.Meta = Meta{}
			}
			trans.Meta[key] = value
			continue
		}

		posting, err := parsePosting(bl.text)
		if err != nil {
			return nil, &lineError{line: bl.number, err: err}
		}
		trans.Postings = append(trans.Postings, posting)
		postingIndent = bl.indent
	}

	if id, ok := trans.Meta["id"]; ok {
		trans.ID = id
		delete(trans.Meta, "id")
		if len(trans.Meta) == 0 {
			trans.Meta = nil
		}
	}
	if trans.ID == "" {
		trans.ID = NewTransactionID()
	}
	return trans, nil
}

// Regex groups:
// 1: account name
// 2: amount (number or parenthesized expression)
// 3: currency
// 4: cost between braces
// 5: @ or @@
// 6: price number
// 7: price currency
var postingRE = regexp.MustCompile(
	`^([^\s"]+)` +
		`(?:\s+(\([0-9+\-*/., ]+\)|[-+]?[0-9][0-9,]*(?:\.[0-9]*)?|[-+]?\.[0-9]+)` +
		`\s*([A-Z][A-Z0-9'._-]*)` +
		`(?:\s*\{([^}]*)\})?` +
		`(?:\s*(@@?)\s*([-+]?[0-9][0-9,]*(?:\.[0-9]*)?)\s*([A-Z][A-Z0-9'._-]*))?)?\s*$`,
)

func parsePosting(line string) (Posting, error) {
	// an optional posting flag
	if len(line) > 2 && (line[0] == '*' || line[0] == '!') && line[1] == ' ' {
		line = strings.TrimSpace(line[2:])
	}

	m := postingRE.FindStringSubmatch(line)
	if m == nil {
		return Posting{}, fmt.Errorf("invalid posting: %q", line)
	}
	if err := checkAccountName(m[1]); err != nil {
		return Posting{}, err
	}

	p := Posting{Account: m[1], Cost: strings.TrimSpace(m[4])}
	if m[2] != "" {
		num, err := parseNumber(m[2])
		if err != nil {
			return Posting{}, err
		}
		p.Units = &Amount{Number: num, Currency: m[3]}
	}
	if m[5] != "" {
		price, err := parseNumber(m[6])
		if err != nil {
			return Posting{}, err
		}
		if m[5] == "@@" {
			if p.Units.Number.IsZero() {
				return Posting{}, fmt.Errorf("total price on zero units: %q", line)
			}
			price = price.Div(p.Units.Number.Abs())
		}
		p.Price = &Amount{Number: price, Currency: m[7]}
	}
	return p, nil
}

// parseNumber accepts decimal literals with grouping commas and parenthesized
// arithmetic.
func parseNumber(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "(") {
		val, err := compute.Evaluate(s)
		if err != nil {
			return decimal.Zero, fmt.Errorf("unable to evaluate %s: %w", s, err)
		}
		return decimal.NewFromFloat(val), nil
	}
	num, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid number %q", s)
	}
	return num, nil
}

var metaKeyRE = regexp.MustCompile(`^([a-z][A-Za-z0-9_-]*):(?:\s+(.*))?$`)

var metaNameRE = regexp.MustCompile(`^[a-z][A-Za-z0-9_-]*$`)

func parseMetaLine(text string) (key, value string, ok bool) {
	m := metaKeyRE.FindStringSubmatch(text)
	if m == nil {
		return "", "", false
	}
	value = strings.TrimSpace(m[2])
	if strings.HasPrefix(value, `"`) {
		if text, rest, err := readQuoted(value); err == nil && strings.TrimSpace(rest) == "" {
			value = text
		}
	}
	return m[1], value, true
}

func parseMetaLines(body []bodyLine) (Meta, error) {
	var meta Meta
	for _, bl := range body {
		key, value, ok := parseMetaLine(bl.text)
		if !ok {
			return nil, &lineError{line: bl.number, err: fmt.Errorf("unexpected line: %s", bl.text)}
		}
		if meta == nil {
			meta = Meta{}
		}
		meta[key] = value
	}
	return meta, nil
}

func checkAccountName(name string) error {
	if !strings.Contains(name, ":") || strings.HasPrefix(name, ":") || strings.HasSuffix(name, ":") ||
		strings.ContainsAny(name, `"{}@;`) || strings.IndexFunc(name, unicode.IsSpace) >= 0 {
		return fmt.Errorf("invalid account name %q", name)
	}
	return nil
}

var currencyRE = regexp.MustCompile(`^[A-Z][A-Z0-9'._-]*$`)

func checkCurrency(cur string) error {
	if !currencyRE.MatchString(cur) {
		return fmt.Errorf("invalid currency %q", cur)
	}
	return nil
}

type token struct {
	text   string
	quoted bool
}

// readQuoted reads the double-quoted string s starts with and returns its
// unescaped text and what follows the closing quote. Only \" and \\ are
// escapes; any other backslash is kept as written.
func readQuoted(s string) (text, rest string, err error) {
	var sb strings.Builder
	for i := 1; i < len(s); i++ {
		switch c := s[i]; c {
		case '"':
			return sb.String(), s[i+1:], nil
		case '\\':
			if i+1 < len(s) && (s[i+1] == '"' || s[i+1] == '\\') {
				i++
				sb.WriteByte(s[i])
				continue
			}
			sb.WriteByte(c)
		default:
			sb.WriteByte(c)
		}
	}
	return "", "", errors.New("unterminated string")
}

// tokenize splits on whitespace, keeping double-quoted strings whole.
func tokenize(s string) ([]token, error) {
	var toks []token
	for {
		s = strings.TrimLeftFunc(s, unicode.IsSpace)
		if s == "" {
			return toks, nil
		}
		if s[0] == '"' {
			text, rest, err := readQuoted(s)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{text: text, quoted: true})
			s = rest
			continue
		}
		end := strings.IndexFunc(s, unicode.IsSpace)
		if end < 0 {
			end = len(s)
		}
		toks = append(toks, token{text: s[:end]})
		s = s[end:]
	}
}

// stripComment removes a ';' comment that is not inside a string.
func stripComment(line string) string {
	inQuote := false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '\\':
			if inQuote {
				i++
			}
		case '"':
			inQuote = !inQuote
		case ';':
			if !inQuote {
				return line[:i]
			}
		}
	}
	return line
}

// cutField splits off the first whitespace-delimited field.
func cutField(s string) (first, rest string) {
	s = strings.TrimSpace(s)
	end := strings.IndexFunc(s, unicode.IsSpace)
	if end < 0 {
		return s, ""
	}
	return s[:end], strings.TrimSpace(s[end:])
}

func startsIndented(line string) bool {
	return line != "" && (line[0] == ' ' || line[0] == '\t')
}

// lineError pins an error to a line other than the directive header.
type lineError struct {
	line int
	err  error
}

func (e *lineError) Error() string { return e.err.Error() }

type lineScanner struct {
	lines []string
	pos   int
}

func newLineScanner(text string) *lineScanner {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return &lineScanner{lines: strings.Split(text, "\n")}
}

func (s *lineScanner) Scan() bool {
	if s.pos >= len(s.lines) {
		return false
	}
	s.pos++
	return true
}

func (s *lineScanner) Unscan() {
	if s.pos > 0 {
		s.pos--
	}
}

func (s *lineScanner) Text() string { return s.lines[s.pos-1] }

// LineNumber is the 1-based number of the current line.
func (s *lineScanner) LineNumber() int { return s.pos }
