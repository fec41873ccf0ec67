package ledger

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BalanceTolerance is the largest absolute posting sum still considered
// balanced.
var BalanceTolerance = decimal.New(1, -2)

// NewTransaction validates draft and returns a copy of it with an ID set.
// No value is returned when validation fails.
func NewTransaction(draft Transaction) (*Transaction, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}
	t := draft
	if t.ID == "" {
		t.ID = NewTransactionID()
	}
	t.Postings = append([]Posting(nil), draft.Postings...)
	return &t, nil
}

// NewTransactionID returns an id of the form txn_<unix-millis>_<random>.
func NewTransactionID() string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "txn_" + strconv.FormatInt(time.Now().UnixMilli(), 10) + "_" + random[:9]
}

// Residual is the plain sum of all posting numbers. Currencies are not
// grouped and postings without units count as zero.
func (t *Transaction) Residual() decimal.Decimal {
	sum := decimal.Zero
	for _, p := range t.Postings {
		if p.Units != nil {
			sum = sum.Add(p.Units.Number)
		}
	}
	return sum
}

// IsBalanced reports whether the residual is within BalanceTolerance.
func (t *Transaction) IsBalanced() bool {
	return t.Residual().Abs().LessThan(BalanceTolerance)
}

// Validate runs every transaction check and reports all failures together.
func (t *Transaction) Validate() error {
	var res validationResult
	if strings.TrimSpace(t.Narration) == "" {
		res.fail("narration is required")
	}
	checkLine(&res, "narration", t.Narration)
	checkLine(&res, "payee", t.Payee)
	checkLine(&res, "id", t.ID)
	if t.Date.IsZero() {
		res.fail("date is invalid")
	}
	checkMeta(&res, "", t.Meta)
	if len(t.Postings) == 0 {
		res.fail("at least one posting is required")
	}
	for i, p := range t.Postings {
		prefix := fmt.Sprintf("posting %d: ", i+1)
		if strings.TrimSpace(p.Account) == "" {
			res.fail(prefix + "account is required")
		} else if err := checkAccountName(p.Account); err != nil {
			res.fail(prefix + err.Error())
		}
		if p.Units != nil {
			if p.Units.Currency == "" {
				res.fail(prefix + "currency is required")
			} else if err := checkCurrency(p.Units.Currency); err != nil {
				res.fail(prefix + err.Error())
			}
		}
		if p.Price != nil {
			if p.Units == nil {
				res.fail(prefix + "price requires units")
			}
			if err := checkCurrency(p.Price.Currency); err != nil {
				res.fail(prefix + "price: " + err.Error())
			}
		}
		if p.Cost != "" && (p.Units == nil || strings.ContainsAny(p.Cost, "{};\"\r\n")) {
			res.fail(prefix + "invalid cost")
		}
		checkMeta(&res, prefix, p.Meta)
	}
	if len(t.Postings) > 0 && !t.IsBalanced() {
		res.fail(fmt.Sprintf("unbalanced postings: sum is %s", t.Residual().String()))
	}
	return res.err()
}

// checkLine rejects line breaks, which cannot be written inside a quoted
// string.
func checkLine(res *validationResult, field, value string) {
	if strings.ContainsAny(value, "\r\n") {
		res.fail(field + " must be a single line")
	}
}

// checkMeta rejects metadata that would not read back as the same key and
// value.
func checkMeta(res *validationResult, prefix string, meta Meta) {
	for _, key := range slices.Sorted(maps.Keys(meta)) {
		if !metaNameRE.MatchString(key) {
			res.fail(fmt.Sprintf("%smeta key %q is invalid", prefix, key))
		}
		checkLine(res, prefix+"meta "+key, meta[key])
	}
}
