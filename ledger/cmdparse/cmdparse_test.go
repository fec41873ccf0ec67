package cmdparse

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Command
	}{
		{"bare command", "/help", Command{Name: "help", Params: Params{}}},
		{"no slash and case", "  STATS  ", Command{Name: "stats", Params: Params{}}},
		{"empty", "", Command{Name: "", Params: Params{}}},
		{
			"scalars",
			`/balances account=Assets:Cash date=2024-01-31 limit=10 ratio=-0.5 half=.5 flag=TRUE off=false`,
			Command{Name: "balances", Params: Params{
				"account": "Assets:Cash",
				"date":    "2024-01-31",
				"limit":   10,
				"ratio":   -0.5,
				"half":    0.5,
				"flag":    true,
				"off":     false,
			}},
		},
		{
			"quoted values keep spaces",
			`/add narration="Lunch with  friends" payee='Joe''s' note="a=b"`,
			Command{Name: "add", Params: Params{
				"narration": "Lunch with  friends",
				"payee":     "Joe''s",
				"note":      "a=b",
			}},
		},
		{
			"quoted number stays text",
			`/x code="007"`,
			Command{Name: "x", Params: Params{"code": "007"}},
		},
		{
			"tokens without equals are ignored",
			`/x stray =nokey k=v`,
			Command{Name: "x", Params: Params{"k": "v"}},
		},
		{
			"json object",
			`/x meta={"a":1,"b":"two"}`,
			Command{Name: "x", Params: Params{"meta": map[string]any{"a": float64(1), "b": "two"}}},
		},
		{
			"invalid object stays raw",
			`/x meta={a:1}`,
			Command{Name: "x", Params: Params{"meta": "{a:1}"}},
		},
		{
			"permissive list",
			`/x items=[a,,b,{"k":"v"},{bad}]`,
			Command{Name: "x", Params: Params{"items": []any{"a", "b", map[string]any{"k": "v"}, "{bad}"}}},
		},
		{
			"list commas inside braces",
			`/x items=[{a,b},c]`,
			Command{Name: "x", Params: Params{"items": []any{"{a,b}", "c"}}},
		},
		{
			"trailing garbage is a string",
			`/x n=12abc`,
			Command{Name: "x", Params: Params{"n": "12abc"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.input))
		})
	}
}

func TestParseAddTransaction(t *testing.T) {
	cmd := Parse(`/add_transaction date=2024-01-01 narration="午餐" postings=[{"account":"Expenses:Food","amount":25}]`)
	assert.Equal(t, "add_transaction", cmd.Name)
	assert.Equal(t, "午餐", cmd.Params["narration"])
	assert.Equal(t, []any{map[string]any{"account": "Expenses:Food", "amount": float64(25)}}, cmd.Params["postings"])
}

func TestParseInvalidJSONList(t *testing.T) {
	var cmd Command
	require.NotPanics(t, func() { cmd = Parse(`/x items=[{invalid-json}]`) })
	items, ok := cmd.Params["items"].([]any)
	require.True(t, ok)
	require.NotNil(t, items)
	assert.Equal(t, []any{"{invalid-json}"}, items)
}

func TestParseNeverPanics(t *testing.T) {
	inputs := []string{`/`, `/x a=`, `/x a="unterminated`, `/x a=[`, `/x a=]`, `/x a={`, `/x a=[}]`, `/x a=['",]`, `/x a=[]`}
	for _, in := range inputs {
		assert.NotPanics(t, func() { Parse(in) }, in)
	}
	assert.Equal(t, []any{}, Parse(`/x a=[]`).Params["a"])
}

func TestIsValidAndHelp(t *testing.T) {
	for _, name := range Names {
		assert.True(t, IsValid(name), name)
		h, ok := Help(name)
		assert.True(t, ok)
		assert.Contains(t, h, name)
	}
	assert.False(t, IsValid("rm"))
	_, ok := Help("rm")
	assert.False(t, ok)
}

func TestParamsTransaction(t *testing.T) {
	cmd := Parse(`/add_transaction date=2024-01-01 narration="午餐" payee=Canteen postings=[{"account":"Expenses:Food","amount":25},{"account":"Assets:Cash","amount":"-25.00","currency":"USD"},"Assets:Wallet"]`)
	draft, err := cmd.Params.Transaction("CNY")
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), draft.Date)
	assert.Equal(t, "午餐", draft.Narration)
	assert.Equal(t, "Canteen", draft.Payee)
	require.Len(t, draft.Postings, 3)
	assert.Equal(t, "25", draft.Postings[0].Units.Number.String())
	assert.Equal(t, "CNY", draft.Postings[0].Units.Currency)
	assert.Equal(t, "USD", draft.Postings[1].Units.Currency)
	assert.Equal(t, "Assets:Wallet", draft.Postings[2].Account)
	assert.Nil(t, draft.Postings[2].Units)
}

func TestParamsPostingsErrors(t *testing.T) {
	_, err := Params{}.Postings("postings", "USD")
	assert.ErrorIs(t, err, ErrMissingParam)

	_, err = Parse(`/x postings=nope`).Params.Postings("postings", "USD")
	assert.Error(t, err)

	_, err = Parse(`/x postings=[{"account":"A:B","amount":"ten"}]`).Params.Postings("postings", "USD")
	assert.Error(t, err)

	_, err = Parse(`/x postings=[1]`).Params.Postings("postings", "USD")
	assert.Error(t, err)
}

func TestParamsDate(t *testing.T) {
	d, err := Params{}.Date("date")
	require.NoError(t, err)
	assert.True(t, d.IsZero())

	d, err = Params{"date": "2024-02-29"}.Date("date")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), d)

	_, err = Params{"date": "not a date"}.Date("date")
	assert.Error(t, err)
}
