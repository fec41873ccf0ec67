package cmdparse

var commandHelp = map[string]string{
	"help":               "help [command=<name>] - list commands or describe one",
	"accounts":           "accounts - list open accounts",
	"transactions":       "transactions [start=<date>] [end=<date>] - list transactions in a date range",
	"balances":           "balances [account=<name>] [date=<date>] - list balance assertions up to a date",
	"net_worth":          "net_worth [date=<date>] - assets minus liabilities from balance assertions",
	"income_statement":   "income_statement start=<date> end=<date> - income and expenses over a period",
	"balance_sheet":      "balance_sheet [date=<date>] - balance assertions grouped by account",
	"add_transaction":    `add_transaction date=<date> narration="..." [payee="..."] postings=[{"account":"...","amount":1.5}]`,
	"delete_transaction": `delete_transaction (date=<date> narration="..." | id=<id>) - remove one transaction`,
	"reload":             "reload - re-read the ledger file",
	"stats":              "stats - counts of accounts, transactions, balances and parse errors",
	"suggest_account":    `suggest_account narration="..." - guess the counter account for a narration`,
	"exit":               "exit - leave the shell",
}

// Names lists the accepted command names in display order.
var Names = []string{
	"help",
	"accounts",
	"transactions",
	"balances",
	"net_worth",
	"income_statement",
	"balance_sheet",
	"add_transaction",
	"delete_transaction",
	"reload",
	"stats",
	"suggest_account",
	"exit",
}

// IsValid reports whether name is a known command.
func IsValid(name string) bool {
	_, ok := commandHelp[name]
	return ok
}

// Help returns the usage line of a command.
func Help(name string) (string, bool) {
	h, ok := commandHelp[name]
	return h, ok
}
