package core

import "strings"

const (
	CmdUnrecognized CommandKind = iota
	CmdCheckBalance
	CmdAddIncome
	CmdAddExpense
	CmdListHistory
	CmdHelp
)

const (
	ReasonNoMatch   = "no match"
	ReasonBadFormat = "bad format"
)

// Command keywords as typed by users.
const (
	KeywordCheckBalance = "!cekkas"
	KeywordHistory      = "!riwayat"
	KeywordHelp         = "!help"
	KeywordMenu         = "!menu"
	KeywordIncome       = "!tambah"
	KeywordExpense      = "!keluar"
)

type CommandKind int

// Command is the parsed form of one inbound message.
// Amount and Note are set for CmdAddIncome and CmdAddExpense;
// Reason and Original are set for CmdUnrecognized.
type Command struct {
	Kind     CommandKind
	Amount   int64
	Note     string
	Reason   string
	Original string // keyword without "!" for bad-format commands
}

func CheckBalance() Command { return Command{Kind: CmdCheckBalance} }
func ListHistory() Command  { return Command{Kind: CmdListHistory} }
func Help() Command         { return Command{Kind: CmdHelp} }

func AddIncome(amount int64, note string) Command {
	return Command{Kind: CmdAddIncome, Amount: amount, Note: note}
}

func AddExpense(amount int64, note string) Command {
	return Command{Kind: CmdAddExpense, Amount: amount, Note: note}
}

func Unrecognized(reason, original string) Command {
	return Command{Kind: CmdUnrecognized, Reason: reason, Original: original}
}

// IsBadFormat reports whether a known write command was given malformed arguments.
func (c Command) IsBadFormat() bool {
	return c.Kind == CmdUnrecognized && c.Reason == ReasonBadFormat
}

func (k CommandKind) String() string {
	switch k {
	case CmdCheckBalance:
		return "cekkas"
	case CmdAddIncome:
		return "tambah"
	case CmdAddExpense:
		return "keluar"
	case CmdListHistory:
		return "riwayat"
	case CmdHelp:
		return "help"
	default:
		return "unrecognized"
	}
}

// Parse maps raw message text to a Command. It never fails: text that is not a
// command yields an Unrecognized value with ReasonNoMatch.
func Parse(raw string) Command {
	body := strings.TrimSpace(raw)

	switch body {
	case KeywordCheckBalance:
		return CheckBalance()
	case KeywordHistory:
		return ListHistory()
	case KeywordHelp, KeywordMenu:
		return Help()
	}

	tokens := strings.Fields(body)
	if len(tokens) == 0 {
		return Unrecognized(ReasonNoMatch, "")
	}

	switch tokens[0] {
	case KeywordIncome:
		return parseMutation(tokens, AddIncome)
	case KeywordExpense:
		return parseMutation(tokens, AddExpense)
	default:
		return Unrecognized(ReasonNoMatch, "")
	}
}

func parseMutation(tokens []string, build func(int64, string) Command) Command {
	original := strings.TrimPrefix(tokens[0], "!")
	if len(tokens) < 3 {
		return Unrecognized(ReasonBadFormat, original)
	}
	amount, err := ParseAmount(tokens[1])
	if err != nil {
		return Unrecognized(ReasonBadFormat, original)
	}
	return build(amount, strings.Join(tokens[2:], " "))
}
