package pattern

import (
	"regexp"

	"github.com/FACorreiaa/echo-ledger/internal/domain/transaction"
)

// Family is one message shape a bank sends. Families are tried in order and
// the first one that yields an amount wins.
type Family struct {
	Name       string
	Type       transaction.Type
	Confidence float64

	// Triggers are lower-case keywords; at least one must occur in the text.
	Triggers []string
	// Require must match the text for the family to apply.
	Require *regexp.Regexp
	// Merchants capture the counterparty in group 1, tried in order.
	Merchants []*regexp.Regexp
	// FixedMerchant is used when the family has no counterparty in the text.
	FixedMerchant string
	// UPI families fall back to the UPI sentinel when no account is found.
	UPI bool
}

// Family names
const (
	AccountDebit  = "account_debit"
	AccountCredit = "account_credit"
	CardSpend     = "card_spend"
	ATMWithdrawal = "atm_withdrawal"
	UPIPayment    = "upi_payment"
	UPIReceived   = "upi_received"
	GenericDebit  = "generic_debit"
	GenericCredit = "generic_credit"
)

const merchantTail = `([A-Za-z0-9@&*'._/\-]+(?: [A-Za-z0-9@&*'._/\-]+)*?)` +
	`(?:\s+(?:on|ref|refno|upi|avl|avbl|available|bal|via|dated|info|txn|using|is|has|with|thru|through|from|for|at)\b|\s*[,;:(]|\.\s|\.$|\s*$)`

var (
	toMerchant     = regexp.MustCompile(`(?i)\b(?:to|towards)\s+(?:vpa\s+|a/c\s+)?` + merchantTail)
	atMerchant     = regexp.MustCompile(`(?i)\bat\s+` + merchantTail)
	forMerchant    = regexp.MustCompile(`(?i)\bfor\s+` + merchantTail)
	fromMerchant   = regexp.MustCompile(`(?i)\bfrom\s+(?:vpa\s+)?` + merchantTail)
	byMerchant     = regexp.MustCompile(`(?i)\bby\s+(?:vpa\s+)?` + merchantTail)
	infoMerchant   = regexp.MustCompile(`(?i)\binfo\s*[:\-]\s*` + merchantTail)
	upiRefMerchant = regexp.MustCompile(`(?i)\bupi/(?:p2[am]/)?(?:\d+/)?([A-Za-z][A-Za-z0-9 &.'_\-]*)`)
)

// DefaultFamilies returns the built-in families in priority order.
func DefaultFamilies() []Family {
	return []Family{
		{
			Name:       AccountDebit,
			Type:       transaction.TypeDebit,
			Confidence: 0.95,
			Triggers:   []string{"debited"},
			Require:    regexp.MustCompile(`(?i)\b(?:a/c|acct|account)\b`),
			Merchants:  []*regexp.Regexp{atMerchant, toMerchant, infoMerchant, upiRefMerchant, forMerchant},
		},
		{
			Name:       AccountCredit,
			Type:       transaction.TypeCredit,
			Confidence: 0.95,
			Triggers:   []string{"credited"},
			Require:    regexp.MustCompile(`(?i)\b(?:a/c|acct|account)\b`),
			Merchants:  []*regexp.Regexp{infoMerchant, upiRefMerchant, fromMerchant, byMerchant},
		},
		{
			Name:       CardSpend,
			Type:       transaction.TypeDebit,
			Confidence: 0.90,
			Triggers:   []string{"spent", "purchase", "txn", "transaction", "used"},
			Require:    regexp.MustCompile(`(?i)\bcard\b`),
			Merchants:  []*regexp.Regexp{atMerchant, toMerchant, infoMerchant, forMerchant},
		},
		{
			Name:          ATMWithdrawal,
			Type:          transaction.TypeDebit,
			Confidence:    0.90,
			Triggers:      []string{"withdrawn", "withdrawal", "withdrew"},
			Require:       regexp.MustCompile(`(?i)\b(?:atm|cash)\b`),
			FixedMerchant: "ATM",
		},
		{
			Name:       UPIPayment,
			Type:       transaction.TypeDebit,
			Confidence: 0.85,
			Triggers:   []string{"paid", "sent", "debited", "payment", "transferred"},
			Require:    regexp.MustCompile(`(?i)\b(?:upi|vpa)\b`),
			Merchants:  []*regexp.Regexp{toMerchant, infoMerchant, upiRefMerchant, atMerchant},
			UPI:        true,
		},
		{
			Name:       UPIReceived,
			Type:       transaction.TypeCredit,
			Confidence: 0.85,
			Triggers:   []string{"received", "credited"},
			Require:    regexp.MustCompile(`(?i)\b(?:upi|vpa)\b`),
			Merchants:  []*regexp.Regexp{fromMerchant, byMerchant, infoMerchant, upiRefMerchant},
			UPI:        true,
		},
		{
			Name:       GenericDebit,
			Type:       transaction.TypeDebit,
			Confidence: 0.60,
			Triggers:   []string{"debited", "debit", "spent", "paid", "withdrawn", "purchase", "sent", "charged"},
			Merchants:  []*regexp.Regexp{atMerchant, toMerchant, infoMerchant, forMerchant},
		},
		{
			Name:       GenericCredit,
			Type:       transaction.TypeCredit,
			Confidence: 0.55,
			Triggers:   []string{"credited", "credit", "received", "deposited", "refund", "refunded"},
			Merchants:  []*regexp.Regexp{fromMerchant, byMerchant, infoMerchant},
		},
	}
}
