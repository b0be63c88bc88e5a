package model

import "strings"

// NoExcerpt is what the excerpt step returns when the email carries no transaction.
const NoExcerpt = "NONE"

const responseRules = `Return ONLY one raw JSON object with exactly these fields:
{
  "is_transaction": boolean,
  "amount": number or null,
  "type": "debit" or "credit",
  "merchant": string or null,
  "account_last_digits": string or null,
  "balance": number or null,
  "currency": ISO-4217 code or null,
  "date": "YYYY-MM-DD" or null,
  "confidence": number between 0 and 1
}

Rules:
- Set "is_transaction" to false for OTPs, offers, reminders and promotional text.
- "amount" is the money moved, never the available balance or credit limit.
- "account_last_digits" holds at most the last 4 digits of the account or card.
- "merchant" is the counterparty name without reference numbers or UPI handles.
- Do NOT wrap the response in code fences.
- Do NOT add any text before or after the JSON.`

// BuildPrompt asks the model to extract one transaction from a notification.
// Email headers, when given, are sent as their own block ahead of the body.
func BuildPrompt(headers, canonical string) string {
	var b strings.Builder
	b.WriteString("You extract financial transactions from bank notifications.\n\n")
	writeHeaders(&b, headers)
	b.WriteString("Message:\n<<<\n")
	b.WriteString(canonical)
	b.WriteString("\n>>>\n\n")
	b.WriteString(responseRules)
	return b.String()
}

// BuildExcerptPrompt asks the model to copy the transaction sentence(s) out of
// a long email body.
func BuildExcerptPrompt(headers, body string) string {
	var b strings.Builder
	b.WriteString("The following email may describe a financial transaction.\n")
	b.WriteString("Copy verbatim only the sentences that state the amount, direction, counterparty, account and date.\n")
	b.WriteString("If the email describes no completed transaction, reply with exactly " + NoExcerpt + ".\n\n")
	writeHeaders(&b, headers)
	b.WriteString("Email:\n<<<\n")
	b.WriteString(body)
	b.WriteString("\n>>>\n")
	return b.String()
}

func writeHeaders(b *strings.Builder, headers string) {
	if headers == "" {
		return
	}
	b.WriteString("Headers:\n<<<\n")
	b.WriteString(headers)
	b.WriteString("\n>>>\n\n")
}
