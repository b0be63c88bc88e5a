package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/shopspring/decimal"

	"github.com/FACorreiaa/echo-ledger/pkg/money"
)

const responseSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["is_transaction"],
  "properties": {
    "is_transaction": {"type": "boolean"},
    "amount": {"type": ["number", "string", "null"]},
    "type": {"type": ["string", "null"], "enum": ["debit", "credit", "DEBIT", "CREDIT", null]},
    "merchant": {"type": ["string", "null"]},
    "account_last_digits": {"type": ["string", "number", "null"]},
    "balance": {"type": ["number", "string", "null"]},
    "currency": {"type": ["string", "null"]},
    "date": {"type": ["string", "null"]},
    "confidence": {"type": ["number", "null"]}
  }
}`

var (
	errNoPayload = errors.New("no JSON object in response")
	errUnclosed  = errors.New("unbalanced JSON object in response")
)

// payload is the decoded model answer
type payload struct {
	IsTransaction     bool            `json:"is_transaction"`
	Amount            json.RawMessage `json:"amount"`
	Type              *string         `json:"type"`
	Merchant          *string         `json:"merchant"`
	AccountLastDigits json.RawMessage `json:"account_last_digits"`
	Balance           json.RawMessage `json:"balance"`
	Currency          *string         `json:"currency"`
	Date              *string         `json:"date"`
	Confidence        *float64        `json:"confidence"`
}

// compileSchema builds the response validator
func compileSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("response.json", strings.NewReader(responseSchema)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("response.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// locatePayload finds the first complete JSON object in raw model output,
// ignoring code fences and surrounding prose.
func locatePayload(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	start := strings.IndexByte(s, '{')
	if start == -1 {
		return "", errNoPayload
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		switch {
		case escaped:
			escaped = false
		case inString && c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[start : i+1], nil
			}
		}
	}
	return "", errUnclosed
}

// decodeResponse locates, validates and decodes a model answer.
func decodeResponse(schema *jsonschema.Schema, raw string) (*payload, error) {
	body, err := locatePayload(raw)
	if err != nil {
		return nil, &SchemaError{Raw: raw, Err: err}
	}

	var generic any
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, &SchemaError{Raw: raw, Err: fmt.Errorf("unmarshal payload: %w", err)}
	}
	if err := schema.Validate(generic); err != nil {
		return nil, &SchemaError{Raw: raw, Err: fmt.Errorf("payload does not match schema: %w", err)}
	}

	var p payload
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return nil, &SchemaError{Raw: raw, Err: fmt.Errorf("decode payload: %w", err)}
	}
	return &p, nil
}

func (p *payload) accountDigits() *string {
	if len(p.AccountLastDigits) == 0 || string(p.AccountLastDigits) == "null" {
		return nil
	}

	var s string
	if err := json.Unmarshal(p.AccountLastDigits, &s); err != nil {
		s = string(p.AccountLastDigits)
	}

	digits := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			digits = append(digits, s[i])
		}
	}
	if len(digits) == 0 {
		if strings.EqualFold(strings.TrimSpace(s), "upi") {
			upi := "UPI"
			return &upi
		}
		return nil
	}
	if len(digits) > 4 {
		digits = digits[len(digits)-4:]
	}
	out := string(digits)
	return &out
}

// decimalField reads a number that may arrive as a JSON number or as a
// formatted string ("1,250.00").
func decimalField(raw json.RawMessage) (*decimal.Decimal, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		s = string(raw)
	}
	d, err := money.ParseAmount(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
