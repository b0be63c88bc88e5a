package transaction

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransaction_IsParsed(t *testing.T) {
	amount := decimal.RequireFromString("499.00")

	tests := []struct {
		name string
		tx   Transaction
		want bool
	}{
		{"amount and merchant", Transaction{Amount: &amount, Merchant: "Swiggy"}, true},
		{"missing amount", Transaction{Merchant: "Swiggy"}, false},
		{"blank merchant", Transaction{Amount: &amount, Merchant: "   "}, false},
		{"parsing error set", Transaction{Amount: &amount, Merchant: "Swiggy", ParsingError: StringPtr("boom")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.tx.IsParsed())
		})
	}
}

func TestTransaction_ResetExtractionKeepsIdentity(t *testing.T) {
	received := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	tx := &Transaction{
		RawMessage:        "Rs.499.00 debited",
		Fingerprint:       "abc",
		ReceivedAt:        received,
		Timestamp:         received.AddDate(0, 0, -1),
		Amount:            DecimalPtr(decimal.NewFromInt(499)),
		Merchant:          "Swiggy",
		Category:          "Food",
		AccountLastDigits: StringPtr("1234"),
		ParserType:        Pattern(),
		ParserConfidence:  0.95,
	}

	tx.ResetExtraction()

	assert.Nil(t, tx.Amount)
	assert.Empty(t, tx.Merchant)
	assert.Nil(t, tx.AccountLastDigits)
	assert.True(t, tx.ParserType.IsZero())
	assert.Zero(t, tx.ParserConfidence)
	assert.Equal(t, received, tx.Timestamp)
	assert.Equal(t, "Rs.499.00 debited", tx.RawMessage)
	assert.Equal(t, "abc", tx.Fingerprint)
	assert.Equal(t, "Food", tx.Category)
}

func TestTransaction_CloneIsDeep(t *testing.T) {
	tx := &Transaction{
		Amount:            DecimalPtr(decimal.NewFromInt(10)),
		AccountLastDigits: StringPtr("1234"),
	}

	c := tx.Clone()
	*c.AccountLastDigits = "9999"
	*c.Amount = decimal.NewFromInt(20)

	assert.Equal(t, "1234", *tx.AccountLastDigits)
	assert.True(t, tx.Amount.Equal(decimal.NewFromInt(10)))
}

func TestParserType_RoundTrip(t *testing.T) {
	tests := []struct {
		tag  ParserType
		want string
	}{
		{ParserType{}, ""},
		{Pattern(), "pattern"},
		{Model(""), "model"},
		{Model("gemini-2.5-flash"), "model:gemini-2.5-flash"},
		{ModelFailed(), "model:failed"},
		{EmailModel("gemini-2.5-flash"), "email:gemini-2.5-flash"},
		{EmailModel(""), "email"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			require.Equal(t, tt.want, tt.tag.String())
			assert.Equal(t, tt.tag, ParseParserType(tt.want))
		})
	}
}

func TestParserType_NullableNone(t *testing.T) {
	assert.Nil(t, ParserType{}.nullable())
	require.NotNil(t, Pattern().nullable())
	assert.Equal(t, "pattern", *Pattern().nullable())
}
