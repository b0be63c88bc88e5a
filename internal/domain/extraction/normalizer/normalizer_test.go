package normalizer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "collapses whitespace",
			raw:  "  Rs.499.00   debited\nfrom A/c XX1234  ",
			want: "Rs.499.00 debited from A/c XX1234",
		},
		{
			name: "strips email headers and greeting",
			raw:  "From: alerts@hdfcbank.net\nSubject: Transaction alert\nDate: Mon, 3 Mar 2025\n\nDear Customer,\nRs.250.00 has been debited from account 1234.",
			want: "Rs.250.00 has been debited from account 1234.",
		},
		{
			name: "strips footer",
			raw:  "INR 1,200.00 spent on card ending 4321 at AMAZON. Regards, Team Bank. This is a system generated mail.",
			want: "INR 1,200.00 spent on card ending 4321 at AMAZON.",
		},
		{
			name: "keeps single line starting with date",
			raw:  "Date: 03-03-25 Rs 100 debited",
			want: "Date: 03-03-25 Rs 100 debited",
		},
		{
			name: "strips do not reply",
			raw:  "Rs 100 credited to A/c XX9876. Do not reply to this message.",
			want: "Rs 100 credited to A/c XX9876.",
		},
		{name: "empty", raw: "   \n\t ", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Canonicalize(tt.raw)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, Canonicalize(got), "canonicalization must be idempotent")
		})
	}
}

func TestNormalize_Fingerprint(t *testing.T) {
	day := time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)

	a := Normalize("Rs.499.00 debited from A/c XX1234 to SWIGGY", day)
	b := Normalize("  rs.499.00 debited   from a/c xx1234 to swiggy ", day.Add(5*time.Hour))
	c := Normalize("Rs.499.00 debited from A/c XX1234 to SWIGGY", day.AddDate(0, 0, 1))

	assert.Len(t, a.Fingerprint, 32)
	assert.Equal(t, a.Fingerprint, b.Fingerprint, "case and spacing must not change the fingerprint")
	assert.NotEqual(t, a.Fingerprint, c.Fingerprint, "a different receipt day is a different message")
	assert.Equal(t, "Rs.499.00 debited from A/c XX1234 to SWIGGY", a.Canonical)
}

func TestNormalize_EmptyInput(t *testing.T) {
	n := Normalize("", time.Now())
	assert.Empty(t, n.Canonical)
	assert.Equal(t, EmptyFingerprint, n.Fingerprint)

	assert.Equal(t, EmptyFingerprint, Fingerprint("  ", time.Now()))
}

func TestHeaders(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "email header block",
			raw:  "From: alerts@hdfcbank.net\r\nSubject: Rs.250 debited at SWIGGY\r\n\r\nRs.250.00 has been debited.",
			want: "From: alerts@hdfcbank.net\nSubject: Rs.250 debited at SWIGGY",
		},
		{name: "sms", raw: "Rs 100 debited from A/c XX1234", want: ""},
		{name: "single line starting with date", raw: "Date: 03-03-25 Rs 100 debited", want: ""},
		{name: "header-like line in body", raw: "Rs 100 debited\nTo: SWIGGY", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Headers(tt.raw))
		})
	}

	n := Normalize("Subject: Card alert\n\nINR 99 spent at NETFLIX", time.Now())
	assert.Equal(t, "Subject: Card alert", n.Headers)
	assert.Equal(t, "INR 99 spent at NETFLIX", n.Canonical)
}

func TestRoundedAmount(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"rs.499.60 debited", "500"},
		{"inr 1,23,456.00 credited", "123456"},
		{"paid 250 inr to abc", "250"},
		{"no amount here", ""},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, roundedAmount(tt.text))
		})
	}
}
