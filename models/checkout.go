package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MaxCost is the largest cost whose minor-unit amount fits in an int64.
const MaxCost = math.MaxInt64 / 100

// Cost is a major-unit amount sent by the client either as a JSON number or
// a numeric string. Numbers are truncated toward zero, so 25.9 is 25. Strings
// keep only their leading integer, so "25.90" and "12abc" are 25 and 12.
type Cost int64

func (c *Cost) UnmarshalJSON(data []byte) error {
	raw := bytes.TrimSpace(data)
	if bytes.Equal(raw, []byte("null")) {
		return fmt.Errorf("cost is required")
	}

	var (
		n   int64
		err error
	)
	if len(raw) > 0 && raw[0] == '"' {
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return fmt.Errorf("invalid cost: %w", err)
		}
		n, err = leadingInt(text)
	} else {
		n, err = truncatedNumber(string(raw))
	}
	if err != nil {
		return fmt.Errorf("invalid cost %s: %w", raw, err)
	}
	if n > MaxCost || n < -MaxCost {
		return fmt.Errorf("invalid cost %s: out of range", raw)
	}
	*c = Cost(n)
	return nil
}

// MinorUnits converts the cost to the smallest currency unit.
func (c Cost) MinorUnits() int64 { return int64(c) * 100 }

// truncatedNumber parses a JSON number token, exponent forms included.
func truncatedNumber(s string) (int64, error) {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	f = math.Trunc(f)
	if math.IsNaN(f) || f > MaxCost || f < -MaxCost {
		return 0, fmt.Errorf("out of range")
	}
	return int64(f), nil
}

func leadingInt(s string) (int64, error) {
	s = strings.TrimSpace(s)
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	digits := end
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == digits {
		return 0, fmt.Errorf("no digits")
	}
	return strconv.ParseInt(s[:end], 10, 64)
}

// CheckoutRequest is the body of POST /payment-checkout-session.
type CheckoutRequest struct {
	Cost        Cost   `json:"cost"`
	ParcelName  string `json:"parcelName"`
	ParcelID    string `json:"parcelId"`
	SenderEmail string `json:"senderEmail"`
}

// Checkout session payment statuses reported by the gateway.
const (
	SessionPaymentStatusPaid   = "paid"
	SessionPaymentStatusUnpaid = "unpaid"
)

// Metadata keys attached to every checkout session.
const (
	MetadataParcelID   = "parcelId"
	MetadataParcelName = "parcelName"
)

// CheckoutSession is the gateway-neutral view of a hosted checkout session.
type CheckoutSession struct {
	ID              string
	URL             string
	PaymentStatus   string
	AmountTotal     int64
	Currency        string
	CustomerEmail   string
	PaymentIntentID string
	Metadata        map[string]string
}

func (s *CheckoutSession) IsPaid() bool {
	return s.PaymentStatus == SessionPaymentStatusPaid
}

func (s *CheckoutSession) ParcelID() string { return s.Metadata[MetadataParcelID] }

func (s *CheckoutSession) ParcelName() string { return s.Metadata[MetadataParcelName] }

// WebhookEvent is a verified gateway event. Session is set only for
// checkout completion events.
type WebhookEvent struct {
	ID      string
	Type    string
	Session *CheckoutSession
}
