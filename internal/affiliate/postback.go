package affiliate

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrInvalidAwinPush      = errors.New("Invalid AwinTransactionPush JSON")
	ErrMissingTransactionID = errors.New("Missing transaction id")
)

const awinPushField = "AwinTransactionPush"

var transactionDateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"}

// NormalizedPostback is the network-independent view of one sale event.
type NormalizedPostback struct {
	Network          Network
	AdvertiserID     string
	ClickReference   string
	CommissionAmount decimal.Decimal
	SaleAmount       decimal.Decimal
	Currency         string
	TransactionID    string
	Status           string
	OrderRef         string
	TransactionDate  time.Time
}

// Parser turns raw webhook payloads into NormalizedPostback values.
type Parser struct {
	DefaultCurrency string
	Now             func() time.Time
}

func NewParser(defaultCurrency string) *Parser {
	return &Parser{DefaultCurrency: defaultCurrency, Now: time.Now}
}

func (p *Parser) Parse(network Network, raw map[string]interface{}) (NormalizedPostback, error) {
	switch network {
	case NetworkAwin:
		return p.ParseAwin(raw)
	case NetworkRakuten:
		return p.ParseRakuten(raw)
	}
	return NormalizedPostback{}, ErrUnknownNetwork
}

// ParseAwin accepts both the AwinTransactionPush envelope, whose value is a
// JSON string, and the older flat field layout.
func (p *Parser) ParseAwin(raw map[string]interface{}) (NormalizedPostback, error) {
	data := raw
	if push, ok := raw[awinPushField]; ok && push != nil {
		switch v := push.(type) {
		case string:
			var inner map[string]interface{}
			dec := json.NewDecoder(strings.NewReader(v))
			dec.UseNumber()
			if err := dec.Decode(&inner); err != nil || inner == nil {
				return NormalizedPostback{}, ErrInvalidAwinPush
			}
			data = inner
		case map[string]interface{}:
			data = v
		default:
			return NormalizedPostback{}, ErrInvalidAwinPush
		}
	}

	np := NormalizedPostback{
		Network:          NetworkAwin,
		AdvertiserID:     stringField(data, "merchantId", "advertiserId"),
		ClickReference:   stringField(data, "clickRef"),
		CommissionAmount: decimalField(data, "commission", "commissionAmount"),
		SaleAmount:       decimalField(data, "transactionAmount", "saleAmount"),
		Currency:         p.currency(stringField(data, "transactionCurrency", "currency")),
		TransactionID:    stringField(data, "transactionId"),
		OrderRef:         stringField(data, "orderRef"),
		TransactionDate:  p.date(stringField(data, "transactionDate")),
	}

	if stringField(data, "eventType") == "created" {
		np.Status = "confirmed"
	} else {
		np.Status = NormalizeStatus(stringField(data, "status"))
	}

	if np.OrderRef == "" {
		np.OrderRef = np.TransactionID
	}
	if np.TransactionID == "" {
		np.TransactionID = np.OrderRef
	}

	return np, nil
}

// ParseRakuten reads the flat Rakuten postback. The session id (sid) is the
// transaction identity and every Rakuten event is treated as confirmed.
func (p *Parser) ParseRakuten(raw map[string]interface{}) (NormalizedPostback, error) {
	np := NormalizedPostback{
		Network:          NetworkRakuten,
		AdvertiserID:     stringField(raw, "mid"),
		ClickReference:   stringField(raw, "u1"),
		CommissionAmount: decimalField(raw, "commission"),
		SaleAmount:       decimalField(raw, "amt"),
		Currency:         p.currency(stringField(raw, "cur")),
		TransactionID:    stringField(raw, "sid"),
		OrderRef:         stringField(raw, "oid"),
		Status:           "confirmed",
		TransactionDate:  p.date(stringField(raw, "etd")),
	}

	if np.TransactionID == "" {
		np.TransactionID = np.OrderRef
	}

	return np, nil
}

// NormalizeStatus folds network status vocabularies into
// pending, confirmed, rejected or cancelled.
func NormalizeStatus(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "confirmed", "approved", "created":
		return "confirmed"
	case "rejected", "declined":
		return "rejected"
	case "cancelled", "canceled", "deleted":
		return "cancelled"
	}
	return "pending"
}

func (p *Parser) currency(c string) string {
	if c == "" {
		c = p.DefaultCurrency
	}
	return strings.ToLower(c)
}

func (p *Parser) date(s string) time.Time {
	if s != "" {
		for _, layout := range transactionDateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t
			}
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			return time.UnixMilli(ms)
		}
	}
	return p.Now()
}

// stringField returns the first key whose value is present and non-empty.
func stringField(m map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || v == nil {
			continue
		}
		var s string
		switch t := v.(type) {
		case string:
			s = strings.TrimSpace(t)
		case json.Number:
			s = t.String()
		case float64:
			s = strconv.FormatFloat(t, 'f', -1, 64)
		case int:
			s = strconv.Itoa(t)
		case int64:
			s = strconv.FormatInt(t, 10)
		case []string:
			if len(t) > 0 {
				s = strings.TrimSpace(t[0])
			}
		default:
			s = fmt.Sprint(t)
		}
		if s != "" {
			return s
		}
	}
	return ""
}

// decimalField returns the first key that parses to a non-zero amount, or zero.
func decimalField(m map[string]interface{}, keys ...string) decimal.Decimal {
	for _, k := range keys {
		s := stringField(m, k)
		if s == "" {
			continue
		}
		d, err := decimal.NewFromString(s)
		if err != nil || d.IsZero() {
			continue
		}
		return d
	}
	return decimal.Zero
}
