package affiliate

import (
	"encoding/json"
	"net/url"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestParser() *Parser {
	p := NewParser("BRL")
	p.Now = func() time.Time { return fixedNow }
	return p
}

func TestClickReferenceRoundTrip(t *testing.T) {
	issued := time.UnixMilli(1700000001000)

	ref := EncodeClickReference("7", "abc123", issued)
	assert.Equal(t, "user_7_1700000001000_token_abc123", ref)

	decoded, err := DecodeClickReference(ref)
	require.NoError(t, err)
	assert.Equal(t, "7", decoded.UserID)
	assert.Equal(t, int64(1700000001000), decoded.IssuedAtMillis)
	assert.Equal(t, "abc123", decoded.FanTokenID)

	plain := EncodeClickReference("42", "", time.UnixMilli(1700000000000))
	assert.Equal(t, "user_42_1700000000000", plain)

	decoded, err = DecodeClickReference(plain)
	require.NoError(t, err)
	assert.Equal(t, "42", decoded.UserID)
	assert.Empty(t, decoded.FanTokenID)
}

func TestDecodeClickReferenceRejectsMalformed(t *testing.T) {
	for _, s := range []string{"", "foo", "usr_1_2", "user_", "USER_1_2"} {
		_, err := DecodeClickReference(s)
		assert.ErrorIs(t, err, ErrInvalidClickReference, s)
	}
}

func TestDecodeClickReferenceDanglingToken(t *testing.T) {
	ref, err := DecodeClickReference("user_9_1700000000000_token")
	require.NoError(t, err)
	assert.Equal(t, "9", ref.UserID)
	assert.Empty(t, ref.FanTokenID)
}

func TestCashback(t *testing.T) {
	got := Cashback(decimal.NewFromInt(100), decimal.NewFromInt(10))
	assert.True(t, got.Equal(decimal.NewFromInt(10)), got.String())

	got = Cashback(decimal.RequireFromString("249.90"), decimal.RequireFromString("3.5"))
	assert.True(t, got.Equal(decimal.RequireFromString("8.7465")), got.String())

	assert.True(t, Cashback(decimal.Zero, decimal.NewFromInt(10)).IsZero())
}

func TestParseAwinPushEnvelope(t *testing.T) {
	inner := map[string]interface{}{
		"merchantId":          "1001",
		"clickRef":            "user_42_1700000000000",
		"commission":          5,
		"transactionAmount":   100,
		"transactionCurrency": "BRL",
		"transactionId":       "T1",
		"eventType":           "created",
	}
	b, _ := json.Marshal(inner)

	np, err := newTestParser().ParseAwin(map[string]interface{}{"AwinTransactionPush": string(b)})
	require.NoError(t, err)

	assert.Equal(t, NetworkAwin, np.Network)
	assert.Equal(t, "1001", np.AdvertiserID)
	assert.Equal(t, "user_42_1700000000000", np.ClickReference)
	assert.True(t, np.SaleAmount.Equal(decimal.NewFromInt(100)))
	assert.True(t, np.CommissionAmount.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, "brl", np.Currency)
	assert.Equal(t, "T1", np.TransactionID)
	assert.Equal(t, "T1", np.OrderRef)
	assert.Equal(t, "confirmed", np.Status)
	assert.Equal(t, fixedNow, np.TransactionDate)
}

func TestParseAwinInvalidEnvelope(t *testing.T) {
	_, err := newTestParser().ParseAwin(map[string]interface{}{"AwinTransactionPush": "{not json"})
	assert.ErrorIs(t, err, ErrInvalidAwinPush)
}

func TestParseAwinFlatFallbacks(t *testing.T) {
	np, err := newTestParser().ParseAwin(map[string]interface{}{
		"advertiserId":     "2002",
		"clickRef":         "user_1_1",
		"commissionAmount": "1.25",
		"saleAmount":       "50.5",
		"transactionId":    "T2",
		"orderRef":         "ORD-9",
		"status":           "declined",
		"transactionDate":  "2024-03-01T10:00:00Z",
	})
	require.NoError(t, err)

	assert.Equal(t, "2002", np.AdvertiserID)
	assert.True(t, np.CommissionAmount.Equal(decimal.RequireFromString("1.25")))
	assert.True(t, np.SaleAmount.Equal(decimal.RequireFromString("50.5")))
	assert.Equal(t, "brl", np.Currency)
	assert.Equal(t, "ORD-9", np.OrderRef)
	assert.Equal(t, "rejected", np.Status)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), np.TransactionDate)
}

func TestParseAwinMissingFieldsDoNotFail(t *testing.T) {
	np, err := newTestParser().ParseAwin(map[string]interface{}{})
	require.NoError(t, err)
	assert.Equal(t, "pending", np.Status)
	assert.True(t, np.SaleAmount.IsZero())
	assert.Empty(t, np.ClickReference)
}

func TestParseRakuten(t *testing.T) {
	np, err := newTestParser().ParseRakuten(map[string]interface{}{
		"mid":        "3003",
		"u1":         "user_7_1700000001000_token_abc123",
		"amt":        "200",
		"cur":        "USD",
		"oid":        "O-1",
		"commission": "12",
		"sid":        "S-77",
		"etd":        "2024-02-02",
	})
	require.NoError(t, err)

	assert.Equal(t, NetworkRakuten, np.Network)
	assert.Equal(t, "3003", np.AdvertiserID)
	assert.Equal(t, "S-77", np.TransactionID)
	assert.Equal(t, "O-1", np.OrderRef)
	assert.Equal(t, "usd", np.Currency)
	assert.Equal(t, "confirmed", np.Status)
	assert.True(t, np.SaleAmount.Equal(decimal.NewFromInt(200)))
	assert.Equal(t, time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC), np.TransactionDate)
}

func TestParseNetwork(t *testing.T) {
	n, err := ParseNetwork("AWIN")
	require.NoError(t, err)
	assert.Equal(t, NetworkAwin, n)

	_, err = ParseNetwork("cj")
	assert.ErrorIs(t, err, ErrUnknownNetwork)
}

func TestTrackingURL(t *testing.T) {
	cfg := TrackingConfig{
		AwinBaseURL:        "https://www.awin1.com/cread.php",
		AwinPublisherID:    "pub-1",
		RakutenBaseURL:     "https://click.linksynergy.com/deeplink",
		RakutenPublisherID: "rk-1",
	}

	awin, err := TrackingURL(cfg, NetworkAwin, "https://shop.example.com/p?x=1", "1001", "user_1_2")
	require.NoError(t, err)
	u, err := url.Parse(awin)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "1001", q.Get("awinmid"))
	assert.Equal(t, "pub-1", q.Get("awinaffid"))
	assert.Equal(t, "user_1_2", q.Get("clickref"))
	assert.Equal(t, "https://shop.example.com/p?x=1", q.Get("p"))

	rk, err := TrackingURL(cfg, NetworkRakuten, "https://shop.example.com", "3003", "user_1_2")
	require.NoError(t, err)
	u, err = url.Parse(rk)
	require.NoError(t, err)
	q = u.Query()
	assert.Equal(t, "rk-1", q.Get("id"))
	assert.Equal(t, "3003", q.Get("mid"))
	assert.Equal(t, "https://shop.example.com", q.Get("murl"))
	assert.Equal(t, "user_1_2", q.Get("u1"))

	_, err = TrackingURL(cfg, NetworkRakuten, "https://shop.example.com", "", "user_1_2")
	assert.ErrorIs(t, err, ErrMissingAdvertiserID)
}

func TestDomain(t *testing.T) {
	d, err := Domain("https://www.Loja.com.br/produtos?id=1")
	require.NoError(t, err)
	assert.Equal(t, "loja.com.br", d)

	d, err = Domain("shop.example.com")
	require.NoError(t, err)
	assert.Equal(t, "shop.example.com", d)

	_, err = Domain("")
	assert.Error(t, err)
}
