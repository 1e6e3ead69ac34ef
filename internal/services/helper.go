package services

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/sirupsen/logrus"

	"cashback-service/internal/affiliate"
	"cashback-service/internal/models"
)

type HelperService struct {
	Store Store
}

func NewHelperService(store Store) *HelperService {
	return &HelperService{Store: store}
}

// LogPostback writes the audit row for one webhook call. Failures are logged
// and swallowed so auditing never changes the webhook outcome.
func (s *HelperService) LogPostback(ctx context.Context, network affiliate.Network, payload map[string]interface{}, processed bool, errorMessage, transactionID string) {
	raw, err := json.Marshal(payload)
	if err != nil {
		raw = []byte("{}")
	}

	entry := models.PostbackLog{
		AffiliateNetwork: string(network),
		RawPayload:       raw,
		Processed:        processed,
	}
	if errorMessage != "" {
		entry.ErrorMessage = &errorMessage
	}
	if transactionID != "" {
		entry.TransactionID = &transactionID
	}

	if err := s.Store.CreatePostbackLog(context.WithoutCancel(ctx), &entry); err != nil {
		logrus.WithError(err).WithField("network", network).Error("Error logging postback")
	}
}

// ValidWalletAddress reports whether addr looks like a 0x-prefixed 20-byte hex address.
func ValidWalletAddress(addr string) bool {
	if len(addr) != 42 || !strings.HasPrefix(addr, "0x") {
		return false
	}
	for _, c := range addr[2:] {
		if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
			return false
		}
	}
	return true
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefOr(p *string, fallback string) string {
	if p == nil || *p == "" {
		return fallback
	}
	return *p
}
