package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"cashback-service/internal/affiliate"
	"cashback-service/internal/models"
	"cashback-service/internal/repository"
	"cashback-service/pkg/common"
)

type TrackLinkRequest struct {
	URL     string `json:"url" form:"url"`
	UserID  string `json:"userId" form:"userId"`
	Network string `json:"network" form:"network"`
	TokenID string `json:"tokenId" form:"tokenId"`
}

type TrackedPartner struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	BaseRate decimal.Decimal `json:"baseRate"`
}

type TrackLinkResponse struct {
	Success    bool           `json:"success"`
	TrackedURL string         `json:"trackedUrl"`
	Partner    TrackedPartner `json:"partner"`
}

// TrackingService builds outbound affiliate links for a user's click.
type TrackingService struct {
	Store  Store
	Config affiliate.TrackingConfig
	Now    func() time.Time
}

func NewTrackingService(store Store, cfg affiliate.TrackingConfig) *TrackingService {
	return &TrackingService{Store: store, Config: cfg, Now: time.Now}
}

func (s *TrackingService) TrackLink(ctx context.Context, req TrackLinkRequest) (*TrackLinkResponse, error) {
	if req.URL == "" || req.UserID == "" || req.Network == "" {
		return nil, common.InvalidInput("Missing required parameters: url, userId, network")
	}

	user, err := s.Store.GetUser(ctx, req.UserID)
	if err != nil {
		return nil, lookupError(err, "User not found")
	}

	domain, err := affiliate.Domain(req.URL)
	if err != nil {
		return nil, common.InvalidInput("Invalid url")
	}

	logger := logrus.WithFields(logrus.Fields{"network": strings.ToLower(req.Network), "domain": domain})

	partner, err := s.Store.FindPartnerByDomain(ctx, domain)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, common.Internal("Internal server error", err)
		}
		logger.Warn("Partner not found for URL")
		return nil, common.NotFound("Partner not found for this URL").WithDebug(map[string]interface{}{
			"searchedDomain":    domain,
			"originalUrl":       req.URL,
			"availablePartners": s.availablePartners(ctx),
		})
	}

	network, netErr := affiliate.ParseNetwork(req.Network)
	advertiserID := ""
	if netErr == nil {
		advertiserID = advertiserFor(partner, network)
	}
	if advertiserID == "" {
		logger.WithField("partner", partner.Name).Error("Invalid network or partner not configured")
		return nil, common.InvalidInput("Invalid network or partner not configured for this network").WithDebug(map[string]interface{}{
			"network":                req.Network,
			"partnerId":              partner.ID,
			"partnerName":            partner.Name,
			"hasAwinAdvertiserId":    partner.AwinAdvertiserID != nil && *partner.AwinAdvertiserID != "",
			"hasRakutenAdvertiserId": partner.RakutenAdvertiserID != nil && *partner.RakutenAdvertiserID != "",
		})
	}

	clickRef := affiliate.EncodeClickReference(user.ID, req.TokenID, s.Now())
	tracked, err := affiliate.TrackingURL(s.Config, network, req.URL, advertiserID, clickRef)
	if err != nil {
		return nil, common.Internal("Internal server error", err)
	}

	click := models.StoreClick{WalletAddress: user.WalletAddress, PartnerID: partner.ID}
	if err := s.Store.CreateStoreClick(ctx, &click); err != nil {
		logger.WithError(err).Warn("Error recording store click")
	}

	logger.WithFields(logrus.Fields{"partner": partner.Name, "user_id": user.ID}).Info("Tracking link generated")
	return &TrackLinkResponse{
		Success:    true,
		TrackedURL: tracked,
		Partner: TrackedPartner{
			ID:       partner.ID,
			Name:     partner.Name,
			BaseRate: partner.BaseRate,
		},
	}, nil
}

func advertiserFor(p *models.Partner, network affiliate.Network) string {
	switch network {
	case affiliate.NetworkAwin:
		return derefOr(p.AwinAdvertiserID, "")
	case affiliate.NetworkRakuten:
		return derefOr(p.RakutenAdvertiserID, "")
	}
	return ""
}

func (s *TrackingService) availablePartners(ctx context.Context) []map[string]string {
	partners, err := s.Store.ListPartners(ctx, 10)
	if err != nil {
		return nil
	}
	out := make([]map[string]string, 0, len(partners))
	for _, p := range partners {
		out = append(out, map[string]string{"name": p.Name, "url": p.URL})
	}
	return out
}
