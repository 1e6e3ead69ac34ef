package affiliate

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var ErrMissingAdvertiserID = errors.New("Partner not configured for this network")

type TrackingConfig struct {
	AwinBaseURL        string
	AwinPublisherID    string
	RakutenBaseURL     string
	RakutenPublisherID string
}

// TrackingURL wraps targetURL in the network's click-through redirect,
// carrying clickRef so the network echoes it back in its postback.
func TrackingURL(cfg TrackingConfig, network Network, targetURL, advertiserID, clickRef string) (string, error) {
	if advertiserID == "" {
		return "", ErrMissingAdvertiserID
	}

	switch network {
	case NetworkAwin:
		return fmt.Sprintf("%s?awinmid=%s&awinaffid=%s&clickref=%s&p=%s",
			cfg.AwinBaseURL,
			url.QueryEscape(advertiserID),
			url.QueryEscape(cfg.AwinPublisherID),
			url.QueryEscape(clickRef),
			url.QueryEscape(targetURL),
		), nil
	case NetworkRakuten:
		return fmt.Sprintf("%s?id=%s&mid=%s&murl=%s&u1=%s",
			cfg.RakutenBaseURL,
			url.QueryEscape(cfg.RakutenPublisherID),
			url.QueryEscape(advertiserID),
			url.QueryEscape(targetURL),
			url.QueryEscape(clickRef),
		), nil
	}
	return "", ErrUnknownNetwork
}

// Domain returns the lower-cased host of rawURL without a leading "www.".
// URLs without a scheme are treated as https.
func Domain(rawURL string) (string, error) {
	s := strings.TrimSpace(rawURL)
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", err
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("no host in %q", rawURL)
	}
	return strings.TrimPrefix(host, "www."), nil
}
