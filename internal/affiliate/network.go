// Package affiliate holds the pure, storage-free parts of postback handling:
// network payload adapters, the click-reference codec, the cashback formula
// and outbound tracking links.
package affiliate

import (
	"errors"
	"strings"
)

type Network string

const (
	NetworkAwin    Network = "awin"
	NetworkRakuten Network = "rakuten"
)

var ErrUnknownNetwork = errors.New("unknown affiliate network")

// ParseNetwork accepts a network name in any case.
func ParseNetwork(s string) (Network, error) {
	switch Network(strings.ToLower(strings.TrimSpace(s))) {
	case NetworkAwin:
		return NetworkAwin, nil
	case NetworkRakuten:
		return NetworkRakuten, nil
	}
	return "", ErrUnknownNetwork
}

func (n Network) String() string {
	return string(n)
}
