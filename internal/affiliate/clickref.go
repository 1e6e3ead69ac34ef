package affiliate

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	clickRefPrefix = "user_"
	tokenMarker    = "token"
)

var ErrInvalidClickReference = errors.New("Invalid click reference")

// ClickReference is the opaque tag carried through the affiliate network:
// user_<userId>_<millis>[_token_<fanTokenId>].
type ClickReference struct {
	UserID         string
	IssuedAtMillis int64
	FanTokenID     string
}

func EncodeClickReference(userID, fanTokenID string, now time.Time) string {
	ref := fmt.Sprintf("%s%s_%d", clickRefPrefix, userID, now.UnixMilli())
	if fanTokenID != "" {
		ref += "_" + tokenMarker + "_" + fanTokenID
	}
	return ref
}

// DecodeClickReference extracts the user id and optional fan token id.
// A missing or unparsable timestamp is tolerated and left as zero.
func DecodeClickReference(s string) (ClickReference, error) {
	if !strings.HasPrefix(s, clickRefPrefix) {
		return ClickReference{}, ErrInvalidClickReference
	}

	parts := strings.Split(s, "_")
	if len(parts) < 2 || parts[1] == "" {
		return ClickReference{}, ErrInvalidClickReference
	}

	ref := ClickReference{UserID: parts[1]}
	if len(parts) > 2 {
		if ms, err := strconv.ParseInt(parts[2], 10, 64); err == nil {
			ref.IssuedAtMillis = ms
		}
	}

	for i, part := range parts {
		if part == tokenMarker && i+1 < len(parts) && parts[i+1] != "" {
			ref.FanTokenID = parts[i+1]
			break
		}
	}

	return ref, nil
}
