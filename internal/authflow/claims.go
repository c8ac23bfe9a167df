package authflow

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// tokenClaims is the subset of JWT claims the CLI reads for display.
// Tokens are never validated here (the remote service does that), only
// decoded.
type tokenClaims struct {
	UPN               string `json:"upn"`
	PreferredUsername string `json:"preferred_username"`
	AppID             string `json:"appid"`
	Exp               int64  `json:"exp"`
}

func (c *tokenClaims) username() string {
	if c.UPN != "" {
		return c.UPN
	}

	return c.PreferredUsername
}

// parseClaims decodes the payload segment of a JWT without verifying it.
func parseClaims(token string) (*tokenClaims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, errors.New("token is not a JWT")
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("decoding token payload: %w", err)
	}

	var claims tokenClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("parsing token claims: %w", err)
	}

	return &claims, nil
}

// usernameFromToken extracts a display username from a bearer token, or ""
// when the token is opaque or carries no user identity.
func usernameFromToken(token string) string {
	claims, err := parseClaims(token)
	if err != nil {
		return ""
	}

	return claims.username()
}
