package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/chinmaybhatk/frappe-kit/internal/config"
)

const tokenLength = 32

// TokenService issues and validates the conversion capability tokens. A
// token authorizes exactly one action (initiate conversion) on exactly one
// site; reissuing invalidates the previous token.
type TokenService struct {
	sites       DemoSiteStore
	secret      []byte
	expiryHours int

	now func() time.Time
}

func NewTokenService(sites DemoSiteStore, cfg *config.Config) *TokenService {
	expiryHours := cfg.Provisioner.TokenExpiryHours
	if expiryHours <= 0 {
		expiryHours = 72
	}

	return &TokenService{
		sites:       sites,
		secret:      []byte(cfg.InstallationSecret),
		expiryHours: expiryHours,
		now:         time.Now,
	}
}

// Issue derives a token for the site and persists it, overwriting any
// prior token.
func (s *TokenService) Issue(ctx context.Context, siteID string) (string, error) {
	issued := s.now()

	mac := hmac.New(sha256.New, s.secret)
	fmt.Fprintf(mac, "%s:%d", siteID, issued.Unix())
	token := hex.EncodeToString(mac.Sum(nil))[:tokenLength]

	if err := s.sites.SetConversionToken(ctx, siteID, token, issued); err != nil {
		return "", fmt.Errorf("store conversion token: %w", err)
	}

	return token, nil
}

// Validate reports whether the token authorizes a conversion of the site.
// It fails closed: any missing piece, mismatch or expiry yields false.
func (s *TokenService) Validate(ctx context.Context, token, siteID string) bool {
	if token == "" || siteID == "" {
		return false
	}

	site, err := s.sites.GetByID(ctx, siteID)
	if err != nil {
		return false
	}

	if site.ConversionToken == nil || *site.ConversionToken == "" {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(*site.ConversionToken), []byte(token)) != 1 {
		return false
	}

	if site.ConversionTokenIssued == nil {
		return false
	}
	expiry := site.ConversionTokenIssued.Add(time.Duration(s.expiryHours) * time.Hour)
	if s.now().After(expiry) {
		return false
	}

	return true
}
