package service

import (
	"context"
	"fmt"
	"strings"
)

const maxSubdomainLen = 30

// deriveSubdomain turns a company name into a DNS-safe subdomain:
// lowercase, [a-z0-9-] only, runs of other characters collapsed to a
// single hyphen, no leading/trailing hyphen, at most 30 characters before
// the optional prefix.
func deriveSubdomain(companyName, prefix string) string {
	var b strings.Builder
	lastHyphen := false
	for _, r := range strings.ToLower(companyName) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastHyphen = false
			continue
		}
		if !lastHyphen {
			b.WriteByte('-')
			lastHyphen = true
		}
	}

	sub := strings.Trim(b.String(), "-")
	if len(sub) > maxSubdomainLen {
		sub = strings.Trim(sub[:maxSubdomainLen], "-")
	}

	return prefix + sub
}

// resolveSubdomain derives a subdomain and resolves collisions against
// existing demo sites with a numeric suffix.
func (s *ProvisionService) resolveSubdomain(ctx context.Context, companyName string) (string, error) {
	base := deriveSubdomain(companyName, s.cfg.Provisioner.SubdomainPrefix)
	if base == s.cfg.Provisioner.SubdomainPrefix {
		base = s.cfg.Provisioner.SubdomainPrefix + "demo"
	}

	sub := base
	for counter := 1; ; counter++ {
		exists, err := s.sites.SubdomainExists(ctx, sub)
		if err != nil {
			return "", fmt.Errorf("check subdomain: %w", err)
		}
		if !exists {
			return sub, nil
		}
		sub = fmt.Sprintf("%s-%d", base, counter)
	}
}
