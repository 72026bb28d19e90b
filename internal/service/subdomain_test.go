package service

import (
	"context"
	"testing"
)

func TestDeriveSubdomain(t *testing.T) {
	tests := []struct {
		name    string
		company string
		prefix  string
		want    string
	}{
		{"simple", "Acme", "", "acme"},
		{"spaces collapse to hyphen", "Acme Corp", "", "acme-corp"},
		{"punctuation runs collapse", "Acme!!! & Co.", "", "acme-co"},
		{"mixed case and digits", "42 Tools GmbH", "", "42-tools-gmbh"},
		{"leading and trailing junk trimmed", "  --Acme--  ", "", "acme"},
		{"prefix prepended", "Acme Corp", "demo-", "demo-acme-corp"},
		{"long name truncated", "A Very Long Company Name That Exceeds Limits", "", "a-very-long-company-name-that"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := deriveSubdomain(tt.company, tt.prefix); got != tt.want {
				t.Errorf("deriveSubdomain(%q, %q) = %q, want %q", tt.company, tt.prefix, got, tt.want)
			}
		})
	}
}

func TestResolveSubdomainCollision(t *testing.T) {
	taken := map[string]bool{"acme-corp": true, "acme-corp-1": true}

	svc := &ProvisionService{
		cfg: testConfig(),
		sites: &mockSiteStore{
			subdomainExistsFn: func(ctx context.Context, subdomain string) (bool, error) {
				return taken[subdomain], nil
			},
		},
	}

	got, err := svc.resolveSubdomain(context.Background(), "Acme Corp")
	if err != nil {
		t.Fatalf("resolveSubdomain: %v", err)
	}
	if got != "acme-corp-2" {
		t.Errorf("resolveSubdomain = %q, want %q", got, "acme-corp-2")
	}
}

func TestResolveSubdomainEmptyCompanyName(t *testing.T) {
	svc := &ProvisionService{
		cfg:   testConfig(),
		sites: &mockSiteStore{},
	}

	got, err := svc.resolveSubdomain(context.Background(), "!!!")
	if err != nil {
		t.Fatalf("resolveSubdomain: %v", err)
	}
	if got != "demo" {
		t.Errorf("resolveSubdomain = %q, want %q", got, "demo")
	}
}
