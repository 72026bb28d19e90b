package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/chinmaybhatk/frappe-kit/internal/config"
)

// RemoteError is returned for any non-2xx or malformed response from
// Frappe Cloud. The raw body is kept for diagnostics.
type RemoteError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("frappe cloud %s failed: status %d: %s", e.Operation, e.StatusCode, e.Body)
}

// CloudClient drives the Frappe Cloud site lifecycle API. It performs no
// retries; retry policy belongs to the calling workflow.
type CloudClient struct {
	baseURL   string
	apiKey    string
	apiSecret string
	team      string

	httpClient *http.Client
	readClient *http.Client
}

// NewCloudClient creates a Frappe Cloud client. Missing credentials are a
// fatal configuration error.
func NewCloudClient(cfg config.CloudConfig) (*CloudClient, error) {
	if cfg.APIKey == "" || cfg.APISecret == "" || cfg.Team == "" {
		return nil, fmt.Errorf("frappe cloud API credentials not configured")
	}

	return &CloudClient{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		team:       cfg.Team,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		readClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// CreateSiteResult is the parsed result of a site creation call
type CreateSiteResult struct {
	Name string `json:"name"`
}

// SiteStatus is the parsed status of a remote site
type SiteStatus struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// Backup describes one remote backup, most recent first in listings
type Backup struct {
	URL        string `json:"url"`
	RemoteFile string `json:"remote_file"`
	CreatedAt  string `json:"creation"`
}

// DownloadURL returns the usable download location for the backup, if any.
func (b Backup) DownloadURL() string {
	if b.URL != "" {
		return b.URL
	}
	return b.RemoteFile
}

// CreateSite creates a new site. dedupKey travels with the payload so a
// redelivered job re-creating a site is detectable remote-side.
func (c *CloudClient) CreateSite(ctx context.Context, subdomain string, apps []string, plan, cluster, dedupKey string) (string, error) {
	log.Printf("[CloudAPI] Creating site %s (plan: %s, cluster: %s)", subdomain, plan, cluster)

	payload := map[string]any{
		"site": map[string]any{
			"subdomain": subdomain,
			"apps":      apps,
			"cluster":   cluster,
			"plan":      plan,
			"team":      c.team,
			"dedup_key": dedupKey,
		},
	}

	var result struct {
		Message CreateSiteResult `json:"message"`
	}
	if err := c.post(ctx, "createSite", "/press.api.site.new", payload, &result); err != nil {
		return "", err
	}

	log.Printf("[CloudAPI] Site created: %s", result.Message.Name)
	return result.Message.Name, nil
}

// GetSiteStatus checks site provisioning status
func (c *CloudClient) GetSiteStatus(ctx context.Context, siteName string) (*SiteStatus, error) {
	var result struct {
		Message SiteStatus `json:"message"`
	}
	if err := c.get(ctx, "getSiteStatus", "/press.api.site.get", url.Values{"name": {siteName}}, &result); err != nil {
		return nil, err
	}
	return &result.Message, nil
}

// InstallApp installs an app on an existing site
func (c *CloudClient) InstallApp(ctx context.Context, siteName, appName string) error {
	log.Printf("[CloudAPI] Installing %s on %s", appName, siteName)

	payload := map[string]any{"name": siteName, "app": appName}
	return c.post(ctx, "installApp", "/press.api.site.install_app", payload, nil)
}

// ChangePlan changes a site's subscription plan
func (c *CloudClient) ChangePlan(ctx context.Context, siteName, newPlan string) error {
	log.Printf("[CloudAPI] Changing plan of %s to %s", siteName, newPlan)

	payload := map[string]any{"name": siteName, "plan": newPlan}
	return c.post(ctx, "changePlan", "/press.api.site.change_plan", payload, nil)
}

// CreateBackup triggers a backup (with files) for a site
func (c *CloudClient) CreateBackup(ctx context.Context, siteName string) error {
	log.Printf("[CloudAPI] Triggering backup for %s", siteName)

	payload := map[string]any{"name": siteName, "with_files": true}
	return c.post(ctx, "createBackup", "/press.api.site.backup", payload, nil)
}

// ListBackups returns available backups for a site, most recent first
func (c *CloudClient) ListBackups(ctx context.Context, siteName string) ([]Backup, error) {
	var result struct {
		Message []Backup `json:"message"`
	}
	if err := c.get(ctx, "listBackups", "/press.api.site.backups", url.Values{"name": {siteName}}, &result); err != nil {
		return nil, err
	}
	return result.Message, nil
}

func (c *CloudClient) post(ctx context.Context, operation, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	return c.do(c.httpClient, req, operation, out)
}

func (c *CloudClient) get(ctx context.Context, operation, path string, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	return c.do(c.readClient, req, operation, out)
}

func (c *CloudClient) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", fmt.Sprintf("token %s:%s", c.apiKey, c.apiSecret))
	req.Header.Set("Content-Type", "application/json")
}

func (c *CloudClient) do(hc *http.Client, req *http.Request, operation string, out any) error {
	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RemoteError{Operation: operation, StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return &RemoteError{Operation: operation, StatusCode: resp.StatusCode, Body: string(respBody)}
		}
	}

	return nil
}
