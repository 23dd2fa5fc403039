package models

import (
	"regexp"
	"time"

	"github.com/google/uuid"
)

// TenantStatus represents the lifecycle state of a tenant.
type TenantStatus string

const (
	TenantStatusActive    TenantStatus = "active"
	TenantStatusSuspended TenantStatus = "suspended"
	TenantStatusPending   TenantStatus = "pending"
)

// slugPattern validates tenant slugs: lowercase alphanumeric plus hyphens.
var slugPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// ValidSlug reports whether s is a valid tenant slug.
func ValidSlug(s string) bool {
	return s != "" && len(s) <= 64 && slugPattern.MatchString(s)
}

// TenantSettings holds per-tenant configuration, including upstream credentials.
type TenantSettings struct {
	UpstreamAPIKey        string `json:"upstream_api_key"`
	UpstreamAPIURL        string `json:"upstream_api_url"`
	UpstreamVerifyTLS     bool   `json:"upstream_verify_tls"`
	WebhookToken          string `json:"webhook_token"`
	MaxUsers              int    `json:"max_users"`
	MaxCampaigns          int    `json:"max_campaigns"`
	AllowUserRegistration bool   `json:"allow_user_registration"`
}

// Tenant is an isolated customer organization. The slug (Name) is globally
// unique and immutable after creation; tenants are never deleted, only
// transitioned between statuses.
type Tenant struct {
	ID          uuid.UUID      `json:"id"`
	Name        string         `json:"name"` // slug
	DisplayName string         `json:"display_name"`
	Settings    TenantSettings `json:"settings"`
	Status      TenantStatus   `json:"status"`
	Plan        string         `json:"plan"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Credentials extracts the upstream credentials for this tenant.
func (t *Tenant) Credentials() TenantCredentials {
	return TenantCredentials{
		BaseURL:   t.Settings.UpstreamAPIURL,
		APIKey:    t.Settings.UpstreamAPIKey,
		VerifyTLS: t.Settings.UpstreamVerifyTLS,
	}
}

// TenantCredentials is the immutable credential set used for one upstream
// call. Rotation is a write to Tenant.Settings, never mutation of a live value.
type TenantCredentials struct {
	BaseURL   string
	APIKey    string
	VerifyTLS bool
}

// TenantContext is the resolved, authorized tenant scope for a request.
// It is the only carrier of tenant identity below the resolver layer.
type TenantContext struct {
	TenantID    uuid.UUID
	Credentials TenantCredentials
	Role        string // caller's role within the tenant
}
