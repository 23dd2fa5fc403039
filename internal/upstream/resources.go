package upstream

import (
	"context"
	"fmt"
	"time"
)

// Campaign is the upstream campaign resource, including per-recipient results.
type Campaign struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	Status        string     `json:"status"`
	CreatedDate   *time.Time `json:"created_date,omitempty"`
	LaunchDate    *time.Time `json:"launch_date,omitempty"`
	CompletedDate *time.Time `json:"completed_date,omitempty"`
	Results       []Result   `json:"results,omitempty"`
}

// Result is one recipient's state within an upstream campaign.
type Result struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Status string `json:"status"`
}

// CampaignRequest creates a campaign upstream by referencing the other
// resource families by name.
type CampaignRequest struct {
	Name       string     `json:"name"`
	Template   NamedRef   `json:"template"`
	Page       NamedRef   `json:"page"`
	SMTP       NamedRef   `json:"smtp"`
	URL        string     `json:"url"`
	LaunchDate *time.Time `json:"launch_date,omitempty"`
	Groups     []NamedRef `json:"groups"`
}

// NamedRef references an upstream resource by name.
type NamedRef struct {
	Name string `json:"name"`
}

// Group is a set of target recipients.
type Group struct {
	ID      int64    `json:"id"`
	Name    string   `json:"name"`
	Targets []Target `json:"targets"`
}

// Target is one recipient within a group.
type Target struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Position  string `json:"position,omitempty"`
}

// Template is an email template.
type Template struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	Subject string `json:"subject"`
	Text    string `json:"text,omitempty"`
	HTML    string `json:"html,omitempty"`
}

// Page is a landing page.
type Page struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	HTML               string `json:"html"`
	CaptureCredentials bool   `json:"capture_credentials"`
	CapturePasswords   bool   `json:"capture_passwords"`
	RedirectURL        string `json:"redirect_url,omitempty"`
}

// SMTPProfile is a sending profile.
type SMTPProfile struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	Host             string `json:"host"`
	FromAddress      string `json:"from_address"`
	Username         string `json:"username,omitempty"`
	Password         string `json:"password,omitempty"`
	IgnoreCertErrors bool   `json:"ignore_cert_errors"`
}

// APIUser is a user account on the upstream service itself.
type APIUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role,omitempty"`
}

// Campaigns

func (c *Client) ListCampaigns(ctx context.Context) ([]Campaign, error) {
	var out []Campaign
	if err := c.get(ctx, "/api/campaigns/", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetCampaign(ctx context.Context, id int64) (*Campaign, error) {
	var out Campaign
	if err := c.get(ctx, fmt.Sprintf("/api/campaigns/%d", id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetCampaignResults(ctx context.Context, id int64) (*Campaign, error) {
	var out Campaign
	if err := c.get(ctx, fmt.Sprintf("/api/campaigns/%d/results", id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateCampaign(ctx context.Context, req CampaignRequest) (*Campaign, error) {
	var out Campaign
	if err := c.post(ctx, "/api/campaigns/", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CompleteCampaign(ctx context.Context, id int64) error {
	return c.get(ctx, fmt.Sprintf("/api/campaigns/%d/complete", id), nil)
}

func (c *Client) DeleteCampaign(ctx context.Context, id int64) error {
	return c.delete(ctx, fmt.Sprintf("/api/campaigns/%d", id))
}

// Groups

func (c *Client) ListGroups(ctx context.Context) ([]Group, error) {
	var out []Group
	if err := c.get(ctx, "/api/groups/", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetGroup(ctx context.Context, id int64) (*Group, error) {
	var out Group
	if err := c.get(ctx, fmt.Sprintf("/api/groups/%d", id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateGroup(ctx context.Context, g Group) (*Group, error) {
	var out Group
	if err := c.post(ctx, "/api/groups/", g, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateGroup(ctx context.Context, g Group) (*Group, error) {
	var out Group
	if err := c.put(ctx, fmt.Sprintf("/api/groups/%d", g.ID), g, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteGroup(ctx context.Context, id int64) error {
	return c.delete(ctx, fmt.Sprintf("/api/groups/%d", id))
}

// ImportGroupCSV parses a CSV of recipients upstream and returns the targets.
func (c *Client) ImportGroupCSV(ctx context.Context, csv []byte) ([]Target, error) {
	var out []Target
	if err := c.post(ctx, "/api/import/group", map[string]string{"content": string(csv)}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Templates

func (c *Client) ListTemplates(ctx context.Context) ([]Template, error) {
	var out []Template
	if err := c.get(ctx, "/api/templates/", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetTemplate(ctx context.Context, id int64) (*Template, error) {
	var out Template
	if err := c.get(ctx, fmt.Sprintf("/api/templates/%d", id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateTemplate(ctx context.Context, t Template) (*Template, error) {
	var out Template
	if err := c.post(ctx, "/api/templates/", t, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateTemplate(ctx context.Context, t Template) (*Template, error) {
	var out Template
	if err := c.put(ctx, fmt.Sprintf("/api/templates/%d", t.ID), t, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteTemplate(ctx context.Context, id int64) error {
	return c.delete(ctx, fmt.Sprintf("/api/templates/%d", id))
}

// ImportEmail converts a raw email (headers + body) into template content.
func (c *Client) ImportEmail(ctx context.Context, raw string, convertLinks bool) (*Template, error) {
	var out Template
	body := map[string]interface{}{"content": raw, "convert_links": convertLinks}
	if err := c.post(ctx, "/api/import/email", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Landing pages

func (c *Client) ListPages(ctx context.Context) ([]Page, error) {
	var out []Page
	if err := c.get(ctx, "/api/pages/", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetPage(ctx context.Context, id int64) (*Page, error) {
	var out Page
	if err := c.get(ctx, fmt.Sprintf("/api/pages/%d", id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreatePage(ctx context.Context, p Page) (*Page, error) {
	var out Page
	if err := c.post(ctx, "/api/pages/", p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdatePage(ctx context.Context, p Page) (*Page, error) {
	var out Page
	if err := c.put(ctx, fmt.Sprintf("/api/pages/%d", p.ID), p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeletePage(ctx context.Context, id int64) error {
	return c.delete(ctx, fmt.Sprintf("/api/pages/%d", id))
}

// ImportSite fetches a URL upstream and converts it into landing page HTML.
func (c *Client) ImportSite(ctx context.Context, url string, includeResources bool) (*Page, error) {
	var out Page
	body := map[string]interface{}{"url": url, "include_resources": includeResources}
	if err := c.post(ctx, "/api/import/site", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SMTP sending profiles

func (c *Client) ListSMTPProfiles(ctx context.Context) ([]SMTPProfile, error) {
	var out []SMTPProfile
	if err := c.get(ctx, "/api/smtp/", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetSMTPProfile(ctx context.Context, id int64) (*SMTPProfile, error) {
	var out SMTPProfile
	if err := c.get(ctx, fmt.Sprintf("/api/smtp/%d", id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateSMTPProfile(ctx context.Context, p SMTPProfile) (*SMTPProfile, error) {
	var out SMTPProfile
	if err := c.post(ctx, "/api/smtp/", p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateSMTPProfile(ctx context.Context, p SMTPProfile) (*SMTPProfile, error) {
	var out SMTPProfile
	if err := c.put(ctx, fmt.Sprintf("/api/smtp/%d", p.ID), p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteSMTPProfile(ctx context.Context, id int64) error {
	return c.delete(ctx, fmt.Sprintf("/api/smtp/%d", id))
}

// Upstream users

func (c *Client) ListUsers(ctx context.Context) ([]APIUser, error) {
	var out []APIUser
	if err := c.get(ctx, "/api/users/", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetUser(ctx context.Context, id int64) (*APIUser, error) {
	var out APIUser
	if err := c.get(ctx, fmt.Sprintf("/api/users/%d", id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateUser(ctx context.Context, u APIUser) (*APIUser, error) {
	var out APIUser
	if err := c.post(ctx, "/api/users/", u, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateUser(ctx context.Context, u APIUser) (*APIUser, error) {
	var out APIUser
	if err := c.put(ctx, fmt.Sprintf("/api/users/%d", u.ID), u, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteUser(ctx context.Context, id int64) error {
	return c.delete(ctx, fmt.Sprintf("/api/users/%d", id))
}
