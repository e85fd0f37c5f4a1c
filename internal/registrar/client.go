// Package registrar talks to the domain registrar's XML-over-HTTP API.
package registrar

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pratamalabs/domaindesk/internal/config"
	"github.com/pratamalabs/domaindesk/internal/httpx"
	"github.com/pratamalabs/domaindesk/internal/logger"
)

// ErrMissingCredentials is returned when an API call is attempted without the
// registrar credentials configured. Checked at call time, not at startup, so
// the rest of the service runs without them.
var ErrMissingCredentials = errors.New("registrar credentials not configured")

// ProtocolError is a well-formed error response from the registrar API.
type ProtocolError struct {
	Status   string
	Messages []string
}

func (e *ProtocolError) Error() string {
	if len(e.Messages) == 0 {
		return fmt.Sprintf("registrar api status %s", e.Status)
	}
	return fmt.Sprintf("registrar api status %s: %s", e.Status, strings.Join(e.Messages, "; "))
}

const expiryLayout = "01/02/2006"

// Domain is one entry from the registrar's portfolio listing.
type Domain struct {
	ID         string
	Name       string
	Owner      string
	Created    string
	Expires    time.Time
	IsExpired  bool
	IsLocked   bool
	AutoRenew  bool
	WhoisGuard string
	IsPremium  bool
	IsOurDNS   bool
}

// RenewResult reports the outcome of a renew or reactivate command.
type RenewResult struct {
	DomainName    string
	ChargedAmount string
	OrderID       string
	TransactionID string
}

// Info is the raw per-domain detail from the getInfo command.
type Info struct {
	Name        string
	Status      string
	IsOwner     bool
	CreatedDate string
	ExpiredDate string
	Nameservers []string
}

type Client struct {
	cfg        config.RegistrarConfig
	httpClient *http.Client
	logger     logger.Logger
}

// NewClient builds a registrar client. httpClient may be nil, in which case a
// default client is used.
func NewClient(cfg config.RegistrarConfig, httpClient *http.Client, log logger.Logger) *Client {
	if httpClient == nil {
		httpClient = httpx.NewDefaultClient()
	}
	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     log,
	}
}

func (c *Client) checkCredentials() error {
	switch {
	case c.cfg.APIUser == "":
		return fmt.Errorf("%w: api user", ErrMissingCredentials)
	case c.cfg.APIKey == "":
		return fmt.Errorf("%w: api key", ErrMissingCredentials)
	case c.cfg.Username == "":
		return fmt.Errorf("%w: username", ErrMissingCredentials)
	case c.cfg.ClientIP == "":
		return fmt.Errorf("%w: client ip", ErrMissingCredentials)
	}
	return nil
}

// do issues one API command and decodes the response envelope into out, which
// must embed envelope. A non-OK status becomes a ProtocolError.
func (c *Client) do(ctx context.Context, command string, params url.Values, out responseEnvelope) error {
	if err := c.checkCredentials(); err != nil {
		return err
	}

	query := url.Values{}
	query.Set("ApiUser", c.cfg.APIUser)
	query.Set("ApiKey", c.cfg.APIKey)
	query.Set("UserName", c.cfg.Username)
	query.Set("ClientIp", c.cfg.ClientIP)
	query.Set("Command", command)
	for key, values := range params {
		for _, v := range values {
			query.Add(key, v)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"?"+query.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("call registrar api: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if err := xml.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	env := out.env()
	if !strings.EqualFold(env.Status, "OK") {
		messages := make([]string, 0, len(env.Errors.Errors))
		for _, apiErr := range env.Errors.Errors {
			messages = append(messages, strings.TrimSpace(apiErr.Message))
		}
		return &ProtocolError{Status: env.Status, Messages: messages}
	}

	return nil
}

// ListDomains pages through the full portfolio. Pagination stops when a page
// comes back shorter than the configured page size.
func (c *Client) ListDomains(ctx context.Context) ([]Domain, error) {
	pageSize := c.cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}

	var all []Domain
	for page := 1; ; page++ {
		params := url.Values{}
		params.Set("PageSize", fmt.Sprintf("%d", pageSize))
		params.Set("Page", fmt.Sprintf("%d", page))

		var resp domainListResponse
		if err := c.do(ctx, "namecheap.domains.getList", params, &resp); err != nil {
			return nil, fmt.Errorf("list domains page %d: %w", page, err)
		}

		items := resp.CommandResponse.Domains
		for _, item := range items {
			domain, err := item.toDomain()
			if err != nil {
				return nil, fmt.Errorf("parse domain %q: %w", item.Name, err)
			}
			all = append(all, domain)
		}

		c.logger.Debug("Fetched registrar page",
			logger.Int("page", page),
			logger.Int("items", len(items)),
		)

		if len(items) < pageSize {
			break
		}
	}

	return all, nil
}

// Reactivate re-registers an expired domain.
func (c *Client) Reactivate(ctx context.Context, name string) (*RenewResult, error) {
	params := url.Values{}
	params.Set("DomainName", name)

	var resp reactivateResponse
	if err := c.do(ctx, "namecheap.domains.reactivate", params, &resp); err != nil {
		return nil, fmt.Errorf("reactivate %q: %w", name, err)
	}

	result := resp.CommandResponse.Result
	if result.Domain == "" {
		return nil, &ProtocolError{Status: "OK", Messages: []string{"missing reactivate result"}}
	}
	return &RenewResult{
		DomainName:    result.Domain,
		ChargedAmount: result.ChargedAmount,
		OrderID:       result.OrderID,
		TransactionID: result.TransactionID,
	}, nil
}

// Renew extends a domain's registration by the given number of years.
func (c *Client) Renew(ctx context.Context, name string, years int) (*RenewResult, error) {
	if years <= 0 {
		years = 1
	}
	params := url.Values{}
	params.Set("DomainName", name)
	params.Set("Years", fmt.Sprintf("%d", years))

	var resp renewResponse
	if err := c.do(ctx, "namecheap.domains.renew", params, &resp); err != nil {
		return nil, fmt.Errorf("renew %q: %w", name, err)
	}

	result := resp.CommandResponse.Result
	if result.DomainName == "" {
		return nil, &ProtocolError{Status: "OK", Messages: []string{"missing renew result"}}
	}
	return &RenewResult{
		DomainName:    result.DomainName,
		ChargedAmount: result.ChargedAmount,
		OrderID:       result.OrderID,
		TransactionID: result.TransactionID,
	}, nil
}

// GetInfo fetches per-domain detail.
func (c *Client) GetInfo(ctx context.Context, name string) (*Info, error) {
	params := url.Values{}
	params.Set("DomainName", name)

	var resp infoResponse
	if err := c.do(ctx, "namecheap.domains.getInfo", params, &resp); err != nil {
		return nil, fmt.Errorf("get info %q: %w", name, err)
	}

	result := resp.CommandResponse.Result
	return &Info{
		Name:        result.DomainName,
		Status:      result.Status,
		IsOwner:     parseBool(result.IsOwner),
		CreatedDate: result.Details.CreatedDate,
		ExpiredDate: result.Details.ExpiredDate,
		Nameservers: result.DNSDetails.Nameservers,
	}, nil
}

func (i domainItem) toDomain() (Domain, error) {
	expires, err := time.Parse(expiryLayout, i.Expires)
	if err != nil {
		return Domain{}, fmt.Errorf("parse expiry %q: %w", i.Expires, err)
	}
	return Domain{
		ID:         i.ID,
		Name:       i.Name,
		Owner:      i.User,
		Created:    i.Created,
		Expires:    expires,
		IsExpired:  parseBool(i.IsExpired),
		IsLocked:   parseBool(i.IsLocked),
		AutoRenew:  parseBool(i.AutoRenew),
		WhoisGuard: i.WhoisGuard,
		IsPremium:  parseBool(i.IsPremium),
		IsOurDNS:   parseBool(i.IsOurDNS),
	}, nil
}

// parseBool accepts the API's boolean spellings in any case. Anything
// unrecognized is false.
func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes":
		return true
	}
	return false
}
