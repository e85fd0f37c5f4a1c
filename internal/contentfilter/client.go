// Package contentfilter checks domains against the national content filter
// by scraping its public lookup form.
package contentfilter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/pratamalabs/domaindesk/internal/config"
	"github.com/pratamalabs/domaindesk/internal/logger"
	"github.com/pratamalabs/domaindesk/internal/models"
)

const (
	homePath   = "/"
	lookupPath = "/Rest_server/getrecordsname_home"
)

// StatusMap maps normalized domain names to blocked status. Every result is
// also registered under its www-stripped alias, so "www.example.com" answers
// lookups for "example.com" and vice versa.
type StatusMap map[string]bool

// Blocked reports the status for name, trying the exact key first and the
// www-stripped alias second.
func (m StatusMap) Blocked(name string) (blocked, ok bool) {
	key := models.NameKey(name)
	if blocked, ok = m[key]; ok {
		return blocked, true
	}
	blocked, ok = m[models.StripWWW(key)]
	return blocked, ok
}

func (m StatusMap) add(name string, blocked bool) {
	key := models.NameKey(name)
	m[key] = blocked
	if alias := models.StripWWW(key); alias != key {
		m[alias] = blocked
	}
}

type Client struct {
	cfg          config.ContentFilterConfig
	newTransport func() (Transport, error)
	logger       logger.Logger
}

// NewClient builds a checker using the transport named in cfg. httpClient is
// only used by the direct transport and may be nil.
func NewClient(cfg config.ContentFilterConfig, httpClient *http.Client, log logger.Logger) *Client {
	var factory func() (Transport, error)
	if cfg.Transport == "curl" {
		factory = func() (Transport, error) { return newCurlTransport(cfg) }
	} else {
		factory = func() (Transport, error) { return newDirectTransport(cfg, httpClient) }
	}
	return &Client{
		cfg:          cfg,
		newTransport: factory,
		logger:       log,
	}
}

// CheckAll looks up the block status of every name. A failure in any batch
// fails the whole check, so callers never see a partially-populated result
// presented as complete.
func (c *Client) CheckAll(ctx context.Context, names []string) (StatusMap, error) {
	statuses := make(StatusMap)
	if len(names) == 0 {
		return statuses, nil
	}

	transport, err := c.newTransport()
	if err != nil {
		return nil, err
	}
	defer func() {
		if closeErr := transport.Close(); closeErr != nil {
			c.logger.Warn("Failed to close filter transport", logger.Error(closeErr))
		}
	}()

	batchSize := c.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}
	for start := 0; start < len(names); start += batchSize {
		end := start + batchSize
		if end > len(names) {
			end = len(names)
		}
		if err := c.checkBatch(ctx, transport, names[start:end], statuses); err != nil {
			return nil, err
		}
	}

	return statuses, nil
}

type lookupResponse struct {
	Values []struct {
		Domain string `json:"Domain"`
		Status string `json:"Status"`
	} `json:"values"`
}

// checkBatch runs one full check cycle: fetch the form page, extract a fresh
// csrf token, submit the batch. Tokens are not reused across batches; the
// service invalidates them on use.
func (c *Client) checkBatch(ctx context.Context, transport Transport, batch []string, statuses StatusMap) error {
	home, err := transport.Get(ctx, homePath)
	if err != nil {
		return fmt.Errorf("fetch filter home page: %w", err)
	}
	csrfToken, err := extractCSRFToken(home)
	if err != nil {
		return err
	}

	form := url.Values{}
	form.Set("csrf_token", csrfToken)
	form.Set("name", strings.Join(batch, "\n"))

	body, statusCode, err := transport.PostForm(ctx, lookupPath, form)
	if err != nil {
		return fmt.Errorf("submit filter lookup: %w", err)
	}
	if statusCode < 200 || statusCode >= 300 {
		return &ProtocolError{StatusCode: statusCode, BodyPreview: preview(body)}
	}

	var resp lookupResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return &ProtocolError{StatusCode: statusCode, BodyPreview: preview(body)}
	}

	answered := make(map[string]string, len(resp.Values))
	for _, v := range resp.Values {
		answered[models.NameKey(v.Domain)] = v.Status
	}

	var missing []string
	for _, name := range batch {
		status, ok := answered[models.NameKey(name)]
		if !ok {
			missing = append(missing, name)
			continue
		}
		blocked, known := classifyStatus(status)
		if !known {
			c.logger.Warn("Unknown filter status value",
				logger.String("domain", name),
				logger.String("status", status),
			)
		}
		statuses.add(name, blocked)
	}
	if len(missing) > 0 {
		return &IncompleteError{Missing: missing}
	}
	return nil
}

// classifyStatus maps the service's status vocabulary (it answers in both
// Indonesian and English) onto blocked/not-blocked. Unrecognized values
// default to not blocked.
func classifyStatus(status string) (blocked, known bool) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "ada", "blocked", "terblokir", "yes", "1":
		return true, true
	case "tidak ada", "allowed", "tidak terblokir", "no", "0", "":
		return false, true
	}
	return false, false
}

// Fallback patterns for when the page no longer parses as HTML goquery can
// handle; both attribute orderings occur in the wild.
var (
	csrfNameFirst  = regexp.MustCompile(`name=["']csrf_token["'][^>]*value=["']([^"']+)["']`)
	csrfValueFirst = regexp.MustCompile(`value=["']([^"']+)["'][^>]*name=["']csrf_token["']`)
)

func extractCSRFToken(page []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(page)))
	if err == nil {
		if value, ok := doc.Find(`input[name="csrf_token"]`).Attr("value"); ok && value != "" {
			return value, nil
		}
	}
	if m := csrfNameFirst.FindSubmatch(page); m != nil {
		return string(m[1]), nil
	}
	if m := csrfValueFirst.FindSubmatch(page); m != nil {
		return string(m[1]), nil
	}
	return "", &CSRFError{BodyPreview: preview(page)}
}
