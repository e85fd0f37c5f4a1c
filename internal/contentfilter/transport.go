package contentfilter

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pratamalabs/domaindesk/internal/config"
	"github.com/pratamalabs/domaindesk/internal/httpx"
)

// Transport is one scraping session against the filter service. Get fetches a
// page (establishing session state), PostForm submits a lookup using that
// state. A Transport is good for one session; Close releases whatever the
// session holds.
type Transport interface {
	Get(ctx context.Context, path string) ([]byte, error)
	PostForm(ctx context.Context, path string, form url.Values) (body []byte, statusCode int, err error)
	Close() error
}

// directTransport drives the session with a plain HTTP client. When the base
// URL points at an IP the configured hostname is pinned as both the Host
// header and the TLS server name.
type directTransport struct {
	baseURL    string
	host       string
	httpClient *http.Client
	cookies    string
}

func newDirectTransport(cfg config.ContentFilterConfig, httpClient *http.Client) (*directTransport, error) {
	if httpClient == nil {
		var err error
		httpClient, err = httpx.NewClient(&httpx.ClientConfig{
			Timeout:       cfg.Timeout,
			TLSServerName: cfg.Host,
			LocalAddr:     cfg.LocalAddr,
		})
		if err != nil {
			return nil, fmt.Errorf("build filter http client: %w", err)
		}
	}
	return &directTransport{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		host:       cfg.Host,
		httpClient: httpClient,
	}, nil
}

func (t *directTransport) Get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	t.setCommonHeaders(req)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", path, err)
	}
	defer resp.Body.Close()

	// The session cookie arrives on the home page response and must ride
	// along on the lookup POST.
	if cookies := resp.Header.Values("Set-Cookie"); len(cookies) > 0 {
		parts := make([]string, 0, len(cookies))
		for _, c := range cookies {
			if i := strings.Index(c, ";"); i >= 0 {
				c = c[:i]
			}
			parts = append(parts, strings.TrimSpace(c))
		}
		t.cookies = strings.Join(parts, "; ")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}

func (t *directTransport) PostForm(ctx context.Context, path string, form url.Values) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	t.setCommonHeaders(req)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", t.baseURL+"/")
	if t.cookies != "" {
		req.Header.Set("Cookie", t.cookies)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("post %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return body, resp.StatusCode, nil
}

func (t *directTransport) setCommonHeaders(req *http.Request) {
	if t.host != "" {
		req.Host = t.host
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36")
	req.Header.Set("Accept", "*/*")
}

func (t *directTransport) Close() error {
	t.cookies = ""
	return nil
}
