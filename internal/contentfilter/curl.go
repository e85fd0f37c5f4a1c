package contentfilter

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/pratamalabs/domaindesk/internal/config"
)

// curlTransport shells out to curl for hosts where Go's TLS stack is
// fingerprinted and rejected by the filter's CDN. Session cookies live in a
// temp jar file shared between the GET and the POST.
type curlTransport struct {
	baseURL  string
	host     string
	curlPath string
	jarPath  string
}

func newCurlTransport(cfg config.ContentFilterConfig) (*curlTransport, error) {
	jar, err := os.CreateTemp("", "filter-cookies-*.txt")
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	jar.Close()

	return &curlTransport{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		host:     cfg.Host,
		curlPath: cfg.CurlPath,
		jarPath:  jar.Name(),
	}, nil
}

func (t *curlTransport) Get(ctx context.Context, path string) ([]byte, error) {
	args := t.commonArgs()
	args = append(args, "-c", t.jarPath, t.baseURL+path)

	body, _, err := t.run(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("curl get %s: %w", path, err)
	}
	return body, nil
}

func (t *curlTransport) PostForm(ctx context.Context, path string, form url.Values) ([]byte, int, error) {
	args := t.commonArgs()
	args = append(args,
		"-b", t.jarPath,
		"-H", "Content-Type: application/x-www-form-urlencoded",
		"-H", "Referer: "+t.baseURL+"/",
		"--data-raw", form.Encode(),
		t.baseURL+path,
	)

	body, status, err := t.run(ctx, args)
	if err != nil {
		return nil, 0, fmt.Errorf("curl post %s: %w", path, err)
	}
	return body, status, nil
}

func (t *curlTransport) commonArgs() []string {
	args := []string{"-s", "-S", "--compressed"}
	if t.host != "" {
		args = append(args, "-H", "Host: "+t.host)
	}
	return args
}

// run executes curl with a trailing status-code marker so the HTTP status
// survives the subprocess boundary.
func (t *curlTransport) run(ctx context.Context, args []string) ([]byte, int, error) {
	args = append(args, "-w", "\n%{http_code}")

	cmd := exec.CommandContext(ctx, t.curlPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, 0, fmt.Errorf("run curl: %w (stderr: %s)", err, preview(stderr.Bytes()))
	}

	out := stdout.Bytes()
	idx := bytes.LastIndexByte(out, '\n')
	if idx < 0 {
		return nil, 0, fmt.Errorf("curl output missing status marker")
	}
	status, err := strconv.Atoi(strings.TrimSpace(string(out[idx+1:])))
	if err != nil {
		return nil, 0, fmt.Errorf("parse curl status %q: %w", string(out[idx+1:]), err)
	}
	return out[:idx], status, nil
}

func (t *curlTransport) Close() error {
	if t.jarPath == "" {
		return nil
	}
	err := os.Remove(t.jarPath)
	t.jarPath = ""
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove cookie jar: %w", err)
	}
	return nil
}
