package registrar

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/systmms/pidops/internal/ezid"
	"github.com/systmms/pidops/pkg/identifier"
)

// Request describes one registrar lifecycle call.
type Request struct {
	Operation identifier.Operation

	// Target is the identifier being acted on, e.g. "ark:/99999/fk4abc",
	// or an absolute registrar URL. For mints it overrides the configured
	// shoulder.
	Target string

	// Metadata is sent as the ANVL request body for create, update and mint.
	Metadata map[string]string
}

// method returns the HTTP method the registrar expects for op.
func method(op identifier.Operation) string {
	switch op {
	case identifier.OperationCreate:
		return http.MethodPut
	case identifier.OperationUpdate, identifier.OperationMint:
		return http.MethodPost
	case identifier.OperationDelete:
		return http.MethodDelete
	}
	return ""
}

// targetURL resolves the request target against the registrar base URL.
func (r Request) targetURL(baseURL string, cfg identifier.Config) (string, error) {
	if r.Operation == identifier.OperationMint {
		shoulder := r.Target
		if shoulder == "" {
			shoulder = cfg.Shoulder
		}
		if shoulder == "" {
			return "", &identifier.ConfigError{
				Name:    cfg.Name,
				Message: "no shoulder configured for minting",
			}
		}
		return baseURL + "/shoulder/" + escapeIdentifier(shoulder), nil
	}

	target := strings.TrimSpace(r.Target)
	if target == "" {
		return "", fmt.Errorf("target identifier is required for %s", r.Operation)
	}
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return target, nil
	}
	return baseURL + "/id/" + escapeIdentifier(target), nil
}

// build creates the HTTP request with basic auth and, for everything but
// deletes, an ANVL body.
func (r Request) build(ctx context.Context, url string, creds identifier.Credentials) (*http.Request, error) {
	var body io.Reader
	if r.Operation != identifier.OperationDelete {
		body = bytes.NewBufferString(ezid.Encode(r.Metadata))
	}

	req, err := http.NewRequestWithContext(ctx, method(r.Operation), url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.SetBasicAuth(creds.Username, creds.Password)
	req.Header.Set("Accept", "text/plain")
	if body != nil {
		req.Header.Set("Content-Type", "text/plain; charset=UTF-8")
	}
	return req, nil
}

// escapeIdentifier percent-encodes characters that cannot appear in a URL
// path while keeping the "/" and ":" separators identifiers rely on.
func escapeIdentifier(id string) string {
	var b strings.Builder
	for i := 0; i < len(id); i++ {
		c := id[i]
		if isPathSafe(c) {
			b.WriteByte(c)
			continue
		}
		fmt.Fprintf(&b, "%%%02X", c)
	}
	return b.String()
}

func isPathSafe(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	return strings.IndexByte("-._~/:@!$&'()*+,;=", c) >= 0
}
