// Package registrar issues identifier lifecycle requests (create, update,
// delete and mint) against an EZID-style registrar and reports the parsed
// outcome.
package registrar

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/systmms/pidops/internal/ezid"
	"github.com/systmms/pidops/internal/logging"
	"github.com/systmms/pidops/internal/metrics"
	"github.com/systmms/pidops/pkg/condition"
	"github.com/systmms/pidops/pkg/identifier"
)

const (
	// DefaultBaseURL is the CDL EZID API root.
	DefaultBaseURL = "https://ezid.cdlib.org"

	// DefaultTimeout bounds a registrar call when no timeout is configured.
	DefaultTimeout = 30 * time.Second

	maxResponseBytes = 1 << 20
)

// Logger receives one record per completed registrar call.
type Logger interface {
	Info(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// HTTPDoer sends HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// CredentialResolver returns the registrar credentials for an identifier
// configuration.
type CredentialResolver interface {
	ResolveCredentials(ctx context.Context, cfg identifier.Config) (identifier.Credentials, error)
}

type storeResolver struct {
	store identifier.CredentialStore
}

func (s storeResolver) ResolveCredentials(ctx context.Context, cfg identifier.Config) (identifier.Credentials, error) {
	return s.store.Get(ctx, cfg.StateKey)
}

// FromStore resolves every configuration's state key through one store.
func FromStore(store identifier.CredentialStore) CredentialResolver {
	return storeResolver{store: store}
}

// Client performs registrar requests. It holds no per-call state and is
// safe for concurrent use.
type Client struct {
	configs     identifier.ConfigStore
	credentials CredentialResolver
	logger      Logger
	httpClient  HTTPDoer
	baseURL     string
	metrics     *metrics.RegistrarMetrics
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL sets the registrar API root
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimSuffix(baseURL, "/")
		}
	}
}

// WithTimeout replaces the HTTP client with one bounded by timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient = &http.Client{Timeout: timeout}
		}
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client HTTPDoer) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithMetrics records request outcomes
func WithMetrics(m *metrics.RegistrarMetrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient creates a registrar client.
func NewClient(configs identifier.ConfigStore, credentials CredentialResolver, logger Logger, opts ...Option) *Client {
	if logger == nil {
		logger = logging.New(false, false)
	}
	c := &Client{
		configs:     configs,
		credentials: credentials,
		logger:      logger,
		httpClient:  &http.Client{Timeout: DefaultTimeout},
		baseURL:     DefaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PerformRequest resolves the named identifier configuration and its
// credentials, sends req to the registrar and parses the answer.
//
// A registrar rejection is returned as an unsuccessful Result with a nil
// error. Errors are reserved for configuration problems (*ConfigError) and
// transport failures (*TransportError). Exactly one log record is written
// when, and only when, a response was received and parsed.
func (c *Client) PerformRequest(ctx context.Context, name string, req Request) (identifier.Result, error) {
	if !req.Operation.Valid() {
		return identifier.Result{}, fmt.Errorf("unknown registrar operation %q", req.Operation)
	}

	cfg, err := c.resolveConfig(ctx, name, req.Operation)
	if err != nil {
		return identifier.Result{}, err
	}
	return c.perform(ctx, cfg, req)
}

// resolveConfig looks up the named configuration. A lookup that fails
// because ctx ended is a transport failure, not a configuration problem.
func (c *Client) resolveConfig(ctx context.Context, name string, op identifier.Operation) (identifier.Config, error) {
	cfg, err := c.configs.Get(ctx, name)
	if err != nil {
		if ctxErr := c.abandoned(ctx, op); ctxErr != nil {
			return identifier.Config{}, ctxErr
		}
		c.metrics.RecordRequest(string(op), metrics.OutcomeConfigError, 0)
		if identifier.IsConfigError(err) {
			return identifier.Config{}, err
		}
		return identifier.Config{}, &identifier.ConfigError{Name: name, Message: "configuration lookup failed", Err: err}
	}
	if cfg.Name == "" {
		cfg.Name = name
	}
	return cfg, nil
}

// abandoned returns a TransportError when ctx is already done.
func (c *Client) abandoned(ctx context.Context, op identifier.Operation) error {
	if ctx.Err() == nil {
		return nil
	}
	c.metrics.RecordRequest(string(op), metrics.OutcomeTransportError, 0)
	return &identifier.TransportError{Op: op, URL: c.baseURL, Err: ctx.Err()}
}

func (c *Client) perform(ctx context.Context, cfg identifier.Config, req Request) (identifier.Result, error) {
	op := string(req.Operation)

	creds, err := c.credentials.ResolveCredentials(ctx, cfg)
	if err != nil {
		if ctxErr := c.abandoned(ctx, req.Operation); ctxErr != nil {
			return identifier.Result{}, ctxErr
		}
		c.metrics.RecordRequest(op, metrics.OutcomeConfigError, 0)
		return identifier.Result{}, &identifier.ConfigError{
			Name:     cfg.Name,
			StateKey: cfg.StateKey,
			Message:  "credentials could not be resolved",
			Err:      err,
		}
	}

	url, err := req.targetURL(c.baseURL, cfg)
	if err != nil {
		c.metrics.RecordRequest(op, metrics.OutcomeConfigError, 0)
		return identifier.Result{}, err
	}

	httpReq, err := req.build(ctx, url, creds)
	if err != nil {
		return identifier.Result{}, err
	}

	start := time.Now()
	body, err := c.send(httpReq)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		c.metrics.RecordRequest(op, metrics.OutcomeTransportError, elapsed)
		return identifier.Result{}, &identifier.TransportError{Op: req.Operation, URL: url, Err: err}
	}

	result := ezid.Parse(body)
	logged := redactValues(body, creds.Password)
	if result.Success {
		c.metrics.RecordRequest(op, metrics.OutcomeSuccess, elapsed)
		c.logger.Info("Identifier %s (%s): %s", pastTense(req.Operation), cfg.Name, logged)
	} else {
		c.metrics.RecordRequest(op, metrics.OutcomeFailure, elapsed)
		c.logger.Error("There was an issue %s the identifier (%s): %s", gerund(req.Operation), cfg.Name, logged)
	}

	return result, nil
}

// redactValues hides password in record values. Record keys are protocol
// names and stay intact so the success marker survives redaction.
func redactValues(body, password string) string {
	return ezid.MapValues(body, func(value string) string {
		return logging.Redact(value, []string{password})
	})
}

func (c *Client) send(req *http.Request) (string, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	if len(data) > maxResponseBytes {
		return "", fmt.Errorf("response body exceeds %d bytes", maxResponseBytes)
	}
	return string(data), nil
}

// Status asks the registrar whether it is up. EZID answers
// "success: EZID is up". No credentials are sent and nothing is logged.
func (c *Client) Status(ctx context.Context) (identifier.Result, error) {
	url := c.baseURL + "/status"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return identifier.Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/plain")

	body, err := c.send(req)
	if err != nil {
		return identifier.Result{}, &identifier.TransportError{Op: "status", URL: url, Err: err}
	}
	return ezid.Parse(body), nil
}

// Create registers target with the given metadata.
func (c *Client) Create(ctx context.Context, name, target string, metadata map[string]string) (identifier.Result, error) {
	return c.PerformRequest(ctx, name, Request{Operation: identifier.OperationCreate, Target: target, Metadata: metadata})
}

// Update replaces metadata on an existing identifier.
func (c *Client) Update(ctx context.Context, name, target string, metadata map[string]string) (identifier.Result, error) {
	return c.PerformRequest(ctx, name, Request{Operation: identifier.OperationUpdate, Target: target, Metadata: metadata})
}

// Delete removes target from the registrar.
func (c *Client) Delete(ctx context.Context, name, target string) (identifier.Result, error) {
	return c.PerformRequest(ctx, name, Request{Operation: identifier.OperationDelete, Target: target})
}

// Mint asks the registrar for a new identifier under the configured shoulder.
func (c *Client) Mint(ctx context.Context, name string, metadata map[string]string) (identifier.Result, error) {
	return c.PerformRequest(ctx, name, Request{Operation: identifier.OperationMint, Metadata: metadata})
}

// DeleteEntity deletes the identifier stored on entity. It returns
// skipped=true, without contacting the registrar, when the entity does
// not carry an identifier of the named type.
func (c *Client) DeleteEntity(ctx context.Context, name string, entity identifier.Entity) (result identifier.Result, skipped bool, err error) {
	cfg, err := c.resolveConfig(ctx, name, identifier.OperationDelete)
	if err != nil {
		return identifier.Result{}, false, err
	}

	has := condition.HasIdentifier(entity, cfg)
	c.metrics.RecordCheck(name, has)
	if !has {
		return identifier.Result{}, true, nil
	}

	target, _ := entity.FieldString(cfg.Field)
	if target == "" {
		return identifier.Result{}, true, nil
	}

	result, err = c.perform(ctx, cfg, Request{Operation: identifier.OperationDelete, Target: target})
	return result, false, err
}

func pastTense(op identifier.Operation) string {
	switch op {
	case identifier.OperationCreate:
		return "created"
	case identifier.OperationUpdate:
		return "updated"
	case identifier.OperationDelete:
		return "deleted"
	case identifier.OperationMint:
		return "minted"
	}
	return string(op)
}

func gerund(op identifier.Operation) string {
	switch op {
	case identifier.OperationCreate:
		return "creating"
	case identifier.OperationUpdate:
		return "updating"
	case identifier.OperationDelete:
		return "deleting"
	case identifier.OperationMint:
		return "minting"
	}
	return string(op)
}
