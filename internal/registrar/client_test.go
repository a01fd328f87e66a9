package registrar_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/pidops/internal/credentials"
	"github.com/systmms/pidops/internal/registrar"
	"github.com/systmms/pidops/pkg/identifier"
	"github.com/systmms/pidops/tests/testutil"
)

type mapConfigStore map[string]identifier.Config

func (m mapConfigStore) Get(ctx context.Context, name string) (identifier.Config, error) {
	cfg, ok := m[name]
	if !ok {
		return identifier.Config{}, &identifier.ConfigError{Name: name, Message: "no such configuration"}
	}
	cfg.Name = name
	return cfg, nil
}

func newClient(t *testing.T, baseURL string, opts ...registrar.Option) (*registrar.Client, *testutil.TestLogger) {
	t.Helper()

	configs := mapConfigStore{"ark": testutil.ArkConfig()}
	store := credentials.NewLiteralStore("default", map[string]identifier.Credentials{
		"ezid_creds": {Username: "apitest", Password: "s3cret"},
	})
	logger := testutil.NewTestLogger(t)

	opts = append([]registrar.Option{registrar.WithBaseURL(baseURL)}, opts...)
	return registrar.NewClient(configs, registrar.FromStore(store), logger, opts...), logger
}

func TestPerformRequest_DeleteSuccess(t *testing.T) {
	t.Parallel()

	fake := testutil.NewFakeRegistrar(t)
	client, logger := newClient(t, fake.URL())

	result, err := client.PerformRequest(context.Background(), "ark", registrar.Request{
		Operation: identifier.OperationDelete,
		Target:    "ark:/99999/fk4",
	})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "ark:/99999/fk4 deleted", result.Metadata["success"])
	assert.Equal(t, "ark:/99999/fk4", result.Identifier())

	logger.AssertLogCount(t, "info", 1)
	logger.AssertLogCount(t, "error", 0)
	logger.AssertContains(t, "Identifier deleted (ark): success: ark:/99999/fk4 deleted")

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, http.MethodDelete, calls[0].Method)
	assert.Equal(t, "/id/ark:/99999/fk4", calls[0].Path)
	assert.Equal(t, "apitest", calls[0].Username)
	assert.Equal(t, "s3cret", calls[0].Password)
	assert.Empty(t, calls[0].Body)
}

func TestPerformRequest_RegistrarFailure(t *testing.T) {
	t.Parallel()

	fake := testutil.NewFakeRegistrar(t)
	fake.Respond = func(call testutil.RegistrarCall) (int, string) {
		return http.StatusBadRequest, "error: bad request - no such identifier"
	}
	client, logger := newClient(t, fake.URL())

	result, err := client.Delete(context.Background(), "ark", "ark:/99999/fk4missing")
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Equal(t, "error: bad request - no such identifier", result.Message)
	assert.Empty(t, result.Identifier())

	logger.AssertLogCount(t, "error", 1)
	logger.AssertLogCount(t, "info", 0)
	logger.AssertContains(t, "There was an issue deleting the identifier (ark): error: bad request - no such identifier")
}

func TestPerformRequest_SuccessStatusDoesNotDecide(t *testing.T) {
	t.Parallel()

	fake := testutil.NewFakeRegistrar(t)
	fake.Respond = func(call testutil.RegistrarCall) (int, string) {
		return http.StatusOK, "notice: maintenance window\nerror: unauthorized"
	}
	client, logger := newClient(t, fake.URL())

	result, err := client.Update(context.Background(), "ark", "ark:/99999/fk4abc", map[string]string{"_target": "https://example.org"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "error: unauthorized")
	logger.AssertLogCount(t, "error", 1)
}

func TestPerformRequest_CreateSendsANVL(t *testing.T) {
	t.Parallel()

	fake := testutil.NewFakeRegistrar(t)
	client, logger := newClient(t, fake.URL())

	result, err := client.Create(context.Background(), "ark", "ark:/99999/fk4new", map[string]string{
		"_target":  "https://repo.example.org/node/1",
		"erc.what": "Title: with colon",
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	logger.AssertContains(t, "Identifier created (ark)")

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, http.MethodPut, calls[0].Method)
	assert.Equal(t, "/id/ark:/99999/fk4new", calls[0].Path)
	assert.Equal(t, "text/plain; charset=UTF-8", calls[0].ContentType)
	assert.Equal(t, "_target: https://repo.example.org/node/1\nerc.what: Title: with colon\n", calls[0].Body)
}

func TestPerformRequest_MintUsesShoulder(t *testing.T) {
	t.Parallel()

	fake := testutil.NewFakeRegistrar(t)
	client, logger := newClient(t, fake.URL())

	result, err := client.Mint(context.Background(), "ark", map[string]string{"_target": "https://example.org"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "ark:/99999/fk4minted", result.Identifier())
	logger.AssertContains(t, "Identifier minted (ark)")

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, http.MethodPost, calls[0].Method)
	assert.Equal(t, "/shoulder/ark:/99999/fk4", calls[0].Path)
}

func TestPerformRequest_MintWithoutShoulder(t *testing.T) {
	t.Parallel()

	configs := mapConfigStore{"doi": {EntityType: "node", Bundle: "page", Field: "field_doi", StateKey: "ezid_creds"}}
	store := credentials.NewLiteralStore("default", map[string]identifier.Credentials{
		"ezid_creds": {Username: "apitest", Password: "apitest"},
	})
	logger := testutil.NewTestLogger(t)
	client := registrar.NewClient(configs, registrar.FromStore(store), logger, registrar.WithBaseURL("http://127.0.0.1:1"))

	_, err := client.Mint(context.Background(), "doi", nil)
	require.Error(t, err)
	assert.True(t, identifier.IsConfigError(err))
	assert.Contains(t, err.Error(), "no shoulder configured")
	logger.AssertEmpty(t)
}

func TestPerformRequest_AbsoluteTarget(t *testing.T) {
	t.Parallel()

	fake := testutil.NewFakeRegistrar(t)
	fake.Respond = func(call testutil.RegistrarCall) (int, string) {
		return http.StatusOK, "success: ark:/99999/fk4abc deleted"
	}
	client, _ := newClient(t, "http://127.0.0.1:1")

	result, err := client.Delete(context.Background(), "ark", fake.URL()+"/id/ark:/99999/fk4abc")
	require.NoError(t, err)
	assert.True(t, result.Success)

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "/id/ark:/99999/fk4abc", calls[0].Path)
}

func TestPerformRequest_TransportFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	baseURL := server.URL
	server.Close()

	client, logger := newClient(t, baseURL)

	_, err := client.Delete(context.Background(), "ark", "ark:/99999/fk4")
	require.Error(t, err)

	var transportErr *identifier.TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, identifier.OperationDelete, transportErr.Op)
	assert.Equal(t, baseURL+"/id/ark:/99999/fk4", transportErr.URL)
	logger.AssertEmpty(t)
}

func TestPerformRequest_Timeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		server.Close()
	})

	client, logger := newClient(t, server.URL, registrar.WithTimeout(50*time.Millisecond))

	start := time.Now()
	_, err := client.Delete(context.Background(), "ark", "ark:/99999/fk4")
	require.Error(t, err)
	assert.True(t, identifier.IsTransportError(err))
	assert.Less(t, time.Since(start), 5*time.Second)
	logger.AssertEmpty(t)
}

func TestPerformRequest_CancelledContext(t *testing.T) {
	t.Parallel()

	fake := testutil.NewFakeRegistrar(t)
	client, logger := newClient(t, fake.URL())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Delete(ctx, "ark", "ark:/99999/fk4")
	require.Error(t, err)
	assert.True(t, identifier.IsTransportError(err))
	assert.True(t, errors.Is(err, context.Canceled))
	logger.AssertEmpty(t)
}

func TestPerformRequest_UnknownConfiguration(t *testing.T) {
	t.Parallel()

	fake := testutil.NewFakeRegistrar(t)
	client, logger := newClient(t, fake.URL())

	_, err := client.Delete(context.Background(), "handle", "ark:/99999/fk4")
	require.Error(t, err)
	assert.True(t, identifier.IsConfigError(err))
	assert.Empty(t, fake.Calls())
	logger.AssertEmpty(t)
}

func TestPerformRequest_MissingCredentials(t *testing.T) {
	t.Parallel()

	fake := testutil.NewFakeRegistrar(t)
	configs := mapConfigStore{"ark": testutil.ArkConfig()}
	empty := credentials.NewLiteralStore("default", nil)
	logger := testutil.NewTestLogger(t)
	client := registrar.NewClient(configs, registrar.FromStore(empty), logger, registrar.WithBaseURL(fake.URL()))

	_, err := client.Delete(context.Background(), "ark", "ark:/99999/fk4")
	require.Error(t, err)

	var cfgErr *identifier.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "ark", cfgErr.Name)
	assert.Equal(t, "ezid_creds", cfgErr.StateKey)
	assert.Empty(t, fake.Calls())
	logger.AssertEmpty(t)
}

func TestPerformRequest_InvalidOperation(t *testing.T) {
	t.Parallel()

	client, logger := newClient(t, "http://127.0.0.1:1")

	_, err := client.PerformRequest(context.Background(), "ark", registrar.Request{Operation: "purge", Target: "ark:/1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown registrar operation")
	logger.AssertEmpty(t)
}

func TestPerformRequest_PasswordRedactedFromLog(t *testing.T) {
	t.Parallel()

	fake := testutil.NewFakeRegistrar(t)
	fake.Respond = func(call testutil.RegistrarCall) (int, string) {
		return http.StatusUnauthorized, "error: unauthorized - bad password " + call.Password
	}
	client, logger := newClient(t, fake.URL())

	result, err := client.Delete(context.Background(), "ark", "ark:/99999/fk4")
	require.NoError(t, err)
	assert.False(t, result.Success)
	logger.AssertNotContains(t, "s3cret")
	logger.AssertLogCount(t, "error", 1)
}

func TestPerformRequest_Concurrent(t *testing.T) {
	t.Parallel()

	fake := testutil.NewFakeRegistrar(t)
	client, logger := newClient(t, fake.URL())

	const n = 20
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			result, err := client.Delete(context.Background(), "ark", "ark:/99999/fk4")
			assert.NoError(t, err)
			assert.True(t, result.Success)
		}()
	}
	wg.Wait()

	assert.Len(t, fake.Calls(), n)
	logger.AssertLogCount(t, "info", n)
}

func TestDeleteEntity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		entity      identifier.Entity
		wantSkipped bool
	}{
		{
			name: "deletes stored identifier",
			entity: identifier.Entity{
				EntityType: "node",
				Bundle:     "islandora_object",
				Fields:     map[string]any{"field_ark": []any{map[string]any{"value": "ark:/99999/fk4abc"}}},
			},
		},
		{
			name: "skips empty field",
			entity: identifier.Entity{
				EntityType: "node",
				Bundle:     "islandora_object",
				Fields:     map[string]any{"field_ark": []any{}},
			},
			wantSkipped: true,
		},
		{
			name: "skips other bundle",
			entity: identifier.Entity{
				EntityType: "node",
				Bundle:     "page",
				Fields:     map[string]any{"field_ark": "ark:/99999/fk4abc"},
			},
			wantSkipped: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fake := testutil.NewFakeRegistrar(t)
			client, _ := newClient(t, fake.URL())

			result, skipped, err := client.DeleteEntity(context.Background(), "ark", tt.entity)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSkipped, skipped)

			if tt.wantSkipped {
				assert.Empty(t, fake.Calls())
				return
			}
			assert.True(t, result.Success)
			calls := fake.Calls()
			require.Len(t, calls, 1)
			assert.Equal(t, "/id/ark:/99999/fk4abc", calls[0].Path)
		})
	}
}

func TestStatus(t *testing.T) {
	t.Parallel()

	fake := testutil.NewFakeRegistrar(t)
	fake.Respond = func(call testutil.RegistrarCall) (int, string) {
		if call.Path == "/status" {
			return http.StatusOK, "success: EZID is up"
		}
		return http.StatusNotFound, "error: not found"
	}
	client, logger := newClient(t, fake.URL())

	result, err := client.Status(context.Background())
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "EZID is up", result.Metadata["success"])

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, http.MethodGet, calls[0].Method)
	assert.Empty(t, calls[0].Username)
	logger.AssertEmpty(t)
}

func TestPerformRequest_CancelledContextFileStore(t *testing.T) {
	t.Parallel()

	fake := testutil.NewFakeRegistrar(t)
	cfg := testutil.NewTestConfig(t).
		WithRegistrar(fake.URL()).
		WithLiteralCredentials("default", "ezid_creds", "apitest", "s3cret").
		WithIdentifier("ark", testutil.ArkConfig()).
		Config()
	logger := testutil.NewTestLogger(t)
	client := registrar.NewClient(cfg, credentials.NewRouter(cfg), logger, registrar.WithBaseURL(fake.URL()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Delete(ctx, "ark", "ark:/99999/fk4")
	require.Error(t, err)
	assert.True(t, identifier.IsTransportError(err))
	assert.False(t, identifier.IsConfigError(err))
	assert.True(t, errors.Is(err, context.Canceled))

	_, _, err = client.DeleteEntity(ctx, "ark", identifier.Entity{
		EntityType: "node",
		Bundle:     "islandora_object",
		Fields:     map[string]any{"field_ark": "ark:/99999/fk4"},
	})
	assert.True(t, identifier.IsTransportError(err))

	assert.Empty(t, fake.Calls())
	logger.AssertEmpty(t)
}

// cancellingResolver ends the request context while credentials are being
// resolved.
type cancellingResolver struct {
	cancel context.CancelFunc
}

func (r cancellingResolver) ResolveCredentials(ctx context.Context, cfg identifier.Config) (identifier.Credentials, error) {
	r.cancel()
	return identifier.Credentials{}, ctx.Err()
}

func TestPerformRequest_CancelledDuringCredentialLookup(t *testing.T) {
	t.Parallel()

	fake := testutil.NewFakeRegistrar(t)
	logger := testutil.NewTestLogger(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := registrar.NewClient(mapConfigStore{"ark": testutil.ArkConfig()}, cancellingResolver{cancel: cancel}, logger,
		registrar.WithBaseURL(fake.URL()))

	_, err := client.Delete(ctx, "ark", "ark:/99999/fk4")
	require.Error(t, err)
	assert.True(t, identifier.IsTransportError(err))
	assert.False(t, identifier.IsConfigError(err))
	assert.Empty(t, fake.Calls())
	logger.AssertEmpty(t)
}

func TestPerformRequest_OversizedResponse(t *testing.T) {
	t.Parallel()

	fake := testutil.NewFakeRegistrar(t)
	fake.Respond = func(call testutil.RegistrarCall) (int, string) {
		return http.StatusBadRequest, "error: " + strings.Repeat("x", 2<<20)
	}
	client, logger := newClient(t, fake.URL())

	_, err := client.Delete(context.Background(), "ark", "ark:/99999/fk4")
	require.Error(t, err)
	assert.True(t, identifier.IsTransportError(err))
	assert.Contains(t, err.Error(), "response body exceeds")
	logger.AssertEmpty(t)
}

type countingConfigStore struct {
	mapConfigStore
	gets atomic.Int32
}

func (s *countingConfigStore) Get(ctx context.Context, name string) (identifier.Config, error) {
	s.gets.Add(1)
	return s.mapConfigStore.Get(ctx, name)
}

func TestDeleteEntity_ResolvesConfigOnce(t *testing.T) {
	t.Parallel()

	fake := testutil.NewFakeRegistrar(t)
	configs := &countingConfigStore{mapConfigStore: mapConfigStore{"ark": testutil.ArkConfig()}}
	store := credentials.NewLiteralStore("default", map[string]identifier.Credentials{
		"ezid_creds": {Username: "apitest", Password: "s3cret"},
	})
	client := registrar.NewClient(configs, registrar.FromStore(store), testutil.NewTestLogger(t),
		registrar.WithBaseURL(fake.URL()))

	result, skipped, err := client.DeleteEntity(context.Background(), "ark", identifier.Entity{
		EntityType: "node",
		Bundle:     "islandora_object",
		Fields:     map[string]any{"field_ark": "ark:/99999/fk4abc"},
	})
	require.NoError(t, err)
	assert.False(t, skipped)
	assert.True(t, result.Success)
	assert.Equal(t, int32(1), configs.gets.Load())
	require.Len(t, fake.Calls(), 1)
}

func TestPerformRequest_RedactionKeepsSuccessMarker(t *testing.T) {
	t.Parallel()

	fake := testutil.NewFakeRegistrar(t)
	fake.Respond = func(call testutil.RegistrarCall) (int, string) {
		return http.StatusOK, "success: ark:/99999/fk4 cess"
	}
	store := credentials.NewLiteralStore("default", map[string]identifier.Credentials{
		"ezid_creds": {Username: "apitest", Password: "cess"},
	})
	logger := testutil.NewTestLogger(t)
	client := registrar.NewClient(mapConfigStore{"ark": testutil.ArkConfig()}, registrar.FromStore(store), logger,
		registrar.WithBaseURL(fake.URL()))

	result, err := client.Delete(context.Background(), "ark", "ark:/99999/fk4")
	require.NoError(t, err)
	assert.True(t, result.Success)
	logger.AssertContains(t, "Identifier deleted (ark): success: ark:/99999/fk4 [REDACTED]")
	logger.AssertNotContains(t, "suc[REDACTED]")
	logger.AssertLogCount(t, "info", 1)
}
