package commands

import (
	"bytes"
	"net/http"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/pidops/internal/config"
	"github.com/systmms/pidops/internal/credentials"
	dserrors "github.com/systmms/pidops/internal/errors"
	"github.com/systmms/pidops/internal/logging"
	"github.com/systmms/pidops/pkg/identifier"
	"github.com/systmms/pidops/tests/fakes"
	"github.com/systmms/pidops/tests/testutil"
)

const (
	arkEntity   = `{"entity_type": "node", "bundle": "islandora_object", "fields": {"field_ark": [{"value": "ark:/99999/fk4abc"}]}}`
	emptyEntity = `{"entity_type": "node", "bundle": "islandora_object", "fields": {"field_ark": []}}`
)

type env struct {
	fake *testutil.FakeRegistrar
	cfg  *config.Config
	logs *bytes.Buffer
}

func newEnv(t *testing.T) *env {
	t.Helper()

	fake := testutil.NewFakeRegistrar(t)
	path := testutil.NewTestConfig(t).
		WithRegistrar(fake.URL()).
		WithLiteralCredentials("default", "ezid_creds", "apitest", "s3cret").
		WithIdentifier("ark", testutil.ArkConfig()).
		Write()

	logs := &bytes.Buffer{}
	return &env{
		fake: fake,
		cfg:  &config.Config{Path: path, Logger: logging.NewWithWriter(logs, false, true)},
		logs: logs,
	}
}

func execute(t *testing.T, cmd *cobra.Command, stdin string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	err := cmd.Execute()
	return out.String(), err
}

func TestIdentifiersCommand(t *testing.T) {
	e := newEnv(t)

	out, err := execute(t, NewIdentifiersCommand(e.cfg), "")
	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "ark")
	assert.Contains(t, out, "field_ark")
	assert.Contains(t, out, "ark:/99999/fk4")
}

func TestCheckCommand(t *testing.T) {
	tests := []struct {
		name    string
		entity  string
		args    []string
		want    string
		wantErr error
	}{
		{name: "has identifier", entity: arkEntity, want: "true"},
		{name: "empty field", entity: emptyEntity, want: "false", wantErr: ErrConditionNotMet},
		{name: "negated empty field", entity: emptyEntity, args: []string{"--negate"}, want: "true"},
		{name: "negated with identifier", entity: arkEntity, args: []string{"--negate"}, want: "false", wantErr: ErrConditionNotMet},
		{
			name:    "other bundle",
			entity:  `{"entity_type": "node", "bundle": "page", "fields": {"field_ark": "ark:/99999/fk4abc"}}`,
			want:    "false",
			wantErr: ErrConditionNotMet,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)

			args := append([]string{"--identifier", "ark", "--entity", "-"}, tt.args...)
			out, err := execute(t, NewCheckCommand(e.cfg), tt.entity, args...)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, strings.TrimSpace(out))
			assert.Empty(t, e.fake.Calls())
		})
	}
}

func TestCheckCommand_Errors(t *testing.T) {
	e := newEnv(t)

	_, err := execute(t, NewCheckCommand(e.cfg), arkEntity, "--entity", "-")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Identifier configuration name is required")

	_, err = execute(t, NewCheckCommand(e.cfg), arkEntity, "--identifier", "doi", "--entity", "-")
	require.Error(t, err)
	assert.True(t, identifier.IsConfigError(err))

	_, err = execute(t, NewCheckCommand(e.cfg), "not json", "--identifier", "ark", "--entity", "-")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid entity snapshot")
}

func TestCreateCommand(t *testing.T) {
	e := newEnv(t)

	out, err := execute(t, NewCreateCommand(e.cfg), "",
		"--identifier", "ark",
		"--target", "ark:/99999/fk4new",
		"--meta", "_target=https://repo.example.org/node/42",
		"--meta", "erc.who=Smith, J.",
	)
	require.NoError(t, err)
	assert.Equal(t, "ark:/99999/fk4new\n", out)
	assert.Contains(t, e.logs.String(), "Identifier created (ark)")

	calls := e.fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, http.MethodPut, calls[0].Method)
	assert.Equal(t, "_target: https://repo.example.org/node/42\nerc.who: Smith, J.\n", calls[0].Body)
	assert.Equal(t, "apitest", calls[0].Username)
}

func TestUpdateCommand_InvalidMetadata(t *testing.T) {
	e := newEnv(t)

	_, err := execute(t, NewUpdateCommand(e.cfg), "",
		"--identifier", "ark", "--target", "ark:/99999/fk4abc", "--meta", "no-equals-sign")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid metadata")
	assert.Empty(t, e.fake.Calls())
}

func TestMintCommand_JSON(t *testing.T) {
	e := newEnv(t)

	out, err := execute(t, NewMintCommand(e.cfg), "", "--identifier", "ark", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"identifier": "ark:/99999/fk4minted"`)
	assert.Contains(t, out, `"success": true`)

	calls := e.fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "/shoulder/ark:/99999/fk4", calls[0].Path)
}

func TestDeleteCommand_Target(t *testing.T) {
	e := newEnv(t)

	out, err := execute(t, NewDeleteCommand(e.cfg), "", "--identifier", "ark", "--target", "ark:/99999/fk4")
	require.NoError(t, err)
	assert.Equal(t, "ark:/99999/fk4\n", out)
	assert.Contains(t, e.logs.String(), "Identifier deleted (ark): success: ark:/99999/fk4 deleted")
}

func TestDeleteCommand_Rejected(t *testing.T) {
	e := newEnv(t)
	e.fake.Respond = func(call testutil.RegistrarCall) (int, string) {
		return http.StatusBadRequest, "error: bad request - no such identifier"
	}

	_, err := execute(t, NewDeleteCommand(e.cfg), "", "--identifier", "ark", "--target", "ark:/99999/fk4")
	require.Error(t, err)

	var userErr dserrors.UserError
	require.ErrorAs(t, err, &userErr)
	assert.Equal(t, "error: bad request - no such identifier", userErr.Details)
	assert.Contains(t, e.logs.String(), "There was an issue deleting the identifier (ark)")
}

func TestDeleteCommand_Entity(t *testing.T) {
	e := newEnv(t)

	out, err := execute(t, NewDeleteCommand(e.cfg), arkEntity, "--identifier", "ark", "--entity", "-")
	require.NoError(t, err)
	assert.Equal(t, "ark:/99999/fk4abc\n", out)
	require.Len(t, e.fake.Calls(), 1)
	assert.Equal(t, "/id/ark:/99999/fk4abc", e.fake.Calls()[0].Path)
}

func TestDeleteCommand_EntityWithoutIdentifier(t *testing.T) {
	e := newEnv(t)

	out, err := execute(t, NewDeleteCommand(e.cfg), emptyEntity, "--identifier", "ark", "--entity", "-")
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Empty(t, e.fake.Calls())
	assert.Contains(t, e.logs.String(), "nothing to delete")
}

func TestDeleteCommand_FlagValidation(t *testing.T) {
	e := newEnv(t)

	_, err := execute(t, NewDeleteCommand(e.cfg), "", "--identifier", "ark")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Exactly one of --target or --entity")

	_, err = execute(t, NewDeleteCommand(e.cfg), "", "--identifier", "ark", "--target", "a", "--entity", "b.json")
	require.Error(t, err)
}

func TestDeleteCommand_TransportError(t *testing.T) {
	e := newEnv(t)
	e.fake.Server.Close()

	_, err := execute(t, NewDeleteCommand(e.cfg), "", "--identifier", "ark", "--target", "ark:/99999/fk4")
	require.Error(t, err)
	assert.True(t, identifier.IsTransportError(err))
	assert.Contains(t, err.Error(), "registrar delete failed")
	assert.Empty(t, e.logs.String())
}

func TestPruneCommand(t *testing.T) {
	e := newEnv(t)

	entities := strings.Join([]string{
		arkEntity,
		"",
		emptyEntity,
		`{"entity_type": "node", "bundle": "islandora_object", "fields": {"field_ark": "ark:/99999/fk4def"}}`,
	}, "\n")

	out, err := execute(t, NewPruneCommand(e.cfg), entities, "--identifier", "ark", "--concurrency", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "deleted 2, skipped 1, rejected 0, failed 0")

	var paths []string
	for _, call := range e.fake.Calls() {
		paths = append(paths, call.Path)
	}
	assert.ElementsMatch(t, []string{"/id/ark:/99999/fk4abc", "/id/ark:/99999/fk4def"}, paths)
}

func TestPruneCommand_Rejections(t *testing.T) {
	e := newEnv(t)
	e.fake.Respond = func(call testutil.RegistrarCall) (int, string) {
		if strings.HasSuffix(call.Path, "fk4def") {
			return http.StatusBadRequest, "error: bad request - no such identifier"
		}
		return http.StatusOK, "success: deleted"
	}

	entities := arkEntity + "\n" + `{"entity_type": "node", "bundle": "islandora_object", "fields": {"field_ark": "ark:/99999/fk4def"}}`

	out, err := execute(t, NewPruneCommand(e.cfg), entities, "--identifier", "ark")
	require.Error(t, err)
	assert.Contains(t, out, "deleted 1, skipped 0, rejected 1, failed 0")
	assert.Contains(t, err.Error(), "1 of 2 deletions did not succeed")
	assert.Contains(t, err.Error(), "Review the log above")
}

func TestPruneCommand_TransientFailures(t *testing.T) {
	e := newEnv(t)
	e.fake.Server.Close()

	out, err := execute(t, NewPruneCommand(e.cfg), arkEntity, "--identifier", "ark")
	require.Error(t, err)
	assert.Contains(t, out, "deleted 0, skipped 0, rejected 0, failed 1")
	assert.Contains(t, err.Error(), "All failures were transient")
	assert.Contains(t, e.logs.String(), "connection refused")
}

func TestPruneCommand_ConfigErrorStops(t *testing.T) {
	e := newEnv(t)

	_, err := execute(t, NewPruneCommand(e.cfg), arkEntity, "--identifier", "doi")
	require.Error(t, err)
	assert.True(t, identifier.IsConfigError(err))
	assert.Empty(t, e.fake.Calls())
}

func TestPruneCommand_InvalidConcurrency(t *testing.T) {
	e := newEnv(t)

	_, err := execute(t, NewPruneCommand(e.cfg), arkEntity, "--identifier", "ark", "--concurrency", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid concurrency")
}

func useKeyring(t *testing.T) *fakes.FakeKeyring {
	t.Helper()
	kr := fakes.NewFakeKeyring()
	keyringClient = kr
	t.Cleanup(func() { keyringClient = nil })
	return kr
}

func TestLoginCommand(t *testing.T) {
	kr := useKeyring(t)
	path := testutil.NewTestConfig(t).
		WithCredentialStore("default", "keyring", map[string]any{"service": "pidops-test"}).
		Write()
	cfg := &config.Config{Path: path, Logger: logging.NewWithWriter(&bytes.Buffer{}, false, true)}

	_, err := execute(t, NewLoginCommand(cfg), "hunter2\n", "--state-key", "ezid_creds", "--username", "apitest")
	require.NoError(t, err)

	store := credentials.NewKeyringStoreWithClient("default", "pidops-test", kr)
	creds, err := store.Get(t.Context(), "ezid_creds")
	require.NoError(t, err)
	assert.Equal(t, identifier.Credentials{Username: "apitest", Password: "hunter2"}, creds)

	_, err = execute(t, NewLoginCommand(cfg), "", "--state-key", "ezid_creds", "--remove")
	require.NoError(t, err)
	_, err = store.Get(t.Context(), "ezid_creds")
	assert.Error(t, err)
}

func TestLoginCommand_PasswordFromEnv(t *testing.T) {
	kr := useKeyring(t)
	t.Setenv(PasswordEnv, "from-env")
	cfg := &config.Config{Path: "", Logger: logging.NewWithWriter(&bytes.Buffer{}, false, true)}

	_, err := execute(t, NewLoginCommand(cfg), "", "--state-key", "ezid_creds", "--username", "apitest")
	require.NoError(t, err)

	creds, err := credentials.NewKeyringStoreWithClient("default", "", kr).Get(t.Context(), "ezid_creds")
	require.NoError(t, err)
	assert.Equal(t, "from-env", creds.Password)
}

func TestLoginCommand_Errors(t *testing.T) {
	useKeyring(t)
	e := newEnv(t)

	_, err := execute(t, NewLoginCommand(e.cfg), "pw\n", "--username", "apitest")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "State key is required")

	noFile := &config.Config{Logger: logging.NewWithWriter(&bytes.Buffer{}, false, true)}
	_, err = execute(t, NewLoginCommand(noFile), "", "--state-key", "ezid_creds", "--username", "apitest")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No password provided")

	_, err = execute(t, NewLoginCommand(e.cfg), "pw\n", "--state-key", "ezid_creds", "--username", "apitest")
	require.Error(t, err)
	var cfgErr dserrors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, cfgErr.Message, "not 'keyring'")
}

func TestLoginThenDelete(t *testing.T) {
	useKeyring(t)
	fake := testutil.NewFakeRegistrar(t)
	path := testutil.NewTestConfig(t).
		WithRegistrar(fake.URL()).
		WithCredentialStore("default", "keyring", nil).
		WithIdentifier("ark", testutil.ArkConfig()).
		Write()
	cfg := &config.Config{Path: path, Logger: logging.NewWithWriter(&bytes.Buffer{}, false, true)}

	_, err := execute(t, NewLoginCommand(cfg), "rotated\n", "--state-key", "ezid_creds", "--username", "apitest")
	require.NoError(t, err)

	_, err = execute(t, NewDeleteCommand(cfg), "", "--identifier", "ark", "--target", "ark:/99999/fk4")
	require.NoError(t, err)

	calls := fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "rotated", calls[0].Password)
}

func TestDoctorCommand(t *testing.T) {
	e := newEnv(t)
	e.fake.Respond = func(call testutil.RegistrarCall) (int, string) {
		return http.StatusOK, "success: EZID is up"
	}

	out, err := execute(t, NewDoctorCommand(e.cfg), "", "--check-credentials", "--ping")
	require.NoError(t, err)
	assert.Contains(t, out, "Summary: 3/3 checks healthy")
	assert.Contains(t, out, "EZID is up")
}

func TestDoctorCommand_MissingStore(t *testing.T) {
	idc := testutil.ArkConfig()
	idc.CredentialStore = "vault-prod"
	path := testutil.NewTestConfig(t).
		WithLiteralCredentials("default", "ezid_creds", "apitest", "apitest").
		WithIdentifier("ark", idc).
		Write()
	cfg := &config.Config{Path: path, Logger: logging.NewWithWriter(&bytes.Buffer{}, false, true)}

	out, err := execute(t, NewDoctorCommand(cfg), "", "--verbose")
	require.Error(t, err)
	assert.Contains(t, out, "credential store 'vault-prod' is not configured")
	assert.Contains(t, out, "Summary: 1/2 checks healthy")
}

func TestCompletionCommand(t *testing.T) {
	root := &cobra.Command{Use: "pidops"}
	root.AddCommand(NewCompletionCommand(&config.Config{}))

	out, err := execute(t, root, "", "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "pidops")
}
