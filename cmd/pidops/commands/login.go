package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/systmms/pidops/internal/config"
	"github.com/systmms/pidops/internal/credentials"
	dserrors "github.com/systmms/pidops/internal/errors"
	"github.com/systmms/pidops/internal/secure"
	"github.com/systmms/pidops/pkg/identifier"
)

// keyringClient overrides the OS keyring in tests.
var keyringClient credentials.KeyringClient

// PasswordEnv is read before stdin when prompting for a password.
const PasswordEnv = "PIDOPS_PASSWORD"

func NewLoginCommand(cfg *config.Config) *cobra.Command {
	var (
		stateKey  string
		username  string
		storeName string
		remove    bool
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store registrar credentials in the OS keyring",
		Long: `Save the registrar username and password for a state key in the OS
keyring, where the 'keyring' credential store reads them.

The password is taken from $PIDOPS_PASSWORD or the first line of stdin.

Examples:
  pidops login --state-key ezid_creds --username apitest
  echo "$EZID_PASSWORD" | pidops login --state-key ezid_creds --username apitest
  pidops login --state-key ezid_creds --remove`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if stateKey == "" {
				return dserrors.UserError{
					Message:    "State key is required",
					Suggestion: "Use --state-key <key>, matching state_key in your identifier configuration",
				}
			}

			service, err := keyringService(cfg, storeName)
			if err != nil {
				return err
			}

			var store *credentials.KeyringStore
			if keyringClient != nil {
				store = credentials.NewKeyringStoreWithClient(storeName, service, keyringClient)
			} else {
				store = credentials.NewKeyringStore(storeName, service)
			}

			if remove {
				if err := store.Remove(stateKey); err != nil {
					return dserrors.CredentialStoreError("keyring", stateKey, err)
				}
				commandLogger(cfg).Info("Removed credentials for '%s' from keyring service '%s'", stateKey, service)
				return nil
			}

			if username == "" {
				return dserrors.UserError{
					Message:    "Username is required",
					Suggestion: "Use --username <registrar account>",
				}
			}

			password, err := readPassword(cmd)
			if err != nil {
				return err
			}
			defer password.Destroy()

			locked, err := password.Open()
			if err != nil {
				return fmt.Errorf("failed to open password: %w", err)
			}
			defer locked.Destroy()

			if err := store.Put(stateKey, identifier.Credentials{Username: username, Password: string(locked.Bytes())}); err != nil {
				return dserrors.CredentialStoreError("keyring", stateKey, err)
			}
			commandLogger(cfg).Info("Stored credentials for '%s' in keyring service '%s'", stateKey, service)
			return nil
		},
	}

	cmd.Flags().StringVar(&stateKey, "state-key", "", "Credential state key (required)")
	cmd.Flags().StringVar(&username, "username", "", "Registrar username")
	cmd.Flags().StringVar(&storeName, "store", identifier.DefaultCredentialStore, "Keyring credential store name from pidops.yaml")
	cmd.Flags().BoolVar(&remove, "remove", false, "Remove the stored credentials instead")

	return cmd
}

// keyringService returns the keyring service of the named store. Without a
// configuration file the default service is used.
func keyringService(cfg *config.Config, storeName string) (string, error) {
	if cfg.Path == "" {
		return credentials.DefaultKeyringService, nil
	}
	if _, err := os.Stat(cfg.Path); os.IsNotExist(err) {
		return credentials.DefaultKeyringService, nil
	}
	if err := cfg.Load(); err != nil {
		return "", err
	}

	storeCfg, ok := cfg.Definition.CredentialStores[storeName]
	if !ok {
		return credentials.DefaultKeyringService, nil
	}
	if storeCfg.Type != "keyring" {
		return "", dserrors.ConfigError{
			Field:      "credential_store",
			Value:      storeName,
			Message:    fmt.Sprintf("store is of type '%s', not 'keyring'", storeCfg.Type),
			Suggestion: "Pass --store with the name of a keyring credential store",
		}
	}
	if service, ok := storeCfg.Config["service"].(string); ok && service != "" {
		return service, nil
	}
	return credentials.DefaultKeyringService, nil
}

// readPassword protects the password from $PIDOPS_PASSWORD or the first
// line of stdin.
func readPassword(cmd *cobra.Command) (*secure.SecureBuffer, error) {
	var (
		buf *secure.SecureBuffer
		err error
	)
	if password := os.Getenv(PasswordEnv); password != "" {
		buf, err = secure.NewSecureBuffer([]byte(password))
	} else {
		buf, err = secure.ReadLine(cmd.InOrStdin())
	}
	if errors.Is(err, secure.ErrEmpty) {
		return nil, dserrors.UserError{
			Message:    "No password provided",
			Suggestion: fmt.Sprintf("Set %s or pipe the password on stdin", PasswordEnv),
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read password: %w", err)
	}
	return buf, nil
}
