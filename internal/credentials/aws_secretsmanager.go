package credentials

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"

	"github.com/systmms/pidops/internal/config"
	"github.com/systmms/pidops/pkg/identifier"
)

// SecretsManagerClientAPI defines the Secrets Manager calls the store uses.
// This allows for mocking in tests
type SecretsManagerClientAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSSecretsManagerStore reads credential pairs stored as JSON secrets named
// <prefix><state_key>.
type AWSSecretsManagerStore struct {
	name   string
	prefix string
	client SecretsManagerClientAPI
}

// StoreOption is a functional option for configuring the store
type StoreOption func(*AWSSecretsManagerStore)

// WithSecretsManagerClient sets a custom Secrets Manager client (for testing)
func WithSecretsManagerClient(client SecretsManagerClientAPI) StoreOption {
	return func(s *AWSSecretsManagerStore) {
		s.client = client
	}
}

// NewAWSSecretsManagerStore creates a store. Recognised settings: region,
// endpoint, prefix, access_key_id and secret_access_key.
func NewAWSSecretsManagerStore(name string, settings map[string]interface{}, opts ...StoreOption) (*AWSSecretsManagerStore, error) {
	s := &AWSSecretsManagerStore{
		name:   name,
		prefix: stringOption(settings, "prefix", ""),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.client == nil {
		region := stringOption(settings, "region", "us-east-1")
		endpoint := stringOption(settings, "endpoint", "")
		accessKeyID := stringOption(settings, "access_key_id", "")
		secretAccessKey := stringOption(settings, "secret_access_key", "")

		var configOpts []func(*awsconfig.LoadOptions) error
		configOpts = append(configOpts, awsconfig.WithRegion(region))

		// Static credentials are for LocalStack and tests
		if accessKeyID != "" && secretAccessKey != "" {
			configOpts = append(configOpts, awsconfig.WithCredentialsProvider(
				awscreds.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
			))
		}

		cfg, err := awsconfig.LoadDefaultConfig(context.Background(), configOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}

		var clientOpts []func(*secretsmanager.Options)
		if endpoint != "" {
			clientOpts = append(clientOpts, func(o *secretsmanager.Options) {
				o.BaseEndpoint = aws.String(endpoint)
			})
		}
		s.client = secretsmanager.NewFromConfig(cfg, clientOpts...)
	}

	return s, nil
}

// NewAWSSecretsManagerStoreFactory creates an AWS Secrets Manager store factory
func NewAWSSecretsManagerStoreFactory(name string, cfg config.CredentialStoreConfig) (Store, error) {
	return NewAWSSecretsManagerStore(name, cfg.Config)
}

// Name returns the store name
func (s *AWSSecretsManagerStore) Name() string {
	return s.name
}

// Get reads the secret <prefix><stateKey>
func (s *AWSSecretsManagerStore) Get(ctx context.Context, stateKey string) (identifier.Credentials, error) {
	secretID := s.prefix + stateKey

	result, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if err != nil {
		var nf *types.ResourceNotFoundException
		if errors.As(err, &nf) {
			return identifier.Credentials{}, notFound(s.name, stateKey)
		}
		return identifier.Credentials{}, fmt.Errorf("secrets manager lookup of %s failed: %w", secretID, err)
	}

	switch {
	case result.SecretString != nil:
		return decodePair(s.name, stateKey, []byte(*result.SecretString))
	case result.SecretBinary != nil:
		return decodePair(s.name, stateKey, result.SecretBinary)
	default:
		return identifier.Credentials{}, &identifier.ConfigError{
			StateKey: stateKey,
			Message:  fmt.Sprintf("secret '%s' has no value", secretID),
		}
	}
}
