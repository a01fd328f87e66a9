package fakes

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"

	"github.com/systmms/pidops/internal/credentials"
)

// FakeSecretsManagerClient is an in-memory credentials.SecretsManagerClientAPI.
type FakeSecretsManagerClient struct {
	mu sync.Mutex

	// Secrets maps secret IDs to their SecretString.
	Secrets map[string]string

	// Errors maps secret IDs to errors to return instead.
	Errors map[string]error

	// Requested records every SecretId asked for, in order.
	Requested []string
}

// NewFakeSecretsManagerClient creates an empty fake client.
func NewFakeSecretsManagerClient() *FakeSecretsManagerClient {
	return &FakeSecretsManagerClient{
		Secrets: make(map[string]string),
		Errors:  make(map[string]error),
	}
}

// AddSecretString stores a string secret.
func (f *FakeSecretsManagerClient) AddSecretString(id, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Secrets[id] = value
}

// GetSecretValue returns the stored secret or ResourceNotFoundException.
func (f *FakeSecretsManagerClient) GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := aws.ToString(params.SecretId)
	f.Requested = append(f.Requested, id)

	if err, ok := f.Errors[id]; ok {
		return nil, err
	}
	v, ok := f.Secrets[id]
	if !ok {
		return nil, &types.ResourceNotFoundException{
			Message: aws.String("Secrets Manager can't find the specified secret."),
		}
	}
	return &secretsmanager.GetSecretValueOutput{
		Name:         aws.String(id),
		SecretString: aws.String(v),
	}, nil
}

var _ credentials.SecretsManagerClientAPI = (*FakeSecretsManagerClient)(nil)
