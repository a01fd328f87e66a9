package fakes

import (
	"encoding/json"
	"sync"

	"github.com/systmms/pidops/internal/credentials"
)

// FakeKeyring is an in-memory credentials.KeyringClient.
type FakeKeyring struct {
	mu sync.Mutex

	// Items maps "service/account" to the stored secret.
	Items map[string]string

	// Err, when set, is returned by every call.
	Err error

	// Gets counts Get calls.
	Gets int
}

// NewFakeKeyring creates an empty fake keyring.
func NewFakeKeyring() *FakeKeyring {
	return &FakeKeyring{Items: make(map[string]string)}
}

func key(service, account string) string {
	return service + "/" + account
}

// SetPair stores a username/password pair the way KeyringStore.Put does.
func (f *FakeKeyring) SetPair(service, account, username, password string) {
	data, _ := json.Marshal(map[string]string{"username": username, "password": password})
	_ = f.Set(service, account, string(data))
}

// Item returns the raw secret stored for service/account.
func (f *FakeKeyring) Item(service, account string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.Items[key(service, account)]
	return v, ok
}

func (f *FakeKeyring) Get(service, account string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Gets++
	if f.Err != nil {
		return "", f.Err
	}
	v, ok := f.Items[key(service, account)]
	if !ok {
		return "", credentials.ErrKeyringItemNotFound
	}
	return v, nil
}

func (f *FakeKeyring) Set(service, account, secret string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.Items[key(service, account)] = secret
	return nil
}

func (f *FakeKeyring) Delete(service, account string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	if _, ok := f.Items[key(service, account)]; !ok {
		return credentials.ErrKeyringItemNotFound
	}
	delete(f.Items, key(service, account))
	return nil
}

var _ credentials.KeyringClient = (*FakeKeyring)(nil)
