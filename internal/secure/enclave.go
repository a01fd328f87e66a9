package secure

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"sync"

	"github.com/awnumar/memguard"
)

// ErrEmpty is returned when there is no secret to protect.
var ErrEmpty = errors.New("secret is empty")

// ErrDestroyed is returned by Open after Destroy.
var ErrDestroyed = errors.New("secure buffer has been destroyed")

// SecureBuffer holds one secret in an encrypted memguard enclave.
type SecureBuffer struct {
	mu        sync.RWMutex
	enclave   *memguard.Enclave
	destroyed bool
}

// NewSecureBuffer moves data into an enclave. memguard wipes data after
// copying it, so callers must not reuse the slice.
func NewSecureBuffer(data []byte) (*SecureBuffer, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	return &SecureBuffer{enclave: memguard.NewEnclave(data)}, nil
}

// ReadLine protects the first line of r, without its line ending.
func ReadLine(r io.Reader) (*SecureBuffer, error) {
	reader := bufio.NewReader(r)
	line, err := reader.ReadBytes('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		memguard.WipeBytes(line)
		return nil, err
	}
	trimmed := bytes.TrimRight(line, "\r\n")
	buf, err := NewSecureBuffer(trimmed)
	memguard.WipeBytes(line)
	return buf, err
}

// Open decrypts the secret into a locked buffer. The caller must Destroy
// the returned buffer.
func (s *SecureBuffer) Open() (*memguard.LockedBuffer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.destroyed {
		return nil, ErrDestroyed
	}
	return s.enclave.Open()
}

// Destroy drops the enclave. Safe to call more than once.
func (s *SecureBuffer) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.enclave = nil
	s.destroyed = true
}

// String never reveals the secret.
func (s *SecureBuffer) String() string {
	return "[REDACTED]"
}
