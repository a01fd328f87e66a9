package testutil

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// RegistrarCall is one request received by a FakeRegistrar.
type RegistrarCall struct {
	Method      string
	Path        string
	Username    string
	Password    string
	ContentType string
	Body        string
}

// FakeRegistrar is an httptest server speaking the EZID text protocol.
// Respond decides each answer; by default every call succeeds.
type FakeRegistrar struct {
	Server  *httptest.Server
	Respond func(call RegistrarCall) (status int, body string)

	mu    sync.Mutex
	calls []RegistrarCall
}

// NewFakeRegistrar starts a fake registrar that is closed with the test.
func NewFakeRegistrar(t *testing.T) *FakeRegistrar {
	t.Helper()

	f := &FakeRegistrar{}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.Server.Close)
	return f
}

// URL returns the registrar base URL.
func (f *FakeRegistrar) URL() string {
	return f.Server.URL
}

// Calls returns the requests received so far.
func (f *FakeRegistrar) Calls() []RegistrarCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RegistrarCall(nil), f.calls...)
}

func (f *FakeRegistrar) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	user, pass, _ := r.BasicAuth()

	call := RegistrarCall{
		Method:      r.Method,
		Path:        r.URL.EscapedPath(),
		Username:    user,
		Password:    pass,
		ContentType: r.Header.Get("Content-Type"),
		Body:        string(body),
	}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	respond := f.Respond
	f.mu.Unlock()

	status, answer := http.StatusOK, defaultAnswer(call)
	if respond != nil {
		status, answer = respond(call)
	}

	w.Header().Set("Content-Type", "text/plain; charset=UTF-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, answer)
}

func defaultAnswer(call RegistrarCall) string {
	switch {
	case strings.HasPrefix(call.Path, "/shoulder/"):
		return "success: ark:/99999/fk4minted | ark:/b99999/fk4minted"
	case strings.HasPrefix(call.Path, "/id/"):
		id := strings.TrimPrefix(call.Path, "/id/")
		if call.Method == http.MethodDelete {
			return "success: " + id + " deleted"
		}
		return "success: " + id
	}
	return "error: bad request - unrecognized path"
}
