package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/txn2/ai-notebook/pkg/audit"
	"github.com/txn2/ai-notebook/pkg/auth"
	"github.com/txn2/ai-notebook/pkg/health"
	"github.com/txn2/ai-notebook/pkg/kvstore"
	"github.com/txn2/ai-notebook/pkg/notebook"
	"github.com/txn2/ai-notebook/pkg/password"
	"github.com/txn2/ai-notebook/pkg/table"
	"github.com/txn2/ai-notebook/pkg/token"
)

const (
	testAliceEmail = "alice@x.io"
	testBobEmail   = "bob@x.io"
	testPassword   = "secret-pw"
)

// recordedEvents collects events handed to the gateway's recorder.
type recordedEvents struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recordedEvents) Record(event audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordedEvents) types() []audit.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]audit.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type testGateway struct {
	t        *testing.T
	handler  *Handler
	emulator *auth.Emulator
	tokens   *token.Issuer
	recorder *recordedEvents
	checker  *health.Checker
}

func newTestGateway(t *testing.T) *testGateway {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	issuer, err := token.NewIssuer(token.Config{SigningKey: "gateway-test-key", TTL: time.Hour})
	require.NoError(t, err)

	em, err := auth.New(context.Background(), auth.Config{
		Store:          kvstore.NewMemoryStore(),
		Tokens:         issuer,
		PasswordParams: &password.Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16},
		Logger:         logger,
	})
	require.NoError(t, err)

	tables := table.NewMemoryStore(em)
	checker := health.NewChecker()
	checker.SetReady()
	rec := &recordedEvents{}

	h := NewHandler(Deps{
		Sessions: em,
		Tokens:   issuer,
		Tables:   tables,
		Notebook: notebook.New(tables, logger),
		Recorder: rec,
		Health:   checker,
		Logger:   logger,
	})
	return &testGateway{t: t, handler: h, emulator: em, tokens: issuer, recorder: rec, checker: checker}
}

// do sends a request with an optional JSON body and bearer token.
func (g *testGateway) do(method, target string, body any, bearer string) *httptest.ResponseRecorder {
	g.t.Helper()
	var reader io.Reader = http.NoBody
	if body != nil {
		switch b := body.(type) {
		case string:
			reader = bytes.NewBufferString(b)
		default:
			data, err := json.Marshal(b)
			require.NoError(g.t, err)
			reader = bytes.NewReader(data)
		}
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	g.handler.ServeHTTP(w, req)
	return w
}

// signUp registers email and returns the access token.
func (g *testGateway) signUp(email string) string {
	g.t.Helper()
	w := g.do(http.MethodPost, "/auth/v1/signup", map[string]any{
		"email": email, "password": testPassword,
	}, "")
	require.Equal(g.t, http.StatusCreated, w.Code, w.Body.String())
	var sess auth.Session
	require.NoError(g.t, json.Unmarshal(w.Body.Bytes(), &sess))
	return sess.AccessToken
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func decodeRows(t *testing.T, w *httptest.ResponseRecorder) []map[string]any {
	t.Helper()
	var rows []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rows))
	return rows
}

func newRequest(method, target, authorization string) *http.Request {
	req := httptest.NewRequest(method, target, http.NoBody)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}
