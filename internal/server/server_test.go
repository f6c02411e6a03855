package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intramind/config"
	"intramind/internal/adapter/store"
	"intramind/internal/auth"
	"intramind/internal/domain"
	"intramind/internal/usecase"
)

type fakeQuerier struct {
	result   domain.QueryResult
	err      error
	caller   domain.Caller
	question string
	history  []domain.ConversationTurn
	deadline bool
}

func (f *fakeQuerier) Query(ctx context.Context, caller domain.Caller, question string, history []domain.ConversationTurn) (domain.QueryResult, error) {
	f.caller, f.question, f.history = caller, question, history
	_, f.deadline = ctx.Deadline()
	return f.result, f.err
}

var authCfg = config.AuthConfig{
	Enabled:       true,
	JWTSecret:     "server-test-secret",
	Algorithm:     "HS256",
	RequiredGroup: "RAG-App-Users",
}

func newTestServer(t *testing.T, q Querier, idx *store.ChunkIndex) (*Server, string) {
	t.Helper()
	v, err := auth.NewVerifier(authCfg)
	require.NoError(t, err)
	token, err := auth.MintToken(authCfg, "alice@company.com", "Alice", []string{"RAG-App-Users"}, time.Hour)
	require.NoError(t, err)

	s := New(q, store.NewHandle(idx), v, config.ServerConfig{RequestTimeout: time.Minute}, zerolog.Nop())
	return s, token
}

func postQuery(t *testing.T, h http.Handler, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, &fakeQuerier{}, nil)
	s.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var body HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "2026-01-02T03:04:05Z", body.Timestamp)
}

func TestQuery_Success(t *testing.T) {
	q := &fakeQuerier{result: domain.QueryResult{Answer: "Twenty days.", Confidence: 0.82, Sources: []string{"leave.txt"}}}
	s, token := newTestServer(t, q, nil)

	w := postQuery(t, s.Handler(), token, `{"question":"How many days?","chat_history":[{"role":"user","content":"hi"},{"role":"assistant","content":"hello"}]}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"answer":"Twenty days.","confidence":0.82,"sources":["leave.txt"]}`, w.Body.String())
	assert.Equal(t, "alice@company.com", q.caller.Subject)
	assert.Equal(t, "How many days?", q.question)
	assert.Len(t, q.history, 2)
	assert.True(t, q.deadline, "query should run under the request timeout")
}

func TestQuery_NoMatchSourcesNotNull(t *testing.T) {
	s, token := newTestServer(t, &fakeQuerier{result: domain.QueryResult{Answer: usecase.NoMatchAnswer}}, nil)

	w := postQuery(t, s.Handler(), token, `{"question":"unknown topic"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"answer":"No relevant information found in the knowledge base.","confidence":0,"sources":[]}`, w.Body.String())
}

func TestQuery_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"invalid role", fmt.Errorf("%w: unknown role", domain.ErrInvalidInput), http.StatusBadRequest},
		{"upstream", fmt.Errorf("failed to generate answer: %w", domain.ErrUpstreamUnavailable), http.StatusServiceUnavailable},
		{"timeout", context.DeadlineExceeded, http.StatusServiceUnavailable},
		{"configuration", domain.NewConfigurationError("retrieve", "no index loaded"), http.StatusInternalServerError},
		{"model mismatch", &domain.ModelMismatchError{IndexModel: "a", QueryModel: "b"}, http.StatusInternalServerError},
		{"dimension mismatch", fmt.Errorf("vector search failed: %w", domain.NewConfigurationError("search", "query dimension 64, index dimension 32")), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, token := newTestServer(t, &fakeQuerier{err: tt.err}, nil)
			w := postQuery(t, s.Handler(), token, `{"question":"q"}`)
			assert.Equal(t, tt.want, w.Code)
			assert.Contains(t, w.Body.String(), `"detail"`)
		})
	}
}

func TestQuery_BadRequests(t *testing.T) {
	s, token := newTestServer(t, &fakeQuerier{}, nil)
	h := s.Handler()

	for _, body := range []string{`{`, `{"chat_history":[]}`, `[]`} {
		w := postQuery(t, h, token, body)
		assert.Equal(t, http.StatusBadRequest, w.Code, "body %s", body)
	}
}

func TestQuery_Auth(t *testing.T) {
	s, _ := newTestServer(t, &fakeQuerier{}, nil)
	h := s.Handler()

	w := postQuery(t, h, "", `{"question":"q"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	outsider, err := auth.MintToken(authCfg, "bob", "", []string{"Finance"}, time.Hour)
	require.NoError(t, err)
	w = postQuery(t, h, outsider, `{"question":"q"}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestIndexEndpoint(t *testing.T) {
	b, err := store.NewBuilder("hash-4", 4, store.MetricL2)
	require.NoError(t, err)
	require.NoError(t, b.Add(domain.Chunk{ID: "c1", Text: "t", Metadata: map[string]string{domain.MetaSourceFile: "a.txt"}}, []float32{1, 0, 0, 0}))
	idx := b.Build()

	s, token := newTestServer(t, &fakeQuerier{}, idx)
	r := httptest.NewRequest(http.MethodGet, "/index", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	var m domain.Manifest
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m))
	assert.Equal(t, idx.Manifest().BuildID, m.BuildID)
	assert.Equal(t, "hash-4", m.ModelID)
	assert.Equal(t, 1, m.Chunks)

	empty, token := newTestServer(t, &fakeQuerier{}, nil)
	r = httptest.NewRequest(http.MethodGet, "/index", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	empty.Handler().ServeHTTP(w, r)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRequestIDHeader(t *testing.T) {
	s, _ := newTestServer(t, &fakeQuerier{}, nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
}
