package portal_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/enlacemx/recordkit/internal/adapters/outbound/portal"
	"github.com/enlacemx/recordkit/internal/config"
	"github.com/enlacemx/recordkit/internal/domain/model"
	"github.com/enlacemx/recordkit/pkg/logger"
	"github.com/stretchr/testify/require"
)

type fakeTokens struct {
	token string
}

func (f *fakeTokens) Token() string { return f.token }

type fakeSession struct {
	ended atomic.Bool
}

func (f *fakeSession) EndSession(context.Context) { f.ended.Store(true) }

type fakeLoader struct {
	begins atomic.Int32
	ends   atomic.Int32
}

func (f *fakeLoader) Begin() { f.begins.Add(1) }
func (f *fakeLoader) End()   { f.ends.Add(1) }

type fakeNotifier struct {
	mu      sync.Mutex
	dialogs []model.Notice
	toasts  []string
}

func (f *fakeNotifier) Dialog(notice model.Notice) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dialogs = append(f.dialogs, notice)
}

func (f *fakeNotifier) Toast(message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.toasts = append(f.toasts, message)
}

func (f *fakeNotifier) lastDialog() (model.Notice, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.dialogs) == 0 {
		return model.Notice{}, false
	}

	return f.dialogs[len(f.dialogs)-1], true
}

func testConfig(baseURL string) *config.ServiceConfig {
	return &config.ServiceConfig{
		Portal: config.Portal{
			BaseURL:    baseURL,
			Timeout:    5 * time.Second,
			MaxRetries: 2,
		},
		Backoff: config.Backoff{
			BaseDelay:  time.Millisecond,
			Multiplier: 1.5,
			Jitter:     0.1,
			MaxDelay:   5 * time.Millisecond,
		},
		Idempotency: config.Idempotency{
			Enabled:    true,
			HeaderName: "Idempotency-Key",
		},
		Cache: config.Cache{Kind: config.CacheKindMemory, TTL: 2 * time.Minute},
	}
}

func newTestClient(t *testing.T, baseURL string, deps portal.Dependencies) *portal.Client {
	t.Helper()

	client, err := portal.NewClient(testConfig(baseURL), deps, logger.NewTestLogger())
	require.NoError(t, err)

	return client
}

func envelopeHandler(t *testing.T, check func(r *http.Request)) http.HandlerFunc {
	t.Helper()

	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":true,"data":[{"id":1,"nombre":"Ana"}],"message":"ok"}`))
	}
}

func TestClient_GetSuccess(t *testing.T) {
	t.Parallel()

	var gotAuth, gotRequestID string

	server := httptest.NewServer(envelopeHandler(t, func(r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotRequestID = r.Header.Get("X-Request-ID")
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, portal.Dependencies{
		Tokens: &fakeTokens{token: "secret-token"},
	})

	envelope := client.Get(context.Background(), "clients", nil, false)
	require.NotNil(t, envelope)
	require.True(t, envelope.Status)
	require.Equal(t, "Bearer secret-token", gotAuth)
	require.NotEmpty(t, gotRequestID)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(envelope.Data, &rows))
	require.Len(t, rows, 1)
	require.Equal(t, "Ana", rows[0]["nombre"])
}

func TestClient_GetWithoutTokenOmitsAuthorization(t *testing.T) {
	t.Parallel()

	var sawAuth bool

	server := httptest.NewServer(envelopeHandler(t, func(r *http.Request) {
		sawAuth = r.Header.Get("Authorization") != ""
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, portal.Dependencies{})

	envelope := client.Get(context.Background(), "clients", nil, false)
	require.True(t, envelope.Status)
	require.False(t, sawAuth)
}

func TestClient_UnauthorizedEndsSession(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"status":false,"message":"token expired"}`))
	}))
	defer server.Close()

	session := &fakeSession{}
	notifier := &fakeNotifier{}

	client := newTestClient(t, server.URL, portal.Dependencies{
		Session:  session,
		Notifier: notifier,
	})

	envelope := client.Get(context.Background(), "clients", nil, false)
	require.False(t, envelope.Status)
	require.True(t, session.ended.Load())

	notice, ok := notifier.lastDialog()
	require.True(t, ok)
	require.Equal(t, "Session expired", notice.Title)
	require.Equal(t, model.SeverityDanger, notice.Severity)
}

func TestClient_StatusDialogs(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name         string
		status       int
		body         string
		wantTitle    string
		wantSeverity model.Severity
		wantMessage  string
	}{
		{
			name:         "forbidden",
			status:       http.StatusForbidden,
			body:         `{"status":false,"message":"nope"}`,
			wantTitle:    "Not allowed",
			wantSeverity: model.SeverityWarning,
			wantMessage:  "nope",
		},
		{
			name:         "unprocessable uses server message",
			status:       http.StatusUnprocessableEntity,
			body:         `{"status":false,"message":"email is taken"}`,
			wantTitle:    "Validation failed",
			wantSeverity: model.SeverityWarning,
			wantMessage:  "email is taken",
		},
		{
			name:         "rate limited",
			status:       http.StatusTooManyRequests,
			body:         `{"status":false,"message":""}`,
			wantTitle:    "Slow down",
			wantSeverity: model.SeverityWarning,
			wantMessage:  "Too many requests in a short time, please retry shortly.",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer server.Close()

			notifier := &fakeNotifier{}
			client := newTestClient(t, server.URL, portal.Dependencies{Notifier: notifier})

			envelope := client.Post(context.Background(), "clients", map[string]any{"data": map[string]any{}}, false)
			require.False(t, envelope.Status)
			require.Equal(t, tc.wantMessage, envelope.Message)

			notice, ok := notifier.lastDialog()
			require.True(t, ok)
			require.Equal(t, tc.wantTitle, notice.Title)
			require.Equal(t, tc.wantSeverity, notice.Severity)
		})
	}
}

func TestClient_RetriesServerErrorsOnGet(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)

			return
		}

		_, _ = w.Write([]byte(`{"status":true,"message":"ok"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, portal.Dependencies{})

	envelope := client.Get(context.Background(), "clients", nil, false)
	require.True(t, envelope.Status)
	require.Equal(t, int32(3), attempts.Load())
}

func TestClient_DoesNotRetryPost(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"status":false,"message":"boom"}`))
	}))
	defer server.Close()

	notifier := &fakeNotifier{}
	client := newTestClient(t, server.URL, portal.Dependencies{Notifier: notifier})

	envelope := client.Post(context.Background(), "clients", map[string]any{"data": map[string]any{}}, false)
	require.False(t, envelope.Status)
	require.Equal(t, int32(1), attempts.Load())

	notice, ok := notifier.lastDialog()
	require.True(t, ok)
	require.Equal(t, "Server error", notice.Title)
}

func TestClient_ExhaustedRetriesSurfaceServerError(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"status":false,"message":"still broken"}`))
	}))
	defer server.Close()

	notifier := &fakeNotifier{}
	client := newTestClient(t, server.URL, portal.Dependencies{Notifier: notifier})

	envelope := client.Get(context.Background(), "clients", nil, false)
	require.False(t, envelope.Status)
	require.Equal(t, "still broken", envelope.Message)
	require.Equal(t, int32(3), attempts.Load())
}

func TestClient_NetworkFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(envelopeHandler(t, nil))
	server.Close()

	notifier := &fakeNotifier{}
	client := newTestClient(t, server.URL, portal.Dependencies{Notifier: notifier})

	envelope := client.Post(context.Background(), "clients", map[string]any{"data": map[string]any{}}, false)
	require.False(t, envelope.Status)

	notice, ok := notifier.lastDialog()
	require.True(t, ok)
	require.Equal(t, "Service unavailable", notice.Title)
}

func TestClient_LoaderTogglesAroundRequest(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(envelopeHandler(t, nil))
	defer server.Close()

	loader := &fakeLoader{}
	client := newTestClient(t, server.URL, portal.Dependencies{Loader: loader})

	client.Get(context.Background(), "clients", nil, true)
	require.Equal(t, int32(1), loader.begins.Load())
	require.Equal(t, int32(1), loader.ends.Load())

	// Loader stays untouched when not requested.
	client.Get(context.Background(), "clients", nil, false)
	require.Equal(t, int32(1), loader.begins.Load())
}

func TestClient_LoaderReleasedOnFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	loader := &fakeLoader{}
	client := newTestClient(t, server.URL, portal.Dependencies{Loader: loader})

	client.Get(context.Background(), "clients", nil, true)
	require.Equal(t, int32(1), loader.begins.Load())
	require.Equal(t, int32(1), loader.ends.Load())
}

func TestClient_IdempotencyKeyOnMutationsOnly(t *testing.T) {
	t.Parallel()

	var (
		mu   sync.Mutex
		keys = map[string]string{}
	)

	server := httptest.NewServer(envelopeHandler(t, func(r *http.Request) {
		mu.Lock()
		keys[r.Method] = r.Header.Get("Idempotency-Key")
		mu.Unlock()
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, portal.Dependencies{})

	client.Get(context.Background(), "clients", nil, false)
	client.Post(context.Background(), "clients", map[string]any{"data": map[string]any{}}, false)

	mu.Lock()
	defer mu.Unlock()
	require.Empty(t, keys[http.MethodGet])
	require.NotEmpty(t, keys[http.MethodPost])
}

func TestClient_PostMultipart(t *testing.T) {
	t.Parallel()

	var (
		gotData     string
		gotFilename string
		gotContent  string
		gotExtra    string
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))

		gotData = r.FormValue("data")
		gotExtra = r.FormValue("origen")

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()

		gotFilename = header.Filename

		content := make([]byte, header.Size)
		_, _ = file.Read(content)
		gotContent = string(content)

		_, _ = w.Write([]byte(`{"status":true,"message":"created"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, portal.Dependencies{})

	record := model.NewRecord()
	record.Set("nombre", "Ana")

	envelope := client.PostMultipart(context.Background(), "clients", model.FilePayload{
		Data:     record,
		Filename: "avatar.png",
		Content:  strings.NewReader("binary-bytes"),
	}, map[string]string{"origen": "portal"}, false)

	require.True(t, envelope.Status)
	require.JSONEq(t, `{"nombre":"Ana"}`, gotData)
	require.Equal(t, "avatar.png", gotFilename)
	require.Equal(t, "binary-bytes", gotContent)
	require.Equal(t, "portal", gotExtra)
}

func TestClient_NonJSONSuccessBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, portal.Dependencies{})

	envelope := client.Get(context.Background(), "clients", nil, false)
	require.False(t, envelope.Status)
	require.NotEmpty(t, envelope.Message)
}
