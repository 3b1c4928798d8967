package itest

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/enlacemx/recordkit/internal/adapters/outbound/portal"
	"github.com/enlacemx/recordkit/internal/adapters/records"
	"github.com/enlacemx/recordkit/internal/cache"
	"github.com/enlacemx/recordkit/internal/config"
	"github.com/enlacemx/recordkit/internal/domain/model"
	"github.com/enlacemx/recordkit/internal/testserver"
	"github.com/enlacemx/recordkit/pkg/logger"
	"github.com/stretchr/testify/require"
)

const testToken = "itest-portal-token"

type staticTokens struct {
	token string
}

func (s *staticTokens) Token() string { return s.token }

type sessionSpy struct {
	mu    sync.Mutex
	ended bool
}

func (s *sessionSpy) EndSession(context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ended = true
}

func (s *sessionSpy) wasEnded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ended
}

type notifierSpy struct {
	mu      sync.Mutex
	dialogs []model.Notice
	toasts  []string
}

func (n *notifierSpy) Dialog(notice model.Notice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dialogs = append(n.dialogs, notice)
}

func (n *notifierSpy) Toast(message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.toasts = append(n.toasts, message)
}

func (n *notifierSpy) dialogTitles() []string {
	n.mu.Lock()
	defer n.mu.Unlock()

	titles := make([]string, 0, len(n.dialogs))
	for _, d := range n.dialogs {
		titles = append(titles, d.Title)
	}

	return titles
}

func (n *notifierSpy) toastCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	return len(n.toasts)
}

type stack struct {
	portal   *testserver.Server
	server   *httptest.Server
	session  *sessionSpy
	notifier *notifierSpy
	clients  *records.Service
}

// newStack wires the whole client pipeline against the in-memory portal:
// transport, cache-backed service, and the notification spies.
func newStack(t *testing.T, token string) *stack {
	t.Helper()

	portalDouble := testserver.New(testToken)
	server := httptest.NewServer(portalDouble)
	t.Cleanup(server.Close)

	session := &sessionSpy{}
	notifier := &notifierSpy{}

	cfg := &config.ServiceConfig{
		Portal: config.Portal{
			BaseURL:    server.URL,
			Timeout:    5 * time.Second,
			MaxRetries: 1,
		},
		Backoff: config.Backoff{
			BaseDelay:  time.Millisecond,
			Multiplier: 1.5,
			Jitter:     0.1,
			MaxDelay:   5 * time.Millisecond,
		},
		Idempotency: config.Idempotency{Enabled: true, HeaderName: "Idempotency-Key"},
		Cache:       config.Cache{Kind: config.CacheKindMemory, TTL: 2 * time.Minute},
	}

	client, err := portal.NewClient(cfg, portal.Dependencies{
		Tokens:   &staticTokens{token: token},
		Session:  session,
		Notifier: notifier,
	}, logger.NewTestLogger())
	require.NoError(t, err)

	svc := records.NewService(
		client,
		"clients",
		[]string{"nombre", "email", "saldo"},
		logger.NewTestLogger(),
		records.WithCache(cache.NewMemoryStore(), time.Minute),
		records.WithNotifier(notifier),
	)

	return &stack{
		portal:   portalDouble,
		server:   server,
		session:  session,
		notifier: notifier,
		clients:  svc,
	}
}
