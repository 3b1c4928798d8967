package circuitbreaker

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		cfg      Config
		wantNil  bool
		wantName string
	}{
		{
			name: "creates breaker when enabled",
			cfg: Config{
				Name:             "portal",
				Enabled:          true,
				MaxRequests:      5,
				Interval:         60 * time.Second,
				Timeout:          30 * time.Second,
				FailureThreshold: 5,
			},
			wantName: "portal",
		},
		{
			name: "returns nil when disabled",
			cfg: Config{
				Name:    "portal",
				Enabled: false,
			},
			wantNil: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			b := New[string](tc.cfg)

			if tc.wantNil {
				require.Nil(t, b)

				return
			}

			require.NotNil(t, b)
			require.Equal(t, tc.wantName, b.Name())
			require.Equal(t, "closed", b.State())
		})
	}
}

func TestExecute(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		b         *Breaker[string]
		fn        func() (string, error)
		wantVal   string
		errSubstr string
	}{
		{
			name: "executes successfully through the breaker",
			b: New[string](Config{
				Name:             "success",
				Enabled:          true,
				MaxRequests:      5,
				Timeout:          30 * time.Second,
				FailureThreshold: 5,
			}),
			fn: func() (string, error) {
				return "ok", nil
			},
			wantVal: "ok",
		},
		{
			name: "passes through when breaker is nil",
			b:    nil,
			fn: func() (string, error) {
				return "direct", nil
			},
			wantVal: "direct",
		},
		{
			name: "returns error from function",
			b: New[string](Config{
				Name:             "failing",
				Enabled:          true,
				MaxRequests:      5,
				Timeout:          30 * time.Second,
				FailureThreshold: 5,
			}),
			fn: func() (string, error) {
				return "", errors.New("portal unreachable")
			},
			errSubstr: "portal unreachable",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			result, err := Execute(tc.b, tc.fn)

			if tc.errSubstr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.errSubstr)
			} else {
				require.NoError(t, err)
			}

			require.Equal(t, tc.wantVal, result)
		})
	}
}

func TestExecute_OpenState(t *testing.T) {
	t.Parallel()

	b := New[string](Config{
		Name:             "trips-fast",
		Enabled:          true,
		MaxRequests:      1,
		Timeout:          time.Second,
		FailureThreshold: 1,
	})
	require.NotNil(t, b)

	// First failure trips the breaker.
	_, err := Execute(b, func() (string, error) {
		return "", errors.New("failure")
	})
	require.Error(t, err)

	_, err = Execute(b, func() (string, error) {
		return "should not execute", nil
	})
	require.ErrorIs(t, err, ErrCircuitOpen)
	require.Equal(t, "open", b.State())
}

func TestExecute_RecoversThroughHalfOpen(t *testing.T) {
	t.Parallel()

	b := New[string](Config{
		Name:             "recovers",
		Enabled:          true,
		MaxRequests:      1,
		Timeout:          100 * time.Millisecond,
		FailureThreshold: 1,
	})
	require.NotNil(t, b)

	_, _ = Execute(b, func() (string, error) {
		return "", errors.New("failure")
	})

	time.Sleep(150 * time.Millisecond)

	result, err := Execute(b, func() (string, error) {
		return "recovered", nil
	})
	require.NoError(t, err)
	require.Equal(t, "recovered", result)
}

func TestNew_OnStateChange(t *testing.T) {
	t.Parallel()

	var (
		mu          sync.Mutex
		transitions []string
	)

	b := New[string](Config{
		Name:             "observed",
		Enabled:          true,
		MaxRequests:      1,
		Timeout:          time.Second,
		FailureThreshold: 1,
		OnStateChange: func(_, from, to string) {
			mu.Lock()
			transitions = append(transitions, from+"->"+to)
			mu.Unlock()
		},
	})
	require.NotNil(t, b)

	_, _ = Execute(b, func() (string, error) {
		return "", errors.New("failure")
	})

	mu.Lock()
	defer mu.Unlock()
	require.Contains(t, transitions, "closed->open")
}

func TestExecute_GenericResult(t *testing.T) {
	t.Parallel()

	type envelope struct {
		Status bool
	}

	b := New[*envelope](Config{
		Name:             "typed",
		Enabled:          true,
		MaxRequests:      5,
		Timeout:          30 * time.Second,
		FailureThreshold: 3,
	})
	require.NotNil(t, b)

	result, err := Execute(b, func() (*envelope, error) {
		return &envelope{Status: true}, nil
	})

	require.NoError(t, err)
	require.NotNil(t, result)
	require.True(t, result.Status)
}
