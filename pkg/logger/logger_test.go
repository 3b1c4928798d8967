package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/enlacemx/recordkit/pkg/logger"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		level  string
		format string
	}{
		{
			name:   "creates logger with debug level",
			level:  "debug",
			format: logger.ConsoleFormat,
		},
		{
			name:   "creates logger with json format",
			level:  "info",
			format: logger.JSONFormat,
		},
		{
			name:   "falls back to info for unknown level",
			level:  "chatty",
			format: logger.ConsoleFormat,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			log := logger.New(tc.level, tc.format)
			require.NotNil(t, log)
		})
	}
}

func TestWithContext(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name              string
		setupContext      func() context.Context
		expectedRequestID string
		hasRequestID      bool
	}{
		{
			name: "adds request ID to logger",
			setupContext: func() context.Context {
				return logger.WithRequestID(context.Background(), "req-123")
			},
			expectedRequestID: "req-123",
			hasRequestID:      true,
		},
		{
			name: "handles empty context",
			setupContext: func() context.Context {
				return context.Background()
			},
			hasRequestID: false,
		},
		{
			name: "handles empty request ID",
			setupContext: func() context.Context {
				return logger.WithRequestID(context.Background(), "")
			},
			hasRequestID: false,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			log := logger.NewWithWriter("info", logger.JSONFormat, &buf)

			ctxLogger := log.WithContext(tc.setupContext())
			ctxLogger.Info().Msg("test message")

			if tc.hasRequestID {
				var logEntry map[string]any
				err := json.Unmarshal(buf.Bytes(), &logEntry)
				require.NoError(t, err)
				require.Equal(t, tc.expectedRequestID, logEntry["request_id"])
			}
		})
	}
}

func TestWithComponent(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := logger.NewWithWriter("info", logger.JSONFormat, &buf).WithComponent("records")

	log.Info().Msg("hello")

	var logEntry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &logEntry))
	require.Equal(t, "records", logEntry["component"])
}
