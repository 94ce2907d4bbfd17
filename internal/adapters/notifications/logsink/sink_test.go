package logsink

import (
	"context"
	"testing"

	"pet-rehoming/internal/platform/logger"
	"pet-rehoming/internal/ports/notifications"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSink_LogsNotification(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	s := New(logger.NewFromZap(zap.New(core)))

	err := s.Notify(context.Background(), notifications.Notification{
		UserID:  "u-1",
		Message: "Your transfer was confirmed",
		Link:    "/transfer-requests/t-1",
	})
	require.NoError(t, err)

	entries := logs.FilterMessage("notification").All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "u-1", ctx["user_id"])
	assert.Equal(t, "notifications", ctx["component"])
	assert.Equal(t, "/transfer-requests/t-1", ctx["link"])
}
