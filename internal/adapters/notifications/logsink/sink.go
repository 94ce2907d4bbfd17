// Package logsink entrega notificaciones como líneas de log estructurado.
// Es el sink por defecto en dev.
package logsink

import (
	"context"

	"pet-rehoming/internal/platform/logger"
	"pet-rehoming/internal/ports/notifications"
)

type Sink struct {
	log logger.Logger
}

func New(log logger.Logger) *Sink {
	if log == nil {
		log = logger.Nop()
	}
	return &Sink{log: log.With(map[string]any{"component": "notifications"})}
}

func (s *Sink) Notify(_ context.Context, n notifications.Notification) error {
	s.log.Info("notification", map[string]any{
		"user_id": n.UserID,
		"message": n.Message,
		"link":    n.Link,
		"data":    n.Data,
	})
	return nil
}
