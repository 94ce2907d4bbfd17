// Package redispub publica notificaciones en un canal pub/sub por usuario.
// Quien entrega (websocket, push, email) se suscribe a notifications:user:<id>.
package redispub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"pet-rehoming/internal/ports/notifications"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "notifications:user:"

// Channel devuelve el canal de un usuario.
func Channel(userID string) string {
	return channelPrefix + userID
}

type Sink struct {
	client redis.UniversalClient
}

func New(client redis.UniversalClient) *Sink {
	return &Sink{client: client}
}

func (s *Sink) Notify(ctx context.Context, n notifications.Notification) error {
	if s == nil || s.client == nil {
		return errors.New("redispub: nil client")
	}
	if strings.TrimSpace(n.UserID) == "" {
		return errors.New("redispub: notification without user_id")
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("redispub: marshal: %w", err)
	}
	if err := s.client.Publish(ctx, Channel(n.UserID), payload).Err(); err != nil {
		return fmt.Errorf("redispub: publish: %w", err)
	}
	return nil
}
