package natsadapter

import (
	"context"
	"encoding/json"
	"time"

	nats "github.com/nats-io/nats.go"
)

// EventPublisher fans out security-relevant auth events so downstream
// services can drop cached authorizations for revoked sessions.
type EventPublisher interface {
	SessionsRevoked(ctx context.Context, userID string, count int64) error
}

type eventPublisher struct {
	conn    *nats.Conn
	subject string
}

func NewEventPublisher(conn *nats.Conn, subject string) EventPublisher {
	return &eventPublisher{conn: conn, subject: subject}
}

type sessionsRevokedEvent struct {
	UserID    string    `json:"user_id"`
	Count     int64     `json:"count"`
	RevokedAt time.Time `json:"revoked_at"`
}

func (p *eventPublisher) SessionsRevoked(_ context.Context, userID string, count int64) error {
	data, err := json.Marshal(sessionsRevokedEvent{UserID: userID, Count: count, RevokedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	return p.conn.Publish(p.subject, data)
}
