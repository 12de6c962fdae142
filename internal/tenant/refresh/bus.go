package refresh

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

// Message is a refresh broadcast. Keys are forced into the receiving node's
// change notification in addition to whatever its own reload detects.
type Message struct {
	Origin string   `json:"origin"`
	Keys   []string `json:"keys,omitempty"`
}

func encode(msg Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode refresh message: %w", err)
	}
	return data, nil
}

// Publisher broadcasts a refresh request to the other nodes.
type Publisher interface {
	Publish(ctx context.Context, keys []string) error
}

// Publishers fans a broadcast out to every transport.
type Publishers []Publisher

// Publish sends to every publisher and joins the failures.
func (p Publishers) Publish(ctx context.Context, keys []string) error {
	var errs []error
	for _, pub := range p {
		if err := pub.Publish(ctx, keys); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ReloadFunc matches Reloader.Reload.
type ReloadFunc func(ctx context.Context, trigger Trigger, extraKeys ...string) (Result, error)

// Listener reloads this node when another node broadcasts a refresh.
type Listener struct {
	origin string
	reload ReloadFunc
	logger *slog.Logger
}

// NewListener returns a Listener for the node named origin.
func NewListener(origin string, reload ReloadFunc, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{origin: origin, reload: reload, logger: logger}
}

// Origin names this node on the bus.
func (l *Listener) Origin() string {
	return l.origin
}

// Handle applies one encoded message. Messages this node published and
// undecodable payloads are dropped.
func (l *Listener) Handle(ctx context.Context, payload []byte) error {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		l.logger.WarnContext(ctx, "tenant_refresh_message_invalid", "error", err)
		return nil
	}
	if msg.Origin == l.origin {
		return nil
	}

	res, err := l.reload(ctx, TriggerBus, msg.Keys...)
	if err != nil {
		return fmt.Errorf("apply refresh from %s: %w", msg.Origin, err)
	}
	l.logger.InfoContext(ctx, "tenant_refresh_received",
		"origin", msg.Origin,
		"changed_keys", res.ChangedKeys,
	)
	return nil
}
