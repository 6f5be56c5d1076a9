package postgres

import (
	"context"
	"fmt"
	"time"

	"gogrid/domain/core"
	"gogrid/internal"
	"gogrid/models"

	"github.com/lib/pq"
	"github.com/tidwall/gjson"
)

const listenerPingInterval = 90 * time.Second

// GridListener turns pg_notify payloads on a channel into grid changes
type GridListener struct {
	dsn          string
	channel      string
	minReconnect time.Duration
	maxReconnect time.Duration
	logger       *internal.Logger
}

// NewGridListener creates a listener for the given connection string and
// notification channel
func NewGridListener(dsn, channel string, minReconnect, maxReconnect time.Duration, logger *internal.Logger) *GridListener {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &GridListener{
		dsn:          dsn,
		channel:      channel,
		minReconnect: minReconnect,
		maxReconnect: maxReconnect,
		logger:       logger.With("GridListener"),
	}
}

// Listen blocks delivering changes to handler until ctx is done. The
// underlying connection reconnects on its own; changes made while it was
// down are not replayed.
func (l *GridListener) Listen(ctx context.Context, handler func(models.GridChange)) error {
	listener := pq.NewListener(l.dsn, l.minReconnect, l.maxReconnect, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnectionAttemptFailed, pq.ListenerEventDisconnected:
			l.logger.Warn("connection event %d: %v", ev, err)
		case pq.ListenerEventReconnected:
			l.logger.Info("reconnected to %s", l.channel)
		}
	})
	defer listener.Close()

	if err := listener.Listen(l.channel); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", l.channel, err)
	}
	l.logger.Info("listening for grid changes on %s", l.channel)

	ticker := time.NewTicker(listenerPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case n := <-listener.Notify:
			if n == nil {
				// Sent after a reconnect
				l.logger.Warn("notifications may have been missed while disconnected")
				continue
			}
			change, err := ParseChange(n.Extra)
			if err != nil {
				l.logger.Warn("ignoring notification: %v", err)
				continue
			}
			handler(change)

		case <-ticker.C:
			go func() {
				if err := listener.Ping(); err != nil {
					l.logger.Debug("ping failed: %v", err)
				}
			}()
		}
	}
}

// ParseChange decodes a notification payload written by GridRepository.Save
func ParseChange(payload string) (models.GridChange, error) {
	if !gjson.Valid(payload) {
		return models.GridChange{}, fmt.Errorf("payload is not JSON: %q", payload)
	}

	key := gjson.Get(payload, "key")
	if !key.Exists() {
		return models.GridChange{}, fmt.Errorf("payload has no key: %q", payload)
	}
	gridKey, err := core.ParseGridKey(key.String())
	if err != nil {
		return models.GridChange{}, err
	}

	return models.GridChange{
		Key:     gridKey,
		Origin:  core.InstanceID(gjson.Get(payload, "origin").String()),
		Version: gjson.Get(payload, "version").Int(),
	}, nil
}
