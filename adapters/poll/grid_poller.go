package poll

import (
	"context"
	"fmt"
	"time"

	"gogrid/domain/core"
	"gogrid/internal"
	"gogrid/models"

	"github.com/jmoiron/sqlx"
)

// DefaultInterval is used when a poller is created with a non-positive interval
const DefaultInterval = 2 * time.Second

// GridPoller is a change feed for stores that cannot push notifications.
// It reads the version of every stored grid on a ticker and reports the
// keys whose version moved since the previous read.
type GridPoller struct {
	db       *sqlx.DB
	interval time.Duration
	logger   *internal.Logger
}

type versionRow struct {
	Key     core.GridKey    `db:"key"`
	Version int64           `db:"version"`
	Origin  core.InstanceID `db:"origin"`
}

// NewGridPoller creates a poller over the grids table of db
func NewGridPoller(db *sqlx.DB, interval time.Duration, logger *internal.Logger) *GridPoller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &GridPoller{db: db, interval: interval, logger: logger.With("GridPoller")}
}

// Listen reports changes made after the call until ctx is done
func (p *GridPoller) Listen(ctx context.Context, handler func(models.GridChange)) error {
	seen, err := p.versions(ctx)
	if err != nil {
		return fmt.Errorf("failed to read grid versions: %w", err)
	}
	p.logger.Info("polling %d grids every %s", len(seen), p.interval)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-ticker.C:
			current, err := p.versions(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				p.logger.Warn("poll failed: %v", err)
				continue
			}

			for key, row := range current {
				if prev, ok := seen[key]; ok && row.Version == prev.Version {
					continue
				}
				handler(models.GridChange{Key: key, Origin: row.Origin, Version: row.Version})
			}
			seen = current
		}
	}
}

func (p *GridPoller) versions(ctx context.Context) (map[core.GridKey]versionRow, error) {
	var rows []versionRow
	if err := p.db.SelectContext(ctx, &rows, `SELECT key, version, origin FROM grids`); err != nil {
		return nil, err
	}

	out := make(map[core.GridKey]versionRow, len(rows))
	for _, row := range rows {
		out[row.Key] = row
	}
	return out, nil
}
