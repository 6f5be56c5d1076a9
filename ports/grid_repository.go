package ports

import (
	"context"
	"io"

	"gogrid/domain/core"
	"gogrid/domain/grid"
	"gogrid/models"
)

// GridRepository defines the interface for grid persistence
type GridRepository interface {
	// Load returns the grid stored under key, or an error wrapping
	// core.ErrGridNotFound when nothing was saved yet
	Load(ctx context.Context, key core.GridKey) (*models.StoredGrid, error)

	// Save writes raw under key on behalf of origin and bumps its version
	Save(ctx context.Context, key core.GridKey, raw grid.RawGrid, origin core.InstanceID) (*models.StoredGrid, error)

	// Delete removes the grid stored under key
	Delete(ctx context.Context, key core.GridKey) error

	// ListKeys returns every stored key in ascending order
	ListKeys(ctx context.Context) ([]core.GridKey, error)
}

// ChangeFeed reports grid writes made through any instance sharing the store
type ChangeFeed interface {
	// Listen calls handler for every change until ctx is done
	Listen(ctx context.Context, handler func(models.GridChange)) error
}

// EventPublisher fans grid events out to subscribers
type EventPublisher interface {
	Publish(event models.GridEvent)
}

// WorkbookCodec converts grids to and from spreadsheet workbooks
type WorkbookCodec interface {
	Import(r io.Reader, rows int) (grid.RawGrid, error)
	Export(w io.Writer, raw grid.RawGrid, computed grid.ComputedGrid) error
}
