package container

import (
	"context"
	"fmt"

	"gogrid/adapters/excel"
	"gogrid/adapters/memory"
	"gogrid/adapters/poll"
	"gogrid/adapters/postgres"
	"gogrid/adapters/sqlite"
	"gogrid/app"
	"gogrid/internal"
	"gogrid/internal/api"
	"gogrid/internal/compute"
	"gogrid/internal/config"
	"gogrid/internal/errors"
	"gogrid/internal/migration"
	"gogrid/ports"

	"github.com/jmoiron/sqlx"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *internal.Logger

	// Infrastructure
	DB *sqlx.DB

	// Storage
	GridRepo   ports.GridRepository
	ChangeFeed ports.ChangeFeed

	// Compute and delivery
	Channel  *compute.Channel
	SSEHub   *api.SSEHub
	Workbook *excel.Workbook

	// Services
	GridService *app.GridService
}

// New creates a new dependency injection container
func New(cfg *config.Config, logger *internal.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}

	return &Container{
		Config: cfg,
		Logger: logger,
	}, nil
}

// InitStorage connects the configured store and runs migrations
func (c *Container) InitStorage(ctx context.Context) error {
	switch c.Config.Database.Driver {
	case config.DriverMemory:
		c.GridRepo = memory.NewGridRepository()
		c.Logger.Warn("using in-memory storage; grids are lost on exit")
		return nil

	case config.DriverPostgres:
		db, err := sqlx.ConnectContext(ctx, "postgres", c.Config.Database.URL)
		if err != nil {
			return errors.DatabaseError("failed to connect to database", err)
		}
		if err := c.InitWithDatabase(ctx, db); err != nil {
			return err
		}

		notifyChannel := ""
		if c.Config.Sync.Enabled {
			notifyChannel = c.Config.Sync.Channel
			c.ChangeFeed = postgres.NewGridListener(c.Config.Database.URL, c.Config.Sync.Channel,
				c.Config.Sync.MinReconnect, c.Config.Sync.MaxReconnect, c.Logger)
		}
		c.GridRepo = postgres.NewGridRepository(db, notifyChannel)
		return nil

	case config.DriverSQLite:
		db, err := sqlite.Open(c.Config.Database.URL)
		if err != nil {
			return errors.DatabaseError("failed to open database", err)
		}
		if err := c.InitWithDatabase(ctx, db); err != nil {
			return err
		}
		c.GridRepo = sqlite.NewGridRepository(db)
		if c.Config.Sync.Enabled {
			c.ChangeFeed = poll.NewGridPoller(db, c.Config.Sync.PollInterval, c.Logger)
		}
		return nil

	default:
		return errors.ConfigInvalid("unsupported driver " + c.Config.Database.Driver)
	}
}

// InitWithDatabase verifies the connection and migrates the schema
func (c *Container) InitWithDatabase(ctx context.Context, db *sqlx.DB) error {
	if db == nil {
		return fmt.Errorf("database connection cannot be nil")
	}
	c.DB = db

	if err := db.PingContext(ctx); err != nil {
		return errors.DatabaseError("database connection test failed", err)
	}

	if err := migration.NewRunner().Run(ctx, db); err != nil {
		return errors.Wrap(err, "database migration failed")
	}

	c.Logger.Info("connected to %s database", db.DriverName())
	return nil
}

// InitServices builds the compute channel, event hub and grid service
func (c *Container) InitServices() error {
	if c.GridRepo == nil {
		return fmt.Errorf("storage must be initialized before services")
	}

	c.Channel = compute.NewChannel(nil, c.Logger)
	c.SSEHub = api.NewSSEHub(c.Logger)
	c.Workbook = excel.NewWorkbook()

	c.GridService = app.NewGridService(c.GridRepo, c.Channel, c.SSEHub, c.Workbook, app.GridServiceConfig{
		Rows:                 c.Config.Grid.Rows,
		ComputeTimeout:       c.Config.Grid.ComputeTimeout,
		MaxConcurrentImports: c.Config.Import.MaxConcurrent,
	}, c.Logger)

	c.Logger.Info("grid service %s ready (%d rows per grid)", c.GridService.Instance(), c.Config.Grid.Rows)
	return nil
}

// Shutdown releases components in reverse order of creation
func (c *Container) Shutdown(ctx context.Context) error {
	if c.SSEHub != nil {
		c.SSEHub.Close()
	}
	if c.Channel != nil {
		c.Channel.Close()
	}
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
