package di

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"go.uber.org/zap"

	"github.com/goliatone/go-repository-identity/identity"
	"github.com/goliatone/go-repository-identity/internal/bunstore"
	"github.com/goliatone/go-repository-identity/query"
)

// Container wires the identity components together. It owns one identity map
// shared by every builder it hands out, the bun storage adapter and the
// logger.
type Container struct {
	config Config
	db     *bun.DB
	ownsDB bool
	store  *bunstore.Storage
	ids    identity.Map
	logger *zap.Logger
}

// NewContainer opens the configured database and builds a container around it.
// The database is closed by Close.
func NewContainer(config Config) (*Container, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	logger, err := NewLogger(config.Log)
	if err != nil {
		return nil, err
	}

	db, err := OpenDB(config.Database)
	if err != nil {
		return nil, err
	}

	c, err := newContainer(db, config, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	c.ownsDB = true
	return c, nil
}

// NewContainerWithDB builds a container around an existing database. The
// caller keeps ownership of db. A nil logger disables logging.
func NewContainerWithDB(db *bun.DB, config Config, logger *zap.Logger) (*Container, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return newContainer(db, config, logger)
}

// NewContainerWithDefaults creates a container over an in-memory sqlite
// database. This is a convenience constructor for tests and demos.
func NewContainerWithDefaults() (*Container, error) {
	return NewContainer(DefaultConfig())
}

func newContainer(db *bun.DB, config Config, logger *zap.Logger) (*Container, error) {
	store, err := bunstore.New(db, bunstore.Config{
		Connection:   config.Database.Connection,
		ReturningKey: true,
	}, bunstore.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	var mapOpts []identity.MapOption
	if config.Identity.EscapeKeys {
		mapOpts = append(mapOpts, identity.WithKeySerializer(identity.NewEscapingKeySerializer()))
	}

	return &Container{
		config: config,
		db:     db,
		store:  store,
		ids:    identity.NewMap(mapOpts...),
		logger: logger,
	}, nil
}

// OpenDB opens a bun database for cfg, picking the dialect from the driver.
func OpenDB(cfg DatabaseConfig) (*bun.DB, error) {
	sqldb, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	switch cfg.Driver {
	case DriverSQLite:
		// in-memory databases live per connection
		maxOpen := cfg.MaxOpenConns
		if maxOpen == 0 {
			maxOpen = 1
		}
		sqldb.SetMaxOpenConns(maxOpen)
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	case DriverPostgres:
		if cfg.MaxOpenConns > 0 {
			sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		return bun.NewDB(sqldb, pgdialect.New()), nil
	default:
		_ = sqldb.Close()
		return nil, fmt.Errorf("di: unsupported driver %q", cfg.Driver)
	}
}

// Query returns a builder for the entity type produced by factory. Builders
// share the container's storage and identity map.
func (c *Container) Query(factory query.Factory, opts ...query.Option) *query.Builder {
	opts = append([]query.Option{query.WithLogger(c.logger)}, opts...)
	return query.NewBuilder(c.store, c.ids, factory, opts...)
}

// DB returns the underlying bun database.
func (c *Container) DB() *bun.DB {
	return c.db
}

// Storage returns the storage adapter builders read through.
func (c *Container) Storage() *bunstore.Storage {
	return c.store
}

// IdentityMap returns the identity map shared by every builder.
func (c *Container) IdentityMap() identity.Map {
	return c.ids
}

// Logger returns the container logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns a copy of the configuration used by this container.
func (c *Container) Config() Config {
	return c.config
}

// Close flushes the identity map and closes the database when the container
// opened it.
func (c *Container) Close() error {
	c.ids.Flush()
	_ = c.logger.Sync()
	if c.ownsDB {
		return c.db.Close()
	}
	return nil
}
