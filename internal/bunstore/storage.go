package bunstore

import (
	"context"
	"database/sql"
	"strings"

	"github.com/uptrace/bun"
	"go.uber.org/zap"

	"github.com/goliatone/go-repository-identity/identity"
	"github.com/goliatone/go-repository-identity/storage"
)

// Config holds the configuration for the bun storage adapter.
type Config struct {
	// Connection is the name reported for rows read through the storage.
	// It becomes part of every identity key. Must not be empty.
	Connection string

	// ReturningKey reads generated keys with INSERT ... RETURNING instead of
	// LastInsertId. Postgres needs it; sqlite supports both.
	ReturningKey bool
}

// DefaultConfig returns a Config for the default connection.
func DefaultConfig() Config {
	return Config{
		Connection:   "default",
		ReturningKey: true,
	}
}

// Validate checks if the configuration values are valid.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Connection) == "" {
		return &ConfigError{Field: "Connection", Message: "must not be empty"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}

// Option configures a Storage.
type Option func(*Storage)

// WithLogger sets the logger used for debug events.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Storage) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Storage runs storage.Select descriptions through bun. It works with a
// *bun.DB or a bun.Tx. Driver errors are returned unchanged.
type Storage struct {
	db     bun.IDB
	cfg    Config
	logger *zap.Logger
}

// New creates a Storage over db.
func New(db bun.IDB, cfg Config, opts ...Option) (*Storage, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Storage{db: db, cfg: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// WithTx returns a Storage bound to tx with the same configuration.
func (s *Storage) WithTx(tx bun.Tx) *Storage {
	return &Storage{db: tx, cfg: s.cfg, logger: s.logger}
}

func (s *Storage) Name() string { return s.cfg.Connection }

// Select builds the bun query for q and reads every row as ordered attributes.
func (s *Storage) Select(ctx context.Context, q *storage.Select) ([]identity.Attributes, error) {
	rows, err := s.buildSelect(q).Rows(ctx)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out, err := scanRows(rows)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("storage select",
		zap.String("connection", s.cfg.Connection),
		zap.String("table", q.Table),
		zap.Int("rows", len(out)),
	)
	return out, nil
}

// BuildSelect returns the bun query Select would run. It is exposed for
// inspection and for callers that want to extend the query themselves.
func (s *Storage) BuildSelect(q *storage.Select) *bun.SelectQuery {
	return s.buildSelect(q)
}

func (s *Storage) buildSelect(q *storage.Select) *bun.SelectQuery {
	sq := s.db.NewSelect().TableExpr("?", bun.Ident(q.Table))

	if len(q.Columns) == 0 {
		sq = sq.ColumnExpr("?.*", bun.Ident(q.Table))
	}
	for _, col := range q.Columns {
		if isExpression(col) {
			sq = sq.ColumnExpr(col)
		} else {
			sq = sq.ColumnExpr("?", bun.Ident(col))
		}
	}

	for _, c := range q.Conditions {
		switch c.Kind {
		case storage.Where:
			sq = sq.Where(c.Expr, c.Args...)
		case storage.OrWhere:
			sq = sq.WhereOr(c.Expr, c.Args...)
		case storage.WhereIn:
			if len(c.Args) == 0 {
				sq = sq.Where("1 = 0")
				continue
			}
			sq = sq.Where("? IN (?)", bun.Ident(c.Column), bun.In(c.Args))
		case storage.Join:
			sq = sq.Join(c.Expr, c.Args...)
		case storage.Having:
			sq = sq.Having(c.Expr, c.Args...)
		}
	}

	for _, criteria := range q.Criteria {
		sq = criteria(sq)
	}

	for _, order := range q.Orders {
		sq = sq.OrderExpr(order)
	}
	if q.Limit > 0 {
		sq = sq.Limit(q.Limit)
	}
	return sq
}

// isExpression reports whether col must be passed through verbatim rather
// than quoted as an identifier.
func isExpression(col string) bool {
	return strings.ContainsAny(col, " *()")
}

func scanRows(rows *sql.Rows) ([]identity.Attributes, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []identity.Attributes
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		var attrs identity.Attributes
		for i, col := range columns {
			attrs.Set(col, normalize(values[i]))
		}
		out = append(out, attrs)
	}
	return out, rows.Err()
}

// normalize turns driver text values into strings.
func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// Insert writes attrs and returns the key. When attrs carry no key the
// storage reads the generated one.
func (s *Storage) Insert(ctx context.Context, table string, attrs identity.Attributes, keyName string) (any, error) {
	values := attrs.Map()
	iq := s.db.NewInsert().Model(&values).TableExpr("?", bun.Ident(table))

	if id, ok := values[keyName]; ok && id != nil {
		if _, err := iq.Exec(ctx); err != nil {
			return nil, err
		}
		return id, nil
	}

	if s.cfg.ReturningKey {
		var id any
		if err := iq.Returning("?", bun.Ident(keyName)).Scan(ctx, &id); err != nil {
			return nil, err
		}
		return normalize(id), nil
	}

	res, err := iq.Exec(ctx)
	if err != nil {
		return nil, err
	}
	return res.LastInsertId()
}

// Update writes attrs to the row whose keyName equals id.
func (s *Storage) Update(ctx context.Context, table, keyName string, id any, attrs identity.Attributes) error {
	if attrs.Len() == 0 {
		return nil
	}
	values := attrs.Map()
	_, err := s.db.NewUpdate().
		Model(&values).
		TableExpr("?", bun.Ident(table)).
		Where("? = ?", bun.Ident(keyName), id).
		Exec(ctx)
	return err
}

// Delete removes the row whose keyName equals id.
func (s *Storage) Delete(ctx context.Context, table, keyName string, id any) error {
	_, err := s.db.NewDelete().
		TableExpr("?", bun.Ident(table)).
		Where("? = ?", bun.Ident(keyName), id).
		Exec(ctx)
	return err
}

var _ storage.Storage = (*Storage)(nil)
