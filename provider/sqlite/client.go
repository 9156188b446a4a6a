package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/foretell-app/foretell/provider/kv"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const DriverName = "sqlite"

type row struct {
	Value     []byte `db:"value"`
	ExpiresAt int64  `db:"expires_at"`
}

// Client is a KV backed by a single sqlite table
type Client struct {
	conn    *sqlx.DB
	dialect goqu.DialectWrapper
	table   string
	timeout time.Duration
	now     func() time.Time
}

// NewClient opens (or creates) the database and the kv table
func NewClient(cfg *Config) (*Client, error) {
	if cfg == nil {
		cfg = NewConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	conn, err := sqlx.Open(DriverName, cfg.Path)
	if err != nil {
		return nil, err
	}
	// sqlite has a single writer; an in-memory database only exists within its connection
	conn.SetMaxOpenConns(1)

	result := &Client{
		conn:    conn,
		dialect: goqu.Dialect("sqlite3"),
		table:   cfg.Table,
		timeout: time.Duration(cfg.TimeoutMs) * time.Millisecond,
		now:     time.Now,
	}
	if err = result.migrate(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return result, nil
}

func (c *Client) migrate() error {
	ctx, cancel := c.context()
	defer cancel()
	qry := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		expires_at INTEGER NOT NULL DEFAULT 0
	)`, c.table)
	_, err := c.conn.ExecContext(ctx, qry)
	return err
}

func (c *Client) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.timeout)
}

// Db returns the underlying connection
func (c *Client) Db() *sqlx.DB {
	return c.conn
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) exec(ctx context.Context, conn sqlx.ExecerContext, qry interface {
	ToSQL() (string, []interface{}, error)
}) error {
	sqlQry, args, err := qry.ToSQL()
	if err != nil {
		return err
	}
	_, err = conn.ExecContext(ctx, sqlQry, args...)
	return err
}

// Set sets a key value
func (c *Client) Set(k string, v []byte) error {
	return c.SetTTL(k, v, 0)
}

// SetTTL sets a key value with ttl; a ttl <= 0 never expires
func (c *Client) SetTTL(k string, v []byte, ttl time.Duration) error {
	if k == "" {
		return kv.ErrEmptyKey
	}
	if v == nil {
		v = []byte{}
	}
	var expires int64
	if ttl > 0 {
		expires = c.now().Add(ttl).UnixMilli()
	}
	ctx, cancel := c.context()
	defer cancel()

	tx, err := c.conn.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err = c.exec(ctx, tx, c.dialect.Delete(c.table).Prepared(true).Where(goqu.C("key").Eq(k))); err != nil {
		_ = tx.Rollback()
		return err
	}
	insert := c.dialect.Insert(c.table).Prepared(true).Rows(goqu.Record{
		"key":        k,
		"value":      v,
		"expires_at": expires,
	})
	if err = c.exec(ctx, tx, insert); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Get fetches a value; expired values are removed and reported as not found
func (c *Client) Get(k string) ([]byte, error) {
	ctx, cancel := c.context()
	defer cancel()

	sqlQry, args, err := c.dialect.From(c.table).Prepared(true).
		Select("value", "expires_at").
		Where(goqu.C("key").Eq(k)).
		Limit(1).
		ToSQL()
	if err != nil {
		return nil, err
	}
	r := &row{}
	if err = c.conn.QueryRowxContext(ctx, sqlQry, args...).StructScan(r); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if r.ExpiresAt > 0 && r.ExpiresAt <= c.now().UnixMilli() {
		return nil, c.Delete(k)
	}
	if r.Value == nil {
		r.Value = []byte{}
	}
	return r.Value, nil
}

// Delete remove a value
func (c *Client) Delete(k string) error {
	ctx, cancel := c.context()
	defer cancel()
	return c.exec(ctx, c.conn, c.dialect.Delete(c.table).Prepared(true).Where(goqu.C("key").Eq(k)))
}

// Prune removes expired records
func (c *Client) Prune() error {
	ctx, cancel := c.context()
	defer cancel()
	qry := c.dialect.Delete(c.table).Prepared(true).Where(
		goqu.C("expires_at").Gt(0),
		goqu.C("expires_at").Lte(c.now().UnixMilli()),
	)
	return c.exec(ctx, c.conn, qry)
}
