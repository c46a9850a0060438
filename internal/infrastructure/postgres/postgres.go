// Package postgres implements the gateway on PostgreSQL: rows are inserted
// through json_populate_record and the change-feed is a LISTEN channel fed by
// AFTER INSERT triggers. Notifications carry the row key only; the listener
// loads the row itself.
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/portfolio-api/internal/domain"
	"github.com/portfolio-api/internal/gateway"
	"github.com/portfolio-api/internal/pkg/id"
)

// Channel is the LISTEN channel the schema's triggers notify.
const Channel = "portfolio_changes"

// codeUndefinedTable is SQLSTATE 42P01.
const codeUndefinedTable = "42P01"

//go:embed schema.sql
var schema string

// NewPool creates a connection pool and verifies connectivity.
func NewPool(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// Migrate applies the embedded schema. It is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	slog.Info("postgres schema applied")
	return nil
}

// Gateway stores each collection in the table of the same name.
type Gateway struct {
	pool        *pgxpool.Pool
	collections map[string]bool
}

var _ gateway.Gateway = (*Gateway)(nil)

func NewGateway(pool *pgxpool.Pool) *Gateway {
	return &Gateway{
		pool: pool,
		collections: map[string]bool{
			domain.CollectionContactSubmissions: true,
			domain.CollectionHireMeClicks:       true,
			domain.CollectionAnalytics:          true,
			domain.CollectionResumeDownloads:    true,
		},
	}
}

func (g *Gateway) Insert(ctx context.Context, collection string, row any) (gateway.Record, error) {
	if !g.collections[collection] {
		return nil, fmt.Errorf("insert into %q: %w", collection, gateway.ErrCollectionNotFound)
	}
	rec, err := gateway.ToRecord(row)
	if err != nil {
		return nil, err
	}
	if rec.ID() == "" {
		rec["id"] = id.New()
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode %s row: %w", collection, err)
	}

	var raw []byte
	err = g.pool.QueryRow(ctx, insertSQL(collection), string(payload)).Scan(&raw)
	if err != nil {
		return nil, mapError(collection, err)
	}
	var out gateway.Record
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode %s row: %w", collection, err)
	}
	return out, nil
}

func insertSQL(collection string) string {
	t := pgx.Identifier{collection}.Sanitize()
	return fmt.Sprintf(
		`INSERT INTO %[1]s SELECT * FROM json_populate_record(NULL::%[1]s, $1::json) RETURNING row_to_json(%[1]s.*)`, t)
}

func mapError(collection string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == codeUndefinedTable {
		return fmt.Errorf("table %q: %w", collection, gateway.ErrCollectionNotFound)
	}
	return fmt.Errorf("postgres %s: %w", collection, err)
}

func selectSQL(collection string) string {
	t := pgx.Identifier{collection}.Sanitize()
	return fmt.Sprintf(`SELECT row_to_json(t.*) FROM %s t WHERE t.id = $1`, t)
}

// notification is the payload written by notify_portfolio_change().
type notification struct {
	Table string `json:"table"`
	Type  string `json:"type"`
	ID    string `json:"id"`
}

// Subscribe holds one pooled connection in LISTEN mode until Unsubscribe or
// until the connection fails. Rows are read back through the rest of the pool.
func (g *Gateway) Subscribe(ctx context.Context, filters []gateway.ChangeFilter, handler func(gateway.ChangeEvent)) (gateway.Subscription, error) {
	conn, err := g.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire listen connection: %w", err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{Channel}.Sanitize()); err != nil {
		conn.Release()
		return nil, fmt.Errorf("listen: %w", err)
	}

	subCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stream := gateway.NewStream(cancel)
	go func() {
		// A connection interrupted mid-wait is not safe to reuse.
		pc := conn.Hijack()
		defer pc.Close(context.Background())
		for {
			n, err := pc.WaitForNotification(subCtx)
			if err != nil {
				stream.Close(err)
				return
			}
			note, ok := decodeNotification(n.Payload)
			if !ok || !g.collections[note.Table] {
				continue
			}
			ev := gateway.ChangeEvent{Collection: note.Table, Event: note.Type}
			if !ev.Matches(filters) {
				continue
			}
			if ev.New, err = g.load(subCtx, note); err != nil {
				if subCtx.Err() != nil {
					stream.Close(nil)
					return
				}
				slog.Warn("postgres: notified row unreadable", "table", note.Table, "id", note.ID, "err", err)
				continue
			}
			handler(ev)
		}
	}()
	return stream, nil
}

func (g *Gateway) load(ctx context.Context, n notification) (gateway.Record, error) {
	var raw []byte
	if err := g.pool.QueryRow(ctx, selectSQL(n.Table), n.ID).Scan(&raw); err != nil {
		return nil, mapError(n.Table, err)
	}
	var rec gateway.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode %s row: %w", n.Table, err)
	}
	return rec, nil
}

func decodeNotification(payload string) (notification, bool) {
	var n notification
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		slog.Warn("postgres: undecodable notification", "err", err)
		return notification{}, false
	}
	if n.ID == "" {
		slog.Warn("postgres: notification without id", "table", n.Table)
		return notification{}, false
	}
	return n, true
}
