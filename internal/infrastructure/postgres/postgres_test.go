package postgres

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/portfolio-api/internal/domain"
	"github.com/portfolio-api/internal/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertSQL_QuotesIdentifier(t *testing.T) {
	assert.Equal(t,
		`INSERT INTO "hire_me_clicks" SELECT * FROM json_populate_record(NULL::"hire_me_clicks", $1::json) RETURNING row_to_json("hire_me_clicks".*)`,
		insertSQL("hire_me_clicks"))
}

func TestMapError_UndefinedTable(t *testing.T) {
	err := mapError("analytics", &pgconn.PgError{Code: "42P01"})
	assert.ErrorIs(t, err, gateway.ErrCollectionNotFound)

	err = mapError("analytics", &pgconn.PgError{Code: "23505"})
	assert.NotErrorIs(t, err, gateway.ErrCollectionNotFound)
}

func TestSelectSQL_QuotesIdentifier(t *testing.T) {
	assert.Equal(t,
		`SELECT row_to_json(t.*) FROM "contact_submissions" t WHERE t.id = $1`,
		selectSQL("contact_submissions"))
}

func TestDecodeNotification(t *testing.T) {
	n, ok := decodeNotification(`{"table":"contact_submissions","type":"INSERT","id":"c1"}`)
	require.True(t, ok)
	assert.Equal(t, notification{Table: domain.CollectionContactSubmissions, Type: gateway.EventInsert, ID: "c1"}, n)

	_, ok = decodeNotification("not json")
	assert.False(t, ok)
	_, ok = decodeNotification(`{"table":"contact_submissions","type":"INSERT"}`)
	assert.False(t, ok)
}

func TestSchema_NotifiesKeyOnly(t *testing.T) {
	assert.NotContains(t, schema, "row_to_json(NEW)")
	assert.Contains(t, schema, "NEW.id")
}

// listeningGateway connects to TEST_DATABASE_URL and subscribes to contact inserts.
func listeningGateway(t *testing.T) (*Gateway, <-chan gateway.ChangeEvent) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	pool, err := NewPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, Migrate(ctx, pool))

	g := NewGateway(pool)
	got := make(chan gateway.ChangeEvent, 1)
	sub, err := g.Subscribe(ctx,
		[]gateway.ChangeFilter{{Collection: domain.CollectionContactSubmissions, Event: gateway.EventInsert}},
		func(ev gateway.ChangeEvent) { got <- ev })
	require.NoError(t, err)
	t.Cleanup(func() {
		sub.Unsubscribe()
		<-sub.Done()
	})
	return g, got
}

func insertContact(t *testing.T, g *Gateway, message string) gateway.Record {
	t.Helper()
	rec, err := g.Insert(context.Background(), domain.CollectionContactSubmissions, domain.ContactSubmission{
		Name: "Jane Doe", Email: "jane@x.com", Subject: "Hello", Message: message,
		SubmittedAt: time.Now().UTC(), Status: domain.ContactStatusNew,
	})
	require.NoError(t, err)
	return rec
}

func TestGateway_InsertAndListen(t *testing.T) {
	g, got := listeningGateway(t)
	rec := insertContact(t, g, "Hi there")

	select {
	case ev := <-got:
		assert.Equal(t, rec.ID(), ev.New.ID())
		assert.Equal(t, "Jane Doe", ev.New["name"])
	case <-time.After(5 * time.Second):
		t.Fatal("no notification received")
	}
}

func TestGateway_LongMessageInsertsAndNotifies(t *testing.T) {
	g, got := listeningGateway(t)
	long := strings.Repeat("x", 10<<10)
	rec := insertContact(t, g, long)

	select {
	case ev := <-got:
		assert.Equal(t, rec.ID(), ev.New.ID())
		assert.Equal(t, long, ev.New["message"])
	case <-time.After(5 * time.Second):
		t.Fatal("no notification received")
	}
}
