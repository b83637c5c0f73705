//go:build integration

package postgres

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdftrack/internal/collector/models"
	"pdftrack/internal/tracking"
	"pdftrack/pkg/platform/tx"
	"pdftrack/pkg/testutil/containers"
)

func TestPostgresStore(t *testing.T) {
	pc := containers.NewPostgresContainer(t)
	ctx := context.Background()

	db, err := Open(ctx, pc.DSN)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := New(db)
	require.NoError(t, store.EnsureSchema(ctx))
	require.NoError(t, store.EnsureSchema(ctx), "schema creation is idempotent")

	for i, email := range []string{"a@x.com", "b@x.com", "a@x.com"} {
		require.NoError(t, store.Append(ctx, models.Event{
			ID:         strconv.Itoa(i + 1),
			Event:      tracking.EventPDFGenerated,
			User:       tracking.RecipientInfo{Email: email},
			TrackingID: "0123456789abcdef",
		}))
	}

	events, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "1", events[0].ID)
	assert.Equal(t, "b@x.com", events[1].User.Email)
	assert.Equal(t, "3", events[2].ID)
}

func TestPostgresStore_TransactionScope(t *testing.T) {
	pc := containers.NewPostgresContainer(t)
	ctx := context.Background()

	db, err := Open(ctx, pc.DSN)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store := New(db)
	require.NoError(t, store.EnsureSchema(ctx))

	errAbort := errors.New("abort")
	err = tx.Run(ctx, db, func(ctx context.Context) error {
		require.NoError(t, store.Append(ctx, models.Event{ID: "rolled-back", Event: tracking.EventPDFGenerated}))
		inside, err := store.List(ctx)
		require.NoError(t, err)
		assert.Len(t, inside, 1, "uncommitted row is visible inside the transaction")
		return errAbort
	})
	require.ErrorIs(t, err, errAbort)

	events, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, events)

	require.NoError(t, tx.Run(ctx, db, func(ctx context.Context) error {
		return store.Append(ctx, models.Event{ID: "committed", Event: tracking.EventPDFGenerated})
	}))
	events, err = store.List(ctx)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "committed", events[0].ID)
}
