package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/fincrawl/guba-harvester/internal/harvest"
)

func record(stock, urlID string) harvest.Record {
	return harvest.Record{
		StockCode:   stock,
		ContentType: harvest.ContentNews,
		Title:       "t",
		URLID:       urlID,
	}
}

func TestMemory_InsertIsIdempotent(t *testing.T) {
	t.Parallel()

	s := NewMemory()
	ctx := context.Background()

	batch := []harvest.Record{record("600000", "1"), record("600000", "2")}

	inserted, err := s.Insert(ctx, batch)
	require.NoError(t, err)
	require.Equal(t, 2, inserted)

	inserted, err = s.Insert(ctx, batch)
	require.NoError(t, err)
	require.Zero(t, inserted)
	require.Equal(t, 2, s.Len())
}

func TestMemory_PartialDuplicateBatch(t *testing.T) {
	t.Parallel()

	s := NewMemory()
	ctx := context.Background()

	_, err := s.Insert(ctx, []harvest.Record{record("600000", "1")})
	require.NoError(t, err)

	inserted, err := s.Insert(ctx, []harvest.Record{
		record("600000", "1"),
		record("600000", "2"),
		record("000001", "1"),
	})
	require.NoError(t, err)
	require.Equal(t, 2, inserted)
	require.Equal(t, 3, s.Len())
}

func TestMemory_KeyIncludesContentType(t *testing.T) {
	t.Parallel()

	s := NewMemory()
	ctx := context.Background()

	a := record("600000", "1")
	b := record("600000", "1")
	b.ContentType = harvest.ContentNotice

	inserted, err := s.Insert(ctx, []harvest.Record{a, b})
	require.NoError(t, err)
	require.Equal(t, 2, inserted)
}

func TestInsertedCount(t *testing.T) {
	t.Parallel()

	dup := func(index int) mongo.BulkWriteError {
		return mongo.BulkWriteError{
			WriteError: mongo.WriteError{Index: index, Code: dupKeyCode, Message: "E11000 duplicate key"},
		}
	}

	t.Run("clean write", func(t *testing.T) {
		n, err := insertedCount(80, nil)
		require.NoError(t, err)
		require.Equal(t, 80, n)
	})

	t.Run("all duplicates", func(t *testing.T) {
		bulkErr := mongo.BulkWriteException{WriteErrors: []mongo.BulkWriteError{dup(0), dup(1), dup(2)}}
		n, err := insertedCount(3, bulkErr)
		require.NoError(t, err)
		require.Zero(t, n)
	})

	t.Run("mixed batch", func(t *testing.T) {
		bulkErr := mongo.BulkWriteException{WriteErrors: []mongo.BulkWriteError{dup(1), dup(4)}}
		n, err := insertedCount(80, bulkErr)
		require.NoError(t, err)
		require.Equal(t, 78, n)
	})

	t.Run("non duplicate write error propagates", func(t *testing.T) {
		bulkErr := mongo.BulkWriteException{WriteErrors: []mongo.BulkWriteError{
			dup(0),
			{WriteError: mongo.WriteError{Index: 1, Code: 121, Message: "validation failed"}},
		}}
		_, err := insertedCount(10, bulkErr)
		require.Error(t, err)
	})

	t.Run("transport error propagates", func(t *testing.T) {
		_, err := insertedCount(10, errors.New("connection reset"))
		require.Error(t, err)
	})
}
