package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	Name     string `json:"name"`
	Count    int    `json:"count"`
	Archived bool   `json:"archived"`
}

func openTestStore(t *testing.T) *BadgerStore {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutAndFindByID(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	in := record{ID: "r1", TenantID: "t1", Name: "alpha", Count: 3}
	require.NoError(t, s.Put(ctx, "records", "r1", in))

	var out record
	require.NoError(t, s.FindByID(ctx, "records", "r1", &out))
	assert.Equal(t, in, out)

	err := s.FindByID(ctx, "records", "missing", &out)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateMergesAndDeletesFields(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Put(ctx, "records", "r1", record{ID: "r1", Name: "alpha", Count: 3}))

	err := s.Update(ctx, "records", "r1", map[string]any{
		"count": 7,
		"name":  nil, // nil deletes the key
	})
	require.NoError(t, err)

	var out record
	require.NoError(t, s.FindByID(ctx, "records", "r1", &out))
	assert.Equal(t, 7, out.Count)
	assert.Empty(t, out.Name)
	assert.Equal(t, "r1", out.ID, "untouched fields survive the merge")

	err = s.Update(ctx, "records", "missing", map[string]any{"count": 1})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestQueryFiltersByEquality(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Put(ctx, "records", "a", record{ID: "a", TenantID: "t1"}))
	require.NoError(t, s.Put(ctx, "records", "b", record{ID: "b", TenantID: "t1", Archived: true}))
	require.NoError(t, s.Put(ctx, "records", "c", record{ID: "c", TenantID: "t2"}))

	docs, err := s.Query(ctx, "records", Filter{"tenant_id": "t1"})
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	docs, err = s.Query(ctx, "records", Filter{"tenant_id": "t1", "archived": false})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "a", docs[0].ID)

	// Empty filter returns the whole collection.
	docs, err = s.Query(ctx, "records", nil)
	require.NoError(t, err)
	assert.Len(t, docs, 3)

	// Collections are isolated by prefix.
	docs, err = s.Query(ctx, "other", nil)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestDecodeInto(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Put(ctx, "records", "a", record{ID: "a", Name: "alpha"}))

	docs, err := s.Query(ctx, "records", nil)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	var out record
	require.NoError(t, DecodeInto(docs[0], &out))
	assert.Equal(t, "alpha", out.Name)
}

func TestDeleteAndDeleteByQuery(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.Put(ctx, "records", "a", record{ID: "a", TenantID: "t1"}))
	require.NoError(t, s.Put(ctx, "records", "b", record{ID: "b", TenantID: "t1"}))
	require.NoError(t, s.Put(ctx, "records", "c", record{ID: "c", TenantID: "t2"}))

	require.NoError(t, s.Delete(ctx, "records", "a"))
	require.NoError(t, s.Delete(ctx, "records", "a"), "deleting an absent document is a no-op")

	n, err := s.DeleteByQuery(ctx, "records", Filter{"tenant_id": "t1"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	docs, err := s.Query(ctx, "records", nil)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "c", docs[0].ID)
}

func TestContextCancellationShortCircuits(t *testing.T) {
	s := openTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out record
	assert.Error(t, s.FindByID(ctx, "records", "a", &out))
	assert.Error(t, s.Put(ctx, "records", "a", record{}))
}
