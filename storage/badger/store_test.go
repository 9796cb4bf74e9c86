package badger

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/conceptrt/conceptrt/model"
	"github.com/conceptrt/conceptrt/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutGetRoundTrips(t *testing.T) {
	s := openTestStore(t)

	err := s.Put("users", "alice", model.Fields{"name": "Alice", "age": float64(30)})
	require.NoError(t, err)

	got, found, err := s.Get("users", "alice")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "Alice", got["name"])
	require.Equal(t, float64(30), got["age"])
}

func TestGetMissingKeyReturnsNotFound(t *testing.T) {
	s := openTestStore(t)

	_, found, err := s.Get("users", "nobody")
	require.NoError(t, err)
	require.False(t, found)
}

func TestPutOverwritesIsLastWriterWins(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Put("users", "alice", model.Fields{"age": float64(30)}))
	require.NoError(t, s.Put("users", "alice", model.Fields{"age": float64(31)}))

	got, found, err := s.Get("users", "alice")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, float64(31), got["age"])
}

func TestDelRemovesKey(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Put("users", "alice", model.Fields{"name": "Alice"}))
	require.NoError(t, s.Del("users", "alice"))

	_, found, err := s.Get("users", "alice")
	require.NoError(t, err)
	require.False(t, found)
}

func TestDelOnMissingKeyIsNotAnError(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.Del("users", "nobody"))
}

func TestFindScansOnlyItsOwnRelation(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Put("users", "alice", model.Fields{"name": "Alice"}))
	require.NoError(t, s.Put("users", "bob", model.Fields{"name": "Bob"}))
	require.NoError(t, s.Put("sessions", "tok1", model.Fields{"user": "alice"}))

	rows, err := s.Find("users", nil)
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestFindAppliesFilter(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Put("users", "alice", model.Fields{"name": "Alice", "active": true}))
	require.NoError(t, s.Put("users", "bob", model.Fields{"name": "Bob", "active": false}))

	rows, err := s.Find("users", storage.Filter{"active": true})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "Alice", rows[0]["name"])
}

func TestGetMetaReportsLastWrittenAt(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.Put("users", "alice", model.Fields{"name": "Alice"}))

	meta, err := s.GetMeta("users", "alice")
	require.NoError(t, err)
	require.False(t, meta.LastWrittenAt.IsZero())
}

func TestGetMetaOnMissingKeyIsZeroValue(t *testing.T) {
	s := openTestStore(t)

	meta, err := s.GetMeta("users", "nobody")
	require.NoError(t, err)
	require.True(t, meta.LastWrittenAt.IsZero())
}
