package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/conceptrt/conceptrt/model"
	"github.com/conceptrt/conceptrt/storage"
)

type fakeProtocol struct {
	calls int
	rows  []model.Fields
}

func (f *fakeProtocol) Snapshot() (Snapshot, error) {
	f.calls++
	return Snapshot{
		AsOf:      time.Now(),
		Relations: map[string][]model.Fields{"users": f.rows},
	}, nil
}

func TestAdapterCachesWithinTTL(t *testing.T) {
	cache, err := NewCache(8)
	require.NoError(t, err)

	proto := &fakeProtocol{rows: []model.Fields{{"id": "1", "name": "alice"}}}
	a := NewShared("User", proto, time.Minute, cache)

	rows, err := a.Read("users", nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	rows, err = a.Read("users", storage.Filter{"name": "alice"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, 1, proto.calls, "second read within TTL must not refetch")
}

func TestAdapterInvalidateForcesRefresh(t *testing.T) {
	cache, err := NewCache(8)
	require.NoError(t, err)

	proto := &fakeProtocol{rows: []model.Fields{{"id": "1"}}}
	a := NewShared("User", proto, time.Minute, cache)

	_, err = a.Read("users", nil)
	require.NoError(t, err)
	require.Equal(t, 1, proto.calls)

	a.Invalidate()

	_, err = a.Read("users", nil)
	require.NoError(t, err)
	require.Equal(t, 2, proto.calls, "read after Invalidate must refetch")
}

type lookupProtocol struct {
	fakeProtocol
	lookups int
}

func (l *lookupProtocol) Lookup(relation, key string) (model.Fields, bool, error) {
	l.lookups++
	if key != "1" {
		return nil, false, nil
	}
	return model.Fields{"id": "1", "name": "alice"}, true, nil
}

func TestAdapterSingleKeyBypassesCache(t *testing.T) {
	cache, err := NewCache(8)
	require.NoError(t, err)

	proto := &lookupProtocol{}
	a := NewShared("User", proto, time.Minute, cache)

	rows, err := a.Read("users", storage.Filter{"__key": "1"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, 1, proto.lookups)
	require.Equal(t, 0, proto.calls, "single-key lookup must not go through Snapshot")
}
