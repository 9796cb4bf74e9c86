// Package badger implements action.Log over dgraph-io/badger/v2: small
// functions returning func(*badger.Txn) error, composed by db.Update/
// db.View, keyed by a one-byte record-kind prefix (prefix.go).
package badger

import (
	"errors"

	bdg "github.com/dgraph-io/badger/v2"
	pkgerrors "github.com/pkg/errors"

	"github.com/conceptrt/conceptrt/model"
)

// Log is a durable action.Log backed by badger.
type Log struct {
	db *bdg.DB
}

// Open opens (creating if absent) a badger-backed action log at path.
func Open(path string) (*Log, error) {
	opts := bdg.DefaultOptions(path)
	opts.Logger = nil // badger logs on its own otherwise; zerolog covers this at the caller
	db, err := bdg.Open(opts)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "could not open badger action log")
	}
	return &Log{db: db}, nil
}

// Close releases the underlying database handle.
func (l *Log) Close() error {
	return l.db.Close()
}

func (l *Log) AppendInvocation(inv model.ActionInvocation) error {
	ts := inv.Timestamp.UnixNano()
	err := l.db.Update(func(tx *bdg.Txn) error {
		if err := persist(flowTimestampKey(codeInvocationByFlow, inv.Flow, ts, inv.ID[:]), inv)(tx); err != nil {
			return err
		}
		return persist(idKey(codeInvocationByID, inv.ID), inv)(tx)
	})
	if err != nil {
		return pkgerrors.Wrap(err, "could not append invocation")
	}
	return nil
}

func (l *Log) AppendCompletion(c model.ActionCompletion) error {
	ts := c.Timestamp.UnixNano()
	err := l.db.Update(func(tx *bdg.Txn) error {
		if err := persist(flowTimestampKey(codeCompletionByFlow, c.Flow, ts, c.ID[:]), c)(tx); err != nil {
			return err
		}
		return persist(idKey(codeCompletionByID, c.ID), c)(tx)
	})
	if err != nil {
		return pkgerrors.Wrap(err, "could not append completion")
	}
	return nil
}

func (l *Log) LoadFlow(flow model.ID) (model.Flow, error) {
	out := model.Flow{ID: flow}

	err := l.db.View(func(tx *bdg.Txn) error {
		var invErr error
		if err := iteratePrefix(append([]byte{codeInvocationByFlow}, flow[:]...), func(_, val []byte) error {
			var inv model.ActionInvocation
			if err := unmarshalInto(val, &inv); err != nil {
				return err
			}
			out.Invocations = append(out.Invocations, inv)
			return nil
		})(tx); err != nil {
			invErr = err
		}
		if invErr != nil {
			return invErr
		}

		if err := iteratePrefix(append([]byte{codeCompletionByFlow}, flow[:]...), func(_, val []byte) error {
			var c model.ActionCompletion
			if err := unmarshalInto(val, &c); err != nil {
				return err
			}
			out.Completions = append(out.Completions, c)
			return nil
		})(tx); err != nil {
			return err
		}

		return iteratePrefix(append([]byte{codeEdgeByFlow}, flow[:]...), func(_, val []byte) error {
			var e model.SyncEdge
			if err := unmarshalInto(val, &e); err != nil {
				return err
			}
			out.Edges = append(out.Edges, e)
			return nil
		})(tx)
	})
	if err != nil {
		return model.Flow{}, pkgerrors.Wrap(err, "could not load flow")
	}
	return out, nil
}

func (l *Log) HasSyncEdge(completionIDs []model.ID, sync string, bindingHash uint64) (bool, error) {
	var exists bool
	err := l.db.View(check(guardKey(completionIDs, sync, bindingHash), &exists))
	if err != nil {
		return false, pkgerrors.Wrap(err, "could not check sync edge")
	}
	return exists, nil
}

func (l *Log) AddSyncEdgeForMatch(completionIDs []model.ID, sync string, bindingHash uint64) (bool, error) {
	edge := model.SyncEdge{CompletionIDs: completionIDs, Sync: sync, BindingHash: bindingHash}
	key := guardKey(completionIDs, sync, bindingHash)

	err := l.db.Update(func(tx *bdg.Txn) error {
		if err := insert(key, edge)(tx); err != nil {
			return err
		}
		// also index the edge by flow, for flow-tracer reconstruction; the
		// flow is derived from the first completion's record.
		var flow model.ID
		if len(completionIDs) > 0 {
			var c model.ActionCompletion
			if err := retrieve(idKey(codeCompletionByID, completionIDs[0]), &c)(tx); err == nil {
				flow = c.Flow
			}
		}
		ts := nowNano()
		return persist(flowTimestampKey(codeEdgeByFlow, flow, ts, []byte(sync)), edge)(tx)
	})
	if errors.Is(err, ErrAlreadyExists) {
		return false, nil
	}
	if err != nil {
		return false, pkgerrors.Wrap(err, "could not add sync edge")
	}
	return true, nil
}

func (l *Log) Invocation(id model.ID) (model.ActionInvocation, bool, error) {
	var inv model.ActionInvocation
	err := l.db.View(retrieve(idKey(codeInvocationByID, id), &inv))
	if errors.Is(err, bdg.ErrKeyNotFound) {
		return model.ActionInvocation{}, false, nil
	}
	if err != nil {
		return model.ActionInvocation{}, false, pkgerrors.Wrap(err, "could not read invocation")
	}
	return inv, true, nil
}

func (l *Log) Completion(id model.ID) (model.ActionCompletion, bool, error) {
	var c model.ActionCompletion
	err := l.db.View(retrieve(idKey(codeCompletionByID, id), &c))
	if errors.Is(err, bdg.ErrKeyNotFound) {
		return model.ActionCompletion{}, false, nil
	}
	if err != nil {
		return model.ActionCompletion{}, false, pkgerrors.Wrap(err, "could not read completion")
	}
	return c, true, nil
}
