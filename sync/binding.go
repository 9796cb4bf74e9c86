package sync

import (
	"bytes"
	"encoding/json"
	"hash/fnv"
	"sort"

	"github.com/conceptrt/conceptrt/model"
)

// Binding maps variable names to values, accumulated while matching a
// sync's when/where clauses.
type Binding map[string]interface{}

// Clone returns a shallow copy of b.
func (b Binding) Clone() Binding {
	out := make(Binding, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// hash returns a deterministic FNV-1a hash of the binding's canonical JSON
// encoding (keys sorted), used as part of the firing-guard key)").
func (b Binding) hash() uint64 {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, _ := json.Marshal(k)
		vb, err := json.Marshal(b[k])
		if err != nil {
			vb = []byte(`null`)
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')

	h := fnv.New64a()
	_, _ = h.Write(buf.Bytes())
	return h.Sum64()
}

// substitute resolves a FieldMatch/ThenField-style reference against the
// binding: a literal passes through, a variable is looked up (returning
// false if unbound), a wildcard has no value.
func substitute(b Binding, kind model.MatchKind, value interface{}, varName string) (interface{}, bool) {
	switch kind {
	case model.MatchLiteral:
		return value, true
	case model.MatchVariable:
		v, ok := b[varName]
		return v, ok
	default:
		return nil, false
	}
}
