// Package models defines the client-side record representation shared by the
// local store, the sync engine and the remote adapters.
package models

import (
	"encoding/json"
	"maps"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dmitrijs2005/gophsync/internal/common"
)

// TimeLayout is the wire and storage format of createdAt and updatedAt.
const TimeLayout = time.RFC3339Nano

// Entity is a single record. Values are JSON compatible: string, bool,
// float64, nil, []any and map[string]any.
type Entity map[string]any

func (e Entity) ID() string {
	s, _ := e[common.FieldID].(string)
	return s
}

func (e Entity) AccountID() string {
	s, _ := e[common.FieldAccountID].(string)
	return s
}

func (e Entity) Deleted() bool {
	b, _ := e[common.FieldDeleted].(bool)
	return b
}

// UpdatedAt parses the updatedAt field. The zero time is returned when the
// record has not been confirmed by the server yet.
func (e Entity) UpdatedAt() time.Time {
	return e.timeField(common.FieldUpdatedAt)
}

func (e Entity) CreatedAt() time.Time {
	return e.timeField(common.FieldCreatedAt)
}

func (e Entity) timeField(name string) time.Time {
	s, _ := e[name].(string)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Clone returns a deep copy of e.
func (e Entity) Clone() Entity {
	if e == nil {
		return nil
	}
	out := make(Entity, len(e))
	for k, v := range e {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, vv := range x {
			m[k] = cloneValue(vv)
		}
		return m
	case Entity:
		return map[string]any(x.Clone())
	case []any:
		s := make([]any, len(x))
		for i, vv := range x {
			s[i] = cloneValue(vv)
		}
		return s
	default:
		return v
	}
}

// Normalize converts e into its canonical JSON form so that values coming
// from Go callers (ints, typed maps, time.Time) compare equal to values that
// went through the wire or the disk.
func Normalize(e Entity) (Entity, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	var out Entity
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Fingerprint hashes the canonical encoding of e. Two entities with the same
// fingerprint are treated as identical.
func Fingerprint(e Entity) uint64 {
	// encoding/json sorts map keys, which makes the output canonical.
	b, err := json.Marshal(e)
	if err != nil {
		return 0
	}
	return xxhash.Sum64(b)
}

// Assign copies the top-level fields of src over dst.
func Assign(dst, src Entity) {
	maps.Copy(dst, src)
}

// DeepMerge copies src over dst, recursing into nested objects present on
// both sides instead of replacing them.
func DeepMerge(dst, src Entity) {
	for k, v := range src {
		sv, ok := v.(map[string]any)
		dv, ok2 := dst[k].(map[string]any)
		if ok && ok2 {
			merged := Entity(cloneValue(dv).(map[string]any))
			DeepMerge(merged, sv)
			dst[k] = map[string]any(merged)
			continue
		}
		dst[k] = cloneValue(v)
	}
}

// Diff returns the fields of next that differ from prev, including fields
// removed from next as nil values.
func Diff(prev, next Entity) Entity {
	out := Entity{}
	for k, v := range next {
		pv, ok := prev[k]
		if !ok || Fingerprint(Entity{k: pv}) != Fingerprint(Entity{k: v}) {
			out[k] = cloneValue(v)
		}
	}
	for k := range prev {
		if _, ok := next[k]; !ok {
			out[k] = nil
		}
	}
	return out
}

// FormatTime renders t the way timestamps are stored on records.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}
