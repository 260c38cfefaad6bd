package models

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntity_Accessors(t *testing.T) {
	ts := time.Date(2025, 3, 1, 10, 0, 0, 123, time.UTC)
	e := Entity{
		"id":        "a",
		"accountId": "acc",
		"deleted":   true,
		"updatedAt": FormatTime(ts),
	}
	assert.Equal(t, "a", e.ID())
	assert.Equal(t, "acc", e.AccountID())
	assert.True(t, e.Deleted())
	assert.True(t, ts.Equal(e.UpdatedAt()))
	assert.True(t, e.CreatedAt().IsZero())

	e["updatedAt"] = "garbage"
	assert.True(t, e.UpdatedAt().IsZero())
}

func TestEntity_CloneIsDeep(t *testing.T) {
	src := Entity{
		"id":   "a",
		"meta": map[string]any{"tags": []any{"x"}},
	}
	cp := src.Clone()
	cp["meta"].(map[string]any)["tags"].([]any)[0] = "y"
	cp["id"] = "b"

	assert.Equal(t, "a", src.ID())
	assert.Equal(t, "x", src["meta"].(map[string]any)["tags"].([]any)[0])
}

func TestFingerprint(t *testing.T) {
	a := Entity{"id": "1", "title": "milk", "completed": false}
	b := Entity{"completed": false, "title": "milk", "id": "1"}
	c := Entity{"id": "1", "title": "bread", "completed": false}

	assert.Equal(t, Fingerprint(a), Fingerprint(b))
	assert.NotEqual(t, Fingerprint(a), Fingerprint(c))
}

func TestNormalize(t *testing.T) {
	n, err := Normalize(Entity{"count": 3, "nested": map[string]int{"a": 1}})
	require.NoError(t, err)
	want := Entity{"count": float64(3), "nested": map[string]any{"a": float64(1)}}
	if diff := cmp.Diff(want, n); diff != "" {
		t.Fatalf("normalize mismatch (-want +got):\n%s", diff)
	}
}

func TestAssignAndDeepMerge(t *testing.T) {
	base := func() Entity {
		return Entity{"id": "1", "prefs": map[string]any{"color": "red", "size": "m"}}
	}
	patch := Entity{"prefs": map[string]any{"color": "blue"}}

	assigned := base()
	Assign(assigned, patch)
	assert.Equal(t, map[string]any{"color": "blue"}, assigned["prefs"])

	merged := base()
	DeepMerge(merged, patch)
	assert.Equal(t, map[string]any{"color": "blue", "size": "m"}, merged["prefs"])
}

func TestDiff(t *testing.T) {
	prev := Entity{"id": "1", "title": "a", "completed": false, "note": "x"}
	next := Entity{"id": "1", "title": "b", "completed": false}

	d := Diff(prev, next)
	want := Entity{"title": "b", "note": nil}
	if diff := cmp.Diff(want, d); diff != "" {
		t.Fatalf("diff mismatch (-want +got):\n%s", diff)
	}
}
