package docstore_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"honbap/backend/internal/docstore"
)

func snap(id, data string) docstore.Snapshot {
	return docstore.Snapshot{ID: id, Data: json.RawMessage(data), Version: 1}
}

func TestApplyEqualityPredicate(t *testing.T) {
	snaps := []docstore.Snapshot{
		snap("a", `{"status":"waiting","n":1}`),
		snap("b", `{"status":"matched","n":2}`),
		snap("c", `{"status":"waiting","n":3}`),
	}

	out := docstore.Apply(snaps, docstore.Query{Field: "status", Equals: "waiting"})
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ID)
	assert.Equal(t, "c", out[1].ID)
}

// JSON numbers decode as float64; an int predicate must still match.
func TestApplyNumericEquality(t *testing.T) {
	snaps := []docstore.Snapshot{
		snap("a", `{"year":3}`),
		snap("b", `{"year":4}`),
	}
	out := docstore.Apply(snaps, docstore.Query{Field: "year", Equals: 3})
	require.Len(t, out, 1)
	assert.Equal(t, "a", out[0].ID)
}

func TestApplyOrderAndLimit(t *testing.T) {
	snaps := []docstore.Snapshot{
		snap("a", `{"createdAt":"2026-08-30T12:00:00.5Z"}`),
		snap("b", `{"createdAt":"2026-08-30T11:00:00.5Z"}`),
		snap("c", `{"createdAt":"2026-08-30T13:00:00.5Z"}`),
	}

	out := docstore.Apply(snaps, docstore.Query{OrderBy: "createdAt"})
	require.Len(t, out, 3)
	assert.Equal(t, []string{"b", "a", "c"}, []string{out[0].ID, out[1].ID, out[2].ID})

	out = docstore.Apply(snaps, docstore.Query{OrderBy: "createdAt", Desc: true, Limit: 2})
	require.Len(t, out, 2)
	assert.Equal(t, "c", out[0].ID)
	assert.Equal(t, "a", out[1].ID)
}

func TestApplyTiebreakByID(t *testing.T) {
	snaps := []docstore.Snapshot{
		snap("z", `{"n":1}`),
		snap("a", `{"n":1}`),
	}
	out := docstore.Apply(snaps, docstore.Query{OrderBy: "n"})
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].ID, "equal field values order by document id")
}

func TestMergeFields(t *testing.T) {
	merged, err := docstore.MergeFields(
		json.RawMessage(`{"status":"waiting","roomId":""}`),
		map[string]any{"status": "matched", "roomId": "r1"},
	)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(merged, &m))
	assert.Equal(t, "matched", m["status"])
	assert.Equal(t, "r1", m["roomId"])
}

func TestSnapshotDecode(t *testing.T) {
	var v struct {
		Status string `json:"status"`
	}
	require.NoError(t, snap("a", `{"status":"waiting"}`).Decode(&v))
	assert.Equal(t, "waiting", v.Status)

	missing := docstore.Snapshot{ID: "gone"}
	assert.False(t, missing.Exists())
	assert.Error(t, missing.Decode(&v))
}
