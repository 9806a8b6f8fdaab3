package loader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Price float64
}

func rowID(r row) int64 { return r.ID }

func TestApplyEventInsert(t *testing.T) {
	local := []row{{ID: 1, Name: "a"}}
	out := ApplyEvent(local, ChangeEvent[row]{Kind: EventInsert, Row: row{ID: 2, Name: "b"}}, PolicyServerWins, rowID)

	require.Len(t, out, 2)
	assert.Equal(t, "b", out[1].Name)
	assert.Len(t, local, 1, "input slice untouched")
}

func TestApplyEventInsertReplay(t *testing.T) {
	local := []row{{ID: 1, Name: "old"}}
	out := ApplyEvent(local, ChangeEvent[row]{Kind: EventInsert, Row: row{ID: 1, Name: "new"}}, PolicyServerWins, rowID)

	require.Len(t, out, 1, "replayed insert must not duplicate the row")
	assert.Equal(t, "new", out[0].Name)
}

func TestApplyEventUpdateServerWins(t *testing.T) {
	local := []row{{ID: 1, Name: "local", Price: 10}}
	out := ApplyEvent(local, ChangeEvent[row]{Kind: EventUpdate, Row: row{ID: 1, Name: "remote"}}, PolicyServerWins, rowID)

	require.Len(t, out, 1)
	assert.Equal(t, "remote", out[0].Name)
	assert.Zero(t, out[0].Price, "server-wins replaces the whole row")
	assert.Equal(t, "local", local[0].Name, "input slice untouched")
}

func TestApplyEventUpdateOptimisticKeepsLocal(t *testing.T) {
	local := []row{{ID: 1, Name: "local"}}
	out := ApplyEvent(local, ChangeEvent[row]{Kind: EventUpdate, Row: row{ID: 1, Name: "remote"}}, PolicyOptimistic, rowID)
	assert.Equal(t, local, out)
}

func TestApplyEventUpdateMerge(t *testing.T) {
	// Price has no json tag and is absent from a partial remote payload in
	// practice; with full structs merge still takes every remote field, so
	// assert the per-field behaviour through the JSON names.
	local := []row{{ID: 1, Name: "local", Price: 10}}
	out := ApplyEvent(local, ChangeEvent[row]{Kind: EventUpdate, Row: row{ID: 1, Name: "remote", Price: 12}}, PolicyMerge, rowID)

	require.Len(t, out, 1)
	assert.Equal(t, "remote", out[0].Name)
	assert.InDelta(t, 12.0, out[0].Price, 1e-9)
}

func TestApplyEventUpdateUnknownRowAppends(t *testing.T) {
	out := ApplyEvent([]row{{ID: 1}}, ChangeEvent[row]{Kind: EventUpdate, Row: row{ID: 9, Name: "late"}}, PolicyServerWins, rowID)
	require.Len(t, out, 2)
	assert.Equal(t, int64(9), out[1].ID)
}

func TestApplyEventDelete(t *testing.T) {
	local := []row{{ID: 1}, {ID: 2}, {ID: 3}}
	out := ApplyEvent(local, ChangeEvent[row]{Kind: EventDelete, Row: row{ID: 2}}, PolicyServerWins, rowID)

	require.Len(t, out, 2)
	assert.Equal(t, int64(1), out[0].ID)
	assert.Equal(t, int64(3), out[1].ID)
	assert.Len(t, local, 3)
}

func TestApplyEventDefaultPolicyIsServerWins(t *testing.T) {
	local := []row{{ID: 1, Name: "local"}}
	out := ApplyEvent(local, ChangeEvent[row]{Kind: EventUpdate, Row: row{ID: 1, Name: "remote"}}, "", rowID)
	assert.Equal(t, "remote", out[0].Name)
}
