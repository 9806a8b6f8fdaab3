package loader

import "encoding/json"

// ConflictPolicy decides how a change-feed event meets optimistic local
// state.
type ConflictPolicy string

const (
	// PolicyServerWins replaces the local row with the remote payload.
	PolicyServerWins ConflictPolicy = "server-wins"
	// PolicyMerge shallow-merges remote fields over local ones.
	PolicyMerge ConflictPolicy = "merge"
	// PolicyOptimistic keeps local state until an explicit refresh.
	PolicyOptimistic ConflictPolicy = "optimistic"
)

// EventKind mirrors the row-level change types the feed carries.
type EventKind string

const (
	EventInsert EventKind = "INSERT"
	EventUpdate EventKind = "UPDATE"
	EventDelete EventKind = "DELETE"
)

// ChangeEvent is one row-level change delivered by the feed, decoded into
// the subscriber's row type.
type ChangeEvent[T any] struct {
	Kind           EventKind
	Table          string
	OrganizationID int64
	Row            T
}

// ApplyEvent folds one change event into a local row list. idOf extracts the
// row identity. The input slice is never mutated; the returned slice is a
// fresh copy whenever the event changes anything.
func ApplyEvent[T any](local []T, event ChangeEvent[T], policy ConflictPolicy, idOf func(T) int64) []T {
	if policy == "" {
		policy = PolicyServerWins
	}
	id := idOf(event.Row)

	switch event.Kind {
	case EventInsert:
		for _, row := range local {
			if idOf(row) == id {
				// feed replay of a row already present locally
				return applyUpdate(local, event.Row, id, policy, idOf)
			}
		}
		out := make([]T, 0, len(local)+1)
		out = append(out, local...)
		out = append(out, event.Row)
		return out

	case EventUpdate:
		return applyUpdate(local, event.Row, id, policy, idOf)

	case EventDelete:
		out := make([]T, 0, len(local))
		for _, row := range local {
			if idOf(row) != id {
				out = append(out, row)
			}
		}
		return out
	}
	return local
}

func applyUpdate[T any](local []T, remote T, id int64, policy ConflictPolicy, idOf func(T) int64) []T {
	if policy == PolicyOptimistic {
		return local
	}
	out := make([]T, len(local))
	copy(out, local)
	for i, row := range out {
		if idOf(row) != id {
			continue
		}
		if policy == PolicyMerge {
			out[i] = mergeRows(row, remote)
		} else {
			out[i] = remote
		}
		return out
	}
	// update for a row we never loaded: treat as insert
	return append(out, remote)
}

// mergeRows shallow-merges remote over local at the JSON field level, so a
// partial remote payload only overwrites the fields it carries.
func mergeRows[T any](local, remote T) T {
	localJSON, err := json.Marshal(local)
	if err != nil {
		return remote
	}
	remoteJSON, err := json.Marshal(remote)
	if err != nil {
		return remote
	}

	var localMap, remoteMap map[string]json.RawMessage
	if err := json.Unmarshal(localJSON, &localMap); err != nil {
		return remote
	}
	if err := json.Unmarshal(remoteJSON, &remoteMap); err != nil {
		return remote
	}
	for k, v := range remoteMap {
		localMap[k] = v
	}

	merged, err := json.Marshal(localMap)
	if err != nil {
		return remote
	}
	var out T
	if err := json.Unmarshal(merged, &out); err != nil {
		return remote
	}
	return out
}
