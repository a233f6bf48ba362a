package ranking

import "fmt"

// Board is the ordered contents of a scope's kanban columns: status name to
// item IDs in column order.
type Board map[string][]string

// KanbanUpdate is one persisted (item, column, order) assignment produced by
// a card move.
type KanbanUpdate struct {
	ItemID string `json:"item_id"`
	Status string `json:"status"`
	Order  int    `json:"order"`
}

// MoveCard removes itemID from the source column, inserts it at destIndex in
// the destination column, and emits a dense 0..K-1 reindex for every item in
// each touched column. Columns not involved in the move are never rewritten.
//
// An out-of-range destIndex is clamped to [0, len(dest)]; the upstream
// behavior here was unguarded, clamping is the documented policy. The input
// board is not mutated.
func MoveCard(board Board, itemID, source, dest string, destIndex int) ([]KanbanUpdate, error) {
	if !ValidStatus(source) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, source)
	}
	if !ValidStatus(dest) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, dest)
	}

	sourceItems, found := removeItem(board[source], itemID)
	if !found {
		return nil, fmt.Errorf("%w: %s in %s", ErrItemNotInColumn, itemID, source)
	}

	destItems := board[dest]
	if source == dest {
		destItems = sourceItems
	} else {
		destItems = append([]string(nil), destItems...)
	}

	if destIndex < 0 {
		destIndex = 0
	}
	if destIndex > len(destItems) {
		destIndex = len(destItems)
	}
	destItems = append(destItems, "")
	copy(destItems[destIndex+1:], destItems[destIndex:])
	destItems[destIndex] = itemID

	updates := make([]KanbanUpdate, 0, len(destItems)+len(sourceItems))
	for i, id := range destItems {
		updates = append(updates, KanbanUpdate{ItemID: id, Status: dest, Order: i})
	}
	if source != dest {
		for i, id := range sourceItems {
			updates = append(updates, KanbanUpdate{ItemID: id, Status: source, Order: i})
		}
	}
	return updates, nil
}

// removeItem returns a copy of items with the first occurrence of id removed
// and whether id was present.
func removeItem(items []string, id string) ([]string, bool) {
	out := make([]string, 0, len(items))
	found := false
	for _, item := range items {
		if !found && item == id {
			found = true
			continue
		}
		out = append(out, item)
	}
	return out, found
}
