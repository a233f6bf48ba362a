// Package ranking implements the Question Bank ranking core: Elo pairwise
// rating updates, dense manual rank sequencing, kanban board reconciliation,
// and the ranking session state machine that ties them together.
//
// Ranking state is partitioned by scope: the empty scope ID is the global
// public pool, any other scope ID is an organization's private pool. One
// Record exists per (item, scope) pair and is created lazily at the Elo
// baseline the first time an item participates in a ranking interaction.
//
// Basic Usage:
//
//	store := ranking.NewInMemoryStore()
//	sess := ranking.NewSession(source, store, ranking.DefaultConfig(), "", ranking.ModeElo)
//	if err := sess.Load(ctx); err != nil {
//		// session is Failed; refetch or surface to the caller
//	}
//	// present sess.Order() to the user, apply drag/drop via sess.Reorder
//	if err := sess.Submit(ctx); err != nil {
//		// partial updates may have been applied; caller should refetch
//	}
//
// Concurrency:
//
// A Session is owned by a single caller and is not safe for concurrent use.
// Stores are safe for concurrent use, but cross-client writes are
// last-write-wins: two clients resequencing the same scope concurrently will
// not be merged, matching the upstream datastore's semantics.
package ranking
