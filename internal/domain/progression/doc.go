// Package progression holds the domain model of the gamification engine.
//
// The package defines:
//
//   - Entities: Profile, AchievementUnlock
//   - Configuration aggregates: Catalog (achievement definitions) and LevelTable
//   - Criteria: a polymorphic predicate attached to every achievement
//   - Evaluator: the pure function deciding which achievements an event unlocks
//   - Repository interfaces: ProfileStore, UnlockLog
//
// # Principles
//
//  1. No infrastructure dependencies. Storage, transport and identity live elsewhere.
//  2. Level is derived. It is recomputed from points on every write and never
//     changed on its own.
//  3. Evaluation is deterministic. The catalog is walked in registration order,
//     so the same profile snapshot and event always produce the same unlocks in
//     the same order.
//
// # Usage
//
//	table, _ := NewLevelTable([]LevelThreshold{{0, 1}, {100, 2}, {500, 3}})
//	catalog, _ := NewCatalog(
//	    AchievementDefinition{ID: "first-streak", PointsAwarded: 15,
//	        Criteria: ThresholdCriteria{EventType: "streak", Field: "days", Min: 3}},
//	)
//	unlocked, err := NewEvaluator(catalog).Evaluate(profile, event)
//	next := profile.Apply(unlocked, table, now)
//
// Writes go through ProfileStore.CompareAndSwap, which rejects the write if
// another writer committed first; the caller reloads and evaluates again.
package progression
