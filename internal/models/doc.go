// Package models defines the core domain entities for the FairSplit sync
// engine.
//
// # Entities
//
//   - Group: a set of people who share expenses
//   - Member: a participant within a group, real or ghost
//   - Expense: one ledger entry with payers and splits
//
// # Sync fields
//
// Every entity carries three sync-related fields:
//
//   - CreatedAt / UpdatedAt: Unix millisecond timestamps. UpdatedAt is the
//     Last-Write-Wins comparison key; whichever copy of an entity has the
//     larger UpdatedAt survives a conflict. There is no field-level merge.
//   - Dirty: local-only marker meaning "has an unsynced local mutation".
//     Dirty is set on every local write and cleared only by the uploader's
//     fenced acknowledgment (see storage.Store). It is never sent over
//     the wire.
//
// # Design principles
//
// 1. Entities reference each other by ID strings, not pointers, so they can
// be persisted and shipped independently.
//
// 2. Expense deletion is soft: IsDeleted acts as a tombstone that propagates
// through sync like any other edit. Tombstones are retained indefinitely.
//
// 3. A Member may be a "ghost": a placeholder participant created before the
// real person has an account. Once a ghost is claimed, MergedWithUID points
// at the real identity and the redirect is terminal.
package models
