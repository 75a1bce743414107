// Copyright (c) 2025 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package pmode provides Processing Mode (P-Mode) configuration and the
validated registry the processing core resolves against.

A P-Mode captures the agreed processing parameters for one message
exchange: MEP, protocol binding, parties, and the security and
reliability settings of each leg.

# Store

The Store keeps validated P-Modes in memory, guarded by a read/write
lock, and persists every mutation through a Journal. One P-Mode may be
nominated as the default; Resolve falls back to it when a lookup misses:

	store, _ := pmode.NewStore(journal)
	store.Create(pm)
	store.SetDefault(pm.ID)

	res, err := store.Resolve("unknown-id")
	// res.ViaDefault == true

Records move through three states: Active, Tombstoned (soft-deleted,
invisible to Resolve) and Removed. Every mutation emits an audit event,
including failed attempts.

# References

  - OASIS AS4 P-Mode: https://docs.oasis-open.org/ebxml-msg/ebms/v3.0/profiles/AS4-profile/v1.0/
*/
package pmode
