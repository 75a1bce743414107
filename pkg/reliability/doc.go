// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package reliability implements AS4 duplicate detection.

The DuplicateSuppressor remembers message identifiers for a configured
disposal horizon and rejects re-submissions within it:

	suppressor := reliability.NewDuplicateSuppressor(48 * time.Hour)
	defer suppressor.Stop()

	if suppressor.CheckAndRecord(messageID) == reliability.Duplicate {
	    // message was already accepted, do not deliver again
	}

Once the horizon elapses a retained identifier becomes eligible for
eviction and a later submission of the same identifier is accepted
again. Eviction is best effort: entries are dropped lazily on lookup
and by a periodic background sweep, not at the exact horizon boundary.
*/
package reliability
