// Copyright (c) 2025 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package message provides the SOAP 1.2 / ebMS3 message model for the
processing core.

It defines the Envelope, UserMessage and SignalMessage structures from
the OASIS ebXML Messaging Services 3.0 specification, the ebMS3 error
code registry, and builders for user messages, receipts and error
signals.

Payload bytes travel as MIME parts (see the mime package); this package
only carries their cid: references in PayloadInfo.

# References

  - OASIS ebMS 3.0 Core: https://docs.oasis-open.org/ebxml-msg/ebms/v3.0/core/os/
  - OASIS AS4 Profile: https://docs.oasis-open.org/ebxml-msg/ebms/v3.0/profiles/AS4-profile/v1.0/
*/
package message
