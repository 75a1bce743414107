// Copyright (c) 2025 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package mime packs and unpacks AS4 messages as MIME multipart/related
bodies per the SOAP with Attachments profile.

The root part carries the SOAP envelope as application/soap+xml; every
payload travels as its own part, addressed by Content-ID so the envelope
can reference it through cid: hrefs. Per-part Content-Type and
Content-Transfer-Encoding survive a pack/unpack round trip, which the
security layer relies on when it rewrites encrypted attachments to
application/octet-stream with binary transfer encoding.
*/
package mime
