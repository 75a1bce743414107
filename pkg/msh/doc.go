// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package msh implements the AS4 Message Service Handler pipeline.

The Pipeline turns an application payload into a policy-compliant,
optionally signed and encrypted, MIME-packaged transport message, and
reverses the process on receipt:

	outbound:  build -> compress -> sign -> encrypt -> pack
	inbound:   unpack -> decrypt -> verify -> decompress -> duplicate gate

Signing always precedes encryption on send, so receipt processing
decrypts before verifying. The P-Mode resolved through the registry
(directly, or via the default fallback) selects algorithms, the
encryption mode and payload compression.

Accepted inbound messages trigger receipt generation on the shared
worker pool so the protocol handler never blocks on post-receipt work.
*/
package msh
