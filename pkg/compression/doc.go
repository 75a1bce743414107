// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package compression provides GZIP payload compression for AS4.

Compression applies to MIME payload parts before signing. A compressed
part is rewritten to application/gzip and its PartInfo records the
CompressionType and original MimeType part properties, which the
receiving side uses to restore the original content.

	compressor := compression.NewCompressor()
	parts, err := compressor.CompressParts(msg, parts)

ShouldCompress filters out content types that are already compressed:

	if compression.ShouldCompress("application/xml") {
	    // worth compressing
	}

# References

  - OASIS AS4 Compression: https://docs.oasis-open.org/ebxml-msg/ebms/v3.0/profiles/AS4-profile/v1.0/
  - GZIP RFC 1952: https://datatracker.ietf.org/doc/html/rfc1952
*/
package compression
