// Copyright (c) 2024 SIROS Foundation
// SPDX-License-Identifier: BSD-2-Clause

/*
Package as4core implements the processing core of an AS4/ebMS3
business-messaging engine: policy-governed signing and encryption of
SOAP envelopes with binary attachments, MIME transport packaging,
duplicate suppression and asynchronous post-receipt processing.

# Overview

as4core turns an application payload into a policy-compliant, optionally
signed and encrypted, MIME-packaged transport message, and reverses the
process on receipt. Transport binding (HTTP delivery, retries toward
remote endpoints) is deliberately out of scope; the engine produces and
consumes wire-ready byte blobs.

# Specifications Implemented

  - OASIS AS4 Profile of ebMS 3.0 Version 1.0: https://docs.oasis-open.org/ebxml-msg/ebms/v3.0/profiles/AS4-profile/v1.0/
  - OASIS ebXML Messaging Services v3.0: https://docs.oasis-open.org/ebxml-msg/ebms/v3.0/core/os/
  - WS-Security 1.1.1: https://docs.oasis-open.org/wss/v1.1/
  - WS-Security SOAP Messages with Attachments Profile 1.1.1
  - XML Signature Syntax and Processing: https://www.w3.org/TR/xmldsig-core1/
  - XML Encryption Syntax and Processing: https://www.w3.org/TR/xmlenc-core1/

# Package Structure

	github.com/sirosfoundation/as4core/pkg/msh         - Secure message pipeline
	github.com/sirosfoundation/as4core/pkg/message     - ebMS3 message structures and builders
	github.com/sirosfoundation/as4core/pkg/security    - WS-Security signing and encryption
	github.com/sirosfoundation/as4core/pkg/pmode       - Processing Mode registry
	github.com/sirosfoundation/as4core/pkg/reliability - Duplicate detection
	github.com/sirosfoundation/as4core/pkg/worker      - Background execution service
	github.com/sirosfoundation/as4core/pkg/compression - GZIP payload compression
	github.com/sirosfoundation/as4core/pkg/mime        - MIME multipart packaging

# Quick Start

	journal, _ := pmode.NewXMLJournal("pmodes.xml")
	store, _ := pmode.NewStore(journal)
	store.Create(pmode.Default("standard-push"))

	pipeline, _ := msh.NewPipeline(msh.Config{
	    Store: store,
	    Material: msh.Material{
	        LocalKey:    key,
	        LocalCert:   cert,
	        PartnerCert: partnerCert,
	    },
	})

	tm, err := pipeline.Submit(ctx, &msh.OutboundRequest{
	    PModeID:   "standard-push",
	    FromParty: "org:sender",
	    ToParty:   "org:receiver",
	    Service:   "urn:example:service",
	    Action:    "processOrder",
	    Payloads:  []msh.Payload{{Data: order, ContentType: "application/xml"}},
	})

# Security Features

  - RSA-SHA256/384/512 signatures with exclusive canonicalization
  - SOAP-with-Attachments signing over cid: references
  - AES-128/256-GCM data encryption with RSA-OAEP-SHA256 key transport
  - Body-only and attachment encryption modes
  - X509IssuerSerial, SubjectKeyIdentifier, BinarySecurityToken and
    ThumbprintSHA1 token references
  - OCSP revocation checking for partner certificates

# Interoperability

The wire format follows the interoperable AS4 profile implemented by
phase4 (https://github.com/phax/phase4) and Domibus.

# License

BSD-2-Clause License
*/
package as4core
