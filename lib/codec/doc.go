// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec is the binary encoding for records persisted by the
// telecli stores. Session records are stored as CBOR blobs so new
// fields can be added without schema migrations: the decoder ignores
// unknown keys and leaves missing ones at their zero value.
//
// Encoding uses Core Deterministic Encoding (RFC 8949 §4.2), so the
// same record always produces the same bytes. The store relies on this
// to skip writes whose encoded form has not changed.
package codec
