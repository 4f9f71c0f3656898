// Package ir provides the value and schema types shared by every other
// notitia package.
//
// This package contains type definitions only. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Value is sealed: Null, Int, Real, Text, Bool, Blob
//   - Text is NFC normalized when built through NewText or ValueOf
//   - A TableSchema has exactly one primary-key column
//   - Rows are ordered and never mutated after publication
package ir
