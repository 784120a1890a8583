// Package core implements CSV imports of transactions and holdings into
// investment accounts.
//
// The package holds all domain logic and is independent of transport. The
// web server and the importctl CLI both drive it through [Service].
//
// # Pipeline
//
// One import runs through these stages, strictly in file order:
//
//  1. [ParseRows] reads the upload (BOM stripped, UTF-8 enforced) into
//     [ImportRow] values keyed by lower-cased column name.
//  2. [ValidateStructure] checks the header. Missing or duplicate columns
//     reject the file; unknown columns only produce a warning.
//  3. [RowValidator] checks each row. A bad row is recorded and skipped.
//  4. [SecurityResolver] maps the row's symbol to a security: cache, exact
//     match, fuzzy match, identifier pattern, market-data providers, and
//     finally a minimal placeholder record.
//  5. [RowNormalizer] builds the typed record that is written to the store.
//
// The whole file runs in one store transaction. A dry run, any failed row,
// or cancellation rolls everything back, so a file is imported completely
// or not at all.
//
// # Kinds
//
// Import kinds are registered with [Register] at init time. Each [KindSpec]
// lists the required and optional columns and the template rows served by
// [TemplateCSV].
//
// # Error Handling
//
// File-level failures are returned as [*FileError] wrapping
// [ErrMalformedFile] or [ErrStructural]. Row failures never surface as Go
// errors; they are collected on [ImportResult]. [MapError] turns technical
// errors into user messages with a support code.
package core
