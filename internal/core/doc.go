// Package core turns an institutional dashboard CSV export into an immutable
// in-memory dataset and serves filtered, paginated, exportable views of it.
//
// It has no knowledge of HTTP or templates and can be driven by the web
// server, the CLI, or tests without modification.
//
// # Dataset
//
// One flat CSV holds every row kind, tagged by a discriminator column
// (row_type). [Load] partitions the rows into Users, Projects, Registrations
// and Preprints, keeps the first summary and branding rows, and attaches
// derived identifiers (osf_guid, doi_display, doi_url) to content rows. A
// missing discriminator column is the only fatal load error
// ([ErrMissingDiscriminatorColumn]).
//
// # Metrics
//
// [ComputeSummary] resolves each headline counter in one of three modes:
//
//   - authoritative: read from the summary row, 0 when absent
//   - derived: counted or summed over the entity tables
//   - composite: the sum of resolved authoritative counters
//
// # Views
//
// Each request runs one pass of [ApplyFilters], [ResolveColumns] and
// [Paginate] over a collection ([BuildView]). Per-entity selections live in
// [SessionState]; the core itself holds no UI state.
//
// # Entity Schemas
//
// Column allowlists, defaults and filter widgets per entity are registered at
// init time with [Register] and may be overridden from YAML with
// [LoadSchemaFile].
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages with support codes by
// [MapError].
package core
