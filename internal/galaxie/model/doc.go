// Package model holds the typed race data the bridge exposes and the
// mapping from raw feed records into it.
//
// Upstream fields are optional. A field that is absent, null or of the
// wrong type maps to a nil pointer, meaning "unknown"; it is never replaced
// by a zero value. Only the fields that identify a record are required:
// series_name for race summaries and id for live runs. A record missing one
// of those fails the whole mapping with a *SchemaError.
package model
