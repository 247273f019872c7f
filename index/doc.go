// Package index provides named vector indexes backed by chromem-go and the
// retriever capability agents use to query them.
//
// A Store owns one chromem database (in memory or persisted to a directory)
// and a catalog of index descriptions. Each Index wraps a chromem collection;
// NewRetriever exposes an Index as a core.Capability of kind "retriever" whose
// description tells a model when to consult it.
package index
