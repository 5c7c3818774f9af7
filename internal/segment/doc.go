// Package segment implements the engine's immutable, on-disk, columnar
// storage unit: one sealed generation of a shard's nodes and edges,
// memory-mapped for O(1) random access, with a side-car tombstone
// bitset that is the only thing ever rewritten once a segment is
// sealed.
package segment
