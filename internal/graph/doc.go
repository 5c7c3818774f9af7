// Package graph defines the two entity kinds the engine stores — nodes
// and edges — and the small set of helpers shared by every higher tier
// (segment, shard, engine) that needs to read or write them.
package graph
