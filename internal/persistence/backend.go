// Package persistence defines a pluggable replication backend for
// shipping sealed segments and manifest snapshots off-box. The primary
// read/write path always stays local (internal/segment mmaps files on
// disk directly); a Backend is an off-box copy for disaster recovery,
// grounded on the three
// persistence-files.go/persistence-s3.go/persistence-ceph.go drivers
// behind one shared interface. Neither the engine nor the server binary
// constructs a Backend or calls PutFile; flushes do not ship files
// anywhere.
package persistence

import "context"

// Backend ships the named local file to durable storage under a
// backend-specific key, reporting only whether the upload succeeded.
type Backend interface {
	// PutFile uploads localPath, stored in the backend under relKey
	// (the path of localPath relative to the database directory).
	PutFile(ctx context.Context, relKey, localPath string) error
	// Name identifies the backend for logging ("fs", "s3", "ceph").
	Name() string
}
