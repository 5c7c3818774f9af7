// Package cephbackend replicates segment and manifest files into a
// Ceph RADOS pool, grounded on storage/persistence-ceph.go (which
// opens a RADOS connection from ceph.conf and writes whole objects
// keyed by path) via github.com/ceph/go-ceph's rados bindings.
package cephbackend

import (
	"context"
	"fmt"
	"os"

	"github.com/ceph/go-ceph/rados"
)

type Backend struct {
	conn *rados.Conn
	pool string
	ioctx *rados.IOContext
}

// New connects to the Ceph cluster described by configPath and opens
// an I/O context against pool.
func New(configPath, pool string) (*Backend, error) {
	conn, err := rados.NewConn()
	if err != nil {
		return nil, fmt.Errorf("cephbackend: new conn: %w", err)
	}
	if err := conn.ReadConfigFile(configPath); err != nil {
		return nil, fmt.Errorf("cephbackend: read config %s: %w", configPath, err)
	}
	if err := conn.Connect(); err != nil {
		return nil, fmt.Errorf("cephbackend: connect: %w", err)
	}
	ioctx, err := conn.OpenIOContext(pool)
	if err != nil {
		conn.Shutdown()
		return nil, fmt.Errorf("cephbackend: open pool %s: %w", pool, err)
	}
	return &Backend{conn: conn, pool: pool, ioctx: ioctx}, nil
}

func (b *Backend) Name() string { return "ceph" }

func (b *Backend) PutFile(_ context.Context, relKey, localPath string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return fmt.Errorf("cephbackend: read %s: %w", localPath, err)
	}
	if err := b.ioctx.WriteFull(relKey, data); err != nil {
		return fmt.Errorf("cephbackend: write object %s: %w", relKey, err)
	}
	return nil
}

// Close releases the I/O context and connection.
func (b *Backend) Close() {
	b.ioctx.Destroy()
	b.conn.Shutdown()
}
