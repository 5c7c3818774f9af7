// Package fsbackend replicates segment and manifest files to a second
// local (or network-mounted) directory, grounded directly on
// persistence-files.go's WriteSchema/WriteShard: copy-to-temp,
// fsync, rename into place, so a replica read during a copy never sees
// a partial file.
package fsbackend

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

type Backend struct {
	ReplicaRoot string
}

func New(replicaRoot string) *Backend { return &Backend{ReplicaRoot: replicaRoot} }

func (b *Backend) Name() string { return "fs" }

func (b *Backend) PutFile(_ context.Context, relKey, localPath string) error {
	dst := filepath.Join(b.ReplicaRoot, relKey)
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return fmt.Errorf("fsbackend: mkdir for %s: %w", dst, err)
	}

	src, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("fsbackend: open %s: %w", localPath, err)
	}
	defer src.Close()

	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("fsbackend: create %s: %w", tmp, err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return fmt.Errorf("fsbackend: copy to %s: %w", tmp, err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, dst)
}
