package segment

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/pierrec/lz4/v4"
)

// uint64Column is a fixed-width 8-byte-per-entry mmap'd column: exactly
// the shape storage/storage-int.go's columnar encoding aims for (O(1)
// random access by index), specialized here to the one scalar width
// the engine's id/src/dst fields need.
type uint64Column struct {
	m *mappedFile
	n int
}

func writeUint64Column(path string, values []uint64) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("segment: create column %s: %w", path, err)
	}
	w := bufio.NewWriter(f)
	var buf [8]byte
	for _, v := range values {
		binary.LittleEndian.PutUint64(buf[:], v)
		if _, err := w.Write(buf[:]); err != nil {
			f.Close()
			return fmt.Errorf("segment: write column %s: %w", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func openUint64Column(path string) (*uint64Column, error) {
	m, err := mmapOpen(path)
	if err != nil {
		return nil, err
	}
	return &uint64Column{m: m, n: len(m.data) / 8}, nil
}

func (c *uint64Column) Len() int { return c.n }

func (c *uint64Column) At(i int) uint64 {
	off := i * 8
	return binary.LittleEndian.Uint64(c.m.data[off : off+8])
}

func (c *uint64Column) Close() error { return c.m.Close() }

// boolColumn is one byte per entry — exported flags are few enough per
// segment that packing bits is not worth the extra indirection for the
// one boolean field this engine stores.
type boolColumn struct {
	m *mappedFile
}

func writeBoolColumn(path string, values []bool) error {
	buf := make([]byte, len(values))
	for i, v := range values {
		if v {
			buf[i] = 1
		}
	}
	return os.WriteFile(path, buf, 0o644)
}

func openBoolColumn(path string) (*boolColumn, error) {
	m, err := mmapOpen(path)
	if err != nil {
		return nil, err
	}
	return &boolColumn{m: m}, nil
}

func (c *boolColumn) Len() int { return len(c.m.data) }

func (c *boolColumn) At(i int) bool { return c.m.data[i] != 0 }

func (c *boolColumn) Close() error { return c.m.Close() }

// stringColumn stores variable-length strings as a concatenated data
// blob plus an (n+1)-entry offset table, both mmap'd, giving O(1)
// random access without scanning — the same "offsets + blob" shape
// storage-prefix.go uses for its length-prefixed log encoding,
// generalized here to random access instead of sequential replay.
//
// When compressed is true the blob is lz4-compressed on disk and fully
// decompressed into memory at open time: random access degrades from
// "slice of the mmap" to "slice of a heap buffer", which is the
// trade-off this engine accepts for the metadata columns that
// dominate segment size (see SPEC_FULL.md §4.1).
type stringColumn struct {
	offsets    *uint64Column
	blobMapped *mappedFile // nil if compressed
	blob       []byte      // populated directly if compressed
	compressed bool
}

func writeStringColumn(dir, base string, values []string, compress bool) error {
	offsets := make([]uint64, len(values)+1)
	var blob []byte
	var off uint64
	for i, v := range values {
		offsets[i] = off
		blob = append(blob, v...)
		off += uint64(len(v))
	}
	offsets[len(values)] = off

	if err := writeUint64Column(dir+"/"+base+".off", offsets); err != nil {
		return err
	}

	blobPath := dir + "/" + base + ".blob"
	if compress {
		blobPath += ".lz4"
		f, err := os.Create(blobPath)
		if err != nil {
			return fmt.Errorf("segment: create column %s: %w", blobPath, err)
		}
		zw := lz4.NewWriter(f)
		if _, err := zw.Write(blob); err != nil {
			f.Close()
			return fmt.Errorf("segment: compress column %s: %w", blobPath, err)
		}
		if err := zw.Close(); err != nil {
			f.Close()
			return err
		}
		if err := f.Sync(); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}
	if err := os.WriteFile(blobPath, blob, 0o644); err != nil {
		return fmt.Errorf("segment: write column %s: %w", blobPath, err)
	}
	return nil
}

func openStringColumn(dir, base string, compress bool) (*stringColumn, error) {
	offsets, err := openUint64Column(dir + "/" + base + ".off")
	if err != nil {
		return nil, err
	}
	sc := &stringColumn{offsets: offsets, compressed: compress}
	if compress {
		f, err := os.Open(dir + "/" + base + ".blob.lz4")
		if err != nil {
			offsets.Close()
			return nil, err
		}
		defer f.Close()
		blob, err := io.ReadAll(lz4.NewReader(f))
		if err != nil {
			offsets.Close()
			return nil, fmt.Errorf("segment: decompress column %s: %w", base, err)
		}
		sc.blob = blob
		return sc, nil
	}
	m, err := mmapOpen(dir + "/" + base + ".blob")
	if err != nil {
		offsets.Close()
		return nil, err
	}
	sc.blobMapped = m
	return sc, nil
}

func (c *stringColumn) Len() int {
	if c.offsets.Len() == 0 {
		return 0
	}
	return c.offsets.Len() - 1
}

func (c *stringColumn) At(i int) string {
	start := c.offsets.At(i)
	end := c.offsets.At(i + 1)
	blob := c.blob
	if c.blobMapped != nil {
		blob = c.blobMapped.data
	}
	return string(blob[start:end])
}

func (c *stringColumn) Close() error {
	var err error
	if c.offsets != nil {
		err = c.offsets.Close()
	}
	if c.blobMapped != nil {
		if cerr := c.blobMapped.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
