//go:build !unix

package segment

import "os"

// mappedFile on non-unix platforms falls back to reading the column
// fully into memory; the engine is designed to run on Unix-domain
// socket hosts, so this path exists only to keep the package portable,
// not as a supported deployment target.
type mappedFile struct {
	data []byte
}

func mmapOpen(path string) (*mappedFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return &mappedFile{data: data}, nil
}

func (m *mappedFile) Close() error { return nil }
