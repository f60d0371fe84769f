package registry

import (
	"context"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/oriys/pgrun/internal/conn"
)

// fileDoc is the on-disk layout:
//
//	connections:
//	  - conn_id: warehouse
//	    host: wh.internal
//	    port: 5432
//	    login: etl
//	    password: $SECRET:warehouse
//	    schema: dwh
type fileDoc struct {
	Connections []conn.Connection `yaml:"connections"`
}

// File reads connections from a YAML file. The file is read on every lookup.
type File struct {
	path string
}

// NewFile creates a file registry.
func NewFile(path string) *File {
	return &File{path: path}
}

// Lookup implements conn.Registry.
func (f *File) Lookup(_ context.Context, id string) (*conn.Connection, error) {
	conns, err := f.load()
	if err != nil {
		return nil, err
	}
	for i := range conns {
		if conns[i].ID == id {
			c := conns[i]
			return &c, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", conn.ErrNotFound, id)
}

// List returns all connections in the file.
func (f *File) List(_ context.Context) ([]*conn.Connection, error) {
	conns, err := f.load()
	if err != nil {
		return nil, err
	}
	out := make([]*conn.Connection, len(conns))
	for i := range conns {
		out[i] = &conns[i]
	}
	return out, nil
}

func (f *File) load() ([]conn.Connection, error) {
	fh, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("open registry file: %w", err)
	}
	defer fh.Close()
	return decodeFile(fh)
}

func decodeFile(r io.Reader) ([]conn.Connection, error) {
	var doc fileDoc
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("decode registry file: %w", err)
	}
	for i, c := range doc.Connections {
		if c.ID == "" {
			return nil, fmt.Errorf("registry file: connection %d has no conn_id", i)
		}
	}
	return doc.Connections, nil
}
