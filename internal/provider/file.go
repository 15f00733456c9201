package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/pathmap/internal/errors"
)

// FileProvider serves neighbors from an adjacency list loaded once from disk.
// Nodes missing from the list are NotFound.
type FileProvider struct {
	path  string
	edges map[string][]string
}

var _ NeighborProvider = (*FileProvider)(nil)

// LoadFileProvider reads a YAML or JSON mapping of node id to child ids.
// Files ending in .json are decoded as JSON, everything else as YAML.
func LoadFileProvider(path string) (*FileProvider, error) {
	if path == "" {
		return nil, errors.ConfigError("provider.graph_file is required for the file provider", nil)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.ErrCodeFileNotFound, "graph file not found: "+path, err)
		}
		return nil, errors.IOError("failed to read graph file", err)
	}

	edges := make(map[string][]string)
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &edges)
	} else {
		err = yaml.Unmarshal(data, &edges)
	}
	if err != nil {
		return nil, errors.New(errors.ErrCodeFileCorrupt,
			fmt.Sprintf("failed to parse graph file %s", path), err)
	}

	return &FileProvider{path: path, edges: edges}, nil
}

// FetchNeighbors implements NeighborProvider.
func (p *FileProvider) FetchNeighbors(ctx context.Context, id string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Cancelled(err)
	}
	children, ok := p.edges[id]
	if !ok {
		return nil, errors.NotFound(id)
	}
	return clone(children), nil
}

// Path returns the file the adjacency list was read from.
func (p *FileProvider) Path() string {
	return p.path
}

// IDs returns every node with an entry, sorted.
func (p *FileProvider) IDs() []string {
	ids := make([]string, 0, len(p.edges))
	for id := range p.edges {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
