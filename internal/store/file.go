package store

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/Aman-CERP/pathmap/internal/errors"
	"github.com/Aman-CERP/pathmap/internal/graph"
)

// FileStore keeps the graph in a single text file:
//
//	<node count>
//	<id>\t<child count>\t<child>\t<child>...
//
// one line per expanded node. Writes go to a temp file that is renamed over
// the target.
type FileStore struct {
	path string

	mu     sync.Mutex
	closed bool
}

var _ GraphStore = (*FileStore)(nil)

// NewFileStore returns a store for path. The file is created on first Save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file.
func (s *FileStore) Path() string {
	return s.path
}

// Load implements GraphStore. A missing file is an empty snapshot.
func (s *FileStore) Load(_ context.Context) (graph.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return graph.Snapshot{}, errors.New(errors.ErrCodeStoreClosed, "graph store is closed", nil)
	}

	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return graph.Snapshot{}, nil
	}
	if err != nil {
		return graph.Snapshot{}, errors.IOError(fmt.Sprintf("failed to open %s", s.path), err)
	}
	defer func() { _ = f.Close() }()

	snap, err := decodeMapFile(f)
	if err != nil {
		return graph.Snapshot{}, errors.New(errors.ErrCodeFileCorrupt,
			fmt.Sprintf("graph file %s is corrupt", s.path), err).
			WithDetail("file", s.path).
			WithSuggestion("Delete the file; the graph is rebuilt on the next solve")
	}
	return snap, nil
}

// Save implements GraphStore.
func (s *FileStore) Save(_ context.Context, snap graph.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New(errors.ErrCodeStoreClosed, "graph store is closed", nil)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.IOError("failed to create store directory", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return errors.IOError("failed to create temp file", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	w := bufio.NewWriter(tmp)
	if err := encodeMapFile(w, snap); err != nil {
		_ = tmp.Close()
		return errors.IOError("failed to write graph file", err)
	}
	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		return errors.IOError("failed to write graph file", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.IOError("failed to sync graph file", err)
	}
	if err := tmp.Close(); err != nil {
		return errors.IOError("failed to close graph file", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return errors.IOError("failed to replace graph file", err)
	}
	return nil
}

// Close marks the store closed. Idempotent.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func encodeMapFile(w io.Writer, snap graph.Snapshot) error {
	if _, err := fmt.Fprintf(w, "%d\n", len(snap.Entries)); err != nil {
		return err
	}
	for _, e := range snap.Entries {
		if strings.ContainsAny(e.ID, "\t\n") {
			return fmt.Errorf("node id %q contains a tab or newline", e.ID)
		}
		fields := make([]string, 0, len(e.Children)+2)
		fields = append(fields, e.ID, strconv.Itoa(len(e.Children)))
		for _, c := range e.Children {
			if strings.ContainsAny(c, "\t\n") {
				return fmt.Errorf("child id %q of %q contains a tab or newline", c, e.ID)
			}
			fields = append(fields, c)
		}
		if _, err := io.WriteString(w, strings.Join(fields, "\t")+"\n"); err != nil {
			return err
		}
	}
	return nil
}

func decodeMapFile(r io.Reader) (graph.Snapshot, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return graph.Snapshot{}, err
		}
		return graph.Snapshot{}, nil
	}
	count, err := strconv.Atoi(strings.TrimSpace(sc.Text()))
	if err != nil || count < 0 {
		return graph.Snapshot{}, fmt.Errorf("bad node count %q", sc.Text())
	}

	snap := graph.Snapshot{Entries: make([]graph.Entry, 0, count)}
	for line := 2; sc.Scan(); line++ {
		text := sc.Text()
		if text == "" {
			continue
		}
		fields := strings.Split(text, "\t")
		if len(fields) < 2 {
			return graph.Snapshot{}, fmt.Errorf("line %d: want id and child count", line)
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil || n != len(fields)-2 {
			return graph.Snapshot{}, fmt.Errorf("line %d: child count %q does not match %d children",
				line, fields[1], len(fields)-2)
		}
		children := make([]string, n)
		copy(children, fields[2:])
		snap.Entries = append(snap.Entries, graph.Entry{ID: fields[0], Children: children})
	}
	if err := sc.Err(); err != nil {
		return graph.Snapshot{}, err
	}
	if len(snap.Entries) != count {
		return graph.Snapshot{}, fmt.Errorf("header says %d nodes, found %d", count, len(snap.Entries))
	}
	return snap, nil
}
