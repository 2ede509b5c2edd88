// Package results is the flat-file result store shared by both simulation
// stages. Every entry is one CSV file named by its case key, so the store
// also answers cross-stage dependency lookups: stage 2 starts from whether
// the nominal stage-1 key exists.
package results

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

var ErrNotFound = errors.New("results: entry not found")

// Table is a named-column table of float64 samples.
type Table struct {
	Header []string
	Rows   [][]float64
}

// Column returns the values of the named column, or false when absent.
func (t *Table) Column(name string) ([]float64, bool) {
	col := -1
	for i, h := range t.Header {
		if h == name {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, false
	}
	vals := make([]float64, 0, len(t.Rows))
	for _, row := range t.Rows {
		if col < len(row) {
			vals = append(vals, row[col])
		}
	}
	return vals, true
}

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// Path returns the file backing a key. External tools read store entries
// through this path (the system model's torque-map table source).
func (s *Store) Path(key string) string {
	return filepath.Join(s.baseDir, key+".csv")
}

func validKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) {
		return fmt.Errorf("results: invalid key %q", key)
	}
	return nil
}

// Put writes a table under key, replacing any previous entry.
func (s *Store) Put(key string, t *Table) error {
	if err := validKey(key); err != nil {
		return err
	}
	file, err := os.Create(s.Path(key))
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	defer w.Flush()

	if err := w.Write(t.Header); err != nil {
		return err
	}
	for _, row := range t.Rows {
		rec := make([]string, len(row))
		for i, v := range row {
			rec[i] = strconv.FormatFloat(v, 'f', 6, 64)
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// Get reads the table stored under key. Rows with non-numeric cells are
// skipped; solver outputs occasionally carry trailing junk lines.
func (s *Store) Get(key string) (*Table, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	file, err := os.Open(s.Path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return &Table{}, nil
	}

	t := &Table{Header: records[0]}
	for _, rec := range records[1:] {
		if len(rec) == 0 {
			continue
		}
		row := make([]float64, 0, len(rec))
		ok := true
		for _, cell := range rec {
			v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
			if err != nil {
				ok = false
				break
			}
			row = append(row, v)
		}
		if ok {
			t.Rows = append(t.Rows, row)
		}
	}
	return t, nil
}

// Exists reports whether an entry is stored under key.
func (s *Store) Exists(key string) bool {
	if validKey(key) != nil {
		return false
	}
	_, err := os.Stat(s.Path(key))
	return err == nil
}

// ListByPrefix returns the sorted keys starting with prefix; an empty prefix
// lists the whole store. A store directory that does not exist yet lists
// empty rather than failing.
func (s *Store) ListByPrefix(prefix string) ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}

	keys := make([]string, 0)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".csv") {
			continue
		}
		key := strings.TrimSuffix(entry.Name(), ".csv")
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// ImportFile adopts an externally produced CSV file into the store under
// key, replacing any previous entry. The source is copied verbatim.
func (s *Store) ImportFile(key, srcPath string) error {
	if err := validKey(key); err != nil {
		return err
	}
	src, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(s.Path(key))
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}
