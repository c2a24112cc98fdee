// Package matrixfile persists dense index matrices as plain text: one row per
// line, values separated by single spaces. The file carries no header; its
// existence alone decides between loading and recomputing.
package matrixfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/flock"

	apperrors "github.com/Adithya-Monish-Kumar-K/thesis-search/pkg/errors"
)

// Ext is the extension of index cache files.
const Ext = ".txt"

// Path returns the cache file location for a model inside folder.
func Path(folder, model string) string {
	return filepath.Join(folder, model+"_index"+Ext)
}

// Exists reports whether a cache file is present at path.
func Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("checking index file %s: %w", path, err)
	}
}

// Save writes rows to path atomically. Concurrent writers in other processes
// are serialized through a sibling lock file.
func Save(path string, rows [][]float64) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}

	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("locking index file %s: %w", path, err)
	}
	defer lock.Unlock()

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp index file: %w", err)
	}
	defer os.Remove(tmpPath)
	defer f.Close()

	if err := Write(f, rows); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing index file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing index file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming index file: %w", err)
	}
	return nil
}

// Write encodes rows to w.
func Write(w io.Writer, rows [][]float64) error {
	bw := bufio.NewWriter(w)
	buf := make([]byte, 0, 32)
	for _, row := range rows {
		for j, v := range row {
			if j > 0 {
				bw.WriteByte(' ')
			}
			buf = strconv.AppendFloat(buf[:0], v, 'g', -1, 64)
			bw.Write(buf)
		}
		bw.WriteByte('\n')
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing index rows: %w", err)
	}
	return nil
}

// Load reads the matrix stored at path.
func Load(path string) ([][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening index file %s: %w", path, err)
	}
	defer f.Close()

	rows, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading index file %s: %w", path, err)
	}
	return rows, nil
}

// Read decodes a matrix from r. Every row must have the same width.
func Read(r io.Reader) ([][]float64, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var rows [][]float64
	width := -1
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if width >= 0 && len(fields) != width {
			return nil, apperrors.DimensionMismatchf("line %d has %d values, expected %d", line, len(fields), width)
		}
		width = len(fields)
		row := make([]float64, len(fields))
		for j, field := range fields {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d value %d: %w", line, j+1, err)
			}
			row[j] = v
		}
		rows = append(rows, row)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}
