package store

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/kjannette/brent-backend/internal/models"
)

var Header = []string{"date", "price", "currency", "unit"}

// PersistOutcome reports a single Persist call.
type PersistOutcome struct {
	Written    int
	Duplicates int
	Created    bool
	// Rows are the records actually appended, in write order.
	Rows []models.PriceRecord
}

// CSVStore is an append-only CSV file keyed by date. Rows are never
// rewritten; a record whose date is already stored is dropped regardless
// of its price.
type CSVStore struct {
	dir  string
	path string
}

func NewCSVStore(dir, file string) *CSVStore {
	return &CSVStore{dir: dir, path: filepath.Join(dir, file)}
}

func (s *CSVStore) Path() string {
	return s.path
}

// Persist appends the records whose date is not yet stored. The whole batch
// goes out in one write followed by fsync; an empty batch leaves the file
// untouched.
func (s *CSVStore) Persist(records []models.PriceRecord) (PersistOutcome, error) {
	var out PersistOutcome

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return out, fmt.Errorf("create data dir: %w", err)
	}

	f, err := os.OpenFile(s.path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return out, fmt.Errorf("open store: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return out, fmt.Errorf("stat store: %w", err)
	}
	empty := info.Size() == 0

	existing := map[string]struct{}{}
	openLine := false
	if !empty {
		existing, err = readDates(f)
		if err != nil {
			return out, err
		}
		last := make([]byte, 1)
		if _, err := f.ReadAt(last, info.Size()-1); err != nil {
			return out, fmt.Errorf("read store tail: %w", err)
		}
		openLine = last[0] != '\n'
	}

	fresh := make([]models.PriceRecord, 0, len(records))
	for _, r := range records {
		if _, dup := existing[r.Date]; dup {
			out.Duplicates++
			continue
		}
		existing[r.Date] = struct{}{}
		fresh = append(fresh, r)
	}

	if len(fresh) == 0 {
		return out, nil
	}

	var buf bytes.Buffer
	// The last stored record may lack its line break.
	if openLine {
		buf.WriteByte('\n')
	}
	w := csv.NewWriter(&buf)
	if empty {
		w.Write(Header)
	}
	for _, r := range fresh {
		w.Write(toRow(r))
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return out, fmt.Errorf("encode rows: %w", err)
	}

	if _, err := f.Write(buf.Bytes()); err != nil {
		return out, fmt.Errorf("append rows: %w", err)
	}
	if err := f.Sync(); err != nil {
		return out, fmt.Errorf("sync store: %w", err)
	}

	out.Written = len(fresh)
	out.Created = empty
	out.Rows = fresh
	return out, nil
}

// Dates returns the set of stored dates. A missing file is an empty set.
func (s *CSVStore) Dates() (map[string]struct{}, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]struct{}{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	defer f.Close()
	return readDates(f)
}

// All returns every stored row in file order.
func (s *CSVStore) All() ([]models.PriceRecord, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	defer f.Close()

	var out []models.PriceRecord
	err = scanRows(f, func(row map[string]string) error {
		price, err := strconv.ParseFloat(row["price"], 64)
		if err != nil {
			return fmt.Errorf("row %s: price %q: %w", row["date"], row["price"], err)
		}
		out = append(out, models.PriceRecord{
			Date:     row["date"],
			Price:    price,
			Currency: row["currency"],
			Unit:     row["unit"],
		})
		return nil
	})
	return out, err
}

// Latest returns the row with the greatest date, or nil for an empty store.
func (s *CSVStore) Latest() (*models.PriceRecord, error) {
	rows, err := s.All()
	if err != nil {
		return nil, err
	}
	var best *models.PriceRecord
	for i := range rows {
		if best == nil || rows[i].Date > best.Date {
			best = &rows[i]
		}
	}
	return best, nil
}

// Range returns rows with from <= date <= to (YYYY-MM-DD compare), oldest
// first. Empty bounds are open.
func (s *CSVStore) Range(from, to string) ([]models.PriceRecord, error) {
	rows, err := s.All()
	if err != nil {
		return nil, err
	}
	out := make([]models.PriceRecord, 0, len(rows))
	for _, r := range rows {
		if from != "" && r.Date < from {
			continue
		}
		if to != "" && r.Date > to {
			continue
		}
		out = append(out, r)
	}
	sortByDate(out)
	return out, nil
}

// --- csv helpers ---

func toRow(r models.PriceRecord) []string {
	return []string{r.Date, strconv.FormatFloat(r.Price, 'f', -1, 64), r.Currency, r.Unit}
}

func readDates(r io.Reader) (map[string]struct{}, error) {
	dates := map[string]struct{}{}
	err := scanRows(r, func(row map[string]string) error {
		dates[row["date"]] = struct{}{}
		return nil
	})
	return dates, err
}

// scanRows reads a header then maps each record by column name.
func scanRows(r io.Reader, fn func(row map[string]string) error) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	idx := map[string]int{}
	for i, h := range header {
		idx[h] = i
	}
	if _, ok := idx["date"]; !ok {
		return fmt.Errorf("store header %v has no date column", header)
	}

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read row: %w", err)
		}
		row := make(map[string]string, len(idx))
		for name, i := range idx {
			if i < len(rec) {
				row[name] = rec[i]
			}
		}
		if err := fn(row); err != nil {
			return err
		}
	}
}

func sortByDate(rows []models.PriceRecord) {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Date < rows[j].Date })
}
