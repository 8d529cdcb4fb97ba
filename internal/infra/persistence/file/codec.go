package file

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"tasktrack/pkg/domain"
)

// Header is the first line of the items file.
var Header = []string{"id", "type", "name", "status", "description", "epic"}

const fieldCount = 6

// EncodeItems writes the header followed by one record per item.
func EncodeItems(w io.Writer, items []domain.Item) error {
	cw := newWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return writeRecords(cw, items)
}

// EncodeHistory writes one record per history entry, in tracker order, with no header.
func EncodeHistory(w io.Writer, items []domain.Item) error {
	return writeRecords(newWriter(w), items)
}

// EncodeSequence writes the last issued identifier as a single decimal line.
func EncodeSequence(w io.Writer, lastID int64) error {
	_, err := io.WriteString(w, strconv.FormatInt(lastID, 10)+"\n")
	return err
}

// DecodeSequence reads the last issued identifier written by EncodeSequence.
func DecodeSequence(r io.Reader) (int64, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, fmt.Errorf("read sequence: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if text == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse sequence %q: %w", text, err)
	}
	if id < 0 {
		return 0, fmt.Errorf("negative sequence %d", id)
	}
	return id, nil
}

func newWriter(w io.Writer) *csv.Writer {
	cw := csv.NewWriter(w)
	cw.UseCRLF = false
	return cw
}

func writeRecords(cw *csv.Writer, items []domain.Item) error {
	for _, item := range items {
		if err := cw.Write(record(item)); err != nil {
			return fmt.Errorf("write item %d: %w", item.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func record(item domain.Item) []string {
	parent := ""
	if item.Kind == domain.KindSubtask {
		parent = strconv.FormatInt(item.ParentID, 10)
	}
	return []string{
		strconv.FormatInt(item.ID, 10),
		string(item.Kind),
		item.Name,
		string(item.Status),
		item.Description,
		parent,
	}
}

// DecodeItems reads an items file. A leading header line is skipped.
func DecodeItems(r io.Reader) ([]domain.Item, error) {
	records, err := readRecords(r)
	if err != nil {
		return nil, err
	}
	if len(records) > 0 && slices.Equal(records[0], Header) {
		records = records[1:]
	}
	items := make([]domain.Item, 0, len(records))
	for i, rec := range records {
		item, err := parseRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+2, err)
		}
		items = append(items, item)
	}
	return items, nil
}

// DecodeHistory reads a history file and returns the referenced identifiers in file order.
func DecodeHistory(r io.Reader) ([]int64, error) {
	records, err := readRecords(r)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(records))
	for i, rec := range records {
		item, err := parseRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("history line %d: %w", i+1, err)
		}
		ids = append(ids, item.ID)
	}
	return ids, nil
}

func readRecords(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = fieldCount
	var out [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		out = append(out, rec)
	}
}

func parseRecord(rec []string) (domain.Item, error) {
	id, err := strconv.ParseInt(rec[0], 10, 64)
	if err != nil {
		return domain.Item{}, fmt.Errorf("parse id %q: %w", rec[0], err)
	}
	kind, err := domain.ParseKind(rec[1])
	if err != nil {
		return domain.Item{}, err
	}
	status, err := domain.ParseStatus(rec[3])
	if err != nil {
		return domain.Item{}, err
	}
	item := domain.Item{ID: id, Kind: kind, Name: rec[2], Status: status, Description: rec[4]}
	if kind == domain.KindSubtask {
		if item.ParentID, err = strconv.ParseInt(rec[5], 10, 64); err != nil {
			return domain.Item{}, fmt.Errorf("parse epic %q: %w", rec[5], err)
		}
	}
	return item, nil
}
