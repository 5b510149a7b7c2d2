// Package snapshot persists source and remote catalogs as csv files with a header row.
//
// source: sku,regular_price
// remote: sku,price,flag
package snapshot

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"catalogsync/internal/catalog"
)

const (
	columnSku          = "sku"
	columnRegularPrice = "regular_price"
	columnPrice        = "price"
	columnFlag         = "flag"
)

var ErrMissingColumn = errors.New("missing column")

type table struct {
	columns map[string]int
	rows    [][]string
}

func (t table) get(row []string, column string) string {
	i, ok := t.columns[column]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

func readTable(r io.Reader, required ...string) (table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return table{}, fmt.Errorf("empty file, expected a header row")
	}
	if err != nil {
		return table{}, err
	}

	t := table{columns: map[string]int{}}
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		t.columns[name] = i
	}
	for _, column := range required {
		if _, ok := t.columns[column]; !ok {
			return table{}, fmt.Errorf("%w: %s", ErrMissingColumn, column)
		}
	}

	t.rows, err = reader.ReadAll()
	if err != nil {
		return table{}, err
	}
	return t, nil
}

// DecodeSource reads a source snapshot.
func DecodeSource(r io.Reader) ([]catalog.ProductRecord, error) {
	t, err := readTable(r, columnSku, columnRegularPrice)
	if err != nil {
		return nil, err
	}

	records := make([]catalog.ProductRecord, 0, len(t.rows))
	for i, row := range t.rows {
		price, err := catalog.ParsePrice(t.get(row, columnRegularPrice))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		sku := strings.TrimSpace(t.get(row, columnSku))
		if sku == "" {
			return nil, fmt.Errorf("row %d: %w", i+2, catalog.ErrEmptySku)
		}
		records = append(records, catalog.ProductRecord{
			SKU:   sku,
			Price: price,
		})
	}
	return records, nil
}

// DecodeRemote reads a remote snapshot, the flag column defaults to 0 when absent.
func DecodeRemote(r io.Reader) ([]catalog.RemoteRecord, error) {
	t, err := readTable(r, columnSku, columnPrice)
	if err != nil {
		return nil, err
	}

	records := make([]catalog.RemoteRecord, 0, len(t.rows))
	for i, row := range t.rows {
		sku := strings.TrimSpace(t.get(row, columnSku))
		if sku == "" {
			return nil, fmt.Errorf("row %d: %w", i+2, catalog.ErrEmptySku)
		}
		price, err := catalog.ParsePrice(t.get(row, columnPrice))
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}

		var matched bool
		switch flag := strings.TrimSpace(t.get(row, columnFlag)); flag {
		case "", "0":
		case "1":
			matched = true
		default:
			return nil, fmt.Errorf("row %d: invalid flag %q", i+2, flag)
		}

		records = append(records, catalog.RemoteRecord{
			SKU:     sku,
			Price:   price,
			Matched: matched,
		})
	}
	return records, nil
}

func EncodeSource(w io.Writer, records []catalog.ProductRecord) error {
	writer := csv.NewWriter(w)
	err := writer.Write([]string{columnSku, columnRegularPrice})
	if err != nil {
		return err
	}
	for _, r := range records {
		err = writer.Write([]string{r.SKU, r.Price.String()})
		if err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func EncodeRemote(w io.Writer, records []catalog.RemoteRecord) error {
	writer := csv.NewWriter(w)
	err := writer.Write([]string{columnSku, columnPrice, columnFlag})
	if err != nil {
		return err
	}
	for _, r := range records {
		flag := "0"
		if r.Matched {
			flag = "1"
		}
		err = writer.Write([]string{r.SKU, r.Price.String(), flag})
		if err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func readFile[T any](path string, decode func(io.Reader) (T, error)) (T, error) {
	var out T
	f, err := os.Open(path)
	if err != nil {
		return out, err
	}
	defer f.Close()

	out, err = decode(f)
	if err != nil {
		return out, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}

// writeFile replaces the file at path wholesale, readers never see a partial file.
func writeFile(path string, encode func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	err = encode(tmp)
	if err != nil {
		tmp.Close()
		return err
	}
	err = tmp.Close()
	if err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func ReadSource(path string) ([]catalog.ProductRecord, error) {
	return readFile(path, DecodeSource)
}

func ReadRemote(path string) ([]catalog.RemoteRecord, error) {
	return readFile(path, DecodeRemote)
}

func WriteSource(path string, records []catalog.ProductRecord) error {
	return writeFile(path, func(w io.Writer) error {
		return EncodeSource(w, records)
	})
}

func WriteRemote(path string, records []catalog.RemoteRecord) error {
	return writeFile(path, func(w io.Writer) error {
		return EncodeRemote(w, records)
	})
}
