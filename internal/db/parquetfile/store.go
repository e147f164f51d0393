// Package parquetfile serves attribute values from a Parquet file. Rows are
// decoded once into memory and queried like a delimited file.
package parquetfile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/parquet-go/parquet-go"

	"github.com/kailas-cloud/simsearch/internal/db"
	"github.com/kailas-cloud/simsearch/internal/db/csvfile"
)

// Config holds file source settings.
type Config struct {
	Path string
}

const readBatch = 1000

// Open reads every row group of the file at cfg.Path. Columns are named by
// their top-level field; repeated values are joined with a space so they
// parse as a token set.
func Open(cfg Config) (*csvfile.Store, error) {
	f, err := os.Open(filepath.Clean(cfg.Path))
	if err != nil {
		return nil, &db.Error{Op: db.OpRead, Err: err}
	}
	defer func() { _ = f.Close() }()

	stat, err := f.Stat()
	if err != nil {
		return nil, &db.Error{Op: db.OpRead, Err: err}
	}
	header, records, err := Read(f, stat.Size())
	if err != nil {
		return nil, err
	}
	return csvfile.FromRecords(cfg.Path, header, records), nil
}

// Read decodes a Parquet file into a header and string records.
func Read(r io.ReaderAt, size int64) ([]string, [][]string, error) {
	pf, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, nil, &db.Error{Op: db.OpRead, Err: fmt.Errorf("open parquet: %w", err)}
	}

	// leaf column index -> record position
	var header []string
	position := map[string]int{}
	leaves := map[int]int{}
	for i, path := range pf.Schema().Columns() {
		if len(path) == 0 {
			continue
		}
		p, ok := position[path[0]]
		if !ok {
			p = len(header)
			position[path[0]] = p
			header = append(header, path[0])
		}
		leaves[i] = p
	}

	var records [][]string
	buf := make([]parquet.Row, readBatch)
	for _, rg := range pf.RowGroups() {
		rows := parquet.NewRowGroupReader(rg)
		for {
			n, readErr := rows.ReadRows(buf)
			for _, row := range buf[:n] {
				records = append(records, decodeRow(row, leaves, len(header)))
			}
			if readErr != nil {
				if errors.Is(readErr, io.EOF) {
					break
				}
				return nil, nil, &db.Error{Op: db.OpRead, Err: fmt.Errorf("read rows: %w", readErr)}
			}
		}
	}
	return header, records, nil
}

func decodeRow(row parquet.Row, leaves map[int]int, width int) []string {
	parts := make([][]string, width)
	for _, v := range row {
		p, ok := leaves[v.Column()]
		if !ok || v.IsNull() {
			continue
		}
		parts[p] = append(parts[p], format(v))
	}
	rec := make([]string, width)
	for i, vals := range parts {
		rec[i] = strings.Join(vals, " ")
	}
	return rec
}

func format(v parquet.Value) string {
	switch v.Kind() {
	case parquet.Boolean:
		return strconv.FormatBool(v.Boolean())
	case parquet.Int32:
		return strconv.FormatInt(int64(v.Int32()), 10)
	case parquet.Int64:
		return strconv.FormatInt(v.Int64(), 10)
	case parquet.Float:
		return strconv.FormatFloat(float64(v.Float()), 'g', -1, 32)
	case parquet.Double:
		return strconv.FormatFloat(v.Double(), 'g', -1, 64)
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray())
	default:
		return v.String()
	}
}
