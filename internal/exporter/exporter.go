// Package exporter renders table contents as CSV or JSON by walking the
// table's leaf chain in key order.
package exporter

import (
	"encoding/base64"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/s4hubhamp/muscle/internal/storage/pager"
)

// Options controls exporter behavior.
type Options struct {
	PrettyJSON   bool
	CSVNoHeader  bool
	CSVDelimiter rune
}

// valueToString renders one column value for CSV output. Blobs are
// base64-encoded so arbitrary bytes survive the text format.
func valueToString(v pager.Value) string {
	switch v.Type {
	case pager.TypeInt:
		return strconv.FormatInt(v.Int, 10)
	case pager.TypeReal:
		return strconv.FormatFloat(v.Real, 'f', -1, 64)
	case pager.TypeText:
		return v.Text
	case pager.TypeBlob:
		return base64.StdEncoding.EncodeToString(v.Blob)
	case pager.TypeBool:
		return strconv.FormatBool(v.Bool)
	default:
		return ""
	}
}

// valueToJSON renders one column value as a JSON-marshalable Go value.
func valueToJSON(v pager.Value) any {
	switch v.Type {
	case pager.TypeInt:
		return v.Int
	case pager.TypeReal:
		return v.Real
	case pager.TypeText:
		return v.Text
	case pager.TypeBlob:
		return base64.StdEncoding.EncodeToString(v.Blob)
	case pager.TypeBool:
		return v.Bool
	default:
		return nil
	}
}

// scanRows walks a table in key order, handing each decoded row to fn.
func scanRows(db *pager.DB, table string, fn func(vals []pager.Value) error) (*pager.TableInfo, error) {
	info, err := db.GetTable(table)
	if err != nil {
		return nil, err
	}
	tree := db.OpenTree(info.RootPage, info.KeyType())
	var scanErr error
	err = tree.Scan(func(payload []byte) bool {
		vals, err := pager.DecodeRow(info.Columns, payload)
		if err != nil {
			scanErr = err
			return false
		}
		if err := fn(vals); err != nil {
			scanErr = err
			return false
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return info, scanErr
}

// CSV writes the table as CSV in primary-key order.
func CSV(w io.Writer, db *pager.DB, table string, opt Options) error {
	delim := opt.CSVDelimiter
	if delim == 0 {
		delim = ','
	}
	cw := csv.NewWriter(w)
	cw.Comma = delim

	info, err := db.GetTable(table)
	if err != nil {
		return err
	}
	if !opt.CSVNoHeader {
		header := make([]string, len(info.Columns))
		for i, c := range info.Columns {
			header[i] = c.Name
		}
		if err := cw.Write(header); err != nil {
			return err
		}
	}

	if _, err := scanRows(db, table, func(vals []pager.Value) error {
		record := make([]string, len(vals))
		for i, v := range vals {
			record[i] = valueToString(v)
		}
		return cw.Write(record)
	}); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// JSON writes the table as an array of name→value objects in primary-key
// order.
func JSON(w io.Writer, db *pager.DB, table string, opt Options) error {
	var rows []map[string]any
	info, err := db.GetTable(table)
	if err != nil {
		return err
	}
	_, err = scanRows(db, table, func(vals []pager.Value) error {
		row := make(map[string]any, len(vals))
		for i, v := range vals {
			row[info.Columns[i].Name] = valueToJSON(v)
		}
		rows = append(rows, row)
		return nil
	})
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	if opt.PrettyJSON {
		enc.SetIndent("", "  ")
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	if err := enc.Encode(rows); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}
