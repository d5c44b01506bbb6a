package exporter

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/s4hubhamp/muscle/internal/storage/pager"
)

func exportTestDB(t *testing.T) *pager.DB {
	t.Helper()
	db, err := pager.Open(filepath.Join(t.TempDir(), "export.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	info, err := db.CreateTable("readings", []pager.ColumnDef{
		{Name: "id", Type: pager.TypeInt, PrimaryKey: true},
		{Name: "sensor", Type: pager.TypeText},
		{Name: "value", Type: pager.TypeReal},
	})
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	tree := db.OpenTree(info.RootPage, pager.TypeInt)
	rows := []struct {
		id     int64
		sensor string
		value  float64
	}{
		{3, "c", 0.5},
		{1, "a", 1.25},
		{2, "b", -2},
	}
	for _, r := range rows {
		key, err := pager.EncodeKey(pager.TypeInt, pager.IntValue(r.id))
		if err != nil {
			t.Fatalf("encode key: %v", err)
		}
		payload, err := pager.EncodeRow(info.Columns, []pager.Value{
			pager.IntValue(r.id), pager.TextValue(r.sensor), pager.RealValue(r.value),
		})
		if err != nil {
			t.Fatalf("encode row: %v", err)
		}
		if err := tree.Insert(key, payload); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	if err := db.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	return db
}

func TestCSVExportInKeyOrder(t *testing.T) {
	db := exportTestDB(t)
	var buf bytes.Buffer
	if err := CSV(&buf, db, "readings", Options{}); err != nil {
		t.Fatalf("csv: %v", err)
	}
	want := "id,sensor,value\n1,a,1.25\n2,b,-2\n3,c,0.5\n"
	if buf.String() != want {
		t.Fatalf("csv output:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestCSVExportNoHeaderCustomDelimiter(t *testing.T) {
	db := exportTestDB(t)
	var buf bytes.Buffer
	if err := CSV(&buf, db, "readings", Options{CSVNoHeader: true, CSVDelimiter: ';'}); err != nil {
		t.Fatalf("csv: %v", err)
	}
	if strings.Contains(buf.String(), "id;sensor") {
		t.Fatal("header written despite CSVNoHeader")
	}
	if !strings.HasPrefix(buf.String(), "1;a;1.25\n") {
		t.Fatalf("csv output:\n%s", buf.String())
	}
}

func TestJSONExport(t *testing.T) {
	db := exportTestDB(t)
	var buf bytes.Buffer
	if err := JSON(&buf, db, "readings", Options{}); err != nil {
		t.Fatalf("json: %v", err)
	}
	var rows []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rows); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("%d rows, want 3", len(rows))
	}
	if rows[0]["sensor"] != "a" || rows[2]["sensor"] != "c" {
		t.Fatalf("rows out of key order: %v", rows)
	}
}

func TestExportUnknownTable(t *testing.T) {
	db := exportTestDB(t)
	if err := CSV(&bytes.Buffer{}, db, "missing", Options{}); err == nil {
		t.Fatal("expected error for unknown table")
	}
}
