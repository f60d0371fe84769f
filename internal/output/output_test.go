package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/oriys/pgrun/internal/conn"
	"github.com/oriys/pgrun/internal/query"
)

func newTestPrinter(f Format) (*Printer, *bytes.Buffer) {
	var buf bytes.Buffer
	p := NewPrinter(f)
	p.SetWriter(&buf)
	return p, &buf
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatTable, "TABLE": FormatTable, "json": FormatJSON, "yml": FormatYAML} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("expected error for xml")
	}
}

func TestPrintRowsTable(t *testing.T) {
	p, buf := newTestPrinter(FormatTable)
	rows := []query.Row{{int64(1), "ada"}, {int64(2), nil}}

	if err := p.PrintRows([]string{"id", "name"}, rows); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"ID", "NAME", "ada", "NULL", "(2 rows)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPrintRowsEmpty(t *testing.T) {
	p, buf := newTestPrinter(FormatTable)
	if err := p.PrintRows(nil, nil); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "(0 rows)\n" {
		t.Fatalf("got %q", buf.String())
	}
}

func TestPrintRowsJSON(t *testing.T) {
	p, buf := newTestPrinter(FormatJSON)
	rows := []query.Row{{int64(1), []byte("ada")}}

	if err := p.PrintRows([]string{"id", "name"}, rows); err != nil {
		t.Fatal(err)
	}
	var got []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v\n%s", err, buf.String())
	}
	if len(got) != 1 || got[0]["name"] != "ada" || got[0]["id"] != float64(1) {
		t.Fatalf("got %v", got)
	}

	buf.Reset()
	if err := p.PrintRows(nil, rows); err != nil {
		t.Fatal(err)
	}
	var lists [][]any
	if err := json.Unmarshal(buf.Bytes(), &lists); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(lists) != 1 || lists[0][1] != "ada" {
		t.Fatalf("got %v", lists)
	}
}

func TestPrintValue(t *testing.T) {
	p, buf := newTestPrinter(FormatTable)
	_ = p.PrintValue(int64(42))
	if buf.String() != "42\n" {
		t.Fatalf("got %q", buf.String())
	}

	p, buf = newTestPrinter(FormatYAML)
	_ = p.PrintValue("x")
	var got map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got["value"] != "x" {
		t.Fatalf("got %v", got)
	}
}

func TestPrintConnectionMasksPassword(t *testing.T) {
	c := &conn.Connection{ID: "warehouse", Type: "postgres", Host: "wh", Port: 5432, Login: "etl", Password: "hunter2", Schema: "dw"}

	for _, f := range []Format{FormatTable, FormatJSON, FormatYAML} {
		p, buf := newTestPrinter(f)
		if err := p.PrintConnection(c); err != nil {
			t.Fatal(err)
		}
		if strings.Contains(buf.String(), "hunter2") {
			t.Errorf("%s output leaked the password:\n%s", f, buf.String())
		}
		if !strings.Contains(buf.String(), "xxxxx") {
			t.Errorf("%s output missing mask:\n%s", f, buf.String())
		}
	}

	ref := NewConnectionDetail(&conn.Connection{ID: "x", Password: "$SECRET:wh"})
	if ref.Password != "$SECRET:wh" {
		t.Fatalf("secret reference should be shown, got %q", ref.Password)
	}
}

func TestPrintConnections(t *testing.T) {
	p, buf := newTestPrinter(FormatTable)
	if err := p.PrintConnections(nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No connections found") {
		t.Fatalf("got %q", buf.String())
	}

	buf.Reset()
	list := []*conn.Connection{{ID: "a", Type: "postgres", Host: "h1"}, {ID: "b", Type: "postgres", Host: "h2", Port: 6432}}
	if err := p.PrintConnections(list); err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"CONN ID", "a", "h2", "6432"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("output missing %q:\n%s", want, buf.String())
		}
	}
}
