// Package output renders query results and registry records for the CLI.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oriys/pgrun/internal/conn"
	"github.com/oriys/pgrun/internal/query"
)

// Format represents output format
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat parses a format string
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "table":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown output format %q (valid: table, json, yaml)", s)
	}
}

// Printer handles formatted output
type Printer struct {
	format  Format
	writer  io.Writer
	noColor bool
}

// NewPrinter creates a new printer
func NewPrinter(format Format) *Printer {
	return &Printer{
		format:  format,
		writer:  os.Stdout,
		noColor: os.Getenv("NO_COLOR") != "",
	}
}

// SetWriter sets the output writer and disables color.
func (p *Printer) SetWriter(w io.Writer) {
	p.writer = w
	p.noColor = true
}

// Print outputs data in the configured format. Table output falls back to JSON.
func (p *Printer) Print(data any) error {
	if p.format == FormatYAML {
		return p.printYAML(data)
	}
	return p.printJSON(data)
}

func (p *Printer) printJSON(data any) error {
	enc := json.NewEncoder(p.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func (p *Printer) printYAML(data any) error {
	enc := yaml.NewEncoder(p.writer)
	enc.SetIndent(2)
	if err := enc.Encode(data); err != nil {
		return err
	}
	return enc.Close()
}

func (p *Printer) structured() bool {
	return p.format == FormatJSON || p.format == FormatYAML
}

// Color codes
const (
	Reset = "\033[0m"
	Bold  = "\033[1m"
	Red   = "\033[31m"
	Green = "\033[32m"
	Cyan  = "\033[36m"
	Gray  = "\033[90m"
)

// Colorize adds color to text
func (p *Printer) Colorize(color, text string) string {
	if p.noColor {
		return text
	}
	return color + text + Reset
}

// TableWriter creates a tabwriter for aligned output
func (p *Printer) TableWriter() *tabwriter.Writer {
	return tabwriter.NewWriter(p.writer, 0, 0, 2, ' ', 0)
}

// PrintRows prints a result set. With column names, structured formats emit
// one object per row; without them, one list per row.
func (p *Printer) PrintRows(cols []string, rows []query.Row) error {
	if p.structured() {
		if cols == nil {
			out := make([][]any, len(rows))
			for i, r := range rows {
				out[i] = normalizeRow(r)
			}
			return p.Print(out)
		}
		out := make([]map[string]any, len(rows))
		for i, r := range rows {
			m := make(map[string]any, len(cols))
			for j, c := range cols {
				if j < len(r) {
					m[c] = normalize(r[j])
				}
			}
			out[i] = m
		}
		return p.Print(out)
	}

	if len(rows) == 0 {
		fmt.Fprintln(p.writer, "(0 rows)")
		return nil
	}

	w := p.TableWriter()
	if cols != nil {
		header := make([]string, len(cols))
		for i, c := range cols {
			header[i] = strings.ToUpper(c)
		}
		fmt.Fprintln(w, p.Colorize(Bold, strings.Join(header, "\t")))
	}
	for _, r := range rows {
		cells := make([]string, len(r))
		for i, v := range r {
			cells[i] = p.cell(v)
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(p.writer, "(%d rows)\n", len(rows))
	return nil
}

// PrintValue prints a single scalar.
func (p *Printer) PrintValue(v any) error {
	if p.structured() {
		return p.Print(map[string]any{"value": normalize(v)})
	}
	fmt.Fprintln(p.writer, p.cell(v))
	return nil
}

// PrintStatus prints a one-line confirmation for table output.
func (p *Printer) PrintStatus(format string, args ...any) {
	if p.structured() {
		return
	}
	fmt.Fprintln(p.writer, p.Colorize(Green, fmt.Sprintf(format, args...)))
}

// ConnectionDetail is a registry record with its password masked.
type ConnectionDetail struct {
	ID       string            `json:"conn_id" yaml:"conn_id"`
	Type     string            `json:"conn_type" yaml:"conn_type"`
	Host     string            `json:"host,omitempty" yaml:"host,omitempty"`
	Port     int               `json:"port,omitempty" yaml:"port,omitempty"`
	Login    string            `json:"login,omitempty" yaml:"login,omitempty"`
	Password string            `json:"password,omitempty" yaml:"password,omitempty"`
	Schema   string            `json:"schema,omitempty" yaml:"schema,omitempty"`
	Extra    map[string]string `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// NewConnectionDetail masks c's password. Secret references are shown as is.
func NewConnectionDetail(c *conn.Connection) ConnectionDetail {
	d := ConnectionDetail{
		ID:     c.ID,
		Type:   c.Type,
		Host:   c.Host,
		Port:   c.Port,
		Login:  c.Login,
		Schema: c.Schema,
		Extra:  c.Extra,
	}
	switch {
	case c.Password == "":
	case strings.HasPrefix(c.Password, "$SECRET:"):
		d.Password = c.Password
	default:
		d.Password = "xxxxx"
	}
	return d
}

// PrintConnection prints one registry record.
func (p *Printer) PrintConnection(c *conn.Connection) error {
	d := NewConnectionDetail(c)
	if p.structured() {
		return p.Print(d)
	}

	fmt.Fprintf(p.writer, "%s %s\n", p.Colorize(Bold, "Connection:"), p.Colorize(Cyan, d.ID))
	fmt.Fprintf(p.writer, "  Type:     %s\n", d.Type)
	fmt.Fprintf(p.writer, "  Host:     %s\n", d.Host)
	if d.Port > 0 {
		fmt.Fprintf(p.writer, "  Port:     %d\n", d.Port)
	}
	fmt.Fprintf(p.writer, "  Login:    %s\n", d.Login)
	if d.Password != "" {
		fmt.Fprintf(p.writer, "  Password: %s\n", d.Password)
	}
	fmt.Fprintf(p.writer, "  Schema:   %s\n", d.Schema)
	if len(d.Extra) > 0 {
		fmt.Fprintln(p.writer, "  Extra:")
		keys := make([]string, 0, len(d.Extra))
		for k := range d.Extra {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(p.writer, "    %s=%s\n", k, d.Extra[k])
		}
	}
	return nil
}

// PrintConnections prints a list of registry records.
func (p *Printer) PrintConnections(list []*conn.Connection) error {
	if p.structured() {
		out := make([]ConnectionDetail, len(list))
		for i, c := range list {
			out[i] = NewConnectionDetail(c)
		}
		return p.Print(out)
	}

	if len(list) == 0 {
		fmt.Fprintln(p.writer, "No connections found")
		return nil
	}

	w := p.TableWriter()
	fmt.Fprintln(w, p.Colorize(Bold, "CONN ID\tTYPE\tHOST\tPORT\tLOGIN\tSCHEMA"))
	for _, c := range list {
		port := ""
		if c.Port > 0 {
			port = fmt.Sprint(c.Port)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			p.Colorize(Cyan, c.ID), c.Type, c.Host, port, c.Login, c.Schema)
	}
	return w.Flush()
}

func (p *Printer) cell(v any) string {
	switch x := v.(type) {
	case nil:
		return p.Colorize(Gray, "NULL")
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(x)
	}
}

func normalizeRow(r query.Row) []any {
	out := make([]any, len(r))
	for i, v := range r {
		out[i] = normalize(v)
	}
	return out
}

// normalize turns driver values the encoders would mangle into plain ones.
func normalize(v any) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	default:
		return v
	}
}
