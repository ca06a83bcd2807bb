// Package notebook decomposes Jupyter notebook documents into ordered
// cells, derives structure metrics, and exports an equivalent flat
// script for syntax-level analysis.
package notebook

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/fulmenhq/pyneat/internal/assets"
	"github.com/xeipuuv/gojsonschema"
)

// ErrMalformedDocument reports notebook input that does not satisfy the
// minimal structural contract: a top-level cells list where every cell
// carries a cell_type and a source.
var ErrMalformedDocument = errors.New("malformed notebook document")

// CellTypeCode marks cells whose source contributes to code metrics and
// the flattened script. Every other cell type counts only toward the
// cell total.
const CellTypeCode = "code"

// Cell is one unit of a notebook document. Source holds logical lines
// in physical order, without trailing newlines.
type Cell struct {
	Type   string
	Source []string
}

func (c Cell) IsCode() bool { return c.Type == CellTypeCode }

// Metrics summarizes the code structure of a decomposed notebook.
type Metrics struct {
	CellCount        int `json:"cell_count"`
	TotalCodeLines   int `json:"total_code_lines"`
	FunctionDefCount int `json:"function_def_count"`
	MaxLinesInCell   int `json:"max_lines_in_cell"`
}

// Notebook is the decomposed form of one notebook document.
type Notebook struct {
	Cells []Cell
}

type rawDocument struct {
	Cells *[]rawCell `json:"cells"`
}

type rawCell struct {
	CellType string      `json:"cell_type"`
	Source   *cellSource `json:"source"`
}

// cellSource accepts the two on-disk encodings of cell source, a single
// string or a list of line chunks, and normalizes both to logical lines.
type cellSource []string

func (s *cellSource) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*s = splitLines(text)
		return nil
	}
	var chunks []string
	if err := json.Unmarshal(data, &chunks); err != nil {
		return fmt.Errorf("cell source must be a string or a list of strings: %w", err)
	}
	var lines []string
	for _, chunk := range chunks {
		lines = append(lines, splitLines(chunk)...)
	}
	*s = lines
	return nil
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}

// Decompose parses a notebook document and derives its metrics in one
// pass. Malformed input fails with ErrMalformedDocument; callers treat
// that as a per-file error, not a fatal one.
func Decompose(data []byte) (*Notebook, Metrics, error) {
	var raw rawDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, Metrics{}, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	if raw.Cells == nil {
		return nil, Metrics{}, fmt.Errorf("%w: missing cells list", ErrMalformedDocument)
	}

	nb := &Notebook{Cells: make([]Cell, 0, len(*raw.Cells))}
	for i, rc := range *raw.Cells {
		if rc.CellType == "" {
			return nil, Metrics{}, fmt.Errorf("%w: cell %d has no cell_type", ErrMalformedDocument, i)
		}
		if rc.Source == nil {
			return nil, Metrics{}, fmt.Errorf("%w: cell %d has no source", ErrMalformedDocument, i)
		}
		nb.Cells = append(nb.Cells, Cell{Type: rc.CellType, Source: []string(*rc.Source)})
	}
	return nb, nb.Metrics(), nil
}

// Metrics counts cells, non-blank code lines, function definitions, and
// the largest single code cell. A line opens a function iff its trimmed
// form starts with "def " followed by more text. This is a line-level
// heuristic: it does not check that the line parses, and it does not
// count lambdas.
func (n *Notebook) Metrics() Metrics {
	m := Metrics{CellCount: len(n.Cells)}
	for _, cell := range n.Cells {
		if !cell.IsCode() {
			continue
		}
		lines := 0
		for _, line := range cell.Source {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" {
				continue
			}
			lines++
			if strings.HasPrefix(trimmed, "def ") {
				m.FunctionDefCount++
			}
		}
		m.TotalCodeLines += lines
		if lines > m.MaxLinesInCell {
			m.MaxLinesInCell = lines
		}
	}
	return m
}

// Flatten exports the concatenation of all code cells in cell order,
// each cell's lines joined with newlines and cells separated by a blank
// line, so downstream analysis treats notebook code exactly like a
// script. A notebook without code cells flattens to the empty string.
func (n *Notebook) Flatten() string {
	var blocks []string
	for _, cell := range n.Cells {
		if cell.IsCode() {
			blocks = append(blocks, strings.Join(cell.Source, "\n"))
		}
	}
	if len(blocks) == 0 {
		return ""
	}
	return strings.Join(blocks, "\n\n") + "\n"
}

var (
	schemaOnce     sync.Once
	compiledSchema *gojsonschema.Schema
	schemaErr      error
)

func notebookSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		data, ok := assets.NotebookSchema()
		if !ok {
			schemaErr = errors.New("notebook schema asset missing")
			return
		}
		compiledSchema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
	})
	return compiledSchema, schemaErr
}

// ValidateStrict checks the document against the embedded notebook
// schema. Decompose alone stops at the first structural defect; strict
// validation reports every defect with its JSON path, which is what the
// notebooks command surfaces under --strict.
func ValidateStrict(data []byte) error {
	sch, err := notebookSchema()
	if err != nil {
		return err
	}
	result, err := sch.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	if result.Valid() {
		return nil
	}
	details := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		details = append(details, desc.String())
	}
	return fmt.Errorf("%w: %s", ErrMalformedDocument, strings.Join(details, "; "))
}
