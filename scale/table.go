package scale

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/swdee/go-synthset/errors"
)

const (
	// NameColumn is the header of the category name column
	NameColumn = "Object name"
	// FactorColumn is the header of the scale factor column
	FactorColumn = "scale factor"
	// Identity is the factor used when a category has no usable entry
	Identity = 1.0
)

// Table maps normalized category names to a multiplicative scale factor.  A
// Table is immutable once built and safe for concurrent use.
type Table struct {
	// factors holds the scale factor for each normalized category name
	factors map[string]float64
	// names records the normalized names in the order they were first seen
	names []string
	// logger receives fallback diagnostics
	logger *log.Logger
}

// Normalize converts a category name to the form used as a table key,
// lowercase with spaces replaced by underscores.
func Normalize(name string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", "_"))
}

// NewTable builds a Table from ordered name/factor pairs.  Names are
// normalized and the first occurrence of a name wins.
func NewTable(entries []Entry, logger *log.Logger) *Table {

	if logger == nil {
		logger = log.Default()
	}

	t := &Table{
		factors: make(map[string]float64, len(entries)),
		names:   make([]string, 0, len(entries)),
		logger:  logger,
	}

	for _, e := range entries {
		key := Normalize(e.Name)

		if _, exists := t.factors[key]; exists {
			continue
		}

		t.factors[key] = e.Factor
		t.names = append(t.names, key)
	}

	return t
}

// Entry is a single row of the category table
type Entry struct {
	Name   string
	Factor float64
}

// LoadCSVFile reads the category table from the given CSV file.
func LoadCSVFile(file string, logger *log.Logger) (*Table, error) {

	f, err := os.Open(file)

	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeUnreadableInput, err, "error opening file %s", file)
	}

	defer f.Close()

	return LoadCSV(f, logger)
}

// LoadCSV reads a category table with a header row containing the columns
// "Object name" and "scale factor".  Other columns are ignored.  A factor cell
// that is not a number is kept as NaN so Resolve falls back to the identity
// factor for that category.
func LoadCSV(r io.Reader, logger *log.Logger) (*Table, error) {

	if logger == nil {
		logger = log.Default()
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()

	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidTable, err, "error reading header")
	}

	nameIdx, factorIdx := -1, -1

	for i, col := range header {
		switch strings.TrimSpace(strings.TrimPrefix(col, "\ufeff")) {
		case NameColumn:
			nameIdx = i
		case FactorColumn:
			factorIdx = i
		}
	}

	if nameIdx < 0 || factorIdx < 0 {
		return nil, errors.New(errors.ErrCodeInvalidTable,
			"header must contain %q and %q columns, got %v", NameColumn, FactorColumn, header)
	}

	var entries []Entry

	for line := 2; ; line++ {
		rec, err := reader.Read()

		if err == io.EOF {
			break
		}

		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidTable, err, "error reading line %d", line)
		}

		if nameIdx >= len(rec) {
			continue
		}

		name := strings.TrimSpace(rec[nameIdx])

		if name == "" {
			continue
		}

		factor := math.NaN()

		if factorIdx < len(rec) {
			if v, perr := strconv.ParseFloat(strings.TrimSpace(rec[factorIdx]), 64); perr == nil {
				factor = v
			} else {
				logger.Warn("unparsable scale factor", "category", name,
					"value", rec[factorIdx], "line", line)
			}
		}

		entries = append(entries, Entry{Name: name, Factor: factor})
	}

	return NewTable(entries, logger), nil
}

// Resolve returns the scale factor for the given category.  The lookup key is
// normalized first.  A missing or non-positive entry resolves to Identity and
// a warning is logged; Resolve never fails.
func (t *Table) Resolve(category string) float64 {

	key := Normalize(category)
	factor, ok := t.factors[key]

	if !ok {
		t.logger.Warn("no scale factor for category, using identity",
			"category", key, "factor", Identity)
		return Identity
	}

	// also rejects NaN
	if !(factor > 0) {
		t.logger.Warn("invalid scale factor for category, using identity",
			"category", key, "value", factor, "factor", Identity)
		return Identity
	}

	t.logger.Debug("scaling category", "category", key, "factor", factor)

	return factor
}

// Lookup returns the raw stored factor for a category and whether it exists
func (t *Table) Lookup(category string) (float64, bool) {
	f, ok := t.factors[Normalize(category)]
	return f, ok
}

// Names returns the normalized category names in table order
func (t *Table) Names() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// Len returns the number of categories in the table
func (t *Table) Len() int {
	return len(t.names)
}

// String returns a short description of the table
func (t *Table) String() string {
	return fmt.Sprintf("scale.Table(%d categories)", len(t.names))
}
