package annotation

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/swdee/go-synthset/errors"
)

// Classes maps category names to YOLO class indexes.  The index of a class
// is its line number in classes.txt.
type Classes struct {
	names []string
	index map[string]int
}

// NewClasses returns the class list for names in the given order.  Blank
// names are skipped and repeated names keep their first index.
func NewClasses(names []string) *Classes {

	c := &Classes{
		index: make(map[string]int, len(names)),
	}

	for _, n := range names {

		n = strings.TrimSpace(n)

		if n == "" {
			continue
		}

		if _, ok := c.index[n]; ok {
			continue
		}

		c.index[n] = len(c.names)
		c.names = append(c.names, n)
	}

	return c
}

// SortedClasses returns the class list for names in lexical order
func SortedClasses(names []string) *Classes {

	sorted := append([]string(nil), names...)
	sort.Strings(sorted)

	return NewClasses(sorted)
}

// Index returns the class index of name
func (c *Classes) Index(name string) (int, bool) {
	i, ok := c.index[name]
	return i, ok
}

// Names returns the class names in index order
func (c *Classes) Names() []string {
	return append([]string(nil), c.names...)
}

// Len returns the number of classes
func (c *Classes) Len() int {
	return len(c.names)
}

// WriteTo writes the classes one per line
func (c *Classes) WriteTo(w io.Writer) (int64, error) {

	var total int64

	for _, n := range c.names {
		cnt, err := fmt.Fprintln(w, n)
		total += int64(cnt)

		if err != nil {
			return total, errors.Wrap(errors.ErrCodeWriteFailed, err, "error writing classes")
		}
	}

	return total, nil
}

// WriteClasses writes the class list to file
func WriteClasses(file string, c *Classes) error {

	f, err := os.Create(file)

	if err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, err, "error creating file %s", file)
	}

	if _, err := c.WriteTo(f); err != nil {
		f.Close()
		return err
	}

	if err := f.Close(); err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, err, "error closing file %s", file)
	}

	return nil
}

// LoadClasses reads a class list written by WriteClasses.  It should contain
// one class per line.
func LoadClasses(file string) (*Classes, error) {

	f, err := os.Open(file)

	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeUnreadableInput, err, "error opening file %s", file)
	}

	defer f.Close()

	return ReadClasses(f)
}

// ReadClasses reads one class per line from r
func ReadClasses(r io.Reader) (*Classes, error) {

	scanner := bufio.NewScanner(r)

	var names []string

	for scanner.Scan() {
		names = append(names, strings.TrimSpace(scanner.Text()))
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeUnreadableInput, err, "error reading classes")
	}

	return NewClasses(names), nil
}
