package dataset

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/swdee/go-synthset/errors"
)

// ManifestFile is the name of the run manifest in the output directory
const ManifestFile = "manifest.jsonl"

// Entry is one line of the manifest, describing a single job
type Entry struct {
	RunID    string  `json:"run_id"`
	Seq      int64   `json:"seq"`
	Output   string  `json:"output,omitempty"`
	Label    string  `json:"label,omitempty"`
	Frame    string  `json:"frame"`
	Object   string  `json:"object"`
	Category string  `json:"category"`
	X        int     `json:"x"`
	Y        int     `json:"y"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Scale    float64 `json:"scale"`
	Box      []int   `json:"box,omitempty"`
	Visible  bool    `json:"visible"`
	Error    string  `json:"error,omitempty"`
}

// Manifest appends one JSON object per line to the run manifest.  It is
// safe for concurrent use.
type Manifest struct {
	runID uuid.UUID
	file  *os.File
	enc   *json.Encoder
	mu    sync.Mutex
}

// CreateManifest creates or truncates the manifest at path for a new run
func CreateManifest(path string) (*Manifest, error) {

	f, err := os.Create(path)

	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeWriteFailed, err, "error creating manifest %s", path)
	}

	return &Manifest{
		runID: uuid.New(),
		file:  f,
		enc:   json.NewEncoder(f),
	}, nil
}

// RunID returns the identifier stamped on every entry of this run
func (m *Manifest) RunID() string {
	return m.runID.String()
}

// Add writes e as the next line, filling in the run id
func (m *Manifest) Add(e Entry) error {

	e.RunID = m.runID.String()

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.enc.Encode(e); err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, err, "error writing manifest entry %d", e.Seq)
	}

	return nil
}

// Close flushes and closes the manifest file
func (m *Manifest) Close() error {

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.file.Close(); err != nil {
		return errors.Wrap(errors.ErrCodeWriteFailed, err, "error closing manifest")
	}

	return nil
}
