package catalog

import (
	"encoding/gob"
	"fmt"
	"log"
	"math"
	"os"
	"strings"
	"sync"
)

// UnknownName is the display name used for probes that match no enrolled face.
const UnknownName = "Unknown"

// Label identifies the person behind an enrolled embedding. It replaces the
// old "<id>_<name>" string key; String() still renders that form for display
// and for the dataset directory convention.
type Label struct {
	IdentityID  string
	DisplayName string
}

// String renders the label in the <id>_<name> dataset convention.
func (l Label) String() string {
	return l.IdentityID + "_" + l.DisplayName
}

// ParseDirName parses a dataset directory name of the form "<id>_<name>"
// into a Label. Names may themselves contain underscores; only the first
// separator splits.
func ParseDirName(dirName string) (Label, error) {
	id, name, found := strings.Cut(dirName, "_")
	if !found || id == "" {
		return Label{}, fmt.Errorf("directory name %q is not in <id>_<name> form", dirName)
	}
	return Label{IdentityID: id, DisplayName: name}, nil
}

// fileFormat is the serialized shape of the catalog on disk.
type fileFormat struct {
	Vectors [][]float32
	Labels  []Label
}

// Catalog holds the loaded set of known face embeddings and their labels.
// Reads happen on the detection loop while the training job may replace the
// whole set, so access is guarded.
type Catalog struct {
	path      string
	tolerance float64

	mu      sync.RWMutex
	vectors [][]float32
	labels  []Label
}

// New creates a catalog backed by the given file. Call Load before matching.
func New(path string, tolerance float64) *Catalog {
	return &Catalog{path: path, tolerance: tolerance}
}

// Load reads the serialized catalog from disk. A missing file is not an
// error: the catalog comes up empty and every probe reports Unknown.
func (c *Catalog) Load() error {
	f, err := os.Open(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("catalog: no encodings file at %s, starting empty", c.path)
			c.replace(nil, nil)
			return nil
		}
		return fmt.Errorf("failed to open encodings file %s: %w", c.path, err)
	}
	defer f.Close()

	var data fileFormat
	if err := gob.NewDecoder(f).Decode(&data); err != nil {
		return fmt.Errorf("failed to decode encodings file %s: %w", c.path, err)
	}
	if len(data.Vectors) != len(data.Labels) {
		return fmt.Errorf("encodings file %s is inconsistent: %d vectors, %d labels", c.path, len(data.Vectors), len(data.Labels))
	}

	c.replace(data.Vectors, data.Labels)
	log.Printf("catalog: loaded %d encodings from %s", len(data.Vectors), c.path)
	return nil
}

// Reload re-reads the backing file, typically after an enrollment run.
func (c *Catalog) Reload() error {
	return c.Load()
}

// Save writes the given encoding set wholesale, replacing both the file and
// the in-memory state.
func (c *Catalog) Save(vectors [][]float32, labels []Label) error {
	if len(vectors) != len(labels) {
		return fmt.Errorf("cannot save catalog: %d vectors, %d labels", len(vectors), len(labels))
	}

	f, err := os.Create(c.path)
	if err != nil {
		return fmt.Errorf("failed to create encodings file %s: %w", c.path, err)
	}
	defer f.Close()

	if err := gob.NewEncoder(f).Encode(fileFormat{Vectors: vectors, Labels: labels}); err != nil {
		return fmt.Errorf("failed to encode catalog to %s: %w", c.path, err)
	}

	c.replace(vectors, labels)
	log.Printf("catalog: saved %d encodings to %s", len(vectors), c.path)
	return nil
}

// Match compares the probe against all known encodings and returns the label
// of the FIRST encoding within tolerance, in insertion order. This is not a
// nearest-overall search; callers depend on the first-match behavior.
func (c *Catalog) Match(probe []float32) (Label, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for i, known := range c.vectors {
		if euclideanDistance(known, probe) <= c.tolerance {
			return c.labels[i], true
		}
	}
	return Label{DisplayName: UnknownName}, false
}

// Size returns the number of loaded encodings.
func (c *Catalog) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.vectors)
}

func (c *Catalog) replace(vectors [][]float32, labels []Label) {
	c.mu.Lock()
	c.vectors = vectors
	c.labels = labels
	c.mu.Unlock()
}

func euclideanDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.Inf(1)
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
