// Package bias loads per-bin bias and distance-decay tables and re-indexes
// them to the coordinates of a matrix window.
package bias

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/guigolab/bammatrix/genome"
	"github.com/guigolab/bammatrix/utils"
	log "github.com/sirupsen/logrus"
)

// BinSet is a set of bin indices.
type BinSet map[int]bool

// UnmarshalJSON accepts either a list of indices or an object keyed by them.
func (b *BinSet) UnmarshalJSON(data []byte) error {
	set := BinSet{}
	var list []int
	if err := json.Unmarshal(data, &list); err == nil {
		for _, i := range list {
			set[i] = true
		}
		*b = set
		return nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("badcol: expected a list or an object: %v", err)
	}
	for k := range obj {
		i, err := strconv.Atoi(k)
		if err != nil {
			return fmt.Errorf("badcol: invalid bin %q", k)
		}
		set[i] = true
	}
	*b = set
	return nil
}

// MarshalJSON writes the set as a sorted list.
func (b BinSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.Sorted())
}

// Sorted returns the indices in increasing order.
func (b BinSet) Sorted() []int {
	s := make([]int, 0, len(b))
	for i := range b {
		s = append(s, i)
	}
	sort.Ints(s)
	return s
}

// Table is a bias and decay artifact. Biases and BadCol are keyed by global
// bin index, Decay by distance in bins.
type Table struct {
	Biases map[int]float64 `json:"biases"`
	BadCol BinSet          `json:"badcol"`
	Decay  map[int]float64 `json:"decay"`
}

// Read decodes a JSON table.
func Read(r io.Reader) (*Table, error) {
	var t Table
	if err := json.NewDecoder(r).Decode(&t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Load reads a table from path. Files ending in .gob are gob encoded, anything
// else is JSON, possibly gzip or bzip2 compressed.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var t *Table
	if filepath.Ext(path) == ".gob" {
		t = new(Table)
		err = gob.NewDecoder(f).Decode(t)
	} else {
		var r io.Reader
		r, err = utils.BuffReader(f)
		if err == nil {
			t, err = Read(r)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("loading biases from %s: %v", path, err)
	}
	log.WithFields(log.Fields{
		"File":   path,
		"Biases": len(t.Biases),
		"Bads":   len(t.BadCol),
		"Decay":  len(t.Decay),
	}).Info("Bias table loaded")
	return t, nil
}

// Save writes t to path, as gob when path ends in .gob and JSON otherwise.
func (t *Table) Save(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if filepath.Ext(path) == ".gob" {
		err = gob.NewEncoder(f).Encode(t)
	} else {
		err = json.NewEncoder(f).Encode(t)
	}
	if err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Resolved holds the tables of a window: biases and bad bins re-indexed to
// local row and column coordinates, decay left in global distance units.
type Resolved struct {
	Bias1, Bias2 map[int]float64
	Bads1, Bads2 BinSet
	Decay        map[int]float64
}

func shift(m map[int]float64, start, end int) map[int]float64 {
	out := make(map[int]float64)
	for k, v := range m {
		if start <= k && k <= end {
			out[k-start] = v
		}
	}
	return out
}

func shiftSet(s BinSet, start, end int) BinSet {
	out := BinSet{}
	for k := range s {
		if start <= k && k <= end {
			out[k-start] = true
		}
	}
	return out
}

// Resolve re-indexes t to coords. Rows keep keys in [Start1, End1] shifted by
// Start1, columns keys in [Start2, End2] shifted by Start2. A symmetric window
// shares the row tables with the columns. A nil table resolves to empty
// tables.
func Resolve(t *Table, coords genome.BinCoords) *Resolved {
	if t == nil {
		t = &Table{}
	}
	r := &Resolved{
		Bias1: shift(t.Biases, coords.Start1, coords.End1),
		Bads1: shiftSet(t.BadCol, coords.Start1, coords.End1),
		Decay: t.Decay,
	}
	if r.Decay == nil {
		r.Decay = map[int]float64{}
	}
	if coords.Start1 == coords.Start2 && coords.End1 == coords.End2 {
		r.Bias2, r.Bads2 = r.Bias1, r.Bads1
		return r
	}
	r.Bias2 = shift(t.Biases, coords.Start2, coords.End2)
	r.Bads2 = shiftSet(t.BadCol, coords.Start2, coords.End2)
	return r
}
