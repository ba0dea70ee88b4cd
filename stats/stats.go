// Package stats collects contact statistics of hic-BAM files: how many
// contacts each filter flags and how many are left once excluded.
package stats

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/guigolab/bammatrix/sam"
)

type fraction float64

func (m fraction) String() string {
	return fmt.Sprintf("%.6g", float64(m))
}

func (m fraction) MarshalJSON() ([]byte, error) {
	v, err := strconv.ParseFloat(m.String(), 64)
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

// ContactStats counts contacts, once each, through their first copy.
type ContactStats struct {
	Contacts int `json:"contacts"`
	// Valid counts the contacts with no excluded filter bit set.
	Valid int `json:"valid"`
	Cis   int `json:"cis"`
	Trans int `json:"trans"`
	// Filtered counts contacts by filter code. A contact may carry
	// several codes.
	Filtered     TagMap `json:"filtered"`
	Multiplicity TagMap `json:"multiplicity"`
}

// NewContactStats returns empty statistics.
func NewContactStats() *ContactStats {
	return &ContactStats{
		Filtered:     TagMap{},
		Multiplicity: TagMap{},
	}
}

// Collect counts r if it is the first copy of its contact.
func (s *ContactStats) Collect(r *sam.Record, fs sam.FilterSet, exclude int) {
	if !r.IsFirstCopy() {
		return
	}
	s.Contacts++
	s.Multiplicity[r.Multiplicity()]++
	for _, code := range fs.Codes(int(r.Flags)) {
		s.Filtered[code]++
	}
	if r.IsFiltered(exclude) {
		return
	}
	s.Valid++
	if r.IsTrans() {
		s.Trans++
	} else {
		s.Cis++
	}
}

// Update adds the counts of other.
func (s *ContactStats) Update(other *ContactStats) {
	s.Contacts += other.Contacts
	s.Valid += other.Valid
	s.Cis += other.Cis
	s.Trans += other.Trans
	s.Filtered.Update(other.Filtered)
	s.Multiplicity.Update(other.Multiplicity)
}

// OutputJSON writes s as indented JSON.
func (s *ContactStats) OutputJSON(w io.Writer) error {
	b, err := json.MarshalIndent(s, "", "\t")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = w.Write(b)
	return err
}
