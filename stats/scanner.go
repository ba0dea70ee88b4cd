package stats

import (
	"context"
	"fmt"
	"sync"

	"github.com/biogo/hts/bam"
	"github.com/guigolab/bammatrix/genome"
	"github.com/guigolab/bammatrix/plan"
	"github.com/guigolab/bammatrix/sam"
	log "github.com/sirupsen/logrus"
)

// Scanner collects the statistics of the contacts whose first read-end lies
// in a chunk. It is safe for concurrent use.
type Scanner struct {
	Path       string
	Index      *bam.Index
	Resolution int
	Filters    sam.FilterSet
	Exclude    int
	Rows       genome.Lookup

	mu    sync.Mutex
	stats *ContactStats
}

// Scan collects the statistics of c and merges them into the totals.
func (s *Scanner) Scan(ctx context.Context, c plan.Chunk) error {
	r, err := sam.Open(s.Path, s.Index, 1)
	if err != nil {
		return err
	}
	defer r.Close()
	ref := r.Reference(c.Ref)
	if ref == nil {
		return fmt.Errorf("reference %s not in %s", c.Ref, s.Path)
	}
	beg, end := c.QueryRange()
	it, err := r.Query(ref, beg, end)
	if err != nil {
		return err
	}
	defer it.Close()

	cs := NewContactStats()
	for it.Next() {
		rec := it.Record()
		b := rec.Bin(s.Resolution)
		if !c.Owns(b) {
			continue
		}
		if _, ok := s.Rows[genome.Bin{Chrom: rec.Chrom(), Offset: b}]; !ok {
			continue
		}
		cs.Collect(rec, s.Filters, s.Exclude)
	}
	if err := it.Error(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"Chunk":    c.String(),
		"Contacts": cs.Contacts,
	}).Debug("Chunk stats collected")

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stats == nil {
		s.stats = NewContactStats()
	}
	s.stats.Update(cs)
	return nil
}

// Stats returns the totals collected so far.
func (s *Scanner) Stats() *ContactStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stats == nil {
		return NewContactStats()
	}
	return s.stats
}
