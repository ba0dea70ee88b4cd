// Package scan counts the contacts of planned chunks, in parallel, into
// per-chunk artifacts.
package scan

import (
	"context"
	"fmt"

	"github.com/biogo/hts/bam"
	"github.com/guigolab/bammatrix/artifact"
	"github.com/guigolab/bammatrix/contact"
	"github.com/guigolab/bammatrix/genome"
	"github.com/guigolab/bammatrix/plan"
	"github.com/guigolab/bammatrix/sam"
	log "github.com/sirupsen/logrus"
)

// records read between two cancellation checks
const checkEvery = 1 << 12

// ScanError reports the failure of a single chunk. The chunk artifact is
// absent but sibling chunks are unaffected.
type ScanError struct {
	Chunk plan.Chunk
	Err   error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan %s: %v", e.Chunk, e.Err)
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

// ChunkScanner scans one chunk.
type ChunkScanner interface {
	Scan(ctx context.Context, c plan.Chunk) error
}

// Scanner counts the contacts of a chunk of a hic-BAM file. It is safe for
// concurrent use: every call opens its own file handle.
type Scanner struct {
	Path string
	// Index is the shared BAI index, nil for sequential scans.
	Index      *bam.Index
	Resolution int
	// Exclude is the filter bitmask of records to skip.
	Exclude int
	// Half keeps the upper triangle only.
	Half       bool
	Rows, Cols genome.Lookup
	Store      *artifact.Store
}

// Count returns the contacts of c without persisting them.
func (s *Scanner) Count(ctx context.Context, c plan.Chunk) (contact.Counts, error) {
	r, err := sam.Open(s.Path, s.Index, 1)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	ref := r.Reference(c.Ref)
	if ref == nil {
		return nil, fmt.Errorf("reference %s not in %s", c.Ref, s.Path)
	}
	beg, end := c.QueryRange()
	it, err := r.Query(ref, beg, end)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	counts := contact.Counts{}
	n := 0
	for it.Next() {
		n++
		if n%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		rec := it.Record()
		if rec.IsFiltered(s.Exclude) || rec.MateRef == nil {
			continue
		}
		b1 := rec.Bin(s.Resolution)
		if !c.Owns(b1) {
			continue
		}
		i, ok := s.Rows[genome.Bin{Chrom: rec.Chrom(), Offset: b1}]
		if !ok {
			continue
		}
		j, ok := s.Cols[genome.Bin{Chrom: rec.MateChrom(), Offset: rec.MateBin(s.Resolution)}]
		if !ok {
			continue
		}
		counts.Add(i, j)
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Half {
		counts.Half()
	}
	log.WithFields(log.Fields{
		"Chunk":   c.String(),
		"Records": it.Reads,
		"Cells":   len(counts),
	}).Debug("Chunk scanned")
	return counts, nil
}

// Scan counts the contacts of c and writes them as the artifact of c. An
// artifact is written even when no record matches.
func (s *Scanner) Scan(ctx context.Context, c plan.Chunk) error {
	counts, err := s.Count(ctx, c)
	if err != nil {
		return &ScanError{c, err}
	}
	if err := s.Store.Write(c.String(), counts); err != nil {
		return &ScanError{c, err}
	}
	return nil
}
