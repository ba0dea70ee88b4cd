package sam

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"
	log "github.com/sirupsen/logrus"
)

// SortAndIndexer writes records as a coordinate-sorted BAM file at path
// together with its BAI index.
type SortAndIndexer interface {
	SortAndIndex(h *sam.Header, recs []*sam.Record, path string) error
}

// BAMIndexer sorts records in memory and builds the index in a second pass
// over the written file.
type BAMIndexer struct {
	// Workers is the number of compression goroutines, 0 meaning GOMAXPROCS.
	Workers int
}

// SortAndIndex implements SortAndIndexer.
func (b BAMIndexer) SortAndIndex(h *sam.Header, recs []*sam.Record, path string) error {
	sortRecords(recs)
	h.SortOrder = sam.Coordinate
	if err := b.write(h, recs, path); err != nil {
		return err
	}
	return b.index(path)
}

func refID(r *sam.Record) int {
	id := r.Ref.ID()
	if id < 0 {
		return int(^uint(0) >> 1)
	}
	return id
}

func sortRecords(recs []*sam.Record) {
	sort.SliceStable(recs, func(i, j int) bool {
		ri, rj := refID(recs[i]), refID(recs[j])
		if ri != rj {
			return ri < rj
		}
		return recs[i].Pos < recs[j].Pos
	})
}

func (b BAMIndexer) write(h *sam.Header, recs []*sam.Record, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w, err := bam.NewWriter(f, h, b.Workers)
	if err != nil {
		f.Close()
		return err
	}
	for _, r := range recs {
		if err := w.Write(r); err != nil {
			w.Close()
			f.Close()
			return fmt.Errorf("writing %s: %v", r.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		f.Close()
		return err
	}
	log.WithFields(log.Fields{
		"File":    path,
		"Records": len(recs),
	}).Debug("BAM written")
	return f.Close()
}

func (b BAMIndexer) index(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	br, err := bam.NewReader(f, b.Workers)
	if err != nil {
		return err
	}
	defer br.Close()
	var idx bam.Index
	for {
		r, err := br.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		if err := idx.Add(r, br.LastChunk()); err != nil {
			return fmt.Errorf("indexing %s: %v", r.Name, err)
		}
	}
	bai, err := os.Create(path + ".bai")
	if err != nil {
		return err
	}
	if err := bam.WriteIndex(bai, &idx); err != nil {
		bai.Close()
		return err
	}
	return bai.Close()
}
