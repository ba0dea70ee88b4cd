package sam

import (
	"io"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"
)

// Iterator yields the records of one reference whose 0-based start lies in
// [Beg, End). Indexed iterators read only the BGZF chunks of the range;
// sequential ones read the whole file.
type Iterator struct {
	it       *bam.Iterator
	br       *bam.Reader
	ref      *sam.Reference
	Beg, End int
	Reads    int
	rec      *Record
	err      error
}

func newIterator(br *bam.Reader, ref *sam.Reference, beg, end int) *Iterator {
	return &Iterator{br: br, ref: ref, Beg: beg, End: end}
}

func newSeqIterator(br *bam.Reader, ref *sam.Reference, beg, end int) *Iterator {
	return newIterator(br, ref, beg, end)
}

func newRefChunkIterator(br *bam.Reader, data *RefChunk, beg, end int) (*Iterator, error) {
	if len(data.Chunks) == 0 {
		return newIterator(nil, data.Ref, beg, end), nil
	}
	it, err := bam.NewIterator(br, data.Chunks)
	if err != nil {
		return nil, err
	}
	return &Iterator{it: it, ref: data.Ref, Beg: beg, End: end}, nil
}

func (i *Iterator) next() (*sam.Record, bool) {
	if i.it != nil {
		if !i.it.Next() {
			i.err = i.it.Error()
			return nil, false
		}
		return i.it.Record(), true
	}
	if i.br == nil {
		return nil, false
	}
	r, err := i.br.Read()
	if err != nil {
		if err != io.EOF {
			i.err = err
		}
		return nil, false
	}
	return r, true
}

// Next advances to the next record in range.
func (i *Iterator) Next() bool {
	if i.err != nil {
		return false
	}
	for {
		r, ok := i.next()
		if !ok {
			return false
		}
		if r.Ref == nil || r.Ref.ID() != i.ref.ID() || r.Pos < i.Beg || r.Pos >= i.End {
			continue
		}
		i.Reads++
		i.rec = NewRecord(r)
		return true
	}
}

// Record returns the current record.
func (i *Iterator) Record() *Record {
	return i.rec
}

// Error returns the first non-EOF error encountered.
func (i *Iterator) Error() error {
	return i.err
}

// Close releases the underlying BAM iterator, if any.
func (i *Iterator) Close() error {
	if i.it != nil {
		return i.it.Close()
	}
	return nil
}
