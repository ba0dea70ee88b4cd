package sam

import (
	"fmt"
	"io"
	"os"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/bgzf/index"
	"github.com/biogo/hts/sam"
	log "github.com/sirupsen/logrus"
)

// Reader is a read-only handle on a BAM file. Every concurrent scan opens its
// own Reader; the BAI index may be shared between them.
type Reader struct {
	*bam.Reader
	FileName string
	Index    *bam.Index
	Refs     []*sam.Reference
	f        *os.File
}

// Open opens bamFile using rd decompression goroutines. idx may be nil, in
// which case queries fall back to a sequential pass over the file.
func Open(bamFile string, idx *bam.Index, rd int) (*Reader, error) {
	f, err := os.Open(bamFile)
	if err != nil {
		return nil, err
	}
	r, err := bam.NewReader(f, rd)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("reading %s: %v", bamFile, err)
	}
	return &Reader{
		Reader:   r,
		FileName: bamFile,
		Index:    idx,
		Refs:     r.Header().Refs(),
		f:        f,
	}, nil
}

// ReadHeader returns the SAM header of bamFile.
func ReadHeader(bamFile string) (*sam.Header, error) {
	r, err := Open(bamFile, nil, 1)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return r.Header(), nil
}

// ReadIndex loads the BAI index next to bamFile. It returns nil without error
// when there is none.
func ReadIndex(bamFile string) (*bam.Index, error) {
	baiFile := bamFile + ".bai"
	i, err := os.Open(baiFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer i.Close()
	log.Infof("Opening BAM index %s", baiFile)
	bai, err := bam.ReadIndex(i)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %v", baiFile, err)
	}
	return bai, nil
}

// Reference returns the reference named name, or nil.
func (r *Reader) Reference(name string) *sam.Reference {
	for _, ref := range r.Refs {
		if ref.Name() == name {
			return ref
		}
	}
	return nil
}

// Query returns an iterator over the records of ref starting within the
// 0-based half-open interval [beg, end).
func (r *Reader) Query(ref *sam.Reference, beg, end int) (*Iterator, error) {
	if r.Index == nil {
		return newSeqIterator(r.Reader, ref, beg, end), nil
	}
	chunks, err := r.Index.Chunks(ref, beg, end)
	if err != nil {
		if err != io.EOF && err != index.ErrInvalid && err != index.ErrNoReference {
			return nil, err
		}
		log.WithFields(log.Fields{
			"Reference": ref.Name(),
			"Start":     beg,
			"End":       end,
		}).Debug("No indexed data")
		return newIterator(nil, ref, beg, end), nil
	}
	if len(chunks) > 1 {
		log.Debugf("%v: %v chunks", ref.Name(), len(chunks))
	}
	return newRefChunkIterator(r.Reader, NewRefChunk(ref, chunks), beg, end)
}

// Close releases the BAM reader and its file.
func (r *Reader) Close() error {
	r.Reader.Close()
	return r.f.Close()
}
