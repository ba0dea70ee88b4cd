package scan

import (
	"context"
	"errors"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	hts "github.com/biogo/hts/sam"
	"github.com/guigolab/bammatrix/artifact"
	"github.com/guigolab/bammatrix/contact"
	"github.com/guigolab/bammatrix/genome"
	"github.com/guigolab/bammatrix/plan"
	"github.com/guigolab/bammatrix/sam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pairEnd struct {
	chrom string
	pos   int
}

type testContact struct {
	a, b  pairEnd
	flags int
}

// writeBAM writes each contact as two records, one per read-end, the way
// hic-BAM files store them.
func writeBAM(t *testing.T, dir string, contacts []testContact) string {
	var refs []*hts.Reference
	for _, r := range []genome.Reference{{Name: "chr1", Len: 1000}, {Name: "chr2", Len: 1500}} {
		ref, err := hts.NewReference(r.Name, "", "", r.Len, nil, nil)
		require.NoError(t, err)
		refs = append(refs, ref)
	}
	h, err := hts.NewHeader(nil, refs)
	require.NoError(t, err)
	byName := map[string]*hts.Reference{}
	for _, r := range h.Refs() {
		byName[r.Name()] = r
	}
	var recs []*hts.Record
	for n, c := range contacts {
		for k, ends := range [][2]pairEnd{{c.a, c.b}, {c.b, c.a}} {
			op := hts.CigarPadded
			if k == 1 {
				op = hts.CigarSoftClipped
			}
			recs = append(recs, sam.NewContact(
				"r"+string(rune('a'+n)),
				byName[ends[0].chrom], byName[ends[1].chrom],
				ends[0].pos-1, ends[1].pos-1, 0,
				[]hts.CigarOp{hts.NewCigarOp(op, 1)}, nil, c.flags))
		}
	}
	path := filepath.Join(dir, "test.bam")
	require.NoError(t, sam.BAMIndexer{Workers: 1}.SortAndIndex(h, recs, path))
	return path
}

var testContacts = []testContact{
	{pairEnd{"chr1", 150}, pairEnd{"chr1", 550}, 0},
	{pairEnd{"chr1", 950}, pairEnd{"chr2", 250}, 1024},
	{pairEnd{"chr1", 160}, pairEnd{"chr1", 560}, 512},
	{pairEnd{"chr1", 1000}, pairEnd{"chr1", 100}, 0},
	{pairEnd{"chr2", 1500}, pairEnd{"chr2", 20}, 0},
}

func setup(t *testing.T, contacts []testContact, region string) (string, *genome.Index, *genome.Window, []plan.Chunk) {
	tmp, err := ioutil.TempDir("", "scan")
	require.NoError(t, err)
	path := writeBAM(t, tmp, contacts)
	h, err := sam.ReadHeader(path)
	require.NoError(t, err)
	idx, err := genome.IndexFromHeader(h, 100)
	require.NoError(t, err)
	var req genome.Request
	if region != "" {
		req.Region1, err = genome.ParseRegion(region)
		require.NoError(t, err)
	}
	w, err := genome.NewWindow(idx, req)
	require.NoError(t, err)
	chunks, err := plan.Plan(idx, w)
	require.NoError(t, err)
	return path, idx, w, chunks
}

func collect(t *testing.T, store *artifact.Store, chunks []plan.Chunk) contact.Counts {
	all := contact.Counts{}
	for _, c := range chunks {
		ts, err := store.Read(c.String())
		require.NoError(t, err, c.String())
		for _, tr := range ts {
			all[contact.Pair{I: tr.I, J: tr.J}] += tr.Count
		}
	}
	return all
}

func TestScan(t *testing.T) {
	path, _, w, chunks := setup(t, testContacts, "chr1")
	defer os.RemoveAll(filepath.Dir(path))

	bai, err := sam.ReadIndex(path)
	require.NoError(t, err)

	for _, s := range []struct {
		half     bool
		indexed  bool
		workers  int
		expected contact.Counts
	}{
		{false, true, 1, contact.Counts{{I: 1, J: 5}: 1, {I: 5, J: 1}: 1, {I: 10, J: 1}: 1, {I: 1, J: 10}: 1}},
		{false, false, 4, contact.Counts{{I: 1, J: 5}: 1, {I: 5, J: 1}: 1, {I: 10, J: 1}: 1, {I: 1, J: 10}: 1}},
		{true, true, 4, contact.Counts{{I: 1, J: 5}: 1, {I: 1, J: 10}: 1}},
	} {
		err := artifact.WithStore(filepath.Dir(path), func(store *artifact.Store) error {
			sc := &Scanner{
				Path:       path,
				Resolution: 100,
				Exclude:    512,
				Half:       s.half,
				Rows:       w.Rows,
				Cols:       w.Cols,
				Store:      store,
			}
			if s.indexed {
				sc.Index = bai
			}
			ex := &Executor{Workers: s.workers}
			failed := ex.Run(context.Background(), sc, chunks)
			assert.Len(t, failed, 0)
			assert.Equal(t, s.expected, collect(t, store, chunks), "half=%v indexed=%v", s.half, s.indexed)
			return nil
		})
		require.NoError(t, err)
	}
}

func TestScanFull(t *testing.T) {
	path, idx, w, chunks := setup(t, testContacts, "")
	defer os.RemoveAll(filepath.Dir(path))
	sec2, _ := idx.Section("chr2")

	var results []contact.Counts
	for _, workers := range []int{1, 3} {
		err := artifact.WithStore("", func(store *artifact.Store) error {
			sc := &Scanner{Path: path, Resolution: 100, Rows: w.Rows, Cols: w.Cols, Store: store}
			failed := (&Executor{Workers: workers}).Run(context.Background(), sc, chunks)
			assert.Len(t, failed, 0)
			results = append(results, collect(t, store, chunks))
			return nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, results[0], results[1])
	all := results[0]
	assert.Equal(t, 10, all.Total())
	assert.Equal(t, 1, all[contact.Pair{I: 9, J: sec2.Start + 2}])
	assert.Equal(t, 1, all[contact.Pair{I: sec2.Start + 15, J: sec2.Start}])
}

func TestScanEmpty(t *testing.T) {
	path, _, w, chunks := setup(t, nil, "chr2")
	defer os.RemoveAll(filepath.Dir(path))

	err := artifact.WithStore("", func(store *artifact.Store) error {
		sc := &Scanner{Path: path, Resolution: 100, Rows: w.Rows, Cols: w.Cols, Store: store}
		failed := (&Executor{Workers: 2}).Run(context.Background(), sc, chunks)
		assert.Len(t, failed, 0)
		for _, c := range chunks {
			assert.True(t, store.Exists(c.String()))
		}
		assert.Len(t, collect(t, store, chunks), 0)
		return nil
	})
	require.NoError(t, err)
}

func TestScanCancelled(t *testing.T) {
	path, _, w, chunks := setup(t, testContacts, "chr1")
	defer os.RemoveAll(filepath.Dir(path))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := artifact.WithStore("", func(store *artifact.Store) error {
		sc := &Scanner{Path: path, Resolution: 100, Rows: w.Rows, Cols: w.Cols, Store: store}
		failed := (&Executor{Workers: 1}).Run(ctx, sc, chunks)
		assert.Len(t, failed, len(chunks))
		for _, f := range failed {
			assert.True(t, errors.Is(f, context.Canceled))
			assert.False(t, store.Exists(f.Chunk.String()))
		}
		return nil
	})
	require.NoError(t, err)
}

type flakyScanner struct {
	mu      sync.Mutex
	scanned []string
}

func (f *flakyScanner) Scan(ctx context.Context, c plan.Chunk) error {
	switch c.Ref {
	case "bad":
		return errors.New("corrupt block")
	case "worse":
		panic("index out of range")
	}
	f.mu.Lock()
	f.scanned = append(f.scanned, c.String())
	f.mu.Unlock()
	return nil
}

type countingProgress struct {
	total, last int
	finished    bool
}

func (p *countingProgress) Start(total int) { p.total = total }
func (p *countingProgress) Update(done int) { p.last = done }
func (p *countingProgress) Finish(done int) { p.last, p.finished = done, true }

func TestExecutorIsolatesFailures(t *testing.T) {
	chunks := []plan.Chunk{
		{Ref: "chr1", Start: 0, End: 99},
		{Ref: "bad", Start: 0, End: 99},
		{Ref: "chr1", Start: 100, End: 199},
		{Ref: "worse", Start: 0, End: 99},
		{Ref: "chr2", Start: 0, End: 100},
	}
	for _, workers := range []int{1, 3} {
		f := &flakyScanner{}
		p := &countingProgress{}
		failed := (&Executor{Workers: workers, Progress: p}).Run(context.Background(), f, chunks)
		require.Len(t, failed, 2, "workers=%d", workers)
		refs := map[string]bool{}
		for _, e := range failed {
			refs[e.Chunk.Ref] = true
		}
		assert.Equal(t, map[string]bool{"bad": true, "worse": true}, refs)
		assert.Len(t, f.scanned, 3)
		assert.Equal(t, 5, p.total)
		assert.Equal(t, 5, p.last)
		assert.True(t, p.finished)
	}
}

type hangingScanner struct{}

func (hangingScanner) Scan(ctx context.Context, c plan.Chunk) error {
	if c.Ref == "slow" {
		<-ctx.Done()
		return ctx.Err()
	}
	return nil
}

func TestExecutorTimeout(t *testing.T) {
	chunks := []plan.Chunk{{Ref: "chr1"}, {Ref: "slow"}, {Ref: "chr2"}}
	e := &Executor{Workers: 2, PollInterval: time.Millisecond, Timeout: 20 * time.Millisecond}
	failed := e.Run(context.Background(), hangingScanner{}, chunks)
	require.Len(t, failed, 1)
	assert.Equal(t, "slow", failed[0].Chunk.Ref)
	assert.True(t, errors.Is(failed[0], context.DeadlineExceeded))
}

func TestProgressSinks(t *testing.T) {
	lp := &LogProgress{}
	lp.Start(3)
	lp.Update(1)
	lp.Finish(2)
	assert.Equal(t, 2, lp.last)

	bp := &BarProgress{Output: ioutil.Discard}
	bp.Start(2)
	bp.Update(1)
	bp.Finish(2)

	empty := &BarProgress{Output: ioutil.Discard}
	empty.Start(0)
	empty.Finish(0)
}
