package sam

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/biogo/hts/sam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMask(t *testing.T) {
	custom := FilterSet{{2, "duplicated"}, {4, "self-circle"}}
	for i, s := range []struct {
		set      FilterSet
		reasons  []string
		expected int
	}{
		{custom, []string{"duplicated", "self-circle"}, 10},
		{custom, []string{"self-circle", "duplicated", "duplicated"}, 10},
		{TADbit, []string{"self-circle", "dangling end"}, 3},
		{TADbit, []string{"11"}, 1024},
		{TADbit, []string{"1", "2", "3", "4", "6", "7", "8", "9", "10"}, 1007},
		{TADbit, nil, 0},
	} {
		mask, err := s.set.Mask(s.reasons...)
		if err != nil {
			t.Errorf("(Mask) [%d] unexpected error: %v", i, err)
			continue
		}
		if mask != s.expected {
			t.Errorf("(Mask) [%d] expected %v, got %v", i, s.expected, mask)
		}
	}
	if _, err := TADbit.Mask("not-a-filter"); err == nil {
		t.Error("(Mask) expected error for unknown filter")
	}
}

func TestMaskFromCodes(t *testing.T) {
	assert.Equal(t, 1007, MaskFromCodes(DefaultExclude...))
	assert.Equal(t, 10, MaskFromCodes(2, 4))
	assert.Equal(t, []int{1, 3, 11}, TADbit.Codes(1+4+1024))
}

func TestFiltersFromHeader(t *testing.T) {
	h, err := sam.NewHeader(nil, nil)
	require.NoError(t, err)
	h.Comments = append(TADbit.Comments(), "TC:i Number of contacts")
	fs, err := FiltersFromHeader(h)
	require.NoError(t, err)
	assert.Equal(t, TADbit, fs)

	h.Comments = []string{"filter:odd flag:3"}
	_, err = FiltersFromHeader(h)
	assert.Error(t, err)

	h.Comments = nil
	fs, err = FiltersFromHeader(h)
	require.NoError(t, err)
	assert.Len(t, fs, 0)
}

func TestFiltersFromWrittenHeader(t *testing.T) {
	tmp, err := ioutil.TempDir("", "sam")
	require.NoError(t, err)
	defer os.RemoveAll(tmp)

	custom := FilterSet{{1, "self-circle"}, {3, "too-short"}, {6, "duplicated"}}
	for _, fs := range []FilterSet{TADbit, custom} {
		h := newTestHeader(t)
		h.Comments = append(fs.Comments(), "TC:i Number of contacts")
		refs := h.Refs()
		recs := []*sam.Record{newContact(t, "c1", 0, refs[0], 10, refs[1], 20)}
		path := filepath.Join(tmp, "filters.bam")
		require.NoError(t, BAMIndexer{Workers: 1}.SortAndIndex(h, recs, path))

		back, err := ReadHeader(path)
		require.NoError(t, err)
		got, err := FiltersFromHeader(back)
		require.NoError(t, err)
		assert.Equal(t, fs, got)
	}
}

func newTestHeader(t *testing.T) *sam.Header {
	chr1, err := sam.NewReference("chr1", "", "", 1000, nil, nil)
	require.NoError(t, err)
	chr2, err := sam.NewReference("chr2", "", "", 1500, nil, nil)
	require.NoError(t, err)
	h, err := sam.NewHeader(nil, []*sam.Reference{chr1, chr2})
	require.NoError(t, err)
	return h
}

func newContact(t *testing.T, name string, flags sam.Flags, ref *sam.Reference, pos int, mRef *sam.Reference, mPos int) *sam.Record {
	cigar := []sam.CigarOp{sam.NewCigarOp(sam.CigarPadded, 1)}
	return NewContact(name, ref, mRef, pos, mPos, 0, cigar, nil, int(flags))
}

func TestQuery(t *testing.T) {
	tmp, err := ioutil.TempDir("", "sam")
	require.NoError(t, err)
	defer os.RemoveAll(tmp)

	h := newTestHeader(t)
	refs := h.Refs()
	recs := []*sam.Record{
		newContact(t, "c3", 0, refs[1], 20, refs[0], 950),
		newContact(t, "c1", 0, refs[0], 10, refs[0], 500),
		newContact(t, "c1", 0, refs[0], 500, refs[0], 10),
		newContact(t, "c2", 256, refs[0], 950, refs[1], 20),
	}
	path := filepath.Join(tmp, "test.bam")
	require.NoError(t, BAMIndexer{Workers: 1}.SortAndIndex(h, recs, path))

	idx, err := ReadIndex(path)
	require.NoError(t, err)
	require.NotNil(t, idx)

	for _, indexed := range []bool{true, false} {
		bai := idx
		if !indexed {
			bai = nil
		}
		r, err := Open(path, bai, 1)
		require.NoError(t, err)
		it, err := r.Query(r.Reference("chr1"), 0, 600)
		require.NoError(t, err)
		var names []string
		for it.Next() {
			rec := it.Record()
			assert.Equal(t, "chr1", rec.Chrom())
			names = append(names, rec.Name)
		}
		require.NoError(t, it.Error())
		assert.Equal(t, []string{"c1", "c1"}, names, "indexed=%v", indexed)
		require.NoError(t, it.Close())
		require.NoError(t, r.Close())
	}

	none, err := ReadIndex(filepath.Join(tmp, "absent.bam"))
	assert.NoError(t, err)
	assert.Nil(t, none)
}

func TestRecord(t *testing.T) {
	h := newTestHeader(t)
	refs := h.Refs()
	r := NewRecord(newContact(t, "c#0/3", 1024+8, refs[0], 199, refs[1], 99))
	aux, err := NewAux(NewTag("TC"), 3)
	require.NoError(t, err)
	r.AuxFields = append(r.AuxFields, aux)

	assert.Equal(t, "chr1", r.Chrom())
	assert.Equal(t, "chr2", r.MateChrom())
	assert.Equal(t, 2, r.Bin(100))
	assert.Equal(t, 1, r.MateBin(100))
	assert.True(t, r.IsTrans())
	assert.True(t, r.IsFiltered(8))
	assert.False(t, r.IsFiltered(1|2|4))
	assert.True(t, r.IsFirstCopy())
	assert.Equal(t, 3, r.Multiplicity())
}
