package stats

import (
	"bytes"
	"encoding/json"
	"testing"

	hts "github.com/biogo/hts/sam"
	"github.com/guigolab/bammatrix/sam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func record(t *testing.T, ref, mref *hts.Reference, flags int, op hts.CigarOpType, tc int) *sam.Record {
	aux, err := sam.NewAux(sam.NewTag("TC"), tc)
	require.NoError(t, err)
	return sam.NewRecord(sam.NewContact("r", ref, mref, 10, 20, 0, []hts.CigarOp{hts.NewCigarOp(op, 1)}, []hts.Aux{aux}, flags))
}

func TestCollect(t *testing.T) {
	chr1, err := hts.NewReference("chr1", "", "", 1000, nil, nil)
	require.NoError(t, err)
	chr2, err := hts.NewReference("chr2", "", "", 1000, nil, nil)
	require.NoError(t, err)
	_, err = hts.NewHeader(nil, []*hts.Reference{chr1, chr2})
	require.NoError(t, err)

	exclude := sam.MaskFromCodes(sam.DefaultExclude...)
	s := NewContactStats()
	s.Collect(record(t, chr1, chr1, 0, hts.CigarPadded, 1), sam.TADbit, exclude)
	s.Collect(record(t, chr1, chr1, 0, hts.CigarSoftClipped, 1), sam.TADbit, exclude)
	s.Collect(record(t, chr1, chr2, sam.Bit(11), hts.CigarPadded, 2), sam.TADbit, exclude)
	s.Collect(record(t, chr1, chr1, sam.Bit(9)|sam.Bit(1), hts.CigarPadded, 1), sam.TADbit, exclude)

	assert.Equal(t, 3, s.Contacts)
	assert.Equal(t, 2, s.Valid)
	assert.Equal(t, 1, s.Cis)
	assert.Equal(t, 1, s.Trans)
	assert.Equal(t, TagMap{1: 1, 9: 1, 11: 1}, s.Filtered)
	assert.Equal(t, TagMap{1: 2, 2: 1}, s.Multiplicity)

	other := NewContactStats()
	other.Update(s)
	other.Update(s)
	assert.Equal(t, 6, other.Contacts)
	assert.Equal(t, TagMap{1: 2, 9: 2, 11: 2}, other.Filtered)

	m := Calculate(s, sam.TADbit)
	assert.Equal(t, "0.666667", m.Valid.String())
	assert.Equal(t, "0.5", m.Trans.String())
	require.Len(t, m.Filters, 3)
	assert.Equal(t, "self-circle", m.Filters[0].Name)
	var buf bytes.Buffer
	require.NoError(t, m.Output(&buf))
	assert.Contains(t, buf.String(), "FRACTION_VALID\t0.666667\n")
	assert.Contains(t, buf.String(), "FRACTION_trans-chromosomic\t0.333333\n")

	assert.Equal(t, &Metrics{}, Calculate(NewContactStats(), sam.TADbit))
}

func TestTagMapJSON(t *testing.T) {
	tm := TagMap{10: 1, 2: 3}
	b, err := json.Marshal(tm)
	require.NoError(t, err)
	assert.Equal(t, `{"2":3,"10":1}`, string(b))

	var back TagMap
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, tm, back)
	assert.Equal(t, 4, back.Total())
	assert.Error(t, json.Unmarshal([]byte(`{"x":1}`), &back))

	var buf bytes.Buffer
	require.NoError(t, NewContactStats().OutputJSON(&buf))
	assert.Contains(t, buf.String(), `"filtered": {}`)
}
