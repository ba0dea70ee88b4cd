package convert

import (
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/guigolab/bammatrix/sam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const contacts = `# CRM chr1	1000
# CRM chr2	1500
r1#0/1	chr1	150	1	30	100	200	chr1	550	0	30	500	600
r2	chr1	160	1	30	100	200	chr1	560	0	30	500	600
r3#0/3	chr1	950	0	30	900	1000	chr2	250	1	30	200	300
r4	chr2	20	1	30	1	100	chr2	1500	1	30	1400	1500
`

func writeInput(t *testing.T, dir string, sides map[string]string) string {
	in := filepath.Join(dir, "contacts.tsv")
	require.NoError(t, ioutil.WriteFile(in, []byte(contacts), 0644))
	for name, ids := range sides {
		require.NoError(t, ioutil.WriteFile(in+"_"+name+".tsv", []byte(ids), 0644))
	}
	return in
}

func readBack(t *testing.T, path string) (map[string][]*sam.Record, sam.FilterSet) {
	r, err := sam.Open(path, nil, 1)
	require.NoError(t, err)
	defer r.Close()
	fs, err := sam.FiltersFromHeader(r.Header())
	require.NoError(t, err)
	recs := map[string][]*sam.Record{}
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		recs[rec.Name] = append(recs[rec.Name], sam.NewRecord(rec))
	}
	return recs, fs
}

func tag(t *testing.T, r *sam.Record, name string) string {
	aux, ok := r.Tag([]byte(name))
	require.True(t, ok, "tag %s of %s", name, r.Name)
	return fmt.Sprint(aux.Value())
}

func TestConvertLong(t *testing.T) {
	tmp, err := ioutil.TempDir("", "convert")
	require.NoError(t, err)
	defer os.RemoveAll(tmp)
	in := writeInput(t, tmp, map[string]string{"duplicated": "r2\n", "self_circle": "r4\n"})
	out := filepath.Join(tmp, "out.bam")

	require.NoError(t, Convert(in, out, Options{Format: Long}))
	_, err = os.Stat(out + ".bai")
	require.NoError(t, err)

	recs, fs := readBack(t, out)
	assert.Equal(t, sam.TADbit, fs)
	h, err := sam.ReadHeader(out)
	require.NoError(t, err)
	assert.Contains(t, h.Comments, tagComments[0])
	require.Len(t, recs, 4)
	for name, flags := range map[string]int{"r1#0/1": 0, "r2": 256, "r3#0/3": 1024, "r4": 1} {
		require.Len(t, recs[name], 2, name)
		for _, r := range recs[name] {
			assert.Equal(t, flags, int(r.Flags), name)
		}
	}

	first, second := recs["r3#0/3"][0], recs["r3#0/3"][1]
	require.Equal(t, "chr1", first.Chrom())
	assert.True(t, first.IsFirstCopy())
	assert.False(t, second.IsFirstCopy())
	assert.True(t, first.IsTrans())
	assert.Equal(t, 949, first.Pos)
	assert.Equal(t, 249, first.MatePos)
	assert.Equal(t, 3, first.Multiplicity())
	assert.Equal(t, "0", tag(t, first, "S1"))
	assert.Equal(t, "1", tag(t, first, "S2"))
	assert.Equal(t, "900", tag(t, first, "E1"))
	assert.Equal(t, "300", tag(t, first, "E4"))
	assert.Equal(t, "chr2", second.Chrom())
	assert.Equal(t, 249, second.Pos)
	assert.Equal(t, 949, second.MatePos)
	assert.Equal(t, "0", tag(t, second, "S1"))
	assert.Equal(t, "200", tag(t, second, "E3"))
	tg := second.AuxFields[1].Tag()
	assert.Equal(t, "S2", string(tg[:]))
	assert.Equal(t, 1, recs["r2"][0].Multiplicity())
}

func TestConvertShortValid(t *testing.T) {
	tmp, err := ioutil.TempDir("", "convert")
	require.NoError(t, err)
	defer os.RemoveAll(tmp)
	in := writeInput(t, tmp, map[string]string{"duplicated": "r2\n"})
	out := filepath.Join(tmp, "out.bam")

	require.NoError(t, Convert(in, out, Options{Format: Short, Valid: true}))
	recs, _ := readBack(t, out)
	assert.Equal(t, 0, int(recs["r2"][0].Flags))
	r := recs["r1#0/1"][0]
	assert.Len(t, r.AuxFields, 1)
	assert.Equal(t, 1, r.Cigar[0].Len())
	assert.Equal(t, 0, r.TempLen)
}

func TestConvertErrors(t *testing.T) {
	tmp, err := ioutil.TempDir("", "convert")
	require.NoError(t, err)
	defer os.RemoveAll(tmp)
	in := writeInput(t, tmp, map[string]string{"bogus": "r1\n"})
	assert.Error(t, Convert(in, filepath.Join(tmp, "out.bam"), Options{Format: Mid}))

	bad := filepath.Join(tmp, "bad.tsv")
	require.NoError(t, ioutil.WriteFile(bad, []byte("# CRM chr1 1000\nr1\tchr1\t10\n"), 0644))
	err = Convert(bad, filepath.Join(tmp, "bad.bam"), Options{Format: Short, Valid: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")

	_, err = ParseFormat("huge")
	assert.Error(t, err)
}

func TestIDScanner(t *testing.T) {
	s := NewIDScanner(strings.NewReader("a\n\n b \nc"))
	var ids []string
	for s.Next() {
		ids = append(ids, s.ID())
	}
	assert.NoError(t, s.Err())
	assert.Equal(t, []string{"a", "b", "c"}, ids)
	assert.Equal(t, "", s.ID())
}

func TestFilterFiles(t *testing.T) {
	tmp, err := ioutil.TempDir("", "convert")
	require.NoError(t, err)
	defer os.RemoveAll(tmp)
	in := writeInput(t, tmp, map[string]string{"duplicated": "", "too_short": ""})
	files, err := FilterFiles(in)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"duplicated": in + "_duplicated.tsv",
		"too-short":  in + "_too_short.tsv",
	}, files)
}
