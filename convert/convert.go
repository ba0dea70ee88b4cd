// Package convert turns 2D contact maps into hic-BAM files: two records per
// contact, one starting with each read-end, the flag field holding the
// filter bitmask.
package convert

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	hts "github.com/biogo/hts/sam"
	"github.com/guigolab/bammatrix/sam"
	"github.com/guigolab/bammatrix/utils"
	log "github.com/sirupsen/logrus"
)

// Format is the layout of the contact map lines.
type Format int

const (
	// Short keeps positions only.
	Short Format = iota
	// Mid adds strands and mapped lengths.
	Mid
	// Long adds the restriction enzyme sites.
	Long
)

var formatNames = []string{"short", "mid", "long"}

func (f Format) String() string {
	return formatNames[f]
}

// ParseFormat returns the format named s.
func ParseFormat(s string) (Format, error) {
	for i, n := range formatNames {
		if n == s {
			return Format(i), nil
		}
	}
	return 0, fmt.Errorf("unknown format %q", s)
}

func (f Format) fields() int {
	switch f {
	case Mid:
		return 12
	case Long:
		return 13
	}
	return 10
}

var tagComments = []string{
	"TC:i Number of time a sequenced fragment is involved in a pairwise contact",
	"Each read is duplicated: once starting with the left read-end, once with the right read-end",
	" the order of RE sites and strands changes consequently depending on which read-end comes first (when right end is first: E3 E4 E1 E2)",
	" CIGAR code contains the length of the 1st read-end mapped and 'P' or 'S' if the copy is the first or the second",
	"E1:i Position of the left RE site of 1st read-end",
	"E2:i Position of the right RE site of 1st read-end",
	"E3:i Position of the left RE site of 2nd read-end",
	"E4:i Position of the right RE site of 2nd read-end",
	"S1:i Strand of the 1st read-end (1: positive, 0: negative)",
	"S2:i Strand of the 2nd read-end (1: positive, 0: negative)",
}

// Options configure a conversion.
type Options struct {
	Format Format
	// Valid marks the input as already filtered: no side file is read.
	Valid bool
	// Filters is the enumeration written to the header, TADbit when nil.
	Filters sam.FilterSet
	Indexer sam.SortAndIndexer
}

// converter holds the state of one conversion.
type converter struct {
	opts   Options
	refs   map[string]*hts.Reference
	trans  int
	sides  []*sideFile
	line   int
	header *hts.Header
}

// readHeader reads the "# CRM <name> <length>" lines at the top of a contact
// map and leaves sc on the first contact line.
func readHeader(sc *bufio.Scanner) ([]*hts.Reference, string, error) {
	var refs []*hts.Reference
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "#") {
			return refs, line, nil
		}
		fields := strings.Fields(line)
		if len(fields) != 4 || fields[1] != "CRM" {
			continue
		}
		l, err := strconv.Atoi(fields[3])
		if err != nil {
			return nil, "", fmt.Errorf("invalid length in header line %q", line)
		}
		ref, err := hts.NewReference(fields[2], "", "", l, nil, nil)
		if err != nil {
			return nil, "", err
		}
		refs = append(refs, ref)
	}
	return refs, "", sc.Err()
}

func (c *converter) filterFlag(qname string) (int, error) {
	flag := 0
	for _, s := range c.sides {
		if s.more && s.ids.ID() == qname {
			flag += s.bit
			s.more = s.ids.Next()
			if !s.more && s.ids.Err() != nil {
				return 0, fmt.Errorf("reading filter %s: %v", s.name, s.ids.Err())
			}
		}
	}
	return flag, nil
}

func multiplicity(qname string) int {
	parts := strings.Split(qname, "#")
	if len(parts) < 2 {
		return 1
	}
	sub := strings.Split(parts[1], "/")
	if len(sub) < 2 {
		return 1
	}
	tc, err := strconv.Atoi(sub[1])
	if err != nil {
		return 1
	}
	return tc
}

// auxFields builds integer tags from alternating names and values.
func auxFields(pairs ...interface{}) (hts.AuxFields, error) {
	var aux hts.AuxFields
	for i := 0; i < len(pairs); i += 2 {
		a, err := sam.NewAux(sam.NewTag(pairs[i].(string)), pairs[i+1].(int))
		if err != nil {
			return nil, err
		}
		aux = append(aux, a)
	}
	return aux, nil
}

func atoi(fields []string, idx ...int) ([]int, error) {
	out := make([]int, len(idx))
	for k, i := range idx {
		v, err := strconv.Atoi(fields[i])
		if err != nil {
			return nil, fmt.Errorf("field %d: invalid integer %q", i+1, fields[i])
		}
		out[k] = v
	}
	return out, nil
}

// records translates a contact line into its two hic-BAM records.
func (c *converter) records(line string) ([]*hts.Record, error) {
	n := c.opts.Format.fields()
	fields := strings.SplitN(strings.TrimSpace(line), "\t", n)
	if len(fields) != n {
		return nil, fmt.Errorf("expected %d fields, got %d", n, len(fields))
	}
	if c.opts.Format == Long && strings.Contains(fields[n-1], "\t") {
		return nil, fmt.Errorf("expected %d fields", n)
	}
	qname, rname, rnext := fields[0], fields[1], fields[7]
	ref, mref := c.refs[rname], c.refs[rnext]
	if ref == nil || mref == nil {
		return nil, fmt.Errorf("unknown chromosome in %s/%s", rname, rnext)
	}
	pos, err := atoi(fields, 2, 8)
	if err != nil {
		return nil, err
	}
	flag, err := c.filterFlag(qname)
	if err != nil {
		return nil, err
	}
	if rname != rnext {
		flag += c.trans
	}
	tc := multiplicity(qname)

	len1, len2 := 1, 1
	tlen1, tlen2 := 0, 0
	aux1, err := auxFields("TC", tc)
	if err != nil {
		return nil, err
	}
	aux2, _ := auxFields("TC", tc)
	switch c.opts.Format {
	case Mid, Long:
		v, err := atoi(fields, 3, 4, 9, 10)
		if err != nil {
			return nil, err
		}
		s1, l1, s2, l2 := v[0], v[1], v[2], v[3]
		len1, len2 = l1, l2
		tlen1, tlen2 = l2, l1
		pairs1 := []interface{}{"S1", s1, "S2", s2}
		pairs2 := []interface{}{"S2", s2, "S1", s1}
		if c.opts.Format == Long {
			e, err := atoi(fields, 5, 6, 11, 12)
			if err != nil {
				return nil, err
			}
			pairs1 = append(pairs1, "E1", e[0], "E2", e[1], "E3", e[2], "E4", e[3])
			pairs2 = append(pairs2, "E3", e[2], "E4", e[3], "E1", e[0], "E2", e[1])
		}
		x1, err := auxFields(pairs1...)
		if err != nil {
			return nil, err
		}
		x2, err := auxFields(pairs2...)
		if err != nil {
			return nil, err
		}
		aux1, aux2 = append(aux1, x1...), append(aux2, x2...)
	}

	r1 := sam.NewContact(qname, ref, mref, pos[0]-1, pos[1]-1, tlen1,
		[]hts.CigarOp{hts.NewCigarOp(hts.CigarPadded, len1)}, aux1, flag)
	r2 := sam.NewContact(qname, mref, ref, pos[1]-1, pos[0]-1, tlen2,
		[]hts.CigarOp{hts.NewCigarOp(hts.CigarSoftClipped, len2)}, aux2, flag)
	return []*hts.Record{r1, r2}, nil
}

func newConverter(refs []*hts.Reference, opts Options) (*converter, error) {
	if opts.Filters == nil {
		opts.Filters = sam.TADbit
	}
	if opts.Indexer == nil {
		opts.Indexer = sam.BAMIndexer{}
	}
	h, err := hts.NewHeader(nil, refs)
	if err != nil {
		return nil, err
	}
	h.Version = "1.5"
	h.Comments = append(opts.Filters.Comments(), tagComments...)
	c := &converter{
		opts:   opts,
		refs:   make(map[string]*hts.Reference),
		header: h,
		trans:  sam.Bit(11),
	}
	if f, ok := opts.Filters.Lookup("trans-chromosomic"); ok {
		c.trans = f.Bit()
	}
	for _, r := range h.Refs() {
		c.refs[r.Name()] = r
	}
	return c, nil
}

// Convert writes the contacts of infile as an indexed hic-BAM file at
// outbam. Unless opts.Valid is set, the filter side files next to infile
// set the flag of the contacts they list.
func Convert(infile, outbam string, opts Options) error {
	start := time.Now()
	f, err := os.Open(infile)
	if err != nil {
		return err
	}
	defer f.Close()
	br, err := utils.BuffReader(f)
	if err != nil {
		return err
	}
	sc := bufio.NewScanner(br)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	refs, first, err := readHeader(sc)
	if err != nil {
		return fmt.Errorf("%s: %v", infile, err)
	}
	if len(refs) == 0 {
		return fmt.Errorf("%s: no chromosome declared in header", infile)
	}
	c, err := newConverter(refs, opts)
	if err != nil {
		return err
	}

	if !opts.Valid {
		files, err := FilterFiles(infile)
		if err != nil {
			return err
		}
		bits := map[string]int{}
		for name := range files {
			flt, ok := c.opts.Filters.Lookup(name)
			if !ok {
				return fmt.Errorf("filter file %s: unknown filter %q", files[name], name)
			}
			bits[name] = flt.Bit()
			log.WithFields(log.Fields{
				"filter": name,
				"file":   files[name],
			}).Info("Using filter file")
		}
		c.sides, err = openSideFiles(files, bits)
		if err != nil {
			return err
		}
		defer closeSideFiles(c.sides)
	}

	var recs []*hts.Record
	line := first
	ok := first != ""
	for ok {
		c.line++
		if strings.TrimSpace(line) != "" {
			rs, err := c.records(line)
			if err != nil {
				return fmt.Errorf("%s: line %d: %v", infile, c.line, err)
			}
			recs = append(recs, rs...)
		}
		ok = sc.Scan()
		line = sc.Text()
	}
	if err := sc.Err(); err != nil {
		return err
	}
	log.WithFields(log.Fields{
		"contacts": len(recs) / 2,
		"format":   c.opts.Format,
	}).Info("Contacts read")
	if err := c.opts.Indexer.SortAndIndex(c.header, recs, outbam); err != nil {
		return err
	}
	log.Infof("%s written in %v", outbam, time.Since(start))
	return nil
}
