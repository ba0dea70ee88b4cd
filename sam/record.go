package sam

import (
	"github.com/biogo/hts/sam"
)

// Record is one read-end of a hic-BAM contact. The flag field holds the
// filter bitmask and the mate fields point at the other read-end.
type Record struct {
	*sam.Record
}

// Export original sam.Record functions
var (
	NewTag = sam.NewTag
	NewAux = sam.NewAux
)

func NewRecord(r *sam.Record) *Record {
	return &Record{r}
}

// NewContact returns a read-end with no sequence nor qualities, as stored
// in hic-BAM files. sam.NewRecord rejects an empty sequence.
func NewContact(name string, ref, mateRef *sam.Reference, pos, matePos, tlen int, cigar []sam.CigarOp, aux []sam.Aux, flags int) *sam.Record {
	return &sam.Record{
		Name:      name,
		Ref:       ref,
		Pos:       pos,
		MateRef:   mateRef,
		MatePos:   matePos,
		TempLen:   tlen,
		Cigar:     cigar,
		AuxFields: aux,
		Flags:     sam.Flags(flags),
	}
}

// Chrom returns the reference name of the read-end, or "" when unmapped.
func (r *Record) Chrom() string {
	if r.Ref == nil {
		return ""
	}
	return r.Ref.Name()
}

// MateChrom returns the reference name of the other read-end, or "".
func (r *Record) MateChrom() string {
	if r.MateRef == nil {
		return ""
	}
	return r.MateRef.Name()
}

// Bin returns the chromosome-local bin of the read-end at resolution res.
func (r *Record) Bin(res int) int {
	return (r.Pos + 1) / res
}

// MateBin returns the chromosome-local bin of the other read-end.
func (r *Record) MateBin(res int) int {
	return (r.MatePos + 1) / res
}

// IsFiltered reports whether any bit of mask is set on the record.
func (r *Record) IsFiltered(mask int) bool {
	return int(r.Flags)&mask != 0
}

// IsTrans reports whether both read-ends map to different chromosomes.
func (r *Record) IsTrans() bool {
	return r.MateRef != nil && r.Ref != nil && r.MateRef.ID() != r.Ref.ID()
}

// IsFirstCopy reports whether the record is the copy starting with the left
// read-end, as marked by a trailing P operation in its CIGAR.
func (r *Record) IsFirstCopy() bool {
	n := len(r.Cigar)
	return n > 0 && r.Cigar[n-1].Type() == sam.CigarPadded
}

// Multiplicity returns the TC tag value, 1 when absent.
func (r *Record) Multiplicity() int {
	tc, ok := r.Tag([]byte("TC"))
	if !ok {
		return 1
	}
	switch v := tc.Value().(type) {
	case uint8:
		return int(v)
	case int8:
		return int(v)
	case uint16:
		return int(v)
	case int16:
		return int(v)
	case uint32:
		return int(v)
	case int32:
		return int(v)
	}
	return 1
}
