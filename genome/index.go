// Package genome maps chromosome coordinates onto the global bin space used by
// contact matrices.
package genome

import (
	"fmt"

	"github.com/biogo/hts/sam"
	"github.com/dhconnelly/rtreego"
)

// Reference is a named chromosome and its length in bases.
type Reference struct {
	Name string
	Len  int
}

// Bin identifies a resolution-sized bucket on a chromosome.
type Bin struct {
	Chrom  string
	Offset int
}

func (b Bin) String() string {
	return fmt.Sprintf("%s:%d", b.Chrom, b.Offset)
}

// Section is the global index range [Start, End) of a chromosome. End is the
// padding slot separating it from the next chromosome.
type Section struct {
	Start, End int
}

// Len returns the number of bins in the section.
func (s Section) Len() int {
	return s.End - s.Start
}

// SectionMap maps chromosome names to their global index range.
type SectionMap map[string]Section

type section struct {
	chrom string
	Section
	rect *rtreego.Rect
}

func (s *section) Bounds() *rtreego.Rect {
	return s.rect
}

// Index is the global bin coordinate space of a genome at a given resolution.
type Index struct {
	resolution int
	names      []string
	lengths    map[string]int
	sections   SectionMap
	bins       []Bin
	tree       *rtreego.Rtree
}

// NewIndex builds the bin space for refs, in declaration order. Each chromosome
// gets len/resolution+1 bins and one extra trailing padding slot.
func NewIndex(refs []Reference, resolution int) (*Index, error) {
	if resolution <= 0 {
		return nil, &ConfigError{"resolution", resolution, "must be positive"}
	}
	if len(refs) == 0 {
		return nil, &ConfigError{"references", 0, "no chromosome declared"}
	}
	idx := &Index{
		resolution: resolution,
		names:      make([]string, 0, len(refs)),
		lengths:    make(map[string]int, len(refs)),
		sections:   make(SectionMap, len(refs)),
	}
	var spatials []rtreego.Spatial
	total := 0
	for _, ref := range refs {
		if ref.Len < resolution {
			return nil, &ConfigError{"length", fmt.Sprintf("%s:%d", ref.Name, ref.Len), fmt.Sprintf("chromosome smaller than bin size %d", resolution)}
		}
		if _, dup := idx.sections[ref.Name]; dup {
			return nil, &ConfigError{"references", ref.Name, "duplicated chromosome"}
		}
		n := ref.Len/resolution + 1
		s := Section{total, total + n}
		idx.names = append(idx.names, ref.Name)
		idx.lengths[ref.Name] = ref.Len
		idx.sections[ref.Name] = s
		for i := 0; i <= n; i++ {
			idx.bins = append(idx.bins, Bin{ref.Name, i})
		}
		// the rectangle spans the padding slot too
		rect, err := rtreego.NewRect(rtreego.Point{float64(s.Start)}, []float64{float64(n + 1)})
		if err != nil {
			return nil, err
		}
		spatials = append(spatials, &section{ref.Name, s, rect})
		total += n + 1
	}
	idx.tree = rtreego.NewTree(1, 25, 50, spatials...)
	return idx, nil
}

// IndexFromHeader builds an Index from the references declared in a SAM header.
func IndexFromHeader(h *sam.Header, resolution int) (*Index, error) {
	refs := make([]Reference, 0, len(h.Refs()))
	for _, r := range h.Refs() {
		refs = append(refs, Reference{r.Name(), r.Len()})
	}
	return NewIndex(refs, resolution)
}

// Resolution returns the number of bases per bin.
func (idx *Index) Resolution() int {
	return idx.resolution
}

// Names returns the chromosome names in declaration order.
func (idx *Index) Names() []string {
	return idx.names
}

// Length returns the length in bases of chrom.
func (idx *Index) Length(chrom string) (int, bool) {
	l, ok := idx.lengths[chrom]
	return l, ok
}

// Sections returns the section map. It must not be modified.
func (idx *Index) Sections() SectionMap {
	return idx.sections
}

// Section returns the section of chrom.
func (idx *Index) Section(chrom string) (Section, bool) {
	s, ok := idx.sections[chrom]
	return s, ok
}

// Bins returns the flat bin sequence, padding slots included.
func (idx *Index) Bins() []Bin {
	return idx.bins
}

// Locate returns the bin at global index i. Padding slots are located on the
// chromosome they follow.
func (idx *Index) Locate(i int) (Bin, bool) {
	bb, _ := rtreego.NewRect(rtreego.Point{float64(i) + 0.25}, []float64{0.5})
	for _, sp := range idx.tree.SearchIntersect(bb) {
		if s, ok := sp.(*section); ok {
			return Bin{s.chrom, i - s.Start}, true
		}
	}
	return Bin{}, false
}

// SameChrom reports whether global indices i and j belong to the same chromosome.
func (idx *Index) SameChrom(i, j int) bool {
	bi, ok := idx.Locate(i)
	if !ok {
		return false
	}
	bj, ok := idx.Locate(j)
	return ok && bi.Chrom == bj.Chrom
}
