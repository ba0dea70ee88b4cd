package genome

import (
	"fmt"
	"strconv"
	"strings"
)

// Region is a chromosome range in bases. A nil Start or End defaults to the
// chromosome boundary; an empty Chrom selects the whole genome.
type Region struct {
	Chrom      string
	Start, End *int
}

// NewRegion returns a Region over chrom limited to [start, end).
func NewRegion(chrom string, start, end int) Region {
	return Region{Chrom: chrom, Start: &start, End: &end}
}

// IsZero reports whether r selects nothing in particular.
func (r Region) IsZero() bool {
	return r.Chrom == "" && r.Start == nil && r.End == nil
}

func (r Region) String() string {
	if r.Chrom == "" {
		return "full"
	}
	switch {
	case r.Start != nil && r.End != nil:
		return fmt.Sprintf("%s:%d-%d", r.Chrom, *r.Start, *r.End)
	case r.Start != nil:
		return fmt.Sprintf("%s:%d-", r.Chrom, *r.Start)
	case r.End != nil:
		return fmt.Sprintf("%s:-%d", r.Chrom, *r.End)
	}
	return r.Chrom
}

// ParseRegion parses "chrom", "chrom:start-end", "chrom:start-" or
// "chrom:-end". Thousands separators are accepted in coordinates.
func ParseRegion(s string) (Region, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Region{}, nil
	}
	colon := strings.LastIndex(s, ":")
	if colon < 0 {
		return Region{Chrom: s}, nil
	}
	chrom, rng := s[:colon], s[colon+1:]
	dash := strings.Index(rng, "-")
	if chrom == "" || dash < 0 {
		return Region{}, &RegionError{s, "expected chrom:start-end"}
	}
	r := Region{Chrom: chrom}
	var err error
	if r.Start, err = parseCoord(rng[:dash]); err != nil {
		return Region{}, &RegionError{s, err.Error()}
	}
	if r.End, err = parseCoord(rng[dash+1:]); err != nil {
		return Region{}, &RegionError{s, err.Error()}
	}
	return r, nil
}

func parseCoord(s string) (*int, error) {
	s = strings.Replace(s, ",", "", -1)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return nil, fmt.Errorf("invalid coordinate %q", s)
	}
	if v < 0 {
		return nil, fmt.Errorf("negative coordinate %d", v)
	}
	return &v, nil
}

// Request is a matrix request: a single region, a pair of regions, or the
// whole genome when Region1 is zero.
type Request struct {
	Region1, Region2 Region
}
