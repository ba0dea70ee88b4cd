package sam

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/biogo/hts/sam"
)

// Filter is a named reason for masking a contact. Its bit in the flag field
// is 2^(Code-1).
type Filter struct {
	Code int
	Name string
}

// Bit returns the flag bit of f.
func (f Filter) Bit() int {
	return Bit(f.Code)
}

// Bit returns the flag bit of filter code.
func Bit(code int) int {
	return 1 << uint(code-1)
}

// FilterSet is an enumeration of filter reasons ordered by code.
type FilterSet []Filter

// TADbit is the default enumeration of filter reasons.
var TADbit = FilterSet{
	{1, "self-circle"},
	{2, "dangling-end"},
	{3, "error"},
	{4, "extra-dangling-end"},
	{5, "too-close-from-RES"},
	{6, "too-short"},
	{7, "too-large"},
	{8, "over-represented"},
	{9, "duplicated"},
	{10, "random-breaks"},
	{11, "trans-chromosomic"},
}

// DefaultExclude lists the codes excluded when no filter is given.
var DefaultExclude = []int{1, 2, 3, 4, 6, 7, 8, 9, 10}

const (
	filterPrefix = "filter:"
	flagPrefix   = "flag:"
)

// NormalizeName replaces blanks in a filter name with dashes.
func NormalizeName(name string) string {
	return strings.Replace(strings.TrimSpace(name), " ", "-", -1)
}

// Lookup returns the filter with the given name or numeric code.
func (fs FilterSet) Lookup(reason string) (Filter, bool) {
	if code, err := strconv.Atoi(reason); err == nil {
		for _, f := range fs {
			if f.Code == code {
				return f, true
			}
		}
		return Filter{}, false
	}
	name := NormalizeName(reason)
	for _, f := range fs {
		if f.Name == name {
			return f, true
		}
	}
	return Filter{}, false
}

// Mask sums the bits of the named reasons. Reasons may be names or codes.
func (fs FilterSet) Mask(reasons ...string) (int, error) {
	seen := make(map[int]bool, len(reasons))
	mask := 0
	for _, r := range reasons {
		f, ok := fs.Lookup(r)
		if !ok {
			return 0, fmt.Errorf("unknown filter %q", r)
		}
		if seen[f.Code] {
			continue
		}
		seen[f.Code] = true
		mask += f.Bit()
	}
	return mask, nil
}

// MaskFromCodes sums the bits of the given filter codes.
func MaskFromCodes(codes ...int) int {
	mask := 0
	for _, c := range codes {
		mask |= Bit(c)
	}
	return mask
}

// Codes returns the codes of fs whose bit is set in mask.
func (fs FilterSet) Codes(mask int) []int {
	var codes []int
	for _, f := range fs {
		if mask&f.Bit() != 0 {
			codes = append(codes, f.Code)
		}
	}
	return codes
}

// Comments renders fs as header comment lines.
func (fs FilterSet) Comments() []string {
	cs := make([]string, len(fs))
	for i, f := range fs {
		cs[i] = fmt.Sprintf("%s%s %s%d", filterPrefix, f.Name, flagPrefix, f.Bit())
	}
	return cs
}

// FiltersFromHeader reads the filter enumeration declared in the comment
// lines of h. It returns nil when h declares none.
func FiltersFromHeader(h *sam.Header) (FilterSet, error) {
	var fs FilterSet
	for _, c := range h.Comments {
		if !strings.HasPrefix(c, filterPrefix) {
			continue
		}
		fields := strings.Fields(c)
		if len(fields) != 2 || !strings.HasPrefix(fields[1], flagPrefix) {
			return nil, fmt.Errorf("malformed filter comment %q", c)
		}
		bit, err := strconv.Atoi(strings.TrimPrefix(fields[1], flagPrefix))
		if err != nil || bit <= 0 || bit&(bit-1) != 0 {
			return nil, fmt.Errorf("filter flag is not a power of two in %q", c)
		}
		code := 1
		for b := bit; b > 1; b >>= 1 {
			code++
		}
		fs = append(fs, Filter{code, strings.TrimPrefix(fields[0], filterPrefix)})
	}
	sort.Slice(fs, func(i, j int) bool { return fs[i].Code < fs[j].Code })
	return fs, nil
}
