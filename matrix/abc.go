package matrix

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/guigolab/bammatrix/bias"
)

// NaN is written for undefined values.
const NaN = "nan"

// ABCWriter writes cells as tab separated "i j value" lines.
type ABCWriter struct {
	w    *bufio.Writer
	mode Mode
}

func NewABCWriter(w io.Writer, mode Mode) *ABCWriter {
	return &ABCWriter{bufio.NewWriter(w), mode}
}

func joinBins(s bias.BinSet) string {
	sorted := s.Sorted()
	strs := make([]string, len(sorted))
	for i, b := range sorted {
		strs[i] = strconv.Itoa(b)
	}
	return strings.Join(strs, ",")
}

// WriteHeader writes the window name and resolution line followed by the bad
// bins, as one BADS line or as BADROWS and BADCOLS lines for two regions.
func (a *ABCWriter) WriteHeader(name string, resolution int, twoRegions bool, bads1, bads2 bias.BinSet) error {
	fmt.Fprintf(a.w, "# %s resolution:%d\n", name, resolution)
	if twoRegions {
		fmt.Fprintf(a.w, "# BADROWS %s\n", joinBins(bads1))
		_, err := fmt.Fprintf(a.w, "# BADCOLS %s\n", joinBins(bads2))
		return err
	}
	_, err := fmt.Fprintf(a.w, "# BADS %s\n", joinBins(bads1))
	return err
}

// Write writes one cell. Raw values are written as integers.
func (a *ABCWriter) Write(i, j int, v float64) error {
	var err error
	switch {
	case math.IsNaN(v):
		_, err = fmt.Fprintf(a.w, "%d\t%d\t%s\n", i, j, NaN)
	case a.mode == Raw:
		_, err = fmt.Fprintf(a.w, "%d\t%d\t%d\n", i, j, int64(v))
	default:
		_, err = fmt.Fprintf(a.w, "%d\t%d\t%f\n", i, j, v)
	}
	return err
}

// Flush writes any buffered data.
func (a *ABCWriter) Flush() error {
	return a.w.Flush()
}

// Nicer formats a resolution with the largest exact unit, e.g. 100kb or 1Mb.
func Nicer(resolution int) string {
	switch {
	case resolution%1000000000 == 0:
		return fmt.Sprintf("%dGb", resolution/1000000000)
	case resolution%1000000 == 0:
		return fmt.Sprintf("%dMb", resolution/1000000)
	case resolution%1000 == 0:
		return fmt.Sprintf("%dkb", resolution/1000)
	}
	return fmt.Sprintf("%db", resolution)
}

// FileName returns the output file name of a window in mode.
func FileName(mode Mode, name string, resolution int) string {
	return fmt.Sprintf("%s_%s_%s.abc", mode.Prefix(), name, Nicer(resolution))
}
