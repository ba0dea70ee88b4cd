package convert

import (
	"bufio"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/guigolab/bammatrix/utils"
)

// IDScanner reads a filter side file: one read ID per line, in the order of
// the contact file. Blank lines are skipped.
type IDScanner struct {
	s   *bufio.Scanner
	id  string
	err error
}

func NewIDScanner(r io.Reader) *IDScanner {
	return &IDScanner{s: bufio.NewScanner(r)}
}

// Next advances to the next ID and reports whether there is one.
func (s *IDScanner) Next() bool {
	for s.s.Scan() {
		if id := strings.TrimSpace(s.s.Text()); id != "" {
			s.id = id
			return true
		}
	}
	s.id = ""
	s.err = s.s.Err()
	return false
}

// ID returns the current ID.
func (s *IDScanner) ID() string {
	return s.id
}

// Err returns the first read error.
func (s *IDScanner) Err() error {
	return s.err
}

// FilterFiles finds the filter side files of infile: the files of the same
// directory named "<base>_<filter>.tsv". Keys are the filter names with
// underscores replaced by dashes.
func FilterFiles(infile string) (map[string]string, error) {
	dir, base := filepath.Split(infile)
	if dir == "" {
		dir = "."
	}
	entries, err := ioutil.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	files := map[string]string{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), base+"_") {
			continue
		}
		key := strings.TrimSuffix(strings.TrimPrefix(e.Name(), base+"_"), ".tsv")
		files[strings.Replace(key, "_", "-", -1)] = filepath.Join(dir, e.Name())
	}
	return files, nil
}

type sideFile struct {
	name string
	bit  int
	f    *os.File
	ids  *IDScanner
	more bool
}

func openSideFiles(files map[string]string, bits map[string]int) ([]*sideFile, error) {
	names := make([]string, 0, len(files))
	for n := range files {
		names = append(names, n)
	}
	sort.Strings(names)
	var sides []*sideFile
	for _, n := range names {
		f, err := os.Open(files[n])
		if err != nil {
			closeSideFiles(sides)
			return nil, err
		}
		r, err := utils.BuffReader(f)
		if err != nil {
			f.Close()
			closeSideFiles(sides)
			return nil, err
		}
		sf := &sideFile{name: n, bit: bits[n], f: f, ids: NewIDScanner(r)}
		sf.more = sf.ids.Next()
		sides = append(sides, sf)
	}
	return sides, nil
}

func closeSideFiles(sides []*sideFile) {
	for _, s := range sides {
		s.f.Close()
	}
}
