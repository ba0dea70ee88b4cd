package utils

import (
	"bufio"
	"compress/bzip2"
	"compress/gzip"
	"io"
	"os"

	log "github.com/sirupsen/logrus"
)

// Check exits the program when err is not nil.
func Check(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func Max(a, b int) int {
	if a < b {
		return b
	}
	return a
}

func Min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

type bufferedFile struct {
	*bufio.Writer
	f *os.File
}

func (b *bufferedFile) Close() error {
	err := b.Flush()
	if b.f == nil {
		return err
	}
	if cerr := b.f.Close(); err == nil {
		err = cerr
	}
	return err
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// NewWriter returns a buffered io.WriteCloser given an output file name. If the file name is '-' os.Stdout is used
// and closing only flushes.
func NewWriter(output string) (io.WriteCloser, error) {
	switch output {
	case "-":
		return &bufferedFile{bufio.NewWriter(os.Stdout), nil}, nil
	default:
		f, err := os.Create(output)
		if err != nil {
			return nil, err
		}
		return &bufferedFile{bufio.NewWriter(f), f}, nil
	}
}

// NopWriteCloser wraps w with a no-op Close method.
func NopWriteCloser(w io.Writer) io.WriteCloser {
	return nopCloser{w}
}

// CheckBytes peeks at a buffered stream and checks if the first read bytes match.
func CheckBytes(b *bufio.Reader, buf []byte) (bool, error) {
	m, err := b.Peek(len(buf))
	if err != nil {
		if err == io.EOF {
			return false, nil
		}
		return false, err
	}
	for i := range buf {
		if m[i] != buf[i] {
			return false, nil
		}
	}
	return true, nil
}

// BuffReader returns a buffered reader over r, transparently decompressing gzip and bzip2 streams.
func BuffReader(r io.Reader) (*bufio.Reader, error) {
	br := bufio.NewReader(r)
	if isGz, err := CheckBytes(br, []byte{0x1f, 0x8b}); err != nil {
		return nil, err
	} else if isGz {
		rdr, err := gzip.NewReader(br)
		if err != nil {
			return nil, err
		}
		return bufio.NewReader(rdr), nil
	}
	if isBz, err := CheckBytes(br, []byte{0x42, 0x5a}); err != nil {
		return nil, err
	} else if isBz {
		return bufio.NewReader(bzip2.NewReader(br)), nil
	}
	return br, nil
}
