package matrix

import (
	"archive/tar"
	"fmt"
	"io"
	"io/ioutil"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
)

// LockTimeout bounds the wait for the lock of a tar archive.
var LockTimeout = 10 * time.Minute

const lockRetry = 100 * time.Millisecond

// File is a named in-memory output.
type File struct {
	Name string
	Data []byte
}

func lock(path string) (func(), error) {
	lockFile := path + ".lock"
	deadline := time.Now().Add(LockTimeout)
	for {
		f, err := os.OpenFile(lockFile, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			f.Close()
			return func() { os.Remove(lockFile) }, nil
		}
		if !os.IsExist(err) {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("timeout waiting for lock %s", lockFile)
		}
		time.Sleep(lockRetry)
	}
}

func copyEntries(tw *tar.Writer, path string) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()
	tr := tar.NewReader(f)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading %s: %v", path, err)
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if _, err := io.Copy(tw, tr); err != nil {
			return err
		}
	}
}

// AppendToTar adds files to the tar archive at path, creating it if needed.
// Concurrent writers are serialized by a lock file next to the archive.
func AppendToTar(path string, files []File) error {
	unlock, err := lock(path)
	if err != nil {
		return err
	}
	defer unlock()

	tmp, err := ioutil.TempFile(filepath.Dir(path), filepath.Base(path)+".")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	tw := tar.NewWriter(tmp)
	if err := copyEntries(tw, path); err != nil {
		tmp.Close()
		return err
	}
	now := time.Now()
	for _, f := range files {
		hdr := &tar.Header{
			Name:    f.Name,
			Mode:    0644,
			Size:    int64(len(f.Data)),
			ModTime: now,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			tmp.Close()
			return err
		}
		if _, err := tw.Write(f.Data); err != nil {
			tmp.Close()
			return err
		}
		log.WithField("archive", path).Debugf("Added %s", f.Name)
	}
	if err := tw.Close(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
