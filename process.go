// Package bammatrix extracts Hi-C contact matrices from indexed hic-BAM files.
package bammatrix

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/biogo/hts/bam"
	"github.com/guigolab/bammatrix/artifact"
	"github.com/guigolab/bammatrix/bias"
	"github.com/guigolab/bammatrix/config"
	"github.com/guigolab/bammatrix/genome"
	"github.com/guigolab/bammatrix/matrix"
	"github.com/guigolab/bammatrix/plan"
	"github.com/guigolab/bammatrix/sam"
	"github.com/guigolab/bammatrix/scan"
	"github.com/guigolab/bammatrix/stats"
	"github.com/guigolab/bammatrix/utils"
	log "github.com/sirupsen/logrus"
)

func init() {
	log.SetLevel(log.WarnLevel)
}

// Run carries the state shared by the steps of a single extraction.
type Run struct {
	Config   *config.Config
	Progress scan.Progress
	Logger   *log.Entry

	bam    string
	index  *bam.Index
	idx    *genome.Index
	window *genome.Window
	chunks []plan.Chunk
}

// NewRun validates cfg and reads the header and the BAI index of bamFile.
func NewRun(bamFile string, cfg *config.Config, req genome.Request) (*Run, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	h, err := sam.ReadHeader(bamFile)
	if err != nil {
		return nil, err
	}
	idx, err := genome.IndexFromHeader(h, cfg.Resolution)
	if err != nil {
		return nil, err
	}
	w, err := genome.NewWindow(idx, req)
	if err != nil {
		return nil, err
	}
	chunks, err := plan.Plan(idx, w)
	if err != nil {
		return nil, err
	}
	bai, err := sam.ReadIndex(bamFile)
	if err != nil {
		return nil, err
	}
	r := &Run{
		Config: cfg,
		Logger: log.WithFields(log.Fields{
			"bam":        bamFile,
			"window":     w.Name,
			"resolution": cfg.Resolution,
		}),
		bam:    bamFile,
		index:  bai,
		idx:    idx,
		window: w,
		chunks: chunks,
	}
	if bai == nil {
		r.Logger.Warn("No BAI index found, chunks are scanned one at a time, each reading the whole file")
	}
	if cfg.Progress {
		r.Progress = &scan.BarProgress{Output: os.Stderr}
	} else {
		r.Progress = &scan.LogProgress{}
	}
	return r, nil
}

// Index returns the genome index of the run.
func (r *Run) Index() *genome.Index {
	return r.idx
}

// Window returns the resolved window of the run.
func (r *Run) Window() *genome.Window {
	return r.window
}

// Chunks returns the chunk plan of the run.
func (r *Run) Chunks() []plan.Chunk {
	return r.chunks
}

// Workers returns the number of chunks scanned in parallel. Without an index
// every chunk reads the whole file, so they are scanned one at a time.
func (r *Run) Workers() int {
	if r.index == nil {
		return 1
	}
	return r.Config.Cpu
}

func (r *Run) execute(ctx context.Context, sc scan.ChunkScanner) []*scan.ScanError {
	start := time.Now()
	ex := &scan.Executor{
		Workers:      r.Workers(),
		PollInterval: r.Config.PollInterval,
		Timeout:      r.Config.ScanTimeout,
		Progress:     r.Progress,
	}
	failed := ex.Run(ctx, sc, r.chunks)
	r.Logger.Infof("Scan done in %v (%d failed chunks)", time.Since(start), len(failed))
	return failed
}

// Scan counts every chunk of the run into s.
func (r *Run) Scan(ctx context.Context, s *artifact.Store) []*scan.ScanError {
	r.Logger.WithFields(log.Fields{
		"chunks":  len(r.chunks),
		"workers": r.Workers(),
		"run":     s.RunID,
	}).Info("Scanning")
	return r.execute(ctx, &scan.Scanner{
		Path:       r.bam,
		Index:      r.index,
		Resolution: r.Config.Resolution,
		Exclude:    r.Config.FilterExclude,
		Half:       r.Config.Half,
		Rows:       r.window.Rows,
		Cols:       r.window.Cols,
		Store:      s,
	})
}

func (r *Run) assembler(s *artifact.Store, res *bias.Resolved) *matrix.Assembler {
	return &matrix.Assembler{
		Store:  s,
		Chunks: r.chunks,
		Bads1:  res.Bads1,
		Bads2:  res.Bads2,
	}
}

// ReadBAM scans the window req of bamFile into a temporary store and calls
// fn with the run and the store. The store is removed when fn returns.
func ReadBAM(ctx context.Context, bamFile string, cfg *config.Config, req genome.Request, fn func(*Run, *artifact.Store) error) error {
	r, err := NewRun(bamFile, cfg, req)
	if err != nil {
		return err
	}
	return artifact.WithStore(cfg.TmpDir, func(s *artifact.Store) error {
		r.Scan(ctx, s)
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(r, s)
	})
}

// GetMatrix returns the matrix of the window req of bamFile in the given
// mode. The bias table may be nil for raw matrices.
func GetMatrix(ctx context.Context, bamFile string, cfg *config.Config, req genome.Request, table *bias.Table, mode matrix.Mode) (*matrix.Matrix, error) {
	var m *matrix.Matrix
	err := ReadBAM(ctx, bamFile, cfg, req, func(r *Run, s *artifact.Store) error {
		start := time.Now()
		res := bias.Resolve(table, r.window.Coords)
		tr := matrix.NewTransform(mode, r.window, res, r.idx)
		var err error
		m, err = r.assembler(s, res).Matrix(r.window.Name, cfg.Resolution, tr)
		if err != nil {
			return err
		}
		r.Logger.WithField("cells", m.Len()).Infof("Matrix assembled in %v", time.Since(start))
		return nil
	})
	return m, err
}

// WriteMatrix writes one .abc file per normalization of cfg for the window
// req of bamFile. Files go to outdir, or are appended to the tar archive
// tarPath when it is not empty. It returns the names of the written files.
func WriteMatrix(ctx context.Context, bamFile string, cfg *config.Config, req genome.Request, table *bias.Table, outdir, tarPath string) ([]string, error) {
	modes := make([]matrix.Mode, 0, len(cfg.Normalizations))
	for _, n := range cfg.Normalizations {
		mode, err := matrix.ParseMode(n)
		if err != nil {
			return nil, &genome.ConfigError{Field: "normalizations", Value: n, Reason: err.Error()}
		}
		modes = append(modes, mode)
	}
	var names []string
	err := ReadBAM(ctx, bamFile, cfg, req, func(r *Run, s *artifact.Store) error {
		start := time.Now()
		res := bias.Resolve(table, r.window.Coords)
		sinks := make([]*matrix.Sink, len(modes))
		bufs := make([]*bytes.Buffer, len(modes))
		outs := make([]io.WriteCloser, 0, len(modes))
		defer func() {
			for _, o := range outs {
				o.Close()
			}
		}()
		names = names[:0]
		for k, mode := range modes {
			name := matrix.FileName(mode, r.window.Name, cfg.Resolution)
			var w *matrix.ABCWriter
			if tarPath != "" {
				bufs[k] = &bytes.Buffer{}
				w = matrix.NewABCWriter(bufs[k], mode)
			} else {
				out, err := utils.NewWriter(filepath.Join(outdir, name))
				if err != nil {
					return err
				}
				outs = append(outs, out)
				w = matrix.NewABCWriter(out, mode)
			}
			if err := w.WriteHeader(r.window.Name, cfg.Resolution, r.window.TwoRegions, res.Bads1, res.Bads2); err != nil {
				return err
			}
			sinks[k] = &matrix.Sink{
				Transform: matrix.NewTransform(mode, r.window, res, r.idx),
				Writer:    w,
			}
			names = append(names, name)
		}
		if err := r.assembler(s, res).WriteAll(sinks); err != nil {
			return err
		}
		for _, sk := range sinks {
			if err := sk.Writer.Flush(); err != nil {
				return err
			}
		}
		for _, o := range outs {
			if err := o.Close(); err != nil {
				return err
			}
		}
		outs = nil
		if tarPath != "" {
			files := make([]matrix.File, len(modes))
			for k := range modes {
				files[k] = matrix.File{Name: names[k], Data: bufs[k].Bytes()}
			}
			if err := matrix.AppendToTar(tarPath, files); err != nil {
				return fmt.Errorf("writing %s: %w", tarPath, err)
			}
		}
		r.Logger.WithField("files", len(names)).Infof("Matrices written in %v", time.Since(start))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

func headerFilters(bamFile string) (sam.FilterSet, error) {
	h, err := sam.ReadHeader(bamFile)
	if err != nil {
		return nil, err
	}
	fs, err := sam.FiltersFromHeader(h)
	if err != nil {
		return nil, err
	}
	if fs == nil {
		fs = sam.TADbit
	}
	return fs, nil
}

// FilterMask computes the exclusion bitmask of reasons using the filter
// enumeration declared in the header of bamFile, or the TADbit one.
func FilterMask(bamFile string, reasons ...string) (int, error) {
	fs, err := headerFilters(bamFile)
	if err != nil {
		return 0, err
	}
	return fs.Mask(reasons...)
}

// CollectStats counts the contacts of the window req of bamFile by filter.
// Contacts are attributed to the row of their first read-end.
func CollectStats(ctx context.Context, bamFile string, cfg *config.Config, req genome.Request) (*stats.ContactStats, *stats.Metrics, error) {
	r, err := NewRun(bamFile, cfg, req)
	if err != nil {
		return nil, nil, err
	}
	fs, err := headerFilters(bamFile)
	if err != nil {
		return nil, nil, err
	}
	sc := &stats.Scanner{
		Path:       bamFile,
		Index:      r.index,
		Resolution: cfg.Resolution,
		Filters:    fs,
		Exclude:    cfg.FilterExclude,
		Rows:       r.window.Rows,
	}
	if failed := r.execute(ctx, sc); len(failed) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		return nil, nil, failed[0]
	}
	st := sc.Stats()
	return st, stats.Calculate(st, fs), nil
}
