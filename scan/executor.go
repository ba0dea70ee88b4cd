package scan

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/guigolab/bammatrix/plan"
	log "github.com/sirupsen/logrus"
)

// Executor runs one scan per chunk over a pool of workers.
type Executor struct {
	// Workers is the pool size. With one worker chunks are scanned
	// sequentially in the calling goroutine.
	Workers int
	// PollInterval is the period of progress reports.
	PollInterval time.Duration
	// Timeout bounds every single scan; zero means no bound.
	Timeout  time.Duration
	Progress Progress
}

func (e *Executor) progress() Progress {
	if e.Progress == nil {
		return nopProgress{}
	}
	return e.Progress
}

func (e *Executor) scan(ctx context.Context, s ChunkScanner, c plan.Chunk) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &ScanError{c, fmt.Errorf("panic: %v", r)}
		}
	}()
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}
	if err = s.Scan(ctx, c); err != nil {
		if _, ok := err.(*ScanError); !ok {
			err = &ScanError{c, err}
		}
	}
	return
}

func logFailure(id int, err *ScanError) {
	log.WithFields(log.Fields{
		"worker":   id,
		"Chunk":    err.Chunk.String(),
		"FirstBin": err.Chunk.FirstBin,
		"LastBin":  err.Chunk.LastBin,
	}).Error(err.Err)
}

// Run scans all chunks and returns the failed ones. Failures never stop the
// sibling scans; a cancelled ctx makes the remaining chunks fail.
func (e *Executor) Run(ctx context.Context, s ChunkScanner, chunks []plan.Chunk) []*ScanError {
	p := e.progress()
	p.Start(len(chunks))
	if e.Workers <= 1 {
		return e.sequential(ctx, s, chunks, p)
	}
	return e.parallel(ctx, s, chunks, p)
}

func (e *Executor) sequential(ctx context.Context, s ChunkScanner, chunks []plan.Chunk, p Progress) []*ScanError {
	var failed []*ScanError
	for n, c := range chunks {
		if err := e.scan(ctx, s, c); err != nil {
			serr := err.(*ScanError)
			logFailure(0, serr)
			failed = append(failed, serr)
		}
		p.Update(n + 1)
	}
	p.Finish(len(chunks))
	return failed
}

func worker(ctx context.Context, id int, e *Executor, s ChunkScanner, in chan plan.Chunk, out chan *ScanError, done *int64, wg *sync.WaitGroup) {
	defer wg.Done()
	logger := log.WithFields(log.Fields{
		"worker": id,
	})
	logger.Debug("Starting")
	for c := range in {
		if err := e.scan(ctx, s, c); err != nil {
			serr := err.(*ScanError)
			logFailure(id, serr)
			out <- serr
		}
		atomic.AddInt64(done, 1)
	}
	logger.Debug("Done")
}

func (e *Executor) parallel(ctx context.Context, s ChunkScanner, chunks []plan.Chunk, p Progress) []*ScanError {
	var wg sync.WaitGroup
	var done int64

	in := make(chan plan.Chunk, len(chunks))
	for _, c := range chunks {
		in <- c
	}
	close(in)
	out := make(chan *ScanError, len(chunks))

	for i := 0; i < e.Workers; i++ {
		wg.Add(1)
		go worker(ctx, i+1, e, s, in, out, &done, &wg)
	}
	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()

	interval := e.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
poll:
	for {
		select {
		case <-finished:
			break poll
		case <-ticker.C:
			p.Update(int(atomic.LoadInt64(&done)))
		}
	}
	p.Finish(int(atomic.LoadInt64(&done)))

	close(out)
	var failed []*ScanError
	for err := range out {
		failed = append(failed, err)
	}
	return failed
}
