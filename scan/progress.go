package scan

import (
	"io"

	log "github.com/sirupsen/logrus"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// Progress receives the running count of finished chunks.
type Progress interface {
	Start(total int)
	Update(done int)
	Finish(done int)
}

type nopProgress struct{}

func (nopProgress) Start(int)  {}
func (nopProgress) Update(int) {}
func (nopProgress) Finish(int) {}

// LogProgress reports progress as log lines, only when the count changes.
type LogProgress struct {
	total, last int
}

func (p *LogProgress) Start(total int) {
	p.total, p.last = total, -1
	log.Infof("Parsing BAM (%d chunks)", total)
}

func (p *LogProgress) Update(done int) {
	if done == p.last {
		return
	}
	p.last = done
	log.WithFields(log.Fields{
		"done":  done,
		"total": p.total,
	}).Info("Scanning chunks")
}

func (p *LogProgress) Finish(done int) {
	p.Update(done)
	if done < p.total {
		log.Warnf("%d out of %d chunks scanned", done, p.total)
	}
}

// BarProgress renders a progress bar of scanned chunks.
type BarProgress struct {
	Output io.Writer
	p      *mpb.Progress
	bar    *mpb.Bar
	total  int
}

func (b *BarProgress) Start(total int) {
	opts := []mpb.ContainerOption{mpb.WithWidth(60)}
	if b.Output != nil {
		opts = append(opts, mpb.WithOutput(b.Output))
	}
	b.total = total
	b.p = mpb.New(opts...)
	b.bar = b.p.AddBar(int64(total),
		mpb.PrependDecorators(
			decor.Name("chunks: ", decor.WC{W: len("chunks: "), C: decor.DindentRight}),
			decor.CountersNoUnit("%d/%d"),
		),
		mpb.AppendDecorators(
			decor.Percentage(decor.WC{W: 5}),
			decor.Name(" "),
			decor.Elapsed(decor.ET_STYLE_GO),
		),
	)
}

func (b *BarProgress) Update(done int) {
	if b.bar == nil {
		return
	}
	b.bar.SetCurrent(int64(done))
}

func (b *BarProgress) Finish(done int) {
	if b.bar == nil {
		return
	}
	b.bar.SetCurrent(int64(done))
	if done < b.total || b.total == 0 {
		b.bar.Abort(false)
	}
	b.p.Wait()
}
