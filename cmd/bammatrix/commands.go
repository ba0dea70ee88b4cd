package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/guigolab/bammatrix"
	"github.com/guigolab/bammatrix/bias"
	"github.com/guigolab/bammatrix/config"
	"github.com/guigolab/bammatrix/convert"
	"github.com/guigolab/bammatrix/genome"
	"github.com/guigolab/bammatrix/sam"
	"github.com/guigolab/bammatrix/utils"
	"github.com/spf13/cobra"
)

// windowFlags are shared by the commands reading a window of a BAM file.
type windowFlags struct {
	input, region1, region2 string
	resolution              int
	filterExclude           []string
	filterMask              int
}

func (w *windowFlags) set(c *cobra.Command) {
	c.Flags().StringVarP(&w.input, "input", "i", "", "input hic-BAM file (required)")
	c.Flags().IntVarP(&w.resolution, "resolution", "r", 0, "bin size in bases (required)")
	c.Flags().StringVarP(&w.region1, "region1", "", "", "row region: chrom[:start-end], whole genome when empty")
	c.Flags().StringVarP(&w.region2, "region2", "", "", "column region: chrom[:start-end]")
	c.Flags().StringSliceVarP(&w.filterExclude, "filter-exclude", "f", nil, "filter names or codes of the contacts to exclude")
	c.Flags().IntVarP(&w.filterMask, "filter-mask", "", -1, "bitmask of the filters to exclude, overrides --filter-exclude")
	c.MarkFlagRequired("input")
	c.MarkFlagRequired("resolution")
}

func (w *windowFlags) request() (genome.Request, error) {
	r1, err := genome.ParseRegion(w.region1)
	if err != nil {
		return genome.Request{}, err
	}
	r2, err := genome.ParseRegion(w.region2)
	if err != nil {
		return genome.Request{}, err
	}
	return genome.Request{Region1: r1, Region2: r2}, nil
}

func (w *windowFlags) mask() (int, error) {
	if w.filterMask >= 0 {
		return w.filterMask, nil
	}
	if len(w.filterExclude) == 0 {
		return sam.MaskFromCodes(sam.DefaultExclude...), nil
	}
	return bammatrix.FilterMask(w.input, w.filterExclude...)
}

func (w *windowFlags) config(half bool) (*config.Config, error) {
	mask, err := w.mask()
	if err != nil {
		return nil, err
	}
	return config.NewConfig(cpu, w.resolution, tmpDir, mask, half), nil
}

func newMatrixCmd() *cobra.Command {
	var (
		wf                     windowFlags
		biases, outdir, tarOut string
		normalizations         []string
		half, progress         bool
		scanTimeout            time.Duration
	)
	c := &cobra.Command{
		Use:   "matrix",
		Short: "Write the contact matrices of a window as .abc files",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := wf.request()
			if err != nil {
				return err
			}
			cfg, err := wf.config(half)
			if err != nil {
				return err
			}
			cfg.Normalizations = normalizations
			cfg.Progress = progress
			cfg.ScanTimeout = scanTimeout
			var table *bias.Table
			if biases != "" {
				if table, err = bias.Load(biases); err != nil {
					return err
				}
			}
			ctx, cancel := interruptible()
			defer cancel()
			names, err := bammatrix.WriteMatrix(ctx, wf.input, cfg, req, table, outdir, tarOut)
			if err != nil {
				return err
			}
			for _, n := range names {
				fmt.Println(n)
			}
			return nil
		},
	}
	wf.set(c)
	c.Flags().StringVarP(&biases, "biases", "b", "", "bias and decay file (JSON, optionally gzipped, or gob)")
	c.Flags().StringSliceVarP(&normalizations, "normalizations", "n", []string{"raw"}, "normalizations to write: raw, norm, decay")
	c.Flags().StringVarP(&outdir, "outdir", "o", ".", "output directory")
	c.Flags().StringVarP(&tarOut, "tar", "", "", "append the matrices to this tar archive instead of outdir")
	c.Flags().BoolVarP(&half, "half", "", false, "keep the upper triangle only")
	c.Flags().BoolVarP(&progress, "progress", "p", false, "show a progress bar")
	c.Flags().DurationVarP(&scanTimeout, "scan-timeout", "", 0, "time limit of a single chunk scan, 0 for none")
	return c
}

func newBed2BamCmd() *cobra.Command {
	var (
		input, output, format string
		valid                 bool
	)
	c := &cobra.Command{
		Use:   "bed2bam",
		Short: "Convert a 2D contact map into an indexed hic-BAM file",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := convert.ParseFormat(format)
			if err != nil {
				return err
			}
			return convert.Convert(input, output, convert.Options{
				Format:  f,
				Valid:   valid,
				Indexer: sam.BAMIndexer{Workers: cpu},
			})
		},
	}
	c.Flags().StringVarP(&input, "input", "i", "", "input contact map, one contact per line (required)")
	c.Flags().StringVarP(&output, "output", "o", "", "output BAM file (required)")
	c.Flags().StringVarP(&format, "format", "", "mid", "contact map format: short, mid or long")
	c.Flags().BoolVarP(&valid, "valid", "", false, "input contacts are already filtered, ignore filter files")
	c.MarkFlagRequired("input")
	c.MarkFlagRequired("output")
	return c
}

func newSectionsCmd() *cobra.Command {
	var (
		input      string
		resolution int
	)
	c := &cobra.Command{
		Use:   "sections",
		Short: "Print the global bin range of every chromosome",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := sam.ReadHeader(input)
			if err != nil {
				return err
			}
			idx, err := genome.IndexFromHeader(h, resolution)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 8, 1, '\t', 0)
			sections := idx.Sections()
			for _, name := range idx.Names() {
				s := sections[name]
				fmt.Fprintf(tw, "%s\t%d\t%d\n", name, s.Start, s.End)
			}
			return tw.Flush()
		},
	}
	c.Flags().StringVarP(&input, "input", "i", "", "input hic-BAM file (required)")
	c.Flags().IntVarP(&resolution, "resolution", "r", 0, "bin size in bases (required)")
	c.MarkFlagRequired("input")
	c.MarkFlagRequired("resolution")
	return c
}

func newStatsCmd() *cobra.Command {
	var (
		wf      windowFlags
		output  string
		metrics bool
	)
	c := &cobra.Command{
		Use:   "stats",
		Short: "Count the contacts of a window by filter",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := wf.request()
			if err != nil {
				return err
			}
			cfg, err := wf.config(false)
			if err != nil {
				return err
			}
			ctx, cancel := interruptible()
			defer cancel()
			st, m, err := bammatrix.CollectStats(ctx, wf.input, cfg, req)
			if err != nil {
				return err
			}
			w, err := utils.NewWriter(output)
			if err != nil {
				return err
			}
			defer w.Close()
			if metrics {
				return m.Output(w)
			}
			return st.OutputJSON(w)
		},
	}
	wf.set(c)
	c.Flags().StringVarP(&output, "output", "o", "-", "output file")
	c.Flags().BoolVarP(&metrics, "metrics", "m", false, "output fractions instead of counts")
	return c
}
