package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"

	"github.com/guigolab/bammatrix"
	"github.com/pkg/profile"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

var (
	loglevel, tmpDir, profileDir string
	cpu                          int
	stopProfile                  func()
)

func setup(cmd *cobra.Command, args []string) error {
	level, err := log.ParseLevel(loglevel)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	logger := log.WithFields(log.Fields{
		"version":   version,
		"commit":    commit,
		"buildTime": date,
		"library":   bammatrix.Version(),
	})
	logger.Infof("Running %s", cmd.CommandPath())
	log.Infof("Using %v out of %v logical CPUs", cpu, runtime.NumCPU())
	if profileDir != "" {
		stopProfile = profile.Start(profile.CPUProfile, profile.ProfilePath(profileDir), profile.NoShutdownHook).Stop
	}
	return nil
}

func teardown(cmd *cobra.Command, args []string) {
	if stopProfile != nil {
		stopProfile()
	}
}

// interruptible returns a context cancelled on the first interrupt signal.
func interruptible() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		select {
		case <-sig:
			log.Warn("Interrupted, stopping scans")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sig)
	}()
	return ctx, cancel
}

func setRootFlags(c *cobra.Command) {
	c.PersistentFlags().StringVarP(&loglevel, "loglevel", "", "warn", "logging level")
	c.PersistentFlags().IntVarP(&cpu, "cpu", "c", runtime.NumCPU(), "number of cpus to be used")
	c.PersistentFlags().StringVarP(&tmpDir, "tmpdir", "", os.TempDir(), "directory for temporary files")
	c.PersistentFlags().StringVarP(&profileDir, "profile", "", "", "write a CPU profile to this directory")

	c.SetVersionTemplate(`{{with .Name}}{{printf "== %s ==\n" .}}{{end}}{{printf "%s\n" .Version}}`)
}

func buildVersion(version, commit, date string) string {
	var result = fmt.Sprintf("version: %s", version)
	if commit != "" {
		result = fmt.Sprintf("%s\ncommit: %s", result, commit)
	}
	if date != "" {
		result = fmt.Sprintf("%s\nbuilt at: %s", result, date)
	}
	return result
}

func main() {
	var rootCmd = &cobra.Command{
		Use:               "bammatrix",
		Short:             "Hi-C contact matrices",
		Long:              "bammatrix - extract Hi-C contact matrices from hic-BAM files",
		Version:           buildVersion(version, commit, date),
		PersistentPreRunE: setup,
		PersistentPostRun: teardown,
		SilenceUsage:      true,
	}

	setRootFlags(rootCmd)
	rootCmd.AddCommand(newMatrixCmd(), newBed2BamCmd(), newSectionsCmd(), newStatsCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Debug(err)
		os.Exit(1)
	}
}
