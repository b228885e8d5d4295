package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rickbassham/fitscore/format"
)

var detectCmd = &cobra.Command{
	Use:   "detect <glob>...",
	Short: "Print the detected format of each file",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runDetect,
}

func (a *app) detector() *format.Detector {
	return format.NewDetector(
		format.WithLogger(a.log),
		format.WithSampleSize(a.cfg.Detect.SampleBytes),
	)
}

func runDetect(cmd *cobra.Command, args []string) error {
	files, err := cli.expand(args)
	if err != nil {
		return err
	}

	d := cli.detector()
	out := cmd.OutOrStdout()
	for _, file := range files {
		res, err := d.DetectFile(file)
		if err != nil {
			cli.log.Warnw("cannot detect format", "file", file, "error", err)
			fmt.Fprintf(out, "%s\t%s\n", file, format.Unknown)
			continue
		}

		if res.Compression != format.None {
			fmt.Fprintf(out, "%s\t%s\t%s\n", file, res.Format, res.Compression)
		} else {
			fmt.Fprintf(out, "%s\t%s\n", file, res.Format)
		}
	}
	return nil
}
