package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rickbassham/fitscore/errors"
	"github.com/rickbassham/fitscore/fits"
	"github.com/rickbassham/fitscore/format"
)

var splitCmd = &cobra.Command{
	Use:   "split <file>",
	Short: "Write each plane of a FITS cube to its own file",
	Long: `Write each plane of every FITS cube in a file to its own FITS file.

File names come from --pattern. {KEYWORD} inserts a header value of the
plane and {KEYWORD:format} formats it with a printf verb. String values
can be formatted as dates with {DATE-OBS:date2006-01-02} or {DATE-OBS:dateunix}.
Each plane header carries SPOT_PL, the 0-based plane number, and SPOT_WL
when the cube has a spectral third axis.`,
	Args: cobra.ExactArgs(1),
	RunE: runSplit,
}

var (
	splitPattern   string
	splitSuffix    string
	splitOutDir    string
	splitDryRun    bool
	splitNoSpace   bool
	splitDefaults  = defaultMap{}
	splitOverrides = defaultMap{}
)

func init() {
	splitCmd.Flags().StringVar(&splitPattern, "pattern", "{OBJECT}_{SPOT_PL:%03d}.fits", "File name pattern for each plane")
	splitCmd.Flags().StringVar(&splitSuffix, "suffix", "_%03d", "Appended before the extension when a name is taken. It will be sent to fmt.Sprintf with a counter.")
	splitCmd.Flags().StringVar(&splitOutDir, "out-dir", ".", "Directory for the plane files")
	splitCmd.Flags().BoolVar(&splitDryRun, "dry-run", false, "Don't actually write the files, just print what we would do.")
	splitCmd.Flags().BoolVar(&splitNoSpace, "no-space", false, "Replace spaces in tokens with underscore.")
	splitCmd.Flags().Var(splitDefaults, "defaults", "Specifies default values to use if a FITS header is missing. Ex: OBJECT=M31;FILTER=Ha")
	splitCmd.Flags().Var(splitOverrides, "overrides", "Specifies values to override in a FITS header. Ex: OBJECT=M31")
}

func runSplit(cmd *cobra.Command, args []string) error {
	if !checkSuffix.MatchString(splitSuffix) {
		return errors.WithHint(
			errors.Formatf("suffix %q has no %%d modifier", splitSuffix),
			"a %d modifier keeps plane file names unique",
		)
	}

	images, err := readImages(args[0])
	if err != nil {
		return err
	}

	tmpl := newTemplate(splitPattern, splitDefaults, splitOverrides, splitNoSpace)
	taken := map[string]bool{}
	written := 0

	for _, img := range images {
		if !fits.IsCube(img) {
			cli.log.Debugw("skipping non-cube HDU", "file", args[0], "hdu", img.Index, "naxis", img.Naxis)
			continue
		}

		planes, err := fits.SplitCube(img)
		if err != nil {
			return errors.Wrapf(err, "HDU %d", img.Index)
		}

		for _, plane := range planes {
			name, err := tmpl.render(plane.Header)
			if err != nil {
				return err
			}
			newName := getFileNumberPath(filepath.Join(splitOutDir, name), splitSuffix, taken)
			taken[newName] = true

			cli.log.Infow("writing plane", "file", args[0], "hdu", img.Index, "plane", *plane.Part().Plane, "to", newName)
			fmt.Fprintln(cmd.OutOrStdout(), newName)

			if splitDryRun {
				continue
			}
			if err := writePlane(newName, plane); err != nil {
				return err
			}
			written++
		}
	}

	if len(taken) == 0 {
		cli.log.Warnw("no cube found", "file", args[0])
	}
	cli.log.Infow("done", "planes", len(taken), "written", written)
	return nil
}

func readImages(path string) ([]*fits.ImageHDU, error) {
	rc, _, err := format.Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	images, err := fits.ReadImages(rc)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	return images, nil
}

func writePlane(path string, img *fits.ImageHDU) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "error creating directory for %s", path)
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "error creating %s", path)
	}
	defer f.Close()

	if err := fits.WriteImages(f, []*fits.ImageHDU{img}); err != nil {
		return errors.Wrapf(err, "error writing %s", path)
	}
	return f.Close()
}
