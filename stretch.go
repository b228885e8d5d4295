package main

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rickbassham/fitscore/errors"
	"github.com/rickbassham/fitscore/fits"
	"github.com/rickbassham/fitscore/stretch"
)

var stretchCmd = &cobra.Command{
	Use:   "stretch <file>",
	Short: "Stretch a FITS image to an 8-bit greyscale PNG",
	Long: `Stretch one image plane of a FITS file to display bytes and write them as
an 8-bit greyscale PNG.

Bounds are given as kind:value where kind is absolute, percentage or sigma,
or as zscale. The defaults come from the stretch section of the config.`,
	Args: cobra.ExactArgs(1),
	RunE: runStretch,
}

var (
	stretchHDU       int
	stretchPlane     int
	stretchAlgorithm string
	stretchLower     string
	stretchUpper     string
	stretchGamma     float64
	stretchBeta      float64
	stretchOut       string
)

func init() {
	stretchCmd.Flags().IntVar(&stretchHDU, "hdu", -1, "HDU index of the image (default first image)")
	stretchCmd.Flags().IntVar(&stretchPlane, "plane", 0, "0-based plane of a cube")
	stretchCmd.Flags().StringVar(&stretchAlgorithm, "algorithm", "", "linear, log, loglog, equal, squared, sqrt, powerlaw_gamma or asinh")
	stretchCmd.Flags().StringVar(&stretchLower, "lower", "", "Lower bound, e.g. percentage:1")
	stretchCmd.Flags().StringVar(&stretchUpper, "upper", "", "Upper bound, e.g. sigma:3")
	stretchCmd.Flags().Float64Var(&stretchGamma, "gamma", 0, "Gamma of powerlaw_gamma")
	stretchCmd.Flags().Float64Var(&stretchBeta, "beta", 0, "Softening of asinh")
	stretchCmd.Flags().StringVarP(&stretchOut, "out", "o", "", "PNG file (default <file>.png)")
}

// rangeValues applies the command line over the configured stretch.
func rangeValues(cmd *cobra.Command) (stretch.RangeValues, error) {
	rv, err := cli.cfg.RangeValues()
	if err != nil {
		return rv, err
	}

	var opts []stretch.RangeOption
	if stretchAlgorithm != "" {
		a, err := stretch.ParseAlgorithm(stretchAlgorithm)
		if err != nil {
			return rv, err
		}
		opts = append(opts, stretch.WithAlgorithm(a))
	}
	lower, upper := rv.Lower, rv.Upper
	if stretchLower != "" {
		if lower, err = stretch.ParseBound(stretchLower); err != nil {
			return rv, err
		}
	}
	if stretchUpper != "" {
		if upper, err = stretch.ParseBound(stretchUpper); err != nil {
			return rv, err
		}
	}
	opts = append(opts, stretch.WithBounds(lower, upper))
	if cmd.Flags().Changed("gamma") {
		opts = append(opts, stretch.WithGamma(stretchGamma))
	}
	if cmd.Flags().Changed("beta") {
		opts = append(opts, stretch.WithBeta(stretchBeta))
	}

	for _, o := range opts {
		o(&rv)
	}
	return rv, rv.Validate()
}

// selectImage returns the 2-D image at hdu, or the first image when hdu
// is negative, taking plane from a cube.
func selectImage(images []*fits.ImageHDU, hdu, plane int) (*fits.ImageHDU, error) {
	var img *fits.ImageHDU
	for _, im := range images {
		if hdu < 0 || im.Index == hdu {
			img = im
			break
		}
	}
	if img == nil {
		if hdu < 0 {
			return nil, errors.NotFoundf("no image HDU found")
		}
		return nil, errors.NotFoundf("HDU %d is not an image", hdu)
	}

	if !fits.IsCube(img) {
		return img, nil
	}
	planes, err := fits.SplitCube(img)
	if err != nil {
		return nil, err
	}
	if plane < 0 || plane >= len(planes) {
		return nil, errors.PixelBoundsf("plane %d outside the %d planes of HDU %d", plane, len(planes), img.Index)
	}
	return planes[plane], nil
}

func runStretch(cmd *cobra.Command, args []string) error {
	rv, err := rangeValues(cmd)
	if err != nil {
		return err
	}

	images, err := readImages(args[0])
	if err != nil {
		return err
	}
	img, err := selectImage(images, stretchHDU, stretchPlane)
	if err != nil {
		return err
	}

	nx, ny := img.Width(), img.Height()
	pixels := img.Pixels[:nx*ny]

	res := stretch.NewRangeResolver(pixels, nx, ny, nil, img.Header)
	blank := byte(cli.cfg.Stretch.Blank)
	data := stretch.NewEngine(stretch.WithLogger(cli.log)).StretchWith(pixels, res, rv, blank)

	out := stretchOut
	if out == "" {
		base := filepath.Base(args[0])
		out = strings.TrimSuffix(base, filepath.Ext(base)) + ".png"
	}
	if err := writePNG(out, data, nx, ny); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\tlow=%g\thigh=%g\n", out, rv, res.Slow(rv), res.Shigh(rv))
	return nil
}

// writePNG writes display bytes as a greyscale image. FITS rows run
// bottom to top.
func writePNG(path string, data []byte, nx, ny int) error {
	im := image.NewGray(image.Rect(0, 0, nx, ny))
	for y := 0; y < ny; y++ {
		copy(im.Pix[(ny-1-y)*im.Stride:], data[y*nx:(y+1)*nx])
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "error creating %s", path)
	}
	defer f.Close()

	if err := png.Encode(f, im); err != nil {
		return errors.Wrapf(err, "error encoding %s", path)
	}
	return f.Close()
}
