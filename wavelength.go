package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rickbassham/fitscore/common"
	"github.com/rickbassham/fitscore/errors"
	"github.com/rickbassham/fitscore/fits"
	"github.com/rickbassham/fitscore/format"
	"github.com/rickbassham/fitscore/wavelength"
)

var wavelengthCmd = &cobra.Command{
	Use:   "wavelength <file>",
	Short: "Print the wavelength at an image point of a spectral cube",
	Args:  cobra.ExactArgs(1),
	RunE:  runWavelength,
}

var (
	wlX     float64
	wlY     float64
	wlPlane int
	wlHDU   int
)

func init() {
	wavelengthCmd.Flags().Float64Var(&wlX, "x", 0, "Image x in pixels")
	wavelengthCmd.Flags().Float64Var(&wlY, "y", 0, "Image y in pixels")
	wavelengthCmd.Flags().IntVar(&wlPlane, "plane", -1, "0-based plane (default SPOT_PL of the header)")
	wavelengthCmd.Flags().IntVar(&wlHDU, "hdu", -1, "HDU index (default first HDU with CTYPE3)")
	wavelengthCmd.MarkFlagRequired("x")
	wavelengthCmd.MarkFlagRequired("y")
}

func readHeaders(path string) ([]*common.Header, error) {
	rc, _, err := format.Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return fits.NewDecoder(rc).ReadHeaders()
}

func readLookupTable(path, extname string) (*fits.BinaryTable, error) {
	rc, _, err := format.Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return fits.ReadBinaryTable(rc, extname)
}

func runWavelength(cmd *cobra.Command, args []string) error {
	hdrs, err := readHeaders(args[0])
	if err != nil {
		return err
	}

	var hdr *common.Header
	switch {
	case wlHDU >= len(hdrs):
		return errors.NotFoundf("HDU %d not found, %s has %d", wlHDU, args[0], len(hdrs))
	case wlHDU >= 0:
		hdr = hdrs[wlHDU]
	default:
		for _, h := range hdrs {
			if h.Has("CTYPE3") {
				hdr = h
				break
			}
		}
		if hdr == nil {
			return errors.WithHint(errors.NotFoundf("no HDU with CTYPE3 in %s", args[0]), "select one with --hdu")
		}
	}

	opts := []wavelength.Option{wavelength.WithLogger(cli.log)}
	r, err := wavelength.NewResolver(hdr, opts...)
	if err != nil {
		return err
	}

	if name, ok := r.TableName(); ok {
		tbl, err := readLookupTable(args[0], name)
		if err != nil {
			return err
		}
		r, err = wavelength.NewResolver(hdr, append(opts, wavelength.WithTable(tbl))...)
		if err != nil {
			return err
		}
	}

	lambda, err := r.Wavelength(wlX, wlY, wlPlane)
	if err != nil {
		return err
	}
	cli.log.Debugw("wavelength", "x", wlX, "y", wlY, "plane", wlPlane, "algorithm", r.Algorithm())

	fmt.Fprintf(cmd.OutOrStdout(), "%g\n", lambda)
	return nil
}
