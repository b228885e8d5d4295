package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rickbassham/fitscore/common"
	"github.com/rickbassham/fitscore/errors"
	"github.com/rickbassham/fitscore/fits"
	"github.com/rickbassham/fitscore/format"
	"github.com/rickbassham/fitscore/ipac"
	"github.com/rickbassham/fitscore/parquet"
	"github.com/rickbassham/fitscore/xisf"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <glob>...",
	Short: "Describe the parts of FITS, IPAC, Parquet and XISF files",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAnalyze,
}

var (
	analyzeDepth  string
	analyzeOutput string
)

func init() {
	analyzeCmd.Flags().StringVar(&analyzeDepth, "depth", "", "Analysis depth: brief, normal or details (default from config)")
	analyzeCmd.Flags().StringVarP(&analyzeOutput, "output", "o", "text", "Output format: text, yaml or json")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	depth := cli.cfg.Depth()
	if analyzeDepth != "" {
		d, err := common.ParseDepth(analyzeDepth)
		if err != nil {
			return err
		}
		depth = d
	}

	files, err := cli.expand(args)
	if err != nil {
		return err
	}

	var reports []*common.Report
	for _, file := range files {
		r, err := cli.analyze(file, depth)
		if err != nil {
			cli.log.Errorw("analysis failed", "file", file, "error", err)
			continue
		}
		reports = append(reports, r)
	}

	return printReports(cmd.OutOrStdout(), reports, analyzeOutput)
}

func (a *app) analyze(path string, depth common.Depth) (*common.Report, error) {
	res, err := a.detector().DetectFile(path)
	if err != nil {
		return nil, err
	}
	a.log.Infow("analyzing", "file", path, "format", res.Format)

	switch res.Format {
	case format.FITS:
		return fits.NewAnalyzer(fits.WithLogger(a.log)).Analyze(path, depth)
	case format.IPACTable, format.FixedTargets:
		return a.analyzeTable(path, depth)
	case format.Parquet:
		return parquet.Analyze(path, depth)
	case format.XISF:
		return a.analyzeXISF(path, depth)
	}

	st, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to stat %s", path)
	}
	return &common.Report{
		FilePath: path,
		FileName: filepath.Base(path),
		FileSize: st.Size(),
		Format:   res.Format.String(),
		Type:     common.Unknown.String(),
		Depth:    depth,
	}, nil
}

// seekable returns the decompressed content of path as a ReadSeeker.
func seekable(path string) (io.ReadSeeker, func() error, error) {
	rc, c, err := format.Open(path)
	if err != nil {
		return nil, nil, err
	}
	if c == format.None {
		rc.Close()
		f, err := os.Open(path)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "failed to open %s", path)
		}
		return f, f.Close, nil
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "failed to decompress %s", path)
	}
	return bytes.NewReader(data), func() error { return nil }, nil
}

func (a *app) analyzeTable(path string, depth common.Depth) (*common.Report, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to stat %s", path)
	}

	r, closer, err := seekable(path)
	if err != nil {
		return nil, err
	}
	defer closer()

	def, err := ipac.GetMetaInfo(r, ipac.WithLogger(a.log))
	if err != nil {
		return nil, err
	}

	var cards []common.Card
	desc := "IPAC Table"
	for _, attr := range def.Attributes {
		if attr.Comment {
			continue
		}
		if strings.EqualFold(attr.Key, "title") {
			desc = attr.Value
		}
		cards = append(cards, common.Card{Key: attr.Key, Value: attr.Value})
	}

	part := common.Part{
		Index: 0,
		Kind:  common.Table,
		Desc:  desc,
		Rows:  def.RowCount,
		Cols:  len(def.Columns),
	}
	if depth == common.Details {
		part.Header = common.HeaderTable("Keywords", common.NewHeader(cards...))
	}

	return &common.Report{
		FilePath: path,
		FileName: filepath.Base(path),
		FileSize: st.Size(),
		Format:   format.IPACTable.String(),
		Type:     "Table",
		Depth:    depth,
		Parts:    []common.Part{part},
	}, nil
}

func (a *app) analyzeXISF(path string, depth common.Depth) (*common.Report, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to stat %s", path)
	}

	rc, _, err := format.Open(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	r, err := xisf.Analyze(rc, depth)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	r.FilePath = path
	r.FileName = filepath.Base(path)
	r.FileSize = st.Size()
	return r, nil
}

func printReports(w io.Writer, reports []*common.Report, output string) error {
	switch strings.ToLower(output) {
	case "json":
		data, err := json.MarshalIndent(reports, "", "  ")
		if err != nil {
			return errors.Wrap(err, "failed to marshal report to JSON")
		}
		fmt.Fprintln(w, string(data))
		return nil
	case "yaml":
		data, err := yaml.Marshal(reports)
		if err != nil {
			return errors.Wrap(err, "failed to marshal report to YAML")
		}
		_, err = w.Write(data)
		return err
	case "", "text":
	default:
		return errors.Unsupportedf("unsupported output format: %s (supported: text, yaml, json)", output)
	}

	for _, r := range reports {
		fmt.Fprintf(w, "%s: %s %s, %d bytes\n", r.FilePath, r.Format, r.Type, r.FileSize)
		for _, p := range r.Parts {
			fmt.Fprintf(w, "  [%d] %-10s %s", p.Index, p.Kind, p.Desc)
			switch {
			case p.Kind == common.Table:
				fmt.Fprintf(w, " (%d rows x %d cols)", p.Rows, p.Cols)
			case len(p.Naxis) > 0:
				fmt.Fprintf(w, " %v", p.Naxis)
			}
			fmt.Fprintln(w)

			if p.Header != nil {
				if err := ipac.Write(w, p.Header); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
