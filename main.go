package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/yargevad/filepathx"
	"go.uber.org/zap"

	"github.com/rickbassham/fitscore/config"
	"github.com/rickbassham/fitscore/errors"
	"github.com/rickbassham/fitscore/logger"
)

// app carries the loaded configuration and logger to every command.
type app struct {
	cfg *config.Config
	log *zap.SugaredLogger

	configPath string
	verbosity  int
	jsonLogs   bool
}

var cli = &app{log: logger.Nop()}

var rootCmd = &cobra.Command{
	Use:   "fitscore",
	Short: "Inspect, stretch and convert astronomical FITS images and tables",
	Long: `fitscore works with FITS images and cubes, IPAC tables, Parquet and XISF files.

Configuration sources (in order of precedence):
1. Command line flags
2. Environment variables (FITSCORE_* prefix, e.g. FITSCORE_STRETCH_ALGORITHM)
3. The file given with --config (toml, yaml or json)
4. Default values

Examples:
  fitscore detect '**/*.fits'
  fitscore analyze --depth details image.fits
  fitscore stretch --algorithm asinh --lower zscale --upper zscale m31.fits
  fitscore table --filter "mag < 12" --sort mag sources.tbl`,
	SilenceUsage:      true,
	PersistentPreRunE: cli.setup,
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}

	if cmd.Flags().Changed("verbose") {
		cfg.Log.Verbosity = a.verbosity
	}
	if cmd.Flags().Changed("json-logs") {
		cfg.Log.JSON = a.jsonLogs
	}

	log, err := logger.New(logger.Options{JSON: cfg.Log.JSON, Verbosity: cfg.Log.Verbosity})
	if err != nil {
		return errors.Wrap(err, "failed to initialize logger")
	}

	a.cfg = cfg
	a.log = log
	return nil
}

// expand resolves each argument as a glob. Arguments that match nothing
// are kept so the command reports them.
func (a *app) expand(patterns []string) ([]string, error) {
	var files []string
	for _, p := range patterns {
		matches, err := filepathx.Glob(p)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid pattern %s", p)
		}
		if len(matches) == 0 {
			matches = []string{p}
		}
		a.log.Debugw("expanded pattern", "pattern", p, "files", len(matches))
		files = append(files, matches...)
	}
	return files, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cli.configPath, "config", "", "Configuration file (toml, yaml or json)")
	rootCmd.PersistentFlags().CountVarP(&cli.verbosity, "verbose", "v", "Increase output verbosity (-v, -vv)")
	rootCmd.PersistentFlags().BoolVar(&cli.jsonLogs, "json-logs", false, "Write logs as JSON")

	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(splitCmd)
	rootCmd.AddCommand(stretchCmd)
	rootCmd.AddCommand(wavelengthCmd)
	rootCmd.AddCommand(tableCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	err := rootCmd.Execute()
	cli.log.Sync()

	if err != nil {
		if hints := errors.FlattenHints(err); hints != "" {
			fmt.Fprintln(os.Stderr, "hint:", hints)
		}
		os.Exit(1)
	}
}
