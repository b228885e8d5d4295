package config_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/rickbassham/fitscore/common"
	"github.com/rickbassham/fitscore/config"
	"github.com/rickbassham/fitscore/errors"
	"github.com/rickbassham/fitscore/stretch"
)

func TestDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.False(t, cfg.Log.JSON)
	assert.Equal(t, 0, cfg.Log.Verbosity)
	assert.Equal(t, common.Normal, cfg.Depth())
	assert.Equal(t, 255, cfg.Stretch.Blank)
	assert.Equal(t, 32768, cfg.Detect.SampleBytes)

	rv, err := cfg.RangeValues()
	require.NoError(t, err)
	assert.Equal(t, stretch.DefaultRangeValues(), rv)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("FITSCORE_STRETCH_ALGORITHM", "asinh")
	t.Setenv("FITSCORE_STRETCH_LOWER", "sigma:-2")
	t.Setenv("FITSCORE_ANALYZE_DEPTH", "details")
	t.Setenv("FITSCORE_LOG_VERBOSITY", "2")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, common.Details, cfg.Depth())
	assert.Equal(t, 2, cfg.Log.Verbosity)

	rv, err := cfg.RangeValues()
	require.NoError(t, err)
	assert.Equal(t, stretch.Asinh, rv.Algorithm)
	assert.Equal(t, stretch.Bound{Kind: stretch.BoundSigma, Value: -2}, rv.Lower)
	assert.Equal(t, stretch.Bound{Kind: stretch.BoundPercentage, Value: 99}, rv.Upper)
}

func TestLoadFile(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "toml",
			file: "fitscore.toml",
			content: `
[stretch]
algorithm = "log"
upper = "zscale"
gamma = 3.5

[table]
strict = true
`,
		},
		{
			name: "yaml",
			file: "fitscore.yml",
			content: `
stretch:
  algorithm: log
  upper: zscale
  gamma: 3.5
table:
  strict: true
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), tt.file)
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			cfg, err := config.Load(path)
			require.NoError(t, err)
			assert.True(t, cfg.Table.Strict)

			rv, err := cfg.RangeValues()
			require.NoError(t, err)
			assert.Equal(t, stretch.Log, rv.Algorithm)
			assert.Equal(t, stretch.BoundZscale, rv.Upper.Kind)
			assert.Equal(t, 3.5, rv.Gamma)
			assert.Equal(t, stretch.Bound{Kind: stretch.BoundPercentage, Value: 1}, rv.Lower)
		})
	}
}

func TestLoadInvalid(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := config.Load(filepath.Join(t.TempDir(), "nope.toml"))
		assert.Error(t, err)
	})

	t.Run("bad depth", func(t *testing.T) {
		t.Setenv("FITSCORE_ANALYZE_DEPTH", "deep")
		_, err := config.Load("")
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrUnsupported))
		assert.NotEmpty(t, errors.GetAllHints(err))
	})

	t.Run("bad bound", func(t *testing.T) {
		t.Setenv("FITSCORE_STRETCH_UPPER", "percentage:120")
		_, err := config.Load("")
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrFormat))
	})

	t.Run("bad blank", func(t *testing.T) {
		t.Setenv("FITSCORE_STRETCH_BLANK", "300")
		_, err := config.Load("")
		assert.Error(t, err)
	})
}

func TestRender(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	data, err := config.Render(cfg, "toml")
	require.NoError(t, err)
	assert.Contains(t, string(data), "[stretch]")
	assert.Contains(t, string(data), "zscale_samples = 600")

	data, err = config.Render(cfg, "yaml")
	require.NoError(t, err)
	var fromYAML config.Config
	require.NoError(t, yaml.Unmarshal(data, &fromYAML))
	assert.Equal(t, *cfg, fromYAML)

	data, err = config.Render(cfg, "json")
	require.NoError(t, err)
	var fromJSON config.Config
	require.NoError(t, json.Unmarshal(data, &fromJSON))
	assert.Equal(t, *cfg, fromJSON)

	_, err = config.Render(cfg, "ini")
	assert.True(t, errors.Is(err, errors.ErrUnsupported))
}
