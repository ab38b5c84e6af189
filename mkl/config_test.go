// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mkl

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
norm: 2
epsilon: 0.001
c_mkl: 0.5
solver: QP
analytic: true
`))
	require.NoError(t, err)
	assert.Equal(t, Config{
		Norm:          2,
		Epsilon:       0.001,
		CMKL:          0.5,
		WeightEpsilon: 1e-5,
		Solver:        SolverQP,
		Analytic:      true,
	}, cfg)

	cfg, err = ParseConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestParseConfigInvalid(t *testing.T) {
	for _, doc := range []string{
		"norm: .inf",
		"norm: 0.5",
		"epsilon: 0",
		"c_mkl: -1",
		"weight_epsilon: -0.1",
		"solver: cplex",
		"norm: [1, 2]",
	} {
		_, err := ParseConfig([]byte(doc))
		assert.ErrorIs(t, err, ErrConfig, doc)
	}
}

func TestConfigMarshal(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Solver = SolverInternal
	out, err := yaml.Marshal(cfg)
	require.NoError(t, err)
	assert.Contains(t, string(out), "solver: internal")

	back, err := ParseConfig(out)
	require.NoError(t, err)
	assert.Equal(t, cfg, back)

	_, err = SolverType(9).MarshalText()
	assert.ErrorIs(t, err, ErrConfig)
	assert.Equal(t, "unknown", SolverType(-1).String())
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mkl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("norm: 1.5\nsolver: lp\n"), 0o600))
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 1.5, cfg.Norm)
	assert.Equal(t, SolverLP, cfg.Solver)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
