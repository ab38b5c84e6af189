// Copyright ©2025 curioloop. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package mkl

import (
	"math"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// SolverType selects the backend family used to recompute weights.
type SolverType int

const (
	// SolverAuto uses the linear backend for p = 1 and the internal solvers otherwise.
	SolverAuto SolverType = iota
	// SolverLP forces the linear backend for p = 1.
	SolverLP
	// SolverQP routes every norm through the cutting-plane program on the quadratic backend.
	SolverQP
	// SolverInternal uses the analytic or Newton update and always solves when p > 1.
	SolverInternal
)

var solverNames = [...]string{"auto", "lp", "qp", "internal"}

func (s SolverType) String() string {
	if s < 0 || int(s) >= len(solverNames) {
		return "unknown"
	}
	return solverNames[s]
}

func (s SolverType) MarshalText() ([]byte, error) {
	if s < 0 || int(s) >= len(solverNames) {
		return nil, errors.Wrapf(ErrConfig, "solver type %d", int(s))
	}
	return []byte(solverNames[s]), nil
}

func (s *SolverType) UnmarshalText(text []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(text)))
	for i, n := range solverNames {
		if n == name {
			*s = SolverType(i)
			return nil
		}
	}
	return errors.Wrapf(ErrConfig, "unknown solver %q", string(text))
}

// Config is fixed before training starts.
type Config struct {
	Norm          float64    `yaml:"norm"`           // p ≥ 1
	Epsilon       float64    `yaml:"epsilon"`        // duality gap threshold
	CMKL          float64    `yaml:"c_mkl"`          // smoothness penalty, 0 disables smoothness rows
	WeightEpsilon float64    `yaml:"weight_epsilon"` // q-norm inner loop tolerance
	Solver        SolverType `yaml:"solver"`
	Analytic      bool       `yaml:"analytic"` // closed form update instead of Newton
}

// DefaultConfig is 1-norm MKL with the automatic backend choice.
func DefaultConfig() Config {
	return Config{
		Norm:          1,
		Epsilon:       1e-5,
		WeightEpsilon: 1e-5,
		Solver:        SolverAuto,
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() (err error) {
	switch {
	case math.IsInf(c.Norm, 1):
		err = errors.Wrap(ErrConfig, "infinite norm is not supported")
	case !(c.Norm >= 1):
		err = errors.Wrapf(ErrConfig, "norm %g must not less than 1", c.Norm)
	case !(c.Epsilon > 0):
		err = errors.Wrapf(ErrConfig, "epsilon %g must greater than 0", c.Epsilon)
	case !(c.CMKL >= 0) || math.IsInf(c.CMKL, 1):
		err = errors.Wrapf(ErrConfig, "smoothness penalty %g must be finite and not less than 0", c.CMKL)
	case !(c.WeightEpsilon > 0):
		err = errors.Wrapf(ErrConfig, "weight epsilon %g must greater than 0", c.WeightEpsilon)
	case c.Solver < SolverAuto || c.Solver > SolverInternal:
		err = errors.Wrapf(ErrConfig, "solver type %d", int(c.Solver))
	}
	return
}

// ParseConfig decodes YAML over DefaultConfig and validates the result.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrap(ErrConfig, err.Error())
	}
	return cfg, cfg.Validate()
}

// LoadConfig reads a YAML configuration file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return DefaultConfig(), errors.Wrapf(err, "read config %s", path)
	}
	return ParseConfig(data)
}
