package config

import (
	"fmt"
	"os"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"firestige.xyz/actionengine/internal/core"
)

// ProgramConfig is an action program: the header layout, shared state and
// the actions a pipeline runs.
type ProgramConfig struct {
	HeaderTypes  []HeaderTypeConfig  `yaml:"header_types"`
	Headers      []HeaderConfig      `yaml:"headers"`
	Counters     []CounterConfig     `yaml:"counters"`
	Meters       []MeterConfig       `yaml:"meters"`
	Registers    []RegisterConfig    `yaml:"registers"`
	Calculations []CalculationConfig `yaml:"calculations"`
	Externs      []ExternConfig      `yaml:"externs"`
	Actions      []ActionConfig      `yaml:"actions"`
	Ingress      []string            `yaml:"ingress"` // action names run on every packet
	Egress       []string            `yaml:"egress"`  // action names run on packets that are not dropped
}

// HeaderTypeConfig declares a header type.
type HeaderTypeConfig struct {
	Name   string        `yaml:"name"`
	Fields []FieldConfig `yaml:"fields"`
}

// FieldConfig declares a field of a header type.
type FieldConfig struct {
	Name  string `yaml:"name"`
	Width int    `yaml:"width"` // bits
}

// HeaderConfig declares a header instance.
type HeaderConfig struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Metadata bool   `yaml:"metadata,omitempty"`
}

// CounterConfig declares a counter array.
type CounterConfig struct {
	Name string `yaml:"name"`
	Size int    `yaml:"size"`
}

// MeterConfig declares a meter array.
type MeterConfig struct {
	Name  string       `yaml:"name"`
	Type  string       `yaml:"type,omitempty"` // bytes | packets
	Size  int          `yaml:"size"`
	Rates []RateConfig `yaml:"rates,omitempty"` // committed then peak
}

// RateConfig is one meter rate.
type RateConfig struct {
	InfoRate  float64 `yaml:"info_rate"` // units per microsecond
	BurstSize uint64  `yaml:"burst_size"`
}

// RegisterConfig declares a register array.
type RegisterConfig struct {
	Name  string `yaml:"name"`
	Size  int    `yaml:"size"`
	Width int    `yaml:"width"`
}

// CalculationConfig declares a named calculation.
type CalculationConfig struct {
	Name      string   `yaml:"name"`
	Algorithm string   `yaml:"algorithm"`
	Fields    []string `yaml:"fields,omitempty"` // empty = whole packet
}

// ExternConfig declares an extern instance.
type ExternConfig struct {
	Name       string         `yaml:"name"`
	Type       string         `yaml:"type"`
	Attributes map[string]any `yaml:"attributes,omitempty"`
}

// ActionConfig declares an action.
type ActionConfig struct {
	Name  string       `yaml:"name"`
	Calls []CallConfig `yaml:"calls"`
}

// CallConfig is one primitive call.
type CallConfig struct {
	Primitive string   `yaml:"primitive"`
	Args      []string `yaml:"args,omitempty"`
}

// LoadProgram reads and validates an action program.
func LoadProgram(path string) (*ProgramConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read program file %s: %w", path, err)
	}
	return ParseProgram(data)
}

// ParseProgram parses and validates an action program.
func ParseProgram(data []byte) (*ProgramConfig, error) {
	var pc ProgramConfig
	if err := yaml.Unmarshal(data, &pc); err != nil {
		return nil, fmt.Errorf("failed to parse program: %w", err)
	}
	if err := pc.Validate(); err != nil {
		return nil, err
	}
	return &pc, nil
}

// Validate checks the parts of a program that need no layout to check.
// Name resolution happens when the program is bound.
func (pc *ProgramConfig) Validate() error {
	for i, ht := range pc.HeaderTypes {
		if ht.Name == "" {
			return invalid("header_types[%d]: name is required", i)
		}
		if len(ht.Fields) == 0 {
			return invalid("header type '%s' has no fields", ht.Name)
		}
	}
	for i, h := range pc.Headers {
		if h.Name == "" || h.Type == "" {
			return invalid("headers[%d]: name and type are required", i)
		}
	}
	for i, c := range pc.Counters {
		if c.Name == "" || c.Size <= 0 {
			return invalid("counters[%d]: name and a positive size are required", i)
		}
	}
	for i, m := range pc.Meters {
		if m.Name == "" || m.Size <= 0 {
			return invalid("meters[%d]: name and a positive size are required", i)
		}
		if len(m.Rates) > 2 {
			return invalid("meter '%s' has %d rates, at most 2 allowed", m.Name, len(m.Rates))
		}
	}
	for i, r := range pc.Registers {
		if r.Name == "" || r.Size <= 0 {
			return invalid("registers[%d]: name and a positive size are required", i)
		}
		if r.Width < 0 {
			return invalid("register '%s' has negative width", r.Name)
		}
	}
	for i, c := range pc.Calculations {
		if c.Name == "" || c.Algorithm == "" {
			return invalid("calculations[%d]: name and algorithm are required", i)
		}
	}
	for i, e := range pc.Externs {
		if e.Name == "" || e.Type == "" {
			return invalid("externs[%d]: name and type are required", i)
		}
	}
	for i, a := range pc.Actions {
		if a.Name == "" {
			return invalid("actions[%d]: name is required", i)
		}
		for j, c := range a.Calls {
			if c.Primitive == "" {
				return invalid("action '%s' call %d: primitive is required", a.Name, j)
			}
		}
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", core.ErrConfigInvalid, fmt.Sprintf(format, args...))
}

// AttributeValues decodes the attribute overrides of an extern instance.
// Values may be YAML integers or numeric strings such as "0x10".
func (e *ExternConfig) AttributeValues() (map[string]uint64, error) {
	out := make(map[string]uint64, len(e.Attributes))
	if len(e.Attributes) == 0 {
		return out, nil
	}
	if err := mapstructure.WeakDecode(e.Attributes, &out); err != nil {
		return nil, fmt.Errorf("%w: extern '%s' attributes: %v", core.ErrConfigInvalid, e.Name, err)
	}
	return out, nil
}
