package machine

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultRAMSize is used when a configuration does not size RAM.
const DefaultRAMSize Size = 128 << 20

// Size is a byte count that reads from and writes to YAML as "128M", "2G"
// or a plain number.
type Size uint64

// ParseSize parses a byte count with an optional K, M, G or T suffix
// (powers of 1024). A trailing "B" or "iB" is accepted. Hex values take no
// suffix.
func ParseSize(s string) (Size, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("size: empty value")
	}
	upper := strings.ToUpper(s)
	if strings.HasPrefix(upper, "0X") {
		n, err := strconv.ParseUint(upper[2:], 16, 64)
		if err != nil {
			return 0, fmt.Errorf("size: invalid value %q", s)
		}
		return Size(n), nil
	}
	upper = strings.TrimSuffix(strings.TrimSuffix(upper, "B"), "I")
	if upper == "" {
		return 0, fmt.Errorf("size: invalid value %q", s)
	}

	shift := 0
	switch upper[len(upper)-1] {
	case 'K':
		shift = 10
	case 'M':
		shift = 20
	case 'G':
		shift = 30
	case 'T':
		shift = 40
	}
	if shift != 0 {
		upper = upper[:len(upper)-1]
	}

	n, err := strconv.ParseUint(upper, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("size: invalid value %q", s)
	}
	if shift != 0 && n > (^uint64(0))>>shift {
		return 0, fmt.Errorf("size: %q overflows", s)
	}
	return Size(n << shift), nil
}

// String formats the size with the largest exact binary suffix.
func (s Size) String() string {
	for _, u := range []struct {
		shift  uint
		suffix string
	}{{40, "T"}, {30, "G"}, {20, "M"}, {10, "K"}} {
		if s != 0 && uint64(s)%(1<<u.shift) == 0 {
			return strconv.FormatUint(uint64(s)>>u.shift, 10) + u.suffix
		}
	}
	return strconv.FormatUint(uint64(s), 10)
}

// Set implements flag.Value.
func (s *Size) Set(v string) error {
	n, err := ParseSize(v)
	if err != nil {
		return err
	}
	*s = n
	return nil
}

func (s *Size) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("size: line %d: expected a scalar", value.Line)
	}
	n, err := ParseSize(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*s = n
	return nil
}

func (s Size) MarshalYAML() (interface{}, error) {
	return s.String(), nil
}

// Config is the requested machine.
type Config struct {
	Machine  string   `yaml:"machine"`
	CPUType  string   `yaml:"cpu,omitempty"`
	RAMSize  Size     `yaml:"memory,omitempty"`
	Topology Topology `yaml:"smp"`

	// Firmware is a raw image copied into the board flash.
	Firmware string `yaml:"firmware,omitempty"`

	// Serial names the backend of each serial port in order: "stdio",
	// "null" or "file:<path>".
	Serial []string `yaml:"serial,omitempty"`
}

func (c *Config) normalize() {
	if c.RAMSize == 0 {
		c.RAMSize = DefaultRAMSize
	}
	if c.Topology.CPUs == 0 {
		c.Topology.CPUs = 1
	}
}

// LoadConfig reads a YAML machine description.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes a YAML machine description and fills in defaults.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse machine config: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

// WriteConfig encodes cfg as YAML.
func WriteConfig(path string, cfg Config) error {
	cfg.normalize()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(&cfg); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}
