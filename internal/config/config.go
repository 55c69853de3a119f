// Package config holds the run settings. Values start from Default, are
// overridden by a TOML file and then by command line flags.
//
//	[compression]
//	rate = 10.0
//	layers = 4
//	threads = 8
//	codec = "zstd"
//	levels = 0
//
//	[container]
//	dataset = "/exchange/data"
//	output_dataset = ""
//	filter_id = 32026
//
//	[log]
//	log_file = "/var/log/tomoslice.log"
//	level = "info"
//	max_log_size = 100
//	max_log_age = 30
package config

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/robert-malhotra/tomoslice/internal/compress"
	"github.com/robert-malhotra/tomoslice/internal/frame"
	"github.com/robert-malhotra/tomoslice/internal/logging"
	"github.com/robert-malhotra/tomoslice/internal/wavelet"
)

// DefaultDataset is where tomography exchange files keep projections.
const DefaultDataset = "/exchange/data"

// ErrInvalid reports a setting outside its range.
var ErrInvalid = errors.New("config: invalid setting")

type Compression struct {
	Rate    float64 `toml:"rate"`
	Layers  int     `toml:"layers"`
	Threads int     `toml:"threads"`
	Codec   string  `toml:"codec"`
	Levels  int     `toml:"levels"`
}

type Container struct {
	Dataset       string `toml:"dataset"`
	OutputDataset string `toml:"output_dataset"` // empty means Dataset
	FilterID      int    `toml:"filter_id"`
}

type Config struct {
	Compression Compression    `toml:"compression"`
	Container   Container      `toml:"container"`
	Log         logging.Config `toml:"log"`
}

// Default returns the built in settings.
func Default() Config {
	p := wavelet.DefaultParams()
	return Config{
		Compression: Compression{
			Rate:    p.Rate,
			Layers:  p.Layers,
			Threads: p.Threads,
			Codec:   p.Format.String(),
		},
		Container: Container{
			Dataset:  DefaultDataset,
			FilterID: int(frame.FilterID),
		},
		Log: logging.Config{Level: "info"},
	}
}

// Load reads path over the defaults. Keys the file sets but Config does
// not know are an error.
func Load(path string) (Config, error) {
	c := Default()
	if err := c.Merge(path); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Merge decodes path over c.
func (c *Config) Merge(path string) error {
	md, err := toml.DecodeFile(path, c)
	if err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("%w: unknown keys in %s: %s", ErrInvalid, path, strings.Join(keys, ", "))
	}
	return nil
}

// Validate checks every setting without touching any file.
func (c Config) Validate() error {
	cp := c.Compression
	switch {
	case math.IsNaN(cp.Rate) || math.IsInf(cp.Rate, 0) || cp.Rate < 0:
		return fmt.Errorf("%w: rate %v", ErrInvalid, cp.Rate)
	case cp.Layers < 1 || cp.Layers > wavelet.MaxLayers:
		return fmt.Errorf("%w: layers %d, want 1..%d", ErrInvalid, cp.Layers, wavelet.MaxLayers)
	case cp.Threads < 1 || cp.Threads > wavelet.MaxThreads:
		return fmt.Errorf("%w: threads %d, want 1..%d", ErrInvalid, cp.Threads, wavelet.MaxThreads)
	case cp.Levels < 0 || cp.Levels > wavelet.MaxLevels:
		return fmt.Errorf("%w: levels %d, want 0..%d", ErrInvalid, cp.Levels, wavelet.MaxLevels)
	}
	if _, err := compress.ParseType(cp.Codec); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if c.Container.Dataset == "" {
		return fmt.Errorf("%w: empty dataset path", ErrInvalid)
	}
	// ids below 256 are reserved for filters defined by the format
	if c.Container.FilterID < 256 || c.Container.FilterID > math.MaxUint16 {
		return fmt.Errorf("%w: filter id %d, want 256..65535", ErrInvalid, c.Container.FilterID)
	}
	if _, err := logging.ParseMode(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Params converts the compression section. Call Validate first.
func (c Config) Params() (wavelet.Params, error) {
	format, err := compress.ParseType(c.Compression.Codec)
	if err != nil {
		return wavelet.Params{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return wavelet.Params{
		Rate:    c.Compression.Rate,
		Layers:  c.Compression.Layers,
		Threads: c.Compression.Threads,
		Format:  format,
		Levels:  c.Compression.Levels,
	}, nil
}

// DestinationDataset is the output dataset path.
func (c Config) DestinationDataset() string {
	if c.Container.OutputDataset != "" {
		return c.Container.OutputDataset
	}
	return c.Container.Dataset
}
