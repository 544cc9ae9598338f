package wmediumd

//
// Configuration loader
//

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"

	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the daemon configuration. At most one of Links,
// ErrorProbs, and PathLoss may be present; they select the link
// model.
type Config struct {
	// Stations declares the virtual stations, in index order.
	Stations []StationConfig `koanf:"stations"`

	// Links lists explicit [a, b, snr] triples; the SNR applies
	// to both directions.
	Links [][]int `koanf:"links"`

	// Directions lists [src, dst, snr] one-way overrides applied
	// after Links.
	Directions [][]int `koanf:"directions"`

	// ErrorProbs is an N×N matrix of per-link error probabilities.
	ErrorProbs [][]float64 `koanf:"error_probs"`

	// PathLoss selects the log-distance path-loss model.
	PathLoss *PathLossConfig `koanf:"path_loss"`

	// Interference enables the interference accumulator.
	Interference bool `koanf:"interference"`

	// Seed seeds the medium's random number generator; zero means
	// seed from the clock.
	Seed int64 `koanf:"seed"`
}

// StationConfig declares one station.
type StationConfig struct {
	// Addr is the station's virtual MAC address.
	Addr string `koanf:"addr"`

	// Position is the [x, y] position in meters.
	Position []float64 `koanf:"position"`

	// Direction is the [dx, dy] movement applied every move
	// interval, in meters.
	Direction []float64 `koanf:"direction"`

	// TXPower is the transmit power in dBm.
	TXPower *int `koanf:"tx_power"`
}

// PathLossConfig parameterizes the log-distance model.
type PathLossConfig struct {
	// Exponent is the path-loss exponent γ.
	Exponent float64 `koanf:"exponent"`

	// Xg is the fading offset in dB.
	Xg float64 `koanf:"xg"`
}

// Configuration errors.
var (
	// ErrConfigNoStations indicates an empty station list.
	ErrConfigNoStations = errors.New("wmediumd: config: no stations")

	// ErrConfigAddr indicates a bad or duplicate station address.
	ErrConfigAddr = errors.New("wmediumd: config: bad station address")

	// ErrConfigExclusive indicates more than one link-model
	// selection.
	ErrConfigExclusive = errors.New("wmediumd: config: links, error_probs and path_loss are mutually exclusive")

	// ErrConfigLink indicates a malformed link entry.
	ErrConfigLink = errors.New("wmediumd: config: bad link entry")

	// ErrConfigMatrix indicates a malformed error-probability
	// matrix.
	ErrConfigMatrix = errors.New("wmediumd: config: bad error_probs matrix")

	// ErrConfigPosition indicates missing or malformed positions
	// for the path-loss model.
	ErrConfigPosition = errors.New("wmediumd: config: bad station position")
)

// ParseMAC parses a colon-separated MAC address.
func ParseMAC(s string) (MAC, error) {
	var addr MAC
	parts := strings.Split(s, ":")
	if len(parts) != len(addr) {
		return MAC{}, fmt.Errorf("%w: %q", ErrConfigAddr, s)
	}
	for idx, part := range parts {
		octet, err := strconv.ParseUint(part, 16, 8)
		if err != nil {
			return MAC{}, fmt.Errorf("%w: %q", ErrConfigAddr, s)
		}
		addr[idx] = byte(octet)
	}
	return addr, nil
}

// LoadConfig reads and validates a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), kyaml.Parser()); err != nil {
		return nil, err
	}
	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks internal consistency.
func (cfg *Config) Validate() error {
	n := len(cfg.Stations)
	if n == 0 {
		return ErrConfigNoStations
	}

	seen := map[MAC]bool{}
	for idx, sc := range cfg.Stations {
		addr, err := ParseMAC(sc.Addr)
		if err != nil {
			return err
		}
		if seen[addr] {
			return fmt.Errorf("%w: duplicate %q", ErrConfigAddr, sc.Addr)
		}
		seen[addr] = true
		if len(sc.Position) != 0 && len(sc.Position) != 2 {
			return fmt.Errorf("%w: station %d", ErrConfigPosition, idx)
		}
		if len(sc.Direction) != 0 && len(sc.Direction) != 2 {
			return fmt.Errorf("%w: station %d", ErrConfigPosition, idx)
		}
	}

	selected := 0
	if len(cfg.Links) > 0 {
		selected++
	}
	if len(cfg.ErrorProbs) > 0 {
		selected++
	}
	if cfg.PathLoss != nil {
		selected++
	}
	if selected > 1 {
		return ErrConfigExclusive
	}

	for _, link := range append(append([][]int{}, cfg.Links...), cfg.Directions...) {
		if len(link) != 3 {
			return ErrConfigLink
		}
		a, b := link[0], link[1]
		if a < 0 || a >= n || b < 0 || b >= n || a == b {
			return fmt.Errorf("%w: [%d %d]", ErrConfigLink, a, b)
		}
	}

	if len(cfg.ErrorProbs) > 0 {
		if len(cfg.ErrorProbs) != n {
			return fmt.Errorf("%w: want %d rows", ErrConfigMatrix, n)
		}
		for _, row := range cfg.ErrorProbs {
			if len(row) != n {
				return fmt.Errorf("%w: want %d columns", ErrConfigMatrix, n)
			}
			for _, prob := range row {
				if prob < 0 || prob > 1 {
					return fmt.Errorf("%w: probability out of range", ErrConfigMatrix)
				}
			}
		}
	}

	if cfg.PathLoss != nil {
		for idx, sc := range cfg.Stations {
			if len(sc.Position) != 2 {
				return fmt.Errorf("%w: station %d needs a position", ErrConfigPosition, idx)
			}
		}
	}

	return nil
}

// LoadPERTable reads a PER table file.
func LoadPERTable(path string) (*PERTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParsePERTable(f)
}

// Build assembles the medium: station table, link model,
// interference accumulator. The PER lookup defaults to the builtin
// table; mcfg carries the ambient pieces (logger, metrics, capture).
func (cfg *Config) Build(mcfg *MediumConfig, per PERFunc) (*Medium, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if per == nil {
		per = BuiltinPERTable().ErrorProb
	}
	n := len(cfg.Stations)

	var model LinkModel
	var pathLoss *PathLossModel
	switch {
	case len(cfg.ErrorProbs) > 0:
		em := NewErrorProbModel(n)
		for src, row := range cfg.ErrorProbs {
			for dst, prob := range row {
				if src != dst {
					em.probs[src*n+dst] = prob
				}
			}
		}
		model = em

	case cfg.PathLoss != nil:
		pathLoss = NewPathLossModel(n, cfg.PathLoss.Exponent, cfg.PathLoss.Xg, per)
		model = pathLoss

	case len(cfg.Links) > 0 || len(cfg.Directions) > 0:
		sm := NewSNRMatrixModel(n, per)
		for _, link := range cfg.Links {
			sm.SetSNR(link[0], link[1], link[2])
		}
		for _, link := range cfg.Directions {
			sm.SetSNROneWay(link[0], link[1], link[2])
		}
		model = sm

	default:
		model = &DefaultLinkModel{PER: per}
	}

	mcfg.Model = model
	if cfg.Interference {
		mcfg.Interference = NewInterference(n)
	}
	if mcfg.RNG == nil && cfg.Seed != 0 {
		mcfg.RNG = rand.New(rand.NewSource(cfg.Seed))
	}

	m := NewMedium(mcfg)
	for _, sc := range cfg.Stations {
		addr, err := ParseMAC(sc.Addr)
		if err != nil {
			return nil, err
		}
		sta, err := m.AddStation(addr)
		if err != nil {
			return nil, err
		}
		if len(sc.Position) == 2 {
			sta.X, sta.Y = sc.Position[0], sc.Position[1]
		}
		if len(sc.Direction) == 2 {
			sta.DirX, sta.DirY = sc.Direction[0], sc.Direction[1]
		}
		if sc.TXPower != nil {
			sta.TXPowerDBm = *sc.TXPower
		}
	}
	if pathLoss != nil {
		pathLoss.Recompute(m.Stations())
	}
	return m, nil
}
