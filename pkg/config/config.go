// Package config loads koga.yaml. Every field has a default; a file only
// needs the fields it changes.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/chazu/koga/pkg/scene"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the config file looked up when none is given.
const DefaultFile = "koga.yaml"

// maxCanvas bounds the raster size.
const maxCanvas = 16384

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Config is the full koga configuration.
type Config struct {
	Canvas   Canvas   `yaml:"canvas"`
	Grid     Grid     `yaml:"grid"`
	Viewport Viewport `yaml:"viewport"`
	Engine   Engine   `yaml:"engine"`
	Server   Server   `yaml:"server"`
	Log      Log      `yaml:"log"`
}

type Canvas struct {
	Width      int    `yaml:"width"`
	Height     int    `yaml:"height"`
	Background string `yaml:"background"`
}

type Grid struct {
	// Size 0 disables the grid.
	Size   float64 `yaml:"size"`
	Extent float64 `yaml:"extent"`
	Color  string  `yaml:"color"`
}

type Viewport struct {
	ZoomStep float64 `yaml:"zoom_step"`
	MinZoom  float64 `yaml:"min_zoom"`
	MaxZoom  float64 `yaml:"max_zoom"`
}

type Engine struct {
	Timeout Duration `yaml:"timeout"`
}

type Server struct {
	Addr string `yaml:"addr"`
}

type Log struct {
	Level string `yaml:"level"`
}

// Duration is a time.Duration written as "5s" in YAML.
type Duration time.Duration

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(v)
	return nil
}

// Default returns the stock configuration.
func Default() *Config {
	return &Config{
		Canvas: Canvas{Width: 1200, Height: 800, Background: "#ffffff"},
		Grid:   Grid{Size: 20, Extent: 2000, Color: "#f0f0f0"},
		Viewport: Viewport{
			ZoomStep: 1.2,
			MinZoom:  0.1,
			MaxZoom:  5,
		},
		Engine: Engine{Timeout: Duration(5 * time.Second)},
		Server: Server{Addr: "127.0.0.1:7878"},
		Log:    Log{Level: "info"},
	}
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Load reads and parses a config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadOptional loads path when given. With an empty path it loads
// DefaultFile if present and falls back to Default otherwise.
func LoadOptional(path string) (*Config, error) {
	if path != "" {
		return Load(path)
	}
	if _, err := os.Stat(DefaultFile); err == nil {
		return Load(DefaultFile)
	}
	return Default(), nil
}

// Write encodes the configuration as YAML.
func (c *Config) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return enc.Close()
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch {
	case c.Canvas.Width <= 0 || c.Canvas.Width > maxCanvas:
		return fmt.Errorf("%w: canvas.width %d out of range 1..%d", ErrInvalid, c.Canvas.Width, maxCanvas)
	case c.Canvas.Height <= 0 || c.Canvas.Height > maxCanvas:
		return fmt.Errorf("%w: canvas.height %d out of range 1..%d", ErrInvalid, c.Canvas.Height, maxCanvas)
	case c.Grid.Size < 0:
		return fmt.Errorf("%w: grid.size must not be negative", ErrInvalid)
	case c.Grid.Size > 0 && c.Grid.Extent <= 0:
		return fmt.Errorf("%w: grid.extent must be positive", ErrInvalid)
	case c.Viewport.ZoomStep <= 1:
		return fmt.Errorf("%w: viewport.zoom_step must be greater than 1", ErrInvalid)
	case c.Viewport.MinZoom <= 0 || c.Viewport.MaxZoom < c.Viewport.MinZoom:
		return fmt.Errorf("%w: viewport zoom range %g..%g", ErrInvalid, c.Viewport.MinZoom, c.Viewport.MaxZoom)
	case c.Engine.Timeout <= 0:
		return fmt.Errorf("%w: engine.timeout must be positive", ErrInvalid)
	case c.Server.Addr == "":
		return fmt.Errorf("%w: server.addr is empty", ErrInvalid)
	}
	if _, err := c.BackgroundColor(); err != nil {
		return fmt.Errorf("%w: canvas.background: %v", ErrInvalid, err)
	}
	if _, err := c.GridColor(); err != nil {
		return fmt.Errorf("%w: grid.color: %v", ErrInvalid, err)
	}
	if _, err := c.SlogLevel(); err != nil {
		return fmt.Errorf("%w: log.level: %v", ErrInvalid, err)
	}
	return nil
}

// BackgroundColor parses the canvas background.
func (c *Config) BackgroundColor() (scene.Color, error) {
	return scene.ParseHex(c.Canvas.Background)
}

// GridColor parses the grid line colour.
func (c *Config) GridColor() (scene.Color, error) {
	return scene.ParseHex(c.Grid.Color)
}

// SlogLevel parses the log level (debug, info, warn, error).
func (c *Config) SlogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, err
	}
	return l, nil
}

// Timeout is the engine timeout as a time.Duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Engine.Timeout)
}
