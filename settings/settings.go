// Package settings loads the user settings: screen size, fullscreen and
// antialiasing. Settings come from a Lua, TOML or YAML file and can be
// overridden from the environment. Invalid entries never fail the load,
// they fall back to the defaults with a warning.
package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/gobuffalo/envy"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/devblok/frameforge/core"
	"github.com/devblok/frameforge/utility/luatable"
)

// DefaultFile is the settings file looked up next to the executable
const DefaultFile = "settings.ini"

// Setting keys, shared by every file format
const (
	KeyWidth        = "width"
	KeyHeight       = "height"
	KeyFullscreen   = "fullscreen"
	KeyAntialiasing = "antialiasing"
)

// EnvPrefix prefixes the environment overrides, e.g. FRAMEFORGE_WIDTH
const EnvPrefix = "FRAMEFORGE_"

// ErrUnknownFormat is returned for settings files of unknown type
var ErrUnknownFormat = errors.New("unknown settings format")

// Settings are the user settings
type Settings struct {
	Width        int  `toml:"width" yaml:"width"`
	Height       int  `toml:"height" yaml:"height"`
	Fullscreen   bool `toml:"fullscreen" yaml:"fullscreen"`
	Antialiasing bool `toml:"antialiasing" yaml:"antialiasing"`
}

// Defaults is a 640x480 window without antialiasing
func Defaults() Settings {
	return Settings{
		Width:  core.DefaultScreenWidth,
		Height: core.DefaultScreenHeight,
	}
}

// Display reports the fullscreen modes the screen offers
type Display interface {
	SupportsMode(width, height int) bool
}

// Options control Load
type Options struct {
	// Path of the settings file, a missing file is not an error
	Path string

	// EnvFile is an optional .env file with overrides
	EnvFile string

	// Display checks fullscreen resolutions, nil accepts every mode
	Display Display

	Logger log.FieldLogger
}

// Load reads the settings file and applies environment overrides.
// Only unreadable or syntactically broken files are errors.
func Load(opts Options) (Settings, error) {
	logger := core.LoggerOrDefault(opts.Logger)

	values := map[string]any{}
	if opts.Path != "" {
		data, err := os.ReadFile(opts.Path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			logger.WithField("path", opts.Path).Debug("no settings file, using defaults")
		case err != nil:
			return Defaults(), fmt.Errorf("read settings %s: %w", opts.Path, err)
		default:
			if values, err = Decode(opts.Path, data); err != nil {
				return Defaults(), err
			}
		}
	}

	env, err := Environment(opts.EnvFile)
	if err != nil {
		return Defaults(), err
	}
	for k, v := range env {
		values[k] = v
	}

	s := FromValues(values, logger)
	return Validate(s, opts.Display, logger), nil
}

// Decode parses settings data, the format is chosen by the extension of
// name: .ini and .lua files are Lua, then .toml, .yaml and .yml
func Decode(name string, data []byte) (map[string]any, error) {
	values := map[string]any{}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".ini", ".lua":
		tbl, err := luatable.Eval(name, data)
		if err != nil {
			return nil, fmt.Errorf("parse settings: %w", err)
		}
		values = tbl.Scalars()
	case ".toml":
		if _, err := toml.Decode(string(data), &values); err != nil {
			return nil, fmt.Errorf("parse settings %s: %w", name, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &values); err != nil {
			return nil, fmt.Errorf("parse settings %s: %w", name, err)
		}
	default:
		return nil, fmt.Errorf("%s: %w", name, ErrUnknownFormat)
	}
	return values, nil
}

// Environment returns the overrides set in the environment, falling
// back to envFile. Values are parsed into numbers and booleans where
// they look like one.
func Environment(envFile string) (map[string]any, error) {
	fromFile := map[string]string{}
	if envFile != "" {
		var err error
		fromFile, err = godotenv.Read(envFile)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read env file %s: %w", envFile, err)
		}
	}

	out := map[string]any{}
	for _, key := range []string{KeyWidth, KeyHeight, KeyFullscreen, KeyAntialiasing} {
		name := EnvPrefix + strings.ToUpper(key)
		raw := envy.Get(name, fromFile[name])
		if raw == "" {
			continue
		}
		out[key] = parseEnv(raw)
	}
	return out, nil
}

func parseEnv(raw string) any {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return n
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	return raw
}

// FromValues builds settings out of decoded values. A width or height
// that is not a whole number resets both to the defaults, booleans of
// the wrong type are ignored.
func FromValues(values map[string]any, logger log.FieldLogger) Settings {
	logger = core.LoggerOrDefault(logger)
	s := Defaults()

	width, wok := dimension(values, KeyWidth, logger)
	height, hok := dimension(values, KeyHeight, logger)
	if wok && hok {
		if width >= 0 {
			s.Width = width
		}
		if height >= 0 {
			s.Height = height
		}
	}

	s.Fullscreen = flag(values, KeyFullscreen, s.Fullscreen, logger)
	s.Antialiasing = flag(values, KeyAntialiasing, s.Antialiasing, logger)
	return s
}

// dimension returns -1 when key is absent and false when it is invalid
func dimension(values map[string]any, key string, logger log.FieldLogger) (int, bool) {
	v, ok := values[key]
	if !ok {
		return -1, true
	}

	var n float64
	switch val := v.(type) {
	case int:
		n = float64(val)
	case int64:
		n = float64(val)
	case uint64:
		n = float64(val)
	case float64:
		n = val
	default:
		logger.WithField(key, v).Warn("ignoring invalid screen size entry")
		return 0, false
	}
	if n != float64(int(n)) || n <= 0 {
		logger.WithField(key, v).Warn("screen size not supported")
		return 0, false
	}
	return int(n), true
}

func flag(values map[string]any, key string, fallback bool, logger log.FieldLogger) bool {
	v, ok := values[key]
	if !ok {
		return fallback
	}
	b, ok := v.(bool)
	if !ok {
		logger.WithField(key, v).Warnf("ignoring invalid entry for %s", key)
		return fallback
	}
	return b
}

// Validate checks a fullscreen resolution against the display. An
// unsupported one falls back to the default size.
func Validate(s Settings, display Display, logger log.FieldLogger) Settings {
	logger = core.LoggerOrDefault(logger)
	if !s.Fullscreen || display == nil {
		return s
	}
	if s.Width == core.DefaultScreenWidth && s.Height == core.DefaultScreenHeight {
		return s
	}
	if !display.SupportsMode(s.Width, s.Height) {
		logger.WithFields(log.Fields{
			"width":  s.Width,
			"height": s.Height,
		}).Warn("fullscreen resolution not supported, using the default size")
		s.Width = core.DefaultScreenWidth
		s.Height = core.DefaultScreenHeight
	}
	return s
}

// Apply copies the settings into the engine configuration
func (s Settings) Apply(cfg *core.Configuration) {
	cfg.Graphics.ScreenWidth = uint32(s.Width)
	cfg.Graphics.ScreenHeight = uint32(s.Height)
	cfg.Graphics.Fullscreen = s.Fullscreen
	cfg.Graphics.Antialiasing = s.Antialiasing
}

// Write stores s at path in the format its extension selects
func Write(path string, s Settings) error {
	var data []byte
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ini", ".lua":
		data = []byte(fmt.Sprintf("width = %d\nheight = %d\nfullscreen = %t\nantialiasing = %t\n",
			s.Width, s.Height, s.Fullscreen, s.Antialiasing))
	case ".toml":
		var b strings.Builder
		if err := toml.NewEncoder(&b).Encode(s); err != nil {
			return err
		}
		data = []byte(b.String())
	case ".yaml", ".yml":
		var err error
		if data, err = yaml.Marshal(s); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%s: %w", path, ErrUnknownFormat)
	}
	return os.WriteFile(path, data, 0o644)
}
