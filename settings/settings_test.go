package settings_test

import (
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/gobuffalo/envy"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/devblok/frameforge/core"
	"github.com/devblok/frameforge/settings"
)

type modes map[[2]int]bool

func (m modes) SupportsMode(w, h int) bool { return m[[2]int{w, h}] }

func write(c *qt.C, name, contents string) string {
	p := filepath.Join(c.TempDir(), name)
	c.Assert(os.WriteFile(p, []byte(contents), 0o644), qt.IsNil)
	return p
}

func TestLoadFormats(t *testing.T) {
	expected := settings.Settings{Width: 1024, Height: 768, Fullscreen: false, Antialiasing: true}
	files := map[string]string{
		"settings.ini":  "width = 1024\nheight = 768\nantialiasing = true\n",
		"settings.lua":  "return { width = 1024, height = 768, fullscreen = false, antialiasing = true }",
		"settings.toml": "width = 1024\nheight = 768\nantialiasing = true\n",
		"settings.yaml": "width: 1024\nheight: 768\nantialiasing: true\n",
	}
	for name, contents := range files {
		t.Run(name, func(t *testing.T) {
			c := qt.New(t)
			s, err := settings.Load(settings.Options{Path: write(c, name, contents)})
			c.Assert(err, qt.IsNil)
			c.Assert(s, qt.Equals, expected)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	c := qt.New(t)
	s, err := settings.Load(settings.Options{Path: filepath.Join(c.TempDir(), "settings.ini")})
	c.Assert(err, qt.IsNil)
	c.Assert(s, qt.Equals, settings.Defaults())
	c.Assert(s.Width, qt.Equals, 640)
	c.Assert(s.Height, qt.Equals, 480)
}

func TestLoadBrokenFile(t *testing.T) {
	c := qt.New(t)
	_, err := settings.Load(settings.Options{Path: write(c, "settings.ini", "width = = 3")})
	c.Assert(err, qt.IsNotNil)

	_, err = settings.Load(settings.Options{Path: write(c, "settings.json", "{}")})
	c.Assert(err, qt.ErrorIs, settings.ErrUnknownFormat)
}

func TestInvalidEntries(t *testing.T) {
	c := qt.New(t)
	logger, hook := test.NewNullLogger()

	tests := []struct {
		about    string
		values   map[string]any
		expected settings.Settings
	}{{
		about:    "fractional width resets both",
		values:   map[string]any{"width": 800.5, "height": 600.0},
		expected: settings.Defaults(),
	}, {
		about:    "string height resets both",
		values:   map[string]any{"width": 800.0, "height": "tall"},
		expected: settings.Defaults(),
	}, {
		about:    "only width given",
		values:   map[string]any{"width": int64(800)},
		expected: settings.Settings{Width: 800, Height: 480},
	}, {
		about:    "non boolean fullscreen is ignored",
		values:   map[string]any{"fullscreen": 1.0, "antialiasing": true},
		expected: settings.Settings{Width: 640, Height: 480, Antialiasing: true},
	}, {
		about:    "negative size",
		values:   map[string]any{"width": -1, "height": 600},
		expected: settings.Defaults(),
	}}

	for _, tt := range tests {
		c.Run(tt.about, func(c *qt.C) {
			hook.Reset()
			c.Assert(settings.FromValues(tt.values, logger), qt.Equals, tt.expected)
			if tt.about != "only width given" {
				c.Assert(hook.LastEntry(), qt.IsNotNil)
			}
		})
	}
}

func TestFullscreenValidation(t *testing.T) {
	c := qt.New(t)
	display := modes{{1920, 1080}: true}

	s := settings.Settings{Width: 1920, Height: 1080, Fullscreen: true}
	c.Assert(settings.Validate(s, display, nil), qt.Equals, s)

	s = settings.Settings{Width: 1000, Height: 700, Fullscreen: true}
	c.Assert(settings.Validate(s, display, nil), qt.Equals, settings.Settings{Width: 640, Height: 480, Fullscreen: true})

	// windowed sizes are not checked
	s = settings.Settings{Width: 1000, Height: 700}
	c.Assert(settings.Validate(s, display, nil), qt.Equals, s)

	path := write(c, "settings.ini", "width = 1000\nheight = 700\nfullscreen = true\n")
	loaded, err := settings.Load(settings.Options{Path: path, Display: display})
	c.Assert(err, qt.IsNil)
	c.Assert(loaded.Width, qt.Equals, 640)
	c.Assert(loaded.Height, qt.Equals, 480)
}

func TestEnvironmentOverrides(t *testing.T) {
	c := qt.New(t)
	path := write(c, "settings.toml", "width = 1024\nheight = 768\n")
	envFile := write(c, "frameforge.env", "FRAMEFORGE_HEIGHT=720\nFRAMEFORGE_ANTIALIASING=true\n")

	envy.Temp(func() {
		envy.Set("FRAMEFORGE_WIDTH", "1280")
		s, err := settings.Load(settings.Options{Path: path, EnvFile: envFile})
		c.Assert(err, qt.IsNil)
		c.Assert(s, qt.Equals, settings.Settings{Width: 1280, Height: 720, Antialiasing: true})
	})
}

func TestApplyAndWrite(t *testing.T) {
	c := qt.New(t)
	s := settings.Settings{Width: 800, Height: 600, Fullscreen: true, Antialiasing: true}

	cfg := core.DefaultConfiguration()
	s.Apply(&cfg)
	c.Assert(cfg.Graphics.ScreenWidth, qt.Equals, uint32(800))
	c.Assert(cfg.Graphics.ScreenHeight, qt.Equals, uint32(600))
	c.Assert(cfg.Graphics.Fullscreen, qt.IsTrue)
	c.Assert(cfg.Graphics.Antialiasing, qt.IsTrue)

	for _, name := range []string{"out.ini", "out.toml", "out.yml"} {
		p := filepath.Join(c.TempDir(), name)
		c.Assert(settings.Write(p, s), qt.IsNil)
		loaded, err := settings.Load(settings.Options{Path: p})
		c.Assert(err, qt.IsNil)
		c.Assert(loaded, qt.Equals, s, qt.Commentf("%s", name))
	}
}
