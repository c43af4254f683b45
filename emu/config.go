package emu

import (
	"image"
	"os"
	"path/filepath"
	"sync"

	"speccy/emu/log"

	"github.com/BurntSushi/toml"
	"github.com/kirsle/configdir"
)

type Config struct {
	General GeneralConfig `toml:"general"`
	Video   VideoConfig   `toml:"video"`
	Audio   AudioConfig   `toml:"audio"`
	Tape    TapeConfig    `toml:"tape"`
}

type GeneralConfig struct {
	Model       string `toml:"model"`    // "16", "48" or "128"
	Joystick    string `toml:"joystick"` // none, kempston, sinclair1, sinclair2, cursor
	FirmwareDir string `toml:"firmware_dir"`
}

type VideoConfig struct {
	Scale  int  `toml:"scale"`
	Hidden bool `toml:"hidden"`

	// Rendered frames are also published here when set (screenshots,
	// integration tests). Not a config-file knob.
	FrameOutCh chan image.RGBA `toml:"-"`
}

type AudioConfig struct {
	DisableAudio  bool  `toml:"disable_audio"`
	SampleRate    int32 `toml:"sample_rate"`
	LatencyFrames int   `toml:"latency_frames"`
}

// TapeConfig tunes the tape-activity heuristics: playback auto-starts when
// the running program polls the EAR line more than ProbeThreshold times in
// one frame, and an accelerated load auto-stops when two consecutive
// frames together poll it fewer than IdleThreshold times. Both values are
// calibration against the 3.5 MHz clock, not structural limits.
type TapeConfig struct {
	ProbeThreshold uint32 `toml:"probe_threshold"`
	IdleThreshold  uint32 `toml:"idle_threshold"`
	FlashLoad      bool   `toml:"flash_load"`
	Audible        bool   `toml:"audible"`
}

// setDefaults fills zero fields so a partial config file keeps working.
func (cfg *Config) setDefaults() {
	if cfg.General.Model == "" {
		cfg.General.Model = "48"
	}
	if cfg.General.Joystick == "" {
		cfg.General.Joystick = "none"
	}
	if cfg.General.FirmwareDir == "" {
		cfg.General.FirmwareDir = filepath.Join(ConfigDir, "roms")
	}
	if cfg.Video.Scale <= 0 {
		cfg.Video.Scale = 2
	}
	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 44100
	}
	if cfg.Audio.LatencyFrames <= 0 {
		cfg.Audio.LatencyFrames = 2
	}
	if cfg.Tape.ProbeThreshold == 0 {
		cfg.Tape.ProbeThreshold = 1000
	}
	if cfg.Tape.IdleThreshold == 0 {
		cfg.Tape.IdleThreshold = 20
	}
}

var ConfigDir string = sync.OnceValue(func() string {
	dir := configdir.LocalConfig("speccy")
	if err := configdir.MakePath(dir); err != nil {
		log.ModEmu.Fatalf("failed to create directory %s: %v", dir, err)
	}
	return dir
})()

const cfgFilename = "config.toml"

// LoadConfigOrDefault loads the configuration from the speccy config
// directory, or provides a default one.
func LoadConfigOrDefault() Config {
	var cfg Config
	if _, err := toml.DecodeFile(filepath.Join(ConfigDir, cfgFilename), &cfg); err != nil {
		cfg = Config{Tape: TapeConfig{FlashLoad: true, Audible: true}}
	}
	cfg.setDefaults()
	return cfg
}

// SaveConfig into the speccy config directory.
func SaveConfig(cfg Config) error {
	buf, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(ConfigDir, cfgFilename), buf, 0644)
}
