package main

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ListenAddr string `yaml:"listen_addr"`

	BaseURL string `yaml:"base_url"`

	DataDir        string `yaml:"data_dir"`
	UploadsDir     string `yaml:"uploads_dir"`
	ScreenshotsDir string `yaml:"screenshots_dir"`
	ProfilesDir    string `yaml:"profiles_dir"`

	Headless        bool `yaml:"headless"`
	IsolateProfiles bool `yaml:"isolate_profiles"`
	HumanTyping     bool `yaml:"human_typing"`

	ButtonTimeoutSeconds  int `yaml:"button_timeout_seconds"`
	TextboxTimeoutSeconds int `yaml:"textbox_timeout_seconds"`
	VerifyTimeoutSeconds  int `yaml:"verify_timeout_seconds"`
	LoginWaitSeconds      int `yaml:"login_wait_seconds"`

	MessageJitterSeconds int     `yaml:"message_jitter_seconds"`
	LongBreakMinSeconds  int     `yaml:"long_break_min_seconds"`
	LongBreakMaxSeconds  int     `yaml:"long_break_max_seconds"`
	BreakEveryMin        int     `yaml:"break_every_min"`
	BreakEveryMax        int     `yaml:"break_every_max"`
	HesitationChance     float64 `yaml:"hesitation_chance"`

	DebugMode bool `yaml:"debug_mode"`
}

func DefaultConfig() *Config {
	dataDir := getUserDataDir()

	return &Config{
		ListenAddr:            ":5000",
		BaseURL:               "https://www.instagram.com",
		DataDir:               dataDir,
		UploadsDir:            filepath.Join(dataDir, "uploads"),
		ScreenshotsDir:        filepath.Join(dataDir, "screenshots"),
		ProfilesDir:           filepath.Join(dataDir, "profiles"),
		Headless:              false,
		IsolateProfiles:       true,
		HumanTyping:           true,
		ButtonTimeoutSeconds:  5,
		TextboxTimeoutSeconds: 15,
		VerifyTimeoutSeconds:  5,
		LoginWaitSeconds:      60,
		MessageJitterSeconds:  15,
		LongBreakMinSeconds:   60,
		LongBreakMaxSeconds:   120,
		BreakEveryMin:         5,
		BreakEveryMax:         10,
		HesitationChance:      0.08,
		DebugMode:             false,
	}
}

func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := config.Save(path); err != nil {
			return nil, err
		}
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}

		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, err
		}
	}

	for _, dir := range []string{config.DataDir, config.UploadsDir, config.ScreenshotsDir, config.ProfilesDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	return config, nil
}

func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

func (c *Config) sessionPath() string {
	return filepath.Join(c.DataDir, "session.json")
}

func (c *Config) historyPath() string {
	return filepath.Join(c.DataDir, "message_history.json")
}

func getUserDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./dmpilot-data"
	}
	return filepath.Join(home, ".dmpilot")
}
