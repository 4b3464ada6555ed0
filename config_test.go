package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.ListenAddr != ":5000" {
		t.Errorf("ListenAddr = %q, expected :5000", config.ListenAddr)
	}
	if config.BaseURL != "https://www.instagram.com" {
		t.Errorf("BaseURL = %q, unexpected", config.BaseURL)
	}
	if !config.IsolateProfiles {
		t.Error("IsolateProfiles should default to true")
	}
	if !config.HumanTyping {
		t.Error("HumanTyping should default to true")
	}
	if config.Headless {
		t.Error("Headless should default to false")
	}
	if config.ButtonTimeoutSeconds != 5 {
		t.Errorf("ButtonTimeoutSeconds = %d, expected 5", config.ButtonTimeoutSeconds)
	}
	if config.TextboxTimeoutSeconds != 15 {
		t.Errorf("TextboxTimeoutSeconds = %d, expected 15", config.TextboxTimeoutSeconds)
	}
	if config.BreakEveryMin != 5 || config.BreakEveryMax != 10 {
		t.Errorf("break-every bounds = %d..%d, expected 5..10", config.BreakEveryMin, config.BreakEveryMax)
	}
	if config.HesitationChance != 0.08 {
		t.Errorf("HesitationChance = %v, expected 0.08", config.HesitationChance)
	}
}

func TestLoadConfigCreatesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if _, err := os.Stat(path); err != nil {
		t.Errorf("LoadConfig should write a default config file: %v", err)
	}
	if config.ListenAddr != DefaultConfig().ListenAddr {
		t.Errorf("generated config should carry defaults")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	yaml := "listen_addr: \":8080\"\nheadless: true\nhuman_typing: false\ndata_dir: " + filepath.Join(dir, "data") + "\n" +
		"uploads_dir: " + filepath.Join(dir, "up") + "\nscreenshots_dir: " + filepath.Join(dir, "shots") + "\n" +
		"profiles_dir: " + filepath.Join(dir, "profiles") + "\n"
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.ListenAddr != ":8080" {
		t.Errorf("ListenAddr = %q, expected :8080", config.ListenAddr)
	}
	if !config.Headless {
		t.Error("Headless override not applied")
	}
	if config.HumanTyping {
		t.Error("HumanTyping override not applied")
	}
	// Unset fields keep their defaults.
	if config.ButtonTimeoutSeconds != 5 {
		t.Errorf("ButtonTimeoutSeconds = %d, expected default 5", config.ButtonTimeoutSeconds)
	}

	for _, dir := range []string{config.DataDir, config.UploadsDir, config.ScreenshotsDir, config.ProfilesDir} {
		if _, err := os.Stat(dir); err != nil {
			t.Errorf("directory %s not created: %v", dir, err)
		}
	}
}

func TestConfigSaveRoundtrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	original := DefaultConfig()
	original.ListenAddr = ":7777"
	original.LongBreakMaxSeconds = 240
	if err := original.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if loaded.ListenAddr != ":7777" {
		t.Errorf("ListenAddr = %q, expected :7777", loaded.ListenAddr)
	}
	if loaded.LongBreakMaxSeconds != 240 {
		t.Errorf("LongBreakMaxSeconds = %d, expected 240", loaded.LongBreakMaxSeconds)
	}
}
