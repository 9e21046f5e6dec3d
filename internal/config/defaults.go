package config

import (
	"os"
	"path/filepath"
	"runtime"
)

const appName = "physkey"

// Per-platform locations:
//
//	          config                     data                      logs
//	linux     $XDG_CONFIG_HOME/physkey   $XDG_DATA_HOME/physkey    <data>/logs
//	darwin    ~/Library/Application Support/physkey (both)         ~/Library/Logs/physkey
//	windows   %APPDATA%\physkey (both)                             %LOCALAPPDATA%\physkey\logs
//	other     ~/.physkey (both)                                    ~/.physkey/logs
//
// Android resolves like Linux; the app wrapper sets HOME to its files dir.

// PlatformDataDir returns where the shortcut database and crash reports live.
func PlatformDataDir() string {
	switch runtime.GOOS {
	case "linux", "android":
		return xdgDir("XDG_DATA_HOME", ".local", "share")
	case "darwin":
		return filepath.Join(homeDir(), "Library", "Application Support", appName)
	case "windows":
		return envDir("APPDATA", filepath.Join(homeDir(), "AppData", "Roaming"))
	}
	return filepath.Join(homeDir(), "."+appName)
}

// PlatformConfigDir returns where the settings file lives. Only Linux keeps
// configuration apart from data.
func PlatformConfigDir() string {
	if runtime.GOOS == "linux" || runtime.GOOS == "android" {
		return xdgDir("XDG_CONFIG_HOME", ".config")
	}
	return PlatformDataDir()
}

// PlatformLogDir returns the directory for rotated log files.
func PlatformLogDir() string {
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir(), "Library", "Logs", appName)
	case "windows":
		return filepath.Join(envDir("LOCALAPPDATA", filepath.Join(homeDir(), "AppData", "Local")), "logs")
	}
	return filepath.Join(PlatformDataDir(), "logs")
}

func homeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	home, _ := os.UserHomeDir()
	return home
}

// xdgDir is $env/physkey, or ~/<fallback...>/physkey when env is unset.
func xdgDir(env string, fallback ...string) string {
	if dir := os.Getenv(env); dir != "" {
		return filepath.Join(dir, appName)
	}
	return filepath.Join(append(append([]string{homeDir()}, fallback...), appName)...)
}

// envDir is $env/physkey, or def/physkey when env is unset.
func envDir(env, def string) string {
	if dir := os.Getenv(env); dir != "" {
		def = dir
	}
	return filepath.Join(def, appName)
}

// SupportedConfigFormats lists the settings file extensions Load
// understands, in lookup order.
func SupportedConfigFormats() []string {
	return []string{"toml", "json", "yaml", "yml"}
}

// FindConfigFile returns the first config.<ext> in the working directory
// or PlatformConfigDir, or "" when there is none.
func FindConfigFile() string {
	for _, dir := range []string{".", PlatformConfigDir()} {
		for _, ext := range SupportedConfigFormats() {
			path := filepath.Join(dir, "config."+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}
