package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type level string

func (l *level) UnmarshalText(text []byte) error {
	*l = level("parsed-" + string(text))
	return nil
}

type testConfig struct {
	Port     uint16 `validate:"required"`
	Interval time.Duration
	Include  []string
	Level    level
	Nested   struct {
		Size int `validate:"gte=1"`
	}
}

func writeFile(t *testing.T, path string, contents string) {
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.yaml"), `
port: 9000
interval: 90s
include: /a, /b
level: debug
nested:
  size: 3
`)
	override := filepath.Join(dir, "override.yaml")
	writeFile(t, override, `
nested:
  size: 7
`)

	var config testConfig
	_, err := LoadConfig(&config, dir, []string{override, ""})
	require.NoError(t, err)

	assert.Equal(t, uint16(9000), config.Port)
	assert.Equal(t, 90*time.Second, config.Interval)
	assert.Equal(t, []string{"/a", "/b"}, config.Include)
	assert.Equal(t, level("parsed-debug"), config.Level)
	assert.Equal(t, 7, config.Nested.Size)
}

func TestLoadConfig_EnvironmentOverride(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.yaml"), "port: 9000\nnested:\n  size: 3\n")
	t.Setenv("WAVE_NESTED_SIZE", "11")

	var config testConfig
	_, err := LoadConfig(&config, dir, nil)
	require.NoError(t, err)
	assert.Equal(t, 11, config.Nested.Size)
}

func TestLoadConfig_MissingBase(t *testing.T) {
	var config testConfig
	_, err := LoadConfig(&config, t.TempDir(), nil)
	assert.Error(t, err)
}

func TestLoadConfig_MissingOverride(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "config.yaml"), "port: 9000\n")

	var config testConfig
	_, err := LoadConfig(&config, dir, []string{filepath.Join(dir, "nope.yaml")})
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := testConfig{Port: 1}
	valid.Nested.Size = 1
	assert.NoError(t, Validate(valid))

	invalid := testConfig{}
	assert.Error(t, Validate(invalid))
}

func TestStripPrefix(t *testing.T) {
	assert.Equal(t, "Nested.Size", stripPrefix("testConfig.Nested.Size"))
	assert.Equal(t, "Port", stripPrefix("Port"))
}
