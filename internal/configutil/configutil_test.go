package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	BaseUrl string   `json:"base_url"`
	Workers int      `json:"workers"`
	Urls    []string `json:"urls"`
}

func TestReadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json5")

	_, err := ReadConfig[testConfig](path)
	require.True(t, os.IsNotExist(err))

	err = os.WriteFile(path, []byte(`{
		// comments are allowed
		base_url: "https://shop.example/wp-json/wc/v3/products",
		workers: 4,
		urls: ["https://store.example/a"],
	}`), 0600)
	require.NoError(t, err)

	cfg, err := ReadConfig[testConfig](path)
	require.NoError(t, err)
	require.Equal(t, 4, cfg.Workers)
	require.Equal(t, []string{"https://store.example/a"}, cfg.Urls)

	err = os.WriteFile(LocalPath(path), []byte(`{ workers: 8 }`), 0600)
	require.NoError(t, err)

	cfg, err = ReadConfig[testConfig](path)
	require.NoError(t, err)
	require.Equal(t, 8, cfg.Workers)
	require.Equal(t, "https://shop.example/wp-json/wc/v3/products", cfg.BaseUrl)
}

func TestLocalPath(t *testing.T) {
	require.Equal(t, "dir/config.local.json5", LocalPath("dir/config.json5"))
	require.Equal(t, "telemetry.local.json5", LocalPath("telemetry.json5"))
}
