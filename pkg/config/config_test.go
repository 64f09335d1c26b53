package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devqa/devqa.go/pkg/constants"
)

func env(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func write(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestDefaultsWithEnv(t *testing.T) {
	cfg, err := LoadWith("", "", env(map[string]string{
		EnvStoreURL: "https://api.example.com/v0/app1",
		EnvAPIKey:   "key",
	}))
	require.NoError(t, err)
	assert.Equal(t, constants.DefaultPageSize, cfg.PageSize)
	assert.Equal(t, 500*time.Millisecond, cfg.SearchQuietPeriod)
	assert.Equal(t, float64(5), cfg.RequestsPerSecond)
	assert.Equal(t, 3*time.Second, cfg.NotificationTTL)
	assert.Equal(t, constants.TableBadges, cfg.Tables.Badges)
}

func TestLayering(t *testing.T) {
	file := write(t, "devqa.yaml", `
store_url: https://file.example.com/v0/app
api_key: from-file
page_size: 20
search_quiet_period: 250ms
tables:
  questions: Q
  answers: A
  votes: V
  users: U
  badges: B
`)
	dotenv := write(t, ".env", "DEVQA_API_KEY=from-dotenv\nDEVQA_PAGE_SIZE=30\n")

	cfg, err := LoadWith(file, dotenv, env(map[string]string{EnvPageSize: "40"}))
	require.NoError(t, err)
	assert.Equal(t, "https://file.example.com/v0/app", cfg.StoreURL)
	assert.Equal(t, "from-dotenv", cfg.APIKey)
	assert.Equal(t, 40, cfg.PageSize)
	assert.Equal(t, 250*time.Millisecond, cfg.SearchQuietPeriod)
	assert.Equal(t, "Q", cfg.Tables.Questions)
}

func TestMissingDotenvIsIgnored(t *testing.T) {
	_, err := LoadWith("", filepath.Join(t.TempDir(), "absent.env"), env(map[string]string{
		EnvStoreURL: "https://api.example.com/v0/app1",
		EnvAPIKey:   "key",
	}))
	assert.NoError(t, err)
}

func TestInvalid(t *testing.T) {
	base := map[string]string{EnvStoreURL: "https://api.example.com/v0/app1", EnvAPIKey: "key"}
	cases := map[string]map[string]string{
		"no key":        {EnvStoreURL: "https://api.example.com/v0/app1"},
		"bad url":       {EnvStoreURL: "not a url", EnvAPIKey: "key"},
		"page too big":  {EnvPageSize: "101"},
		"page not int":  {EnvPageSize: "ten"},
		"zero rate":     {EnvRateLimit: "0"},
		"unknown level": {EnvLogLevel: "loud"},
	}
	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			m := map[string]string{}
			if _, ok := vars[EnvStoreURL]; !ok {
				for k, v := range base {
					m[k] = v
				}
			}
			for k, v := range vars {
				m[k] = v
			}
			_, err := LoadWith("", "", env(m))
			assert.ErrorIs(t, err, constants.ErrInvalidInput)
		})
	}
}

func TestMissingFile(t *testing.T) {
	_, err := LoadWith(filepath.Join(t.TempDir(), "nope.yaml"), "", env(nil))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
