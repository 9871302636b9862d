package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFlags() *pflag.FlagSet {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.String("config", "", "")
	fs.String("mongo-uri", "", "")
	fs.String("database", "", "")
	fs.String("journal", DefaultJournal, "")
	fs.String("format", DefaultFormat, "")
	fs.Bool("verbose", false, "")
	fs.Duration("max-time", 0, "")
	return fs
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "aggscope.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, &Config{
		Journal: DefaultJournal,
		Suffix:  DefaultSuffix,
		Format:  DefaultFormat,
	}, cfg)
}

func TestLoad_Precedence(t *testing.T) {
	chdir(t, t.TempDir())
	path := writeConfig(t, `
mongo_uri: mongodb://file:27017
database: shop
journal: file.db
suffix: Report
max_time: 5s
`)

	t.Run("file", func(t *testing.T) {
		cfg, err := Load(path, nil)
		require.NoError(t, err)
		assert.Equal(t, "mongodb://file:27017", cfg.MongoURI)
		assert.Equal(t, "shop", cfg.Database)
		assert.Equal(t, "file.db", cfg.Journal)
		assert.Equal(t, "Report", cfg.Suffix)
		assert.Equal(t, 5*time.Second, cfg.MaxTime)
		assert.Equal(t, path, cfg.File)
	})

	t.Run("env over file", func(t *testing.T) {
		t.Setenv("AGGSCOPE_JOURNAL", "env.db")
		t.Setenv("AGGSCOPE_FORMAT", "json")

		cfg, err := Load(path, nil)
		require.NoError(t, err)
		assert.Equal(t, "env.db", cfg.Journal)
		assert.Equal(t, "json", cfg.Format)
		assert.Equal(t, "shop", cfg.Database)
	})

	t.Run("flags over env", func(t *testing.T) {
		t.Setenv("AGGSCOPE_JOURNAL", "env.db")
		fs := testFlags()
		require.NoError(t, fs.Parse([]string{"--journal", "flag.db", "--verbose", "--max-time", "250ms"}))

		cfg, err := Load(path, fs)
		require.NoError(t, err)
		assert.Equal(t, "flag.db", cfg.Journal)
		assert.True(t, cfg.Verbose)
		assert.Equal(t, 250*time.Millisecond, cfg.MaxTime)
		assert.Equal(t, "mongodb://file:27017", cfg.MongoURI, "unset flags do not override")
	})
}

func TestLoad_DefaultFile(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "aggscope.yml"), []byte("suffix: Scope\n"), 0o644))

	cfg, err := Load("", nil)
	require.NoError(t, err)
	assert.Equal(t, "Scope", cfg.Suffix)
	assert.Equal(t, "aggscope.yml", cfg.File)
}

func TestLoad_Errors(t *testing.T) {
	chdir(t, t.TempDir())

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{name: "bad format", body: "format: xml\n", wantErr: "format must be text or json"},
		{name: "empty suffix", body: "suffix: ''\n", wantErr: "suffix must not be empty"},
		{name: "negative max time", body: "max_time: -1s\n", wantErr: "max_time must not be negative"},
		{name: "uri without database", body: "mongo_uri: mongodb://x\n", wantErr: "database is required"},
		{name: "bad yaml", body: "format: [\n", wantErr: "error reading config file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body), nil)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.ErrorContains(t, err, "error reading config file")
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
