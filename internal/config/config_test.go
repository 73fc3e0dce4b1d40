package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fec-lake/internal/domain"
)

// clearEnv blanks every variable LoadFromEnv reads.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"FECETL_CONFIG", "RAW_DATA_DIR", "PARQUET_DIR", "WORK_DIR",
		"S3_BUCKET", "S3_REGION", "S3_ENDPOINT", "S3_KEY_ID", "S3_SECRET",
		"SCHEMAS_FILE", "SCHEDULE", "FAIL_FAST", "VERIFY_ARTIFACTS",
		"LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(k, "")
	}
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fecetl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)

	assert.Equal(t, "datarecce-todofec/raw", cfg.RawDataDir)
	assert.Equal(t, "datarecce-todofec/parquet", cfg.ParquetDir)
	assert.Equal(t, "cg-519a459a-0ea3-42c2-b7bc-fa1143481f74", cfg.Bucket)
	assert.Equal(t, "us-gov-west-1", cfg.Region)
	assert.Empty(t, cfg.Endpoint)
	assert.False(t, cfg.FailFast)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)

	require.Len(t, cfg.Jobs, 11)
	assert.Equal(t, domain.Job{Category: "all_candidates", Year: 2024, RemoteKey: "bulk-downloads/2024/weball24.zip"}, cfg.Jobs[0])
	assert.Contains(t, cfg.Jobs, domain.Job{Category: "committee_master", Year: 2024, RemoteKey: "bulk-downloads/2024/cm24.zip"})
	for _, j := range cfg.Jobs {
		assert.NotEqual(t, "contributions_by_individuals", j.Category)
	}
}

func TestParse_OverlaysDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
parquet_dir: /data/parquet
fail_fast: true
jobs:
  - {category: committee_master, year: 2022, key: bulk-downloads/2022/cm22.zip}
`))
	require.NoError(t, err)

	assert.Equal(t, "/data/parquet", cfg.ParquetDir)
	assert.Equal(t, "datarecce-todofec/raw", cfg.RawDataDir, "absent keys keep their built-in value")
	assert.True(t, cfg.FailFast)
	assert.Equal(t, []domain.Job{{Category: "committee_master", Year: 2022, RemoteKey: "bulk-downloads/2022/cm22.zip"}}, cfg.Jobs)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "unknown key",
			yaml:    "raw_dir: x\n",
			wantErr: "raw_dir",
		},
		{
			name:    "empty bucket",
			yaml:    "bucket: \"\"\n",
			wantErr: "bucket is required",
		},
		{
			name:    "empty parquet dir",
			yaml:    "parquet_dir: \"\"\n",
			wantErr: "parquet_dir is required",
		},
		{
			name:    "job without key",
			yaml:    "jobs:\n  - {category: pac_summary, year: 2024}\n",
			wantErr: "jobs[0]",
		},
		{
			name: "duplicate artifact",
			yaml: "jobs:\n" +
				"  - {category: pac_summary, year: 2024, key: a/webk24.zip}\n" +
				"  - {category: pac_summary, year: 2024, key: b/webk24.zip}\n",
			wantErr: "duplicates jobs[0]",
		},
		{
			name:    "malformed yaml",
			yaml:    "jobs: [",
			wantErr: "parse yaml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad(t *testing.T) {
	path := writeFile(t, "bucket: mirror\nendpoint: http://localhost:9000\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "mirror", cfg.Bucket)
	assert.Equal(t, "http://localhost:9000", cfg.Endpoint)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "us-gov-west-1", cfg.Region)
	assert.Len(t, cfg.Jobs, 11)
	assert.False(t, cfg.HasCredentials())
	assert.Empty(t, cfg.Warnings)
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("FECETL_CONFIG", writeFile(t, "bucket: from-file\nregion: us-east-1\nverify: true\n"))
	t.Setenv("S3_BUCKET", "from-env")
	t.Setenv("RAW_DATA_DIR", "/cache")
	t.Setenv("FAIL_FAST", "yes")
	t.Setenv("VERIFY_ARTIFACTS", "off")
	t.Setenv("S3_KEY_ID", "AKIA")
	t.Setenv("S3_SECRET", "secret")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Bucket, "env beats file")
	assert.Equal(t, "us-east-1", cfg.Region, "file beats built-in")
	assert.Equal(t, "/cache", cfg.RawDataDir)
	assert.True(t, cfg.FailFast)
	assert.False(t, cfg.Verify)
	assert.True(t, cfg.HasCredentials())
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestLoadFromEnv_PartialCredentialsWarn(t *testing.T) {
	clearEnv(t)
	t.Setenv("S3_KEY_ID", "AKIA")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.False(t, cfg.HasCredentials())
	require.Len(t, cfg.Warnings, 1)
	assert.Contains(t, cfg.Warnings[0], "anonymously")
}

func TestLoadFromEnv_InvalidLogFormat(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOG_FORMAT", "xml")

	_, err := LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log format")
}

func TestLoadFromEnv_MissingConfigFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("FECETL_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))

	_, err := LoadFromEnv()
	require.Error(t, err)
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		cfg := &Config{LogLevel: tt.level}
		assert.Equal(t, tt.want, cfg.SlogLevel(), tt.level)
	}
}

func TestJobsFor(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)

	assert.Len(t, cfg.JobsFor(), len(cfg.Jobs))

	got := cfg.JobsFor("all_candidates", "pac_summary")
	require.Len(t, got, 3)
	assert.Equal(t, 2020, got[1].Year)
	assert.Equal(t, "pac_summary", got[2].Category)

	assert.Empty(t, cfg.JobsFor("nope"))
}

func TestLoadDotEnv_FileNotFound(t *testing.T) {
	assert.NoError(t, LoadDotEnv("/nonexistent/.env"))
}

func TestLoadDotEnv_ParsesKeyValue(t *testing.T) {
	t.Setenv("FECETL_TEST_KEY", "")
	t.Setenv("FECETL_TEST_QUOTED", "")
	t.Setenv("FECETL_TEST_EXPORTED", "")

	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(
		"# comment\n\nFECETL_TEST_KEY=value\nFECETL_TEST_QUOTED=\"with spaces\"\nexport FECETL_TEST_EXPORTED=1\nnot a pair\n",
	), 0o644))

	require.NoError(t, LoadDotEnv(envFile))
	assert.Equal(t, "value", os.Getenv("FECETL_TEST_KEY"))
	assert.Equal(t, "with spaces", os.Getenv("FECETL_TEST_QUOTED"))
	assert.Equal(t, "1", os.Getenv("FECETL_TEST_EXPORTED"))
}

func TestLoadDotEnv_EnvVarPrecedence(t *testing.T) {
	t.Setenv("FECETL_TEST_PRECEDENCE", "from_env")

	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("FECETL_TEST_PRECEDENCE=from_file\n"), 0o644))

	require.NoError(t, LoadDotEnv(envFile))
	assert.Equal(t, "from_env", os.Getenv("FECETL_TEST_PRECEDENCE"))
}
