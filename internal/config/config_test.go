package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
firewall:
  host: 10.0.0.1
  username: admin
  password: secret
  timeout: 30
  wait_interval: 10
  wait_timeout: 120
ciphers:
  mgmt:
    - aes256-ctr
    - aes256-gcm
  ha:
    - aes256-gcm
`)

	cfg, err := Load(path, false)

	require.NoError(t, err)
	assert.Equal(t, "10.0.0.1", cfg.Firewall.Host)
	assert.Equal(t, "admin", cfg.Firewall.Username)
	assert.Equal(t, "secret", cfg.Firewall.Password)
	assert.Equal(t, 30, cfg.Firewall.Timeout)
	assert.Equal(t, 10, cfg.Firewall.WaitInterval)
	assert.Equal(t, 120, cfg.Firewall.WaitTimeout)
	assert.Equal(t, []string{"aes256-ctr", "aes256-gcm"}, cfg.Ciphers.Mgmt)
	assert.Equal(t, []string{"aes256-gcm"}, cfg.Ciphers.HA)
	assert.False(t, cfg.Sandbox)
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
firewall:
  host: fw01.example.com
  api_key: LUFRPT1abc
`)

	cfg, err := Load(path, false)

	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Firewall.Timeout)
	assert.Equal(t, 60, cfg.Firewall.WaitInterval)
	assert.Equal(t, 900, cfg.Firewall.WaitTimeout)
	assert.Equal(t, DefaultCiphers, cfg.Ciphers.Mgmt)
	assert.Equal(t, DefaultCiphers, cfg.Ciphers.HA)
	assert.False(t, cfg.Sandbox)
}

// A run without flags must apply changes; dry-run is the opt-in.
func TestLoad_DryRunFlag(t *testing.T) {
	content := `
firewall:
  host: 10.0.0.1
  api_key: LUFRPT1abc
`

	cfg, err := Load(writeConfig(t, content), false)
	require.NoError(t, err)
	assert.False(t, cfg.Sandbox)

	cfg, err = Load(writeConfig(t, content), true)
	require.NoError(t, err)
	assert.True(t, cfg.Sandbox)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "missing host",
			content: `
firewall:
  username: admin
  password: secret
`,
			wantErr: "host is required",
		},
		{
			name: "missing username",
			content: `
firewall:
  host: 10.0.0.1
  password: secret
`,
			wantErr: "username is required",
		},
		{
			name: "missing password",
			content: `
firewall:
  host: 10.0.0.1
  username: admin
`,
			wantErr: "password is required",
		},
		{
			name: "unknown mgmt cipher",
			content: `
firewall:
  host: 10.0.0.1
  api_key: LUFRPT1abc
ciphers:
  mgmt:
    - rot13
`,
			wantErr: `unsupported cipher "rot13" in ciphers.mgmt`,
		},
		{
			name: "unknown ha cipher",
			content: `
firewall:
  host: 10.0.0.1
  api_key: LUFRPT1abc
ciphers:
  ha:
    - chacha20-poly1305
`,
			wantErr: "ciphers.ha",
		},
		{
			name: "negative timeout",
			content: `
firewall:
  host: 10.0.0.1
  api_key: LUFRPT1abc
  timeout: -1
`,
			wantErr: "timeout -1 is invalid",
		},
		{
			name:    "malformed yaml",
			content: "firewall: [",
			wantErr: "failed to parse YAML",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			_, err := Load(path, false)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read YAML file")
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("PAN_USERNAME", "envuser")
	t.Setenv("PAN_PASSWORD", "envpass")
	t.Setenv("PAN_API_KEY", "envkey")

	path := writeConfig(t, `
firewall:
  host: 10.0.0.1
  username: fileuser
  password: filepass
`)

	cfg, err := Load(path, false)

	require.NoError(t, err)
	assert.Equal(t, "envuser", cfg.Firewall.Username)
	assert.Equal(t, "envpass", cfg.Firewall.Password)
	assert.Equal(t, "envkey", cfg.Firewall.APIKey)
}

func TestCiphersFor(t *testing.T) {
	cfg := &Config{
		Ciphers: CipherConfig{
			Mgmt: []string{"aes128-ctr"},
			HA:   []string{"aes256-ctr"},
		},
	}

	assert.Equal(t, []string{"aes128-ctr"}, cfg.CiphersFor("mgmt"))
	assert.Equal(t, []string{"aes256-ctr"}, cfg.CiphersFor("ha"))
}
