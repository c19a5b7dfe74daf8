package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
profiles:
  - name: flac-to-mp3
    source: [flac, FLAC]
    target: mp3
    steps:
      - ffmpeg -i - -f wav -
      - command: lame -b %b --tt "%t" - -
        env:
          LAME_NICE: "1"
  - name: ogg-to-mp3
    source: [ogg]
    target: mp3
    steps:
      - ffmpeg -i %s -f mp3 -
`

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)
	require.Len(t, cfg.Profiles, 2)

	p := cfg.Profiles[0]
	assert.Equal(t, "flac-to-mp3", p.Name)
	assert.Equal(t, "mp3", p.Target)
	require.Len(t, p.Steps, 2)
	assert.Equal(t, Step{Command: "ffmpeg -i - -f wav -"}, p.Steps[0])
	assert.Equal(t, `lame -b %b --tt "%t" - -`, p.Steps[1].Command)
	assert.Equal(t, map[string]string{"LAME_NICE": "1"}, p.Steps[1].Env)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		config string
		want   string
	}{
		{
			name:   "not yaml",
			config: "profiles: [",
			want:   "invalid profile config",
		},
		{
			name:   "missing name",
			config: "profiles:\n  - steps: [cat]\n",
			want:   "name is required",
		},
		{
			name:   "duplicate name",
			config: "profiles:\n  - name: a\n    steps: [cat]\n  - name: a\n    steps: [cat]\n",
			want:   "duplicate name",
		},
		{
			name:   "no steps",
			config: "profiles:\n  - name: a\n",
			want:   "at least one step",
		},
		{
			name:   "empty command",
			config: "profiles:\n  - name: a\n    steps:\n      - command: \"  \"\n",
			want:   "command is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.config))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Profiles, 2)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv(ConfigEnv, "")
	_, err := LoadFromEnv()
	assert.ErrorIs(t, err, ErrNoConfig)

	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))
	t.Setenv(ConfigEnv, path)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Len(t, cfg.Profiles, 2)
}

func TestLookup(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	p, err := cfg.Lookup("ogg-to-mp3")
	require.NoError(t, err)
	assert.Equal(t, "ogg-to-mp3", p.Name)

	_, err = cfg.Lookup("wma-to-mp3")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestForSource(t *testing.T) {
	cfg, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)

	matches := cfg.ForSource("flac")
	require.Len(t, matches, 1)
	assert.Equal(t, "flac-to-mp3", matches[0].Name)

	assert.Len(t, cfg.ForSource("OGG"), 1)
	assert.Empty(t, cfg.ForSource("wma"))
}

func TestStepEnviron(t *testing.T) {
	assert.Nil(t, (&Step{Command: "cat"}).environ())

	env := (&Step{Command: "cat", Env: map[string]string{"B": "2", "A": "1"}}).environ()
	require.GreaterOrEqual(t, len(env), 2)
	assert.Equal(t, []string{"A=1", "B=2"}, env[len(env)-2:])
}
