package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_ValidFile(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "kitchen_crew.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "kitchen_crew", scenario.Name)
	require.Len(t, scenario.Goals, 1)
	assert.Equal(t, "kitchen", scenario.Goals[0].Ref)
	assert.True(t, scenario.Goals[0].Start)
	assert.Len(t, scenario.Flow, 5)
	require.NotNil(t, scenario.Flow[0].Quest)
	assert.Equal(t, "alice", scenario.Flow[0].Quest.User)
	require.NotNil(t, scenario.Flow[0].Expect.BadgeXP)
	assert.Equal(t, 25, *scenario.Flow[0].Expect.BadgeXP)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_FromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: tiny
description: "one step"
flow:
  - action: advance
    duration: 1h
`), 0644))

	scenario, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "tiny", scenario.Name)
}

func TestParseScenario_UnknownField(t *testing.T) {
	_, err := ParseScenario([]byte(`
name: typo
description: "misspelled key"
flow:
  - action: advance
    duraton: 1h
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing name",
			yaml:    "description: d\nflow: [{action: advance, duration: 1h}]\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			yaml:    "name: n\nflow: [{action: advance, duration: 1h}]\n",
			wantErr: "description is required",
		},
		{
			name:    "empty flow",
			yaml:    "name: n\ndescription: d\n",
			wantErr: "flow list is required",
		},
		{
			name:    "bad now",
			yaml:    "name: n\ndescription: d\nnow: yesterday\nflow: [{action: advance, duration: 1h}]\n",
			wantErr: "now:",
		},
		{
			name:    "unknown goal ref",
			yaml:    "name: n\ndescription: d\nflow: [{action: start, goal: ghost}]\n",
			wantErr: `flow[0]: unknown goal "ghost"`,
		},
		{
			name:    "duplicate ref",
			yaml:    "name: n\ndescription: d\ngoals: [{ref: a, type: collective, metric: custom, target: 1, participants: [x]}, {ref: a, type: collective, metric: custom, target: 1, participants: [x]}]\nflow: [{action: start, goal: a}]\n",
			wantErr: `duplicate ref "a"`,
		},
		{
			name:    "quest without user",
			yaml:    "name: n\ndescription: d\nflow: [{action: quest, quest: {id: c1}}]\n",
			wantErr: "quest.id and quest.user are required",
		},
		{
			name:    "negative duration",
			yaml:    "name: n\ndescription: d\nflow: [{action: advance, duration: -1h}]\n",
			wantErr: "duration must be positive",
		},
		{
			name:    "unknown action",
			yaml:    "name: n\ndescription: d\nflow: [{action: explode}]\n",
			wantErr: `unknown action "explode"`,
		},
		{
			name:    "unknown assertion",
			yaml:    "name: n\ndescription: d\nflow: [{action: advance, duration: 1h}]\nassertions: [{type: vibes}]\n",
			wantErr: `unknown assertion type "vibes"`,
		},
		{
			name:    "snapshot without user",
			yaml:    "name: n\ndescription: d\nflow: [{action: advance, duration: 1h}]\nassertions: [{type: snapshot}]\n",
			wantErr: "user is required for snapshot",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
