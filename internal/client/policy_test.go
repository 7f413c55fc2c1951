package client

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBehavior(t *testing.T) {
	assert.Equal(t, BehaviorDisconnectOther, ParseBehavior(" Disconnect_Other "))
	assert.Equal(t, BehaviorWarnOther, ParseBehavior("warn_other"))
	assert.Equal(t, BehaviorPrompt, ParseBehavior(""))
	assert.Equal(t, BehaviorPrompt, ParseBehavior("nuke_everything"))
}

func TestLoadPolicy_MissingFileIsDefault(t *testing.T) {
	p, err := LoadPolicy(filepath.Join(t.TempDir(), "none.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultPolicy(), p)
}

func TestSavePolicy_KeepsOtherKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voicectl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_attempts: 7\npolicy:\n  behavior: keep\n"), 0o600))

	p, err := LoadPolicy(path)
	require.NoError(t, err)
	assert.Equal(t, Policy{Behavior: BehaviorKeep}, p)

	require.NoError(t, SavePolicy(path, Policy{Behavior: BehaviorLeaveOtherRoom, AutoQuit: true}))

	p, err = LoadPolicy(path)
	require.NoError(t, err)
	assert.Equal(t, Policy{Behavior: BehaviorLeaveOtherRoom, AutoQuit: true}, p)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "max_attempts: 7")
}
