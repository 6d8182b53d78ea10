package configs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/swiftsearch/internal/config"
)

func TestUserConfigTemplate_MatchesDefaults(t *testing.T) {
	// Given: the defaults
	want := config.NewConfig()

	// When: the template is applied over them
	got := config.NewConfig()
	require.NoError(t, yaml.Unmarshal([]byte(UserConfigTemplate), got))

	// Then: nothing changes and the result validates
	assert.Equal(t, want, got)
	assert.NoError(t, got.Validate())
}
