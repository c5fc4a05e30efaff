package util

import (
	"strings"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapString(t *testing.T) {
	long := strings.Repeat("word ", 30)
	for _, line := range strings.Split(WrapString(long), "\n") {
		assert.LessOrEqual(t, len(line), Wrap, line)
	}

	assert.Equal(t, "first line\nsecond line", WrapString("first   line\nsecond line"))
	assert.Equal(t, "", WrapString(""))
	assert.Equal(t, strings.Repeat("x", Wrap+5), WrapString(strings.Repeat("x", Wrap+5)))
}

func TestGetServerConfigRejectsInvalidValues(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("RELAY_SOCKET_PERMISSIONS", "rw-------")
	InitConfig()
	_, err := GetServerConfig()
	assert.Error(t, err)

	t.Setenv("RELAY_SOCKET_PERMISSIONS", "0600")
	t.Setenv("RELAY_FRAMING", "stream")
	conf, err := GetServerConfig()
	require.NoError(t, err)
	assert.Equal(t, "stream", conf.Framing.String())
	assert.Equal(t, "0600", conf.SocketPermissions)
}
