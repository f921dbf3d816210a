package logcfg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunLoggerConfig(t *testing.T) {
	t.Cleanup(func() {
		logrus.SetOutput(os.Stderr)
		logrus.SetLevel(logrus.InfoLevel)
		logrus.SetReportCaller(false)
	})
	logFile := filepath.Join(t.TempDir(), "bot.log")

	require.NoError(t, RunLoggerConfig("debug", logFile))
	logrus.Debug("keenetic bot started")

	assert.Equal(t, logrus.DebugLevel, logrus.GetLevel())
	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "keenetic bot started")
	assert.Contains(t, string(data), "logcfg_test.go")
}

func TestRunLoggerConfig_InvalidLevel(t *testing.T) {
	assert.Error(t, RunLoggerConfig("loud", ""))
}
