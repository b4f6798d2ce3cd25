package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileHook_RoutesByLevel(t *testing.T) {
	var errBuf, infoBuf, debugBuf bytes.Buffer

	log := logrus.New()
	log.SetOutput(&bytes.Buffer{})
	log.SetLevel(logrus.DebugLevel)
	log.SetFormatter(&logrus.JSONFormatter{})
	log.AddHook(&FileHook{ErrorWriter: &errBuf, InfoWriter: &infoBuf, DebugWriter: &debugBuf})

	log.Error("storage unavailable")
	log.Warn("membership check failed")
	log.Info("user admitted")
	log.Debug("update received")

	assert.Contains(t, errBuf.String(), "storage unavailable")
	assert.NotContains(t, errBuf.String(), "user admitted")

	assert.Contains(t, infoBuf.String(), "membership check failed")
	assert.Contains(t, infoBuf.String(), "user admitted")
	assert.NotContains(t, infoBuf.String(), "update received")

	assert.Contains(t, debugBuf.String(), "update received")
}

func TestFileHook_NilWriterIsIgnored(t *testing.T) {
	hook := &FileHook{}
	entry := logrus.NewEntry(logrus.New())
	entry.Level = logrus.InfoLevel
	entry.Message = "no writers"

	assert.NoError(t, hook.Fire(entry))
}

func TestInitLogger_CreatesLogDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")

	require.NoError(t, InitLogger("not-a-level", dir))
	t.Cleanup(func() { Logger = nil })

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, logrus.InfoLevel, Logger.GetLevel(), "invalid level falls back to info")
}

func TestHelpers_NoLoggerIsSafe(t *testing.T) {
	saved := Logger
	Logger = nil
	t.Cleanup(func() { Logger = saved })

	assert.NotPanics(t, func() {
		Info("info", map[string]interface{}{"k": "v"})
		ErrorMsg("error")
		WarnMsg("warn")
		DebugMsg("debug")
	})
}
