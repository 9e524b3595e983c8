package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/natefinch/lumberjack.v2"
)

func TestGetLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, GetLevel("DEBUG"))
	assert.Equal(t, logrus.WarnLevel, GetLevel("warning"))
	assert.Equal(t, logrus.ErrorLevel, GetLevel("error"))
	assert.Equal(t, logrus.InfoLevel, GetLevel(""))
	assert.Equal(t, logrus.InfoLevel, GetLevel("loud"))
}

func TestOutput(t *testing.T) {
	assert.Equal(t, os.Stdout, Output(LoggerSetupParams{}))

	name := filepath.Join(t.TempDir(), "planner")
	out := Output(LoggerSetupParams{LogFileName: name})
	lj, ok := out.(*lumberjack.Logger)
	require.True(t, ok)
	assert.Equal(t, name+".log", lj.Filename)
	assert.Equal(t, 50, lj.MaxSize)

	out = Output(LoggerSetupParams{LogFileName: name + ".log", LogToStdout: true, MaxSizeMB: 5})
	_, ok = out.(*lumberjack.Logger)
	assert.False(t, ok, "stdout plus file is a combined writer")
}
