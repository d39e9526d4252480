package report_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"

	"github.com/waabox/gitlab-trace/internal/report"
)

func TestLogger_WritesBareMessages(t *testing.T) {
	var buf bytes.Buffer
	l := report.New(&buf, zapcore.InfoLevel)

	l.Infof("Current branch: %s", "main")
	l.Warnf("Job %s not found", "lint")
	l.Errorf("Could not determine GitLab project ID")

	assert.Equal(t, "Current branch: main\nJob lint not found\nCould not determine GitLab project ID\n", buf.String())
}

func TestLogger_DebugHiddenUntilLevelLowered(t *testing.T) {
	var buf bytes.Buffer
	l := report.New(&buf, zapcore.InfoLevel)

	l.Debugf("hidden")
	assert.Empty(t, buf.String())

	l.SetLevel(zapcore.DebugLevel)
	l.Debugf("shown")
	assert.Equal(t, "shown\n", buf.String())
}

func TestNop_DiscardsEverything(t *testing.T) {
	l := report.Nop()
	l.Infof("nothing")
	l.Warnf("nothing")
	assert.NoError(t, l.Close())
}
