package logger

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type LoggerTest struct {
	suite.Suite
}

func TestLoggerSuite(t *testing.T) {
	suite.Run(t, new(LoggerTest))
}

func redirectLogsToBuffer(buf *bytes.Buffer, level string) {
	lv := new(slog.LevelVar)
	defaultLoggerFactory = &loggerFactory{level: level, format: "text"}
	defaultLogger = slog.New(defaultLoggerFactory.createJSONOrTextHandler(buf, lv, ""))
	setLoggingLevel(level, lv)
}

func (t *LoggerTest) TestSeverityFiltering() {
	var buf bytes.Buffer
	redirectLogsToBuffer(&buf, Warning)

	Infof("should not appear")
	t.Empty(buf.String())

	Warnf("should appear")
	t.Regexp(regexp.MustCompile(`severity=WARNING`), buf.String())
}

func (t *LoggerTest) TestTraceIsMostVerbose() {
	var buf bytes.Buffer
	redirectLogsToBuffer(&buf, Trace)

	Tracef("hello %d", 1)
	t.Regexp(regexp.MustCompile(`severity=TRACE.*hello 1`), buf.String())
}

func (t *LoggerTest) TestOffSuppressesEverything() {
	var buf bytes.Buffer
	redirectLogsToBuffer(&buf, Off)

	Errorf("should not appear either")
	t.Empty(buf.String())
}

func TestSetLoggingLevelMapsNames(t *testing.T) {
	cases := []struct {
		in  string
		out slog.Level
	}{
		{Trace, LevelTrace},
		{Debug, LevelDebug},
		{Info, LevelInfo},
		{Warning, LevelWarn},
		{Error, LevelError},
		{Off, LevelOff},
	}
	for _, c := range cases {
		lv := new(slog.LevelVar)
		setLoggingLevel(c.in, lv)
		assert.Equal(t, c.out, lv.Level())
	}
}

func TestInitLogFileConfiguresRotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blockfs.log")

	err := InitLogFile(path, Debug, "json", DefaultRotateConfig())

	assert.NoError(t, err)
	assert.Equal(t, path, defaultLoggerFactory.file.Filename)
	assert.Equal(t, "json", defaultLoggerFactory.format)
}

func TestInitLogFileRejectsEmptyPath(t *testing.T) {
	err := InitLogFile("", Debug, "text", DefaultRotateConfig())
	assert.Error(t, err)
}
