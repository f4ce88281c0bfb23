package log

import (
	"bytes"
	"regexp"
	"strings"
	"testing"
)

func TestSimpleFormatterLine(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger("debug", &buf)

	logger.WithFields(map[string]interface{}{"topic": "/map", "bytes": 42}).Infof("received %s", "grid")

	line := buf.String()
	pattern := regexp.MustCompile(`^\d{4}/\d{2}/\d{2} \d{2}:\d{2}:\d{2}\.\d{6} \[INF\] received grid bytes=42 topic=/map\n$`)
	if !pattern.MatchString(line) {
		t.Errorf("unexpected log line: %q", line)
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger("warn", &buf)

	logger.Infof("hidden")
	logger.Warnf("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info entry should be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "[WAR] shown") {
		t.Errorf("expected truncated warning level, got %q", out)
	}
}

func TestInvalidLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger("not-a-level", &buf)

	logger.Debugf("debug")
	logger.Infof("info")

	out := buf.String()
	if strings.Contains(out, "debug") || !strings.Contains(out, "info") {
		t.Errorf("expected info level default, got %q", out)
	}
}

func TestWithFieldKeepsParentClean(t *testing.T) {
	var buf bytes.Buffer
	parent := NewWriterLogger("info", &buf)
	child := parent.WithField("service", "teleop")

	child.Errorf("boom")
	parent.Infof("plain")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected two lines, got %q", buf.String())
	}
	if !strings.HasSuffix(lines[0], "[ERR] boom service=teleop") {
		t.Errorf("unexpected child line: %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], "[INF] plain") {
		t.Errorf("unexpected parent line: %q", lines[1])
	}
}
