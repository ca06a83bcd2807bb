/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestLevelString(t *testing.T) {
	cases := []struct {
		level Level
		want  string
	}{
		{TraceLevel, "TRACE"},
		{DebugLevel, "DEBUG"},
		{InfoLevel, "INFO"},
		{WarnLevel, "WARN"},
		{ErrorLevel, "ERROR"},
		{Level(42), "UNKNOWN"},
		{Level(-1), "UNKNOWN"},
	}
	for _, tc := range cases {
		if got := tc.level.String(); got != tc.want {
			t.Errorf("Level(%d).String() = %q, want %q", tc.level, got, tc.want)
		}
	}
}

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want Level
	}{
		{"trace", TraceLevel},
		{"DEBUG", DebugLevel},
		{" info ", InfoLevel},
		{"warn", WarnLevel},
		{"error", ErrorLevel},
		{"verbose", InfoLevel},
		{"", InfoLevel},
	}
	for _, tc := range cases {
		if got := ParseLevel(tc.in); got != tc.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestPrettyLine(t *testing.T) {
	var buf bytes.Buffer
	l := &Logger{
		cfg: Config{Level: InfoLevel, Component: "pyneat"},
		out: &buf,
	}

	l.log(InfoLevel, "cells over limit", String("path", "nb.ipynb"), Int("cells", 12))

	line := strings.TrimSpace(buf.String())
	for _, want := range []string{"[INFO]", "pyneat:", "cells over limit"} {
		if !strings.Contains(line, want) {
			t.Errorf("line %q missing %q", line, want)
		}
	}
	// Field keys render sorted, so the tail is deterministic.
	if !strings.HasSuffix(line, "{cells=12, path=nb.ipynb}") {
		t.Errorf("line %q does not end with sorted fields", line)
	}
}

func TestColoredLevel(t *testing.T) {
	var buf bytes.Buffer
	l := &Logger{
		cfg: Config{Level: InfoLevel, UseColor: true},
		out: &buf,
	}

	l.log(ErrorLevel, "clone failed")

	if !strings.Contains(buf.String(), "\033[31mERROR\033[0m") {
		t.Errorf("expected red ERROR tag, got %q", buf.String())
	}
}

func TestJSONLine(t *testing.T) {
	var buf bytes.Buffer
	l := &Logger{
		cfg: Config{Level: InfoLevel, JSON: true, Component: "pyneat"},
		out: &buf,
	}

	l.log(WarnLevel, "tool missing", Err(errors.New("pyflakes not found")))

	var got struct {
		Level     string                 `json:"level"`
		Message   string                 `json:"message"`
		Component string                 `json:"component"`
		Fields    map[string]interface{} `json:"fields"`
	}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if got.Level != "WARN" || got.Message != "tool missing" || got.Component != "pyneat" {
		t.Errorf("unexpected entry: %+v", got)
	}
	if got.Fields["error"] != "pyflakes not found" {
		t.Errorf("error field = %v", got.Fields["error"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := &Logger{
		cfg: Config{Level: WarnLevel},
		out: &buf,
	}

	l.log(TraceLevel, "dropped trace")
	l.log(DebugLevel, "dropped debug")
	l.log(InfoLevel, "dropped info")
	l.log(WarnLevel, "kept warn")
	l.log(ErrorLevel, "kept error")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("entries below WarnLevel leaked: %s", out)
	}
	if !strings.Contains(out, "kept warn") || !strings.Contains(out, "kept error") {
		t.Errorf("entries at or above WarnLevel missing: %s", out)
	}
}

func TestFieldHelpers(t *testing.T) {
	cases := []struct {
		field Field
		key   string
		value interface{}
	}{
		{String("branch", "dev"), "branch", "dev"},
		{Int("findings", 7), "findings", 7},
		{Bool("verbose", true), "verbose", true},
		{Err(errors.New("boom")), "error", "boom"},
	}
	for _, tc := range cases {
		if tc.field.Key != tc.key || tc.field.Value != tc.value {
			t.Errorf("field = %+v, want {%s %v}", tc.field, tc.key, tc.value)
		}
	}
}

func TestInitializeResetsDestination(t *testing.T) {
	if err := Initialize(Config{Level: InfoLevel, Component: "pyneat"}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	var buf bytes.Buffer
	SetOutput(&buf)
	Info("captured")
	if !strings.Contains(buf.String(), "captured") {
		t.Fatalf("SetOutput did not redirect: %q", buf.String())
	}

	// Re-initialization sends output back to stderr.
	if err := Initialize(Config{Level: InfoLevel}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	before := buf.Len()
	Info("back to stderr")
	if buf.Len() != before {
		t.Errorf("entry after re-initialization still reached old buffer")
	}
}

func TestUninitializedLoggerIsSafe(t *testing.T) {
	saved := defaultLogger
	defaultLogger = nil
	defer func() { defaultLogger = saved }()

	// Info falls back to stderr; the rest drop silently. None may panic.
	Info("startup before init")
	Trace("t")
	Debug("d")
	Warn("w")
	Error("e")
	SetOutput(&bytes.Buffer{})
}
