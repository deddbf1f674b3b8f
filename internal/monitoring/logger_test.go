package monitoring

import (
	"fmt"
	"testing"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) {
		called = true
	})
	Logf("test message")
	if !called {
		t.Error("Custom logger was not called")
	}

	called = false
	SetLogger(nil)
	Logf("test message")
	if called {
		t.Error("No-op logger should not have triggered callback")
	}
}

func TestSetDebug(t *testing.T) {
	origLog, origDebug := Logf, Debugf
	defer func() { Logf, Debugf = origLog, origDebug }()

	var lines []string
	SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})

	Debugf("muted %d", 1)
	if len(lines) != 0 {
		t.Fatalf("Debugf logged while disabled: %v", lines)
	}

	SetDebug(true)
	Debugf("peak at %.1f", 2.5)
	if len(lines) != 1 || lines[0] != "[debug] peak at 2.5" {
		t.Errorf("lines = %q, want [\"[debug] peak at 2.5\"]", lines)
	}

	SetDebug(false)
	Debugf("muted again")
	if len(lines) != 1 {
		t.Errorf("Debugf logged after SetDebug(false): %v", lines)
	}
}
