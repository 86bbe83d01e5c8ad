package monitoring

import (
	"bytes"
	"fmt"
	"strings"
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

	// nil installs a no-op that must not call the previous logger
	called = false
	SetLogger(nil)
	Logf("test message")
	if called {
		t.Error("No-op logger should not have triggered callback")
	}
}

func TestOpsf_FallsBackToLogf(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()
	SetLogWriters(nil, nil, nil)

	var got []string
	SetLogger(func(format string, v ...interface{}) {
		got = append(got, fmt.Sprintf(format, v...))
	})

	Warnf("pulse width index %d out of range", 9)
	Errorf("cannot open %s", "x.bin")

	if len(got) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(got))
	}
	if got[0] != "WARNING - pulse width index 9 out of range" {
		t.Errorf("unexpected warning text %q", got[0])
	}
	if got[1] != "ERROR - cannot open x.bin" {
		t.Errorf("unexpected error text %q", got[1])
	}
}

func TestSetLogWriters(t *testing.T) {
	var ops, diag, trace bytes.Buffer
	SetLogWriters(&ops, &diag, &trace)
	defer SetLogWriters(nil, nil, nil)

	Opsf("ops %d", 1)
	Diagf("diag %d", 2)
	Tracef("trace %d", 3)

	if !strings.Contains(ops.String(), "[gamic2iwrf] ") || !strings.Contains(ops.String(), "ops 1") {
		t.Errorf("ops stream missing prefix or message: %q", ops.String())
	}
	if !strings.Contains(diag.String(), "diag 2") {
		t.Errorf("diag stream missing message: %q", diag.String())
	}
	if !strings.Contains(trace.String(), "trace 3") {
		t.Errorf("trace stream missing message: %q", trace.String())
	}
	if !TraceEnabled() {
		t.Error("TraceEnabled should be true with a trace writer")
	}
}

func TestDisabledStreams(t *testing.T) {
	SetLogWriters(nil, nil, nil)

	// Should not panic.
	Diagf("no-op %d", 1)
	Tracef("no-op %d", 1)
	if TraceEnabled() {
		t.Error("TraceEnabled should be false without a trace writer")
	}
}
