package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/urfave/cli/v2"
)

// captureExit replaces osExit and stderr for the duration of the test.
func captureExit(t *testing.T) (*int, *bytes.Buffer) {
	t.Helper()
	code := -1
	var buf bytes.Buffer

	prevExit, prevStderr := osExit, stderr
	osExit = func(c int) { code = c }
	stderr = &buf
	t.Cleanup(func() {
		osExit, stderr = prevExit, prevStderr
	})
	return &code, &buf
}

func TestExitErrHandler_NilError(t *testing.T) {
	code, _ := captureExit(t)
	exitErrHandler(nil, nil)
	if *code != -1 {
		t.Errorf("nil error should not exit, got code %d", *code)
	}
}

func TestExitErrHandler_ExitCoder(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{"success no message", cli.Exit("", 0), 0, ""},
		{"config error", cli.Exit("invalid config", 1), 1, "invalid config\n"},
		{"archive failure", cli.Exit("deploy failed: archive", 2), 2, "deploy failed: archive\n"},
		{"upload failure", cli.Exit("", 3), 3, ""},
		{"version failure", cli.Exit("no tags", 4), 4, "no tags\n"},
		{"wrapped", errors.Join(errors.New("context"), cli.Exit("inner", 42)), 42, "inner\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, out := captureExit(t)
			exitErrHandler(nil, tt.err)
			if *code != tt.wantCode {
				t.Errorf("exit code = %d, want %d", *code, tt.wantCode)
			}
			if out.String() != tt.wantMsg {
				t.Errorf("stderr = %q, want %q", out.String(), tt.wantMsg)
			}
		})
	}
}

func TestExitErrHandler_RegularError(t *testing.T) {
	code, out := captureExit(t)
	exitErrHandler(nil, errors.New("regular error"))
	if *code != 1 {
		t.Errorf("exit code = %d, want 1", *code)
	}
	if out.String() != "Error: regular error\n" {
		t.Errorf("stderr = %q", out.String())
	}
}
