package main

import (
	"errors"
	"log/slog"
	"os"
	"testing"
)

func TestInjectGlobals(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	injectGlobals(logger)
	if Logger != logger {
		t.Error("injectGlobals did not set the package logger")
	}
}

func TestIsAddressInUse(t *testing.T) {
	if isAddressInUse(nil) {
		t.Error("nil error is not an address conflict")
	}
	if !isAddressInUse(errors.New("listen tcp :8000: bind: address already in use")) {
		t.Error("bind conflict should be detected")
	}
	if isAddressInUse(errors.New("connection refused")) {
		t.Error("unrelated errors are not address conflicts")
	}
}
