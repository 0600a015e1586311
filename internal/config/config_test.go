/*
NAME
  config_test.go

DESCRIPTION
  config_test.go provides testing for Config's Update and Validate methods,
  and for LoadFile's key=value parsing.

AUTHOR
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestValidateDefaults(t *testing.T) {
	c := &Config{}
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := Config{
		LogLevel:        DefaultLogLevel,
		FragmentTimeout: DefaultFragmentTimeout,
		ListenPort:      DefaultListenPort,
		PCAPPort:        DefaultPCAPPort,
		OutputPath:      DefaultOutputPath,
		SweepInterval:   DefaultSweepInterval,
	}
	if diff := cmp.Diff(want, *c); diff != "" {
		t.Errorf("Validate result mismatch (-want +got):\n%s", diff)
	}
}

func TestValidateRejectsBadPort(t *testing.T) {
	c := New()
	c.ListenPort = 70000
	if err := c.Validate(); err == nil {
		t.Error("expected error for out-of-range listen port")
	}
}

func TestUpdate(t *testing.T) {
	c := New()
	err := c.Update(map[string]string{
		KeyFragmentTimeout: "250ms",
		KeyDONL:            "true",
		KeyListenPort:      "6000",
		KeyOutputPath:      "/tmp/out.hevc",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if c.FragmentTimeout != 250*time.Millisecond {
		t.Errorf("FragmentTimeout: got %v, want 250ms", c.FragmentTimeout)
	}
	if !c.DONL {
		t.Error("DONL: got false, want true")
	}
	if c.ListenPort != 6000 {
		t.Errorf("ListenPort: got %d, want 6000", c.ListenPort)
	}
	if c.OutputPath != "/tmp/out.hevc" {
		t.Errorf("OutputPath: got %q, want /tmp/out.hevc", c.OutputPath)
	}
}

func TestUpdateInvalidValue(t *testing.T) {
	c := New()
	err := c.Update(map[string]string{KeyListenPort: "not-a-number"})
	if err == nil {
		t.Error("expected error for invalid ListenPort value")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hevcreceive.conf")
	contents := "# comment\nListenPort=7000\n\nDONL=true\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("could not write test config file: %v", err)
	}

	vars, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c := New()
	if err := c.Update(vars); err != nil {
		t.Fatalf("unexpected error updating from loaded vars: %v", err)
	}
	if c.ListenPort != 7000 {
		t.Errorf("ListenPort: got %d, want 7000", c.ListenPort)
	}
	if !c.DONL {
		t.Error("DONL: got false, want true")
	}
}

func TestLoadFileMissingEquals(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.conf")
	if err := os.WriteFile(path, []byte("NotAKeyValueLine\n"), 0o644); err != nil {
		t.Fatalf("could not write test config file: %v", err)
	}

	if _, err := LoadFile(path); err == nil {
		t.Error("expected error for malformed line")
	}
}
