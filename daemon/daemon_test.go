package daemon

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestIsDaemonEnvFlag(t *testing.T) {
	t.Setenv(EnvFlag, "true")
	if !IsDaemon() {
		t.Fatalf("IsDaemon should return true when %s=true", EnvFlag)
	}
	t.Setenv(EnvFlag, "false")
	if IsDaemon() {
		t.Fatalf("IsDaemon should return false when %s=false", EnvFlag)
	}
}

func TestGetExecutablePathReturnsAbs(t *testing.T) {
	path, err := GetExecutablePath()
	if err != nil {
		t.Fatalf("GetExecutablePath error: %v", err)
	}
	if !filepath.IsAbs(path) {
		t.Fatalf("expected absolute path, got %s", path)
	}
}

func TestStopDaemonMissingPIDFile(t *testing.T) {
	if err := StopDaemon(filepath.Join(t.TempDir(), "bot.pid")); err == nil {
		t.Fatalf("expected error when pid file is missing")
	}
}

func TestReadPID(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.pid")
	if err := os.WriteFile(good, []byte("4242\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	pid, err := ReadPID(good)
	if err != nil || pid != 4242 {
		t.Fatalf("ReadPID = %d, %v", pid, err)
	}

	bad := filepath.Join(dir, "bad.pid")
	if err := os.WriteFile(bad, []byte("nope"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadPID(bad); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestStartDaemonRefusesWhenPIDRecorded(t *testing.T) {
	pidFile := filepath.Join(t.TempDir(), "bot.pid")
	if err := os.WriteFile(pidFile, []byte("4242"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := StartDaemon(nil, pidFile); err == nil {
		t.Fatalf("expected refusal with an existing PID file")
	}
}

func TestStripFlags(t *testing.T) {
	got := StripFlags([]string{"-start-daemon", "-debug", "--restart-daemon", "-flatten"})
	if want := []string{"-debug", "-flatten"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("StripFlags = %v, want %v", got, want)
	}
}

// StartDaemon/RestartDaemon spawn real processes and are not exercised here.
