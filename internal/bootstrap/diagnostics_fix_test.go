package bootstrap

import (
	"errors"
	"strings"
	"testing"
)

// fakeInstaller records commands instead of running them.
func fakeInstaller(goos string, available map[string]bool, fail func(cmd string) bool) (*installer, *[]string) {
	var ran []string
	return &installer{
		goos: goos,
		lookPath: func(name string) (string, error) {
			if available[name] {
				return "/usr/bin/" + name, nil
			}
			return "", errors.New("not found")
		},
		run: func(name string, args ...string) error {
			cmd := formatCommand(name, args)
			ran = append(ran, cmd)
			if fail != nil && fail(cmd) {
				return errors.New("exit status 1")
			}
			return nil
		},
	}, &ran
}

// TestInstallFFmpegUsesFirstAvailableManager skips managers missing from PATH.
func TestInstallFFmpegUsesFirstAvailableManager(t *testing.T) {
	fixer, ran := fakeInstaller("linux", map[string]bool{"dnf": true, "ffmpeg": true}, nil)

	if err := fixer.installFFmpeg(); err != nil {
		t.Fatalf("installFFmpeg() error = %v", err)
	}
	if len(*ran) != 1 || (*ran)[0] != "dnf install -y ffmpeg" {
		t.Fatalf("commands = %v", *ran)
	}
}

// TestInstallFFmpegRetriesWithElevation falls back to pkexec on Linux.
func TestInstallFFmpegRetriesWithElevation(t *testing.T) {
	fixer, ran := fakeInstaller(
		"linux",
		map[string]bool{"apt-get": true, "pkexec": true, "ffmpeg": true},
		func(cmd string) bool { return strings.HasPrefix(cmd, "apt-get") },
	)

	if err := fixer.installFFmpeg(); err != nil {
		t.Fatalf("installFFmpeg() error = %v", err)
	}
	want := []string{
		"apt-get update",
		"pkexec apt-get update",
		"apt-get install -y ffmpeg",
		"pkexec apt-get install -y ffmpeg",
	}
	if strings.Join(*ran, "\n") != strings.Join(want, "\n") {
		t.Fatalf("commands = %v, want %v", *ran, want)
	}
}

// TestInstallFFmpegWithoutManagerFails reports the missing package manager.
func TestInstallFFmpegWithoutManagerFails(t *testing.T) {
	fixer, _ := fakeInstaller("darwin", nil, nil)
	err := fixer.installFFmpeg()
	if err == nil || !strings.Contains(err.Error(), "no supported package manager") {
		t.Fatalf("error = %v", err)
	}
}

// TestInstallGigaAMFallsBackToUserSite retries pip with --user.
func TestInstallGigaAMFallsBackToUserSite(t *testing.T) {
	fixer, ran := fakeInstaller(
		"linux",
		map[string]bool{"python3": true},
		func(cmd string) bool { return !strings.HasSuffix(cmd, "--user") },
	)

	if err := fixer.installGigaAM("python3"); err != nil {
		t.Fatalf("installGigaAM() error = %v", err)
	}
	want := `python3 -m pip install --upgrade gigaam[longform] --user`
	if len(*ran) != 2 || (*ran)[1] != want {
		t.Fatalf("commands = %v, want fallback %q", *ran, want)
	}
}

// TestInstallGigaAMRequiresInterpreter refuses to guess a Python.
func TestInstallGigaAMRequiresInterpreter(t *testing.T) {
	fixer, ran := fakeInstaller("linux", nil, nil)
	if err := fixer.installGigaAM("python3"); err == nil {
		t.Fatal("expected error for missing interpreter")
	}
	if err := fixer.installGigaAM(" "); err == nil {
		t.Fatal("expected error for empty interpreter")
	}
	if len(*ran) != 0 {
		t.Fatalf("commands = %v, want none", *ran)
	}
}

// TestInstallOrFixDiagnosticRejectsUnknownItem keeps the fix list explicit.
func TestInstallOrFixDiagnosticRejectsUnknownItem(t *testing.T) {
	fixer, _ := fakeInstaller("linux", nil, nil)
	app := newTestApp(t, &fakePipeline{})
	app.installer = fixer

	if _, err := app.InstallOrFixDiagnostic("hf_token"); err == nil {
		t.Fatal("expected unsupported item error")
	}
	if _, err := app.InstallOrFixDiagnostic(""); err == nil {
		t.Fatal("expected error for empty id")
	}
}
