package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	goruntime "runtime"
	"strings"
	"time"

	"gigasrt/internal/diagnostics"
	"gigasrt/internal/domain"
)

const installCommandTimeout = 45 * time.Minute

// gigaamRequirement is the pip requirement that pulls in long-form support.
const gigaamRequirement = "gigaam[longform]"

type installOption struct {
	manager  string
	commands [][]string
}

// installer runs package-manager remediations.
type installer struct {
	goos     string
	lookPath func(string) (string, error)
	run      func(name string, args ...string) error
}

func newInstaller() *installer {
	return &installer{
		goos:     goruntime.GOOS,
		lookPath: exec.LookPath,
		run:      runCommand,
	}
}

// InstallOrFixDiagnostic applies an OS-specific remediation for one failed diagnostic item.
func (a *App) InstallOrFixDiagnostic(itemID string) (domain.DiagnosticReport, error) {
	id := strings.TrimSpace(itemID)
	if id == "" {
		return domain.DiagnosticReport{}, fmt.Errorf("diagnostic item id is required")
	}

	fixer := a.installer
	if fixer == nil {
		fixer = newInstaller()
	}
	settings := a.currentSettings()

	var fixErr error
	switch id {
	case diagnostics.ItemFFmpeg:
		fixErr = fixer.installFFmpeg()
	case diagnostics.ItemGigaAM:
		fixErr = fixer.installGigaAM(settings.PythonPath)
	default:
		return domain.DiagnosticReport{}, fmt.Errorf("unsupported diagnostic item id: %s", id)
	}

	report := a.refreshDiagnosticsFromSettings(settings)
	if fixErr != nil {
		return report, fixErr
	}
	return report, nil
}

func (i *installer) ffmpegOptions() []installOption {
	switch i.goos {
	case "windows":
		return []installOption{
			{
				manager: "winget",
				commands: [][]string{
					{"winget", "install", "--id", "Gyan.FFmpeg", "--exact", "--accept-source-agreements", "--accept-package-agreements"},
				},
			},
			{manager: "choco", commands: [][]string{{"choco", "install", "ffmpeg", "-y"}}},
			{manager: "scoop", commands: [][]string{{"scoop", "install", "ffmpeg"}}},
		}
	case "darwin":
		return []installOption{
			{manager: "brew", commands: [][]string{{"brew", "install", "ffmpeg"}}},
		}
	default:
		return []installOption{
			{
				manager: "apt-get",
				commands: [][]string{
					{"apt-get", "update"},
					{"apt-get", "install", "-y", "ffmpeg"},
				},
			},
			{manager: "dnf", commands: [][]string{{"dnf", "install", "-y", "ffmpeg"}}},
			{manager: "pacman", commands: [][]string{{"pacman", "-Sy", "--noconfirm", "ffmpeg"}}},
			{manager: "zypper", commands: [][]string{{"zypper", "install", "-y", "ffmpeg"}}},
			{manager: "brew", commands: [][]string{{"brew", "install", "ffmpeg"}}},
		}
	}
}

func (i *installer) installFFmpeg() error {
	if err := i.runFirstSuccessfulInstall(i.ffmpegOptions()); err != nil {
		return fmt.Errorf("install ffmpeg: %w", err)
	}
	if err := i.requireToolsOnPath("ffmpeg"); err != nil {
		return fmt.Errorf("verify ffmpeg on PATH: %w", err)
	}
	return nil
}

// installGigaAM installs the ASR package into the configured interpreter,
// falling back to a per-user install when site-packages is not writable.
func (i *installer) installGigaAM(python string) error {
	python = strings.TrimSpace(python)
	if python == "" {
		return fmt.Errorf("python interpreter is not configured")
	}
	if _, err := i.lookPath(python); err != nil {
		return fmt.Errorf("python interpreter %q not found", python)
	}

	base := []string{"-m", "pip", "install", "--upgrade", gigaamRequirement}
	err := i.run(python, base...)
	if err == nil {
		return nil
	}
	if userErr := i.run(python, append(base, "--user")...); userErr == nil {
		return nil
	} else {
		return fmt.Errorf("pip install %s: %w", gigaamRequirement, errors.Join(err, userErr))
	}
}

func (i *installer) runFirstSuccessfulInstall(options []installOption) error {
	if len(options) == 0 {
		return fmt.Errorf("no install commands configured for OS %s", i.goos)
	}

	errorsByManager := make([]string, 0, len(options))
	atLeastOneManager := false

	for _, option := range options {
		if !i.commandAvailable(option.manager) {
			continue
		}
		atLeastOneManager = true
		if err := i.runInstallCommands(option.commands); err == nil {
			return nil
		} else {
			errorsByManager = append(errorsByManager, fmt.Sprintf("%s: %v", option.manager, err))
		}
	}

	if !atLeastOneManager {
		return fmt.Errorf("no supported package manager found for %s", i.goos)
	}
	return errors.New(strings.Join(errorsByManager, " | "))
}

func (i *installer) runInstallCommands(commands [][]string) error {
	for _, command := range commands {
		if err := i.runWithPossibleElevation(command); err != nil {
			return err
		}
	}
	return nil
}

func (i *installer) runWithPossibleElevation(command []string) error {
	if len(command) == 0 {
		return fmt.Errorf("empty command")
	}

	candidates := [][]string{command}
	if i.goos == "linux" && requiresElevation(command[0]) {
		if i.commandAvailable("pkexec") {
			candidates = append(candidates, append([]string{"pkexec"}, command...))
		}
		if i.commandAvailable("sudo") {
			candidates = append(candidates, append([]string{"sudo", "-n"}, command...))
		}
	}

	attemptErrors := make([]string, 0, len(candidates))
	for _, candidate := range candidates {
		if err := i.run(candidate[0], candidate[1:]...); err == nil {
			return nil
		} else {
			attemptErrors = append(attemptErrors, err.Error())
		}
	}
	return errors.New(strings.Join(attemptErrors, " | "))
}

func (i *installer) commandAvailable(name string) bool {
	_, err := i.lookPath(name)
	return err == nil
}

func (i *installer) requireToolsOnPath(names ...string) error {
	missing := make([]string, 0, len(names))
	for _, name := range names {
		if !i.commandAvailable(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing tools on PATH: %s", strings.Join(missing, ", "))
	}
	return nil
}

func runCommand(name string, args ...string) error {
	ctx, cancel := context.WithTimeout(context.Background(), installCommandTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	output, err := cmd.CombinedOutput()
	if err == nil {
		return nil
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s timed out after %s", formatCommand(name, args), installCommandTimeout)
	}

	trimmed := strings.TrimSpace(string(output))
	if len(trimmed) > 500 {
		trimmed = "..." + trimmed[len(trimmed)-500:]
	}
	if trimmed == "" {
		return fmt.Errorf("%s failed: %w", formatCommand(name, args), err)
	}
	return fmt.Errorf("%s failed: %w (%s)", formatCommand(name, args), err, trimmed)
}

func formatCommand(name string, args []string) string {
	parts := append([]string{name}, args...)
	return strings.Join(parts, " ")
}

func requiresElevation(manager string) bool {
	switch manager {
	case "apt-get", "dnf", "pacman", "zypper":
		return true
	default:
		return false
	}
}
