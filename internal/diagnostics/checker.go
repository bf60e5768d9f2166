// Package diagnostics checks the external collaborators a subtitle run needs.
package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"gigasrt/internal/config"
	"gigasrt/internal/domain"
	"gigasrt/internal/media"
)

// Diagnostic item IDs.
const (
	ItemFFmpeg   = "tool_ffmpeg"
	ItemPython   = "tool_python"
	ItemGigaAM   = "gigaam_package"
	ItemSettings = "settings"
	ItemHFToken  = "hf_token"
)

// importTimeout bounds the Python import check; importing torch is slow.
const importTimeout = 90 * time.Second

const importCheck = "import gigaam; print(getattr(gigaam, '__version__', 'unknown'))"

// Checker validates external tools and the run configuration.
type Checker struct {
	lookPath func(string) (string, error)
	runner   media.CommandRunner
}

// NewChecker builds a checker using real OS dependencies.
func NewChecker() *Checker {
	return &Checker{
		lookPath: exec.LookPath,
		runner:   media.ExecRunner{},
	}
}

// NewCheckerForTests creates checker with injectable dependencies.
func NewCheckerForTests(lookPath func(string) (string, error), runner media.CommandRunner) *Checker {
	return &Checker{
		lookPath: lookPath,
		runner:   runner,
	}
}

// Run executes all checks and returns a combined report.
func (c *Checker) Run(ctx context.Context, settings domain.Settings) domain.DiagnosticReport {
	python := c.checkTool(ItemPython, "Python", settings.PythonPath, false,
		"Install Python 3.10+ or point --python at the interpreter of the environment that has GigaAM.")

	items := []domain.DiagnosticItem{
		c.checkTool(ItemFFmpeg, "ffmpeg", settings.FFmpegPath, true,
			"Install ffmpeg; it converts every input that is not 16 kHz mono WAV."),
		python,
		c.checkGigaAM(ctx, settings.PythonPath, python.Status == domain.DiagnosticStatusPass),
		checkSettings(settings),
		checkHFToken(settings.HFToken),
	}

	hasFailures := false
	for _, item := range items {
		if item.Status == domain.DiagnosticStatusFail {
			hasFailures = true
			break
		}
	}

	return domain.DiagnosticReport{
		GeneratedAt: time.Now().UTC(),
		HasFailures: hasFailures,
		Items:       items,
	}
}

// checkTool verifies a required executable resolves on PATH or as a path.
func (c *Checker) checkTool(id, label, name string, fixable bool, hint string) domain.DiagnosticItem {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.DiagnosticItem{
			ID:      id,
			Name:    label,
			Status:  domain.DiagnosticStatusFail,
			Message: fmt.Sprintf("No %s executable configured.", label),
			Hint:    hint,
			Fixable: fixable,
		}
	}

	path, err := c.lookPath(name)
	if err != nil {
		return domain.DiagnosticItem{
			ID:      id,
			Name:    label,
			Status:  domain.DiagnosticStatusFail,
			Message: fmt.Sprintf("Tool not found: %s", name),
			Hint:    hint,
			Fixable: fixable,
		}
	}

	return domain.DiagnosticItem{
		ID:      id,
		Name:    label,
		Status:  domain.DiagnosticStatusPass,
		Message: fmt.Sprintf("Found at %s", path),
	}
}

// checkGigaAM imports the ASR package with the configured interpreter.
func (c *Checker) checkGigaAM(ctx context.Context, python string, pythonOK bool) domain.DiagnosticItem {
	item := domain.DiagnosticItem{
		ID:   ItemGigaAM,
		Name: "GigaAM package",
		Hint: `Install it with: pip install "gigaam[longform]"`,
	}
	if !pythonOK {
		item.Status = domain.DiagnosticStatusFail
		item.Message = "Skipped: Python interpreter is not available."
		return item
	}

	ctx, cancel := context.WithTimeout(ctx, importTimeout)
	defer cancel()

	res, err := c.runner.Run(ctx, python, "-c", importCheck)
	if err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Fixable = true
		item.Message = "Cannot import gigaam"
		if tail := lastLine(res.Stderr); tail != "" {
			item.Message += ": " + tail
		} else if errors.Is(err, context.DeadlineExceeded) {
			item.Message += ": import timed out"
		}
		return item
	}

	item.Status = domain.DiagnosticStatusPass
	item.Hint = ""
	item.Message = "gigaam " + strings.TrimSpace(res.Stdout)
	return item
}

func checkSettings(settings domain.Settings) domain.DiagnosticItem {
	item := domain.DiagnosticItem{ID: ItemSettings, Name: "Settings"}
	if err := config.Validate(settings); err != nil {
		item.Status = domain.DiagnosticStatusFail
		item.Message = strings.ReplaceAll(err.Error(), "\n", "; ")
		item.Hint = "Fix the values in the settings panel or the config file."
		return item
	}
	item.Status = domain.DiagnosticStatusPass
	item.Message = fmt.Sprintf("model %s, segments %.0f-%.0fs", settings.Model, settings.MinDuration, settings.MaxDuration)
	return item
}

func checkHFToken(token string) domain.DiagnosticItem {
	item := domain.DiagnosticItem{ID: ItemHFToken, Name: "Hugging Face token"}
	if strings.TrimSpace(token) == "" {
		item.Status = domain.DiagnosticStatusWarn
		item.Message = "No token configured."
		item.Hint = "Long-form segmentation downloads the pyannote VAD model, which needs HF_TOKEN unless it is already cached."
		return item
	}
	item.Status = domain.DiagnosticStatusPass
	item.Message = "Token configured."
	return item
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(s)
}
