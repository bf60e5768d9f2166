package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"gigasrt/internal/batch"
	"gigasrt/internal/config"
	"gigasrt/internal/discovery"
	"gigasrt/internal/domain"
)

// isolateConfig keeps tests away from the developer's real config and token.
func isolateConfig(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv(config.HFTokenEnv, "")
}

func parseFlags(t *testing.T, args ...string) (*pflag.FlagSet, *rootFlags) {
	t.Helper()
	flags := &rootFlags{}
	fs := pflag.NewFlagSet("gigasrt", pflag.ContinueOnError)
	bindFlags(fs, flags)
	args = append([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env")}, args...)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse %v: %v", args, err)
	}
	return fs, flags
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gigasrt.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// TestResolveConfigDefaults checks the built-in defaults without a config file.
func TestResolveConfigDefaults(t *testing.T) {
	isolateConfig(t)
	fs, flags := parseFlags(t)

	cfg, _, err := resolveConfig(fs, flags)
	if err != nil {
		t.Fatalf("resolveConfig() error = %v", err)
	}
	want := config.DefaultSettings()
	if cfg.Settings != want {
		t.Fatalf("settings = %+v, want %+v", cfg.Settings, want)
	}
	if !cfg.Logging.Enabled {
		t.Fatal("logging should be enabled by default")
	}
}

// TestResolveConfigPrecedence checks defaults < file < env < explicit flags.
func TestResolveConfigPrecedence(t *testing.T) {
	isolateConfig(t)
	path := writeConfig(t, `
[asr]
model = "rnnt"
device = "cpu"
hf_token = "hf_file"
max_duration = 30.0

[run]
error_policy = "raise"
recursive = true
`)
	t.Setenv(config.HFTokenEnv, "hf_env")

	fs, flags := parseFlags(t, "--config", path, "--device", "cuda", "--min-duration", "10")
	cfg, resolved, err := resolveConfig(fs, flags)
	if err != nil {
		t.Fatalf("resolveConfig() error = %v", err)
	}
	s := cfg.Settings
	if resolved != path {
		t.Fatalf("path = %s, want %s", resolved, path)
	}
	if s.Model != domain.ModelRNNT || s.MaxDuration != 30 || !s.Recursive || s.ErrorPolicy != domain.ErrorPolicyRaise {
		t.Fatalf("file values lost: %+v", s)
	}
	if s.HFToken != "hf_env" {
		t.Fatalf("token = %q, want env to beat the file", s.HFToken)
	}
	if s.Device != "cuda" || s.MinDuration != 10 {
		t.Fatalf("flags ignored: %+v", s)
	}

	fs, flags = parseFlags(t, "--config", path, "--hf-token", "hf_flag", "--ignore-errors", "--no-logging")
	cfg, _, err = resolveConfig(fs, flags)
	if err != nil {
		t.Fatalf("resolveConfig() error = %v", err)
	}
	if cfg.Settings.HFToken != "hf_flag" || cfg.Settings.ErrorPolicy != domain.ErrorPolicyIgnore || cfg.Logging.Enabled {
		t.Fatalf("explicit flags should win: %+v logging=%v", cfg.Settings, cfg.Logging.Enabled)
	}
}

// TestResolveConfigEnvFile loads the token from a dotenv file.
func TestResolveConfigEnvFile(t *testing.T) {
	isolateConfig(t)
	os.Unsetenv(config.HFTokenEnv)
	envPath := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(envPath, []byte("HF_TOKEN=hf_dotenv\n"), 0o644); err != nil {
		t.Fatalf("write env: %v", err)
	}

	fs, flags := parseFlags(t, "--env-file", envPath)
	cfg, _, err := resolveConfig(fs, flags)
	if err != nil {
		t.Fatalf("resolveConfig() error = %v", err)
	}
	if cfg.Settings.HFToken != "hf_dotenv" {
		t.Fatalf("token = %q, want hf_dotenv", cfg.Settings.HFToken)
	}
}

// TestResolveConfigRejectsInvalidFlags maps bad values to usage errors.
func TestResolveConfigRejectsInvalidFlags(t *testing.T) {
	isolateConfig(t)
	cases := [][]string{
		{"--model", "large-v3"},
		{"--min-duration", "40"},
		{"--max-duration", "0"},
	}
	for _, args := range cases {
		fs, flags := parseFlags(t, args...)
		_, _, err := resolveConfig(fs, flags)
		var usage *usageError
		if !errors.As(err, &usage) {
			t.Fatalf("%v: error = %v, want usage error", args, err)
		}
	}
}

// TestModelFlagIsCaseInsensitive accepts RNNT as rnnt.
func TestModelFlagIsCaseInsensitive(t *testing.T) {
	isolateConfig(t)
	fs, flags := parseFlags(t, "--model", " RNNT ")
	cfg, _, err := resolveConfig(fs, flags)
	if err != nil {
		t.Fatalf("resolveConfig() error = %v", err)
	}
	if cfg.Settings.Model != domain.ModelRNNT {
		t.Fatalf("model = %s, want rnnt", cfg.Settings.Model)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env"), "--no-logging"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// TestNoInputsIsUsageError requires inputs unless the GUI is requested.
func TestNoInputsIsUsageError(t *testing.T) {
	isolateConfig(t)
	_, err := execute(t)
	var usage *usageError
	if !errors.As(err, &usage) {
		t.Fatalf("error = %v, want usage error", err)
	}
	if code := exitCode(err); code != 2 {
		t.Fatalf("exit code = %d, want 2", code)
	}
}

// TestPolicyFlagsAreExclusive rejects both policies at once with status 2.
func TestPolicyFlagsAreExclusive(t *testing.T) {
	isolateConfig(t)
	dir := t.TempDir()
	cases := [][]string{
		{"--ignore-errors", "--raise-errors", dir},
		{"--logging", "--no-logging", dir},
		{"--gui", "--check"},
	}
	for _, args := range cases {
		_, err := execute(t, args...)
		var usage *usageError
		if !errors.As(err, &usage) {
			t.Fatalf("%v: error = %v, want usage error", args, err)
		}
		if code := exitCode(err); code != 2 {
			t.Fatalf("%v: exit code = %d, want 2", args, code)
		}
	}
}

// TestFlagParseErrorsAreUsageErrors exits 2 on unknown flags and bad values.
func TestFlagParseErrorsAreUsageErrors(t *testing.T) {
	isolateConfig(t)
	cases := [][]string{
		{"--no-such-flag"},
		{"--max-duration", "long"},
		{"--model"},
	}
	for _, args := range cases {
		_, err := execute(t, args...)
		if code := exitCode(err); code != 2 {
			t.Fatalf("%v: exit code = %d (err %v), want 2", args, code, err)
		}
	}
}

// TestSharedSubtitlePathIsSkipped keeps the first of two files that map to one .srt.
func TestSharedSubtitlePathIsSkipped(t *testing.T) {
	isolateConfig(t)
	dir := t.TempDir()
	for _, name := range []string{"talk.mp4", "talk.wav"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	found, err := discovery.Find([]string{dir}, discovery.Options{})
	if err != nil {
		t.Fatalf("Find() error = %v", err)
	}
	jobs, skipped, err := batch.Plan(found.Files, "")
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if len(jobs) != 1 || len(skipped) != 1 {
		t.Fatalf("jobs = %+v skipped = %+v, want one each", jobs, skipped)
	}
	got := renderSummary(jobs, batch.Summary{Total: 1}, skipped)
	if !strings.Contains(got, batch.ReasonSharedSubtitle+"talk.mp4") {
		t.Fatalf("summary should explain the skip:\n%s", got)
	}
}

// TestBatchWithNothingToDo never loads the model when every file has subtitles.
func TestBatchWithNothingToDo(t *testing.T) {
	isolateConfig(t)
	dir := t.TempDir()
	for _, name := range []string{"talk.mp4", "talk.srt", "readme.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	out, err := execute(t, "--python", "/nonexistent/python", "-d", dir, filepath.Join(dir, "readme.txt"))
	if err != nil {
		t.Fatalf("execute() error = %v", err)
	}
	if !strings.Contains(out, "No media files without subtitles found.") {
		t.Fatalf("output = %q", out)
	}
	if !strings.Contains(out, discovery.ReasonNotMedia) {
		t.Fatalf("output should list the skipped input: %q", out)
	}
}

// TestOutputNeedsSingleInput rejects -o with several files.
func TestOutputNeedsSingleInput(t *testing.T) {
	isolateConfig(t)
	dir := t.TempDir()
	for _, name := range []string{"a.mp3", "b.mp3"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	_, err := execute(t, "-o", filepath.Join(dir, "out.srt"), dir)
	var usage *usageError
	if !errors.As(err, &usage) || usage.msg != batch.ErrOutputNeedsSingleInput.Error() {
		t.Fatalf("error = %v, want %v", err, batch.ErrOutputNeedsSingleInput)
	}
}

// TestRenderSummaryOrdersJobs lists done, failed and not-run jobs in plan order.
func TestRenderSummaryOrdersJobs(t *testing.T) {
	jobs := []domain.Job{
		batch.NewJob("/m/a.mp3", "/m/a.srt"),
		batch.NewJob("/m/b.mp3", "/m/b.srt"),
		batch.NewJob("/m/c.mp3", "/m/c.srt"),
	}
	summary := batch.Summary{
		Total:     3,
		Succeeded: []batch.Report{{Job: jobs[0], Segments: 12, Elapsed: 1500 * time.Millisecond}},
		Failed:    []batch.Report{{Job: jobs[1], Err: errors.New("converting: ffmpeg failed\nstderr tail")}},
		Elapsed:   2 * time.Second,
	}
	skipped := []discovery.Skip{{Path: "/m/notes.txt", Reason: discovery.ReasonNotMedia}}

	got := renderSummary(jobs, summary, skipped)
	for _, want := range []string{"a.mp3", "12", "/m/a.srt", "converting: ffmpeg failed", "not run", "notes.txt", "1 done, 1 failed, 1 skipped"} {
		if !strings.Contains(got, want) {
			t.Fatalf("summary missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "stderr tail") {
		t.Fatalf("summary should keep only the first error line:\n%s", got)
	}
	if strings.Index(got, "a.mp3") > strings.Index(got, "b.mp3") || strings.Index(got, "b.mp3") > strings.Index(got, "c.mp3") {
		t.Fatalf("rows out of order:\n%s", got)
	}
}

// TestExitCode maps errors to process status.
func TestExitCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{usagef("bad"), 2},
		{&batch.JobError{Job: domain.Job{InputPath: "a.mp3"}, Err: errors.New("boom")}, 1},
		{context.Canceled, 1},
	}
	for _, tc := range cases {
		if got := exitCode(tc.err); got != tc.want {
			t.Fatalf("exitCode(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
