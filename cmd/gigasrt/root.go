package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"gigasrt/internal/config"
	"gigasrt/internal/domain"
)

// usageError marks invalid invocations; they exit with status 2.
type usageError struct {
	msg string
}

func (e *usageError) Error() string {
	return e.msg
}

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// rootFlags holds raw flag values. Only flags the user set override the
// config file; see resolveConfig.
type rootFlags struct {
	directories []string
	recursive   bool
	model       string
	device      string
	output      string

	maxDuration       float64
	minDuration       float64
	newChunkThreshold float64

	hfToken      string
	ignoreErrors bool
	raiseErrors  bool
	logging      bool
	noLogging    bool
	logLevel     string

	gui        bool
	check      bool
	configPath string
	envFile    string
	python     string
	ffmpeg     string
}

func newRootCommand() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "gigasrt [flags] [FILE|DIR...]",
		Short: "Generate .srt subtitles for Russian speech with GigaAM",
		Long: "gigasrt transcribes audio and video files with the GigaAM long-form recognizer\n" +
			"and writes an .srt file next to each source. Files that already have subtitles are skipped.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := cmd.ValidateFlagGroups(); err != nil {
				return &usageError{msg: err.Error()}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := resolveConfig(cmd.Flags(), flags)
			if err != nil {
				return err
			}
			inputs := append(append([]string(nil), args...), flags.directories...)

			switch {
			case flags.check:
				return runCheck(cmd, cfg)
			case flags.gui:
				return runGUI(cfg, path)
			case len(inputs) == 0:
				return usagef("no input files or directories given (use --gui for the desktop app)")
			}
			return runBatch(cmd.Context(), cmd, cfg, inputs, flags.output)
		},
	}

	bindFlags(cmd.Flags(), flags)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{msg: err.Error()}
	})
	cmd.MarkFlagsMutuallyExclusive("ignore-errors", "raise-errors")
	cmd.MarkFlagsMutuallyExclusive("logging", "no-logging")
	cmd.MarkFlagsMutuallyExclusive("gui", "check")
	_ = cmd.MarkFlagFilename("config", "toml")
	_ = cmd.MarkFlagFilename("output", "srt")
	_ = cmd.MarkFlagDirname("directory")

	return cmd
}

// bindFlags registers the command-line flags on f.
func bindFlags(f *pflag.FlagSet, flags *rootFlags) {
	defaults := config.Default()
	f.StringArrayVarP(&flags.directories, "directory", "d", nil, "Directory to scan for media files (repeatable)")
	f.BoolVar(&flags.recursive, "recursive", false, "Scan directories recursively")
	f.StringVar(&flags.model, "model", string(defaults.Settings.Model), "Model variant: ctc or rnnt")
	f.StringVar(&flags.device, "device", "", "Torch device, e.g. cuda or cpu (default: library choice)")
	f.StringVarP(&flags.output, "output", "o", "", "Output .srt path (single input only)")
	f.Float64Var(&flags.maxDuration, "max-duration", defaults.Settings.MaxDuration, "Maximum segment duration in seconds")
	f.Float64Var(&flags.minDuration, "min-duration", defaults.Settings.MinDuration, "Minimum segment duration in seconds")
	f.Float64Var(&flags.newChunkThreshold, "new-chunk-threshold", defaults.Settings.NewChunkThreshold, "Pause in seconds that starts a new segment")
	f.StringVar(&flags.hfToken, "hf-token", "", "Hugging Face token for the VAD model (or "+config.HFTokenEnv+")")
	f.BoolVar(&flags.ignoreErrors, "ignore-errors", false, "Log failed files and continue (default)")
	f.BoolVar(&flags.raiseErrors, "raise-errors", false, "Stop at the first failed file")
	f.BoolVar(&flags.logging, "logging", false, "Enable log output (default)")
	f.BoolVar(&flags.noLogging, "no-logging", false, "Disable log output")
	f.StringVar(&flags.logLevel, "log-level", defaults.Logging.Level, "Log level: debug, info, warn, error")
	f.BoolVar(&flags.gui, "gui", false, "Launch the desktop app")
	f.BoolVar(&flags.check, "check", false, "Check dependencies and exit")
	f.StringVarP(&flags.configPath, "config", "c", "", "Configuration file path")
	f.StringVar(&flags.envFile, "env-file", ".env", "Dotenv file to load")
	f.StringVar(&flags.python, "python", defaults.Settings.PythonPath, "Python interpreter with gigaam installed")
	f.StringVar(&flags.ffmpeg, "ffmpeg", defaults.Settings.FFmpegPath, "ffmpeg binary")
}

// resolveConfig layers defaults, the config file, the environment and the
// flags the user actually set, in that order.
func resolveConfig(fs *pflag.FlagSet, flags *rootFlags) (config.Config, string, error) {
	if err := config.LoadEnvFile(flags.envFile); err != nil {
		return config.Config{}, "", err
	}
	cfg, path, _, err := config.Load(flags.configPath)
	if err != nil {
		return config.Config{}, "", err
	}
	cfg.Settings = config.ApplyEnv(cfg.Settings)

	s := &cfg.Settings
	if fs.Changed("recursive") {
		s.Recursive = flags.recursive
	}
	if fs.Changed("model") {
		s.Model = domain.ModelVariant(strings.ToLower(strings.TrimSpace(flags.model)))
	}
	if fs.Changed("device") {
		s.Device = strings.TrimSpace(flags.device)
	}
	if fs.Changed("max-duration") {
		s.MaxDuration = flags.maxDuration
	}
	if fs.Changed("min-duration") {
		s.MinDuration = flags.minDuration
	}
	if fs.Changed("new-chunk-threshold") {
		s.NewChunkThreshold = flags.newChunkThreshold
	}
	if fs.Changed("hf-token") {
		s.HFToken = strings.TrimSpace(flags.hfToken)
	}
	if fs.Changed("python") {
		s.PythonPath = strings.TrimSpace(flags.python)
	}
	if fs.Changed("ffmpeg") {
		s.FFmpegPath = strings.TrimSpace(flags.ffmpeg)
	}
	switch {
	case flags.raiseErrors:
		s.ErrorPolicy = domain.ErrorPolicyRaise
	case flags.ignoreErrors:
		s.ErrorPolicy = domain.ErrorPolicyIgnore
	}

	switch {
	case flags.noLogging:
		cfg.Logging.Enabled = false
	case flags.logging:
		cfg.Logging.Enabled = true
	}
	if fs.Changed("log-level") {
		cfg.Logging.Level = strings.ToLower(strings.TrimSpace(flags.logLevel))
	}

	if err := config.Validate(cfg.Settings); err != nil {
		return config.Config{}, "", &usageError{msg: err.Error()}
	}
	return cfg, path, nil
}
