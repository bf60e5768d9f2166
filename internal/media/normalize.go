// Package media turns arbitrary audio/video inputs into the WAV layout GigaAM reads
// directly, shelling out to ffmpeg when a conversion is needed.
package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
)

// Native WAV layout accepted without conversion.
const (
	NativeSampleRate = 16000
	NativeChannels   = 1
	NativeBitDepth   = 16

	wavFormatPCM = 1
)

// ConversionError reports a failed ffmpeg run for one input.
type ConversionError struct {
	InputPath  string
	CommandLog CommandLog
	Err        error
}

// Error formats the failure with the transcoder exit code and the tail of stderr.
func (e *ConversionError) Error() string {
	msg := fmt.Sprintf("convert %s: %s exited with %d", e.InputPath, e.CommandLog.Command, e.CommandLog.ExitCode)
	if tail := lastLine(e.CommandLog.Stderr); tail != "" {
		msg += ": " + tail
	}
	return msg
}

// Unwrap exposes the process error.
func (e *ConversionError) Unwrap() error {
	return e.Err
}

// Normalized is the audio handed to the recognizer.
type Normalized struct {
	Path      string
	Converted bool
	Log       *CommandLog
	tempDir   string
	removeAll func(string) error
}

// Cleanup removes the intermediate file when one was produced.
func (n *Normalized) Cleanup() error {
	if n == nil || n.tempDir == "" {
		return nil
	}
	if err := n.removeAll(n.tempDir); err != nil {
		return err
	}
	n.tempDir = ""
	return nil
}

// Normalizer converts inputs to 16 kHz mono PCM WAV.
type Normalizer struct {
	ffmpegPath string
	runner     CommandRunner
	mkdirTemp  func(dir, pattern string) (string, error)
	removeAll  func(path string) error
	stat       func(name string) (os.FileInfo, error)
	isNative   func(path string) (bool, error)
}

// NewNormalizer constructs a normalizer that runs the given ffmpeg binary.
func NewNormalizer(ffmpegPath string) *Normalizer {
	if strings.TrimSpace(ffmpegPath) == "" {
		ffmpegPath = "ffmpeg"
	}
	return &Normalizer{
		ffmpegPath: ffmpegPath,
		runner:     ExecRunner{},
		mkdirTemp:  os.MkdirTemp,
		removeAll:  os.RemoveAll,
		stat:       os.Stat,
		isNative:   IsNativeWAV,
	}
}

// NewNormalizerForTests constructs a normalizer with an injected command runner.
func NewNormalizerForTests(ffmpegPath string, runner CommandRunner) *Normalizer {
	n := NewNormalizer(ffmpegPath)
	n.runner = runner
	return n
}

// Normalize returns inputPath unchanged when it is already native, otherwise
// transcodes it into a fresh temporary directory.
func (n *Normalizer) Normalize(ctx context.Context, inputPath string) (*Normalized, error) {
	if strings.TrimSpace(inputPath) == "" {
		return nil, fmt.Errorf("input media path is required")
	}
	if _, err := n.stat(inputPath); err != nil {
		return nil, fmt.Errorf("cannot access input media %s: %w", inputPath, err)
	}

	native, err := n.isNative(inputPath)
	if err != nil {
		return nil, err
	}
	if native {
		return &Normalized{Path: inputPath}, nil
	}

	tempDir, err := n.mkdirTemp("", "gigasrt-*")
	if err != nil {
		return nil, fmt.Errorf("create temporary workspace: %w", err)
	}
	outPath := filepath.Join(tempDir, "audio-16k-mono.wav")
	args := BuildFFmpegArgs(inputPath, outPath)

	res, runErr := n.runner.Run(ctx, n.ffmpegPath, args...)
	log := CommandLog{
		Command:  n.ffmpegPath,
		Args:     args,
		ExitCode: res.ExitCode,
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
	}
	if runErr != nil {
		_ = n.removeAll(tempDir)
		return nil, &ConversionError{InputPath: inputPath, CommandLog: log, Err: runErr}
	}
	if _, err := n.stat(outPath); err != nil {
		_ = n.removeAll(tempDir)
		return nil, &ConversionError{
			InputPath:  inputPath,
			CommandLog: log,
			Err:        fmt.Errorf("ffmpeg completed but output file is missing: %w", err),
		}
	}

	return &Normalized{
		Path:      outPath,
		Converted: true,
		Log:       &log,
		tempDir:   tempDir,
		removeAll: n.removeAll,
	}, nil
}

// IsNativeWAV reports whether path is a 16 kHz mono 16-bit PCM WAV file.
// Files that are not WAV at all are simply not native.
func IsNativeWAV(path string) (bool, error) {
	if !strings.EqualFold(filepath.Ext(path), ".wav") {
		return false, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return false, nil
	}
	return dec.WavAudioFormat == wavFormatPCM &&
		dec.SampleRate == NativeSampleRate &&
		dec.NumChans == NativeChannels &&
		dec.BitDepth == NativeBitDepth, nil
}

// BuildFFmpegArgs builds the transcoding args for mono 16 kHz PCM WAV output.
func BuildFFmpegArgs(inputPath, outPath string) []string {
	return []string{
		"-hide_banner",
		"-nostdin",
		"-loglevel", "error",
		"-y",
		"-i", inputPath,
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		outPath,
	}
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}
