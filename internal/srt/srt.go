// Package srt serializes recognized segments as SubRip subtitles.
package srt

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"gigasrt/internal/domain"
)

// FormatTimestamp renders d as HH:MM:SS,mmm. Negative durations render as zero.
func FormatTimestamp(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Round(time.Millisecond).Milliseconds()
	hours := ms / 3_600_000
	ms -= hours * 3_600_000
	minutes := ms / 60_000
	ms -= minutes * 60_000
	seconds := ms / 1000
	ms -= seconds * 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, ms)
}

// Encode returns the SubRip document for segments. Blank segments are dropped
// and the remaining cues numbered from 1.
func Encode(segments []domain.Segment) []byte {
	var buf bytes.Buffer
	// bytes.Buffer writes cannot fail.
	_ = Write(&buf, segments)
	return buf.Bytes()
}

// Write streams the SubRip document for segments to w.
func Write(w io.Writer, segments []domain.Segment) error {
	index := 0
	for _, seg := range segments {
		text := cleanText(seg.Text)
		if text == "" {
			continue
		}
		index++
		end := seg.End
		if end < seg.Start {
			end = seg.Start
		}
		if _, err := fmt.Fprintf(w, "%d\n%s --> %s\n%s\n\n",
			index, FormatTimestamp(seg.Start), FormatTimestamp(end), text); err != nil {
			return err
		}
	}
	return nil
}

// CueCount returns the number of cues Encode writes for segments.
func CueCount(segments []domain.Segment) int {
	n := 0
	for _, seg := range segments {
		if cleanText(seg.Text) != "" {
			n++
		}
	}
	return n
}

// WriteFile writes segments to path through a temporary file in the same
// directory, so a failure never leaves a truncated subtitle behind.
func WriteFile(path string, segments []domain.Segment) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create subtitle directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp subtitle: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(Encode(segments)); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write subtitle: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close subtitle: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("chmod subtitle: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename subtitle: %w", err)
	}
	return nil
}

// cleanText normalizes line endings, trims every line and drops empty lines,
// since a blank line terminates a cue.
func cleanText(text string) string {
	text = norm.NFC.String(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
