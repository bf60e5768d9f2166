// Package discovery expands user inputs into the media files that still need subtitles.
package discovery

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SubtitleExt is the extension of the files this tool produces.
const SubtitleExt = ".srt"

// mediaExtensions lists the containers ffmpeg or the ASR library can read.
var mediaExtensions = map[string]struct{}{
	".wav": {}, ".mp3": {}, ".flac": {}, ".ogg": {}, ".oga": {}, ".opus": {},
	".m4a": {}, ".aac": {}, ".wma": {},
	".mp4": {}, ".mkv": {}, ".mov": {}, ".avi": {}, ".webm": {}, ".wmv": {},
	".flv": {}, ".ts": {}, ".m4v": {}, ".3gp": {},
}

// Options controls how directories are scanned.
type Options struct {
	Recursive bool
}

// Skip records an explicit input that was not selected.
type Skip struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Result is the ordered set of selected media files and the skipped explicit inputs.
type Result struct {
	Files   []string `json:"files"`
	Skipped []Skip   `json:"skipped,omitempty"`
}

// Skip reasons.
const (
	ReasonNotFound      = "not found"
	ReasonNotMedia      = "not a media file"
	ReasonHasSubtitle   = "subtitle already exists"
	ReasonUnreadableDir = "cannot read directory"
	ReasonNotRegular    = "not a regular file or directory"
)

// IsMedia reports whether path carries a known media extension.
func IsMedia(path string) bool {
	_, ok := mediaExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// SubtitlePath returns the sibling .srt path for a media file.
func SubtitlePath(mediaPath string) string {
	return strings.TrimSuffix(mediaPath, filepath.Ext(mediaPath)) + SubtitleExt
}

// HasSubtitle reports whether a sibling .srt already exists for mediaPath.
func HasSubtitle(mediaPath string) bool {
	info, err := os.Stat(SubtitlePath(mediaPath))
	return err == nil && !info.IsDir()
}

// Find walks inputs in order and returns deduplicated media files without a sibling
// subtitle. Directory contents are visited in lexical order; subdirectories are only
// entered when opts.Recursive is set.
func Find(inputs []string, opts Options) (Result, error) {
	var res Result
	seen := make(map[string]struct{})

	add := func(path string) {
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = filepath.Clean(path)
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		res.Files = append(res.Files, abs)
	}

	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		info, err := os.Stat(input)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				res.Skipped = append(res.Skipped, Skip{Path: input, Reason: ReasonNotFound})
				continue
			}
			return Result{}, fmt.Errorf("stat %s: %w", input, err)
		}

		switch {
		case info.IsDir():
			files, err := scanDir(input, opts.Recursive)
			if err != nil {
				res.Skipped = append(res.Skipped, Skip{Path: input, Reason: ReasonUnreadableDir})
				continue
			}
			for _, f := range files {
				add(f)
			}
		case info.Mode().IsRegular():
			if !IsMedia(input) {
				res.Skipped = append(res.Skipped, Skip{Path: input, Reason: ReasonNotMedia})
				continue
			}
			if HasSubtitle(input) {
				res.Skipped = append(res.Skipped, Skip{Path: input, Reason: ReasonHasSubtitle})
				continue
			}
			add(input)
		default:
			res.Skipped = append(res.Skipped, Skip{Path: input, Reason: ReasonNotRegular})
		}
	}

	return res, nil
}

// scanDir lists candidate media files under root.
func scanDir(root string, recursive bool) ([]string, error) {
	if !recursive {
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, err
		}
		// ReadDir already sorts by name.
		names := make([]string, 0, len(entries))
		for _, entry := range entries {
			if isHidden(entry.Name()) || !entry.Type().IsRegular() {
				continue
			}
			names = append(names, filepath.Join(root, entry.Name()))
		}
		return selectCandidates(names), nil
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if path != root && isHidden(d.Name()) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return selectCandidates(files), nil
}

// selectCandidates keeps media files that have no sibling subtitle.
func selectCandidates(paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		if IsMedia(p) && !HasSubtitle(p) {
			out = append(out, p)
		}
	}
	return out
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// Extensions returns the supported media extensions in sorted order.
func Extensions() []string {
	out := make([]string, 0, len(mediaExtensions))
	for ext := range mediaExtensions {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}
