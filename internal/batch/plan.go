// Package batch runs a list of subtitle jobs sequentially under an error policy.
package batch

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"gigasrt/internal/discovery"
	"gigasrt/internal/domain"
)

// ErrOutputNeedsSingleInput rejects an output override shared by several inputs.
var ErrOutputNeedsSingleInput = errors.New("--output can only be used with a single input file")

// ReasonSharedSubtitle prefixes the skip reason of a file whose sibling .srt
// is already produced by another input (talk.mp4 and talk.wav).
const ReasonSharedSubtitle = "subtitle path shared with "

// Plan pairs every media file with the subtitle path it produces. An output
// override replaces the sibling .srt path and is only legal for one file.
// Files whose sibling path collides with an earlier file are returned as skipped.
func Plan(files []string, output string) ([]domain.Job, []discovery.Skip, error) {
	output = strings.TrimSpace(output)
	if output == "" {
		jobs, skipped := PlanSiblings(files, nil)
		return jobs, skipped, nil
	}
	if len(files) != 1 {
		return nil, nil, ErrOutputNeedsSingleInput
	}

	out := output
	if abs, err := filepath.Abs(output); err == nil {
		out = abs
	}
	return []domain.Job{NewJob(files[0], out)}, nil, nil
}

// PlanSiblings pairs files with their sibling .srt paths in order. claimed maps
// subtitle paths already owned by other jobs to their inputs; a file whose
// path is claimed, by that map or by an earlier file, is skipped.
func PlanSiblings(files []string, claimed map[string]string) ([]domain.Job, []discovery.Skip) {
	owners := make(map[string]string, len(claimed)+len(files))
	for out, input := range claimed {
		owners[filepath.Clean(out)] = input
	}

	jobs := make([]domain.Job, 0, len(files))
	var skipped []discovery.Skip
	for _, file := range files {
		out := discovery.SubtitlePath(file)
		key := filepath.Clean(out)
		if owner, taken := owners[key]; taken {
			skipped = append(skipped, discovery.Skip{Path: file, Reason: ReasonSharedSubtitle + filepath.Base(owner)})
			continue
		}
		owners[key] = file
		jobs = append(jobs, NewJob(file, out))
	}
	return jobs, skipped
}

// NewJob builds a queued job with a fresh identifier.
func NewJob(inputPath, outputPath string) domain.Job {
	return domain.Job{
		ID:         uuid.NewString(),
		InputPath:  inputPath,
		OutputPath: outputPath,
		Status:     domain.JobStatusQueued,
	}
}
