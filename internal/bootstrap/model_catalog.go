package bootstrap

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gigasrt/internal/domain"
)

// gigaamCacheEnv overrides the checkpoint cache directory.
const gigaamCacheEnv = "GIGAAM_CACHE_DIR"

var gigaamModelCatalog = []domain.ModelOption{
	{
		ID:          domain.ModelCTC,
		Name:        "GigaAM CTC",
		Checkpoint:  "v2_ctc.ckpt",
		SizeLabel:   "~930 MB",
		Description: "Fastest decoder; good default for long recordings.",
	},
	{
		ID:          domain.ModelRNNT,
		Name:        "GigaAM RNN-T",
		Checkpoint:  "v2_rnnt.ckpt",
		SizeLabel:   "~940 MB",
		Description: "Slightly more accurate, slower decoding.",
	},
}

// GetModels returns the GigaAM checkpoints and whether each is already cached.
func (a *App) GetModels() []domain.ModelOption {
	models := make([]domain.ModelOption, len(gigaamModelCatalog))
	copy(models, gigaamModelCatalog)
	markCachedModels(models, knownCacheDirs())
	return models
}

// SelectModel switches the model for the next job and persists the choice.
func (a *App) SelectModel(modelID string) (domain.Settings, error) {
	model, found := getModelByID(modelID)
	if !found {
		return domain.Settings{}, fmt.Errorf("unknown model id: %s", strings.TrimSpace(modelID))
	}

	settings := a.currentSettings()
	settings.Model = model.ID
	return a.SaveSettings(settings)
}

// PreloadModel loads the selected model ahead of the first job, downloading the
// checkpoint if it is not cached yet. A different model is only swapped in
// after the running job finishes.
func (a *App) PreloadModel() error {
	settings := a.currentSettings()
	_, release, err := a.pipelineFor(context.Background(), settings)
	if err != nil {
		return err
	}
	release()
	a.refreshDiagnosticsFromSettings(settings)
	return nil
}

func getModelByID(id string) (domain.ModelOption, bool) {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, model := range gigaamModelCatalog {
		if string(model.ID) == id {
			return model, true
		}
	}
	return domain.ModelOption{}, false
}

// knownCacheDirs lists the directories GigaAM downloads checkpoints into.
func knownCacheDirs() []string {
	var dirs []string
	if dir := strings.TrimSpace(os.Getenv(gigaamCacheEnv)); dir != "" {
		dirs = append(dirs, filepath.Clean(dir))
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, filepath.Join(homeDir, ".cache", "gigaam"))
	}
	return dirs
}

func markCachedModels(models []domain.ModelOption, cacheDirs []string) {
	for i := range models {
		names := []string{models[i].Checkpoint, string(models[i].ID) + ".ckpt"}
	search:
		for _, dir := range cacheDirs {
			for _, name := range names {
				candidate := filepath.Join(dir, name)
				info, err := os.Stat(candidate)
				if err != nil || info.IsDir() {
					continue
				}
				models[i].Cached = true
				models[i].LocalPath = candidate
				break search
			}
		}
	}
}
