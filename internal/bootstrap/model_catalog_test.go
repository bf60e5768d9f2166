package bootstrap

import (
	"os"
	"path/filepath"
	"testing"

	"gigasrt/internal/domain"
)

// TestGetModelByID verifies known model lookup.
func TestGetModelByID(t *testing.T) {
	model, found := getModelByID(" RNNT ")
	if !found {
		t.Fatal("expected rnnt model to exist")
	}
	if model.Checkpoint != "v2_rnnt.ckpt" {
		t.Fatalf("checkpoint = %s, want v2_rnnt.ckpt", model.Checkpoint)
	}
	if _, found := getModelByID("large-v3"); found {
		t.Fatal("unexpected whisper model in catalog")
	}
}

// TestCatalogCoversEveryVariant keeps the catalog in step with the model enum.
func TestCatalogCoversEveryVariant(t *testing.T) {
	for _, id := range []domain.ModelVariant{domain.ModelCTC, domain.ModelRNNT} {
		if _, found := getModelByID(string(id)); !found {
			t.Fatalf("catalog missing %s", id)
		}
	}
	for _, model := range gigaamModelCatalog {
		if !model.ID.Valid() {
			t.Fatalf("catalog entry %s is not a loadable variant", model.ID)
		}
	}
}

// TestMarkCachedModels detects checkpoints under either file name.
func TestMarkCachedModels(t *testing.T) {
	empty := t.TempDir()
	cache := t.TempDir()
	if err := os.WriteFile(filepath.Join(cache, "rnnt.ckpt"), []byte("ckpt"), 0o644); err != nil {
		t.Fatalf("write checkpoint: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(cache, "v2_ctc.ckpt"), 0o755); err != nil {
		t.Fatalf("mkdir decoy: %v", err)
	}

	models := make([]domain.ModelOption, len(gigaamModelCatalog))
	copy(models, gigaamModelCatalog)
	markCachedModels(models, []string{empty, cache})

	for _, model := range models {
		switch model.ID {
		case domain.ModelRNNT:
			if !model.Cached || model.LocalPath != filepath.Join(cache, "rnnt.ckpt") {
				t.Fatalf("rnnt = %+v, want cached", model)
			}
		case domain.ModelCTC:
			if model.Cached {
				t.Fatalf("ctc = %+v, a directory is not a checkpoint", model)
			}
		}
	}
	if gigaamModelCatalog[0].Cached || gigaamModelCatalog[1].Cached {
		t.Fatal("catalog must not be mutated")
	}
}

// TestKnownCacheDirsHonorsOverride puts the override first.
func TestKnownCacheDirsHonorsOverride(t *testing.T) {
	override := t.TempDir()
	t.Setenv(gigaamCacheEnv, override)

	dirs := knownCacheDirs()
	if len(dirs) == 0 || dirs[0] != override {
		t.Fatalf("dirs = %v, want %s first", dirs, override)
	}
}
