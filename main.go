package main

import (
	"log"

	"gigasrt/frontend"
	"gigasrt/internal/bootstrap"
	"gigasrt/internal/config"
	"gigasrt/internal/logging"
)

// main is the Wails build entry point; it starts straight into the GUI.
// The command-line tool lives in cmd/gigasrt.
func main() {
	if err := config.LoadEnvFile(".env"); err != nil {
		log.Fatalf("load env: %v", err)
	}
	cfg, path, _, err := config.Load("")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	app, err := bootstrap.New(bootstrap.Options{
		Assets:     frontend.Assets,
		ConfigPath: path,
		Logger:     logging.New(logging.Options{Enabled: cfg.Logging.Enabled, Level: cfg.Logging.Level}),
		Notify:     true,
	})
	if err != nil {
		log.Fatalf("bootstrap app: %v", err)
	}

	if err := app.Run(); err != nil {
		log.Fatalf("run app: %v", err)
	}
}
