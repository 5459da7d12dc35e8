package main

import (
	"log/slog"

	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/cmd/trackfit/cli"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/app"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}
	cli.Execute()
}
