// Command pocketbase runs a PocketBase server with the check-in collections
// registered as migrations. Start it with "go run ./scripts/pocketbase serve".
package main

import (
	"log/slog"
	"os"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"

	_ "church-checkin/migrations"
)

func main() {
	app := pocketbase.New()

	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: false,
	})

	if err := app.Start(); err != nil {
		slog.Error("pocketbase exited", "error", err)
		os.Exit(1)
	}
}
