// Package migrations carries the service's SQL schema in the binary.
//
// Importing it (usually for side effects) registers the files with the
// database package so DB.Migrate can apply them.
package migrations

import (
	"embed"

	"github.com/nerrad567/pizza-service/internal/infrastructure/database"
)

//go:embed *.sql
var files embed.FS

func init() {
	if err := database.RegisterMigrations(files, "."); err != nil {
		panic(err)
	}
}
