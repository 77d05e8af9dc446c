// Package database embed dosyası — migration SQL dosyalarını binary'ye gömer.
// Deploy edilen binary yanında migration dosyalarına ihtiyaç duymaz.
package database

import (
	"embed"
	"io/fs"
)

// EmbeddedMigrations, migrations/ dizinindeki SQL dosyalarını içerir.
//
//go:embed migrations/*.sql
var EmbeddedMigrations embed.FS

// Migrations, gömülü migration dizinini kök olarak döner.
// New'e doğrudan verilebilir: database.New(path, database.Migrations())
func Migrations() fs.FS {
	sub, err := fs.Sub(EmbeddedMigrations, "migrations")
	if err != nil {
		// "migrations" derleme zamanında gömüldüğü için buraya düşülmez.
		panic(err)
	}
	return sub
}
