// Package migrations embeds SQL schema files into the binary so the
// service can create its tables without the files on disk.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed sqlite/*.sql postgres/*.sql
var files embed.FS

// SQLite returns the SQLite migration set, rooted so that file names sit at ".".
func SQLite() fs.FS {
	return mustSub("sqlite")
}

// Postgres returns the Postgres schema files, rooted at ".".
func Postgres() fs.FS {
	return mustSub("postgres")
}

func mustSub(dir string) fs.FS {
	sub, err := fs.Sub(files, dir)
	if err != nil {
		panic("migrations: " + err.Error()) // embed pattern guarantees the directory
	}
	return sub
}
