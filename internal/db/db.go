package db

import (
	"database/sql"

	"github.com/modfin/quill/internal/db/vec"
)

type Queries struct {
	db *sql.DB
}

func New(db *sql.DB) *Queries {
	return &Queries{db: db}
}

// Statistics logs timing stats collected by the vec_dist sqlite function.
func Statistics() {
	vec.Statistics()
}
