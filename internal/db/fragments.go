package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/modfin/quill/internal/db/vec"
)

type Fragment struct {
	ID      int
	Label   string
	URL     string
	Seq     int
	Content string
	Lastmod string

	EmbeddingModel  string
	EmbeddingVector []float64

	CreatedAt int64
	UpdatedAt int64
}

func (q *Queries) AddFragment(
	ctx context.Context,
	label string,
	url string,
	seq int,
	content string,
	lastmod string,
	embeddingModel string,
	embeddingVector []float64,
) (Fragment, error) {

	const addFragment = `
INSERT INTO fragments (label, url, seq, content, lastmod, embedding_model, embedding_vector)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (label, url, seq) DO
	UPDATE
    SET content = excluded.content,
		lastmod = excluded.lastmod,
		embedding_model = excluded.embedding_model,
		embedding_vector = excluded.embedding_vector,
		updated_at = strftime('%s', 'now')
RETURNING id, label, url, seq, content, lastmod, embedding_model, embedding_vector, created_at, updated_at
`

	row := q.db.QueryRowContext(ctx, addFragment,
		label,
		url,
		seq,
		content,
		lastmod,
		embeddingModel,
		vec.EncodeVector(embeddingVector),
	)

	var i Fragment
	var lastmodCol sql.NullString
	var vecbin []byte
	err := row.Scan(
		&i.ID,
		&i.Label,
		&i.URL,
		&i.Seq,
		&i.Content,
		&lastmodCol,
		&i.EmbeddingModel,
		&vecbin,
		&i.CreatedAt,
		&i.UpdatedAt,
	)
	if err != nil {
		return Fragment{}, fmt.Errorf("insert fragment: %w", err)
	}
	i.Lastmod = lastmodCol.String
	i.EmbeddingVector, err = vec.DecodeVector(vecbin)
	if err != nil {
		return Fragment{}, fmt.Errorf("decoding embedding vector: %w", err)
	}
	return i, err
}

// DirtyFragment reports whether (label, url, seq) is missing or has changed
// content, i.e. whether it needs to be re-embedded.
func (q *Queries) DirtyFragment(ctx context.Context, label string, url string, seq int, content string) (bool, error) {

	const dirty = `
	SELECT count(*) = 0
	FROM fragments
	WHERE label = ? AND url = ? AND seq = ? AND content = ?
`

	row := q.db.QueryRowContext(ctx, dirty,
		label,
		url,
		seq,
		content,
	)
	var i bool
	if err := row.Scan(&i); err != nil {
		return false, err
	}
	return i, nil

}

func (q *Queries) KNN(ctx context.Context, vector []float64, label string, limit int) ([]Fragment, error) {

	const kNN = `
SELECT id, label, url, seq, content, lastmod, embedding_model, embedding_vector, created_at, updated_at
FROM fragments
WHERE label like ?
ORDER BY vec_dist(?, embedding_vector)
LIMIT ?
`

	rows, err := q.db.QueryContext(ctx, kNN,
		label,
		vec.EncodeVector(vector),
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Fragment
	for rows.Next() {
		var i Fragment
		var lastmodCol sql.NullString
		var vecbytes []byte
		if err := rows.Scan(
			&i.ID,
			&i.Label,
			&i.URL,
			&i.Seq,
			&i.Content,
			&lastmodCol,
			&i.EmbeddingModel,
			&vecbytes,
			&i.CreatedAt,
			&i.UpdatedAt,
		); err != nil {
			return nil, err
		}

		i.Lastmod = lastmodCol.String
		i.EmbeddingVector, err = vec.DecodeVector(vecbytes)
		if err != nil {
			return nil, fmt.Errorf("failed decoding embedding vector: %w", err)
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (q *Queries) ListFragments(ctx context.Context) ([]Fragment, error) {

	const listFragments = `
SELECT id, label, url, seq, content, lastmod, created_at
FROM fragments
ORDER BY id
`

	rows, err := q.db.QueryContext(ctx, listFragments)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Fragment
	for rows.Next() {
		var i Fragment
		var lastmodCol sql.NullString
		if err := rows.Scan(
			&i.ID,
			&i.Label,
			&i.URL,
			&i.Seq,
			&i.Content,
			&lastmodCol,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		i.Lastmod = lastmodCol.String
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
