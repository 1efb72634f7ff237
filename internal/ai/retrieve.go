package ai

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/modfin/bellman/models/embed"
	"github.com/modfin/henry/mapz"
	"github.com/modfin/henry/slicez"
	"github.com/modfin/quill/internal/db"
)

// Retriever is the document source for the answer engine. It embeds the
// question and runs a nearest neighbour search against the fragment store.
type Retriever struct {
	dao    *db.Queries
	proxy  *Proxy
	model  embed.Model
	limits map[string]int // label pattern -> fragment count
}

func NewRetriever(dao *db.Queries, proxy *Proxy, model embed.Model, limits map[string]int) *Retriever {
	if len(limits) == 0 {
		limits = map[string]int{"%": 4}
	}
	return &Retriever{dao: dao, proxy: proxy, model: model, limits: limits}
}

func (r *Retriever) Retrieve(ctx context.Context, question string) ([]Passage, error) {

	model := r.model
	model.Type = embed.TypeQuery

	resp, err := r.proxy.Embed(embed.Request{
		Ctx:   ctx,
		Model: model,
		Text:  question,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to embed: %w", err)
	}

	vector := resp.AsFloat64()

	fragments := slicez.FlatMap(mapz.Entries(r.limits), func(e mapz.Entry[string, int]) []db.Fragment {
		frags, err := r.dao.KNN(ctx, vector, e.Key, e.Value)
		if err != nil {
			slog.Default().Warn("failed to query database for fragments", "err", err)
		}

		return frags
	})
	fragments = slicez.UniqBy(fragments, func(f db.Fragment) int {
		return f.ID
	})

	return slicez.Map(fragments, fragmentPassage), nil
}

func fragmentPassage(f db.Fragment) Passage {
	p := Passage{
		Text:   f.Content,
		Source: f.URL,
	}
	if f.Lastmod == "" {
		return p
	}
	for _, layout := range []string{time.RFC3339, time.DateOnly} {
		if t, err := time.Parse(layout, f.Lastmod); err == nil {
			p.Modified = t
			break
		}
	}
	return p
}
