package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/modfin/bellman/prompt"
	"github.com/modfin/henry/slicez"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Passage is one retrieved chunk of source text with its provenance.
type Passage struct {
	Text     string
	Source   string
	Modified time.Time // zero when the source carried no modification date
}

// Candidate is a per-passage answer together with its self-reported score.
type Candidate struct {
	Answer   string
	Score    int
	Source   string
	Modified time.Time
}

// NoInformation is returned when there are no passages to answer from.
const NoInformation = "No information available."

const scoreSystemPrompt = `Answer the user's question using only the given context.
If you do not know the answer, say that you do not know. Do not exaggerate.

Grade your own answer with a score between 0 and 5. The more directly the
context supports the answer, the higher the score. An answer the context does
not support scores 0.

Examples:

	question: How far away is the Moon?
	answer: The Moon is 384,400 km away.
	score: 5

	question: How far away is the Sun?
	answer: I don't know.
	score: 0

Now it is your turn!`

const chooseSystemPrompt = `Use only the given pre-scored candidate answers to answer the
user's question. Prefer the candidate with the highest score and, between equal
scores, the most recently modified one. Always report the source of the
candidate you used. If no candidate answers the question, say that you do not
know and leave the source empty.`

type grade struct {
	Answer string `json:"answer" json-description:"The answer to the question, based only on the provided context"`
	Score  string `json:"score" json-description:"An integer between 0 and 5 grading how directly the context supports the answer. 5 means fully supported, 0 means the context does not contain the answer"`
}

type verdict struct {
	Answer string `json:"answer" json-description:"The answer selected from the candidates"`
	Source string `json:"source" json-description:"The source of the candidate the answer was selected from. Empty when no candidate had a usable source"`
}

type EngineConfig struct {
	Concurrency int     // max in-flight scoring calls, defaults to 4
	RPS         float64 // model calls per second across the fan-out, defaults to 2
}

// Engine runs the map-rerank pipeline. Every passage is answered and scored
// independently, then one selection call picks the best candidate and cites
// its source.
type Engine struct {
	llm     Generator
	limiter *rate.Limiter
	conc    int
	logger  *slog.Logger
}

func NewEngine(llm Generator, cfg EngineConfig, logger *slog.Logger) *Engine {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.RPS <= 0 {
		cfg.RPS = 2
	}
	return &Engine{
		llm:     llm,
		limiter: rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Concurrency),
		conc:    cfg.Concurrency,
		logger:  logger,
	}
}

// Answer answers question from the given passages and appends both turns to
// the conversation.
func (e *Engine) Answer(ctx context.Context, convo *Conversation, question string, passages []Passage) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", errors.New("question is empty")
	}

	convo.Append(RoleUser, question)

	candidates, err := e.generate(ctx, question, passages)
	if err != nil {
		return "", fmt.Errorf("failed to generate candidates: %w", err)
	}

	answer, err := e.choose(ctx, question, candidates)
	if err != nil {
		return "", fmt.Errorf("failed to choose answer: %w", err)
	}

	convo.Append(RoleAssistant, answer)
	return answer, nil
}

// generate fans out one scoring call per passage. The calls are independent
// of each other, so they run concurrently, bounded by the engine's
// concurrency limit and rate limiter. A passage that fails to score becomes a
// zero-score candidate rather than failing the answer.
func (e *Engine) generate(ctx context.Context, question string, passages []Passage) ([]Candidate, error) {
	candidates := make([]Candidate, len(passages))

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(e.conc)

	for i, p := range passages {
		group.Go(func() error {
			candidates[i] = Candidate{Source: p.Source, Modified: p.Modified}

			if strings.TrimSpace(p.Text) == "" {
				return nil
			}

			if err := e.limiter.Wait(ctx); err != nil {
				return err
			}

			var g grade
			err := e.llm.Generate(ctx, scoreSystemPrompt, grade{}, &g, prompt.Prompt{
				Role: prompt.UserRole,
				Text: fmt.Sprintf("<context>\n%s\n</context>\n\n<question> %s </question>", p.Text, question),
			})
			if err != nil {
				e.logger.Warn("failed to score passage", "source", p.Source, "err", err)
				return nil
			}

			score, err := parseScore(g.Score)
			if err != nil {
				e.logger.Warn("failed to parse score, defaulting to 0", "source", p.Source, "score", g.Score, "err", err)
				score = 0
			}

			candidates[i].Answer = g.Answer
			candidates[i].Score = score
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return candidates, nil
}

// choose issues one selection call over the full candidate set, in insertion
// order. Ranking is delegated to the model via the candidates' scores. An
// empty candidate set short-circuits without a model call.
func (e *Engine) choose(ctx context.Context, question string, candidates []Candidate) (string, error) {
	if len(candidates) == 0 {
		return NoInformation, nil
	}

	prompts := slicez.Map(candidates, func(c Candidate) prompt.Prompt {
		modified := "unknown"
		if !c.Modified.IsZero() {
			modified = c.Modified.Format(time.DateOnly)
		}
		return prompt.Prompt{
			Role: prompt.UserRole,
			Text: fmt.Sprintf("<candidate>\nanswer: %s\nsource: %s\nscore: %d\nmodified: %s\n</candidate>", c.Answer, c.Source, c.Score, modified),
		}
	})

	if err := e.limiter.Wait(ctx); err != nil {
		return "", err
	}

	var v verdict
	err := e.llm.Generate(ctx, chooseSystemPrompt, verdict{}, &v,
		append(prompts, prompt.Prompt{
			Role: prompt.UserRole,
			Text: fmt.Sprintf("<user-question> %s </user-question>", question),
		})...)
	if err != nil {
		return "", err
	}

	if v.Source == "" {
		return v.Answer, nil
	}

	for _, c := range candidates {
		if c.Source == v.Source && !c.Modified.IsZero() {
			return fmt.Sprintf("%s\n\nSource: %s (last modified %s)", v.Answer, v.Source, c.Modified.Format(time.DateOnly)), nil
		}
	}
	return fmt.Sprintf("%s\n\nSource: %s", v.Answer, v.Source), nil
}
