package main

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/MatusOllah/slogcolor"
	"github.com/fatih/color"
	"github.com/modfin/bellman/models/embed"
	"github.com/modfin/bellman/models/gen"
	"github.com/modfin/clix"
	"github.com/modfin/quill/internal/ai"
	"github.com/modfin/quill/internal/db"
	"github.com/modfin/quill/internal/research"
	"github.com/modfin/quill/internal/scrape"
	"github.com/modfin/quill/internal/tools"
	"github.com/urfave/cli/v3"
	_ "modernc.org/sqlite"
)

func main() {

	defer func() {
		db.Statistics()
	}()

	cmd := &cli.Command{
		Name:  "quill",
		Usage: "a RAG tool that builds a knowledge base from websites, answers questions from it and runs tool-assisted research sessions",

		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "db",
				Value:   "./quill.db",
				Sources: cli.EnvVars("QUILL_DB"),
			},

			&cli.StringFlag{
				Name:    "bellman-url",
				Sources: cli.EnvVars("QUILL_BELLMAN_URL"),
			},
			&cli.StringFlag{
				Name:    "bellman-key",
				Sources: cli.EnvVars("QUILL_BELLMAN_KEY"),
			},
			&cli.StringFlag{
				Name:    "bellman-key-name",
				Value:   "quill",
				Sources: cli.EnvVars("QUILL_BELLMAN_KEY_NAME"),
			},

			&cli.StringFlag{
				Name:    "vertexai-credential",
				Sources: cli.EnvVars("QUILL_VERTEXAI_CREDENTIAL"),
			},
			&cli.StringFlag{
				Name:    "vertexai-project",
				Sources: cli.EnvVars("QUILL_VERTEXAI_PROJECT"),
			},
			&cli.StringFlag{
				Name:    "vertexai-region",
				Sources: cli.EnvVars("QUILL_VERTEXAI_REGION"),
			},

			&cli.StringFlag{
				Name:    "openai-key",
				Sources: cli.EnvVars("QUILL_OPENAI_KEY"),
			},
			&cli.StringFlag{
				Name:    "anthropic-key",
				Sources: cli.EnvVars("QUILL_ANTHROPIC_KEY"),
			},
			&cli.StringFlag{
				Name:    "voyageai-key",
				Sources: cli.EnvVars("QUILL_VOYAGEAI_KEY"),
			},

			&cli.StringFlag{
				Name:    "embed-model",
				Value:   "OpenAI/text-embedding-3-small",
				Sources: cli.EnvVars("QUILL_EMBED_MODEL"),
			},
			&cli.StringFlag{
				Name:    "llm-model",
				Value:   "OpenAI/gpt-4o-mini",
				Sources: cli.EnvVars("QUILL_LLM_MODEL"),
			},

			&cli.BoolFlag{
				Name:    "verbose",
				Sources: cli.EnvVars("QUILL_VERBOSE"),
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {

			opts := slogcolor.DefaultOptions
			opts.Level = slog.LevelInfo
			if cmd.Bool("verbose") {
				opts.Level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slogcolor.NewHandler(os.Stderr, opts)))

			return ctx, nil
		},

		Commands: []*cli.Command{
			indexCommand(),
			searchCommand(),
			askCommand(),
			chatCommand(),
			researchCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Default().Error("got error running quill", "err", err)
		os.Exit(1)
	}
}

func openQueries(ctx context.Context, cmd *cli.Command) (*db.Queries, error) {
	conn, err := sql.Open("sqlite", cmd.String("db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open database file, %s: %w", "file://"+cmd.String("db"), err)
	}

	_, err = conn.ExecContext(ctx, db.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return db.New(conn), nil
}

func embedModel(cmd *cli.Command) embed.Model {
	provider, name, _ := strings.Cut(cmd.String("embed-model"), "/")
	slog.Default().Debug("embedding", "provider", provider, "model", name)
	return embed.Model{
		Provider: provider,
		Name:     name,
	}
}

func genModel(cmd *cli.Command) gen.Model {
	provider, name, _ := strings.Cut(cmd.String("llm-model"), "/")
	slog.Default().Debug("llm", "provider", provider, "model", name)
	return gen.Model{
		Provider: provider,
		Name:     name,
	}
}

func indexCommand() *cli.Command {
	return &cli.Command{
		Name:      "index",
		Usage:     "crawl a sitemap and add its pages to the knowledge base",
		ArgsUsage: "<sitemap-url>...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "label",
				Usage:   "the label to store the pages under",
				Value:   "default",
				Sources: cli.EnvVars("QUILL_LABEL"),
			},
			&cli.StringSliceFlag{
				Name:    "filter",
				Usage:   "regexp that page urls must match, repeatable",
				Sources: cli.EnvVars("QUILL_FILTER"),
			},
			&cli.IntFlag{
				Name:  "chunk-size",
				Value: scrape.DefaultChunkSize,
			},
			&cli.IntFlag{
				Name:  "chunk-overlap",
				Value: scrape.DefaultChunkOverlap,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {

			if cmd.Args().Len() == 0 {
				return fmt.Errorf("expected at least one sitemap url")
			}

			credentials := clix.ParseCommand[ai.Credentials](cmd)
			proxy, err := ai.New(credentials, slog.Default())
			if err != nil {
				return fmt.Errorf("failed to create proxy: %w", err)
			}

			queries, err := openQueries(ctx, cmd)
			if err != nil {
				return err
			}

			crawler, err := scrape.NewCrawler(cmd.StringSlice("filter"), slog.Default())
			if err != nil {
				return fmt.Errorf("failed to create crawler: %w", err)
			}

			model := embedModel(cmd)
			label := cmd.String("label")

			for _, sitemapURL := range cmd.Args().Slice() {
				logger := slog.Default().With("sitemap", sitemapURL)

				logger.Info("crawling sitemap")
				pages, err := crawler.Crawl(ctx, sitemapURL)
				if err != nil {
					return fmt.Errorf("failed to crawl %s: %w", sitemapURL, err)
				}
				logger.Info("crawled sitemap", "pages", len(pages))

				for _, page := range pages {
					chunks := scrape.Split(page.Text, int(cmd.Int("chunk-size")), int(cmd.Int("chunk-overlap")))

					for seq, chunk := range chunks {
						logger := logger.With("url", page.URL, "seq", seq)

						dirty, err := queries.DirtyFragment(ctx, label, page.URL, seq, chunk)
						if err != nil {
							return fmt.Errorf("failed to check if fragment is dirty: %w", err)
						}
						if !dirty {
							logger.Debug("skipping already existing fragment")
							continue
						}

						logger.Debug("embedding fragment", "len", len(chunk))
						resp, err := proxy.Embed(embed.Request{
							Ctx:   ctx,
							Model: model,
							Text:  chunk,
						})
						if err != nil {
							return fmt.Errorf("failed to embed: %w", err)
						}

						frag, err := queries.AddFragment(ctx,
							label,
							page.URL,
							seq,
							chunk,
							page.Lastmod,
							cmd.String("embed-model"),
							resp.AsFloat64(),
						)
						if err != nil {
							return fmt.Errorf("failed to add fragment: %w", err)
						}

						logger.Info("added fragment", "id", frag.ID)
					}
				}
			}

			return nil
		},
	}
}

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "search the knowledge base for fragments",
		ArgsUsage: "<query>...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "label",
				Usage:   "sql like pattern for the labels to search",
				Value:   "%",
				Sources: cli.EnvVars("QUILL_LABEL"),
			},
			&cli.IntFlag{
				Name:    "limit",
				Usage:   "the maximum number of fragments to return",
				Value:   5,
				Sources: cli.EnvVars("QUILL_LIMIT"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {

			credentials := clix.ParseCommand[ai.Credentials](cmd)
			proxy, err := ai.New(credentials, slog.Default())
			if err != nil {
				return fmt.Errorf("failed to create proxy: %w", err)
			}

			queries, err := openQueries(ctx, cmd)
			if err != nil {
				return err
			}

			model := embedModel(cmd)
			model.Type = embed.TypeQuery

			resp, err := proxy.Embed(embed.Request{
				Ctx:   ctx,
				Model: model,
				Text:  strings.Join(cmd.Args().Slice(), " "),
			})
			if err != nil {
				return fmt.Errorf("failed to embed: %w", err)
			}

			frags, err := queries.KNN(ctx, resp.AsFloat64(), cmd.String("label"), int(cmd.Int("limit")))
			if err != nil {
				return fmt.Errorf("failed to query database: %w", err)
			}

			for _, frag := range frags {
				color.Cyan("============ %s: %s #%d ============", frag.Label, frag.URL, frag.Seq)
				fmt.Println(frag.Content)
			}

			return nil
		},
	}
}

func askCommand() *cli.Command {
	return &cli.Command{
		Name:      "ask",
		Usage:     "ask the knowledge base a question",
		ArgsUsage: "<question>...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "label",
				Usage:   "sql like pattern for the labels to search",
				Value:   "%",
				Sources: cli.EnvVars("QUILL_LABEL"),
			},
			&cli.IntFlag{
				Name:    "limit",
				Usage:   "the number of fragments to answer from",
				Value:   4,
				Sources: cli.EnvVars("QUILL_LIMIT"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {

			engine, retriever, err := newEngine(ctx, cmd)
			if err != nil {
				return err
			}

			question := strings.Join(cmd.Args().Slice(), " ")

			passages, err := retriever.Retrieve(ctx, question)
			if err != nil {
				return fmt.Errorf("failed to retrieve passages: %w", err)
			}

			answer, err := engine.Answer(ctx, ai.NewConversation(), question, passages)
			if err != nil {
				return fmt.Errorf("failed to answer: %w", err)
			}

			fmt.Println(answer)
			return nil
		},
	}
}

func chatCommand() *cli.Command {
	return &cli.Command{
		Name:  "chat",
		Usage: "chat with the knowledge base",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "label",
				Usage:   "sql like pattern for the labels to search",
				Value:   "%",
				Sources: cli.EnvVars("QUILL_LABEL"),
			},
			&cli.IntFlag{
				Name:    "limit",
				Usage:   "the number of fragments to answer from",
				Value:   4,
				Sources: cli.EnvVars("QUILL_LIMIT"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {

			engine, retriever, err := newEngine(ctx, cmd)
			if err != nil {
				return err
			}

			convo := ai.NewConversation()
			slog.Default().Debug("starting conversation", "id", convo.ID)

			scanner := bufio.NewScanner(os.Stdin)
			for {
				color.Set(color.FgGreen)
				fmt.Print("> ")
				color.Unset()

				if !scanner.Scan() {
					return scanner.Err()
				}
				question := strings.TrimSpace(scanner.Text())
				if question == "" {
					continue
				}
				if question == "exit" || question == "quit" {
					return nil
				}

				passages, err := retriever.Retrieve(ctx, question)
				if err != nil {
					return fmt.Errorf("failed to retrieve passages: %w", err)
				}

				answer, err := engine.Answer(ctx, convo, question, passages)
				if err != nil {
					return fmt.Errorf("failed to answer: %w", err)
				}

				color.Cyan("%s", answer)
				fmt.Println()
			}
		},
	}
}

func newEngine(ctx context.Context, cmd *cli.Command) (*ai.Engine, *ai.Retriever, error) {
	credentials := clix.ParseCommand[ai.Credentials](cmd)
	proxy, err := ai.New(credentials, slog.Default())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create proxy: %w", err)
	}

	queries, err := openQueries(ctx, cmd)
	if err != nil {
		return nil, nil, err
	}

	retriever := ai.NewRetriever(queries, proxy, embedModel(cmd), map[string]int{
		cmd.String("label"): int(cmd.Int("limit")),
	})

	engine := ai.NewEngine(proxy.Generator(genModel(cmd)), ai.EngineConfig{}, slog.Default())
	return engine, retriever, nil
}

func researchCommand() *cli.Command {
	return &cli.Command{
		Name:      "research",
		Usage:     "run a tool-assisted research session on a topic",
		ArgsUsage: "<topic>...",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "research-model",
				Value:   "gpt-4o-mini",
				Sources: cli.EnvVars("QUILL_RESEARCH_MODEL"),
			},
			&cli.StringFlag{
				Name:    "output-dir",
				Usage:   "directory the session may save files to",
				Value:   "./research",
				Sources: cli.EnvVars("QUILL_OUTPUT_DIR"),
			},
			&cli.IntFlag{
				Name:    "max-polls",
				Value:   120,
				Sources: cli.EnvVars("QUILL_MAX_POLLS"),
			},
			&cli.DurationFlag{
				Name:    "poll-interval",
				Value:   0,
				Sources: cli.EnvVars("QUILL_POLL_INTERVAL"),
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {

			if cmd.String("openai-key") == "" {
				return fmt.Errorf("research requires an openai key")
			}

			registry := tools.NewRegistry()
			for _, tool := range []tools.Tool{
				tools.NewWebSearch().Tool(),
				tools.NewWikipediaSearch().Tool(),
				tools.NewPageFetch().Tool(),
				tools.NewFileSaver(cmd.String("output-dir")).Tool(),
			} {
				if err := registry.Register(tool); err != nil {
					return fmt.Errorf("failed to register tool: %w", err)
				}
			}

			provider := research.NewOpenAI(research.OpenAIConfig{
				APIKey: cmd.String("openai-key"),
				Model:  cmd.String("research-model"),
			}, registry.Specs())

			if err := provider.Ping(ctx); err != nil {
				return fmt.Errorf("openai key check failed: %w", err)
			}

			driver := research.NewDriver(provider, registry, research.DriverConfig{
				PollInterval: cmd.Duration("poll-interval"),
				MaxPolls:     int(cmd.Int("max-polls")),
			}, slog.Default())

			topic := strings.Join(cmd.Args().Slice(), " ")

			slog.Default().Info("starting research session", "topic", topic)
			result, err := driver.Research(ctx, topic)
			if err != nil {
				return fmt.Errorf("research failed: %w", err)
			}

			fmt.Println(result)
			return nil
		},
	}
}
