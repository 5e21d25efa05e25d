// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/poiesic/recall"
	"github.com/poiesic/recall/ai"
	"github.com/poiesic/recall/core"
	"github.com/urfave/cli/v2"
)

func main() {
	dbFlag := &cli.StringFlag{
		Name:     "db",
		Aliases:  []string{"d"},
		Usage:    "Path to BadgerDB database directory",
		Required: true,
	}
	ownerFlag := &cli.StringFlag{
		Name:     "owner",
		Aliases:  []string{"o"},
		Usage:    "Owner id scoping the operation",
		Required: true,
	}
	embeddingHostFlag := &cli.StringFlag{
		Name:  "embedding-host",
		Usage: "Embedding service host URL",
		Value: "http://localhost:11434/v1",
	}
	embeddingModelFlag := &cli.StringFlag{
		Name:  "embedding-model",
		Usage: "Embedding model name (empty disables the semantic layer)",
	}

	app := &cli.App{
		Name:  "recall",
		Usage: "Capture and hybrid search for notes, links, tasks and reminders",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "add",
				Usage:     "Capture a new content item",
				ArgsUsage: "<body>",
				Action:    addCommand,
				Flags: []cli.Flag{
					dbFlag,
					ownerFlag,
					embeddingHostFlag,
					embeddingModelFlag,
					&cli.StringFlag{
						Name:  "kind",
						Usage: "Item kind (note, link, task, reminder, file)",
						Value: "note",
					},
					&cli.StringFlag{
						Name:  "title",
						Usage: "Item title",
					},
					&cli.StringFlag{
						Name:  "url",
						Usage: "Link target (kind=link)",
					},
					&cli.StringSliceFlag{
						Name:  "tag",
						Usage: "Tag, repeatable",
					},
				},
			},
			{
				Name:      "search",
				Usage:     "Search captured content",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: []cli.Flag{
					dbFlag,
					ownerFlag,
					embeddingHostFlag,
					embeddingModelFlag,
					&cli.StringFlag{
						Name:  "kind",
						Usage: "Restrict to one kind (note, link, task, reminder, file)",
					},
					&cli.IntFlag{
						Name:  "page-size",
						Usage: "Results per page",
						Value: 10,
					},
					&cli.IntFlag{
						Name:  "offset",
						Usage: "Result offset for paging",
					},
				},
			},
			{
				Name:      "toggle",
				Usage:     "Toggle completion of a task or reminder",
				ArgsUsage: "<item-id>",
				Action:    toggleCommand,
				Flags:     []cli.Flag{dbFlag, ownerFlag},
			},
			{
				Name:      "delete",
				Usage:     "Delete a content item",
				ArgsUsage: "<item-id>",
				Action:    deleteCommand,
				Flags:     []cli.Flag{dbFlag, ownerFlag},
			},
			{
				Name:   "reindex",
				Usage:  "Rebuild the owner's search index from storage",
				Action: reindexCommand,
				Flags: []cli.Flag{
					dbFlag,
					ownerFlag,
					embeddingHostFlag,
					embeddingModelFlag,
				},
			},
			{
				Name:      "related",
				Usage:     "Show items related to one item by meaning",
				ArgsUsage: "<item-id>",
				Action:    relatedCommand,
				Flags: []cli.Flag{
					dbFlag,
					ownerFlag,
					embeddingHostFlag,
					embeddingModelFlag,
					&cli.IntFlag{
						Name:  "max",
						Usage: "Maximum number of related items",
						Value: 5,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// openEngine builds an engine from the shared flags. An empty embedding-model
// runs without the semantic layer.
func openEngine(c *cli.Context) (*recall.Engine, error) {
	opts := []recall.EngineOption{}

	model := c.String("embedding-model")
	if model == "" {
		opts = append(opts, recall.WithoutEmbeddings())
	} else {
		cfg := ai.NewConfig(
			ai.WithHost(c.String("embedding-host")),
			ai.WithEmbeddingModel(model),
		)
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid embedding configuration: %w", err)
		}
		opts = append(opts, recall.WithAIConfig(cfg))
	}

	engine, err := recall.Open(c.String("db"), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return engine, nil
}

func parseKind(name string) (core.Kind, error) {
	switch strings.ToLower(name) {
	case "note":
		return core.KindNote, nil
	case "link":
		return core.KindLink, nil
	case "task":
		return core.KindTask, nil
	case "reminder":
		return core.KindReminder, nil
	case "file":
		return core.KindFile, nil
	default:
		return core.KindAny, fmt.Errorf("unknown kind %q", name)
	}
}

func parseItemId(c *cli.Context) (core.ID, error) {
	if c.Args().Len() != 1 {
		return 0, fmt.Errorf("expected exactly one item id argument")
	}
	raw, err := strconv.ParseUint(c.Args().First(), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid item id %q: %w", c.Args().First(), err)
	}
	return core.ID(raw), nil
}

func addCommand(c *cli.Context) error {
	body := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if body == "" {
		return fmt.Errorf("item body is required")
	}
	kind, err := parseKind(c.String("kind"))
	if err != nil {
		return err
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	item, err := engine.SaveItem(context.Background(), &core.ContentItem{
		Owner: core.OwnerID(c.String("owner")),
		Kind:  kind,
		Title: c.String("title"),
		Body:  body,
		URL:   c.String("url"),
		Tags:  c.StringSlice("tag"),
	})
	if err != nil {
		return err
	}
	engine.WaitForEmbeddings()

	fmt.Printf("saved %s %d\n", item.Kind, item.Id)
	return nil
}

func searchCommand(c *cli.Context) error {
	text := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if text == "" {
		return fmt.Errorf("query text is required")
	}

	kind := core.KindAny
	if name := c.String("kind"); name != "" {
		var err error
		if kind, err = parseKind(name); err != nil {
			return err
		}
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	results, err := engine.Search(context.Background(), core.Query{
		Owner:    core.OwnerID(c.String("owner")),
		Text:     text,
		Kind:     kind,
		PageSize: c.Int("page-size"),
		Offset:   c.Int("offset"),
	})
	if err != nil {
		return err
	}

	if len(results) == 0 {
		fmt.Println("no results")
		return nil
	}
	for i, r := range results {
		marker := ""
		if r.MeaningOnly {
			marker = " (matched on meaning)"
		}
		fmt.Printf("%2d. [%s %d] %s (score %.3f)%s\n",
			c.Int("offset")+i+1, r.Item.Kind, r.Item.Id, r.Item.Title, r.Score, marker)
		if r.Snippet != "" {
			fmt.Printf("    %s\n", r.Snippet)
		}
	}
	return nil
}

func toggleCommand(c *cli.Context) error {
	id, err := parseItemId(c)
	if err != nil {
		return err
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	item, err := engine.ToggleComplete(context.Background(), core.OwnerID(c.String("owner")), id)
	if err != nil {
		return err
	}

	state := "open"
	if item.Completed {
		state = "completed"
	}
	fmt.Printf("%s %d is now %s\n", item.Kind, item.Id, state)
	return nil
}

func deleteCommand(c *cli.Context) error {
	id, err := parseItemId(c)
	if err != nil {
		return err
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	if err := engine.DeleteItem(context.Background(), core.OwnerID(c.String("owner")), id); err != nil {
		return err
	}
	fmt.Printf("deleted item %d\n", id)
	return nil
}

func reindexCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	count, err := engine.RebuildIndex(context.Background(), core.OwnerID(c.String("owner")))
	if err != nil {
		return err
	}
	engine.WaitForEmbeddings()

	fmt.Printf("reindexed %d items\n", count)
	return nil
}

func relatedCommand(c *cli.Context) error {
	id, err := parseItemId(c)
	if err != nil {
		return err
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx := context.Background()
	owner := core.OwnerID(c.String("owner"))

	// The vector index is in memory; warm it before asking for neighbors.
	if _, err := engine.RebuildIndex(ctx, owner); err != nil {
		return err
	}
	engine.WaitForEmbeddings()

	related, err := engine.RelatedItems(ctx, owner, id, c.Int("max"))
	if err != nil {
		return err
	}

	if len(related) == 0 {
		fmt.Println("no related items")
		return nil
	}
	for _, item := range related {
		fmt.Printf("[%s %d] %s\n", item.Kind, item.Id, item.Title)
	}
	return nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
