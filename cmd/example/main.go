package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	statusfor "github.com/goliatone/go-statusfor"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type article struct {
	bun.BaseModel `bun:"table:articles,alias:a"`

	ID          uuid.UUID  `bun:",pk,type:uuid"`
	Title       string     `bun:"title,notnull"`
	DraftAt     *time.Time `bun:"draft_at"`
	PublishedAt *time.Time `bun:"published_at"`
	ArchivedAt  *time.Time `bun:"archived_at"`
}

func main() {
	configPath := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	if err := run(context.Background(), *configPath); err != nil {
		log.Fatalf("statusfor example: %v", err)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg := statusfor.DefaultConfig()
	if configPath != "" {
		loaded, err := statusfor.LoadConfig(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	db, err := statusfor.OpenDB(cfg.Storage)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.NewCreateTable().Model((*article)(nil)).IfNotExists().Exec(ctx); err != nil {
		return fmt.Errorf("create articles table: %w", err)
	}

	module, err := statusfor.New(cfg, statusfor.WithDB(db))
	if err != nil {
		return err
	}

	result, err := module.Install((*article)(nil), []string{"draft", "published", "archived"},
		statusfor.WithCallback(func(scope *statusfor.Scope) error {
			return scope.DefineAll("live", "published", "not_archived")
		}),
	)
	if err != nil {
		return err
	}
	if !result.AllFieldsPresent {
		return fmt.Errorf("articles table is missing status columns")
	}

	seed := []struct {
		title  string
		status string
	}{
		{"Release notes", "draft"},
		{"Getting started", "published not_draft"},
		{"Old roadmap", "published archived"},
	}
	for _, item := range seed {
		rec := &article{ID: uuid.New(), Title: item.title}
		if _, err := db.NewInsert().Model(rec).Exec(ctx); err != nil {
			return fmt.Errorf("insert %s: %w", item.title, err)
		}
		if err := module.SetStatusTx(ctx, db, rec, item.status); err != nil {
			return fmt.Errorf("status %s: %w", item.title, err)
		}
		status, _ := module.Status(rec)
		fmt.Fprintf(os.Stdout, "%-16s status=%q\n", item.title, status)
	}

	filters, err := module.Filters((*article)(nil))
	if err != nil {
		return err
	}
	for _, name := range append(filters, "status_including_published_and_archived") {
		var found []*article
		q, err := module.Query(db, &found, name)
		if err != nil {
			return err
		}
		if err := q.OrderExpr("?TableAlias.title ASC").Scan(ctx); err != nil {
			return fmt.Errorf("filter %s: %w", name, err)
		}
		titles := make([]string, len(found))
		for i, rec := range found {
			titles[i] = rec.Title
		}
		fmt.Fprintf(os.Stdout, "%-40s %v\n", name, titles)
	}
	return nil
}
