package statusfor_test

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	goerrors "github.com/goliatone/go-errors"
	statusfor "github.com/goliatone/go-statusfor"
	"github.com/goliatone/go-statusfor/internal/logging/console"
	"github.com/goliatone/go-statusfor/pkg/testsupport"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/uptrace/bun"
)

type thing struct {
	bun.BaseModel `bun:"table:things,alias:t"`

	ID         uuid.UUID  `bun:",pk,type:uuid"`
	Name       string     `bun:"name"`
	OnHoldAt   *time.Time `bun:"on_hold_at"`
	ArchivedAt *time.Time `bun:"archived_at"`
	FeaturedAt *time.Time `bun:"featured_at"`
}

type specialThing struct {
	thing

	Priority int
}

type borrowedThing struct {
	*thing

	Label string
}

type partial struct {
	PresentAt *time.Time
}

var thingStatuses = []string{"on_hold", "archived", "featured"}

func tickingClock() func() time.Time {
	current := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		current = current.Add(time.Second)
		return current
	}
}

func newModule(t *testing.T, mutate func(*statusfor.Config), opts ...statusfor.Option) *statusfor.Module {
	t.Helper()
	cfg := statusfor.DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	base := []statusfor.Option{
		statusfor.WithClock(tickingClock()),
		statusfor.WithLoggerProvider(console.NewProvider(console.Options{Writer: io.Discard})),
	}
	m, err := statusfor.New(cfg, append(base, opts...)...)
	if err != nil {
		t.Fatalf("new module: %v", err)
	}
	return m
}

func installThing(t *testing.T, m *statusfor.Module, opts ...statusfor.InstallOption) {
	t.Helper()
	opts = append([]statusfor.InstallOption{statusfor.WithCallback(func(scope *statusfor.Scope) error {
		return scope.DefineAll("depends_on", "not_on_hold", "not_archived")
	})}, opts...)
	result, err := m.Install((*thing)(nil), thingStatuses, opts...)
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	if !result.AllFieldsPresent {
		t.Fatalf("expected every field present, got %+v", result)
	}
}

type scenario struct {
	Statuses []string `json:"statuses"`
	Steps    []struct {
		Set     string          `json:"set"`
		Status  string          `json:"status"`
		Current string          `json:"current"`
		Filters map[string]bool `json:"filters"`
	} `json:"steps"`
}

func TestStatusScenarioFromGolden(t *testing.T) {
	var sc scenario
	if err := testsupport.LoadGolden(filepath.Join("testdata", "status_scenario.json"), &sc); err != nil {
		t.Fatalf("load scenario: %v", err)
	}
	if !reflect.DeepEqual(sc.Statuses, thingStatuses) {
		t.Fatalf("scenario statuses %v do not match %v", sc.Statuses, thingStatuses)
	}

	ctx := context.Background()
	m := newModule(t, nil)
	installThing(t, m)
	entity := &thing{ID: uuid.New()}

	for i, step := range sc.Steps {
		if err := m.SetStatus(ctx, entity, step.Set); err != nil {
			t.Fatalf("step %d (%q): set status: %v", i, step.Set, err)
		}
		status, err := m.Status(entity)
		if err != nil {
			t.Fatalf("step %d: status: %v", i, err)
		}
		if status != step.Status {
			t.Fatalf("step %d (%q): expected status %q, got %q", i, step.Set, step.Status, status)
		}
		current, _ := m.Current(entity)
		if current != step.Current {
			t.Fatalf("step %d (%q): expected current %q, got %q", i, step.Set, step.Current, current)
		}
		for name, want := range step.Filters {
			got, err := m.Matches(entity, name)
			if err != nil {
				t.Fatalf("step %d: filter %s: %v", i, name, err)
			}
			if got != want {
				t.Fatalf("step %d (%q): expected %s=%v, got %v", i, step.Set, name, want, got)
			}
		}
	}
}

func TestStatusStringRoundTrips(t *testing.T) {
	ctx := context.Background()
	m := newModule(t, nil)
	installThing(t, m)

	source := &thing{}
	for _, status := range []string{"featured", "on_hold", "archived"} {
		if err := m.Activate(ctx, source, status); err != nil {
			t.Fatalf("activate %s: %v", status, err)
		}
	}
	text, _ := m.Status(source)
	if text != "archived on_hold featured" {
		t.Fatalf("unexpected status string %q", text)
	}

	copyOf := &thing{}
	if err := m.SetStatus(ctx, copyOf, text); err != nil {
		t.Fatalf("apply status string: %v", err)
	}
	history, _ := m.History(copyOf)
	for _, status := range history {
		active, err := m.IsActive(copyOf, status)
		if err != nil || !active {
			t.Fatalf("expected %s active on the copy, got %v err=%v", status, active, err)
		}
	}
	if len(history) != 3 {
		t.Fatalf("expected three active statuses, got %v", history)
	}
}

func TestActivateIsIdempotentUnlessOverwriteEnabled(t *testing.T) {
	ctx := context.Background()

	m := newModule(t, nil)
	installThing(t, m)
	entity := &thing{}
	_ = m.Activate(ctx, entity, "featured")
	first := *entity.FeaturedAt
	_ = m.Activate(ctx, entity, "featured")
	if !entity.FeaturedAt.Equal(first) {
		t.Fatalf("expected timestamp to stay %s, got %s", first, entity.FeaturedAt)
	}

	overwriting := newModule(t, func(cfg *statusfor.Config) { cfg.Mutations.OverwriteOnActivate = true })
	installThing(t, overwriting)
	other := &thing{}
	_ = overwriting.Activate(ctx, other, "featured")
	first = *other.FeaturedAt
	_ = overwriting.Activate(ctx, other, "featured")
	if !other.FeaturedAt.After(first) {
		t.Fatalf("expected overwrite to refresh the timestamp, got %s", other.FeaturedAt)
	}
}

func TestInvokeNamedOperations(t *testing.T) {
	ctx := context.Background()
	m := newModule(t, nil)
	installThing(t, m)
	entity := &thing{}

	if active, err := m.Invoke(ctx, entity, "archived!"); err != nil || !active {
		t.Fatalf("archived! returned %v err=%v", active, err)
	}
	if active, err := m.Invoke(ctx, entity, "archived?"); err != nil || !active {
		t.Fatalf("archived? returned %v err=%v", active, err)
	}
	if active, err := m.Invoke(ctx, entity, "not_archived!"); err != nil || active {
		t.Fatalf("not_archived! returned %v err=%v", active, err)
	}
	if _, err := m.Invoke(ctx, entity, "deleted!"); !errors.Is(err, statusfor.ErrUnknownStatus) {
		t.Fatalf("expected ErrUnknownStatus, got %v", err)
	}

	ops, _ := m.Operations(entity)
	if len(ops) != 9 {
		t.Fatalf("expected nine operations, got %v", ops)
	}
	events, _ := m.Events(entity)
	want := []string{"on_hold", "archived", "featured", "not_on_hold", "not_archived", "not_featured"}
	if !reflect.DeepEqual(events, want) {
		t.Fatalf("expected events %v, got %v", want, events)
	}
}

func TestUnknownTokensFailOrAreSkipped(t *testing.T) {
	ctx := context.Background()

	strict := newModule(t, nil)
	installThing(t, strict)
	entity := &thing{}
	err := strict.SetStatus(ctx, entity, "featured bogus archived")
	if !errors.Is(err, statusfor.ErrUnsupportedStatus) {
		t.Fatalf("expected ErrUnsupportedStatus, got %v", err)
	}
	if !goerrors.IsCategory(err, goerrors.CategoryValidation) {
		t.Fatalf("expected validation category, got %v", err)
	}
	if entity.FeaturedAt == nil || entity.ArchivedAt != nil {
		t.Fatalf("expected tokens before the failure to stay applied, got %+v", entity)
	}

	lenient := newModule(t, func(cfg *statusfor.Config) { cfg.Mutations.IgnoreUnknown = true })
	installThing(t, lenient)
	other := &thing{}
	if err := lenient.SetStatus(ctx, other, "featured bogus archived"); err != nil {
		t.Fatalf("expected unknown token to be skipped, got %v", err)
	}
	if status, _ := lenient.Status(other); status != "archived featured" {
		t.Fatalf("unexpected status %q", status)
	}
}

func TestEmbeddingTypeInheritsStatuses(t *testing.T) {
	ctx := context.Background()
	m := newModule(t, nil)
	installThing(t, m)

	entity := &specialThing{Priority: 1}
	if err := m.SetStatus(ctx, entity, "on_hold archived"); err != nil {
		t.Fatalf("set status on embedding type: %v", err)
	}
	if status, _ := m.Status(entity); status != "archived on_hold" {
		t.Fatalf("unexpected status %q", status)
	}
	if ok, _ := m.Matches(entity, "depends_on"); ok {
		t.Fatal("expected inherited derived filter to exclude archived entity")
	}
	statuses, _ := m.Statuses(entity)
	if !reflect.DeepEqual(statuses, thingStatuses) {
		t.Fatalf("expected inherited statuses, got %v", statuses)
	}

	current, err := m.Current(&specialThing{})
	if err != nil || current != "" {
		t.Fatalf("expected blank current for a fresh embedding entity, got %q (%v)", current, err)
	}
}

func TestPointerEmbeddingTypeInheritsStatuses(t *testing.T) {
	ctx := context.Background()
	m := newModule(t, nil)
	installThing(t, m)

	entity := &borrowedThing{thing: &thing{}}
	if err := m.Activate(ctx, entity, "featured"); err != nil {
		t.Fatalf("activate through embedded pointer: %v", err)
	}
	if entity.thing.FeaturedAt == nil {
		t.Fatal("expected featured_at written on the embedded thing")
	}
	if current, err := m.Current(entity); err != nil || current != "featured" {
		t.Fatalf("expected featured, got %q (%v)", current, err)
	}
	if err := m.SetStatus(ctx, entity, "archived not_featured"); err != nil {
		t.Fatalf("set status through embedded pointer: %v", err)
	}
	if status, _ := m.Status(entity); status != "archived" {
		t.Fatalf("unexpected status %q", status)
	}

	empty := &borrowedThing{}
	if current, err := m.Current(empty); err != nil || current != "" {
		t.Fatalf("expected blank current through a nil embed, got %q (%v)", current, err)
	}
	if active, err := m.IsActive(empty, "archived"); err != nil || active {
		t.Fatalf("expected archived inactive through a nil embed, got %v (%v)", active, err)
	}
	if err := m.Activate(ctx, empty, "archived"); !errors.Is(err, statusfor.ErrInvalidModel) {
		t.Fatalf("expected ErrInvalidModel writing through a nil unexported embed, got %v", err)
	}
}

func TestCurrentOnTiedTimestampsFollowsDeclarationOrder(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	m := newModule(t, nil)
	installThing(t, m)

	entity := &thing{OnHoldAt: ptrTime(at), ArchivedAt: ptrTime(at)}
	if current, _ := m.Current(entity); current != "on_hold" {
		t.Fatalf("expected the earlier declared status on a tie, got %q", current)
	}
	for _, name := range []string{"on_hold", "archived"} {
		if ok, err := m.Matches(entity, name); err != nil || ok {
			t.Fatalf("expected strict %s filter to reject a tie, got %v (%v)", name, ok, err)
		}
	}
}

func TestMissingFieldWithholdsCallback(t *testing.T) {
	m := newModule(t, nil)
	ran := false

	result, err := m.Install((*partial)(nil), []string{"present", "absent"}, statusfor.WithCallback(func(*statusfor.Scope) error {
		ran = true
		return nil
	}))
	if err != nil {
		t.Fatalf("install: %v", err)
	}
	if result.AllFieldsPresent || ran {
		t.Fatalf("expected incomplete install without callback, got %+v ran=%v", result, ran)
	}
	if _, err := m.Invoke(context.Background(), &partial{}, "absent!"); !errors.Is(err, statusfor.ErrUnknownStatus) {
		t.Fatalf("expected no absent! operation, got %v", err)
	}
	if err := m.SetStatus(context.Background(), &partial{}, "absent"); !errors.Is(err, statusfor.ErrUnsupportedStatus) {
		t.Fatalf("expected absent token to be unsupported, got %v", err)
	}
	if _, err := m.Filter(&partial{}, "absent"); !errors.Is(err, statusfor.ErrUnknownFilter) {
		t.Fatalf("expected no absent filter, got %v", err)
	}
}

func TestMetricsCountAppliedTransitions(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newModule(t, func(cfg *statusfor.Config) {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Namespace = "things"
	}, statusfor.WithRegisterer(reg))
	installThing(t, m)

	ctx := context.Background()
	entity := &thing{}
	_ = m.SetStatus(ctx, entity, "featured featured archived")
	_ = m.SetStatus(ctx, entity, "")

	expected := `
# HELP things_status_transitions_total The number of status timestamps set or cleared.
# TYPE things_status_transitions_total counter
things_status_transitions_total{action="activated",entity_type="statusfor_test.thing",status="archived"} 1
things_status_transitions_total{action="activated",entity_type="statusfor_test.thing",status="featured"} 1
things_status_transitions_total{action="deactivated",entity_type="statusfor_test.thing",status="archived"} 1
things_status_transitions_total{action="deactivated",entity_type="statusfor_test.thing",status="featured"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "things_status_transitions_total"); err != nil {
		t.Fatalf("unexpected metrics: %v", err)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := statusfor.DefaultConfig()
	cfg.Logging.Provider = "syslog"
	if _, err := statusfor.New(cfg); !errors.Is(err, statusfor.ErrLoggingProviderUnknown) {
		t.Fatalf("expected ErrLoggingProviderUnknown, got %v", err)
	}
}

func TestNewBuildsGoLoggerProvider(t *testing.T) {
	cfg := statusfor.DefaultConfig()
	cfg.Logging.Provider = "gologger"
	cfg.Logging.Level = "error"
	cfg.Logging.Format = "json"
	m, err := statusfor.New(cfg)
	if err != nil {
		t.Fatalf("new module: %v", err)
	}
	if m.LoggerProvider() == nil {
		t.Fatal("expected a logger provider")
	}
}

func newThingDB(t *testing.T) *bun.DB {
	t.Helper()
	db, err := testsupport.NewBunSQLiteDB()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if _, err := db.NewCreateTable().Model((*thing)(nil)).IfNotExists().Exec(context.Background()); err != nil {
		t.Fatalf("create table: %v", err)
	}
	return db
}

func names(records []*thing) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Name
	}
	return out
}

func TestFiltersAgainstSQLite(t *testing.T) {
	ctx := context.Background()
	db := newThingDB(t)
	m := newModule(t, nil, statusfor.WithDB(db))
	installThing(t, m)

	records := map[string]*thing{}
	for _, name := range []string{"alpha", "bravo", "charlie", "delta"} {
		rec := &thing{ID: uuid.New(), Name: name}
		if _, err := db.NewInsert().Model(rec).Exec(ctx); err != nil {
			t.Fatalf("insert %s: %v", name, err)
		}
		records[name] = rec
	}
	steps := []struct{ name, text string }{
		{"alpha", "featured"},
		{"bravo", "featured"},
		{"charlie", "on_hold"},
		{"bravo", "archived"},
	}
	for _, step := range steps {
		if err := m.SetStatus(ctx, records[step.name], step.text); err != nil {
			t.Fatalf("set %s on %s: %v", step.text, step.name, err)
		}
	}

	cases := map[string][]string{
		"featured":                               {"alpha"},
		"archived":                               {"bravo"},
		"on_hold":                                {"charlie"},
		"not_archived":                           {"alpha", "charlie", "delta"},
		"not_featured":                           {"bravo", "charlie", "delta"},
		"depends_on":                             {"alpha", "delta"},
		"status_including_featured_and_archived": {"bravo"},
	}
	for filter, want := range cases {
		var found []*thing
		q, err := m.Query(db, &found, filter)
		if err != nil {
			t.Fatalf("query %s: %v", filter, err)
		}
		if err := q.OrderExpr("?TableAlias.name ASC").Scan(ctx); err != nil {
			t.Fatalf("scan %s: %v", filter, err)
		}
		if got := names(found); !reflect.DeepEqual(got, want) {
			t.Fatalf("%s: expected %v, got %v", filter, want, got)
		}
	}

	stored := &thing{}
	if err := db.NewSelect().Model(stored).Where("?TableAlias.id = ?", records["bravo"].ID).Scan(ctx); err != nil {
		t.Fatalf("reload bravo: %v", err)
	}
	if status, _ := m.Status(stored); status != "archived featured" {
		t.Fatalf("expected stored status to round trip, got %q", status)
	}

	if _, err := m.Query(db, &[]*thing{}, "unknown_filter"); !errors.Is(err, statusfor.ErrUnknownFilter) {
		t.Fatalf("expected ErrUnknownFilter, got %v", err)
	}
}

func TestSetStatusTxRollsBackOnFailure(t *testing.T) {
	ctx := context.Background()
	db := newThingDB(t)
	m := newModule(t, nil, statusfor.WithDB(db))
	installThing(t, m)

	rec := &thing{ID: uuid.New(), Name: "tx"}
	if _, err := db.NewInsert().Model(rec).Exec(ctx); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := m.SetStatusTx(ctx, db, rec, "featured bogus"); !errors.Is(err, statusfor.ErrUnsupportedStatus) {
		t.Fatalf("expected ErrUnsupportedStatus, got %v", err)
	}
	stored := &thing{}
	if err := db.NewSelect().Model(stored).Where("?TableAlias.id = ?", rec.ID).Scan(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.FeaturedAt != nil {
		t.Fatalf("expected featured_at to be rolled back, got %v", stored.FeaturedAt)
	}

	if err := m.SetStatusTx(ctx, db, stored, "featured archived"); err != nil {
		t.Fatalf("set status tx: %v", err)
	}
	if err := db.NewSelect().Model(stored).Where("?TableAlias.id = ?", rec.ID).Scan(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if status, _ := m.Status(stored); status != "archived featured" {
		t.Fatalf("expected committed status, got %q", status)
	}
}

func newThingRepository(m *statusfor.Module, db *bun.DB) *statusfor.Repository[*thing] {
	return statusfor.NewRepository(m, db, "things",
		func() *thing { return &thing{} },
		func(r *thing) uuid.UUID { return r.ID },
		func(r *thing, id uuid.UUID) { r.ID = id },
	)
}

func TestSetStatusTxRefreshesCachedRepository(t *testing.T) {
	ctx := context.Background()
	db := newThingDB(t)
	m := newModule(t, func(cfg *statusfor.Config) { cfg.Cache.Enabled = true }, statusfor.WithDB(db))
	repo := newThingRepository(m, db)
	installThing(t, m, statusfor.WithInstallPersister(repo))

	rec, err := repo.Create(ctx, &thing{ID: uuid.New(), Name: "cached"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	warm, err := repo.GetByID(ctx, rec.ID)
	if err != nil {
		t.Fatalf("warm: %v", err)
	}
	if status, _ := m.Status(warm); status != "" {
		t.Fatalf("expected no status before the write, got %q", status)
	}

	target := &thing{ID: rec.ID, Name: rec.Name}
	if err := m.SetStatusTx(ctx, db, target, "featured archived"); err != nil {
		t.Fatalf("set status tx: %v", err)
	}

	fresh, err := repo.GetByID(ctx, rec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if status, _ := m.Status(fresh); status != "archived featured" {
		t.Fatalf("expected cached read to see the committed status, got %q", status)
	}
}

func TestSetStatusCommandThroughDispatcher(t *testing.T) {
	ctx := context.Background()
	db := newThingDB(t)
	m := newModule(t, func(cfg *statusfor.Config) { cfg.Cache.Enabled = true }, statusfor.WithDB(db))
	repo := newThingRepository(m, db)
	installThing(t, m, statusfor.WithInstallPersister(repo))

	rec, err := repo.Create(ctx, &thing{ID: uuid.New(), Name: "commanded", OnHoldAt: ptrTime(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	handler := statusfor.NewSetStatusHandler[*thing](m, repo)
	sub := dispatcher.SubscribeCommand(handler, runner.WithMaxRetries(0))
	t.Cleanup(sub.Unsubscribe)

	if err := dispatcher.Dispatch(ctx, statusfor.SetStatusCommand{EntityID: rec.ID, Status: "not_on_hold featured"}); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	stored := &thing{}
	if err := db.NewSelect().Model(stored).Where("?TableAlias.id = ?", rec.ID).Scan(ctx); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if stored.OnHoldAt != nil || stored.FeaturedAt == nil {
		t.Fatalf("expected on_hold cleared and featured set, got %+v", stored)
	}
	cached, err := repo.GetByID(ctx, rec.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if status, _ := m.Status(cached); status != "featured" {
		t.Fatalf("expected cached read to see the command, got %q", status)
	}

	err = handler.Execute(ctx, statusfor.SetStatusCommand{EntityID: uuid.New(), Status: "featured"})
	if !errors.Is(err, statusfor.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound for unknown entity, got %v", err)
	}
}

func ptrTime(t time.Time) *time.Time {
	return &t
}
