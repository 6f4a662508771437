package fields

import (
	"database/sql"
	"errors"
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/uptrace/bun"

	"github.com/goliatone/go-statusfor/internal/domain"
)

type tracked struct {
	bun.BaseModel `bun:"table:tracked"`

	ID         int64      `bun:",pk,autoincrement"`
	OnHoldAt   *time.Time `bun:"on_hold_at,nullzero"`
	ArchivedAt *time.Time
	FeaturedAt bun.NullTime `bun:"featured_at"`
	RetiredAt  sql.NullTime `bun:"retired_at"`
	Ignored    *time.Time   `bun:"-"`
	CreatedAt  time.Time
	Name       string
}

type extended struct {
	tracked `bun:",extend"`

	ArchivedAt *time.Time `bun:"archived_at"`
	PinnedAt   *time.Time `bun:"pinned_at"`
}

func TestStructTypeRejectsNonStructs(t *testing.T) {
	if _, err := StructType(nil); !errors.Is(err, domain.ErrInvalidModel) {
		t.Fatalf("expected ErrInvalidModel for nil, got %v", err)
	}
	if _, err := StructType(42); !errors.Is(err, domain.ErrInvalidModel) {
		t.Fatalf("expected ErrInvalidModel for int, got %v", err)
	}
	typ, err := StructType((*tracked)(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if typ.Name() != "tracked" {
		t.Fatalf("expected tracked, got %s", typ.Name())
	}
	slice := []*tracked{}
	typ, err = StructType(&slice)
	if err != nil || typ.Name() != "tracked" {
		t.Fatalf("expected slice destination to resolve to tracked, got %v %v", typ, err)
	}
	if _, err := StructType([]int{}); !errors.Is(err, domain.ErrInvalidModel) {
		t.Fatalf("expected ErrInvalidModel for []int, got %v", err)
	}
}

func TestInspectorDiscoversNullableTimestampColumns(t *testing.T) {
	inspector := NewInspector()
	typ, _ := StructType(tracked{})

	got := inspector.Columns(typ)
	sort.Strings(got)
	want := []string{"archived_at", "featured_at", "on_hold_at", "retired_at"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
	if inspector.HasTimestamp(typ, "created_at") {
		t.Fatal("expected non-nullable created_at to be skipped")
	}
	if inspector.HasTimestamp(typ, "ignored") {
		t.Fatal("expected bun:\"-\" field to be skipped")
	}
}

func TestInspectorGetAndSetRoundTrip(t *testing.T) {
	inspector := NewInspector()
	entity := &tracked{}
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	for _, column := range []string{"on_hold_at", "archived_at", "featured_at", "retired_at"} {
		if _, ok, err := inspector.Get(entity, column); err != nil || ok {
			t.Fatalf("%s: expected null, got ok=%v err=%v", column, ok, err)
		}
		if err := inspector.Set(entity, column, &now); err != nil {
			t.Fatalf("%s: set: %v", column, err)
		}
		value, ok, err := inspector.Get(entity, column)
		if err != nil || !ok || !value.Equal(now) {
			t.Fatalf("%s: expected %s, got %s ok=%v err=%v", column, now, value, ok, err)
		}
		if err := inspector.Set(entity, column, nil); err != nil {
			t.Fatalf("%s: clear: %v", column, err)
		}
		if _, ok, _ := inspector.Get(entity, column); ok {
			t.Fatalf("%s: expected cleared value", column)
		}
	}
}

func TestInspectorSetCopiesTheInstant(t *testing.T) {
	inspector := NewInspector()
	entity := &tracked{}
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	if err := inspector.Set(entity, "on_hold_at", &now); err != nil {
		t.Fatalf("set: %v", err)
	}
	now = now.Add(time.Hour)
	if entity.OnHoldAt.Equal(now) {
		t.Fatal("expected the stored instant to be independent from the caller's variable")
	}
}

func TestInspectorResolvesPromotedAndShadowedFields(t *testing.T) {
	inspector := NewInspector()
	entity := &extended{}
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	if err := inspector.Set(entity, "archived_at", &now); err != nil {
		t.Fatalf("set archived_at: %v", err)
	}
	if entity.ArchivedAt == nil || entity.tracked.ArchivedAt != nil {
		t.Fatal("expected the outer archived_at to shadow the embedded one")
	}
	if err := inspector.Set(entity, "on_hold_at", &now); err != nil {
		t.Fatalf("set promoted on_hold_at: %v", err)
	}
	if entity.OnHoldAt == nil {
		t.Fatal("expected promoted on_hold_at to be written")
	}
}

func TestInspectorErrors(t *testing.T) {
	inspector := NewInspector()
	now := time.Now()

	if err := inspector.Set(tracked{}, "on_hold_at", &now); !errors.Is(err, domain.ErrInvalidModel) {
		t.Fatalf("expected ErrInvalidModel for non-pointer set, got %v", err)
	}
	if _, _, err := inspector.Get((*tracked)(nil), "on_hold_at"); !errors.Is(err, domain.ErrInvalidModel) {
		t.Fatalf("expected ErrInvalidModel for nil pointer, got %v", err)
	}
	if _, _, err := inspector.Get(&tracked{}, "missing_at"); !errors.Is(err, domain.ErrUnknownStatus) {
		t.Fatalf("expected ErrUnknownStatus for missing column, got %v", err)
	}
}

type borrowed struct {
	*tracked

	PinnedAt *time.Time `bun:"pinned_at"`
}

type Stamped struct {
	StampedAt *time.Time `bun:"stamped_at"`
}

type restamped struct {
	*Stamped
}

type chained struct {
	*chained

	SeenAt *time.Time `bun:"seen_at"`
}

func TestInspectorFollowsEmbeddedPointers(t *testing.T) {
	inspector := NewInspector()
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	entity := &borrowed{tracked: &tracked{}}
	if !inspector.HasTimestamp(structTypeOf(t, entity), "on_hold_at") {
		t.Fatal("expected on_hold_at promoted through the embedded pointer")
	}
	if err := inspector.Set(entity, "on_hold_at", &now); err != nil {
		t.Fatalf("set on_hold_at: %v", err)
	}
	if entity.tracked.OnHoldAt == nil || !entity.tracked.OnHoldAt.Equal(now) {
		t.Fatalf("expected embedded on_hold_at to be written, got %v", entity.tracked.OnHoldAt)
	}
	got, ok, err := inspector.Get(entity, "on_hold_at")
	if err != nil || !ok || !got.Equal(now) {
		t.Fatalf("expected %v, got %v ok=%v err=%v", now, got, ok, err)
	}
}

func TestInspectorNilEmbeddedPointerReadsAsNull(t *testing.T) {
	inspector := NewInspector()
	now := time.Now()
	entity := &borrowed{}

	_, ok, err := inspector.Get(entity, "archived_at")
	if err != nil || ok {
		t.Fatalf("expected null through a nil embed, got ok=%v err=%v", ok, err)
	}
	if err := inspector.Set(entity, "archived_at", nil); err != nil {
		t.Fatalf("clearing through a nil embed: %v", err)
	}
	if entity.tracked != nil {
		t.Fatal("expected clearing to leave the embed unallocated")
	}
	if err := inspector.Set(entity, "archived_at", &now); !errors.Is(err, domain.ErrInvalidModel) {
		t.Fatalf("expected ErrInvalidModel for an unexported nil embed, got %v", err)
	}

	exported := &restamped{}
	if err := inspector.Set(exported, "stamped_at", &now); err != nil {
		t.Fatalf("set through exported nil embed: %v", err)
	}
	if exported.Stamped == nil || exported.StampedAt == nil || !exported.StampedAt.Equal(now) {
		t.Fatalf("expected the exported embed to be allocated and written, got %+v", exported.Stamped)
	}
}

func TestInspectorStopsAtSelfReferentialEmbeds(t *testing.T) {
	inspector := NewInspector()
	columns := inspector.Columns(structTypeOf(t, &chained{}))
	if len(columns) != 1 || columns[0] != "seen_at" {
		t.Fatalf("expected only seen_at, got %v", columns)
	}
}

func structTypeOf(t *testing.T, model any) reflect.Type {
	t.Helper()
	typ, err := StructType(model)
	if err != nil {
		t.Fatalf("struct type: %v", err)
	}
	return typ
}
