package fields

import (
	"database/sql"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/ettle/strcase"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-statusfor/internal/domain"
)

type fieldKind uint8

const (
	kindTimePointer fieldKind = iota + 1
	kindBunNullTime
	kindSQLNullTime
)

var (
	timePointerType = reflect.TypeOf((*time.Time)(nil))
	bunNullTimeType = reflect.TypeOf(bun.NullTime{})
	sqlNullTimeType = reflect.TypeOf(sql.NullTime{})
)

type field struct {
	column string
	index  []int
	kind   fieldKind
}

// Inspector discovers nullable timestamp fields on bun models and reads or
// writes them. Column names follow bun: the tag name when present, otherwise
// the snake_case form of the Go field name. Fields promoted from embedded
// structs are included; shallower fields shadow deeper ones.
type Inspector struct {
	mu    sync.RWMutex
	cache map[reflect.Type]map[string]field
}

// NewInspector returns an inspector with an empty type cache.
func NewInspector() *Inspector {
	return &Inspector{cache: make(map[reflect.Type]map[string]field)}
}

// StructType returns the struct type behind model, dereferencing pointers
// and slice element types so query destinations resolve like single records.
func StructType(model any) (reflect.Type, error) {
	if model == nil {
		return nil, domain.NewInvalidModelError("model is nil")
	}
	t := reflect.TypeOf(model)
	for t.Kind() == reflect.Pointer || t.Kind() == reflect.Slice {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, domain.NewInvalidModelError(fmt.Sprintf("model %T is not a struct", model))
	}
	return t, nil
}

// HasTimestamp reports whether t has a nullable timestamp field mapped to column.
func (i *Inspector) HasTimestamp(t reflect.Type, column string) bool {
	_, ok := i.fieldsOf(t)[column]
	return ok
}

// Columns lists the timestamp columns of t in no particular order.
func (i *Inspector) Columns(t reflect.Type) []string {
	fields := i.fieldsOf(t)
	columns := make([]string, 0, len(fields))
	for column := range fields {
		columns = append(columns, column)
	}
	return columns
}

// Get reads column from entity. ok is false when the value is null, which
// includes a field promoted through a nil embedded pointer.
func (i *Inspector) Get(entity any, column string) (time.Time, bool, error) {
	v, f, err := i.locate(entity, column, false)
	if err != nil {
		return time.Time{}, false, err
	}
	value, err := v.FieldByIndexErr(f.index)
	if err != nil {
		return time.Time{}, false, nil
	}
	switch f.kind {
	case kindTimePointer:
		if value.IsNil() {
			return time.Time{}, false, nil
		}
		return *value.Interface().(*time.Time), true, nil
	case kindBunNullTime:
		nt := value.Interface().(bun.NullTime)
		if nt.IsZero() {
			return time.Time{}, false, nil
		}
		return nt.Time, true, nil
	case kindSQLNullTime:
		nt := value.Interface().(sql.NullTime)
		return nt.Time, nt.Valid, nil
	}
	return time.Time{}, false, nil
}

// Set writes column on entity. A nil value clears the field. Nil embedded
// pointers on the way to the field are allocated when written.
func (i *Inspector) Set(entity any, column string, value *time.Time) error {
	v, f, err := i.locate(entity, column, true)
	if err != nil {
		return err
	}
	target, err := settableField(v, f.index, value == nil)
	if err != nil || !target.IsValid() {
		return err
	}
	switch f.kind {
	case kindTimePointer:
		if value == nil {
			target.Set(reflect.Zero(timePointerType))
			return nil
		}
		copied := *value
		target.Set(reflect.ValueOf(&copied))
	case kindBunNullTime:
		nt := bun.NullTime{}
		if value != nil {
			nt.Time = *value
		}
		target.Set(reflect.ValueOf(nt))
	case kindSQLNullTime:
		nt := sql.NullTime{}
		if value != nil {
			nt = sql.NullTime{Time: *value, Valid: true}
		}
		target.Set(reflect.ValueOf(nt))
	}
	return nil
}

// settableField walks index from v. A nil embedded pointer yields an invalid
// value when clearing and is allocated otherwise.
func settableField(v reflect.Value, index []int, clearing bool) (reflect.Value, error) {
	for n, x := range index {
		if n > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				if clearing {
					return reflect.Value{}, nil
				}
				if !v.CanSet() {
					return reflect.Value{}, domain.NewInvalidModelError(
						fmt.Sprintf("embedded %s is nil and cannot be allocated", v.Type()))
				}
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v, nil
}

func (i *Inspector) locate(entity any, column string, settable bool) (reflect.Value, field, error) {
	if entity == nil {
		return reflect.Value{}, field{}, domain.NewInvalidModelError("entity is nil")
	}
	v := reflect.ValueOf(entity)
	if settable && v.Kind() != reflect.Pointer {
		return reflect.Value{}, field{}, domain.NewInvalidModelError(fmt.Sprintf("entity %T must be a pointer", entity))
	}
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return reflect.Value{}, field{}, domain.NewInvalidModelError(fmt.Sprintf("entity %T is a nil pointer", entity))
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return reflect.Value{}, field{}, domain.NewInvalidModelError(fmt.Sprintf("entity %T is not a struct", entity))
	}
	f, ok := i.fieldsOf(v.Type())[column]
	if !ok {
		return reflect.Value{}, field{}, fmt.Errorf("%w: %s has no timestamp field %s", domain.ErrUnknownStatus, v.Type(), column)
	}
	return v, f, nil
}

func (i *Inspector) fieldsOf(t reflect.Type) map[string]field {
	i.mu.RLock()
	fields, ok := i.cache[t]
	i.mu.RUnlock()
	if ok {
		return fields
	}

	fields = make(map[string]field)
	collect(t, nil, fields, map[reflect.Type]bool{})

	i.mu.Lock()
	i.cache[t] = fields
	i.mu.Unlock()
	return fields
}

// collect registers the direct fields of t before descending into embedded
// structs, so a field declared on the outer type shadows a promoted one.
// Embedded struct pointers are followed once per path.
func collect(t reflect.Type, prefix []int, out map[string]field, seen map[reflect.Type]bool) {
	if t.Kind() != reflect.Struct || seen[t] {
		return
	}
	seen[t] = true
	defer delete(seen, t)

	var embedded []reflect.StructField
	for idx := 0; idx < t.NumField(); idx++ {
		sf := t.Field(idx)
		tag := sf.Tag.Get("bun")
		if tag == "-" {
			continue
		}
		if sf.Anonymous && embeddedStruct(sf.Type) != nil {
			embedded = append(embedded, sf)
			continue
		}
		if !sf.IsExported() {
			continue
		}
		kind := kindOf(sf.Type)
		if kind == 0 {
			continue
		}
		column := columnName(sf, tag)
		if _, exists := out[column]; exists {
			continue
		}
		out[column] = field{column: column, index: appendIndex(prefix, sf.Index), kind: kind}
	}
	for _, sf := range embedded {
		collect(embeddedStruct(sf.Type), appendIndex(prefix, sf.Index), out, seen)
	}
}

func embeddedStruct(t reflect.Type) reflect.Type {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	return t
}

func kindOf(t reflect.Type) fieldKind {
	switch t {
	case timePointerType:
		return kindTimePointer
	case bunNullTimeType:
		return kindBunNullTime
	case sqlNullTimeType:
		return kindSQLNullTime
	default:
		return 0
	}
}

func columnName(sf reflect.StructField, tag string) string {
	name, _, _ := strings.Cut(tag, ",")
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return strcase.ToSnake(sf.Name)
}

func appendIndex(prefix, index []int) []int {
	out := make([]int, 0, len(prefix)+len(index))
	out = append(out, prefix...)
	return append(out, index...)
}
