package models

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"github.com/lumenpictures/budget_backend/config"
)

// The store is the one place record lookups, creates and updates go through.
// It never propagates database errors to callers: every failure is logged and
// surfaced as "no result", so a broken row or a flaky connection degrades one
// record instead of aborting a batch.

type MatchKind int

const (
	MatchNone MatchKind = iota
	MatchOne
	MatchMany
)

// Match is the result of a natural-key search. Callers must branch on Kind:
// a natural key that resolves to many rows is a data problem the caller has
// to decide about, not something the store papers over.
type Match[T any] struct {
	Kind    MatchKind
	Record  *T
	Records []*T
}

// First returns the single record for MatchOne, or the first of many.
func (m Match[T]) First() *T {
	switch m.Kind {
	case MatchOne:
		return m.Record
	case MatchMany:
		if len(m.Records) > 0 {
			return m.Records[0]
		}
	}
	return nil
}

func (m Match[T]) All() []*T {
	switch m.Kind {
	case MatchOne:
		return []*T{m.Record}
	case MatchMany:
		return m.Records
	}
	return nil
}

type Filter struct {
	Column string
	Value  interface{}
}

var storeSchemaCache = &sync.Map{}

func parseModelSchema[T any](tx *gorm.DB) (*schema.Schema, error) {
	var model T
	return schema.Parse(&model, storeSchemaCache, tx.NamingStrategy)
}

// applyFilters validates every filter column against the model schema before
// interpolating it into SQL. Unknown columns are a caller bug; they fail the
// whole lookup rather than silently matching everything.
func applyFilters[T any](tx *gorm.DB, filters []Filter) (*gorm.DB, error) {
	sch, err := parseModelSchema[T](tx)
	if err != nil {
		return nil, err
	}
	for _, f := range filters {
		field := sch.LookUpField(f.Column)
		if field == nil {
			return nil, fmt.Errorf("unknown column %q for model %s", f.Column, sch.Name)
		}
		rv := reflect.ValueOf(f.Value)
		if f.Value != nil && (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) {
			tx = tx.Where(fmt.Sprintf("%s IN ?", field.DBName), f.Value)
		} else {
			tx = tx.Where(fmt.Sprintf("%s = ?", field.DBName), f.Value)
		}
	}
	return tx, nil
}

// Search looks records up by column filters and reports whether the filters
// resolved to zero, one or many rows.
func Search[T any](ctx context.Context, tx *gorm.DB, filters ...Filter) Match[T] {
	logger := config.GetLogger()

	var model T
	q, err := applyFilters[T](tx.WithContext(ctx).Model(&model), filters)
	if err != nil {
		config.LogError(logger, "models", "Search", "invalid filters", filters, err)
		return Match[T]{Kind: MatchNone}
	}

	var records []*T
	if err := q.Find(&records).Error; err != nil {
		config.LogError(logger, "models", "Search", "query failed", filters, err)
		return Match[T]{Kind: MatchNone}
	}

	switch len(records) {
	case 0:
		return Match[T]{Kind: MatchNone}
	case 1:
		return Match[T]{Kind: MatchOne, Record: records[0]}
	default:
		return Match[T]{Kind: MatchMany, Records: records}
	}
}

// isDuplicateKeyErr reports whether err is a MySQL unique-constraint
// violation (error 1062).
func isDuplicateKeyErr(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

// Create inserts record. When the insert loses a race on a unique key and a
// uniqueLookup is given, the row that won is fetched and returned instead, so
// concurrent creators converge on the same record. Returns nil on any other
// failure.
func Create[T any](ctx context.Context, tx *gorm.DB, record *T, uniqueLookup ...Filter) *T {
	logger := config.GetLogger()

	err := tx.WithContext(ctx).Create(record).Error
	if err == nil {
		return record
	}

	if isDuplicateKeyErr(err) && len(uniqueLookup) > 0 {
		switch match := Search[T](ctx, tx, uniqueLookup...); match.Kind {
		case MatchOne:
			return match.Record
		case MatchMany:
			logger.WithField("lookup", uniqueLookup).
				Warn("unique lookup resolved to many rows after duplicate-key insert; using first")
			return match.Records[0]
		}
	}

	config.LogError(logger, "models", "Create", "insert failed", record, err)
	return nil
}

// UpdateFields applies a column->value map to the record with the given id
// and returns the refreshed row. A duplicate-key violation with a
// uniqueLookup present returns the record already occupying the key. Returns
// nil on failure.
func UpdateFields[T any](ctx context.Context, tx *gorm.DB, id int, fields map[string]interface{}, uniqueLookup ...Filter) *T {
	logger := config.GetLogger()

	var model T
	err := tx.WithContext(ctx).Model(&model).Where("id = ?", id).Updates(fields).Error
	if err != nil {
		if isDuplicateKeyErr(err) && len(uniqueLookup) > 0 {
			if existing := Search[T](ctx, tx, uniqueLookup...).First(); existing != nil {
				return existing
			}
		}
		config.LogError(logger, "models", "UpdateFields", "update failed", map[string]interface{}{"id": id, "fields": fields}, err)
		return nil
	}

	return Search[T](ctx, tx, Filter{Column: "id", Value: id}).First()
}

// HasChanges reports whether writing the candidate values would change the
// stored record. The record is located by id when id > 0, otherwise by the
// lookup filters. A record that cannot be found counts as changed, so the
// caller falls through to a write.
//
// The state column is compared case-insensitively; everything else is
// compared loosely enough to survive decimal scale and driver type
// differences.
func HasChanges[T any](ctx context.Context, tx *gorm.DB, id int, lookup []Filter, candidate map[string]interface{}) bool {
	logger := config.GetLogger()

	var match Match[T]
	if id > 0 {
		match = Search[T](ctx, tx, Filter{Column: "id", Value: id})
	} else {
		match = Search[T](ctx, tx, lookup...)
	}
	if match.Kind != MatchOne {
		return true
	}

	sch, err := parseModelSchema[T](tx)
	if err != nil {
		config.LogError(logger, "models", "HasChanges", "schema parse failed", nil, err)
		return true
	}

	rv := reflect.ValueOf(match.Record)
	for column, want := range candidate {
		field := sch.LookUpField(column)
		if field == nil {
			logger.WithField("column", column).Warn("has-changes candidate names an unknown column; ignoring")
			continue
		}
		current, _ := field.ValueOf(ctx, rv)

		if column == "state" {
			if NormalizeState(fmt.Sprint(current)) != NormalizeState(fmt.Sprint(want)) {
				return true
			}
			continue
		}
		if !looseEqual(current, want) {
			return true
		}
	}
	return false
}

func looseEqual(current, candidate interface{}) bool {
	if current == nil || candidate == nil {
		return isNilish(current) && isNilish(candidate)
	}
	if cd, ok := toDecimal(current); ok {
		if wd, ok2 := toDecimal(candidate); ok2 {
			return cd.Equal(wd)
		}
	}
	if ct, ok := toTime(current); ok {
		if wt, ok2 := toTime(candidate); ok2 {
			return ct.Equal(wt)
		}
	}
	if reflect.DeepEqual(current, candidate) {
		return true
	}
	return fmt.Sprint(current) == fmt.Sprint(candidate)
}

func isNilish(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map:
		return rv.IsNil()
	}
	return false
}

func toDecimal(v interface{}) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, true
	case *decimal.Decimal:
		if x == nil {
			return decimal.Decimal{}, false
		}
		return *x, true
	case float64:
		return decimal.NewFromFloat(x), true
	case float32:
		return decimal.NewFromFloat32(x), true
	case int:
		return decimal.NewFromInt(int64(x)), true
	case int64:
		return decimal.NewFromInt(x), true
	}
	return decimal.Decimal{}, false
}

func toTime(v interface{}) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case *time.Time:
		if x == nil {
			return time.Time{}, false
		}
		return *x, true
	}
	return time.Time{}, false
}
