package entity

import (
	"database/sql/driver"
	"encoding/json"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/masomodb/core"
)

// Entity is any record persisted in the remote store.
type Entity interface {
	Kind() Kind
	GetBase() *Base
}

// Profile is a role-specific record linked to a User account.
type Profile interface {
	Entity
	SetUserID(id string)
}

// Base holds the identifier and audit fields shared by every entity.
type Base struct {
	ID        string    `json:"id" db:"id" validate:"required,uuid4"`
	CreatedAt time.Time `json:"created_at" db:"created_at" validate:"required"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at" validate:"required,gtefield=CreatedAt"`
	CreatedBy string    `json:"created_by" db:"created_by" validate:"max=64"`
	UpdatedBy string    `json:"updated_by" db:"updated_by" validate:"max=64"`
}

func NewBase(actor string, now time.Time) Base {
	now = now.UTC()
	return Base{
		ID:        uuid.NewString(),
		CreatedAt: now,
		UpdatedAt: now,
		CreatedBy: actor,
		UpdatedBy: actor,
	}
}

func (b *Base) GetBase() *Base { return b }

// Touch stamps an update.
func (b *Base) Touch(actor string, now time.Time) {
	b.UpdatedAt = now.UTC()
	b.UpdatedBy = actor
}

// StringList is stored as a JSON array column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StringList) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	case StringList:
		*l = append(StringList(nil), v...)
		return nil
	case []string:
		*l = append(StringList(nil), v...)
		return nil
	case []interface{}:
		list := make(StringList, 0, len(v))
		for _, item := range v {
			str, ok := item.(string)
			if !ok {
				return errors.Errorf("cannot scan %T into StringList", item)
			}
			list = append(list, str)
		}
		*l = list
		return nil
	default:
		return errors.Errorf("cannot scan %T into StringList", src)
	}
	return json.Unmarshal(data, (*[]string)(l))
}

func (l StringList) Contains(s string) bool {
	for _, item := range l {
		if item == s {
			return true
		}
	}
	return false
}

// Columns lists the `db` column names of an entity, embedded Base first.
func Columns(e Entity) []string {
	cols := make([]string, 0, 16)
	walkColumns(reflect.Indirect(reflect.ValueOf(e)), func(col string, _ reflect.Value) {
		cols = append(cols, col)
	})
	return cols
}

// ToRow copies the `db` columns of an entity into a Row.
func ToRow(e Entity) core.Row {
	row := make(core.Row)
	walkColumns(reflect.Indirect(reflect.ValueOf(e)), func(col string, val reflect.Value) {
		row[col] = val.Interface()
	})
	return row
}

func walkColumns(v reflect.Value, fn func(col string, val reflect.Value)) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag := strings.SplitN(sf.Tag.Get("db"), ",", 2)[0]
		if sf.Anonymous && sf.Type.Kind() == reflect.Struct && tag == "" {
			walkColumns(v.Field(i), fn)
			continue
		}
		if tag == "" || tag == "-" || sf.PkgPath != "" {
			continue
		}
		fn(tag, v.Field(i))
	}
}
