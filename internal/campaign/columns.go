package campaign

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Document is a schema-less key/value map persisted as a JSON document.
type Document map[string]any

// Transcript is the ordered list of turns persisted as a JSON array.
type Transcript []Turn

// Outcomes is the ordered per-die results of a roll persisted as a JSON array.
type Outcomes []int

func (d Document) Value() (driver.Value, error) {
	if d == nil {
		return "{}", nil
	}
	return marshalColumn(d)
}

func (d *Document) Scan(src any) error {
	*d = Document{}
	return scanColumn(src, d)
}

func (Document) GormDataType() string { return "json" }

func (Document) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	return jsonColumnType(db)
}

func (t Transcript) Value() (driver.Value, error) {
	if t == nil {
		return "[]", nil
	}
	return marshalColumn(t)
}

func (t *Transcript) Scan(src any) error {
	*t = Transcript{}
	return scanColumn(src, t)
}

func (Transcript) GormDataType() string { return "json" }

func (Transcript) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	return jsonColumnType(db)
}

func (o Outcomes) Value() (driver.Value, error) {
	if o == nil {
		return "[]", nil
	}
	return marshalColumn(o)
}

func (o *Outcomes) Scan(src any) error {
	*o = Outcomes{}
	return scanColumn(src, o)
}

func (Outcomes) GormDataType() string { return "json" }

func (Outcomes) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	// details stays human readable text in every dialect
	return "text"
}

func marshalColumn(v any) (driver.Value, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func scanColumn(src any, dst any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("campaign: unsupported column type %T", src)
	}
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, dst)
}

func jsonColumnType(db *gorm.DB) string {
	switch db.Dialector.Name() {
	case "postgres":
		return "jsonb"
	case "mysql":
		return "json"
	default:
		return "text"
	}
}
