package model

import (
	"database/sql/driver"

	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Vector is an embedding column. On postgres it maps to the pgvector type,
// elsewhere it is stored as the same "[1,2,3]" text literal.
type Vector []float32

func (v Vector) Value() (driver.Value, error) {
	return pgvector.NewVector(v).Value()
}

func (v *Vector) Scan(src interface{}) error {
	if src == nil {
		*v = nil
		return nil
	}
	var pv pgvector.Vector
	if err := pv.Scan(src); err != nil {
		return err
	}
	*v = pv.Slice()
	return nil
}

func (Vector) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	switch db.Dialector.Name() {
	case "postgres":
		return "vector"
	case "mysql":
		return "longtext"
	default:
		return "text"
	}
}

// AllModels lists every table in migration order.
func AllModels() []interface{} {
	return []interface{}{
		&Session{},
		&Document{},
		&DocumentChunk{},
		&Conversation{},
		&Message{},
	}
}
