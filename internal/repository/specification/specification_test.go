package specification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(postgres.New(postgres.Config{DSN: "host=localhost dbname=dry"}), &gorm.Config{
		DryRun:                 true,
		DisableAutomaticPing:   true,
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("open dry-run db: %v", err)
	}
	return db
}

type row struct {
	Id string
}

func TestSpecificationsBuildSQL(t *testing.T) {
	db := dryRunDB(t)

	tests := []struct {
		name    string
		specs   []Specification
		want    []string
		notWant []string
	}{
		{"by id", []Specification{ByID{ID: "s1"}}, []string{"id = $1"}, nil},
		{"owner and gem", []Specification{UserOwnedBy{UserID: "u"}, ByGemID{GemID: "g"}}, []string{"user_id = $1", "gem_id = $2"}, nil},
		{"session ordered", []Specification{BySessionID{SessionID: "s"}, OrderBy{Field: "created_at"}}, []string{"session_id = $1", `ORDER BY "created_at"`}, []string{"DESC"}},
		{"newest first page", []Specification{OrderBy{Field: "modified_at", Desc: true}, Pagination{Limit: 5}}, []string{`ORDER BY "modified_at" DESC`, "LIMIT "}, []string{"OFFSET"}},
		{"locked row", []Specification{ByID{ID: "s"}, ForUpdate{}}, []string{"id = $1", "FOR UPDATE"}, nil},
		{"zero pagination", []Specification{Pagination{}}, nil, []string{"LIMIT", "OFFSET"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query := db.Session(&gorm.Session{}).Table("rows")
			for _, spec := range tt.specs {
				query = spec.Apply(query)
			}
			var out []row
			stmt := query.Find(&out).Statement
			sql := stmt.SQL.String()
			for _, fragment := range tt.want {
				assert.Contains(t, sql, fragment)
			}
			for _, fragment := range tt.notWant {
				assert.NotContains(t, sql, fragment)
			}
		})
	}
}
