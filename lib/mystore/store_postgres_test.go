package mystore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type dispatchedOrder struct {
	UID       string    `json:"uid"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	Published bool
}

func TestBuildQueryUsesDocumentFieldNames(t *testing.T) {
	s := &postgresStore[dispatchedOrder]{table: "dispatchedOrder"}

	t.Run("Json-tagged field resolves to the key in the stored document", func(t *testing.T) {
		startOfDay := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)

		query, args, err := s.buildQuery([]Filter{
			{Field: "CreatedAt", Compare: ">=", Value: startOfDay},
		}, "CreatedAt")

		assert.NoError(t, err)
		assert.Equal(t, `SELECT doc FROM "dispatchedOrder" WHERE doc->>'createdAt' >= $1 ORDER BY doc->>'createdAt'`, query)
		assert.Equal(t, []any{"2026-08-28T00:00:00Z"}, args)
	})

	t.Run("Untagged field keeps its go name", func(t *testing.T) {
		query, args, err := s.buildQuery([]Filter{
			{Field: "Published", Compare: "=", Value: false},
		}, "")

		assert.NoError(t, err)
		assert.Equal(t, `SELECT doc FROM "dispatchedOrder" WHERE doc->>'Published' = $1`, query)
		assert.Equal(t, []any{"false"}, args)
	})

	t.Run("Multiple filters chain with AND", func(t *testing.T) {
		query, args, err := s.buildQuery([]Filter{
			{Field: "Status", Compare: "=", Value: "pending"},
			{Field: "UID", Compare: ">", Value: "SO20260828001"},
		}, "")

		assert.NoError(t, err)
		assert.Equal(t, `SELECT doc FROM "dispatchedOrder" WHERE doc->>'status' = $1 AND doc->>'uid' > $2`, query)
		assert.Len(t, args, 2)
	})

	t.Run("Unsupported compare operator is rejected", func(t *testing.T) {
		_, _, err := s.buildQuery([]Filter{
			{Field: "Status", Compare: "LIKE", Value: "pend%"},
		}, "")

		assert.Error(t, err)
	})
}
