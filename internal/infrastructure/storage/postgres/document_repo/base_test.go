package document_repo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docjournal/internal/domain/ledger"
)

func TestDocumentInsertQuery(t *testing.T) {
	repo := NewDocumentRepo(nil)
	note := "rev B"
	reg := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	sql, args, err := repo.insertQuery(&ledger.Document{
		Numeric:     101,
		RegDate:     reg,
		DocName:     "Act",
		Note:        &note,
		EquipmentID: 7,
		UserID:      "alice",
	}).ToSql()
	require.NoError(t, err)

	assert.Equal(t,
		"INSERT INTO documents (doc_name,equipment_id,note,numeric,reg_date,user_id) VALUES ($1,$2,$3,$4,$5,$6) RETURNING id",
		sql)
	assert.Equal(t, []any{"Act", int64(7), &note, int64(101), reg, "alice"}, args)
}

func TestEquipmentInsertQuerySkipsGenerated(t *testing.T) {
	repo := NewEquipmentRepo(nil)
	factory := "F-1"

	sql, args, err := repo.insertQuery(&ledger.Equipment{
		ID:        99,
		EqType:    "pump",
		FactoryNo: &factory,
		CreatedAt: time.Now(),
	}).ToSql()
	require.NoError(t, err)

	assert.NotContains(t, sql, "created_at,")
	assert.Contains(t, sql, "RETURNING id, created_at")
	assert.NotContains(t, args, int64(99))
	assert.Len(t, args, 7)
}
