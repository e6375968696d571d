package document_repo

import (
	"context"

	"docjournal/internal/domain/ledger"
	"docjournal/internal/infrastructure/storage/postgres"
)

// EquipmentRepo implements ledger.EquipmentRepository.
type EquipmentRepo struct {
	baseRepo[ledger.Equipment]
}

// NewEquipmentRepo creates an equipment repository.
func NewEquipmentRepo(txm *postgres.TxManager) *EquipmentRepo {
	return &EquipmentRepo{baseRepo: newBaseRepo[ledger.Equipment](txm, "equipment", "equipment", "id", "created_at")}
}

var _ ledger.EquipmentRepository = (*EquipmentRepo)(nil)

func (r *EquipmentRepo) Create(ctx context.Context, e *ledger.Equipment) error {
	return r.insert(ctx, e, &e.ID, &e.CreatedAt)
}

func (r *EquipmentRepo) GetByID(ctx context.Context, id int64) (*ledger.Equipment, error) {
	return r.getByID(ctx, id)
}
