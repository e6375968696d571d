package document_repo

import (
	"context"

	"docjournal/internal/domain/ledger"
	"docjournal/internal/infrastructure/storage/postgres"
)

// DocumentRepo implements ledger.DocumentRepository.
type DocumentRepo struct {
	baseRepo[ledger.Document]
}

// NewDocumentRepo creates a document repository.
func NewDocumentRepo(txm *postgres.TxManager) *DocumentRepo {
	return &DocumentRepo{baseRepo: newBaseRepo[ledger.Document](txm, "documents", "document", "id")}
}

var _ ledger.DocumentRepository = (*DocumentRepo)(nil)

// Create inserts the document. The filing key and the numeric are unique;
// violations surface as Duplicate errors.
func (r *DocumentRepo) Create(ctx context.Context, d *ledger.Document) error {
	return r.insert(ctx, d, &d.ID)
}

func (r *DocumentRepo) GetByID(ctx context.Context, id int64) (*ledger.Document, error) {
	return r.getByID(ctx, id)
}
