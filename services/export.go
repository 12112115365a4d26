package services

import (
	"context"
	"io"

	"alforge/access"
	"alforge/export"
	"alforge/models"
	"alforge/store"
)

// ExportService renders the full requisition list or the whole inventory for managers.
type ExportService struct {
	Store store.LendingStore
}

// Export writes the dataset named like "requisitions.csv" and returns its format.
func (s *ExportService) Export(ctx context.Context, c access.Caller, name string, w io.Writer) (export.Format, error) {
	if err := access.Require(c, models.RoleGestor); err != nil {
		return "", err
	}
	dataset, f, err := export.ParseName(name)
	if err != nil {
		return "", err
	}

	var (
		reqs  []models.Requisition
		items []models.Equipment
	)
	switch dataset {
	case export.Requisitions:
		page, err := s.Store.ListRequisitions(ctx, store.RequisitionQuery{})
		if err != nil {
			return "", err
		}
		reqs = page.Items
	case export.Equipment:
		items, err = s.Store.FindEquipment(ctx, store.EquipmentQuery{})
		if err != nil {
			return "", err
		}
	}
	return f, export.Write(w, f, reqs, items, dataset)
}
