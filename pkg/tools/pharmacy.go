package tools

import (
	"context"

	"github.com/amitbl/pharmachat/pkg/store"
)

// PharmacyTools exposes the built-in lookups against the pharmacy store.
type PharmacyTools struct {
	store *store.Store
}

func NewPharmacy(s *store.Store) *PharmacyTools {
	return &PharmacyTools{store: s}
}

func (pt *PharmacyTools) ToolDefs(ctx context.Context) ([]ToolDefinition, error) {
	return []ToolDefinition{
		pt.medicationInfoDef(),
		pt.stockAvailabilityDef(),
		pt.searchMedicationsDef(),
		pt.myPrescriptionsDef(),
		pt.userInfoDef(),
	}, nil
}

func (pt *PharmacyTools) Close() error {
	return nil
}

// medicationView is the record shape returned to the model; both language
// variants are included so the model can answer in either.
type medicationView struct {
	ID                 string  `json:"id"`
	NameEn             string  `json:"name_en"`
	NameHe             string  `json:"name_he"`
	BrandEn            string  `json:"brand_en,omitempty"`
	BrandHe            string  `json:"brand_he,omitempty"`
	ActiveIngredientEn string  `json:"active_ingredient_en,omitempty"`
	ActiveIngredientHe string  `json:"active_ingredient_he,omitempty"`
	DescriptionEn      string  `json:"description_en,omitempty"`
	DescriptionHe      string  `json:"description_he,omitempty"`
	RequiresRx         bool    `json:"requires_prescription"`
	Price              float64 `json:"price"`
}

func toMedicationView(m *store.Medication) medicationView {
	return medicationView{
		ID:                 m.ID,
		NameEn:             m.NameEn,
		NameHe:             m.NameHe,
		BrandEn:            m.BrandEn,
		BrandHe:            m.BrandHe,
		ActiveIngredientEn: m.ActiveIngredientEn,
		ActiveIngredientHe: m.ActiveIngredientHe,
		DescriptionEn:      m.DescriptionEn,
		DescriptionHe:      m.DescriptionHe,
		RequiresRx:         m.RequiresRx,
		Price:              m.Price,
	}
}
