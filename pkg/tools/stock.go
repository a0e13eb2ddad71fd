package tools

import (
	"context"
	"errors"

	"github.com/amitbl/pharmachat/pkg/store"
)

type stockAvailabilityRequest struct {
	MedicationName string `json:"medication_name" jsonschema:"required,description=the medication or brand name in English or Hebrew"`
}

type stockAvailabilityResponse struct {
	Found          bool   `json:"found" jsonschema:"required"`
	MedicationID   string `json:"medication_id,omitempty"`
	MedicationName string `json:"medication_name,omitempty"`
	InStock        bool   `json:"in_stock"`
	StockQuantity  int    `json:"stock_quantity"`
	RequiresRx     bool   `json:"requires_prescription"`
}

func (pt *PharmacyTools) stockAvailability(ctx context.Context, req stockAvailabilityRequest) (stockAvailabilityResponse, error) {
	if req.MedicationName == "" {
		return stockAvailabilityResponse{}, &ToolError{errors.New("medication_name must be specified")}
	}
	m, err := pt.store.MedicationByName(req.MedicationName)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return stockAvailabilityResponse{Found: false}, nil
		}
		return stockAvailabilityResponse{}, err
	}
	return stockAvailabilityResponse{
		Found:          true,
		MedicationID:   m.ID,
		MedicationName: m.NameEn,
		InStock:        m.InStock,
		StockQuantity:  m.StockQuantity,
		RequiresRx:     m.RequiresRx,
	}, nil
}

func (pt *PharmacyTools) stockAvailabilityDef() ToolDefinition {
	return &toolDefinition[stockAvailabilityRequest, stockAvailabilityResponse]{
		name:        "check_stock_availability",
		description: "Check whether a medication is currently in stock and how many units are available",
		proc:        pt.stockAvailability,
	}
}
