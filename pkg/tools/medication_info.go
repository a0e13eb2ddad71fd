package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/amitbl/pharmachat/pkg/store"
)

type medicationInfoRequest struct {
	MedicationID   string `json:"medication_id,omitempty" jsonschema:"description=the medication id to look up"`
	MedicationName string `json:"medication_name,omitempty" jsonschema:"description=the medication or brand name in English or Hebrew"`
}

type medicationInfoResponse struct {
	Found      bool            `json:"found" jsonschema:"required"`
	Medication *medicationView `json:"medication,omitempty"`
}

func (pt *PharmacyTools) medicationInfo(ctx context.Context, req medicationInfoRequest) (medicationInfoResponse, error) {
	logger := getLogger(ctx)
	var m *store.Medication
	var err error
	switch {
	case req.MedicationID != "":
		m, err = pt.store.MedicationByID(req.MedicationID)
	case req.MedicationName != "":
		m, err = pt.store.MedicationByName(req.MedicationName)
	default:
		return medicationInfoResponse{}, &ToolError{errors.New("either medication_id or medication_name must be specified")}
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Not found is a valid answer, not a failure.
			return medicationInfoResponse{Found: false}, nil
		}
		logger.Error("medication lookup failed", "error", err)
		return medicationInfoResponse{}, fmt.Errorf("medication lookup failed: %w", err)
	}
	view := toMedicationView(m)
	return medicationInfoResponse{Found: true, Medication: &view}, nil
}

func (pt *PharmacyTools) medicationInfoDef() ToolDefinition {
	return &toolDefinition[medicationInfoRequest, medicationInfoResponse]{
		name:        "get_medication_info",
		description: "Get the details of a medication by its id or by its English or Hebrew name",
		proc:        pt.medicationInfo,
	}
}
