package tools

import (
	"context"

	"github.com/amitbl/pharmachat/pkg/identity"
	"github.com/amitbl/pharmachat/pkg/store"
)

type myPrescriptionsRequest struct {
	// Intentionally empty: the owner comes from the identity context, never
	// from model-supplied arguments.
}

type prescriptionView struct {
	ID             string `json:"id"`
	MedicationID   string `json:"medication_id"`
	MedicationName string `json:"medication_name,omitempty"`
	Dosage         string `json:"dosage"`
	IssuedAt       string `json:"issued_at"`
	ExpiresAt      string `json:"expires_at"`
	Refills        int    `json:"refills_left"`
	Doctor         string `json:"doctor"`
}

type myPrescriptionsResponse struct {
	Count         int                `json:"count" jsonschema:"required"`
	Prescriptions []prescriptionView `json:"prescriptions"`
}

func (pt *PharmacyTools) myPrescriptions(ctx context.Context, req myPrescriptionsRequest) (myPrescriptionsResponse, error) {
	userID := identity.FromContext(ctx).UserID()
	prescriptions := pt.store.PrescriptionsByUser(userID)
	views := make([]prescriptionView, 0, len(prescriptions))
	for _, p := range prescriptions {
		v := prescriptionView{
			ID:           p.ID,
			MedicationID: p.MedicationID,
			Dosage:       p.Dosage,
			IssuedAt:     p.IssuedAt,
			ExpiresAt:    p.ExpiresAt,
			Refills:      p.Refills,
			Doctor:       p.Doctor,
		}
		if m, err := pt.store.MedicationByID(p.MedicationID); err == nil {
			v.MedicationName = m.NameEn
		} else if err != store.ErrNotFound {
			return myPrescriptionsResponse{}, err
		}
		views = append(views, v)
	}
	return myPrescriptionsResponse{
		Count:         len(views),
		Prescriptions: views,
	}, nil
}

func (pt *PharmacyTools) myPrescriptionsDef() ToolDefinition {
	return &toolDefinition[myPrescriptionsRequest, myPrescriptionsResponse]{
		name:        "get_my_prescriptions",
		description: "List the prescriptions of the currently signed-in user",
		needsAuth:   true,
		proc:        pt.myPrescriptions,
	}
}
