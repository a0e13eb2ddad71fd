package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/amitbl/pharmachat/pkg/identity"
	"github.com/amitbl/pharmachat/pkg/store"
)

func writeFixture(t *testing.T, dir, name string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal %s: %v", name, err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func fixtureStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	writeFixture(t, dir, "users.json", []store.User{
		{ID: "user-1", Username: "dana", FullNameEn: "Dana Levi", FullNameHe: "דנה לוי", Language: "he"},
	})
	writeFixture(t, dir, "medications.json", []store.Medication{
		{
			ID: "med-1", NameEn: "Paracetamol", NameHe: "פרצטמול",
			BrandEn: "Tylenol", BrandHe: "אקמול",
			ActiveIngredientEn: "Paracetamol", ActiveIngredientHe: "פרצטמול",
			Price: 24.9, InStock: true, StockQuantity: 42,
		},
		{
			ID: "med-2", NameEn: "Amoxicillin", NameHe: "אמוקסיצילין",
			RequiresRx: true, Price: 58, InStock: false,
		},
	})
	writeFixture(t, dir, "prescriptions.json", []store.Prescription{
		{ID: "rx-1", UserID: "user-1", MedicationID: "med-2", Dosage: "500mg x3/day", Refills: 2, Doctor: "Dr. Mor"},
	})
	s, err := store.Open(dir)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	return s
}

func pharmacyRunner(t *testing.T) *Runner {
	t.Helper()
	pt := NewPharmacy(fixtureStore(t))
	defs, err := pt.ToolDefs(t.Context())
	if err != nil {
		t.Fatalf("ToolDefs: %v", err)
	}
	if len(defs) != 5 {
		t.Fatalf("got %d tool definitions, want 5", len(defs))
	}
	r, err := NewRunner(defs)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	return r
}

func authedCtx(t *testing.T) context.Context {
	return identity.With(t.Context(), identity.Context{
		identity.FieldUserID:   "user-1",
		identity.FieldUsername: "dana",
	})
}

func TestMedicationInfo(t *testing.T) {
	r := pharmacyRunner(t)

	for _, tc := range []struct {
		name string
		args map[string]any
	}{
		{"by id", map[string]any{"medication_id": "med-1"}},
		{"by english brand", map[string]any{"medication_name": "tylenol"}},
		{"by hebrew brand", map[string]any{"medication_name": "אקמול"}},
	} {
		exec := r.Dispatch(t.Context(), "get_medication_info", tc.args)
		if !exec.Success {
			t.Fatalf("%s: dispatch failed: %s", tc.name, exec.Err)
		}
		if exec.Result["found"] != true {
			t.Errorf("%s: result = %v", tc.name, exec.Result)
		}
		med, _ := exec.Result["medication"].(map[string]any)
		if med["name_en"] != "Paracetamol" {
			t.Errorf("%s: medication = %v", tc.name, med)
		}
	}
}

func TestMedicationInfoNotFound(t *testing.T) {
	r := pharmacyRunner(t)
	exec := r.Dispatch(t.Context(), "get_medication_info", map[string]any{"medication_name": "Nonexistol"})
	if !exec.Success {
		t.Fatalf("not-found must be a successful answer, got: %s", exec.Err)
	}
	if exec.Result["found"] != false {
		t.Errorf("result = %v", exec.Result)
	}
}

func TestMedicationInfoNoArguments(t *testing.T) {
	r := pharmacyRunner(t)
	exec := r.Dispatch(t.Context(), "get_medication_info", map[string]any{})
	if exec.Success {
		t.Fatal("expected failure when neither id nor name is given")
	}
}

func TestStockAvailability(t *testing.T) {
	r := pharmacyRunner(t)
	exec := r.Dispatch(t.Context(), "check_stock_availability", map[string]any{"medication_name": "Tylenol"})
	if !exec.Success {
		t.Fatalf("dispatch failed: %s", exec.Err)
	}
	if exec.Result["in_stock"] != true {
		t.Errorf("result = %v", exec.Result)
	}
	if got := exec.Result["stock_quantity"]; got != float64(42) {
		t.Errorf("stock_quantity = %v", got)
	}

	exec = r.Dispatch(t.Context(), "check_stock_availability", map[string]any{"medication_name": "Amoxicillin"})
	if !exec.Success {
		t.Fatalf("dispatch failed: %s", exec.Err)
	}
	if exec.Result["in_stock"] != false || exec.Result["requires_prescription"] != true {
		t.Errorf("result = %v", exec.Result)
	}
}

func TestSearchMedications(t *testing.T) {
	r := pharmacyRunner(t)

	exec := r.Dispatch(t.Context(), "search_medications", map[string]any{"query": "parac", "language": "en"})
	if !exec.Success {
		t.Fatalf("dispatch failed: %s", exec.Err)
	}
	if exec.Result["count"] != float64(1) {
		t.Errorf("count = %v", exec.Result["count"])
	}

	exec = r.Dispatch(t.Context(), "search_medications", map[string]any{"query": "אקמול"})
	if !exec.Success || exec.Result["count"] != float64(1) {
		t.Errorf("hebrew search result = %v (err %s)", exec.Result, exec.Err)
	}

	exec = r.Dispatch(t.Context(), "search_medications", map[string]any{"query": "  "})
	if !exec.Success {
		t.Fatalf("empty query must succeed, got: %s", exec.Err)
	}
	if exec.Result["count"] != float64(0) {
		t.Errorf("empty query count = %v", exec.Result["count"])
	}
}

func TestMyPrescriptionsRequiresAuth(t *testing.T) {
	r := pharmacyRunner(t)
	exec := r.Dispatch(t.Context(), "get_my_prescriptions", nil)
	if exec.Success {
		t.Fatal("anonymous prescription lookup succeeded")
	}
}

func TestMyPrescriptions(t *testing.T) {
	r := pharmacyRunner(t)
	exec := r.Dispatch(authedCtx(t), "get_my_prescriptions", nil)
	if !exec.Success {
		t.Fatalf("dispatch failed: %s", exec.Err)
	}
	if exec.Result["count"] != float64(1) {
		t.Fatalf("count = %v", exec.Result["count"])
	}
	list, _ := exec.Result["prescriptions"].([]any)
	rx, _ := list[0].(map[string]any)
	if rx["medication_name"] != "Amoxicillin" {
		t.Errorf("prescription view = %v, want the medication name joined in", rx)
	}
}

func TestUserInfo(t *testing.T) {
	r := pharmacyRunner(t)

	exec := r.Dispatch(t.Context(), "get_user_info", nil)
	if exec.Success {
		t.Fatal("anonymous profile lookup succeeded")
	}

	exec = r.Dispatch(authedCtx(t), "get_user_info", nil)
	if !exec.Success {
		t.Fatalf("dispatch failed: %s", exec.Err)
	}
	if exec.Result["full_name_he"] != "דנה לוי" {
		t.Errorf("result = %v", exec.Result)
	}
}
