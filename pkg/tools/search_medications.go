package tools

import (
	"context"
)

type searchMedicationsRequest struct {
	Query    string `json:"query" jsonschema:"required,description=free text matched against medication names brands and active ingredients"`
	Language string `json:"language,omitempty" jsonschema:"description=restrict matching to one language: en or he,enum=en,enum=he"`
}

type searchMedicationsResponse struct {
	Count   int              `json:"count" jsonschema:"required"`
	Results []medicationView `json:"results"`
}

func (pt *PharmacyTools) searchMedications(ctx context.Context, req searchMedicationsRequest) (searchMedicationsResponse, error) {
	// An empty query yields an empty result, never an error.
	matches := pt.store.SearchMedications(req.Query, req.Language)
	results := make([]medicationView, 0, len(matches))
	for i := range matches {
		results = append(results, toMedicationView(&matches[i]))
	}
	return searchMedicationsResponse{
		Count:   len(results),
		Results: results,
	}, nil
}

func (pt *PharmacyTools) searchMedicationsDef() ToolDefinition {
	return &toolDefinition[searchMedicationsRequest, searchMedicationsResponse]{
		name:        "search_medications",
		description: "Search medications by free text over names, brands and active ingredients, optionally limited to English or Hebrew",
		proc:        pt.searchMedications,
	}
}
