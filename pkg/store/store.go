// package store implements the JSON-file backed pharmacy database. All
// records are loaded into memory when the store is opened and never written
// back; every query is a linear scan over the loaded slices, which makes the
// store safe for concurrent readers without locking.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned by the by-id lookups when no record matches.
var ErrNotFound = errors.New("record not found")

const (
	usersFile         = "users.json"
	medicationsFile   = "medications.json"
	prescriptionsFile = "prescriptions.json"
)

type User struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"password_hash"`
	FullNameEn   string `json:"full_name_en"`
	FullNameHe   string `json:"full_name_he"`
	Language     string `json:"language"`
}

type Medication struct {
	ID                 string  `json:"id"`
	NameEn             string  `json:"name_en"`
	NameHe             string  `json:"name_he"`
	BrandEn            string  `json:"brand_en"`
	BrandHe            string  `json:"brand_he"`
	ActiveIngredientEn string  `json:"active_ingredient_en"`
	ActiveIngredientHe string  `json:"active_ingredient_he"`
	DescriptionEn      string  `json:"description_en"`
	DescriptionHe      string  `json:"description_he"`
	RequiresRx         bool    `json:"requires_prescription"`
	Price              float64 `json:"price"`
	InStock            bool    `json:"in_stock"`
	StockQuantity      int     `json:"stock_quantity"`
}

type Prescription struct {
	ID           string `json:"id"`
	UserID       string `json:"user_id"`
	MedicationID string `json:"medication_id"`
	Dosage       string `json:"dosage"`
	IssuedAt     string `json:"issued_at"`
	ExpiresAt    string `json:"expires_at"`
	Refills      int    `json:"refills_left"`
	Doctor       string `json:"doctor"`
}

// Store answers lookups over the loaded records. It is read-only after Open.
type Store struct {
	users         []User
	medications   []Medication
	prescriptions []Prescription
}

func loadJSON[T any](dir, name string, out *[]T) error {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			// A missing file means an empty collection.
			return nil
		}
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return nil
}

// Open reads the JSON files from dir.
func Open(dir string) (*Store, error) {
	s := &Store{}
	if err := loadJSON(dir, usersFile, &s.users); err != nil {
		return nil, err
	}
	if err := loadJSON(dir, medicationsFile, &s.medications); err != nil {
		return nil, err
	}
	if err := loadJSON(dir, prescriptionsFile, &s.prescriptions); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) UserByID(id string) (*User, error) {
	for i := range s.users {
		if s.users[i].ID == id {
			u := s.users[i]
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (s *Store) UserByUsername(username string) (*User, error) {
	for i := range s.users {
		if strings.EqualFold(s.users[i].Username, username) {
			u := s.users[i]
			return &u, nil
		}
	}
	return nil, ErrNotFound
}

func (s *Store) MedicationByID(id string) (*Medication, error) {
	for i := range s.medications {
		if s.medications[i].ID == id {
			m := s.medications[i]
			return &m, nil
		}
	}
	return nil, ErrNotFound
}

// MedicationByName matches the English or Hebrew name or brand exactly,
// ignoring case.
func (s *Store) MedicationByName(name string) (*Medication, error) {
	for i := range s.medications {
		m := &s.medications[i]
		if strings.EqualFold(m.NameEn, name) || m.NameHe == name ||
			strings.EqualFold(m.BrandEn, name) || m.BrandHe == name {
			found := *m
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Medication) matches(query, lang string) bool {
	query = strings.ToLower(query)
	en := []string{m.NameEn, m.BrandEn, m.ActiveIngredientEn}
	he := []string{m.NameHe, m.BrandHe, m.ActiveIngredientHe}
	var fields []string
	switch lang {
	case "en":
		fields = en
	case "he":
		fields = he
	default:
		fields = append(en, he...)
	}
	for _, f := range fields {
		if f != "" && strings.Contains(strings.ToLower(f), query) {
			return true
		}
	}
	return false
}

// SearchMedications performs a case-insensitive substring search over the
// name, brand and active ingredient fields. lang may be "en", "he", or empty
// for both. An empty query returns an empty slice, never an error.
func (s *Store) SearchMedications(query, lang string) []Medication {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	var results []Medication
	for i := range s.medications {
		if s.medications[i].matches(query, lang) {
			results = append(results, s.medications[i])
		}
	}
	return results
}

// PrescriptionsByUser returns the prescriptions owned by userID, possibly
// empty.
func (s *Store) PrescriptionsByUser(userID string) []Prescription {
	var results []Prescription
	for i := range s.prescriptions {
		if s.prescriptions[i].UserID == userID {
			results = append(results, s.prescriptions[i])
		}
	}
	return results
}
