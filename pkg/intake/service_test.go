package intake

import (
	"testing"

	"github.com/pharmaguard/pipeline/pkg/common/models"
)

func TestParseDateAcceptsISO(t *testing.T) {
	d, err := parseDate("2026-08-20", "event_date")
	if err != nil || d == nil {
		t.Fatalf("expected date-only parse to succeed, got %v", err)
	}
	if d.Year() != 2026 || d.Month() != 8 || d.Day() != 20 {
		t.Fatalf("unexpected date %v", d)
	}

	d, err = parseDate("2026-08-20T10:30:00Z", "event_date")
	if err != nil || d == nil {
		t.Fatalf("expected RFC3339 parse to succeed, got %v", err)
	}

	d, err = parseDate("", "event_date")
	if err != nil || d != nil {
		t.Fatalf("empty date must be nil without error, got %v/%v", d, err)
	}
}

func TestParseDateRejectsGarbage(t *testing.T) {
	_, err := parseDate("next tuesday", "event_date")
	if err == nil || !IsValidationError(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRawPayloadStripsPatientIdentifier(t *testing.T) {
	payload := rawPayload(models.SubmissionRequest{
		DrugName:          "aspirin",
		PatientIdentifier: "patient-42",
		ObservedEvents:    "rash",
	})

	if _, ok := payload["patient_identifier"]; ok {
		t.Fatal("raw patient identifier must not be stored")
	}
	if payload["drug_name"] != "aspirin" {
		t.Fatalf("expected drug_name preserved, got %v", payload["drug_name"])
	}
}
