package intake

import (
	"testing"

	"github.com/pharmaguard/pipeline/pkg/common/models"
)

func TestValidateRequiredFields(t *testing.T) {
	v := NewValidator(nil)

	err := v.Validate(SourceClinician, models.SubmissionRequest{PatientIdentifier: "p1"})
	if err == nil || !IsValidationError(err) {
		t.Fatalf("expected validation error for missing drug_name, got %v", err)
	}

	err = v.Validate(SourceClinician, models.SubmissionRequest{DrugName: "aspirin"})
	if err == nil || !IsValidationError(err) {
		t.Fatalf("expected validation error for missing patient_identifier, got %v", err)
	}

	err = v.Validate(SourceClinician, models.SubmissionRequest{DrugName: "aspirin", PatientIdentifier: "p1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateDispensaryRequiresQuantity(t *testing.T) {
	v := NewValidator(nil)

	req := models.SubmissionRequest{DrugName: "aspirin", PatientIdentifier: "p1"}
	if err := v.Validate(SourceDispensary, req); err == nil {
		t.Fatal("expected validation error for missing quantity_dispensed")
	}

	req.QuantityDispensed = 30
	if err := v.Validate(SourceDispensary, req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsUnknownSource(t *testing.T) {
	v := NewValidator(nil)

	err := v.Validate(Source("fax"), models.SubmissionRequest{DrugName: "a", PatientIdentifier: "b"})
	if err == nil || !IsValidationError(err) {
		t.Fatalf("expected validation error for unknown source, got %v", err)
	}
}

func TestValidateAllowedSourceRestriction(t *testing.T) {
	v := NewValidator([]string{"clinician"})

	req := models.SubmissionRequest{DrugName: "a", PatientIdentifier: "b"}
	if err := v.Validate(SourceInstitution, req); err == nil {
		t.Fatal("expected source restriction to reject institution")
	}
	if err := v.Validate(SourceClinician, req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
