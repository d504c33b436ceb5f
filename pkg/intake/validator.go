package intake

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pharmaguard/pipeline/pkg/common/models"
)

var (
	errInvalidSource   = errors.New("invalid source")
	errMissingDrug     = errors.New("drug_name is required")
	errMissingPatient  = errors.New("patient_identifier is required")
	errMissingQuantity = errors.New("quantity_dispensed is required for dispensary submissions")
)

type ValidationError struct {
	reason error
}

func (e ValidationError) Error() string {
	return e.reason.Error()
}

func (e ValidationError) Unwrap() error {
	return e.reason
}

func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

type Validator struct {
	allowedSources map[Source]struct{}
}

// NewValidator restricts accepted sources; an empty list allows every
// known source.
func NewValidator(sources []string) *Validator {
	vs := make(map[Source]struct{})
	for _, src := range sources {
		if trimmed := strings.TrimSpace(strings.ToLower(src)); trimmed != "" {
			vs[Source(trimmed)] = struct{}{}
		}
	}
	return &Validator{allowedSources: vs}
}

// Validate runs before any write so a rejected submission leaves no
// trace beyond the request log.
func (v *Validator) Validate(source Source, req models.SubmissionRequest) error {
	if v == nil {
		return ValidationError{reason: errors.New("validator not initialised")}
	}

	if !source.Valid() {
		return ValidationError{reason: fmt.Errorf("source '%s': %w", source, errInvalidSource)}
	}
	if len(v.allowedSources) > 0 {
		if _, ok := v.allowedSources[source]; !ok {
			return ValidationError{reason: fmt.Errorf("source '%s' not allowed: %w", source, errInvalidSource)}
		}
	}

	if strings.TrimSpace(req.DrugName) == "" {
		return ValidationError{reason: errMissingDrug}
	}
	if strings.TrimSpace(req.PatientIdentifier) == "" {
		return ValidationError{reason: errMissingPatient}
	}
	if source == SourceDispensary && req.QuantityDispensed <= 0 {
		return ValidationError{reason: errMissingQuantity}
	}

	return nil
}
