package openapi

import (
	"context"
	"encoding/json"
	"fmt"

	apperrors "github.com/frahmantamala/smm-storefront/internal"
	"github.com/getkin/kin-openapi/openapi3"
)

// Validator checks JSON bodies against component schemas of the API document.
type Validator struct {
	doc *openapi3.T
}

func NewValidator(spec []byte) (*Validator, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(spec)
	if err != nil {
		return nil, fmt.Errorf("failed to load openapi document: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("invalid openapi document: %w", err)
	}
	return &Validator{doc: doc}, nil
}

// ValidateSchema returns a validation AppError when body does not match the
// named component schema.
func (v *Validator) ValidateSchema(name string, body []byte) error {
	if v.doc.Components == nil {
		return fmt.Errorf("schema %s not found", name)
	}
	ref, ok := v.doc.Components.Schemas[name]
	if !ok || ref.Value == nil {
		return fmt.Errorf("schema %s not found", name)
	}

	var value interface{}
	if err := json.Unmarshal(body, &value); err != nil {
		return apperrors.NewValidationError("request body is not valid JSON", apperrors.ErrCodeValidationFailed)
	}

	if err := ref.Value.VisitJSON(value, openapi3.MultiErrors()); err != nil {
		return apperrors.NewValidationError("request body does not match schema", apperrors.ErrCodeValidationFailed).
			WithDetails(toValidationErrors(err))
	}
	return nil
}

func toValidationErrors(err error) apperrors.ValidationErrors {
	var out apperrors.ValidationErrors
	collect(err, &out)
	return out
}

func collect(err error, out *apperrors.ValidationErrors) {
	switch e := err.(type) {
	case openapi3.MultiError:
		for _, inner := range e {
			collect(inner, out)
		}
	case *openapi3.SchemaError:
		field := ""
		if path := e.JSONPointer(); len(path) > 0 {
			field = path[len(path)-1]
		}
		out.Errors = append(out.Errors, apperrors.ValidationError{
			Field:   field,
			Message: e.Reason,
			Code:    string(apperrors.ErrCodeValidationFailed),
		})
	default:
		out.Errors = append(out.Errors, apperrors.ValidationError{
			Message: err.Error(),
			Code:    string(apperrors.ErrCodeValidationFailed),
		})
	}
}
