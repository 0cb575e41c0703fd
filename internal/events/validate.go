package events

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/rmonterroso/fieldledger-backend/pkg/errors"
	"github.com/rmonterroso/fieldledger-backend/pkg/enums"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	// Expose decimals to numeric tags (gt, gte) as float64.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// DecodePayload parses raw payload bytes into the typed record for the given
// event kind. Unknown fields are rejected so a payload cannot smuggle data
// the kind does not declare. The switch is exhaustive over the enum.
func DecodePayload(eventType enums.EventType, raw []byte) (any, error) {
	var dest any
	switch eventType {
	case enums.EventMaterialAdded:
		dest = &MaterialAddedPayload{}
	case enums.EventMaterialReturnedWarehouse, enums.EventMaterialReturnedProject:
		dest = &MaterialReturnedPayload{}
	case enums.EventExpenseLogged:
		dest = &ExpenseLoggedPayload{}
	case enums.EventLaborLogged:
		dest = &LaborLoggedPayload{}
	case enums.EventSubcontractorCost:
		dest = &SubcontractorCostPayload{}
	case enums.EventChangeOrderAdded:
		dest = &ChangeOrderPayload{}
	case enums.EventClientInvoiceIssued:
		dest = &ClientInvoicePayload{}
	case enums.EventClientPaymentReceived:
		dest = &ClientPaymentPayload{}
	case enums.EventVendorBillReceived:
		dest = &VendorBillPayload{}
	case enums.EventVendorPaymentMade:
		dest = &VendorPaymentPayload{}
	case enums.EventCashAdvanceIssued:
		dest = &CashAdvancePayload{}
	case enums.EventReimbursementIssued:
		dest = &ReimbursementPayload{}
	case enums.EventCreditPurchaseRecorded:
		dest = &CreditPurchasePayload{}
	case enums.EventClientRefundIssued:
		dest = &ClientRefundPayload{}
	case enums.EventVendorRefundReceived:
		dest = &VendorRefundPayload{}
	case enums.EventProjectStatusChanged:
		dest = &ProjectStatusChangedPayload{}
	case enums.EventEventReversed:
		dest = &EventReversedPayload{}
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown event type %q", eventType))
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid event payload").
			WithDetails(map[string]any{"error": err.Error()})
	}
	return dest, nil
}

// ValidatePayload is the single gate in front of the outbox and the ledger.
// It decodes the payload for its declared kind, runs struct validation, and
// applies the cross-field rules that tags cannot express. Pure: no I/O.
func ValidatePayload(eventType enums.EventType, raw []byte) (any, error) {
	if !eventType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown event type %q", eventType))
	}
	payload, err := DecodePayload(eventType, raw)
	if err != nil {
		return nil, err
	}
	if err := validate.Struct(payload); err != nil {
		return nil, formatValidationErrors(err)
	}
	if err := checkPayloadRules(eventType, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// checkPayloadRules holds the handful of rules that depend on the pairing of
// event kind and payload rather than on a single field.
func checkPayloadRules(eventType enums.EventType, payload any) error {
	switch p := payload.(type) {
	case *MaterialReturnedPayload:
		want := enums.ReturnDestinationWarehouse
		if eventType == enums.EventMaterialReturnedProject {
			want = enums.ReturnDestinationProject
		}
		if p.Destination != want {
			return pkgerrors.New(pkgerrors.CodeValidation, "return destination does not match event type").
				WithDetails(map[string]string{"destination": string(p.Destination)})
		}
	case *ChangeOrderPayload:
		if p.RevenueDelta.IsZero() && p.CostDelta.IsZero() {
			return pkgerrors.New(pkgerrors.CodeValidation, "change order must move revenue or cost").
				WithDetails(map[string]string{"revenue_delta": "zero", "cost_delta": "zero"})
		}
	case *ProjectStatusChangedPayload:
		if p.OldStatus == p.NewStatus {
			return pkgerrors.New(pkgerrors.CodeValidation, "status change must alter the status").
				WithDetails(map[string]string{"new_status": string(p.NewStatus)})
		}
	}
	return nil
}

func formatValidationErrors(err error) *pkgerrors.Error {
	if errs, ok := err.(validator.ValidationErrors); ok {
		details := map[string]string{}
		for _, fieldErr := range errs {
			details[fieldErr.Field()] = validationMessage(fieldErr)
		}
		return pkgerrors.New(pkgerrors.CodeValidation, "event payload validation failed").WithDetails(details)
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "event payload validation failed")
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "is required"
	case "min":
		return fmt.Sprintf("must have at least %s entries", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of %s", fe.Param())
	}
	return "is invalid"
}
