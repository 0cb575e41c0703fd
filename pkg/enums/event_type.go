package enums

import "fmt"

// EventType maps to the event_type_enum enum in Postgres. The set is closed:
// every consumer (validator, duplicate keys, balance deltas) switches over it
// exhaustively.
type EventType string

const (
	EventMaterialAdded             EventType = "MATERIAL_ADDED"
	EventMaterialReturnedWarehouse EventType = "MATERIAL_RETURNED_WAREHOUSE"
	EventMaterialReturnedProject   EventType = "MATERIAL_RETURNED_PROJECT"
	EventExpenseLogged             EventType = "EXPENSE_LOGGED"
	EventLaborLogged               EventType = "LABOR_LOGGED"
	EventSubcontractorCost         EventType = "SUBCONTRACTOR_COST"
	EventChangeOrderAdded          EventType = "CHANGE_ORDER_ADDED"
	EventClientInvoiceIssued       EventType = "CLIENT_INVOICE_ISSUED"
	EventClientPaymentReceived     EventType = "CLIENT_PAYMENT_RECEIVED"
	EventVendorBillReceived        EventType = "VENDOR_BILL_RECEIVED"
	EventVendorPaymentMade         EventType = "VENDOR_PAYMENT_MADE"
	EventCashAdvanceIssued         EventType = "CASH_ADVANCE_ISSUED"
	EventReimbursementIssued       EventType = "REIMBURSEMENT_ISSUED"
	EventCreditPurchaseRecorded    EventType = "CREDIT_PURCHASE_RECORDED"
	EventClientRefundIssued        EventType = "CLIENT_REFUND_ISSUED"
	EventVendorRefundReceived      EventType = "VENDOR_REFUND_RECEIVED"
	EventProjectStatusChanged      EventType = "PROJECT_STATUS_CHANGED"
	EventEventReversed             EventType = "EVENT_REVERSED"
)

var validEventTypes = []EventType{
	EventMaterialAdded,
	EventMaterialReturnedWarehouse,
	EventMaterialReturnedProject,
	EventExpenseLogged,
	EventLaborLogged,
	EventSubcontractorCost,
	EventChangeOrderAdded,
	EventClientInvoiceIssued,
	EventClientPaymentReceived,
	EventVendorBillReceived,
	EventVendorPaymentMade,
	EventCashAdvanceIssued,
	EventReimbursementIssued,
	EventCreditPurchaseRecorded,
	EventClientRefundIssued,
	EventVendorRefundReceived,
	EventProjectStatusChanged,
	EventEventReversed,
}

// IsValid reports whether the value matches the canonical event type enum.
func (t EventType) IsValid() bool {
	for _, candidate := range validEventTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// IsInventory reports whether the event type carries material item lines,
// which changes how duplicate-detection keys are built.
func (t EventType) IsInventory() bool {
	switch t {
	case EventMaterialAdded, EventMaterialReturnedWarehouse, EventMaterialReturnedProject:
		return true
	}
	return false
}

// ParseEventType converts raw input into EventType.
func ParseEventType(value string) (EventType, error) {
	for _, candidate := range validEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

// EventTypes returns the closed set of event kinds in declaration order.
func EventTypes() []EventType {
	out := make([]EventType, len(validEventTypes))
	copy(out, validEventTypes)
	return out
}
