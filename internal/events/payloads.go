package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rmonterroso/fieldledger-backend/pkg/enums"
)

// MaterialItem is a single line inside an inventory payload.
type MaterialItem struct {
	ItemID   string          `json:"item_id" validate:"required"`
	Name     string          `json:"name,omitempty"`
	Quantity decimal.Decimal `json:"quantity" validate:"required,gt=0"`
	Unit     string          `json:"unit,omitempty"`
	UnitCost decimal.Decimal `json:"unit_cost,omitempty" validate:"omitempty,gte=0"`
}

// ReturnItem is a line inside a MATERIAL_RETURNED payload. Returns carry no
// cost, only what left the project.
type ReturnItem struct {
	ItemID   string          `json:"item_id" validate:"required"`
	Name     string          `json:"name,omitempty"`
	Quantity decimal.Decimal `json:"quantity" validate:"required,gt=0"`
	Unit     string          `json:"unit,omitempty"`
}

// MaterialAddedPayload records materials entering a project. The source
// dictates which companion fields are mandatory: purchases name the vendor
// and how it was paid, warehouse pulls name the warehouse and who released
// the stock, and borrowed stock names the lending project.
type MaterialAddedPayload struct {
	Source          enums.MaterialSource `json:"source" validate:"required,oneof=purchase warehouse borrowed"`
	Items           []MaterialItem       `json:"items" validate:"required,min=1,dive"`
	Vendor          string               `json:"vendor,omitempty" validate:"required_if=Source purchase"`
	PaymentMethod   enums.PaymentMethod  `json:"payment_method,omitempty" validate:"required_if=Source purchase,omitempty,oneof=cash transfer check credit_card debit_card other"`
	ReceiptPhotoURL string               `json:"receipt_photo_url,omitempty"`
	WarehouseID     string               `json:"warehouse_id,omitempty" validate:"required_if=Source warehouse"`
	Issuer          string               `json:"issuer,omitempty" validate:"required_if=Source warehouse"`
	FromProjectID   *uuid.UUID           `json:"from_project_id,omitempty" validate:"required_if=Source borrowed"`
	Notes           string               `json:"notes,omitempty"`
}

// MaterialReturnedPayload records materials leaving a project, either back
// to a warehouse or handed to another project. Both return event kinds share
// this shape; Validate cross-checks that destination agrees with the kind.
type MaterialReturnedPayload struct {
	Items       []ReturnItem            `json:"items" validate:"required,min=1,dive"`
	Destination enums.ReturnDestination `json:"destination" validate:"required,oneof=warehouse project"`
	WarehouseID string                  `json:"warehouse_id,omitempty" validate:"required_if=Destination warehouse"`
	ToProjectID *uuid.UUID              `json:"to_project_id,omitempty" validate:"required_if=Destination project"`
	Notes       string                  `json:"notes,omitempty"`
}

type ExpenseLoggedPayload struct {
	Category        string              `json:"category" validate:"required"`
	Amount          decimal.Decimal     `json:"amount" validate:"required,gt=0"`
	PaymentMethod   enums.PaymentMethod `json:"payment_method" validate:"required,oneof=cash transfer check credit_card debit_card other"`
	Vendor          string              `json:"vendor,omitempty"`
	ReceiptPhotoURL string              `json:"receipt_photo_url,omitempty"`
	Notes           string              `json:"notes,omitempty"`
}

type LaborLoggedPayload struct {
	Hours       decimal.Decimal `json:"hours" validate:"required,gt=0"`
	StartTime   *time.Time      `json:"start_time,omitempty"`
	EndTime     *time.Time      `json:"end_time,omitempty"`
	ManualEntry bool            `json:"manual_entry,omitempty"`
	Notes       string          `json:"notes,omitempty"`
}

type SubcontractorCostPayload struct {
	SubcontractorName string              `json:"subcontractor_name" validate:"required"`
	Amount            decimal.Decimal     `json:"amount" validate:"required,gt=0"`
	PaymentMethod     enums.PaymentMethod `json:"payment_method" validate:"required,oneof=cash transfer check credit_card debit_card other"`
	InvoiceNumber     string              `json:"invoice_number,omitempty"`
	ReceiptPhotoURL   string              `json:"receipt_photo_url,omitempty"`
	Notes             string              `json:"notes,omitempty"`
}

// ChangeOrderPayload adjusts the contract. Either side of the delta may be
// zero, but a change order that moves nothing is rejected by Validate.
type ChangeOrderPayload struct {
	Description  string          `json:"description" validate:"required"`
	RevenueDelta decimal.Decimal `json:"revenue_delta,omitempty"`
	CostDelta    decimal.Decimal `json:"cost_delta,omitempty"`
	ApprovedBy   string          `json:"approved_by,omitempty"`
	Notes        string          `json:"notes,omitempty"`
}

type ClientInvoicePayload struct {
	InvoiceNumber string          `json:"invoice_number" validate:"required"`
	Amount        decimal.Decimal `json:"amount" validate:"required,gt=0"`
	InvoiceDate   *time.Time      `json:"invoice_date,omitempty"`
	Notes         string          `json:"notes,omitempty"`
}

type ClientPaymentPayload struct {
	Amount        decimal.Decimal     `json:"amount" validate:"required,gt=0"`
	PaymentMethod enums.PaymentMethod `json:"payment_method" validate:"required,oneof=cash transfer check credit_card debit_card other"`
	InvoiceID     *uuid.UUID          `json:"invoice_id,omitempty"`
	PaymentDate   *time.Time          `json:"payment_date,omitempty"`
	Notes         string              `json:"notes,omitempty"`
}

type VendorBillPayload struct {
	VendorName string          `json:"vendor_name" validate:"required"`
	BillNumber string          `json:"bill_number,omitempty"`
	Amount     decimal.Decimal `json:"amount" validate:"required,gt=0"`
	BillDate   *time.Time      `json:"bill_date,omitempty"`
	Notes      string          `json:"notes,omitempty"`
}

type VendorPaymentPayload struct {
	Amount        decimal.Decimal     `json:"amount" validate:"required,gt=0"`
	PaymentMethod enums.PaymentMethod `json:"payment_method" validate:"required,oneof=cash transfer check credit_card debit_card other"`
	BillID        *uuid.UUID          `json:"bill_id,omitempty"`
	VendorName    string              `json:"vendor_name,omitempty"`
	PaymentDate   *time.Time          `json:"payment_date,omitempty"`
	Notes         string              `json:"notes,omitempty"`
}

// CashAdvancePayload hands office cash to a field worker. The recipient is
// the user whose cash box grows, not necessarily the creator.
type CashAdvancePayload struct {
	Amount          decimal.Decimal `json:"amount" validate:"required,gt=0"`
	RecipientUserID uuid.UUID       `json:"recipient_user_id" validate:"required"`
	Notes           string          `json:"notes,omitempty"`
}

type ReimbursementPayload struct {
	Amount          decimal.Decimal `json:"amount" validate:"required,gt=0"`
	RecipientUserID uuid.UUID       `json:"recipient_user_id" validate:"required"`
	ExpenseEventID  *uuid.UUID      `json:"expense_event_id,omitempty"`
	Notes           string          `json:"notes,omitempty"`
}

type CreditPurchasePayload struct {
	Vendor      string          `json:"vendor" validate:"required"`
	TotalAmount decimal.Decimal `json:"total_amount" validate:"required,gt=0"`
	Items       []MaterialItem  `json:"items,omitempty" validate:"omitempty,dive"`
	Notes       string          `json:"notes,omitempty"`
}

type ClientRefundPayload struct {
	Amount    decimal.Decimal `json:"amount" validate:"required,gt=0"`
	InvoiceID *uuid.UUID      `json:"invoice_id,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	Notes     string          `json:"notes,omitempty"`
}

type VendorRefundPayload struct {
	Amount decimal.Decimal `json:"amount" validate:"required,gt=0"`
	BillID *uuid.UUID      `json:"bill_id,omitempty"`
	Reason string          `json:"reason,omitempty"`
	Notes  string          `json:"notes,omitempty"`
}

type ProjectStatusChangedPayload struct {
	OldStatus enums.ProjectStatus `json:"old_status" validate:"required,oneof=CREATED SCHEDULED IN_PROGRESS INSTALLED CLOSED CANCELLED"`
	NewStatus enums.ProjectStatus `json:"new_status" validate:"required,oneof=CREATED SCHEDULED IN_PROGRESS INSTALLED CLOSED CANCELLED"`
	Notes     string              `json:"notes,omitempty"`
}

// EventReversedPayload voids a prior event. The original stays in the
// ledger untouched; readers net the pair out.
type EventReversedPayload struct {
	OriginalEventID uuid.UUID `json:"original_event_id" validate:"required"`
	Reason          string    `json:"reason" validate:"required"`
	Notes           string    `json:"notes,omitempty"`
}
