package emission

import (
	"time"

	ierr "github.com/giropos/fiscal/internal/errors"
	"github.com/giropos/fiscal/internal/types"
	"github.com/shopspring/decimal"
)

// Emitter is the identity of the issuing establishment
type Emitter struct {
	// The tax_id is the 14-digit federal registration of the establishment
	TaxID string `json:"tax_id"`
	// The state_tax_id is the state-level registration number
	StateTaxID string `json:"state_tax_id"`
	// Legal name of the establishment
	Name string `json:"name"`
	// Trade name shown on receipts (optional)
	TradeName string `json:"trade_name,omitempty"`
	Address   string `json:"address"`
	City      string `json:"city"`
	// The city_code is the 7-digit national city registry code
	CityCode string `json:"city_code"`
	// Two-letter jurisdiction abbreviation
	Jurisdiction string `json:"jurisdiction"`
	PostalCode   string `json:"postal_code"`
	Phone        string `json:"phone,omitempty"`
}

// Recipient is the optional identified consumer
type Recipient struct {
	TaxID string `json:"tax_id"`
	Name  string `json:"name"`
}

// LineItem is one sold product on the receipt. Tax classification
// codes are opaque inputs already computed by the caller.
type LineItem struct {
	Number      int             `json:"number"`
	Code        string          `json:"code"`
	EAN         string          `json:"ean,omitempty"`
	Description string          `json:"description"`
	NCM         string          `json:"ncm"`
	CFOP        string          `json:"cfop"`
	Unit        string          `json:"unit"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitValue   decimal.Decimal `json:"unit_value"`
	TotalValue  decimal.Decimal `json:"total_value"`

	TaxOrigin  string `json:"tax_origin"`
	ICMSCode   string `json:"icms_code"`
	PISCode    string `json:"pis_code"`
	COFINSCode string `json:"cofins_code"`
}

// Request is one sale submitted to the emission pipeline. It is
// immutable once submitted; the orchestrator never mutates it.
type Request struct {
	ID     string `json:"id"`
	SaleID string `json:"sale_id,omitempty"`

	Emitter   Emitter    `json:"emitter"`
	Recipient *Recipient `json:"recipient,omitempty"`
	Items     []LineItem `json:"items"`

	TotalItems    decimal.Decimal `json:"total_items"`
	TotalDiscount decimal.Decimal `json:"total_discount"`

	PaymentMethod types.PaymentMethod `json:"payment_method"`
	PaymentValue  decimal.Decimal     `json:"payment_value"`

	Series      int               `json:"series"`
	Environment types.Environment `json:"environment"`
}

// TotalNote returns the receipt grand total
func (r *Request) TotalNote() decimal.Decimal {
	return r.TotalItems.Sub(r.TotalDiscount)
}

// Validate validates the emission request
func (r *Request) Validate() error {
	if len(r.Emitter.TaxID) != 14 {
		return ierr.NewError("invalid emitter tax id").
			WithHint("Emitter tax ID must have 14 digits").
			Mark(ierr.ErrValidation)
	}
	if !types.IsKnownJurisdiction(r.Emitter.Jurisdiction) {
		return ierr.NewError("invalid jurisdiction").
			WithHintf("Unknown jurisdiction %q", r.Emitter.Jurisdiction).
			Mark(ierr.ErrValidation)
	}
	if len(r.Items) == 0 {
		return ierr.NewError("no line items").
			WithHint("An emission requires at least one line item").
			Mark(ierr.ErrValidation)
	}
	for _, item := range r.Items {
		if item.Code == "" || item.Description == "" {
			return ierr.NewError("invalid line item").
				WithHintf("Line item %d is missing code or description", item.Number).
				Mark(ierr.ErrValidation)
		}
		if item.Quantity.IsZero() || item.Quantity.IsNegative() {
			return ierr.NewError("invalid line item quantity").
				WithHintf("Line item %d quantity must be greater than 0", item.Number).
				Mark(ierr.ErrValidation)
		}
		if item.TotalValue.IsNegative() {
			return ierr.NewError("invalid line item total").
				WithHintf("Line item %d total must not be negative", item.Number).
				Mark(ierr.ErrValidation)
		}
	}
	if r.TotalDiscount.IsNegative() {
		return ierr.NewError("invalid discount").
			WithHint("Discount must not be negative").
			Mark(ierr.ErrValidation)
	}
	if err := r.PaymentMethod.Validate(); err != nil {
		return ierr.WithError(err).
			WithHint("Payment method code is invalid").
			Mark(ierr.ErrValidation)
	}
	if r.Series < 1 || r.Series > 999 {
		return ierr.NewError("invalid series").
			WithHint("Series must be between 1 and 999").
			Mark(ierr.ErrValidation)
	}
	if err := r.Environment.Validate(); err != nil {
		return ierr.WithError(err).
			WithHint("Environment is invalid").
			Mark(ierr.ErrValidation)
	}
	if r.Recipient != nil {
		if r.Recipient.TaxID == "" {
			return ierr.NewError("invalid recipient").
				WithHint("Recipient tax ID is required when a recipient is identified").
				Mark(ierr.ErrValidation)
		}
	}
	return nil
}

// Result is the unified outcome of one emission
type Result struct {
	Status    types.EmissionStatus `json:"status"`
	AccessKey string               `json:"access_key"`
	Sequence  uint64               `json:"sequence"`
	EmittedAt time.Time            `json:"emitted_at"`

	// Protocol is the authorization protocol number, present only
	// when the authority accepted the document online.
	Protocol *string `json:"protocol,omitempty"`

	// Rejection carries the authority's diagnostic on non-accepted
	// round trips.
	RejectionCode    string `json:"rejection_code,omitempty"`
	RejectionMessage string `json:"rejection_message,omitempty"`

	SignedXML string `json:"signed_xml,omitempty"`

	// Artifacts
	QRCodeURL  string `json:"qrcode_url,omitempty"`
	QRCodePNG  []byte `json:"qrcode_png,omitempty"`
	Receipt    []byte `json:"receipt,omitempty"`
	StatusLine string `json:"status_line,omitempty"`
}
