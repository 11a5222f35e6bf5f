package dto

import (
	"time"

	"github.com/giropos/fiscal/internal/config"
	"github.com/giropos/fiscal/internal/domain/emission"
	"github.com/giropos/fiscal/internal/types"
	"github.com/giropos/fiscal/internal/validator"
	"github.com/shopspring/decimal"
)

// EmitItemRequest is one sold product as the terminal reports it. Tax
// classification codes are passed through untouched.
type EmitItemRequest struct {
	Code        string          `json:"code" validate:"required" binding:"required" example:"SKU001"`
	EAN         string          `json:"ean,omitempty" example:"7891234567895"`
	Description string          `json:"description" validate:"required" binding:"required" example:"Cafe Torrado 500g"`
	NCM         string          `json:"ncm" validate:"required" example:"09012100"`
	CFOP        string          `json:"cfop" validate:"required" example:"5102"`
	Unit        string          `json:"unit" validate:"required" example:"UN"`
	Quantity    decimal.Decimal `json:"quantity" validate:"required"`
	UnitValue   decimal.Decimal `json:"unit_value" validate:"required"`
	TotalValue  decimal.Decimal `json:"total_value"`
	TaxOrigin   string          `json:"tax_origin" example:"0"`
	ICMSCode    string          `json:"icms_code" example:"102"`
	PISCode     string          `json:"pis_code" example:"07"`
	COFINSCode  string          `json:"cofins_code" example:"07"`
}

// RecipientRequest identifies the consumer when they asked for a
// receipt in their name
type RecipientRequest struct {
	TaxID string `json:"tax_id" validate:"required" binding:"required"`
	Name  string `json:"name"`
}

// EmitRequest is one sale submitted for fiscal emission. The emitter
// identity, series and environment come from the server configuration,
// never from the caller.
type EmitRequest struct {
	SaleID        string              `json:"sale_id,omitempty"`
	Recipient     *RecipientRequest   `json:"recipient,omitempty"`
	Items         []EmitItemRequest   `json:"items" validate:"required,min=1" binding:"required"`
	TotalDiscount decimal.Decimal     `json:"total_discount"`
	PaymentMethod types.PaymentMethod `json:"payment_method" validate:"required" binding:"required" example:"17"`
	PaymentValue  decimal.Decimal     `json:"payment_value"`
}

func (r *EmitRequest) Validate() error {
	return validator.ValidateRequest(r)
}

// ToEmissionRequest combines the sale with the deployment's fixed
// emitter identity and fiscal parameters
func (r *EmitRequest) ToEmissionRequest(cfg *config.Configuration) *emission.Request {
	items := make([]emission.LineItem, len(r.Items))
	totalItems := decimal.Zero
	for i, item := range r.Items {
		total := item.TotalValue
		if total.IsZero() {
			total = item.Quantity.Mul(item.UnitValue)
		}
		items[i] = emission.LineItem{
			Number:      i + 1,
			Code:        item.Code,
			EAN:         item.EAN,
			Description: item.Description,
			NCM:         item.NCM,
			CFOP:        item.CFOP,
			Unit:        item.Unit,
			Quantity:    item.Quantity,
			UnitValue:   item.UnitValue,
			TotalValue:  total,
			TaxOrigin:   item.TaxOrigin,
			ICMSCode:    item.ICMSCode,
			PISCode:     item.PISCode,
			COFINSCode:  item.COFINSCode,
		}
		totalItems = totalItems.Add(total)
	}

	req := &emission.Request{
		ID:     types.GenerateUUIDWithPrefix(types.UUID_PREFIX_EMISSION),
		SaleID: r.SaleID,
		Emitter: emission.Emitter{
			TaxID:        cfg.Emitter.TaxID,
			StateTaxID:   cfg.Emitter.StateTaxID,
			Name:         cfg.Emitter.Name,
			TradeName:    cfg.Emitter.TradeName,
			Address:      cfg.Emitter.Address,
			City:         cfg.Emitter.City,
			CityCode:     cfg.Emitter.CityCode,
			Jurisdiction: cfg.Emitter.Jurisdiction,
			PostalCode:   cfg.Emitter.PostalCode,
			Phone:        cfg.Emitter.Phone,
		},
		Items:         items,
		TotalItems:    totalItems,
		TotalDiscount: r.TotalDiscount,
		PaymentMethod: r.PaymentMethod,
		PaymentValue:  r.PaymentValue,
		Series:        cfg.Fiscal.Series,
		Environment:   cfg.Fiscal.Environment,
	}
	if req.PaymentValue.IsZero() {
		req.PaymentValue = req.TotalNote()
	}
	if r.Recipient != nil {
		req.Recipient = &emission.Recipient{
			TaxID: r.Recipient.TaxID,
			Name:  r.Recipient.Name,
		}
	}
	return req
}

// EmitResponse is the outcome of one emission. Binary artifacts are
// base64 in the JSON body.
type EmitResponse struct {
	Status    types.EmissionStatus `json:"status"`
	AccessKey string               `json:"access_key"`
	Sequence  uint64               `json:"sequence"`
	EmittedAt time.Time            `json:"emitted_at"`

	Protocol         *string `json:"protocol,omitempty"`
	RejectionCode    string  `json:"rejection_code,omitempty"`
	RejectionMessage string  `json:"rejection_message,omitempty"`

	QRCodeURL  string `json:"qrcode_url,omitempty"`
	QRCodePNG  []byte `json:"qrcode_png,omitempty"`
	Receipt    []byte `json:"receipt,omitempty"`
	StatusLine string `json:"status_line,omitempty"`
}

// ToEmitResponse converts an emission result for the wire
func ToEmitResponse(result *emission.Result) *EmitResponse {
	return &EmitResponse{
		Status:           result.Status,
		AccessKey:        result.AccessKey,
		Sequence:         result.Sequence,
		EmittedAt:        result.EmittedAt,
		Protocol:         result.Protocol,
		RejectionCode:    result.RejectionCode,
		RejectionMessage: result.RejectionMessage,
		QRCodeURL:        result.QRCodeURL,
		QRCodePNG:        result.QRCodePNG,
		Receipt:          result.Receipt,
		StatusLine:       result.StatusLine,
	}
}
