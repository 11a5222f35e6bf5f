package types

import (
	"fmt"

	"github.com/samber/lo"
)

// PaymentMethod represents the two-digit payment code carried in the
// document payment block. Codes are opaque fiscal classifications; the
// pipeline never interprets them beyond display formatting.
type PaymentMethod string

const (
	PaymentMethodCash       PaymentMethod = "01"
	PaymentMethodCheck      PaymentMethod = "02"
	PaymentMethodCredit     PaymentMethod = "03"
	PaymentMethodDebit      PaymentMethod = "04"
	PaymentMethodStoreCred  PaymentMethod = "05"
	PaymentMethodFoodVouch  PaymentMethod = "10"
	PaymentMethodMealVouch  PaymentMethod = "11"
	PaymentMethodGiftVouch  PaymentMethod = "12"
	PaymentMethodFuelVouch  PaymentMethod = "13"
	PaymentMethodBankSlip   PaymentMethod = "15"
	PaymentMethodInstantPay PaymentMethod = "17"
	PaymentMethodNone       PaymentMethod = "90"
	PaymentMethodOther      PaymentMethod = "99"
)

func (m PaymentMethod) String() string {
	return string(m)
}

func (m PaymentMethod) Validate() error {
	allowed := []PaymentMethod{
		PaymentMethodCash,
		PaymentMethodCheck,
		PaymentMethodCredit,
		PaymentMethodDebit,
		PaymentMethodStoreCred,
		PaymentMethodFoodVouch,
		PaymentMethodMealVouch,
		PaymentMethodGiftVouch,
		PaymentMethodFuelVouch,
		PaymentMethodBankSlip,
		PaymentMethodInstantPay,
		PaymentMethodNone,
		PaymentMethodOther,
	}
	if !lo.Contains(allowed, m) {
		return fmt.Errorf("invalid payment method: %s", m)
	}
	return nil
}

// DisplayName returns the printable label for the receipt
func (m PaymentMethod) DisplayName() string {
	switch m {
	case PaymentMethodCash:
		return "Dinheiro"
	case PaymentMethodCheck:
		return "Cheque"
	case PaymentMethodCredit:
		return "Cartao de Credito"
	case PaymentMethodDebit:
		return "Cartao de Debito"
	case PaymentMethodStoreCred:
		return "Credito Loja"
	case PaymentMethodFoodVouch:
		return "Vale Alimentacao"
	case PaymentMethodMealVouch:
		return "Vale Refeicao"
	case PaymentMethodGiftVouch:
		return "Vale Presente"
	case PaymentMethodFuelVouch:
		return "Vale Combustivel"
	case PaymentMethodBankSlip:
		return "Boleto Bancario"
	case PaymentMethodInstantPay:
		return "PIX"
	case PaymentMethodNone:
		return "Sem Pagamento"
	case PaymentMethodOther:
		return "Outros"
	default:
		return "Nao Identificado"
	}
}
