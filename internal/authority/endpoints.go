package authority

import (
	"github.com/giropos/fiscal/internal/types"
)

// endpoints is one jurisdiction's webservice pair
type endpoints struct {
	Authorize string
	Status    string
}

// Jurisdictions without a dedicated webservice delegate to the shared
// virtual authority, so the maps below only list the self-hosted ones.
var (
	productionEndpoints = map[string]endpoints{
		"SP": {
			Authorize: "https://nfce.fazenda.sp.gov.br/ws/NFeAutorizacao4.asmx",
			Status:    "https://nfce.fazenda.sp.gov.br/ws/NFeStatusServico4.asmx",
		},
		"MG": {
			Authorize: "https://nfce.fazenda.mg.gov.br/nfce/services/NFeAutorizacao4",
			Status:    "https://nfce.fazenda.mg.gov.br/nfce/services/NFeStatusServico4",
		},
		"PR": {
			Authorize: "https://nfce.fazenda.pr.gov.br/nfce/NFeAutorizacao4",
			Status:    "https://nfce.fazenda.pr.gov.br/nfce/NFeStatusServico4",
		},
	}

	stagingEndpoints = map[string]endpoints{
		"SP": {
			Authorize: "https://homologacao.nfce.fazenda.sp.gov.br/ws/NFeAutorizacao4.asmx",
			Status:    "https://homologacao.nfce.fazenda.sp.gov.br/ws/NFeStatusServico4.asmx",
		},
		"MG": {
			Authorize: "https://hnfce.fazenda.mg.gov.br/nfce/services/NFeAutorizacao4",
			Status:    "https://hnfce.fazenda.mg.gov.br/nfce/services/NFeStatusServico4",
		},
		"PR": {
			Authorize: "https://homologacao.nfce.fazenda.pr.gov.br/nfce/NFeAutorizacao4",
			Status:    "https://homologacao.nfce.fazenda.pr.gov.br/nfce/NFeStatusServico4",
		},
	}

	productionFallback = endpoints{
		Authorize: "https://nfce.svrs.rs.gov.br/ws/NfeAutorizacao/NFeAutorizacao4.asmx",
		Status:    "https://nfce.svrs.rs.gov.br/ws/NfeStatusServico/NfeStatusServico4.asmx",
	}

	stagingFallback = endpoints{
		Authorize: "https://nfce-homologacao.svrs.rs.gov.br/ws/NfeAutorizacao/NFeAutorizacao4.asmx",
		Status:    "https://nfce-homologacao.svrs.rs.gov.br/ws/NfeStatusServico/NfeStatusServico4.asmx",
	}
)

// endpointsFor resolves the webservice pair for a jurisdiction
func endpointsFor(jurisdiction string, env types.Environment) endpoints {
	if env == types.EnvironmentProduction {
		if ep, ok := productionEndpoints[jurisdiction]; ok {
			return ep
		}
		return productionFallback
	}
	if ep, ok := stagingEndpoints[jurisdiction]; ok {
		return ep
	}
	return stagingFallback
}
