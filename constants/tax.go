package constants

import (
	"strings"
)

// ISSTaxation is the tipoTributacaoIss code of an NFS-e.
type ISSTaxation string

const (
	ISSTributadoNoMunicipio           ISSTaxation = "1"
	ISSTributadoForaMunicipio         ISSTaxation = "2"
	ISSTributadoNoMunicipioIsento     ISSTaxation = "3"
	ISSTributadoForaMunicipioIsento   ISSTaxation = "4"
	ISSTributadoNoMunicipioImune      ISSTaxation = "5"
	ISSTributadoForaMunicipioImune    ISSTaxation = "6"
	ISSTributadoNoMunicipioSuspensa   ISSTaxation = "7"
	ISSTributadoForaMunicipioSuspensa ISSTaxation = "8"
	ISSExportacaoServicos             ISSTaxation = "9"
)

var issDescriptions = []struct {
	code  ISSTaxation
	label string
}{
	{ISSTributadoNoMunicipio, "Tributado no Município"},
	{ISSTributadoForaMunicipio, "Tributado fora do Município"},
	{ISSTributadoNoMunicipioIsento, "Tributado no Município Isento"},
	{ISSTributadoForaMunicipioIsento, "Tributado fora do Município Isento"},
	{ISSTributadoNoMunicipioImune, "Tributado no Município Imune"},
	{ISSTributadoForaMunicipioImune, "Tributado fora do Município Imune"},
	{ISSTributadoNoMunicipioSuspensa, "Tributado no Município Suspensa"},
	{ISSTributadoForaMunicipioSuspensa, "Tributado fora do Município Suspensa"},
	{ISSExportacaoServicos, "Exp Servicos"},
}

// ISSCodes returns the valid tipoTributacaoIss codes in order.
func ISSCodes() []string {
	out := make([]string, len(issDescriptions))
	for i, d := range issDescriptions {
		out[i] = string(d.code)
	}
	return out
}

// ISSLabel returns the description of an ISS taxation code.
func ISSLabel(code string) (string, bool) {
	for _, d := range issDescriptions {
		if string(d.code) == strings.TrimSpace(code) {
			return d.label, true
		}
	}
	return "", false
}

// TaxIndicator is the indicadorImposto of a withheld tax entry.
type TaxIndicator string

const (
	TaxCOFINS   TaxIndicator = "COFINS"
	TaxPISPASEP TaxIndicator = "PIS/PASEP"
	TaxISS      TaxIndicator = "ISS"
	TaxINSSPJ   TaxIndicator = "INSS-PJ"
	TaxINSSPF   TaxIndicator = "INSS-PF"
	TaxIRRFPF   TaxIndicator = "IRRF-PF"
	TaxIRRFPJ   TaxIndicator = "IRRF-PJ"
	TaxCSLL     TaxIndicator = "CSLL"
)

var allTaxIndicators = []TaxIndicator{
	TaxCOFINS,
	TaxPISPASEP,
	TaxISS,
	TaxINSSPJ,
	TaxINSSPF,
	TaxIRRFPF,
	TaxIRRFPJ,
	TaxCSLL,
}

// TaxIndicatorsAsStrings lists the accepted indicadorImposto values.
func TaxIndicatorsAsStrings() []string {
	result := make([]string, len(allTaxIndicators))
	for i, t := range allTaxIndicators {
		result[i] = string(t)
	}
	return result
}

// CanonicalizeTaxIndicator maps common spellings to a TaxIndicator.
func CanonicalizeTaxIndicator(input string) (TaxIndicator, bool) {
	normalized := strings.ToUpper(strings.TrimSpace(input))
	if normalized == "" {
		return "", false
	}

	synonyms := map[string]TaxIndicator{
		"PIS":       TaxPISPASEP,
		"PASEP":     TaxPISPASEP,
		"PIS-PASEP": TaxPISPASEP,
		"PIS PASEP": TaxPISPASEP,
		"ISSQN":     TaxISS,
		"INSS":      TaxINSSPJ,
		"IRRF":      TaxIRRFPJ,
		"IR":        TaxIRRFPJ,
		"INSS PJ":   TaxINSSPJ,
		"INSS PF":   TaxINSSPF,
		"IRRF PJ":   TaxIRRFPJ,
		"IRRF PF":   TaxIRRFPF,
	}
	if t, ok := synonyms[normalized]; ok {
		return t, true
	}

	for _, t := range allTaxIndicators {
		if normalized == string(t) {
			return t, true
		}
	}
	return "", false
}

// TitleType is the indicadorTipoTitulo of a Titulos entry.
type TitleType string

const (
	TitlePayable    TitleType = "P"
	TitleReceivable TitleType = "R"
)

// ValidTitleType reports whether s is a known title type.
func ValidTitleType(s string) bool {
	switch TitleType(strings.ToUpper(strings.TrimSpace(s))) {
	case TitlePayable, TitleReceivable:
		return true
	}
	return false
}
