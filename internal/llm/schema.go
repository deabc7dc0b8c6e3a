package llm

import (
	"github.com/joseph-ayodele/invoice-extractor/constants"
)

const (
	reDateTime = `^$|^\d{2}/\d{2}/\d{4}( \d{2}:\d{2}(:\d{2})?)?$`
	reDate     = `^$|^\d{2}/\d{2}/\d{4}$`
)

func str() map[string]any   { return map[string]any{"type": "string"} }
func money() map[string]any { return map[string]any{"type": "number"} }

func enumOf(values ...string) map[string]any {
	vals := make([]any, 0, len(values)+1)
	vals = append(vals, "")
	for _, v := range values {
		vals = append(vals, v)
	}
	return map[string]any{"type": "string", "enum": vals}
}

func arrayOf(props map[string]any) map[string]any {
	return map[string]any{
		"type":  "array",
		"items": map[string]any{"type": "object", "properties": props},
	}
}

// BuildInvoiceJSONSchema describes the template. It is used for warnings
// only; any valid JSON may still be edited and downloaded.
func BuildInvoiceJSONSchema() map[string]any {
	servicos := map[string]any{
		"codigoTipoServico":      str(),
		"descricaoTipoServico":   str(),
		"codigoServico":          str(),
		"descricaoServico":       str(),
		"quantidadeServico":      money(),
		"valorServico":           money(),
		"valorTotalServico":      money(),
		"cstSpedEfdSaida":        money(),
		"aliqPisSpedEfdSaida":    money(),
		"aliqCofinsSpedEfdSaida": money(),
	}
	codigoReceita := map[string]any{
		"codigoReceita": str(),
	}
	impostos := map[string]any{
		"indicadorImposto":  enumOf(constants.TaxIndicatorsAsStrings()...),
		"codigoReceita":     str(),
		"indicadorRetencao": str(),
		"vlrBaseImposto":    money(),
		"aliquotaImposto":   money(),
		"vlrImposto":        money(),
	}
	titulos := map[string]any{
		"numeroTitulo":        str(),
		"dataVencimento":      map[string]any{"type": "string", "pattern": reDate},
		"cnpjCpfCredorTitulo": str(),
		"valorTitulo":         money(),
		"indicadorTipoTitulo": enumOf(string(constants.TitlePayable), string(constants.TitleReceivable)),
	}

	record := map[string]any{
		"numeroRps":            str(),
		"numeroNota":           str(),
		"dataEmissao":          map[string]any{"type": "string", "pattern": reDateTime},
		"codigoSerie":          str(),
		"descricaoSerie":       str(),
		"codigoModelo":         str(),
		"descricaoModelo":      str(),
		"cnpjCliente":          str(),
		"razaoCliente":         str(),
		"codIbgeEstadoServico": str(),
		"codIbgeCidadeServico": str(),
		"tipoTributacaoIss":    enumOf(constants.ISSCodes()...),
		"valorNotaFiscal":      money(),
		"valorMulta":           money(),
		"valorDesconto":        money(),
		"termoRecebimento":     str(),
		"observacao":           str(),
		"Servicos":             arrayOf(servicos),
		"CodigoReceita":        arrayOf(codigoReceita),
		"ImpostosRetido":       arrayOf(impostos),
		"Titulos":              arrayOf(titulos),
	}

	return map[string]any{
		"$schema":  "https://json-schema.org/draft/2020-12/schema",
		"type":     "array",
		"minItems": 1,
		"items": map[string]any{
			"type":       "object",
			"properties": record,
		},
	}
}
