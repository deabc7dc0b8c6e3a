// Package invoice holds typed views of the extracted NFS-e JSON. The edited
// JSON text stays authoritative; these types feed export, summaries and hints.
package invoice

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Invoice mirrors one object of the extraction template.
type Invoice struct {
	NumeroRps            Text          `json:"numeroRps"`
	NumeroNota           Text          `json:"numeroNota"`
	DataEmissao          Text          `json:"dataEmissao"`
	CodigoSerie          Text          `json:"codigoSerie"`
	DescricaoSerie       Text          `json:"descricaoSerie"`
	CodigoModelo         Text          `json:"codigoModelo"`
	DescricaoModelo      Text          `json:"descricaoModelo"`
	CnpjCliente          Text          `json:"cnpjCliente"`
	RazaoCliente         Text          `json:"razaoCliente"`
	CodIbgeEstadoServico Text          `json:"codIbgeEstadoServico"`
	CodIbgeCidadeServico Text          `json:"codIbgeCidadeServico"`
	TipoTributacaoIss    Text          `json:"tipoTributacaoIss"`
	ValorNotaFiscal      Amount        `json:"valorNotaFiscal"`
	ValorMulta           Amount        `json:"valorMulta"`
	ValorDesconto        Amount        `json:"valorDesconto"`
	TermoRecebimento     Text          `json:"termoRecebimento"`
	Observacao           Text          `json:"observacao"`
	Servicos             []Service     `json:"Servicos"`
	CodigoReceita        []RevenueCode `json:"CodigoReceita"`
	ImpostosRetido       []WithheldTax `json:"ImpostosRetido"`
	Titulos              []Title       `json:"Titulos"`
}

type Service struct {
	CodigoTipoServico      Text   `json:"codigoTipoServico"`
	DescricaoTipoServico   Text   `json:"descricaoTipoServico"`
	CodigoServico          Text   `json:"codigoServico"`
	DescricaoServico       Text   `json:"descricaoServico"`
	QuantidadeServico      Amount `json:"quantidadeServico"`
	ValorServico           Amount `json:"valorServico"`
	ValorTotalServico      Amount `json:"valorTotalServico"`
	CstSpedEfdSaida        Amount `json:"cstSpedEfdSaida"`
	AliqPisSpedEfdSaida    Amount `json:"aliqPisSpedEfdSaida"`
	AliqCofinsSpedEfdSaida Amount `json:"aliqCofinsSpedEfdSaida"`
}

type RevenueCode struct {
	CodigoReceita Text `json:"codigoReceita"`
}

type WithheldTax struct {
	IndicadorImposto  Text   `json:"indicadorImposto"`
	CodigoReceita     Text   `json:"codigoReceita"`
	IndicadorRetencao Text   `json:"indicadorRetencao"`
	VlrBaseImposto    Amount `json:"vlrBaseImposto"`
	AliquotaImposto   Amount `json:"aliquotaImposto"`
	VlrImposto        Amount `json:"vlrImposto"`
}

type Title struct {
	NumeroTitulo        Text   `json:"numeroTitulo"`
	DataVencimento      Text   `json:"dataVencimento"`
	CnpjCpfCredorTitulo Text   `json:"cnpjCpfCredorTitulo"`
	ValorTitulo         Amount `json:"valorTitulo"`
	IndicadorTipoTitulo Text   `json:"indicadorTipoTitulo"`
}

// IsZero reports whether every field of the withheld tax entry is empty.
func (w WithheldTax) IsZero() bool {
	return w.IndicadorImposto == "" && w.CodigoReceita == "" && w.IndicadorRetencao == "" &&
		w.VlrBaseImposto.IsZero() && w.AliquotaImposto.IsZero() && w.VlrImposto.IsZero()
}

// Text is a string field that also accepts numbers and null from the model.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*t = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = Text(strings.TrimSpace(s))
	default:
		// numbers and booleans keep their literal spelling
		*t = Text(b)
	}
	return nil
}

// Amount is a monetary or numeric field. The model may answer with a number,
// a plain decimal string or a Brazilian formatted string such as "1.234,56".
type Amount struct {
	Value  decimal.Decimal
	Valid  bool   // false when the field was empty, null or unparsable
	Quoted bool   // the model answered with a string
	Raw    string // the value as received
}

func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	*a = Amount{}
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		a.Raw, a.Quoted = s, true
		if d, ok := ParseAmount(s); ok {
			a.Value, a.Valid = d, true
		}
		return nil
	}
	a.Raw = string(b)
	if d, err := decimal.NewFromString(a.Raw); err == nil {
		a.Value, a.Valid = d, true
	}
	return nil
}

func (a Amount) MarshalJSON() ([]byte, error) {
	if !a.Valid {
		return []byte("0"), nil
	}
	return []byte(a.Value.String()), nil
}

// IsZero reports whether the amount is missing or zero.
func (a Amount) IsZero() bool { return !a.Valid || a.Value.IsZero() }

// Float returns the amount for spreadsheet cells.
func (a Amount) Float() float64 {
	if !a.Valid {
		return 0
	}
	return a.Value.InexactFloat64()
}

// ParseAmount reads "1234.56", "1.234,56", "R$ 1.234,56" or "10%".
func ParseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "R$")
	s = strings.TrimSuffix(s, "%")
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	if s == "" {
		return decimal.Zero, false
	}
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastComma > lastDot:
		// comma is the decimal separator
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case lastDot >= 0 && strings.Count(s, ".") > 1:
		// dots as thousands separators only
		s = strings.ReplaceAll(s, ".", "")
	default:
		s = strings.ReplaceAll(s, ",", "")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// Parse decodes edited JSON text into records. A single object is accepted as
// a one-record list.
func Parse(data []byte) ([]Invoice, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty document")
	}
	if trimmed[0] == '{' {
		var one Invoice
		if err := json.Unmarshal(trimmed, &one); err != nil {
			return nil, err
		}
		return []Invoice{one}, nil
	}
	var many []Invoice
	if err := json.Unmarshal(trimmed, &many); err != nil {
		return nil, err
	}
	return many, nil
}

func itoa(i int) string { return strconv.Itoa(i) }
