package invoice

import (
	"github.com/tidwall/gjson"
)

// Summary is a short view of the first record, read without full decoding so
// it works on any valid JSON the user typed.
type Summary struct {
	Records         int
	NumeroNota      string
	DataEmissao     string
	RazaoCliente    string
	CnpjCliente     string
	ValorNotaFiscal string
	Servicos        int
}

// Summarize reads the headline fields of the first record.
func Summarize(data []byte) Summary {
	root := gjson.ParseBytes(data)
	first := root
	s := Summary{Records: 1}
	if root.IsArray() {
		s.Records = int(root.Get("#").Int())
		first = root.Get("0")
	}
	if !first.IsObject() {
		return Summary{Records: s.Records}
	}
	s.NumeroNota = first.Get("numeroNota").String()
	s.DataEmissao = first.Get("dataEmissao").String()
	s.RazaoCliente = first.Get("razaoCliente").String()
	s.CnpjCliente = first.Get("cnpjCliente").String()
	s.ValorNotaFiscal = first.Get("valorNotaFiscal").String()
	s.Servicos = int(first.Get("Servicos.#").Int())
	return s
}
