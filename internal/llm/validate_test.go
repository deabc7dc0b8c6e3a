package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateHasNoSchemaWarnings(t *testing.T) {
	assert.Empty(t, SchemaWarnings([]byte(Template)))
}

func TestSchemaWarnings(t *testing.T) {
	data := []byte(`[{
		"numeroRps": "123",
		"dataEmissao": "2024-03-05",
		"tipoTributacaoIss": "12",
		"valorNotaFiscal": "1.234,56",
		"Titulos": [{"indicadorTipoTitulo": "X", "dataVencimento": "05/04/2024"}]
	}]`)

	warns := SchemaWarnings(data)
	require.NotEmpty(t, warns)
	joined := strings.Join(warns, "\n")
	assert.Contains(t, joined, "/0/dataEmissao")
	assert.Contains(t, joined, "/0/tipoTributacaoIss")
	assert.Contains(t, joined, "/0/valorNotaFiscal")
	assert.Contains(t, joined, "/0/Titulos/0/indicadorTipoTitulo")
	assert.NotContains(t, joined, "dataVencimento")
}

func TestSchemaWarningsAcceptsEmptyStrings(t *testing.T) {
	data := []byte(`[{"dataEmissao": "", "tipoTributacaoIss": "", "Titulos": [{"dataVencimento": "", "indicadorTipoTitulo": ""}]}]`)
	assert.Empty(t, SchemaWarnings(data))
}

func TestSchemaWarningsInvalidJSON(t *testing.T) {
	assert.Nil(t, SchemaWarnings([]byte("not json")))
}

func TestValidateJSONAgainstSchema(t *testing.T) {
	schema := BuildInvoiceJSONSchema()
	require.NoError(t, ValidateJSONAgainstSchema(schema, []byte(`[{"numeroNota": "1", "valorNotaFiscal": 10}]`)))

	assert.Error(t, ValidateJSONAgainstSchema(schema, []byte(`{"numeroNota": "1"}`)))
	assert.Error(t, ValidateJSONAgainstSchema(schema, []byte(`[]`)))
	assert.ErrorIs(t, ValidateJSONAgainstSchema(schema, []byte(`[`)), ErrInvalidJSON)
}
