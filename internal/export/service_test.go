package export

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/invoice"
	"github.com/joseph-ayodele/invoice-extractor/internal/llm"
)

const edited = `[{"numeroNota":"4567","razaoCliente":"ACME","valorNotaFiscal":"1.500,50",
"Servicos":[{"descricaoServico":"Consultoria","valorTotalServico":1500.5}],
"CodigoReceita":[{"codigoReceita":"5952"},{"codigoReceita":""}],
"ImpostosRetido":[{"indicadorImposto":"ISS","vlrImposto":75},{"indicadorImposto":"","vlrImposto":0}],
"Titulos":[{"numeroTitulo":"1/1","valorTitulo":1425.5,"indicadorTipoTitulo":"P"}]}]`

func TestJSONFormatsWithFourSpaces(t *testing.T) {
	s := NewService(nil)
	out, err := s.JSON(context.Background(), `[{"numeroRps":"123"}]`)
	require.NoError(t, err)
	assert.Equal(t, "[\n    {\n        \"numeroRps\": \"123\"\n    }\n]", string(out))
}

func TestJSONRefusesInvalidText(t *testing.T) {
	s := NewService(nil)
	_, err := s.JSON(context.Background(), `[{"numeroRps": }]`)
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrConflict)
	assert.ErrorIs(t, err, llm.ErrInvalidJSON)
	assert.Equal(t, 409, common.HTTPStatus(err))
}

func TestXLSXSheets(t *testing.T) {
	s := NewService(nil)
	b, err := s.XLSX(context.Background(), "nota.pdf", edited)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Notas", "Servicos", "ImpostosRetido", "Titulos"}, f.GetSheetList())

	notas, err := f.GetRows("Notas")
	require.NoError(t, err)
	require.Len(t, notas, 2)
	assert.Equal(t, "Arquivo", notas[0][0])
	assert.Equal(t, "nota.pdf", notas[1][0])
	assert.Equal(t, "4567", notas[1][2])
	assert.Equal(t, "5952", notas[1][18])

	v, err := f.GetCellValue("Notas", "N2", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "1500.5", v)

	impostos, err := f.GetRows("ImpostosRetido")
	require.NoError(t, err)
	assert.Len(t, impostos, 2, "empty withheld-tax placeholders are skipped")

	titulos, err := f.GetRows("Titulos")
	require.NoError(t, err)
	require.Len(t, titulos, 2)
	assert.Equal(t, "P", titulos[1][6])
}

func TestXLSXRefusesInvalidText(t *testing.T) {
	_, err := NewService(nil).XLSX(context.Background(), "x", "nope")
	assert.ErrorIs(t, err, common.ErrConflict)

	_, err = NewService(nil).XLSX(context.Background(), "x", `"a string"`)
	assert.ErrorIs(t, err, common.ErrConflict)
}

func TestWorkbookMultipleEntries(t *testing.T) {
	a, err := invoice.Parse([]byte(`[{"numeroNota":"1"}]`))
	require.NoError(t, err)
	b, err := invoice.Parse([]byte(`[{"numeroNota":"2"},{"numeroNota":"3"}]`))
	require.NoError(t, err)

	out, err := NewService(nil).Workbook(context.Background(), []Entry{{Source: "a.pdf", Records: a}, {Source: "b.png", Records: b}})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Notas")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"a.pdf", "b.png", "b.png"}, []string{rows[1][0], rows[2][0], rows[3][0]})
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab…", truncate("abcdef", 3))
}
