package export

import (
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/invoice-extractor/internal/invoice"
)

const (
	sheetNotas    = "Notas"
	sheetServicos = "Servicos"
	sheetImpostos = "ImpostosRetido"
	sheetTitulos  = "Titulos"
)

// column is a header with its width. Money columns get the
// "#,##0.00" number format.
type column struct {
	header string
	width  float64
	money  bool
}

var layouts = map[string][]column{
	sheetNotas: {
		{"Arquivo", 28, false}, {"numeroRps", 12, false}, {"numeroNota", 12, false}, {"dataEmissao", 20, false},
		{"codigoSerie", 10, false}, {"descricaoSerie", 18, false}, {"codigoModelo", 10, false}, {"descricaoModelo", 18, false},
		{"cnpjCliente", 20, false}, {"razaoCliente", 32, false}, {"codIbgeEstadoServico", 10, false}, {"codIbgeCidadeServico", 12, false},
		{"tipoTributacaoIss", 10, false}, {"valorNotaFiscal", 14, true}, {"valorMulta", 12, true}, {"valorDesconto", 12, true},
		{"termoRecebimento", 24, false}, {"observacao", 48, false}, {"codigosReceita", 16, false},
	},
	sheetServicos: {
		{"Arquivo", 28, false}, {"numeroNota", 12, false}, {"codigoTipoServico", 12, false}, {"descricaoTipoServico", 24, false},
		{"codigoServico", 12, false}, {"descricaoServico", 40, false}, {"quantidadeServico", 10, true}, {"valorServico", 14, true},
		{"valorTotalServico", 14, true}, {"cstSpedEfdSaida", 10, true}, {"aliqPisSpedEfdSaida", 10, true}, {"aliqCofinsSpedEfdSaida", 10, true},
	},
	sheetImpostos: {
		{"Arquivo", 28, false}, {"numeroNota", 12, false}, {"indicadorImposto", 14, false}, {"codigoReceita", 12, false},
		{"indicadorRetencao", 12, false}, {"vlrBaseImposto", 14, true}, {"aliquotaImposto", 10, true}, {"vlrImposto", 14, true},
	},
	sheetTitulos: {
		{"Arquivo", 28, false}, {"numeroNota", 12, false}, {"numeroTitulo", 14, false}, {"dataVencimento", 14, false},
		{"cnpjCpfCredorTitulo", 20, false}, {"valorTitulo", 14, true}, {"indicadorTipoTitulo", 8, false},
	},
}

var sheetOrder = []string{sheetNotas, sheetServicos, sheetImpostos, sheetTitulos}

type workbook struct {
	f          *excelize.File
	next       map[string]int // next free row per sheet
	moneyStyle int
}

func newWorkbook() (*workbook, error) {
	f := excelize.NewFile()
	wb := &workbook{f: f, next: map[string]int{}}

	// the default sheet becomes the first one
	if err := f.SetSheetName("Sheet1", sheetNotas); err != nil {
		return nil, err
	}
	for _, name := range sheetOrder[1:] {
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
	}
	style, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		return nil, err
	}
	wb.moneyStyle = style

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}
	for _, name := range sheetOrder {
		for i, c := range layouts[name] {
			cell, _ := excelize.CoordinatesToCellName(i+1, 1)
			_ = f.SetCellValue(name, cell, c.header)
			_ = f.SetCellStyle(name, cell, cell, header)
		}
		wb.next[name] = 2
	}
	return wb, nil
}

func (wb *workbook) close() { _ = wb.f.Close() }

func (wb *workbook) write(sheet string, values ...any) {
	row := wb.next[sheet]
	cols := layouts[sheet]
	for i, v := range values {
		cell, _ := excelize.CoordinatesToCellName(i+1, row)
		if a, ok := v.(invoice.Amount); ok {
			if a.Valid {
				_ = wb.f.SetCellValue(sheet, cell, a.Float())
			} else {
				_ = wb.f.SetCellValue(sheet, cell, a.Raw)
			}
		} else {
			_ = wb.f.SetCellValue(sheet, cell, v)
		}
		if i < len(cols) && cols[i].money {
			_ = wb.f.SetCellStyle(sheet, cell, cell, wb.moneyStyle)
		}
	}
	wb.next[sheet] = row + 1
}

func (wb *workbook) addInvoice(source string, r invoice.Invoice) error {
	var codes string
	for _, c := range r.CodigoReceita {
		if c.CodigoReceita == "" {
			continue
		}
		if codes != "" {
			codes += ", "
		}
		codes += string(c.CodigoReceita)
	}
	nota := string(r.NumeroNota)

	wb.write(sheetNotas, source, string(r.NumeroRps), nota, string(r.DataEmissao),
		string(r.CodigoSerie), string(r.DescricaoSerie), string(r.CodigoModelo), string(r.DescricaoModelo),
		string(r.CnpjCliente), string(r.RazaoCliente), string(r.CodIbgeEstadoServico), string(r.CodIbgeCidadeServico),
		string(r.TipoTributacaoIss), r.ValorNotaFiscal, r.ValorMulta, r.ValorDesconto,
		string(r.TermoRecebimento), truncate(string(r.Observacao), 32000), codes)

	for _, s := range r.Servicos {
		wb.write(sheetServicos, source, nota, string(s.CodigoTipoServico), string(s.DescricaoTipoServico),
			string(s.CodigoServico), string(s.DescricaoServico), s.QuantidadeServico, s.ValorServico,
			s.ValorTotalServico, s.CstSpedEfdSaida, s.AliqPisSpedEfdSaida, s.AliqCofinsSpedEfdSaida)
	}
	for _, t := range r.ImpostosRetido {
		if t.IsZero() {
			continue
		}
		wb.write(sheetImpostos, source, nota, string(t.IndicadorImposto), string(t.CodigoReceita),
			string(t.IndicadorRetencao), t.VlrBaseImposto, t.AliquotaImposto, t.VlrImposto)
	}
	for _, t := range r.Titulos {
		wb.write(sheetTitulos, source, nota, string(t.NumeroTitulo), string(t.DataVencimento),
			string(t.CnpjCpfCredorTitulo), t.ValorTitulo, string(t.IndicadorTipoTitulo))
	}
	return nil
}

func (wb *workbook) finish() {
	for _, name := range sheetOrder {
		for i, c := range layouts[name] {
			col, _ := excelize.ColumnNumberToName(i + 1)
			_ = wb.f.SetColWidth(name, col, col, c.width)
		}
	}
	idx, _ := wb.f.GetSheetIndex(sheetNotas)
	wb.f.SetActiveSheet(idx)
}
