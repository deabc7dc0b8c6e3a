package llm

import (
	"fmt"
	"strings"

	"github.com/joseph-ayodele/invoice-extractor/constants"
)

// Requirement is how a field is flagged in the field definitions.
type Requirement int

const (
	Required Requirement = iota
	Optional
	RequiredIfPresent
)

func (r Requirement) label() string {
	switch r {
	case Required:
		return "Obrigatório: Sim"
	case Optional:
		return "Obrigatório: Não"
	default:
		return "Obrigatório se houver informação no documento."
	}
}

// FieldDef describes one template key to the model.
type FieldDef struct {
	Name        string
	Type        string // String | BigDecimal | Data
	Description string
	Required    Requirement
	Values      []string // enumerated values shown under the field
}

// FieldGroup is a titled block of field definitions. The first group has no title.
type FieldGroup struct {
	Title  string
	Fields []FieldDef
}

func issValues() []string {
	codes := constants.ISSCodes()
	out := make([]string, len(codes))
	for i, c := range codes {
		label, _ := constants.ISSLabel(c)
		out[i] = c + ". " + label
	}
	return out
}

// FieldGroups are the definitions sent to the model, in prompt order.
var FieldGroups = []FieldGroup{
	{
		Fields: []FieldDef{
			{"numeroRps", "String", "Número do RPS que gerou a nota fiscal de saída de serviço.", Required, nil},
			{"numeroNota", "String", "Número da nota fiscal de saída de serviço.", Required, nil},
			{"dataEmissao", "String", "Data de emissão da nota fiscal de saída (Formato: DD/MM/YYYY HH24:MI:SS).", Required, nil},
			{"codigoSerie", "String", "Código da série da nota fiscal de serviço.", Optional, nil},
			{"descricaoSerie", "String", "Descrição da série da nota fiscal de serviço.", Optional, nil},
			{"codigoModelo", "String", "Código do modelo da nota fiscal de serviço.", Required, nil},
			{"descricaoModelo", "String", "Descrição do modelo da nota fiscal de serviço.", Optional, nil},
			{"cnpjCliente", "String", "CNPJ do cliente da nota fiscal de serviço.", Optional, nil},
			{"razaoCliente", "String", "Razão social do cliente da nota fiscal de serviço.", Optional, nil},
			{"codIbgeEstadoServico", "String", "Código IBGE do estado da execução do serviço.", Required, nil},
			{"codIbgeCidadeServico", "String", "Código IBGE da cidade da execução do serviço.", Required, nil},
			{"tipoTributacaoIss", "String", "Tipo de Tributação do ISS (1 a 9).", Required, issValues()},
			{"valorNotaFiscal", "BigDecimal", "Valor da nota fiscal de serviço.", Required, nil},
			{"valorMulta", "BigDecimal", "Valor da multa na nota fiscal de serviço.", Optional, nil},
			{"valorDesconto", "BigDecimal", "Valor do desconto na nota fiscal de serviço.", Optional, nil},
			{"termoRecebimento", "String", "Descrição do termo de recebimento da nota fiscal de serviço integrado com o Fusion (Oracle).", Optional, nil},
			{"observacao", "String", "Descrição da observação da nota fiscal de serviço.", Required, nil},
		},
	},
	{
		Title:  "Servicos",
		Fields: []FieldDef{
			{"codigoTipoServico", "String", "Código do Tipo de Serviço na nota fiscal.", Required, nil},
			{"descricaoTipoServico", "String", "Descrição do Tipo de Serviço na nota fiscal.", Required, nil},
			{"codigoServico", "String", "Código do Serviço na nota fiscal.", Required, nil},
			{"descricaoServico", "String", "Descrição do Serviço na nota fiscal.", Required, nil},
			{"quantidadeServico", "BigDecimal", "Quantidade do serviço na nota fiscal.", Required, nil},
			{"valorServico", "BigDecimal", "Valor do serviço na nota fiscal.", Required, nil},
			{"valorTotalServico", "BigDecimal", "Valor total do serviço na nota fiscal.", Required, nil},
		},
	},
	{
		Title:  "ImpostosRetido (Se houver)",
		Fields: []FieldDef{
			{"indicadorImposto", "String", "Tipo de imposto (ex: " + strings.Join(constants.TaxIndicatorsAsStrings(), ", ") + ").", RequiredIfPresent, nil},
			{"codigoReceita", "String", "Código da Receita.", Optional, nil},
			{"indicadorRetencao", "String", "Indica se o imposto possui Retenção.", RequiredIfPresent, nil},
			{"vlrBaseImposto", "BigDecimal", "Valor base do Imposto.", RequiredIfPresent, nil},
			{"aliquotaImposto", "BigDecimal", "Alíquota do Imposto.", RequiredIfPresent, nil},
			{"vlrImposto", "BigDecimal", "Valor do Imposto.", RequiredIfPresent, nil},
		},
	},
	{
		Title:  "Titulos",
		Fields: []FieldDef{
			{"numeroTitulo", "String", "Informar o número do título.", Optional, nil},
			{"dataVencimento", "Data", "Data de vencimento do título (Formato: DD/MM/YYYY).", Optional, nil},
			{"cnpjCpfCredorTitulo", "String", "CNPJ/CPF do credor do título.", Optional, nil},
			{"valorTitulo", "BigDecimal", "Valor do título.", Optional, nil},
			{"indicadorTipoTitulo", "String", "Tipo do título ('P' - Título do credor principal, 'R' - Título de retenção).", Optional, nil},
		},
	},
}

const instructions = "Por favor, analise o documento fornecido e extraia todas as informações relevantes necessárias para preencher o JSON abaixo. " +
	"Note que os arquivos fornecidos podem não seguir um padrão específico, portanto, é importante buscar as informações pertinentes para preencher o JSON, independentemente do formato do documento. " +
	"Utilize tanto o conteúdo da imagem quanto o texto extraído via OCR fornecido abaixo. " +
	"Note que o OCR pode conter erros, então use a imagem como referência para validar as informações. " +
	"Preencha o JSON abaixo com os dados extraídos. " +
	"Não inclua descrições adicionais, apenas preencha o JSON seguindo exatamente a estrutura apresentada. " +
	"Sempre responda com o JSON, mesmo para os campos que não houverem correspondência. " +
	"Você não é um chat conversacional; irá apenas executar a tarefa mencionada e entregar um resultado.\n\n" +
	"Certifique-se de preencher todos os campos com as informações extraídas do documento fornecido e siga a estrutura exata para garantir a compatibilidade com o sistema de integração. " +
	"Por favor, concentre-se apenas nas informações do arquivo; não invente dados. Para os campos que não tiverem informação no arquivo, deixe vazio como \"\".\n\n"

// Template is the literal JSON structure the model must fill.
const Template = `[
  {
    "numeroRps": "",
    "numeroNota": "",
    "dataEmissao": "",
    "codigoSerie": "",
    "descricaoSerie": "",
    "codigoModelo": "",
    "descricaoModelo": "",
    "cnpjCliente": "",
    "razaoCliente": "",
    "codIbgeEstadoServico": "",
    "codIbgeCidadeServico": "",
    "tipoTributacaoIss": "",
    "valorNotaFiscal": 0,
    "valorMulta": 0,
    "valorDesconto": 0,
    "termoRecebimento": "",
    "observacao": "",
    "Servicos": [
      {
        "codigoTipoServico": "",
        "descricaoTipoServico": "",
        "codigoServico": "",
        "descricaoServico": "",
        "quantidadeServico": 0,
        "valorServico": 0,
        "valorTotalServico": 0,
        "cstSpedEfdSaida": 0,
        "aliqPisSpedEfdSaida": 0.0,
        "aliqCofinsSpedEfdSaida": 0.0
      }
    ],
    "CodigoReceita": [
      {
        "codigoReceita": ""
      },
      {
        "codigoReceita": ""
      }
    ],
    "ImpostosRetido": [
      {
        "indicadorImposto": "",
        "codigoReceita": "",
        "indicadorRetencao": "",
        "vlrBaseImposto": 0,
        "aliquotaImposto": 0.0,
        "vlrImposto": 0.0
      },
      {
        "indicadorImposto": "",
        "codigoReceita": "",
        "indicadorRetencao": "",
        "vlrBaseImposto": 0,
        "aliquotaImposto": 0.0,
        "vlrImposto": 0.0
      },
      {
        "indicadorImposto": "",
        "codigoReceita": "",
        "indicadorRetencao": "",
        "vlrBaseImposto": 0,
        "aliquotaImposto": 0.0,
        "vlrImposto": 0.0
      }
    ],
    "Titulos": [
      {
        "numeroTitulo": "",
        "dataVencimento": "",
        "cnpjCpfCredorTitulo": "",
        "valorTitulo": 0,
        "indicadorTipoTitulo": ""
      }
    ]
  }
]`

// FieldDefinitions renders FieldGroups as the plain-text block of the prompt.
func FieldDefinitions() string {
	var b strings.Builder
	b.WriteString("Definições dos campos do JSON a serem preenchidos:\n\n")
	for gi, g := range FieldGroups {
		if gi > 0 {
			b.WriteString("\n" + g.Title + ":\n")
		}
		for i, f := range g.Fields {
			fmt.Fprintf(&b, "%d. %s (%s) - %s %s\n", i+1, f.Name, f.Type, f.Description, f.Required.label())
			if len(f.Values) > 0 {
				b.WriteString("   Valores possíveis:\n")
				for _, v := range f.Values {
					b.WriteString("     " + v + "\n")
				}
			}
		}
	}
	return b.String()
}

// FieldDefinitionsMarkdown renders FieldGroups for the review page help panel.
func FieldDefinitionsMarkdown() string {
	var b strings.Builder
	for _, g := range FieldGroups {
		title := g.Title
		if title == "" {
			title = "Nota fiscal"
		}
		b.WriteString("### " + title + "\n\n")
		for _, f := range g.Fields {
			fmt.Fprintf(&b, "- **%s** (%s): %s _%s_\n", f.Name, f.Type, f.Description, strings.TrimSuffix(f.Required.label(), "."))
			for _, v := range f.Values {
				b.WriteString("  - " + v + "\n")
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

// PromptText builds the single text block sent with the page images.
func PromptText(ocrText string) string {
	var b strings.Builder
	b.WriteString(instructions)
	b.WriteString(FieldDefinitions())
	b.WriteString("\nConteúdo extraído via OCR (pode conter erros):\n")
	b.WriteString(ocrText)
	b.WriteString("\n\nEstrutura do JSON a ser preenchido:\n")
	b.WriteString(Template)
	return b.String()
}

// BuildPrompt pairs the prompt text with the given images, keeping their order.
func BuildPrompt(ocrText string, images ...Image) Prompt {
	return Prompt{Text: PromptText(ocrText), Images: images}
}
