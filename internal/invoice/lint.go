package invoice

import (
	"fmt"
	"sort"
	"strings"

	"github.com/joseph-ayodele/invoice-extractor/constants"
)

// Lint returns review hints for values that parse but look wrong. Hints never
// block editing or download.
func Lint(records []Invoice) []string {
	var out []string
	add := func(format string, args ...any) { out = append(out, fmt.Sprintf(format, args...)) }

	for i, r := range records {
		p := "/" + itoa(i)
		if c := string(r.CnpjCliente); c != "" && !ValidCNPJ(c) {
			add("%s/cnpjCliente: %q is not a valid CNPJ", p, c)
		}
		if code := string(r.TipoTributacaoIss); code != "" {
			if _, ok := constants.ISSLabel(code); !ok {
				add("%s/tipoTributacaoIss: %q is not a code from 1 to 9", p, code)
			}
		}
		for name, a := range map[string]Amount{
			"valorNotaFiscal": r.ValorNotaFiscal,
			"valorMulta":      r.ValorMulta,
			"valorDesconto":   r.ValorDesconto,
		} {
			lintAmount(add, p+"/"+name, a)
		}
		for j, s := range r.Servicos {
			sp := fmt.Sprintf("%s/Servicos/%d", p, j)
			lintAmount(add, sp+"/valorServico", s.ValorServico)
			lintAmount(add, sp+"/valorTotalServico", s.ValorTotalServico)
		}
		for j, t := range r.ImpostosRetido {
			if t.IsZero() {
				continue
			}
			tp := fmt.Sprintf("%s/ImpostosRetido/%d", p, j)
			ind := string(t.IndicadorImposto)
			if canon, ok := constants.CanonicalizeTaxIndicator(ind); !ok {
				add("%s/indicadorImposto: %q is not one of %s", tp, ind, strings.Join(constants.TaxIndicatorsAsStrings(), ", "))
			} else if string(canon) != ind {
				add("%s/indicadorImposto: %q should be written %q", tp, ind, canon)
			}
			lintAmount(add, tp+"/vlrImposto", t.VlrImposto)
		}
		for j, t := range r.Titulos {
			tp := fmt.Sprintf("%s/Titulos/%d", p, j)
			if v := string(t.IndicadorTipoTitulo); v != "" && !constants.ValidTitleType(v) {
				add("%s/indicadorTipoTitulo: %q must be P or R", tp, v)
			}
			if d := string(t.CnpjCpfCredorTitulo); d != "" && !ValidCNPJ(d) && !ValidCPF(d) {
				add("%s/cnpjCpfCredorTitulo: %q is neither a valid CNPJ nor CPF", tp, d)
			}
		}
	}
	sort.Strings(out)
	return out
}

func lintAmount(add func(string, ...any), path string, a Amount) {
	switch {
	case a.Quoted && a.Valid:
		add("%s: %q was given as text; use the number %s", path, a.Raw, a.Value.String())
	case !a.Valid && strings.TrimSpace(a.Raw) != "":
		add("%s: %q is not a number", path, a.Raw)
	}
}

func digits(s string) []int {
	var out []int
	for _, r := range s {
		if r >= '0' && r <= '9' {
			out = append(out, int(r-'0'))
		}
	}
	return out
}

func allSame(d []int) bool {
	for _, v := range d[1:] {
		if v != d[0] {
			return false
		}
	}
	return true
}

func checkDigit(d []int, weights []int) int {
	sum := 0
	for i, w := range weights {
		sum += d[i] * w
	}
	r := sum % 11
	if r < 2 {
		return 0
	}
	return 11 - r
}

// ValidCNPJ checks the two verifier digits of a CNPJ, punctuation ignored.
func ValidCNPJ(s string) bool {
	d := digits(s)
	if len(d) != 14 || allSame(d) {
		return false
	}
	w1 := []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	w2 := []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	return checkDigit(d, w1) == d[12] && checkDigit(d, w2) == d[13]
}

// ValidCPF checks the two verifier digits of a CPF, punctuation ignored.
func ValidCPF(s string) bool {
	d := digits(s)
	if len(d) != 11 || allSame(d) {
		return false
	}
	w1 := []int{10, 9, 8, 7, 6, 5, 4, 3, 2}
	w2 := []int{11, 10, 9, 8, 7, 6, 5, 4, 3, 2}
	return checkDigit(d, w1) == d[9] && checkDigit(d, w2) == d[10]
}
