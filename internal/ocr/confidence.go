package ocr

import (
	"regexp"
	"strings"
)

var (
	reDate   = regexp.MustCompile(`\b\d{2}/\d{2}/\d{4}\b`)
	reCNPJ   = regexp.MustCompile(`\b\d{2}\.?\d{3}\.?\d{3}/?\d{4}-?\d{2}\b`)
	reCurr   = regexp.MustCompile(`r\$|\breais\b`)
	reAmount = regexp.MustCompile(`\b\d{1,3}(\.\d{3})*,\d{2}\b`)
	reNFSe   = regexp.MustCompile(`nfs-?e|nota fiscal|prestador|tomador`)
)

func hasDatePattern(s string) bool     { return reDate.MatchString(s) }
func hasCNPJPattern(s string) bool     { return reCNPJ.MatchString(s) }
func hasCurrencyPattern(s string) bool { return reCurr.MatchString(s) }
func hasAmountPattern(s string) bool   { return reAmount.MatchString(s) }

// naive heuristic confidence based on what an NFS-e usually prints
func heuristicConfidence(txt string) float32 {
	if strings.TrimSpace(txt) == "" {
		return 0
	}
	txtL := strings.ToLower(txt)
	score := float32(0.2) // base
	if hasDatePattern(txtL) {
		score += 0.15
	}
	if hasCNPJPattern(txtL) {
		score += 0.2
	}
	if hasCurrencyPattern(txtL) {
		score += 0.1
	}
	if hasAmountPattern(txtL) {
		score += 0.15
	}
	if reNFSe.MatchString(txtL) {
		score += 0.1
	}
	if len(txt) > 200 {
		score += 0.1
	} // enough content
	if score > 1.0 {
		score = 1.0
	}
	return score
}
