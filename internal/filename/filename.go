// Package filename parses the BAT naming convention used by the packaging
// team. Parsing is pure and independent of storage.
package filename

import (
	"regexp"
	"strings"
)

// Parsed is the structured information carried by a conventional BAT
// filename:
//
//	SKU_{sku}_-_{productName}_-_{description}_-_{languages}_-_{date}.pdf
//
// Example: SKU_1V13BR03DQ23_-_Sachet_Gel_mains_-_1_mois_retail_-_ENFR_-_09.02.2026.pdf
type Parsed struct {
	SKU         string
	ProductName string
	Description string
	Languages   []string
	Date        string
}

var (
	extRe       = regexp.MustCompile(`(?i)\.pdf$`)
	duplicateRe = regexp.MustCompile(`\s*\(\d+\)$`)
	separatorRe = regexp.MustCompile(`_-_|\s-\s`)
	skuRe       = regexp.MustCompile(`(?i)^SKU[_\s]?(.+)$`)
)

// knownLanguages are the language codes recognized inside the compound
// language token ("ENFR" -> EN, FR). Order fixes the output order.
var knownLanguages = []string{"FR", "EN", "DE", "ES", "IT", "NL"}

// Parse extracts the structured fields from a BAT filename. The second
// return value is false when the name does not follow the convention;
// callers fall back to user-supplied metadata in that case.
func Parse(name string) (Parsed, bool) {
	clean := extRe.ReplaceAllString(name, "")
	clean = duplicateRe.ReplaceAllString(clean, "")

	parts := separatorRe.Split(clean, -1)
	if len(parts) < 4 {
		return Parsed{}, false
	}

	m := skuRe.FindStringSubmatch(parts[0])
	if m == nil {
		return Parsed{}, false
	}
	sku := strings.ReplaceAll(strings.TrimSpace(m[1]), "_", "")

	p := Parsed{
		SKU:         sku,
		ProductName: field(parts[1]),
		Description: field(parts[2]),
		Languages:   parseLanguages(strings.ReplaceAll(strings.TrimSpace(parts[3]), "_", "")),
	}
	if len(parts) > 4 {
		p.Date = strings.ReplaceAll(strings.TrimSpace(parts[4]), "_", ".")
	}
	return p, true
}

// DisplayName builds a human-readable label from a parsed filename.
func DisplayName(p Parsed) string {
	return p.ProductName + " - " + p.Description
}

func field(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "_", " ")
}

func parseLanguages(raw string) []string {
	upper := strings.ToUpper(raw)
	var langs []string
	for _, code := range knownLanguages {
		if strings.Contains(upper, code) {
			langs = append(langs, code)
		}
	}
	if len(langs) == 0 {
		return []string{raw}
	}
	return langs
}
