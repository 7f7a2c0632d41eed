package spelling

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/batflow/batverify/internal/models"
)

// Policy selects how findings from multiple languages are reconciled.
type Policy string

const (
	// PolicyUnion reports the union of all languages' findings,
	// deduplicated by (offset, length); the first occurrence wins.
	PolicyUnion Policy = "union"
	// PolicyIntersection keeps a finding only when every configured
	// language flags the same offset and length. A word valid in either
	// language of a bilingual packaging text is not an error. This
	// suppresses cross-language false positives at the cost of possibly
	// missing genuine single-language errors.
	PolicyIntersection Policy = "intersection"
)

// checker is the slice of Client the reconciler depends on.
type checker interface {
	Check(ctx context.Context, text, language string) ([]models.SpellError, error)
}

// Reconciler runs the grammar check in each configured language and merges
// the findings under the configured policy, then applies domain
// false-positive suppression.
type Reconciler struct {
	client    checker
	languages []string
	policy    Policy
}

// NewReconciler wires a reconciler. With no languages configured it checks
// French and US English, the usual bilingual packaging pair.
func NewReconciler(client checker, languages []string, policy Policy) *Reconciler {
	if len(languages) == 0 {
		languages = []string{"fr", "en-US"}
	}
	if policy != PolicyUnion {
		policy = PolicyIntersection
	}
	return &Reconciler{client: client, languages: languages, policy: policy}
}

// CheckText returns the reconciled error set for the text. Spelling is a
// best-effort signal: if the grammar service is unreachable the result is
// empty, never an error, so the rest of the pipeline continues.
func (r *Reconciler) CheckText(ctx context.Context, text string) models.SpellCheckResult {
	perLanguage := make([][]models.SpellError, 0, len(r.languages))
	for _, lang := range r.languages {
		found, err := r.client.Check(ctx, text, lang)
		if err != nil {
			slog.Warn("Grammar check failed; degrading to empty result.", "language", lang, "error", err)
			return models.SpellCheckResult{Errors: []models.SpellError{}}
		}
		perLanguage = append(perLanguage, found)
	}

	reconciled := r.reconcile(perLanguage)

	filtered := make([]models.SpellError, 0, len(reconciled))
	for _, e := range reconciled {
		if isFalsePositive(e.Word, e.Rule) {
			continue
		}
		filtered = append(filtered, e)
	}
	return models.SpellCheckResult{Errors: filtered, TotalErrors: len(filtered)}
}

func (r *Reconciler) reconcile(perLanguage [][]models.SpellError) []models.SpellError {
	switch r.policy {
	case PolicyUnion:
		seen := map[string]bool{}
		var out []models.SpellError
		for _, found := range perLanguage {
			for _, e := range found {
				if seen[key(e)] {
					continue
				}
				seen[key(e)] = true
				out = append(out, e)
			}
		}
		return out
	default:
		if len(perLanguage) == 0 {
			return nil
		}
		// Keep findings from the first language confirmed by all others.
		confirmed := perLanguage[0]
		for _, found := range perLanguage[1:] {
			keys := map[string]bool{}
			for _, e := range found {
				keys[key(e)] = true
			}
			var kept []models.SpellError
			for _, e := range confirmed {
				if keys[key(e)] {
					kept = append(kept, e)
				}
			}
			confirmed = kept
		}
		// A language may flag the same span twice under different rules.
		seen := map[string]bool{}
		var out []models.SpellError
		for _, e := range confirmed {
			if seen[key(e)] {
				continue
			}
			seen[key(e)] = true
			out = append(out, e)
		}
		return out
	}
}

// inciPattern matches common INCI ingredient terms (latin botanical and
// chemical names) that every dictionary flags.
var inciPattern = regexp.MustCompile(`(?i)\b(sodium|potassium|aqua|parfum|citric|acid|sulfate|chloride|benzoate|sorbate|bicarbonate|gluconate|citrate|betaine|cocamidopropyl|coco|xanthan|gum|fragrance|olea|europaea|olive|fruit|oil|tocopherol|glycerin|aloe|barbadensis|leaf|juice|cocos|nucifera|prunus|amygdalus|dulcis|butyrospermum|parkii|shea|helianthus|annuus|seed|simmondsia|chinensis|jojoba|rosa|canina|rosehip|lavandula|angustifolia|melaleuca|alternifolia|chamomilla|recutita|calendula|officinalis|centella|asiatica|panthenol|niacinamide|hyaluronic|retinol|ascorbic|linalool|limonene|citronellol|geraniol|eugenol|coumarin|benzyl|salicylate|hexyl|cinnamal)\b`)

// productCodePattern matches SKU-style codes: 8+ alphanumerics. Mixed
// letters and digits are required by isProductCode.
var productCodePattern = regexp.MustCompile(`(?i)^[A-Z0-9]{8,}$`)

var (
	pureNumericPattern = regexp.MustCompile(`^[\d\s]+$`)
	measurementPattern = regexp.MustCompile(`(?i)^[\d.,]+\s*(g|oz|ml|fl\.?oz|mm|cm|kg|lb)?\??$`)
	hasLetterPattern   = regexp.MustCompile(`(?i)[A-Z]`)
	hasDigitPattern    = regexp.MustCompile(`\d`)
)

// brandTerms is the brand-specific allowlist, matched case-insensitively.
var brandTerms = map[string]bool{
	"éco-recharger":    true,
	"éco-recharge":     true,
	"éco-rechargeable": true,
	"ecorefill":        true,
	"900care":          true,
}

// ignoredRules are formatting rules tied to one language's typographic
// conventions; they do not apply to bilingual packaging text.
var ignoredRules = map[string]bool{
	"FRENCH_WHITESPACE": true, // non-breaking space before ? ! : ;
	"FR_TYPOGRAPHY":     true,
	"UNPAIRED_BRACKETS": true,
}

func isProductCode(word string) bool {
	return productCodePattern.MatchString(word) &&
		hasLetterPattern.MatchString(word) &&
		hasDigitPattern.MatchString(word)
}

// isFalsePositive applies the domain suppression rules in order: ignored
// formatting rules, INCI terms, product codes, brand terms, pure numerics
// and barcodes, measurements with units.
func isFalsePositive(word, rule string) bool {
	if ignoredRules[rule] {
		return true
	}
	if inciPattern.MatchString(word) {
		return true
	}
	if isProductCode(word) {
		return true
	}
	if brandTerms[strings.ToLower(word)] {
		return true
	}
	if pureNumericPattern.MatchString(word) {
		return true
	}
	if measurementPattern.MatchString(word) {
		return true
	}
	return false
}
