package filename

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestParse_Conventional verifies the full five-part convention.
func TestParse_Conventional(t *testing.T) {
	p, ok := Parse("SKU_1V13BR03DQ23_-_Sachet_Gel_mains_-_1_mois_retail_-_ENFR_-_09.02.2026.pdf")
	require.True(t, ok)

	assert.Equal(t, "1V13BR03DQ23", p.SKU)
	assert.Equal(t, "Sachet Gel mains", p.ProductName)
	assert.Equal(t, "1 mois retail", p.Description)
	assert.Equal(t, []string{"FR", "EN"}, p.Languages)
	assert.Equal(t, "09.02.2026", p.Date)
}

// TestParse_SpaceSeparator accepts " - " in place of "_-_".
func TestParse_SpaceSeparator(t *testing.T) {
	p, ok := Parse("SKU ABC123 - Tube Dentifrice - 75ml retail - FR - 01.01.2026.pdf")
	require.True(t, ok)

	assert.Equal(t, "ABC123", p.SKU)
	assert.Equal(t, "Tube Dentifrice", p.ProductName)
	assert.Equal(t, []string{"FR"}, p.Languages)
}

// TestParse_DuplicateSuffix strips the " (1)" a browser appends to a
// re-downloaded file.
func TestParse_DuplicateSuffix(t *testing.T) {
	p, ok := Parse("SKU_ABC123_-_Produit_-_Desc_-_FR_-_01.01.2026 (2).pdf")
	require.True(t, ok)
	assert.Equal(t, "01.01.2026", p.Date)
}

// TestParse_MissingDate tolerates the short four-part form.
func TestParse_MissingDate(t *testing.T) {
	p, ok := Parse("SKU_ABC123_-_Produit_-_Desc_-_ENFR.pdf")
	require.True(t, ok)
	assert.Equal(t, []string{"FR", "EN"}, p.Languages)
	assert.Empty(t, p.Date)
}

// TestParse_Unconventional rejects names outside the convention so the
// caller can fall back to manual metadata.
func TestParse_Unconventional(t *testing.T) {
	for _, name := range []string{
		"final_v2.pdf",
		"scan001.pdf",
		"SKU_onlysku.pdf",
		"Produit_-_Desc_-_FR_-_01.01.2026.pdf", // no SKU prefix
	} {
		_, ok := Parse(name)
		assert.False(t, ok, "expected %q to be rejected", name)
	}
}

// TestParse_UnknownLanguageToken keeps an unrecognized language token
// verbatim instead of dropping it.
func TestParse_UnknownLanguageToken(t *testing.T) {
	p, ok := Parse("SKU_ABC123_-_Produit_-_Desc_-_ZZ_-_01.01.2026.pdf")
	require.True(t, ok)
	assert.Equal(t, []string{"ZZ"}, p.Languages)
}

func TestDisplayName(t *testing.T) {
	p, ok := Parse("SKU_ABC123_-_Sachet_Gel_mains_-_1_mois_retail_-_FR.pdf")
	require.True(t, ok)
	assert.Equal(t, "Sachet Gel mains - 1 mois retail", DisplayName(p))
}
