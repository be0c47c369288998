package scripture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindReferencesPortuguese(t *testing.T) {
	rs := NewRuleset("pt-BR")

	refs := rs.FindReferences("Como vimos em João 3:16, e também em Salmos 23, Deus cuida de nós.")
	require.Len(t, refs, 2)
	assert.Equal(t, "john", refs[0].Book)
	assert.Equal(t, "psalms", refs[1].Book)
}

func TestFindReferencesOrdinalBooks(t *testing.T) {
	rs := NewRuleset("pt-BR")

	refs := rs.FindReferences("O texto de 1 Coríntios 13:4-7 fala do amor.")
	require.Len(t, refs, 1)
	assert.Equal(t, "corinthians", refs[0].Book)
}

func TestFindReferencesEnglish(t *testing.T) {
	rs := NewRuleset("en")

	refs := rs.FindReferences("Turn to Romans 8:28 and then Psalm 119.")
	require.Len(t, refs, 2)
	assert.Equal(t, "romans", refs[0].Book)
	assert.Equal(t, "psalms", refs[1].Book)
}

func TestCountReferencesNoFalsePositives(t *testing.T) {
	rs := NewRuleset("pt-BR")

	// Book names without a chapter number are not citations.
	assert.Equal(t, 0, rs.CountReferences("O evangelho de João fala sobre a luz."))
	assert.Equal(t, 0, rs.CountReferences("nenhuma referência aqui"))
	assert.False(t, rs.HasReference(""))
}

func TestSharedBooks(t *testing.T) {
	rs := NewRuleset("pt-BR")

	a := "Em Romanos 8 e João 1:1 vemos isso."
	b := "Voltando a Romanos 8:28, o apóstolo afirma."
	shared := rs.SharedBooks(a, b)
	require.Len(t, shared, 1)
	assert.Equal(t, "romans", shared[0])
}

func TestRulesetDefaultsToPortuguese(t *testing.T) {
	rs := NewRuleset("unknown")
	assert.Equal(t, "pt-BR", rs.Language)
}
