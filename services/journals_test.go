package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJournalMapperRSCPositionalMatch(t *testing.T) {
	mapper := NewJournalMapper()

	cases := []struct {
		doi  string
		want string
	}{
		// The year digits before the code vary, the code position does not.
		{"10.1039/d5ob00519a", "Org. Biomol. Chem."},
		{"10.1039/c9ob01234b", "Org. Biomol. Chem."},
		{"10.1039/d4cc01122k", "Chem. Commun."},
		{"10.1039/d3dt00999f", "Dalton Trans."},
		{"10.1039/d1cs00456h", "Chem. Soc. Rev."},
	}
	for _, tc := range cases {
		info, ok := mapper.Lookup(tc.doi)
		require.True(t, ok, "expected match for %s", tc.doi)
		assert.Equal(t, tc.want, info.ShortName)
		assert.Equal(t, "RSC", info.Publisher)
	}
}

func TestJournalMapperRSCUnknownCode(t *testing.T) {
	mapper := NewJournalMapper()

	// Unknown journal code: no guess, no fallback to a prefix rule.
	_, ok := mapper.Lookup("10.1039/d5xx00519a")
	assert.False(t, ok)

	// Suffix too short to carry a code.
	_, ok = mapper.Lookup("10.1039/d5o")
	assert.False(t, ok)
}

func TestJournalMapperPrefixRules(t *testing.T) {
	mapper := NewJournalMapper()

	info, ok := mapper.Lookup("10.1021/acs.joc.5c00313")
	require.True(t, ok)
	assert.Equal(t, "J. Org. Chem.", info.ShortName)
	assert.Equal(t, "ACS", info.Publisher)

	info, ok = mapper.Lookup("10.1021/ja0543210")
	require.True(t, ok)
	assert.Equal(t, "J. Am. Chem. Soc.", info.ShortName)

	info, ok = mapper.Lookup("10.3762/bjoc.21.100")
	require.True(t, ok)
	assert.Equal(t, "Beilstein J. Org. Chem.", info.ShortName)
}

func TestJournalMapperPrefixRuleOrder(t *testing.T) {
	mapper := NewJournalMapper()

	// "10.1021/acs.joc" must win before the shorter "10.1021/ja" could
	// never match it, and "10.1021/jo" must still work on its own.
	info, ok := mapper.Lookup("10.1021/jo0101234")
	require.True(t, ok)
	assert.Equal(t, "J. Org. Chem.", info.ShortName)
}

func TestJournalMapperNoMatch(t *testing.T) {
	mapper := NewJournalMapper()

	for _, doi := range []string{"", "10.1002/anie.202500123", "10.1016/j.tet.2025.01.001"} {
		_, ok := mapper.Lookup(doi)
		assert.False(t, ok, "expected no match for %q", doi)
	}
}

func TestJournalMapperIsCaseInsensitive(t *testing.T) {
	mapper := NewJournalMapper()

	info, ok := mapper.Lookup("10.1039/D5OB00519A")
	require.True(t, ok)
	assert.Equal(t, "Org. Biomol. Chem.", info.ShortName)
}
