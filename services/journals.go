package services

import (
	"strings"
)

// JournalInfo describes a journal resolved from a DOI pattern.
type JournalInfo struct {
	ShortName string
	FullName  string
	Publisher string
}

// journalRule maps a DOI pattern to a journal. A pattern of the form
// "10.1039/..XX" is positional: ".." stands for any two characters and XX
// must equal characters 3-4 of the DOI section after the registrant prefix.
// All other patterns are plain prefixes. Rule order is significant.
type journalRule struct {
	pattern string
	info    JournalInfo
}

// rscPrefix is the Royal Society of Chemistry registrant. RSC encodes the
// sub-journal at a fixed offset of the DOI suffix instead of a prefix.
const rscPrefix = "10.1039/"

var defaultJournalRules = []journalRule{
	// RSC journals, matched by characters 3-4 of the suffix
	{"10.1039/..ob", JournalInfo{"Org. Biomol. Chem.", "Organic & Biomolecular Chemistry", "RSC"}},
	{"10.1039/..cc", JournalInfo{"Chem. Commun.", "Chemical Communications", "RSC"}},
	{"10.1039/..dt", JournalInfo{"Dalton Trans.", "Dalton Transactions", "RSC"}},
	{"10.1039/..cs", JournalInfo{"Chem. Soc. Rev.", "Chemical Society Reviews", "RSC"}},
	// ACS journals, plain prefix match
	{"10.1021/acs.joc", JournalInfo{"J. Org. Chem.", "The Journal of Organic Chemistry", "ACS"}},
	{"10.1021/ja", JournalInfo{"J. Am. Chem. Soc.", "Journal of the American Chemical Society", "ACS"}},
	{"10.1021/jo", JournalInfo{"J. Org. Chem.", "The Journal of Organic Chemistry", "ACS"}},
	{"10.1021/ol", JournalInfo{"Org. Lett.", "Organic Letters", "ACS"}},
	// Beilstein
	{"10.3762/bjoc", JournalInfo{"Beilstein J. Org. Chem.", "Beilstein Journal of Organic Chemistry", "Beilstein"}},
}

// JournalMapper resolves journal names from DOI patterns. It is used only to
// backfill a missing journal after a CrossRef fetch; it never overwrites a
// genuine value and never guesses when no rule matches.
type JournalMapper struct {
	rules []journalRule
}

// NewJournalMapper returns a mapper with the built-in rule table.
func NewJournalMapper() *JournalMapper {
	return &JournalMapper{rules: defaultJournalRules}
}

// Lookup returns the journal info for a DOI, or ok=false when no rule
// matches. The RSC positional rule is a best-effort heuristic tied to one
// publisher's historical DOI scheme.
func (m *JournalMapper) Lookup(doi string) (JournalInfo, bool) {
	if doi == "" {
		return JournalInfo{}, false
	}
	doi = strings.ToLower(doi)

	if strings.HasPrefix(doi, rscPrefix) {
		suffix := doi[len(rscPrefix):]
		if len(suffix) >= 4 {
			code := suffix[2:4]
			for _, rule := range m.rules {
				if rule.pattern == rscPrefix+".."+code {
					return rule.info, true
				}
			}
		}
		return JournalInfo{}, false
	}

	for _, rule := range m.rules {
		if strings.Contains(rule.pattern, "..") {
			continue
		}
		if strings.HasPrefix(doi, rule.pattern) {
			return rule.info, true
		}
	}
	return JournalInfo{}, false
}
