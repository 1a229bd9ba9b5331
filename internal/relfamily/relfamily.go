// Package relfamily classifies hyperedge verbs into a closed taxonomy of
// relation families. The taxonomy and its enumeration order are fixed across
// builds: downstream event vectors compare the family one-hot block by
// index, so reordering the family list would silently invalidate every
// previously built event vector.
package relfamily

import "strings"

// Family is one member of the closed relation-family taxonomy.
type Family string

const (
	Announce    Family = "announce"
	Acquire     Family = "acquire"
	PartnerWith Family = "partner_with"
	Compete     Family = "compete"
	Supply      Family = "supply"
	InvestIn    Family = "invest_in"
	Launch      Family = "launch"
	Regulate    Family = "regulate"
	Other       Family = "other"
)

// Families enumerates every member in the fixed, never-reordered index
// order used by the one-hot encoding.
var Families = []Family{
	Announce,
	Acquire,
	PartnerWith,
	Compete,
	Supply,
	InvestIn,
	Launch,
	Regulate,
	Other,
}

var familyIndex = func() map[Family]int {
	idx := make(map[Family]int, len(Families))
	for i, f := range Families {
		idx[f] = i
	}
	return idx
}()

// rule is one substring or exact-match classification rule, tried in order.
type rule struct {
	family Family
	verbs  []string
	exact  bool
}

// rules is the deterministic, ordered rule set over the lowercased verb
// string. Exact rules are tried before substring rules for a family so a
// verb like "compete" isn't accidentally swallowed by a broader substring
// elsewhere; rule groups themselves are ordered by taxonomy specificity.
var rules = []rule{
	{family: Acquire, exact: true, verbs: []string{"acquire", "acquired", "acquires", "buy", "bought", "purchase", "purchased"}},
	{family: Acquire, verbs: []string{"acqui", "takeover", "buyout"}},

	{family: PartnerWith, exact: true, verbs: []string{"partner", "partnered", "partners", "team", "teamed"}},
	{family: PartnerWith, verbs: []string{"partner", "collaborat", "joint venture", "alliance"}},

	{family: Compete, exact: true, verbs: []string{"compete", "competed", "competes", "rival", "rivaled"}},
	{family: Compete, verbs: []string{"compet", "rival", "undercut"}},

	{family: Supply, exact: true, verbs: []string{"supply", "supplied", "supplies", "ship", "shipped"}},
	{family: Supply, verbs: []string{"suppl", "distribut", "deliver"}},

	{family: InvestIn, exact: true, verbs: []string{"invest", "invested", "invests", "fund", "funded", "backed"}},
	{family: InvestIn, verbs: []string{"invest", "fund", "bankroll", "financ"}},

	{family: Launch, exact: true, verbs: []string{"launch", "launched", "launches", "unveil", "unveiled", "release", "released"}},
	{family: Launch, verbs: []string{"launch", "unveil", "debut", "introduc"}},

	{family: Regulate, exact: true, verbs: []string{"regulate", "regulated", "regulates", "ban", "banned", "fine", "fined", "sue", "sued"}},
	{family: Regulate, verbs: []string{"regulat", "sanction", "penaliz", "penalis", "prohibit", "lawsuit"}},

	{family: Announce, exact: true, verbs: []string{"announce", "announced", "announces", "say", "said", "states", "stated"}},
	{family: Announce, verbs: []string{"announc", "reveal", "confirm", "report"}},
}

// Classify deterministically maps a verb string to a relation family,
// falling back to Other when no rule matches. Classification is a pure
// function of the lowercased verb.
func Classify(verb string) Family {
	lower := strings.ToLower(strings.TrimSpace(verb))
	if lower == "" {
		return Other
	}

	for _, r := range rules {
		for _, candidate := range r.verbs {
			if r.exact {
				if lower == candidate {
					return r.family
				}
				continue
			}
			if strings.Contains(lower, candidate) {
				return r.family
			}
		}
	}
	return Other
}

// OneHot returns a length-len(Families) vector with a single 1.0 at the
// family's fixed index.
func OneHot(f Family) []float32 {
	out := make([]float32, len(Families))
	if idx, ok := familyIndex[f]; ok {
		out[idx] = 1.0
	} else {
		out[familyIndex[Other]] = 1.0
	}
	return out
}

// Dim returns the fixed width F of the one-hot encoding.
func Dim() int {
	return len(Families)
}
