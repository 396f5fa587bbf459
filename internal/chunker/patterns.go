package chunker

import "regexp"

// TitleOther is the title given to text not covered by any section pattern.
const TitleOther = "other"

// PriorityOther is the priority of uncovered text; it sorts after every pattern.
const PriorityOther = 0

// SectionPattern recognizes the header of one kind of section.
// Pattern must capture the header keyword in group 1 and match from the start
// of a line.
type SectionPattern struct {
	Title    string
	Pattern  *regexp.Regexp
	Priority int
}

// header builds a line-anchored, case-insensitive header regexp around the
// given keyword alternation. Markdown heading marks and bold markers are
// accepted before the keyword.
func header(keywords string) *regexp.Regexp {
	return regexp.MustCompile(`(?im)^[ \t]*(?:#{1,6}[ \t]*)?(?:\*\*|__)?(` + keywords + `)(?:[^\p{L}\p{N}_\n][^\n]*)?$`)
}

// DefaultPatterns is the priority-ranked section table used for property
// listings and owner handbooks. Equal priorities resolve by table order.
var DefaultPatterns = []SectionPattern{
	{Title: "pricing", Priority: 100, Pattern: header(`pric(?:e|es|ing)|rates?|tarifs?|prix|fees?|cost`)},
	{Title: "check_in_out", Priority: 90, Pattern: header(`check[- ]?in|check[- ]?out|arrival|departure|arriv[ée]e|d[ée]part`)},
	{Title: "house_rules", Priority: 85, Pattern: header(`house rules|rules|r[èe]glement|r[èe]gles`)},
	{Title: "cancellation", Priority: 80, Pattern: header(`cancell?ation|refunds?|annulation`)},
	{Title: "amenities", Priority: 70, Pattern: header(`amenities|equipment|features|facilities|[ée]quipements?`)},
	{Title: "capacity", Priority: 65, Pattern: header(`capacity|bedrooms?|sleeps|guests|couchages?|capacit[ée]`)},
	{Title: "location", Priority: 60, Pattern: header(`location|address|neighbou?rhood|getting there|access|adresse|quartier|emplacement`)},
	{Title: "contact", Priority: 50, Pattern: header(`contact|emergency|host|h[ôo]te`)},
	{Title: "description", Priority: 40, Pattern: header(`description|about|overview|pr[ée]sentation`)},
}
