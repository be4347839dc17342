package feed

import (
	"sort"

	"bondtape/pkg/contracts/domain"
)

// Instrument is one row of the bond reference table. The Rule144A flag only
// selects which feed a CUSIP is read from; reconciliation never consults it.
type Instrument struct {
	CUSIP    string `json:"cusip" yaml:"cusip"`
	Symbol   string `json:"symbol,omitempty" yaml:"symbol"`
	Rule144A bool   `json:"rule_144a" yaml:"rule_144a"`
}

// ReferenceTable indexes the instrument universe by CUSIP.
type ReferenceTable struct {
	byCUSIP map[string]Instrument
}

// NewReferenceTable builds a table from reference rows. Later duplicates of
// a CUSIP replace earlier ones.
func NewReferenceTable(rows []Instrument) *ReferenceTable {
	t := &ReferenceTable{byCUSIP: make(map[string]Instrument, len(rows))}
	for _, r := range rows {
		if r.CUSIP == "" {
			continue
		}
		t.byCUSIP[r.CUSIP] = r
	}
	return t
}

// Len reports the number of distinct instruments.
func (t *ReferenceTable) Len() int { return len(t.byCUSIP) }

// Lookup returns the reference row for a CUSIP.
func (t *ReferenceTable) Lookup(cusip string) (Instrument, bool) {
	r, ok := t.byCUSIP[cusip]
	return r, ok
}

// CUSIPs returns the sorted identifier list a run of the given feed type
// covers. The standard feed carries every disseminated issue; the 144A run
// covers only the private-placement subset.
func (t *ReferenceTable) CUSIPs(feedType domain.FeedType) []string {
	out := make([]string, 0, len(t.byCUSIP))
	for cusip, r := range t.byCUSIP {
		if feedType == domain.FeedTypeRule144A && !r.Rule144A {
			continue
		}
		out = append(out, cusip)
	}
	sort.Strings(out)
	return out
}
