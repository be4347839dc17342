package reconcile

import (
	"context"
	"log/slog"

	"bondtape/pkg/contracts/domain"
)

// seqRole tags how a sequence number appears inside a correction group.
type seqRole string

const (
	// roleNew is a correction's own sequence number.
	roleNew seqRole = "new"
	// roleOld is the sequence number a correction supersedes.
	roleOld seqRole = "old"
)

// correctionGroup is the disambiguation scope for correction sequence
// numbers: instrument, date and execution time.
type correctionGroup struct {
	cusip string
	date  int64
	time  string
}

type roleEntry struct {
	seq  string
	role seqRole
}

// seqPair is a resolved single-hop correction relationship: seq is the final
// record, orig the sequence number it supersedes.
type seqPair struct {
	seq  string
	orig string
}

// CorrectionChainResolver collapses correction events into final corrected
// records and substitutes them for the trades they supersede.
//
// A correction's back-reference may point at another correction rather than
// a trade, and corrections at one timestamp can share overlapping sequence
// numbers, so a naive one-hop pair lookup is not enough. The resolver counts
// sequence-number role appearances per group: napp is how often a number
// shows up in either role, ntype how many distinct roles it takes. Numbers
// with napp==1, or napp>1 in a single consistent role, resolve by simple
// pairing; numbers used in both roles belong to true multi-hop chains and
// are left alone (single-hop resolution only).
type CorrectionChainResolver struct {
	logger *slog.Logger
}

// NewCorrectionChainResolver creates a correction resolver.
func NewCorrectionChainResolver(logger *slog.Logger) *CorrectionChainResolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &CorrectionChainResolver{logger: logger}
}

// Resolve applies the correction partition to the trade ledger. Trades
// superseded by a cleaned correction are removed and the correction row is
// inserted in their place as the data of record. Cleaned corrections whose
// target is not in the surviving ledger are discarded; their trade was
// cancelled or never arrived.
func (r *CorrectionChainResolver) Resolve(ctx context.Context, trades, corrections []domain.TradeEvent) []domain.TradeEvent {
	if len(corrections) == 0 {
		return trades
	}

	cleaned := r.clean(corrections)

	// Index cleaned corrections by the sequence number they supersede. The
	// match against trades is instrument + date only: the correcting event
	// need not share its target's execution time.
	type applyKey struct {
		cusip string
		date  int64
		seq   string
	}
	byTarget := make(map[applyKey][]int, len(cleaned))
	for i, w := range cleaned {
		k := applyKey{cusip: w.CUSIP, date: w.Date.Unix(), seq: w.OrigSeq}
		byTarget[k] = append(byTarget[k], i)
	}

	out := make([]domain.TradeEvent, 0, len(trades))
	matched := make(map[int]bool)
	removed := 0
	for _, t := range trades {
		k := applyKey{cusip: t.CUSIP, date: t.Date.Unix(), seq: t.Seq}
		if idxs, ok := byTarget[k]; ok {
			for _, i := range idxs {
				matched[i] = true
			}
			removed++
			continue
		}
		out = append(out, t)
	}

	// Substitute the matched corrections, deduplicated on the full linkage
	// identity so a correction disseminated twice lands once.
	type dedupKey struct {
		cusip       string
		date        int64
		seq         string
		orig        string
		price       float64
		volume      float64
		volumeKnown bool
	}
	seen := make(map[dedupKey]bool)
	substituted := 0
	for i, w := range cleaned {
		if !matched[i] {
			continue
		}
		dk := dedupKey{
			cusip:       w.CUSIP,
			date:        w.Date.Unix(),
			seq:         w.Seq,
			orig:        w.OrigSeq,
			price:       w.Price,
			volume:      w.Volume,
			volumeKnown: w.VolumeKnown,
		}
		if seen[dk] {
			continue
		}
		seen[dk] = true
		out = append(out, w)
		substituted++
	}

	r.logger.DebugContext(ctx, "corrections resolved",
		slog.Int("corrections", len(corrections)),
		slog.Int("cleaned", len(cleaned)),
		slog.Int("trades_removed", removed),
		slog.Int("substituted", substituted))

	return out
}

// clean reduces the raw correction partition to exactly one row per logical
// correction event, with OrigSeq rewritten to the resolved back-reference.
func (r *CorrectionChainResolver) clean(corrections []domain.TradeEvent) []domain.TradeEvent {
	// Role-tagged sequence-number appearances per group.
	entries := make(map[correctionGroup][]roleEntry)
	groupOrder := make([]correctionGroup, 0)
	rowsByGroup := make(map[correctionGroup][]domain.TradeEvent)

	for _, w := range corrections {
		g := correctionGroup{cusip: w.CUSIP, date: w.Date.Unix(), time: w.Time}
		if _, ok := rowsByGroup[g]; !ok {
			groupOrder = append(groupOrder, g)
		}
		rowsByGroup[g] = append(rowsByGroup[g], w)
		entries[g] = append(entries[g],
			roleEntry{seq: w.Seq, role: roleNew},
			roleEntry{seq: w.OrigSeq, role: roleOld},
		)
	}

	var cleaned []domain.TradeEvent
	type cleanedKey struct {
		seq  string
		orig string
	}

	for _, g := range groupOrder {
		napp := make(map[string]int)
		roles := make(map[string]map[seqRole]bool)
		for _, e := range entries[g] {
			napp[e.seq]++
			if roles[e.seq] == nil {
				roles[e.seq] = make(map[seqRole]bool)
			}
			roles[e.seq][e.role] = true
		}

		// An entry survives when its sequence number is resolvable by
		// simple pairing: a single appearance, or repeated appearances in
		// one consistent role (independent one-hop pairs sharing the
		// timestamp). Dual-role numbers are chain links and drop out.
		var kept []roleEntry
		keptSeen := make(map[roleEntry]bool)
		for _, e := range entries[g] {
			if napp[e.seq] > 1 && len(roles[e.seq]) != 1 {
				continue
			}
			// Collapse duplicate (seq, role) appearances before pairing.
			if keptSeen[e] {
				continue
			}
			keptSeen[e] = true
			kept = append(kept, e)
		}
		if len(kept) == 0 {
			continue
		}

		var news, olds []roleEntry
		for _, e := range kept {
			if e.role == roleNew {
				news = append(news, e)
			} else {
				olds = append(olds, e)
			}
		}

		var pairs []seqPair
		if len(news) == 1 && len(olds) == 1 {
			// One pair in the group: the NEW/OLD pair is the unique
			// resolution.
			pairs = append(pairs, seqPair{seq: news[0].seq, orig: olds[0].seq})
		} else {
			// Multiple independent corrections share this timestamp. Role
			// counting alone cannot tell which OLD belongs to which NEW, so
			// re-attach each NEW's true back-reference from its source row.
			pairSeen := make(map[seqPair]bool)
			for _, e := range news {
				for _, w := range rowsByGroup[g] {
					if w.Seq != e.seq {
						continue
					}
					p := seqPair{seq: w.Seq, orig: w.OrigSeq}
					if pairSeen[p] {
						continue
					}
					pairSeen[p] = true
					pairs = append(pairs, p)
				}
			}
		}

		// Join the resolved pairs back to the correction rows to recover
		// the remaining fields, one cleaned row per logical correction.
		emitted := make(map[cleanedKey]bool)
		for _, p := range pairs {
			for _, w := range rowsByGroup[g] {
				if w.Seq != p.seq {
					continue
				}
				ck := cleanedKey{seq: p.seq, orig: p.orig}
				if emitted[ck] {
					continue
				}
				emitted[ck] = true
				w.OrigSeq = p.orig
				cleaned = append(cleaned, w)
			}
		}
	}

	return cleaned
}
