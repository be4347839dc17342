package feed

import (
	"fmt"
	"time"

	"bondtape/internal/errors"
	"bondtape/pkg/contracts/domain"
)

const dateLayout = "2006-01-02"

// VerifySegments checks the feed-segment ownership of a 144A run's two
// halves: the standard segment must hold no events dated on or after the
// boundary and the 144A segment none before it. A violation means the
// per-segment sequence numbers cannot be trusted for linkage, so it is a
// fatal integrity error. Rows with unparseable dates are the normalizer's
// problem and pass the check.
func VerifySegments(standard, rule144a []domain.RawTradeEvent, boundary time.Time) error {
	for _, e := range standard {
		d, err := time.Parse(dateLayout, e.ExecutionDate)
		if err != nil {
			continue
		}
		if !d.Before(boundary) {
			return errors.NewIntegrityError(fmt.Sprintf(
				"standard segment event %s/%s dated %s on or after segment boundary %s",
				e.CUSIP, e.Seq, e.ExecutionDate, boundary.Format(dateLayout)))
		}
	}
	for _, e := range rule144a {
		d, err := time.Parse(dateLayout, e.ExecutionDate)
		if err != nil {
			continue
		}
		if d.Before(boundary) {
			return errors.NewIntegrityError(fmt.Sprintf(
				"144a segment event %s/%s dated %s before segment boundary %s",
				e.CUSIP, e.Seq, e.ExecutionDate, boundary.Format(dateLayout)))
		}
	}
	return nil
}

// SpliceSegments joins the verified halves of a 144A run into one stream,
// standard segment first. Call VerifySegments before splicing; this function
// only concatenates.
func SpliceSegments(standard, rule144a []domain.RawTradeEvent) []domain.RawTradeEvent {
	out := make([]domain.RawTradeEvent, 0, len(standard)+len(rule144a))
	out = append(out, standard...)
	out = append(out, rule144a...)
	return out
}
