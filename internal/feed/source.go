// Package feed owns access to the upstream dissemination feed: instrument
// reference data, CUSIP chunking, paced and retried fetches, and the
// segment integrity checks for Rule 144A runs.
package feed

import (
	"context"

	"bondtape/pkg/contracts/domain"
)

// Source fetches the raw trade events for one chunk of CUSIPs from one feed
// segment. Implementations own all query construction and transport; the
// engine only sees rows.
type Source interface {
	Fetch(ctx context.Context, segment domain.FeedType, cusips []string) ([]domain.RawTradeEvent, error)
}

// Chunk splits the CUSIP universe into fixed-size query batches, preserving
// order. The final chunk may be short.
func Chunk(cusips []string, size int) [][]string {
	if size <= 0 || len(cusips) == 0 {
		return nil
	}
	chunks := make([][]string, 0, (len(cusips)+size-1)/size)
	for start := 0; start < len(cusips); start += size {
		end := start + size
		if end > len(cusips) {
			end = len(cusips)
		}
		chunks = append(chunks, cusips[start:end])
	}
	return chunks
}
