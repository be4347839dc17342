// Package reconcile implements the record-reconciliation engine for raw
// over-the-counter bond trade-report feeds. The feed conflates original
// trades, cancellations, corrections and reversals in one stream with only
// loose identifying keys; this package reconstructs the sequence of
// economically real trades by matching and removing cancellation pairs,
// collapsing correction chains and removing reversal pairs.
//
// Stage order is fixed: Normalizer -> CancellationResolver ->
// CorrectionChainResolver -> ReversalResolver. Each stage consumes the full
// output of the previous one; matching decisions need a complete, stably
// ordered view of every candidate row in a group. The Cleaner type wires the
// stages together for one batch and reports the per-batch counters.
package reconcile
