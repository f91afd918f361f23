package reorg

import "context"

// Detector compares recently checkpointed blocks with the canonical chain.
type Detector interface {
	// Check inspects the blocks just below cursor, the next block to ingest. When a stored hash
	// diverges from the chain it rewinds the store to the divergence and returns a *ReorgDetectedError.
	Check(ctx context.Context, cursor uint64) error
}
