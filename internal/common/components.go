package common

const (
	ComponentIndexer       = "indexer"
	ComponentChain         = "chain"
	ComponentDecoder       = "decoder"
	ComponentStore         = "store"
	ComponentReorgDetector = "reorg-detector"
	ComponentMetrics       = "metrics"
)

var AllComponents = map[string]struct{}{
	ComponentIndexer:       {},
	ComponentChain:         {},
	ComponentDecoder:       {},
	ComponentStore:         {},
	ComponentReorgDetector: {},
	ComponentMetrics:       {},
}
