package rpc

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/goran-ethernal/TransferIndexor/internal/common"
	pkgrpc "github.com/goran-ethernal/TransferIndexor/pkg/rpc"
)

// limitExceededCode is the JSON-RPC error code providers use for oversized requests (EIP-1474).
const limitExceededCode = -32005

var (
	tooManyResultsRe = regexp.MustCompile(`Query returned more than \d+ results`)
	blockRangeRe     = regexp.MustCompile(`\[(0x[0-9a-fA-F]+),\s*(0x[0-9a-fA-F]+)\]`)

	// lowercase fragments of range rejections seen across public providers
	rangeTooLargeMessages = []string{
		"query returned more than",
		"block range is too large",
		"block range too large",
		"exceed maximum block range",
		"exceeds max block range",
		"range limit exceeded",
		"log response size exceeded",
		"query timeout exceeded",
	}
)

// IsTooManyResultsError checks if the error is an RPC "too many results" error (DataError with message in ErrorData).
func IsTooManyResultsError(err error) (bool, string) {
	if err == nil {
		return false, ""
	}

	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		errData := fmt.Sprintf("%v", dataErr.ErrorData())
		return tooManyResultsRe.MatchString(errData), errData
	}

	return false, ""
}

// IsRangeTooLargeError reports whether the endpoint rejected a log query because of its span.
// The returned text is the most detailed message available, for suggested range parsing.
func IsRangeTooLargeError(err error) (bool, string) {
	if err == nil {
		return false, ""
	}

	if ok, data := IsTooManyResultsError(err); ok {
		return true, data
	}

	msg := err.Error()
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == limitExceededCode {
		return true, msg
	}

	lower := strings.ToLower(msg)
	for _, fragment := range rangeTooLargeMessages {
		if strings.Contains(lower, fragment) {
			return true, msg
		}
	}

	return false, ""
}

// ParseSuggestedBlockRange attempts to extract the suggested block range from the error message.
// Returns the suggested fromBlock and toBlock, and true if successfully parsed.
// Expected format: "Query returned more than 20000 results. Try with this block range [0x7dfd25, 0x7e0fcc]."
func ParseSuggestedBlockRange(err string) (fromBlock, toBlock uint64, ok bool) {
	if err == "" {
		return 0, 0, false
	}

	matches := blockRangeRe.FindStringSubmatch(err)

	const expectedMatches = 3 // full match + 2 groups
	if len(matches) != expectedMatches {
		return 0, 0, false
	}

	from, err1 := common.ParseUint64orHex(&matches[1])
	to, err2 := common.ParseUint64orHex(&matches[2])

	if err1 != nil || err2 != nil || to < from {
		return 0, 0, false
	}

	return from, to, true
}

// classifyLogsError maps an eth_getLogs failure onto the chain access error kinds.
func classifyLogsError(err error, from, to uint64) error {
	if ok, msg := IsRangeTooLargeError(err); ok {
		rangeErr := &pkgrpc.RangeTooLargeError{
			FromBlock: from,
			ToBlock:   to,
			Cause:     err,
		}
		if sFrom, sTo, found := ParseSuggestedBlockRange(msg); found {
			rangeErr.SuggestedFrom = sFrom
			rangeErr.SuggestedTo = sTo
			rangeErr.HasSuggestion = true
		}
		return rangeErr
	}

	return unavailable(err)
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", pkgrpc.ErrChainUnavailable, err)
}
