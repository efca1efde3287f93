package pipeline

import "errors"

// ErrDataUnavailable means no path held any chunk, or the chunks decoded to
// an empty waveform. Callers report it as "no data"; it is not retried.
var ErrDataUnavailable = errors.New("no data")

// Signal quality flags added to a result alongside the reconciler's flags.
const (
	FlagAllSaturated         = "all_saturated"
	FlagSaturatedSamples     = "saturated_samples"
	FlagFlatLine             = "flat_line"
	FlagMalformedChunkTokens = "malformed_chunk_tokens"
	FlagHeartRateUnmeasured  = "heart_rate_unmeasured"
)
