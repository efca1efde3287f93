package l1chunks

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ChunkMap is the decoded JSON object found under a chunk store path. Values
// are comma-separated strings, JSON arrays or single numbers.
type ChunkMap map[string]any

// Waveform is an ordered sequence of samples. Every stage that transforms a
// Waveform returns a new slice.
type Waveform []float64

// Clone returns a copy of w.
func (w Waveform) Clone() Waveform {
	if w == nil {
		return nil
	}
	out := make(Waveform, len(w))
	copy(out, w)
	return out
}

// Tail returns a copy of the last n samples of w (all of w if shorter).
func (w Waveform) Tail(n int) Waveform {
	if n <= 0 {
		return Waveform{}
	}
	if len(w) <= n {
		return w.Clone()
	}
	return w[len(w)-n:].Clone()
}

// Report describes what Assemble saw.
type Report struct {
	Chunks          int      `json:"chunks"`
	Samples         int      `json:"samples"`
	MalformedTokens int      `json:"malformed_tokens"`
	Ignored         []string `json:"ignored,omitempty"`
}

// KeyPrefix is the prefix of every chunk key.
const KeyPrefix = "chunk_"

var keyPattern = regexp.MustCompile(`^chunk_(\d+)$`)

// IsChunkKey reports whether k names a chunk.
func IsChunkKey(k string) bool { return keyPattern.MatchString(k) }

type orderedKey struct {
	key string
	n   uint64
}

// Assemble concatenates the chunks of m in ascending numeric key order.
// Keys that are not chunk_<N> are skipped and listed in the report. Tokens
// that do not parse become 0 and are counted; a bad chunk never invalidates
// the others. An empty map, or one without chunk keys, yields an empty
// Waveform.
func Assemble(m ChunkMap) (Waveform, Report) {
	var rep Report
	keys := make([]orderedKey, 0, len(m))
	for k := range m {
		match := keyPattern.FindStringSubmatch(k)
		if match == nil {
			rep.Ignored = append(rep.Ignored, k)
			continue
		}
		n, err := strconv.ParseUint(match[1], 10, 64)
		if err != nil {
			rep.Ignored = append(rep.Ignored, k)
			continue
		}
		keys = append(keys, orderedKey{key: k, n: n})
	}
	sort.Strings(rep.Ignored)
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].n != keys[j].n {
			return keys[i].n < keys[j].n
		}
		// chunk_01 and chunk_1 share an index; keep the order stable
		return keys[i].key < keys[j].key
	})

	out := Waveform{}
	for _, k := range keys {
		vals, bad := decodeChunk(m[k.key])
		out = append(out, vals...)
		rep.MalformedTokens += bad
	}
	rep.Chunks = len(keys)
	rep.Samples = len(out)
	return out, rep
}

func decodeChunk(v any) ([]float64, int) {
	switch t := v.(type) {
	case nil:
		return nil, 0
	case string:
		return parseDelimited(t)
	case []any:
		out := make([]float64, 0, len(t))
		bad := 0
		for _, e := range t {
			f, ok := scalar(e)
			if !ok {
				bad++
			}
			out = append(out, f)
		}
		return out, bad
	case []float64:
		out := make([]float64, len(t))
		copy(out, t)
		return out, 0
	case []int:
		out := make([]float64, len(t))
		for i, x := range t {
			out[i] = float64(x)
		}
		return out, 0
	default:
		f, ok := scalar(t)
		if !ok {
			return []float64{0}, 1
		}
		return []float64{f}, 0
	}
}

func parseDelimited(s string) ([]float64, int) {
	if strings.TrimSpace(s) == "" {
		return nil, 0
	}
	parts := strings.Split(s, ",")
	out := make([]float64, len(parts))
	bad := 0
	for i, p := range parts {
		f, ok := parseToken(p)
		if !ok {
			bad++
		}
		out[i] = f
	}
	return out, bad
}

func parseToken(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func scalar(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return 0, false
		}
		return t, true
	case float32:
		return scalar(float64(t))
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		return parseToken(t.String())
	case string:
		return parseToken(t)
	default:
		return 0, false
	}
}

// Split encodes samples as comma-separated chunk strings of at most size
// samples each, numbered from first. It is the inverse of Assemble.
func Split(samples []float64, size, first int) (map[string]string, error) {
	if size < 1 {
		return nil, fmt.Errorf("invalid chunk size %d", size)
	}
	if first < 0 {
		return nil, fmt.Errorf("invalid first chunk index %d", first)
	}
	out := make(map[string]string, (len(samples)+size-1)/size)
	var b strings.Builder
	for i, n := 0, first; i < len(samples); i, n = i+size, n+1 {
		end := min(i+size, len(samples))
		b.Reset()
		for j, v := range samples[i:end] {
			if j > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
		}
		out[KeyPrefix+strconv.Itoa(n)] = b.String()
	}
	return out, nil
}
