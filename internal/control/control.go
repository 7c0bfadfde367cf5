// Package control implements Component D: parsing subscriber text commands
// and producing the closed tagged-variant JSON acknowledgment set from
// spec.md §4.D/§9. Acks are hand-marshaled field by field rather than
// reflected through encoding/json, per spec.md §9's design note — the
// message set is closed and small.
package control

import (
	"strconv"
	"strings"

	"viscapture/internal/config"
)

// Kind identifies which command a parsed Command carries.
type Kind int

const (
	// KindNone marks a Command that failed to parse or was silently
	// rejected (unknown command, or an argument outside its restricted
	// value set) — spec.md §4.D: "no response, no error".
	KindNone Kind = iota
	KindGetSources
	KindSetSource
	KindSetFPS
	KindSetFreqMax
	KindSetBarCount
)

// Command is the parsed form of one inbound text frame.
type Command struct {
	Kind     Kind
	Source   string
	FPS      int
	FreqMax  int
	BarCount int
}

// Parse decodes one line of the spec.md §4.D command language. ok is false
// for unknown commands or out-of-set argument values, in which case the
// caller must silently drop the line (no response, no log) per spec.md §7's
// BadCommand policy.
func Parse(line string) (cmd Command, ok bool) {
	switch {
	case line == "GET_SOURCES":
		return Command{Kind: KindGetSources}, true

	case strings.HasPrefix(line, "SET_SOURCE:"):
		name := unescapeQuote(strings.TrimPrefix(line, "SET_SOURCE:"))
		return Command{Kind: KindSetSource, Source: name}, true

	case strings.HasPrefix(line, "SET_FPS:"):
		n, err := strconv.Atoi(strings.TrimPrefix(line, "SET_FPS:"))
		if err != nil || !intInSet(config.ValidFPS, n) {
			return Command{}, false
		}
		return Command{Kind: KindSetFPS, FPS: n}, true

	case strings.HasPrefix(line, "SET_FREQ_MAX:"):
		hz, err := strconv.Atoi(strings.TrimPrefix(line, "SET_FREQ_MAX:"))
		if err != nil || !intInSet(config.ValidFreqMax, hz) {
			return Command{}, false
		}
		return Command{Kind: KindSetFreqMax, FreqMax: hz}, true

	case strings.HasPrefix(line, "SET_BAR_COUNT:"):
		k, err := strconv.Atoi(strings.TrimPrefix(line, "SET_BAR_COUNT:"))
		if err != nil || !intInSet(config.ValidBarCount, k) {
			return Command{}, false
		}
		return Command{Kind: KindSetBarCount, BarCount: k}, true

	default:
		return Command{}, false
	}
}

func intInSet(set []int, v int) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// unescapeQuote reverses the backslash-escaping of `"` spec.md §4.D
// describes for the SET_SOURCE argument. No other escape sequence is
// recognized — names and descriptions are otherwise trusted OS strings.
func unescapeQuote(s string) string {
	return strings.ReplaceAll(s, `\"`, `"`)
}
