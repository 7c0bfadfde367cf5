package control

import (
	"strconv"
	"strings"

	"viscapture/internal/audio"
)

// escapeQuote escapes the double-quote character only, per spec.md §4.D:
// "no other escaping is performed".
func escapeQuote(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}

// SourcesAck builds the {"sources":[{"name":...,"desc":...},...]} response
// to GET_SOURCES.
func SourcesAck(sources []audio.SourceDescriptor) []byte {
	var b strings.Builder
	b.WriteString(`{"sources":[`)
	for i, s := range sources {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(`{"name":"`)
		b.WriteString(escapeQuote(s.Name))
		b.WriteString(`","desc":"`)
		b.WriteString(escapeQuote(s.Description))
		b.WriteString(`"}`)
	}
	b.WriteString(`]}`)
	return []byte(b.String())
}

// SourceChangedAck builds the success response to SET_SOURCE.
func SourceChangedAck(name string) []byte {
	return []byte(`{"sourceChanged":"` + escapeQuote(name) + `"}`)
}

// SourceErrorAck builds the failure response to SET_SOURCE.
func SourceErrorAck(message string) []byte {
	return []byte(`{"sourceError":"` + escapeQuote(message) + `"}`)
}

// FPSChangedAck builds the response to SET_FPS.
func FPSChangedAck(n int) []byte {
	return []byte(`{"fpsChanged":` + strconv.Itoa(n) + `}`)
}

// FreqMaxChangedAck builds the response to SET_FREQ_MAX.
func FreqMaxChangedAck(hz int) []byte {
	return []byte(`{"freqMaxChanged":` + strconv.Itoa(hz) + `}`)
}

// BarCountChangedAck builds the response to SET_BAR_COUNT.
func BarCountChangedAck(k int) []byte {
	return []byte(`{"barCountChanged":` + strconv.Itoa(k) + `}`)
}
