package api

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"dynview/pkg/logging"
)

// attrPattern matches one slog text attribute: key=value or key="quoted value".
var attrPattern = regexp.MustCompile(`([\w.\-]+)=("(?:[^"\\]|\\.)*"|\S+)`)

// shownAttrs are the controller attributes worth putting next to a message,
// in display order. Session ids, levels and source locations are dropped.
var shownAttrs = []string{"client", "distance", "current", "desired", "tps", "clients", "error"}

func handleLatestLog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"log": summarizeLogLine(logging.GlobalLogCapture.LastLine()),
	})
}

// summarizeLogLine turns a slog text line into "HH:MM:SS message [k=v ...]".
// Lines that are not structured are returned unchanged.
func summarizeLogLine(raw string) string {
	attrs := make(map[string]string)
	for _, m := range attrPattern.FindAllStringSubmatch(raw, -1) {
		v := m[2]
		if uq, err := strconv.Unquote(v); err == nil {
			v = uq
		}
		attrs[m[1]] = v
	}
	msg, ok := attrs["msg"]
	if !ok {
		return raw
	}

	var b strings.Builder
	if ts, err := time.Parse(time.RFC3339Nano, attrs["time"]); err == nil {
		b.WriteString(ts.Format("15:04:05 "))
	}
	b.WriteString(msg)

	var shown []string
	for _, k := range shownAttrs {
		if v, ok := attrs[k]; ok {
			shown = append(shown, k+"="+formatAttr(k, v))
		}
	}
	if len(shown) > 0 {
		b.WriteString(" [" + strings.Join(shown, " ") + "]")
	}
	return b.String()
}

// formatAttr shortens TPS samples to two decimals.
func formatAttr(key, v string) string {
	if key != "tps" {
		return v
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return v
	}
	return strconv.FormatFloat(f, 'f', 2, 64)
}
