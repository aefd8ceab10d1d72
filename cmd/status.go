package cmd

import (
	"io"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig"

	"github.com/vaist/studio/remote"
)

// DefaultStatus renders one transport line followed by a meter per track.
const DefaultStatus = `{{ .State | upper | printf "%-9s" }} {{ .BBT }}  {{ .Clock }}  {{ printf "%.2f" .BPM }} bpm {{ .TimeSignature }}{{ if .Loop.Enabled }}  loop{{ end }}
{{- range $id, $t := .Tracks }}
  {{ $id | trunc 12 | printf "%-12s" }} {{ meter (index $t.Level 0) }}{{ if $t.Mute }} M{{ end }}{{ if $t.Solo }} S{{ end }}
{{- end }}
  {{ "master" | printf "%-12s" }} {{ meter (index .MasterLevel 0) }}
`

const (
	meterWidth = 24
	meterFloor = -60.0
)

// NewStatus parses a status template; the sprig functions and meter are
// available in it.
func NewStatus(text string) (*template.Template, error) {
	funcs := sprig.TxtFuncMap()
	funcs["meter"] = meter
	return template.New("status").Funcs(funcs).Parse(text)
}

func WriteStatus(w io.Writer, t *template.Template, s remote.Snapshot) error {
	return t.Execute(w, s)
}

// meter draws a level in dBFS as a bar of fixed width, empty at meterFloor
// and full at 0 dB.
func meter(dB float64) string {
	n := int(min(max(1-dB/meterFloor, 0), 1) * meterWidth)
	return "[" + strings.Repeat("#", n) + strings.Repeat(" ", meterWidth-n) + "]"
}
