package osm

import (
	"bufio"
	"io"
	"strings"

	"github.com/roach88/osversion/internal/ir"
)

// commentColumn is where "!-" starts when the value is short enough.
const commentColumn = 42

// Encode writes ws in record order, one blank line between records.
func Encode(w io.Writer, ws *ir.Workspace) error {
	bw := bufio.NewWriter(w)
	for i, r := range ws.Records {
		if i > 0 {
			bw.WriteString("\n")
		}
		writeRecord(bw, r)
	}
	return bw.Flush()
}

func writeRecord(w *bufio.Writer, r ir.Record) {
	w.WriteString(r.Type)
	w.WriteString(",\n")

	last := len(r.Fields) == 0
	writeLine(w, r.Handle.String(), "Handle", last)
	for i, f := range r.Fields {
		writeLine(w, f.Value.Text(), f.Name, i == len(r.Fields)-1)
	}
}

func writeLine(w *bufio.Writer, value, name string, last bool) {
	sep := ","
	if last {
		sep = ";"
	}
	line := "  " + value + sep
	w.WriteString(line)
	if name != "" {
		pad := commentColumn - len(line)
		if pad < 1 {
			pad = 1
		}
		w.WriteString(strings.Repeat(" ", pad))
		w.WriteString("!- ")
		w.WriteString(name)
	}
	w.WriteString("\n")
}
