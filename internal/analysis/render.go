package analysis

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
)

// Format selects a renderer.
type Format string

const (
	FormatText Format = "text"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatText, FormatCSV, FormatJSON:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unknown format %q (want text, csv or json)", s)
	}
}

// Render writes s to w in format f. Output is buffered so that a failure
// writes nothing.
func Render(w io.Writer, s *Series, f Format) error {
	var buf bytes.Buffer
	var err error
	switch f {
	case FormatText, "":
		err = renderText(&buf, s)
	case FormatCSV:
		err = renderCSV(&buf, s)
	case FormatJSON:
		err = renderJSON(&buf, s)
	default:
		err = fmt.Errorf("unknown format %q", f)
	}
	if err != nil {
		return err
	}
	_, err = w.Write(buf.Bytes())
	return err
}

// header returns the column names shared by the text and CSV renderers.
func header(s *Series) []string {
	cols := []string{"t"}
	for _, j := range s.Joints {
		if j.Position != nil {
			cols = append(cols, j.Name+".position")
		}
		if j.Velocity != nil {
			cols = append(cols, j.Name+".velocity")
		}
	}
	return cols
}

func row(s *Series, i int, format func(float64) string) []string {
	cells := []string{format(s.T[i])}
	for _, j := range s.Joints {
		if j.Position != nil {
			cells = append(cells, format(j.Position[i]))
		}
		if j.Velocity != nil {
			cells = append(cells, format(j.Velocity[i]))
		}
	}
	return cells
}

func renderText(w io.Writer, s *Series) error {
	fmt.Fprintf(w, "Joint data in '%s'\n", s.Title)
	fmt.Fprintf(w, "Starting at time %.6f\n\n", s.Start)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	writeCells(tw, header(s))
	fixed := func(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }
	for i := range s.T {
		writeCells(tw, row(s, i, fixed))
	}
	return tw.Flush()
}

func writeCells(w io.Writer, cells []string) {
	for _, c := range cells {
		fmt.Fprintf(w, "%s\t", c)
	}
	fmt.Fprintln(w)
}

func renderCSV(w io.Writer, s *Series) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header(s)); err != nil {
		return err
	}
	shortest := func(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
	for i := range s.T {
		if err := cw.Write(row(s, i, shortest)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func renderJSON(w io.Writer, s *Series) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
