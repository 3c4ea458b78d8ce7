package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/sells-group/lscrefer/internal/lsc"
)

// writeJSON writes v as indented JSON.
func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// formatOffices writes a tabular office list to out.
func formatOffices(out io.Writer, offices []lsc.Office) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "#\tTYPE\tADDRESS\tCITY\tSTATE\tZIP\tMILES")
	_, _ = fmt.Fprintln(w, "-\t----\t-------\t----\t-----\t---\t-----")

	for _, o := range offices {
		addr := o.Address
		if o.Unit != "" {
			addr += ", " + o.Unit
		}
		miles := ""
		if o.Distance != nil {
			miles = fmt.Sprintf("%.1f", *o.Distance)
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			o.Index,
			o.OfficeType,
			addr,
			o.City,
			o.State,
			o.Zip,
			miles,
		)
	}
	_ = w.Flush()
}

// formatProgram writes a program summary to out.
func formatProgram(out io.Writer, p *lsc.Program) {
	if p == nil {
		_, _ = fmt.Fprintln(out, "No legal-aid program serves this address.")
		return
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Program:\t%s\n", p.Name)
	_, _ = fmt.Fprintf(w, "Service area:\t%s\n", p.ServiceArea)
	_, _ = fmt.Fprintf(w, "Phone:\t%s\n", p.Phone)
	_, _ = fmt.Fprintf(w, "Web:\t%s\n", p.URL)
	_ = w.Flush()
}
