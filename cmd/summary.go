package cmd

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/JakeFAU/douyin-harvester/internal/harvest"
)

func printSummary(w io.Writer, s harvest.Summary) {
	if s.RunID == "" {
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(fmt.Sprintf("%s %s: %s", s.Command, s.RunID, s.Status))
	t.AppendHeader(table.Row{"Dataset", "Kind", "Records", "Location", "Error"})
	for _, d := range s.Datasets {
		t.AppendRow(table.Row{d.Name, d.Kind, d.Records, d.Path, d.Error})
	}
	t.AppendFooter(table.Row{"", "Total", s.Records(), "", ""})
	t.SetStyle(table.StyleRounded)
	t.Render()
	for _, obj := range s.Objects {
		fmt.Fprintf(w, "exported %s\n", obj)
	}
}
