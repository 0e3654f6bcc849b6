package printer

import (
	"github.com/fatih/color"
	"github.com/rodaine/table"

	"github.com/Open-CMSIS-Pack/vsce-helper/models"
)

// Table prints the outcome of a run, one row per tool.
func Table(results []*models.Result) {
	headerFmt := color.New(color.FgGreen, color.Underline).SprintfFunc()
	columnFmt := color.New(color.FgYellow).SprintfFunc()

	tbl := table.New("Tool", "Version", "Status")
	tbl.WithHeaderFormatter(headerFmt).WithFirstColumnFormatter(columnFmt)

	for _, result := range results {
		tbl.AddRow(result.Tool, result.Version, result.Status)
	}

	tbl.Print()
}
