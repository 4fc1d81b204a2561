// Command cstable-dump prints a cstable file's schema, row count, and page
// index. It mirrors the shape of the teacher's cmd/ptools: a thin CLI over
// the library's own read path, not a query engine.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"

	"github.com/cstablefmt/cstable-go"
	"github.com/cstablefmt/cstable-go/debug"
)

func main() {
	jsonOut := flag.Bool("json", false, "print the schema and page index as JSON instead of a table")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: cstable-dump [-json] <file>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	r, err := cstable.OpenFilePath(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cstable-dump: %s: %v\n", path, err)
		os.Exit(1)
	}
	defer r.Close()

	if *jsonOut {
		dumpJSON(r)
		return
	}
	dumpTable(r)
}

func dumpJSON(r *cstable.TableReader) {
	summary := debug.Summarize(r)
	out, err := debug.MarshalJSON(summary)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cstable-dump: %v\n", err)
		os.Exit(1)
	}
	os.Stdout.Write(out)
	fmt.Println()

	index, err := debug.PageIndexJSON(r.PageIndex())
	if err != nil {
		fmt.Fprintf(os.Stderr, "cstable-dump: %v\n", err)
		os.Exit(1)
	}
	os.Stdout.Write(index)
	fmt.Println()
}

func dumpTable(r *cstable.TableReader) {
	fmt.Printf("num_rows: %d\n\n", r.NumRows())

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"column_id", "name", "logical_type", "storage_type", "rlevel_max", "dlevel_max"})
	for _, c := range r.Schema() {
		table.Append([]string{
			fmt.Sprint(c.ColumnID),
			c.Name,
			c.LogicalType.String(),
			c.StorageType.String(),
			fmt.Sprint(c.RLevelMax),
			fmt.Sprint(c.DLevelMax),
		})
	}
	table.Render()

	fmt.Println()
	index := tablewriter.NewWriter(os.Stdout)
	index.SetHeader([]string{"column_id", "entry_type", "offset", "size", "values"})
	for _, e := range r.PageIndex() {
		index.Append([]string{
			fmt.Sprint(e.Key.ColumnID),
			e.Key.EntryType.String(),
			fmt.Sprint(e.Offset),
			fmt.Sprint(e.Size),
			fmt.Sprint(e.Values),
		})
	}
	index.Render()
}
