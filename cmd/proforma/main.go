package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"deal_proforma/pkg/core/dealfile"
	"deal_proforma/pkg/core/proforma"
	"deal_proforma/pkg/core/report"
)

func main() {
	dealPath := flag.String("deal", "", "deal document (JSON or Hjson)")
	format := flag.String("format", "md", "output format: json, md or html")
	horizon := flag.Int("horizon", 60, "projection horizon in months")
	annual := flag.Bool("annual", false, "roll months up into years (md and html)")
	flag.Parse()

	if *dealPath == "" {
		fmt.Fprintln(os.Stderr, "usage: proforma -deal deal.hjson [-format json|md|html] [-horizon 60] [-annual]")
		os.Exit(2)
	}

	deal, parsedAs, err := dealfile.ParseFile(*dealPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
		os.Exit(1)
	}
	if parsedAs == dealfile.FormatRepaired {
		fmt.Fprintf(os.Stderr, "[WARNING] %s was not valid JSON or Hjson; read it after repair\n", *dealPath)
	}

	proj, err := proforma.NewEngine(*horizon).BuildDeal(deal)
	if err != nil {
		fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
		os.Exit(1)
	}

	opts := report.Options{Title: deal.Project.Name}
	if *annual {
		opts.Rollup = report.Annual
	}

	switch *format {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(proj); err != nil {
			fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
			os.Exit(1)
		}
	case "md":
		fmt.Print(report.Markdown(proj.Grid, opts))
	case "html":
		html, err := report.HTML(proj.Grid, opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
			os.Exit(1)
		}
		fmt.Print(html)
	default:
		fmt.Fprintf(os.Stderr, "unknown format %q\n", *format)
		os.Exit(2)
	}
}
