package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	visibility "github.com/goliatone/go-visibility"
)

type classifyReport struct {
	Node         string          `json:"node"`
	Changed      bool            `json:"changed"`
	FadeIn       bool            `json:"fade_in"`
	Start        visibility.Code `json:"start"`
	End          visibility.Code `json:"end"`
	StartParent  string          `json:"start_parent,omitempty"`
	EndParent    string          `json:"end_parent,omitempty"`
	StartVisible bool            `json:"start_visible"`
	EndVisible   bool            `json:"end_visible"`
}

func newClassifyCmd(a *app) *cobra.Command {
	opts := &nodeOptions{}
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Classify one node's own change between the scenes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClassify(a, opts)
		},
	}
	opts.register(cmd)
	return cmd
}

func runClassify(a *app, opts *nodeOptions) error {
	if err := checkFormat(opts.format); err != nil {
		return err
	}
	pair, err := opts.scenes.load()
	if err != nil {
		return err
	}
	start, end, err := opts.facts(pair)
	if err != nil {
		return err
	}

	info := visibility.Classify(start, end)
	report := classifyReport{
		Node:         opts.node,
		Changed:      info.Changed,
		FadeIn:       info.FadeIn,
		Start:        info.StartVisibility,
		End:          info.EndVisibility,
		StartParent:  info.StartParent,
		EndParent:    info.EndParent,
		StartVisible: visibility.IsVisible(start),
		EndVisible:   visibility.IsVisible(end),
	}
	a.logger.Debug("classified node", "node", opts.node, "changed", info.Changed)

	if opts.format == "json" {
		return writeJSON(a.out, report)
	}
	tbl := table.NewWriter()
	tbl.SetOutputMirror(a.out)
	tbl.SetTitle("classify " + opts.node)
	tbl.AppendHeader(table.Row{"", "start", "end"})
	tbl.AppendRows([]table.Row{
		{"visibility", report.Start, report.End},
		{"parent", report.StartParent, report.EndParent},
		{"visible", report.StartVisible, report.EndVisible},
	})
	tbl.AppendFooter(table.Row{"changed", fmt.Sprint(report.Changed), "fade in " + fmt.Sprint(report.FadeIn)})
	tbl.Render()
	return nil
}
