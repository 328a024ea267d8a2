package main

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	visibility "github.com/goliatone/go-visibility"
	"github.com/goliatone/go-visibility/pkg/scene"
)

type nodeOptions struct {
	scenes   sceneFlags
	node     string
	format   string
	maxDepth int
}

func (o *nodeOptions) register(cmd *cobra.Command) {
	o.scenes.register(cmd)
	cmd.Flags().StringVar(&o.node, "node", "", "node key or id")
	cmd.Flags().StringVar(&o.format, "format", "table", "output format (table, json)")
	_ = cmd.MarkFlagRequired("node")
}

// facts captures the node in both scenes; nil means absent.
func (o *nodeOptions) facts(pair *scene.Pair) (start, end *visibility.Facts[string], err error) {
	if f, ok := pair.Start.Facts(o.node); ok {
		start = &f
	}
	if f, ok := pair.End.Facts(o.node); ok {
		end = &f
	}
	if start == nil && end == nil {
		return nil, nil, fmt.Errorf("node %q is in neither scene", o.node)
	}
	return start, end, nil
}

func newTraceCmd(a *app) *cobra.Command {
	opts := &nodeOptions{}
	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the ancestry walk used to decide one node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(a, opts)
		},
	}
	opts.register(cmd)
	cmd.Flags().IntVar(&opts.maxDepth, "max-depth", visibility.DefaultMaxDepth, "ancestry walk depth limit")
	return cmd
}

func runTrace(a *app, opts *nodeOptions) error {
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
	var startParent, endParent string
	if start != nil {
		startParent = start.Parent
	}
	if end != nil {
		endParent = end.Parent
	}
	if startParent == "" && endParent == "" {
		return fmt.Errorf("node %q has no parent in either scene", opts.node)
	}

	decider := visibility.New[string](pair,
		visibility.WithLogger(a.logger),
		visibility.WithMaxDepth(opts.maxDepth),
	)
	trace := decider.TraceAncestry(pair.Root(), startParent, endParent)

	if opts.format == "json" {
		payload, err := trace.ToJSON()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(a.out, string(payload))
		return err
	}
	renderTrace(a.out, opts.node, trace)
	return nil
}

func renderTrace(w io.Writer, node string, trace visibility.AncestryTrace[string]) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetTitle("ancestry of " + node)
	tbl.AppendHeader(table.Row{"depth", "start", "end", "start facts", "end facts"})
	for _, level := range trace.Levels {
		tbl.AppendRow(table.Row{level.Depth, level.StartNode, level.EndNode, describeFacts(level.StartFacts), describeFacts(level.EndFacts)})
	}
	tbl.Render()
	fmt.Fprintf(w, "changing=%t stop=%s\n", trace.Changing, trace.Stop)
}

func describeFacts(facts *visibility.Facts[string]) string {
	if facts == nil {
		return "absent"
	}
	if !facts.HasParent() {
		return facts.Visibility.String()
	}
	return facts.Visibility.String() + " under " + facts.Parent
}
