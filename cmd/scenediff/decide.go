package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	visibility "github.com/goliatone/go-visibility"
	"github.com/goliatone/go-visibility/pkg/activity"
	"github.com/goliatone/go-visibility/pkg/metrics"
	"github.com/goliatone/go-visibility/pkg/scene"
)

type decideOptions struct {
	scenes       sceneFlags
	targets      []string
	rules        []string
	engine       string
	strictParent bool
	maxDepth     int
	workers      int
	format       string
	metrics      bool
	events       bool
}

type decisionRow struct {
	Node     string              `json:"node"`
	Targeted bool                `json:"targeted,omitempty"`
	Decision visibility.Decision `json:"decision"`
}

type eventRow struct {
	Verb     string         `json:"verb"`
	Object   string         `json:"object"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type decideReport struct {
	Batch     string        `json:"batch"`
	Start     string        `json:"start"`
	End       string        `json:"end"`
	Decisions []decisionRow `json:"decisions"`
	Events    []eventRow    `json:"events,omitempty"`
}

func newDecideCmd(a *app) *cobra.Command {
	opts := &decideOptions{}
	cmd := &cobra.Command{
		Use:   "decide",
		Short: "Decide the transition for every node of a scene pair",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecide(cmd.Context(), a, opts)
		},
	}
	opts.scenes.register(cmd)
	cmd.Flags().StringSliceVar(&opts.targets, "target", nil, "node key or id that is always transitioned (repeatable)")
	cmd.Flags().StringArrayVar(&opts.rules, "rule", nil, "target rule expression (repeatable)")
	cmd.Flags().StringVar(&opts.engine, "engine", "expr", "rule engine (expr, cel, js)")
	cmd.Flags().BoolVar(&opts.strictParent, "strict-parent", false, "never transition untargeted nodes without a parent")
	cmd.Flags().IntVar(&opts.maxDepth, "max-depth", visibility.DefaultMaxDepth, "ancestry walk depth limit")
	cmd.Flags().IntVar(&opts.workers, "workers", 4, "parallel evaluations")
	cmd.Flags().StringVar(&opts.format, "format", "table", "output format (table, json)")
	cmd.Flags().BoolVar(&opts.metrics, "metrics", false, "print prometheus metrics after the report")
	cmd.Flags().BoolVar(&opts.events, "events", false, "include emitted activity events")
	return cmd
}

func ruleEvaluator(engine string, registry *visibility.FunctionRegistry) (visibility.Evaluator, error) {
	opts := []visibility.RuleEngineOption{
		visibility.WithProgramCache(visibility.NewMapProgramCache()),
		visibility.WithFunctionRegistry(registry),
	}
	switch engine {
	case "expr":
		return visibility.NewExprEvaluator(opts...), nil
	case "cel":
		return visibility.NewCELEvaluator(opts...), nil
	case "js":
		evaluator := visibility.NewJSEvaluator(opts...)
		if evaluator == nil {
			return nil, fmt.Errorf("js rules need a build with the js_eval tag")
		}
		return evaluator, nil
	default:
		return nil, fmt.Errorf("unknown rule engine %q", engine)
	}
}

func buildTargets(pair *scene.Pair, opts *decideOptions) (*visibility.TargetSet[string], error) {
	targets := visibility.NewTargetSet(visibility.WithDescriber[string](pair))
	for _, target := range opts.targets {
		targets.AddID(target)
		if node, ok := pair.End.Lookup(target); ok {
			targets.AddID(node.Identity())
		} else if node, ok := pair.Start.Lookup(target); ok {
			targets.AddID(node.Identity())
		}
	}
	if len(opts.rules) == 0 {
		return targets, nil
	}
	evaluator, err := ruleEvaluator(opts.engine, visibility.NewTargetFunctionRegistry())
	if err != nil {
		return nil, err
	}
	for _, rule := range opts.rules {
		if err := targets.AddExpression(evaluator, rule); err != nil {
			return nil, err
		}
	}
	return targets, nil
}

func runDecide(ctx context.Context, a *app, opts *decideOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := checkFormat(opts.format); err != nil {
		return err
	}
	pair, err := opts.scenes.load()
	if err != nil {
		return err
	}
	targets, err := buildTargets(pair, opts)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	collector, err := metrics.NewCollector(registry)
	if err != nil {
		return err
	}
	capture := &activity.CaptureHook{}

	targeted := &targetRecorder{nodes: map[string]bool{}}
	decider := visibility.New[string](pair,
		visibility.WithLogger(a.logger),
		visibility.WithTargets(targets),
		visibility.WithMaxDepth(opts.maxDepth),
		visibility.WithRequireAttachedParent(opts.strictParent),
		visibility.WithWorkers(opts.workers),
		visibility.WithActivityHooks(activity.Hooks{capture}),
		visibility.WithDecisionLogger(visibility.MultiDecisionLogger(
			collector,
			visibility.SlogDecisionLogger(a.logger),
			targeted,
		)),
	)

	batch := decider.NewBatch()
	candidates := pair.Candidates()
	began := time.Now()
	decisions, err := batch.EvaluateAll(ctx, pair.Root(), candidates)
	if err != nil {
		return err
	}

	report := decideReport{
		Batch: batch.ID,
		Start: scene.Fingerprint(pair.Start),
		End:   scene.Fingerprint(pair.End),
	}
	for i, candidate := range candidates {
		label := candidate.Label()
		report.Decisions = append(report.Decisions, decisionRow{
			Node:     label,
			Targeted: targeted.nodes[label],
			Decision: decisions[i],
		})
	}
	if opts.events {
		for _, event := range capture.Snapshot() {
			report.Events = append(report.Events, eventRow{
				Verb:     event.Verb,
				Object:   event.ObjectID,
				Metadata: event.Metadata,
			})
		}
	}

	if opts.format == "json" {
		if err := writeJSON(a.out, report); err != nil {
			return err
		}
	} else {
		renderDecisions(a.out, report, time.Since(began))
	}

	if opts.metrics {
		return writeMetrics(a.out, registry)
	}
	return nil
}

// targetRecorder notes which candidates were resolved as targets.
type targetRecorder struct {
	mu    sync.Mutex
	nodes map[string]bool
}

func (r *targetRecorder) LogDecision(event visibility.DecisionLogEvent) {
	if !event.Targeted {
		return
	}
	r.mu.Lock()
	r.nodes[event.Node] = true
	r.mu.Unlock()
}

func renderDecisions(w io.Writer, report decideReport, elapsed time.Duration) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(w)
	tbl.SetTitle("scene diff " + report.Start + " -> " + report.End)
	tbl.AppendHeader(table.Row{"node", "start", "end", "outcome", "reason", "targeted"})

	counts := map[visibility.Outcome]int64{}
	var suppressed int64
	for _, row := range report.Decisions {
		d := row.Decision
		counts[d.Outcome]++
		if d.Reason == visibility.ReasonAncestryChanging || d.Reason == visibility.ReasonDetached {
			suppressed++
		}
		targeted := ""
		if row.Targeted {
			targeted = "yes"
		}
		tbl.AppendRow(table.Row{row.Node, d.StartVisibility, d.EndVisibility, d.Outcome, d.Reason, targeted})
	}
	tbl.AppendFooter(table.Row{
		"",
		"",
		"",
		fmt.Sprintf("%s appear / %s disappear", humanize.Comma(counts[visibility.OutcomeAppear]), humanize.Comma(counts[visibility.OutcomeDisappear])),
		fmt.Sprintf("%s suppressed", humanize.Comma(suppressed)),
		"",
	})
	tbl.Render()

	fmt.Fprintf(w, "%s candidates in %s (batch %s)\n",
		humanize.Comma(int64(len(report.Decisions))), elapsed.Round(time.Microsecond), report.Batch)
	for _, event := range report.Events {
		fmt.Fprintf(w, "event %s %s\n", event.Verb, event.Object)
	}
}

func writeJSON(w io.Writer, value any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func writeMetrics(w io.Writer, gatherer prometheus.Gatherer) error {
	families, err := gatherer.Gather()
	if err != nil {
		return err
	}
	encoder := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, family := range families {
		if err := encoder.Encode(family); err != nil {
			return err
		}
	}
	return nil
}
