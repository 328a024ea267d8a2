package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-visibility/internal/logging"
	"github.com/goliatone/go-visibility/pkg/scene"
)

// app carries what every subcommand shares.
type app struct {
	out      io.Writer
	errOut   io.Writer
	logLevel string
	logger   *slog.Logger
}

// sceneFlags selects the two scenes being compared.
type sceneFlags struct {
	start string
	end   string
	patch string
}

func (f *sceneFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.start, "start", "", "start scene document (yaml or json)")
	cmd.Flags().StringVar(&f.end, "end", "", "end scene document")
	cmd.Flags().StringVar(&f.patch, "patch", "", "patch applied to the start scene to derive the end scene")
	_ = cmd.MarkFlagRequired("start")
	cmd.MarkFlagsMutuallyExclusive("end", "patch")
	cmd.MarkFlagsOneRequired("end", "patch")
}

func (f *sceneFlags) load() (*scene.Pair, error) {
	start, err := scene.LoadFile(f.start)
	if err != nil {
		return nil, err
	}
	var end scene.Snapshot
	if f.patch != "" {
		patch, err := scene.LoadPatchFile(f.patch)
		if err != nil {
			return nil, err
		}
		if end, err = scene.Apply(start, patch); err != nil {
			return nil, err
		}
	} else if end, err = scene.LoadFile(f.end); err != nil {
		return nil, err
	}
	return scene.NewPair(start, end)
}

func newRootCmd(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut}

	root := &cobra.Command{
		Use:   "scenediff",
		Short: "Decide which nodes appear or disappear between two scenes",
		Long: `scenediff compares a start and an end scene document and reports, for every
node, whether a visibility transition should run for it. Nodes whose ancestry
is itself changing are suppressed unless they are explicitly targeted.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logging.ParseLevel(a.logLevel)
			if err != nil {
				return err
			}
			a.logger = logging.New(a.errOut, level)
			return nil
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")

	root.AddCommand(
		newDecideCmd(a),
		newTraceCmd(a),
		newClassifyCmd(a),
	)
	return root
}

func checkFormat(format string) error {
	switch format {
	case "table", "json":
		return nil
	default:
		return fmt.Errorf("unsupported format %q (want table or json)", format)
	}
}
