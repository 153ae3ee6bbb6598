package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/davecgh/go-spew/spew"
	patcher "github.com/goliatone/go-patcher"
	"github.com/goliatone/go-patcher/bag"
	"github.com/goliatone/go-patcher/pkg/activity"
	"github.com/goliatone/go-patcher/pkg/manifest"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func hooksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hooks",
		Short: "List the callback and wrapper hook vocabulary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var data [][]string
			for _, h := range patcher.CallbackHooks() {
				data = append(data, []string{patcher.KindCallback, h.String()})
			}
			for _, h := range patcher.WrapperHooks() {
				data = append(data, []string{patcher.KindWrapper, h.String()})
			}
			renderTable(cmd.OutOrStdout(), []string{"KIND", "HOOK"}, data)
			return nil
		},
	}
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <manifest>",
		Short: "Validate an extension manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := manifest.Load(args[0])
			if err != nil {
				return err
			}
			if err := m.Validate(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d extensions, %d registrations)\n", args[0], len(m.Extensions), m.Registrations())
			return nil
		},
	}
}

func planCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan <manifest>",
		Short: "Show the order in which manifest registrations resolve",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := installPlaceholders(cmd, args[0])
			if err != nil {
				return err
			}
			traces := collectTraces(opts)

			asJSON, _ := cmd.Flags().GetBool("json")
			if asJSON {
				encoder := json.NewEncoder(cmd.OutOrStdout())
				encoder.SetIndent("", "  ")
				return encoder.Encode(traces)
			}

			var data [][]string
			for _, trace := range traces {
				for _, entry := range trace.Entries {
					subKey := entry.SubKey
					if subKey == patcher.Unkeyed {
						subKey = "-"
					}
					data = append(data, []string{
						trace.Kind,
						trace.Hook,
						fmt.Sprint(entry.Position),
						subKey,
						fmt.Sprint(entry.Index),
					})
				}
			}
			renderTable(cmd.OutOrStdout(), []string{"KIND", "HOOK", "POSITION", "SUB-KEY", "INDEX"}, data)
			return nil
		},
	}
	cmd.Flags().Bool("json", false, "Print traces as JSON")
	return cmd
}

func dumpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dump <manifest>",
		Short: "Print the option bag a manifest installs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := installPlaceholders(cmd, args[0])
			if err != nil {
				return err
			}
			raw, _ := cmd.Flags().GetBool("raw")
			if raw {
				dumper := spew.ConfigState{Indent: "  ", SortKeys: true, DisablePointerAddresses: true, DisableCapacities: true}
				dumper.Fdump(cmd.OutOrStdout(), opts.ToMap())
				return nil
			}
			encoder := yaml.NewEncoder(cmd.OutOrStdout())
			encoder.SetIndent(2)
			if err := encoder.Encode(opts); err != nil {
				return err
			}
			return encoder.Close()
		},
	}
	cmd.Flags().Bool("raw", false, "Dump Go values instead of YAML")
	return cmd
}

// installPlaceholders installs the manifest at path against catalogs that
// resolve every referenced name to a pass-through callable.
func installPlaceholders(cmd *cobra.Command, path string) (*bag.Bag, error) {
	logger, err := newLogger(cmd)
	if err != nil {
		return nil, err
	}
	m, err := manifest.Load(path)
	if err != nil {
		return nil, err
	}
	callbacks, wrappers := placeholderCatalogs(m)
	emitter := activity.NewEmitter(activity.Hooks{activity.LogHook{Logger: logger}}, activity.Config{
		Enabled: true,
		ActorID: "patcherctl",
	})
	installer := manifest.NewInstaller(callbacks, wrappers,
		manifest.WithActivityEmitter(emitter),
		manifest.WithLogger(logger),
		manifest.WithSource(path),
	)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return installer.Install(ctx, m, patcher.NewOptions())
}

func placeholderCatalogs(m *manifest.Manifest) (*patcher.Catalog[patcher.Callback], *patcher.Catalog[patcher.Wrapper]) {
	callbacks := patcher.NewCatalog[patcher.Callback]()
	wrappers := patcher.NewCatalog[patcher.Wrapper]()
	for _, ext := range m.Extensions {
		for _, entry := range ext.Callbacks {
			if _, ok := callbacks.Lookup(entry.Use); !ok && entry.Use != "" {
				_ = callbacks.Register(entry.Use, func(context.Context, any, ...any) error { return nil })
			}
		}
		for _, entry := range ext.Wrappers {
			if _, ok := wrappers.Lookup(entry.Use); !ok && entry.Use != "" {
				_ = wrappers.Register(entry.Use, func(ctx context.Context, next *patcher.Executor, args ...any) (any, error) {
					return next.Call(ctx, args...)
				})
			}
		}
	}
	return callbacks, wrappers
}

// collectTraces returns the traces of every hook that has registrations,
// callbacks first, each in declaration order.
func collectTraces(opts *bag.Bag) []patcher.Trace {
	var traces []patcher.Trace
	for _, h := range patcher.CallbackHooks() {
		if trace := patcher.TraceCallbacks(opts, h); trace.Len() > 0 {
			traces = append(traces, trace)
		}
	}
	for _, h := range patcher.WrapperHooks() {
		if trace := patcher.TraceWrappers(opts, h); trace.Len() > 0 {
			traces = append(traces, trace)
		}
	}
	return traces
}

func renderTable(w io.Writer, header []string, data [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoFormatHeaders(false)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	table.AppendBulk(data)
	table.Render()
}
