package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gogpu/tensorshade/emit"
	"github.com/gogpu/tensorshade/ir"
	"github.com/gogpu/tensorshade/spirv"
)

var debug bool

func main() {
	root := &cobra.Command{
		Use:   "tshadec",
		Short: "tensorshade compiler driver",
	}
	root.PersistentFlags().BoolVar(&debug, "debug", false, "enable verbose development logging")

	root.AddCommand(newCompileCmd())
	root.AddCommand(newDumpHeaderCmd())
	root.AddCommand(newDisasmCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger() *zap.SugaredLogger {
	var l *zap.Logger
	var err error
	if debug {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		// zap itself failing to construct is unrecoverable; fall back to a
		// bare logger rather than leave the CLI without one.
		l = zap.NewNop()
	}
	return l.Sugar()
}

func newCompileCmd() *cobra.Command {
	var out string
	opts := emit.DefaultOptions()
	versionFlag := newSPIRVVersionFlag(opts.Version)

	cmd := &cobra.Command{
		Use:   "compile <kernels.json>",
		Short: "compile an IR fixture file to a .tshad module",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := newLogger()
			defer log.Sync()

			kernels, err := loadKernelFixture(args[0])
			if err != nil {
				return fmt.Errorf("tshadec: %w", err)
			}
			log.Debugw("loaded kernel fixture", "path", args[0], "kernels", len(kernels))

			opts.Version = versionFlag.version
			body, header, err := emit.Module(kernels, opts)
			if err != nil {
				return fmt.Errorf("tshadec: compile: %w", err)
			}

			module := append(header.Encode(), body...)
			if out == "" {
				out = args[0] + ".tshad"
			}
			if err := os.WriteFile(out, module, 0o644); err != nil {
				return fmt.Errorf("tshadec: write %s: %w", out, err)
			}
			log.Infow("wrote compiled module", "path", out, "bytes", len(module))

			if dumpPath := os.Getenv("HL_SPIRV_DUMP_FILE"); dumpPath != "" {
				if err := os.WriteFile(dumpPath, body, 0o644); err != nil {
					return fmt.Errorf("tshadec: HL_SPIRV_DUMP_FILE: write %s: %w", dumpPath, err)
				}
				log.Debugw("dumped SPIR-V body", "path", dumpPath, "bytes", len(body))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output .tshad path (default: <input>.tshad)")
	cmd.Flags().Var(versionFlag, "spirv-version", "target SPIR-V version, as MAJOR.MINOR")
	return cmd
}

func newDumpHeaderCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump-header <module.tshad>",
		Short: "print a compiled module's side-car header as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("tshadec: %w", err)
			}
			header, _, err := spirv.Decode(data)
			if err != nil {
				return fmt.Errorf("tshadec: dump-header: %w", err)
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(header)
		},
	}
}

func newDisasmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disasm <module.spv>",
		Short: "disassemble a raw SPIR-V body to .spvasm text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return disassemble(args[0])
		},
	}
}

// kernelFixture is the JSON shape loadKernelFixture reads: a test/dev-time
// serialization of ir.Kernel, not a format any other tool produces.
type kernelFixture struct {
	Kernels []*ir.Kernel `json:"kernels"`
}

func loadKernelFixture(path string) ([]*ir.Kernel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var fx kernelFixture
	if err := json.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return fx.Kernels, nil
}
