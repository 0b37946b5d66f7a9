package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mohammad-safakhou/cowrite/config"
	"github.com/mohammad-safakhou/cowrite/internal/agent/core"
)

// readInput reads the named file, or stdin when no file is given or it is "-".
func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(args[0])
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func parseCMD(cfgPath *string) *cobra.Command {
	var repair bool
	parse := &cobra.Command{
		Use:   "parse [file]",
		Short: "Recover the JSON object from model output (file or stdin)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readInput(cmd, args)
			if err != nil {
				return err
			}

			logger := zap.NewNop()
			parser := core.NewEnvelopeParser(nil, logger)
			if repair {
				cfg, err := config.LoadConfig(*cfgPath)
				if err != nil {
					return err
				}
				if logger, err = newLogger(cfg.Log, cfg.Telemetry.ServiceName); err != nil {
					return err
				}
				defer func() { _ = logger.Sync() }()
				_, inv, err := newRuntime(cmd.Context(), cfg.LLM, logger, nil)
				if err != nil {
					return fmt.Errorf("repair needs an LLM provider (or pass --repair=false): %w", err)
				}
				parser = core.NewEnvelopeParser(core.NewRepairer(inv, cfg.LLM.RepairModel, logger.Named("repair"), nil), logger)
			}

			obj, err := parser.Parse(cmd.Context(), string(raw))
			if err != nil {
				return err
			}
			return writeJSON(cmd, obj)
		},
	}
	parse.Flags().BoolVar(&repair, "repair", true, "ask the repair model to fix JSON that does not parse")
	return parse
}
