package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Harshitk-cp/concord/internal/detect"
	"github.com/Harshitk-cp/concord/internal/ledger"
	"github.com/Harshitk-cp/concord/internal/service"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type auditOptions struct {
	cycleID       string
	seed          string
	maxIterations int
	ledgerOut     string
	verbose       bool
}

func newAuditCmd() *cobra.Command {
	var opts auditOptions
	cmd := &cobra.Command{
		Use:   "audit [file]",
		Short: "Run the audit cycle over a file (or stdin) and print the summary",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer func() { _ = f.Close() }()
				in = f
			}
			return runAudit(cmd.Context(), in, cmd.OutOrStdout(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.cycleID, "id", "", "cycle id (random when empty)")
	cmd.Flags().StringVar(&opts.seed, "seed", "", "ledger genesis seed (construction time when empty)")
	cmd.Flags().IntVar(&opts.maxIterations, "max-iterations", service.DefaultMaxIterations, "iteration valve")
	cmd.Flags().StringVar(&opts.ledgerOut, "ledger-out", "", "write the ledger export to this file")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "log cycle progress to stderr")
	return cmd
}

type auditReport struct {
	Summary any    `json:"summary"`
	Content string `json:"content"`
	Ledger  struct {
		Length int    `json:"length"`
		Head   string `json:"head"`
	} `json:"ledger"`
}

func runAudit(ctx context.Context, in io.Reader, out io.Writer, opts auditOptions) error {
	data, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read content: %w", err)
	}
	content := string(data)
	if strings.TrimSpace(content) == "" {
		return fmt.Errorf("content is empty")
	}

	logger := zap.NewNop()
	if opts.verbose {
		logger, _ = zap.NewDevelopment()
	}

	var ledgerOpts []ledger.Option
	if opts.seed != "" {
		ledgerOpts = append(ledgerOpts, ledger.WithGenesisSeed(opts.seed))
	}
	l := ledger.New(ledgerOpts...)
	kw := detect.NewKeyword()
	driver := service.NewDriver(service.NewCycleEngine(kw, kw, kw, l, logger), logger)
	driver.SetMaxIterations(opts.maxIterations)

	id := opts.cycleID
	if id == "" {
		id = uuid.NewString()
	}
	run, err := driver.Run(ctx, id, content, nil)
	if err != nil {
		return err
	}

	if opts.ledgerOut != "" {
		if err := writeJSONFile(opts.ledgerOut, l.Export()); err != nil {
			return fmt.Errorf("write ledger export: %w", err)
		}
	}

	var report auditReport
	report.Summary = run.Summary
	report.Content = run.Cycle.Content
	report.Ledger.Length = l.Len()
	report.Ledger.Head = l.Head()

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

func writeJSONFile(path string, v any) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}
