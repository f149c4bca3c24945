package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"annotator-be/internal/config"
	"annotator-be/internal/pkg/logger"
	"annotator-be/pkg/annotation"
	"annotator-be/pkg/rdfutil"
	"annotator-be/pkg/sparql"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "debug-sampler",
		Short: "Inspect candidate sampling against the configured SPARQL endpoint",
	}
	cmd.AddCommand(newSampleCommand(), newLogsCommand(), newQueryCommand())
	return cmd
}

func newSampleCommand() *cobra.Command {
	var (
		email string
		count int
	)
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Page forward through candidates the way an annotator session would",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			bank, err := sparql.LoadBankFile(cfg.Sparql.QueryBankPath)
			if err != nil {
				return err
			}
			prefixes, err := rdfutil.LoadPrefixFile(cfg.Sparql.PrefixFilePath)
			if err != nil {
				return err
			}
			store := sparql.NewClient(sparql.Options{
				QueryEndpoint:  cfg.Sparql.QueryEndpoint,
				UpdateEndpoint: cfg.Sparql.UpdateEndpoint,
				ConnectTimeout: cfg.Sparql.ConnectTimeout,
				ReadTimeout:    cfg.Sparql.ReadTimeout,
			})
			sampler, err := annotation.NewCandidateSampler(store, bank, annotation.SamplerConfig{
				AgreementWeight: cfg.Sparql.AgreementRate,
				MaxAttempts:     cfg.Sparql.MaxAttempts,
				RequestTimeout:  cfg.Sparql.RequestTimeout,
			}, logger.NewZapLogger(cfg.App.SamplerLogFilePath, false))
			if err != nil {
				return err
			}

			cache := annotation.NewSessionCandidateCache(email, sampler)
			header := color.New(color.FgCyan, color.Bold)
			for i := 0; i < count; i++ {
				start := time.Now()
				c, err := cache.Advance(context.Background())
				if err != nil {
					color.Red("  [%d] %v", i, err)
					continue
				}
				header.Printf("[%d] %s", cache.Position(), prefixes.Shorten(c.Subject))
				fmt.Printf("  strategy=%s offset=%d took=%s\n", c.Strategy, c.Offset, time.Since(start).Round(time.Millisecond))
				for _, t := range c.Triples {
					fmt.Printf("    %s %s\n", color.YellowString(prefixes.Term(t.Pred)), prefixes.Term(t.Obj))
				}
			}
			color.Green("Buffered %d candidates, %d offsets presented", cache.Len(), cache.Ledger().Len())
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "debug@example.org", "annotator email used for agreement sampling")
	cmd.Flags().IntVarP(&count, "count", "n", 5, "number of candidates to sample")
	return cmd
}

func newLogsCommand() *cobra.Command {
	var (
		level string
		limit int
		path  string
	)
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print recent sampler log entries, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				path = config.Load().App.SamplerLogFilePath
			}
			entries, err := logger.NewIsolatedLogger(path).GetLogs(level, limit, 0)
			if err != nil {
				return err
			}
			for _, e := range entries {
				line := fmt.Sprintf("%s %-5s %s %v", e.Timestamp, e.Level, e.Message, e.Details)
				switch e.Level {
				case "ERROR":
					color.Red("%s", line)
				case "WARN":
					color.Yellow("%s", line)
				default:
					fmt.Println(line)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&level, "level", "", "only show this level (INFO, WARN, ERROR)")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum entries to print")
	cmd.Flags().StringVar(&path, "file", "", "log file (defaults to SAMPLER_LOG_FILE_PATH)")
	return cmd
}

func newQueryCommand() *cobra.Command {
	var (
		offset    int
		annotator string
	)
	cmd := &cobra.Command{
		Use:   "query <tag>",
		Short: "Render a query from the bank without running it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bank, err := sparql.LoadBankFile(config.Load().Sparql.QueryBankPath)
			if err != nil {
				return err
			}
			mailbox, err := sparql.MailboxIRI(annotator)
			if err != nil {
				return err
			}
			q, err := bank.Prepare(args[0], sparql.QueryParams{Offset: offset, Limit: 1, CurrentAnnotator: mailbox})
			if err != nil {
				return err
			}
			fmt.Println(q)
			return nil
		},
	}
	cmd.Flags().IntVar(&offset, "offset", 0, "OFFSET bound into the query")
	cmd.Flags().StringVar(&annotator, "email", "debug@example.org", "annotator email bound into the query")
	return cmd
}
