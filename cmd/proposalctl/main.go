package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/futig/proposal-backend/internal/builder"
	"github.com/futig/proposal-backend/internal/config"
	"github.com/futig/proposal-backend/internal/entity"
	"github.com/futig/proposal-backend/internal/repository"
	"github.com/futig/proposal-backend/internal/usecase/proposal"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var environment string

	cmd := &cobra.Command{
		Use:           "proposalctl",
		Short:         "Run proposal interviews and inspect configuration from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&environment, "env", "e", os.Getenv("APP_ENV"), "Environment, selects the .env.<env> file")

	cmd.AddCommand(
		interviewCmd(&environment),
		providersCmd(&environment),
		formatsCmd(),
		migrateCmd(&environment),
	)
	return cmd
}

func interviewCmd(environment *string) *cobra.Command {
	var (
		format string
		stream bool
		export string
		out    string
		user   string
	)

	cmd := &cobra.Command{
		Use:   "interview",
		Short: "Answer the questions interactively, then print the proposal",
		RunE: func(cmd *cobra.Command, args []string) error {
			pf, err := entity.ParseProposalFormat(format)
			if err != nil {
				return err
			}
			ef, err := entity.ParseExportFormat(export)
			if err != nil {
				return err
			}
			if ef != "" && out == "" {
				return fmt.Errorf("%w: --out is required with --export", entity.ErrMissingField)
			}

			core, err := builder.BuildCore(cmd.Context(), *environment)
			if err != nil {
				return err
			}
			defer core.Close(context.Background())

			return runInterview(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), core.Sessions, core.Synth, interviewOptions{
				User:   user,
				Format: pf,
				Stream: stream,
				Export: ef,
				Out:    out,
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", string(entity.ProposalFormatDetailed), "Proposal format (brief, detailed, executive, formal)")
	cmd.Flags().BoolVar(&stream, "stream", false, "Print the proposal as it is written")
	cmd.Flags().StringVar(&export, "export", "", "Also save the proposal as markdown, docx or pdf")
	cmd.Flags().StringVarP(&out, "out", "o", "", "File to save the export to")
	cmd.Flags().StringVar(&user, "user", currentUser(), "Session owner")
	return cmd
}

func providersCmd(environment *string) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "Print the resolved LLM provider table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*environment)
			if err != nil {
				return err
			}
			return printProviders(cmd.OutOrStdout(), cfg.LLMCfg.Router)
		},
	}
}

func printProviders(w io.Writer, router entity.RouterConfig) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tKIND\tMODEL\tPRIORITY\tPURPOSES\tDEFAULT")
	for _, p := range router.Sorted() {
		purposes := make([]string, 0, len(p.Purposes))
		for _, purpose := range p.Purposes {
			purposes = append(purposes, string(purpose))
		}
		if len(purposes) == 0 {
			purposes = append(purposes, "any")
		}
		def := ""
		if p.ID == router.DefaultProvider {
			def = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n", p.ID, p.Kind, p.Model, p.Priority, strings.Join(purposes, ","), def)
	}
	return tw.Flush()
}

func formatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List proposal formats and their sections",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printFormats(cmd.OutOrStdout())
		},
	}
}

func printFormats(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FORMAT\tMIN WORDS\tSECTIONS")
	for _, f := range proposal.Formats() {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", f.Format, f.MinWords, strings.Join(f.Sections, ", "))
	}
	return tw.Flush()
}

func migrateCmd(environment *string) *cobra.Command {
	var down bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply PostgreSQL migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(*environment)
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("%w: DATABASE_URL", entity.ErrMissingField)
			}

			run := repository.RunMigrations
			if down {
				run = repository.RollbackMigration
			}
			version, err := run(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", version)
			return nil
		},
	}

	cmd.Flags().BoolVar(&down, "down", false, "Roll back the most recent migration instead")
	return cmd
}

func currentUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "cli"
}
