package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/FACorreiaa/invoice-import/internal/domain/import/encoding"
	importservice "github.com/FACorreiaa/invoice-import/internal/domain/import/service"
	"github.com/FACorreiaa/invoice-import/internal/domain/import/sniffer"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "importctl",
		Short:         "Normalize and inspect CSV import files",
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newNormalizeCmd(), newSniffCmd(), newStrategiesCmd())
	return root
}

func newNormalizeCmd() *cobra.Command {
	var (
		showStrategy bool
		output       string
	)

	cmd := &cobra.Command{
		Use:   "normalize <file>",
		Short: "Print a file converted to UTF-8",
		Long: `Normalize detects the encoding of a CSV file and prints it as UTF-8.

Wide encodings (UTF-16/UTF-32) are detected by byte order mark or byte
pattern. Other files go through UTF-8 validation, Windows-1252 detection,
replacement character repair and a final legacy encoding pass.

Examples:
  importctl normalize clients.csv
  importctl normalize clients.csv --strategy -o clients.utf8.csv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(args[0]); err != nil {
				return fmt.Errorf("cannot read %s: %w", args[0], err)
			}

			result := encoding.ReadFile(args[0])
			if showStrategy {
				fmt.Fprintf(cmd.ErrOrStderr(), "strategy=%s encoding=%s valid=%t\n",
					result.Strategy, result.Encoding, result.Valid)
			}

			if output != "" {
				if err := os.WriteFile(output, []byte(result.Text), 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", output, err)
				}
				return nil
			}
			_, err := fmt.Fprint(cmd.OutOrStdout(), result.Text)
			return err
		},
	}

	cmd.Flags().BoolVar(&showStrategy, "strategy", false, "Print the conversion stage that produced the text to stderr")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the UTF-8 text to a file instead of stdout")
	return cmd
}

func newSniffCmd() *cobra.Command {
	var (
		detectHeader bool
		entity       string
	)

	cmd := &cobra.Command{
		Use:   "sniff <file>",
		Short: "Show the delimiter, headers and fingerprint of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := importservice.ReadFileWithProperEncoding(args[0])
			if text == "" {
				return errors.New("file is empty or unreadable")
			}

			delimiter := sniffer.DetectDelimiter(text)
			opts := &sniffer.DetectOptions{HeaderRowIndex: 0, Delimiter: delimiter}
			if detectHeader {
				opts = &sniffer.DetectOptions{HeaderRowIndex: -1}
			}
			cfg, err := sniffer.DetectConfigWithOptions(text, opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "delimiter:   %q\n", string(cfg.Delimiter))
			fmt.Fprintf(out, "header row:  %d\n", cfg.SkipLines)
			fmt.Fprintf(out, "headers:     %s\n", strings.Join(cfg.Headers, " | "))
			fmt.Fprintf(out, "fingerprint: %s\n", cfg.Fingerprint)

			if entity == "" {
				return nil
			}
			e, err := importservice.ParseEntity(entity)
			if err != nil {
				return err
			}

			suggested := sniffer.SuggestColumns(cfg.Headers, importservice.AvailableFields(e))
			fields := make([]string, 0, len(suggested))
			for field := range suggested {
				fields = append(fields, field)
			}
			sort.Strings(fields)

			fmt.Fprintln(out, "suggested mapping:")
			for _, field := range fields {
				fmt.Fprintf(out, "  %-28s <- %s\n", field, cfg.Headers[suggested[field]])
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&detectHeader, "detect-header", false, "Search for the header row instead of using the first line")
	cmd.Flags().StringVar(&entity, "entity", "", "Suggest a column mapping for this entity (client, invoice, ...)")
	return cmd
}

func newStrategiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "strategies",
		Short: "List the encoding conversion stages in the order they are tried",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			names := append(encoding.NewNormalizer(nil).Strategies(), encoding.StrategyFallback)
			for i, name := range names {
				fmt.Fprintf(cmd.OutOrStdout(), "%d. %s\n", i+1, name)
			}
		},
	}
}
