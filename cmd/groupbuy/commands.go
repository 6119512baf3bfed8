package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/groupbuy-orders/internal/common"
	"github.com/joseph-ayodele/groupbuy-orders/internal/core"
	"github.com/joseph-ayodele/groupbuy-orders/internal/entity"
	"github.com/joseph-ayodele/groupbuy-orders/internal/llm/openai"
)

type rootOptions struct {
	verbose bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "groupbuy",
		Short:         "Parse group-buy SMS orders against a seller guide",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log engine events to stderr")

	root.AddCommand(
		newGuideCmd(opts),
		newParseCmd(opts),
		newVerifyCmd(opts),
		newDemoCmd(opts),
	)
	return root
}

func (o *rootOptions) logger(cmd *cobra.Command) *slog.Logger {
	if !o.verbose {
		return slog.New(slog.DiscardHandler)
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func newGuideCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "guide <file>",
		Short: "Show what is recognized in a seller guide",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			engine := core.NewEngine(core.WithLogger(opts.logger(cmd)))
			summary := engine.LoadGuide(text)

			out := cmd.OutOrStdout()
			printSummary(out, summary)
			profile := engine.Profile()
			for _, code := range profile.ProductCodes() {
				p := profile.Products[code]
				line := fmt.Sprintf("  %s번 %s - %s원", p.Code, p.Name, humanize.Comma(int64(p.Price)))
				if len(p.Options) > 0 {
					line += " [" + strings.Join(p.Options, ", ") + "]"
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
}

func newParseCmd(opts *rootOptions) *cobra.Command {
	var guidePath string
	cmd := &cobra.Command{
		Use:   "parse --guide <file> [order file]",
		Short: "Parse one order message; reads stdin when no file (or -) is given",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := loadEngine(cmd, guidePath, opts.logger(cmd))
			if err != nil {
				return err
			}
			src := "-"
			if len(args) == 1 {
				src = args[0]
			}
			text, err := readInput(cmd, src)
			if err != nil {
				return err
			}
			res, err := engine.Process(cmd.Context(), text)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, res.Confirmation)
			fmt.Fprintln(out)
			fmt.Fprintln(out, string(res.Label))
			return nil
		},
	}
	cmd.Flags().StringVar(&guidePath, "guide", "", "seller guide file (required)")
	_ = cmd.MarkFlagRequired("guide")
	return cmd
}

func newVerifyCmd(opts *rootOptions) *cobra.Command {
	var guidePath string
	cmd := &cobra.Command{
		Use:   "verify --guide <file> <order file>",
		Short: "Cross-check an order's totals with the hosted price verifier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := common.LoadConfig()
			if !cfg.VerifierEnabled() {
				return common.WrapError(common.ErrNotConfigured, "OPENAI_API_KEY is required for verify")
			}
			logger := opts.logger(cmd)
			verifier := openai.NewClient(openai.Config{
				Model:       cfg.LLM.Model,
				APIKey:      cfg.LLM.APIKey,
				BaseURL:     cfg.LLM.BaseURL,
				Temperature: cfg.LLM.Temperature,
				Timeout:     cfg.LLM.Timeout,
			}, logger)

			engine, err := loadEngine(cmd, guidePath, logger, core.WithVerifier(verifier))
			if err != nil {
				return err
			}
			text, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			res, err := engine.Process(cmd.Context(), text)
			if err != nil {
				return err
			}
			cc, err := engine.CrossCheck(cmd.Context(), res.Order, res.Validation)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetEscapeHTML(false)
			enc.SetIndent("", "  ")
			return enc.Encode(cc)
		},
	}
	cmd.Flags().StringVar(&guidePath, "guide", "", "seller guide file (required)")
	_ = cmd.MarkFlagRequired("guide")
	return cmd
}

func loadEngine(cmd *cobra.Command, guidePath string, logger *slog.Logger, extra ...core.Option) (*core.Engine, error) {
	guide, err := readInput(cmd, guidePath)
	if err != nil {
		return nil, fmt.Errorf("read guide: %w", err)
	}
	engine := core.NewEngine(append([]core.Option{core.WithLogger(logger)}, extra...)...)
	engine.LoadGuide(guide)
	return engine, nil
}

// readInput reads a file, or stdin for "-".
func readInput(cmd *cobra.Command, path string) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(cmd.InOrStdin())
		return string(b), err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func printSummary(w io.Writer, s entity.GuideSummary) {
	fmt.Fprintf(w, "가이드: %s, 상품 %d개\n", s.SellerName, s.ProductsCount)
	if s.BankAccount != "" {
		fmt.Fprintf(w, "입금계좌: %s\n", s.BankAccount)
	}
	fmt.Fprintf(w, "배송비: %s원 (%s원 이상 무료)\n", humanize.Comma(int64(s.ShippingFee)), humanize.Comma(int64(s.FreeShipping)))
}
