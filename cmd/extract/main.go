// Package main implements the extract CLI, which runs the extraction engine
// on local files.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/facturaIA/invoice-extraction-service/internal/auth"
	"github.com/facturaIA/invoice-extraction-service/internal/engine"
	"github.com/facturaIA/invoice-extraction-service/internal/logging"
	"github.com/facturaIA/invoice-extraction-service/internal/models"
)

var (
	configPath   string
	mimeType     string
	strategies   []string
	logLevel     string
	previousPath string

	tokenUser   string
	tokenTenant string
	tokenRole   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "extract",
	Short: "Run invoice extraction on local documents",
	Long: `extract runs the invoice extraction engine against a local PDF, image or
text file and prints the result as JSON. Provider credentials are read from
the same config file and environment variables as the server.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to config file")
	rootCmd.PersistentFlags().StringVar(&mimeType, "mime", "", "document MIME type (sniffed when empty)")
	rootCmd.PersistentFlags().StringSliceVar(&strategies, "strategies", nil, "strategy order, e.g. vision,textModel,regex")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level")

	runCmd.Flags().StringVar(&previousPath, "previous", "", "JSON file with an earlier partial result")

	tokenCmd.Flags().StringVar(&tokenUser, "user", "cli", "user id")
	tokenCmd.Flags().StringVar(&tokenTenant, "tenant", auth.DefaultTenant, "tenant alias")
	tokenCmd.Flags().StringVar(&tokenRole, "role", "user", "role")

	rootCmd.AddCommand(runCmd, checkCmd, tokenCmd)
}

var runCmd = &cobra.Command{
	Use:   "run <file>",
	Short: "Extract an invoice and print the outcome",
	Long: `Extract an invoice and print the reconciliation outcome.

Examples:
  # Extract a PDF with the configured strategies
  extract run invoice.pdf

  # Regex only, reading text from stdin
  cat invoice.txt | extract run --strategies regex --mime text/plain -`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

var checkCmd = &cobra.Command{
	Use:   "check <file>",
	Short: "Run the preliminary invoice check",
	Args:  cobra.ExactArgs(1),
	RunE:  runCheck,
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for the server (requires JWT_SECRET)",
	RunE:  runToken,
}

func runExtract(cmd *cobra.Command, args []string) error {
	eng, logger, err := buildEngine()
	if err != nil {
		return err
	}
	defer logger.Sync()

	req, err := readRequest(cmd, args[0])
	if err != nil {
		return err
	}
	if previousPath != "" {
		data, err := os.ReadFile(previousPath)
		if err != nil {
			return fmt.Errorf("failed to read previous result: %w", err)
		}
		var prev models.ExtractedInvoice
		if err := json.Unmarshal(data, &prev); err != nil {
			return fmt.Errorf("failed to parse previous result: %w", err)
		}
		req.Previous = &prev
	}

	outcome, err := eng.Extract(cmd.Context(), req)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), outcome)
}

func runCheck(cmd *cobra.Command, args []string) error {
	eng, logger, err := buildEngine()
	if err != nil {
		return err
	}
	defer logger.Sync()

	req, err := readRequest(cmd, args[0])
	if err != nil {
		return err
	}

	proceed, reason, err := eng.PreliminaryCheck(cmd.Context(), req)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), map[string]interface{}{
		"proceed": proceed,
		"reason":  reason,
	})
}

func runToken(cmd *cobra.Command, _ []string) error {
	config, err := models.LoadConfig(configPath)
	if err != nil {
		return err
	}
	auth.Init(config.Auth.JWTSecret)

	token, err := auth.GenerateToken(tokenUser, "", tokenTenant, "", tokenRole)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
	return err
}

func buildEngine() (*engine.Engine, *zap.Logger, error) {
	config, err := models.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	if len(strategies) > 0 {
		config.Extraction.Strategies = strategies
	}

	logger, err := logging.New(logLevel, "console")
	if err != nil {
		return nil, nil, err
	}

	eng, err := engine.NewFromConfig(config, logger, nil)
	if err != nil {
		return nil, nil, err
	}
	return eng, logger, nil
}

// readRequest loads a file, or stdin for "-". The MIME type falls back to the
// file extension and then to content sniffing inside the engine.
func readRequest(cmd *cobra.Command, path string) (engine.Request, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return engine.Request{}, fmt.Errorf("failed to read %s: %w", path, err)
	}

	declared := mimeType
	if declared == "" && path != "-" {
		declared = mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	}
	return engine.Request{Data: data, MIMEType: declared}, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
