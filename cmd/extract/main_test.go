package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facturaIA/invoice-extraction-service/internal/auth"
	"github.com/facturaIA/invoice-extraction-service/internal/models"
)

const sampleInvoice = "Invoice INV-2024-001\nDate: 03/15/2024\nDue Date: 04/14/2024\nFrom: Acme Corp\nTo: Beta LLC\nWidget  2  10.00  20.00\nSubtotal 20.00\nTax 2.00\nTotal 22.00"

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	strategies = nil
	mimeType = ""
	previousPath = ""

	out := &bytes.Buffer{}
	rootCmd.SetOut(out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRunCommand_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "invoice.txt")
	require.NoError(t, os.WriteFile(path, []byte(sampleInvoice), 0o644))

	out, err := execute(t, "", "run", "--config", filepath.Join(dir, "missing.yaml"), "--strategies", "regex", path)
	require.NoError(t, err)

	var outcome models.ReconciliationOutcome
	require.NoError(t, json.Unmarshal([]byte(out), &outcome))
	assert.True(t, outcome.IsPlausibleInvoice, outcome.Reason)
	assert.Equal(t, "Acme Corp", outcome.Invoice.Vendor)
}

func TestCheckCommand_Stdin(t *testing.T) {
	dir := t.TempDir()
	text := "Account Statement\nOpening Balance 1,000.00\nPayment received 200.00\nClosing Balance 800.00"

	out, err := execute(t, text, "check", "--config", filepath.Join(dir, "missing.yaml"),
		"--strategies", "regex", "--mime", "text/plain", "-")
	require.NoError(t, err)

	var resp struct {
		Proceed bool   `json:"proceed"`
		Reason  string `json:"reason"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.False(t, resp.Proceed)
	assert.NotEmpty(t, resp.Reason)
}

func TestRunCommand_MissingFile(t *testing.T) {
	_, err := execute(t, "", "run", "--strategies", "regex", "/nonexistent/invoice.pdf")
	assert.Error(t, err)
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-secret")

	out, err := execute(t, "", "token", "--config", filepath.Join(t.TempDir(), "missing.yaml"), "--tenant", "acme")
	require.NoError(t, err)

	claims, err := auth.ParseToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "acme", claims.Tenant)
	assert.Equal(t, "cli", claims.UserID)
}
