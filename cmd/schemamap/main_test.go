package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T) string {
	t.Helper()

	var b strings.Builder
	b.WriteString("Sale_Date,Sales_Amount,Region,Area\n")

	for i := 1; i <= 12; i++ {
		fmt.Fprintf(&b, "2024-02-%02d,%d.25,North,N%d\n", i, 200+i, i)
	}

	path := filepath.Join(t.TempDir(), "sales.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))

	return path
}

func run(t *testing.T, args ...string) string {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--env-file", "", "--log-level", "error"))

	require.NoError(t, rootCmd.Execute(), out.String())

	return out.String()
}

func TestResolveJSON(t *testing.T) {
	dir := t.TempDir()
	export := filepath.Join(dir, "review.yaml")
	output := filepath.Join(dir, "clean.csv")

	out := run(t, "resolve", writeCSV(t), "--format", "json", "--export", export, "--output", output)

	var report struct {
		Entries []struct {
			Raw  string `json:"raw"`
			Name string `json:"name"`
			Type string `json:"type"`
		} `json:"entries"`
		Available []string `json:"available"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))

	require.Len(t, report.Entries, 4)
	assert.Equal(t, "Date", report.Entries[0].Name)
	assert.Equal(t, "Sales", report.Entries[1].Name)
	assert.Equal(t, "Region", report.Entries[2].Name)
	assert.Equal(t, "Region_1", report.Entries[3].Name)
	assert.Contains(t, report.Available, "sales_summary")
	assert.Contains(t, report.Available, "regional_sales")

	clean, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(clean), "Date,Sales,Region,Region_1\n"))

	review, err := os.ReadFile(export)
	require.NoError(t, err)
	assert.Contains(t, string(review), "header: Sale_Date")
}

func TestResolveText(t *testing.T) {
	out := run(t, "resolve", writeCSV(t), "--format", "text", "--export", "", "--output", "")

	assert.Contains(t, out, "HEADER")
	assert.Contains(t, out, "Region_1")
	assert.Contains(t, out, "sales_summary")
	assert.Contains(t, out, "[collision]")
}

func TestAnalyticsCommand(t *testing.T) {
	out := run(t, "analytics")

	assert.Contains(t, out, "demand_forecasting")
	assert.Contains(t, out, "one of: Sales, Amount")
}
