package cli

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

	"github.com/ppiankov/integridade/internal/model"
)

func writeContracts(t *testing.T, dir, name string, pairs int) string {
	t.Helper()
	var sb strings.Builder
	sb.WriteString("nifAdjudicante;nomeAdjudicante;nifAdjudicatario;nomeAdjudicatario;tipoProcedimento;precoContratual;dataCelebracaoContrato\n")
	for p := 0; p < pairs; p++ {
		for i := 0; i < 12; i++ {
			fmt.Fprintf(&sb, "50010%04d;Câmara %d;50999%04d;Fornecedor %d;Ajuste Direto;18 500,00;2024-%02d-10\n", p, p, p, p, i%12+1)
		}
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(sb.String()), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "integridade v"+Version+"\n", out)
}

func TestLoadConfig_Environment(t *testing.T) {
	t.Setenv("INTEGRIDADE_THRESHOLDS_DOMINANT_QUOTA_THRESHOLD", "40")
	t.Setenv("INTEGRIDADE_THRESHOLDS_FRAGMENTATION_MIN_COUNT", "7")
	t.Setenv("INTEGRIDADE_LOG_MODE", "production")

	cfg, err := loadConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, 40.0, cfg.Thresholds.Dominant.QuotaThreshold)
	assert.Equal(t, 7, cfg.Thresholds.Fragmentation.MinCount)
	assert.Equal(t, "production", cfg.Log.Mode)
	assert.Equal(t, 20000.0, cfg.Thresholds.Fragmentation.PriceCeiling)
}

func TestLoadConfig_KeepsBase(t *testing.T) {
	cfg, err := loadConfig(model.DemoConfig())
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Thresholds.Fragmentation.MinCount)
	assert.Equal(t, 30.0, cfg.Thresholds.Dominant.QuotaThreshold)
}

func TestApplyLLMEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("OLLAMA_BASE_URL", "http://ollama:11434")

	cfg := model.DefaultConfig()
	cfg.LLM.Provider = "openai"
	applyLLMEnv(cfg)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)

	cfg = model.DefaultConfig()
	cfg.LLM.Provider = "ollama"
	applyLLMEnv(cfg)
	assert.Equal(t, "http://ollama:11434", cfg.LLM.BaseURL)
	assert.Empty(t, cfg.LLM.APIKey)
}

func TestAnalysisFlags_Apply(t *testing.T) {
	cfg := model.DefaultConfig()
	f := analysisFlags{top: 3, parallel: 4, ceiling: 75000, minCount: 8, quota: 50, canonical: true, noFooter: true}
	f.apply(cfg)

	assert.Equal(t, 3, cfg.Output.Top)
	assert.Equal(t, 4, cfg.Concurrency.Detectors)
	assert.Equal(t, 75000.0, cfg.Thresholds.Fragmentation.PriceCeiling)
	assert.Equal(t, 8, cfg.Thresholds.Fragmentation.MinCount)
	assert.Equal(t, 50.0, cfg.Thresholds.Dominant.QuotaThreshold)
	assert.True(t, cfg.Thresholds.Address.Canonicalize)
	assert.False(t, cfg.Output.IncludeFooter)

	untouched := model.DefaultConfig()
	(&analysisFlags{}).apply(untouched)
	assert.Equal(t, model.DefaultConfig().Thresholds, untouched.Thresholds)
}

func TestReportBaseName(t *testing.T) {
	assert.Equal(t, "portal_base", reportBaseName("dados_base/portal_base.csv"))
	assert.Equal(t, "contratos-2024", reportBaseName("/tmp/contratos 2024.xlsx"))
	assert.Equal(t, "report", reportBaseName(".csv"))
}

func TestAnalyzeCommand(t *testing.T) {
	dir := t.TempDir()
	path := writeContracts(t, dir, "portal_base.csv", 1)
	jsonPath := filepath.Join(dir, "report.json")
	mdPath := filepath.Join(dir, "report.md")
	csvPath := filepath.Join(dir, "alerts.csv")

	out, err := execute(t, "analyze", path, "--json", jsonPath, "--md", mdPath, "--csv", csvPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Contracts:")

	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	var report model.Report
	require.NoError(t, json.Unmarshal(data, &report))
	assert.Equal(t, 12, report.Summary.Records)
	require.Len(t, report.Alerts(model.KindFragmentation), 1)
	assert.Equal(t, "509990000", report.Alerts(model.KindFragmentation)[0].Subject.SupplierID)

	assert.FileExists(t, mdPath)
	assert.FileExists(t, csvPath)
}

func TestAnalyzeCommand_DatasetExport(t *testing.T) {
	dir := t.TempDir()
	path := writeContracts(t, dir, "portal_base.csv", 1)
	exportPath := filepath.Join(dir, "resultado.csv")
	t.Cleanup(func() { analyzeOpts.outDataset = "" })

	_, err := execute(t, "analyze", path, "--dataset-csv", exportPath)
	require.NoError(t, err)

	data, err := os.ReadFile(exportPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(strings.TrimPrefix(string(data), "\ufeff")), "\n")
	require.Len(t, lines, 13)
	assert.Equal(t, "nipc_adjudicante;nome_adjudicante;nipc_adjudicatario;nome_adjudicatario;tipo_procedimento;preco;data_celebracao", lines[0])
	assert.Equal(t, "500100000;Câmara 0;509990000;Fornecedor 0;Ajuste Direto;18500;2024-01-10", lines[1])
}

func TestAnalyzeCommand_MissingFile(t *testing.T) {
	_, err := execute(t, "analyze", filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}

func TestBatchCommand(t *testing.T) {
	dir := t.TempDir()
	data := filepath.Join(dir, "data")
	require.NoError(t, os.MkdirAll(data, 0o755))
	writeContracts(t, data, "contratos2023.csv", 1)
	writeContracts(t, data, "contratos2024.csv", 2)
	reports := filepath.Join(dir, "reports")

	out, err := execute(t, "batch", data, "--output-dir", reports, "--concurrency", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Success: 2")

	for _, name := range []string{"contratos2023", "contratos2024"} {
		assert.FileExists(t, filepath.Join(reports, name+".json"))
		assert.FileExists(t, filepath.Join(reports, name+".md"))
		assert.FileExists(t, filepath.Join(reports, name+".alerts.csv"))
	}
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "config.yaml")

	out, err := execute(t, "config", "init", "--path", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Integridade configuration")
	assert.Contains(t, string(data), "quota_threshold: 25")
	assert.Contains(t, string(data), "price_ceiling: 20000")

	_, err = execute(t, "config", "init", "--path", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestConfigShow_RedactsKey(t *testing.T) {
	t.Setenv("INTEGRIDADE_LLM_API_KEY", "sk-secret")

	out, err := execute(t, "config", "show")
	require.NoError(t, err)
	assert.NotContains(t, out, "sk-secret")
	assert.Contains(t, out, "[REDACTED]")
}

func TestDemoCommand(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "demo.json")

	out, err := execute(t, "demo", "--out-dir", dir, "--contracts", "300", "--json", jsonPath)
	require.NoError(t, err)
	assert.Contains(t, out, "contratos_demo.csv")

	assert.FileExists(t, filepath.Join(dir, "contratos_demo.csv"))
	assert.FileExists(t, filepath.Join(dir, "entidades_demo.csv"))

	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	var report model.Report
	require.NoError(t, json.Unmarshal(data, &report))
	assert.NotEmpty(t, report.Alerts(model.KindFragmentation))
	assert.NotEmpty(t, report.Alerts(model.KindSharedAddress))
}

func TestSchemaCommand(t *testing.T) {
	out, err := execute(t, "schema")
	require.NoError(t, err)
	assert.Contains(t, out, "nipc_adjudicante")

	path := writeContracts(t, t.TempDir(), "portal_base.csv", 1)
	out, err = execute(t, "schema", path)
	require.NoError(t, err)
	assert.Contains(t, out, "nipc_adjudicante")
	assert.Contains(t, out, "nifAdjudicante")
	assert.Contains(t, out, "missing")
}
