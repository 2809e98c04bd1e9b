package demo

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/integridade/internal/ingest"
	"github.com/ppiankov/integridade/internal/logger"
	"github.com/ppiankov/integridade/internal/model"
	"github.com/ppiankov/integridade/internal/pipeline"
)

func TestContracts_Deterministic(t *testing.T) {
	a := NewSeeded(42).Contracts(500)
	b := NewSeeded(42).Contracts(500)
	c := NewSeeded(7).Contracts(500)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a.Rows, c.Rows)
}

func TestContracts_Shape(t *testing.T) {
	tbl := NewSeeded(42).Contracts(DefaultContracts)

	assert.Equal(t, ContractColumns, tbl.Columns)
	assert.Len(t, tbl.Rows, 3500+52+47+120+25+35)
	for _, row := range tbl.Rows {
		require.Len(t, row, len(ContractColumns))
		_, err := strconv.ParseFloat(row[6], 64)
		require.NoError(t, err)
		require.Len(t, row[7], len("2025-01-01"))
	}
}

func TestContracts_PlantedPatterns(t *testing.T) {
	tbl := NewSeeded(1).Contracts(DefaultContracts)

	var builder, media, dominant, cascaisYearEnd int
	for _, row := range tbl.Rows {
		switch row[2] {
		case SplitBuilder.ID:
			builder++
			price, _ := strconv.ParseFloat(row[6], 64)
			assert.GreaterOrEqual(t, price, 15000.0)
			assert.LessOrEqual(t, price, 19900.0)
			assert.Equal(t, "Ajuste Direto Simplificado", row[5])
			assert.Equal(t, Gondomar.ID, row[0])
		case SplitMedia.ID:
			media++
			assert.Equal(t, Oeiras.ID, row[0])
		case Dominant.ID:
			dominant++
			assert.Equal(t, Leiria.ID, row[0])
		}
		if row[0] == Cascais.ID && (row[7][5:7] == "11" || row[7][5:7] == "12") {
			cascaisYearEnd++
		}
	}
	assert.Equal(t, 52, builder)
	assert.Equal(t, 47, media)
	assert.Equal(t, 25, dominant)
	assert.GreaterOrEqual(t, cascaisYearEnd, 120)
}

func TestEntities(t *testing.T) {
	tbl := NewSeeded(42).Entities()

	assert.Equal(t, EntityColumns, tbl.Columns)
	assert.Len(t, tbl.Rows, len(suppliers)+6+len(buyers))

	var shared []string
	for _, row := range tbl.Rows {
		if row[2] == SharedAddress {
			shared = append(shared, row[0])
		}
	}
	assert.ElementsMatch(t, []string{SharedAddress1.ID, SharedAddress2.ID, SharedAddress3.ID}, shared)
}

func TestDemoDataset_Analysis(t *testing.T) {
	g := NewSeeded(42)
	contracts := g.Contracts(DefaultContracts)
	entities := g.Entities()

	p, err := pipeline.NewPipeline(model.DemoConfig(), logger.Nop())
	require.NoError(t, err)

	ds, mapping := p.Normalize(*contracts)
	report, err := p.Analyze(context.Background(), pipeline.Input{
		Source:   "demo",
		Dataset:  ds,
		Entities: p.NormalizeEntities(*entities),
		Mapping:  mapping,
	})
	require.NoError(t, err)

	frag := report.Alerts(model.KindFragmentation)
	require.GreaterOrEqual(t, len(frag), 2)
	assert.Equal(t, SplitBuilder.ID, frag[0].Subject.SupplierID)
	assert.Equal(t, 52.0, frag[0].Metric(model.MetricCount))
	assert.True(t, frag[0].HasFlag(model.FlagNearThreshold))
	assert.Equal(t, SplitMedia.ID, frag[1].Subject.SupplierID)
	assert.Equal(t, 47.0, frag[1].Metric(model.MetricCount))

	var found bool
	for _, a := range report.Alerts(model.KindSharedAddress) {
		if a.Subject.Address == SharedAddress {
			found = true
			assert.Equal(t, 3.0, a.Metric(model.MetricMembers))
		}
	}
	assert.True(t, found, "planted shared address not reported")

	assert.Equal(t, len(contracts.Rows), report.Summary.Records)
}

func TestWriteCSV_ReadsBack(t *testing.T) {
	dir := t.TempDir()
	tbl := NewSeeded(3).Contracts(100)

	path, err := WriteCSV(dir, tbl)
	require.NoError(t, err)

	f, err := ingest.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "utf-8-bom", f.Encoding)
	assert.Equal(t, ',', f.Delimiter)
	assert.Equal(t, tbl.Columns, f.Table.Columns)
	assert.Equal(t, tbl.Rows, f.Table.Rows)
}
