// Package demo generates a synthetic Portal BASE style dataset with known
// integrity patterns planted in it. Output depends only on the *rand.Rand
// passed in.
package demo

import (
	"encoding/csv"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ppiankov/integridade/internal/model"
)

// DefaultContracts is the size of the demo dataset
const DefaultContracts = 5000

// Column headers as published by Portal BASE
var (
	ContractColumns = []string{
		"nifAdjudicante", "nomeAdjudicante", "nifAdjudicatario", "nomeAdjudicatario",
		"objectoContrato", "tipoProcedimento", "precoContratual", "dataCelebracaoContrato",
	}
	EntityColumns = []string{"nif", "designacao", "morada"}
)

// Party is a buyer or supplier
type Party struct {
	ID   string
	Name string
}

var buyers = []Party{
	{"500100144", "Câmara Municipal de Lisboa"},
	{"500100152", "Câmara Municipal do Porto"},
	{"500100179", "Câmara Municipal de Braga"},
	{"500100187", "Câmara Municipal de Coimbra"},
	{"500100195", "Câmara Municipal de Setúbal"},
	{"500100209", "Câmara Municipal de Gondomar"},
	{"500100217", "Câmara Municipal de Oeiras"},
	{"500100225", "Câmara Municipal de Cascais"},
	{"500100233", "Câmara Municipal de Sintra"},
	{"500100241", "Câmara Municipal de Leiria"},
	{"500100250", "Câmara Municipal de Viseu"},
	{"600100100", "INEM, I.P."},
	{"600100200", "SPMS - Serviços Partilhados do Ministério da Saúde"},
	{"600100300", "Instituto da Segurança Social, I.P."},
	{"600100400", "Metro do Porto, S.A."},
}

var suppliers = []Party{
	{"509000101", "TecnoServ - Soluções Informáticas, Lda."},
	{"509000102", "Construções Ribeiro & Filhos, S.A."},
	{"509000103", "Limpurbe - Serviços Urbanos, Lda."},
	{"509000104", "GreenPark - Jardins e Espaços Verdes, Lda."},
	{"509000105", "AutoFrota - Gestão de Veículos, S.A."},
	{"509000106", "SecurPT - Segurança e Vigilância, Lda."},
	{"509000107", "AlimentaPlus - Catering, S.A."},
	{"509000108", "Digital360 - Consultoria TI, Lda."},
	{"509000109", "EngePlus - Engenharia Civil, S.A."},
	{"509000110", "MediSupply - Material Hospitalar, Lda."},
	{"509000111", "FormaPro - Formação Profissional, Lda."},
	{"509000112", "TransPortuga - Transportes, S.A."},
	{"509000113", "ArquiDesign - Arquitectura, Lda."},
	{"509000114", "AquaPura - Tratamento de Águas, S.A."},
	{"509000115", "PaviStrada - Pavimentações, Lda."},
}

// Planted patterns
var (
	SplitBuilder   = Party{"509999001", "ABC Construções, Lda."}
	SplitMedia     = Party{"509999002", "XYZ MediaPro Comunicação, Lda."}
	SharedAddress1 = Party{"509999003", "Nova Obra, Unip., Lda."}
	SharedAddress2 = Party{"509999004", "ConstroiMais, Unip., Lda."}
	SharedAddress3 = Party{"509999005", "EngeStar, Unip., Lda."}
	Dominant       = Party{"509999006", "Tecniredes, S.A."}

	Gondomar = buyers[5]
	Oeiras   = buyers[6]
	Cascais  = buyers[7]
	Leiria   = buyers[9]
)

// SharedAddress is the registered address planted on three suppliers
const SharedAddress = "Rua Oculta, 13, 2ºD, 1500-001 Lisboa"

var procedures = []string{
	"Ajuste Direto",
	"Ajuste Direto Simplificado",
	"Concurso Público",
	"Concurso Limitado por Prévia Qualificação",
	"Procedimento de Negociação",
	"Consulta Prévia",
}

var procedureWeights = []float64{0.3, 0.15, 0.3, 0.05, 0.1, 0.1}

var monthWeights = []float64{0.07, 0.08, 0.09, 0.08, 0.08, 0.08, 0.08, 0.06, 0.09, 0.09, 0.10, 0.10}

var objects = []string{
	"Prestação de serviços de manutenção",
	"Empreitada de obras públicas",
	"Aquisição de equipamento informático",
	"Serviços de consultoria",
	"Fornecimento de material de escritório",
	"Serviços de limpeza e higiene",
	"Obras de requalificação urbana",
	"Serviços de segurança e vigilância",
	"Fornecimento de refeições",
	"Serviços de comunicação e marketing",
	"Manutenção de espaços verdes",
	"Reparação de vias municipais",
	"Serviços de formação profissional",
	"Aquisição de viaturas",
	"Serviços de transporte escolar",
}

var builderObjects = []string{
	"Reparação de passeios - Zona Norte",
	"Manutenção de drenagem pluvial",
	"Reparação de pavimento - Rua X",
	"Obras de conservação - Escola EB1",
	"Manutenção de edifício municipal",
}

var mediaObjects = []string{
	"Produção de conteúdos multimédia",
	"Gestão de redes sociais - Mês X",
	"Design gráfico - Agenda Cultural",
	"Produção de vídeo institucional",
	"Serviços de fotografia - Evento",
}

var addresses = []string{
	"Rua Augusta, 100, 1100-053 Lisboa",
	"Av. dos Aliados, 45, 4000-066 Porto",
	"Praça da República, 10, 4710-305 Braga",
	"Rua Ferreira Borges, 77, 3000-180 Coimbra",
	"Largo do Município, 1, 2900-098 Setúbal",
	"Praça Manuel Guedes, 1, 4434-501 Gondomar",
	"Largo Marquês de Pombal, 1, 2784-501 Oeiras",
	"Largo da Misericórdia, 1, 2754-501 Cascais",
}

// Generator builds demo tables from an explicit random source
type Generator struct {
	rng *rand.Rand
}

// NewGenerator wraps rng
func NewGenerator(rng *rand.Rand) *Generator {
	return &Generator{rng: rng}
}

// NewSeeded returns a generator whose output is fixed by seed
func NewSeeded(seed uint64) *Generator {
	return NewGenerator(rand.New(rand.NewPCG(seed, seed)))
}

// Contracts returns n background contracts (70% of n) plus the planted
// splitting, year-end, and dominance patterns
func (g *Generator) Contracts(n int) *model.Table {
	t := &model.Table{Name: "contratos_demo.csv", Columns: append([]string(nil), ContractColumns...)}

	for i := 0; i < n*7/10; i++ {
		buyer := buyers[g.rng.IntN(len(buyers))]
		supplier := suppliers[g.rng.IntN(len(suppliers))]
		procedure := procedures[g.weighted(procedureWeights)]

		var price float64
		if strings.Contains(procedure, "Concurso") {
			price = g.lognormal(11, 1.5)
		} else {
			price = g.lognormal(8, 1.2)
		}
		year := 2025
		if g.rng.Float64() < 0.4 {
			year = 2024
		}
		month := g.weighted(monthWeights) + 1
		t.Rows = append(t.Rows, g.row(buyer, supplier, objects[g.rng.IntN(len(objects))], procedure, price, year, month))
	}

	for i := 0; i < 52; i++ {
		price := 15000 + g.rng.Float64()*4900
		t.Rows = append(t.Rows, g.row(Gondomar, SplitBuilder, builderObjects[g.rng.IntN(len(builderObjects))],
			"Ajuste Direto Simplificado", price, 2025, g.month()))
	}

	for i := 0; i < 47; i++ {
		price := 12000 + g.rng.Float64()*7500
		t.Rows = append(t.Rows, g.row(Oeiras, SplitMedia, mediaObjects[g.rng.IntN(len(mediaObjects))],
			"Ajuste Direto", price, 2025, g.month()))
	}

	for i := 0; i < 120; i++ {
		month := 12
		if g.rng.Float64() < 0.4 {
			month = 11
		}
		supplier := suppliers[g.rng.IntN(len(suppliers))]
		t.Rows = append(t.Rows, g.row(Cascais, supplier, objects[g.rng.IntN(len(objects))],
			"Ajuste Direto", g.lognormal(9, 1), 2025, month))
	}

	for i := 0; i < 25; i++ {
		procedure := "Concurso Público"
		if g.rng.IntN(2) == 1 {
			procedure = "Ajuste Direto"
		}
		price := 80000 + g.rng.Float64()*270000
		t.Rows = append(t.Rows, g.row(Leiria, Dominant, "Empreitada de obras públicas - Lote "+strconv.Itoa(i+1),
			procedure, price, 2025, g.month()))
	}

	for i := 0; i < 35; i++ {
		supplier := suppliers[g.rng.IntN(len(suppliers))]
		t.Rows = append(t.Rows, g.row(Leiria, supplier, objects[g.rng.IntN(len(objects))],
			procedures[g.rng.IntN(4)], g.lognormal(9, 1.2), 2025, g.month()))
	}

	return t
}

// Entities returns the registry of suppliers and buyers with addresses;
// three suppliers share SharedAddress
func (g *Generator) Entities() *model.Table {
	t := &model.Table{Name: "entidades_demo.csv", Columns: append([]string(nil), EntityColumns...)}

	all := append(append([]Party(nil), suppliers...), SplitBuilder, SplitMedia, SharedAddress1, SharedAddress2, SharedAddress3, Dominant)
	for i, p := range all {
		addr := addresses[i%len(addresses)]
		switch p {
		case SharedAddress1, SharedAddress2, SharedAddress3:
			addr = SharedAddress
		}
		t.Rows = append(t.Rows, []string{p.ID, p.Name, addr})
	}
	for _, p := range buyers {
		t.Rows = append(t.Rows, []string{p.ID, p.Name, addresses[g.rng.IntN(len(addresses))]})
	}
	return t
}

func (g *Generator) row(buyer, supplier Party, object, procedure string, price float64, year, month int) []string {
	day := g.rng.IntN(28) + 1
	return []string{
		buyer.ID, buyer.Name, supplier.ID, supplier.Name, object, procedure,
		strconv.FormatFloat(math.Round(price*100)/100, 'f', 2, 64),
		fmt.Sprintf("%d-%02d-%02d", year, month, day),
	}
}

func (g *Generator) month() int {
	return g.rng.IntN(12) + 1
}

func (g *Generator) lognormal(mu, sigma float64) float64 {
	return math.Exp(mu + sigma*g.rng.NormFloat64())
}

func (g *Generator) weighted(weights []float64) int {
	var sum float64
	for _, w := range weights {
		sum += w
	}
	r := g.rng.Float64() * sum
	for i, w := range weights {
		if r < w {
			return i
		}
		r -= w
	}
	return len(weights) - 1
}

// WriteCSV writes t as a comma separated UTF-8 file with a BOM
func WriteCSV(dir string, t *model.Table) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create dir: %w", err)
	}
	path := filepath.Join(dir, t.Name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}

	if _, err := f.WriteString("\ufeff"); err != nil {
		_ = f.Close()
		return "", err
	}
	w := csv.NewWriter(f)
	_ = w.Write(t.Columns)
	_ = w.WriteAll(t.Rows)
	if err := w.Error(); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write csv: %w", err)
	}
	return path, f.Close()
}
