// Package aggregate groups canonical records by a key tuple and summarizes a
// numeric field per group. It carries no detector-specific logic.
package aggregate

import (
	"math"
	"strings"

	"github.com/ppiankov/integridade/internal/model"
)

// Group is the aggregate of one distinct key tuple
type Group struct {
	Key   []string `json:"key"` // Values of the grouping fields, in field order
	Count int      `json:"count"`
	Sum   float64  `json:"sum"`
	Mean  float64  `json:"mean"`
	Min   float64  `json:"min"`
	Max   float64  `json:"max"`
}

// Aggregate groups records by keys and summarizes measure.
//
// Rows with a missing key component are excluded. Rows whose measure is
// missing are excluded from every statistic, so Count is the number of rows
// with both a valid key and a valid value. Groups without a valid row are
// not returned. Output follows first appearance in records.
func Aggregate(records []model.ContractRecord, keys []model.Field, measure model.Field) []Group {
	return build(records, keys, func(r model.ContractRecord) (float64, bool) {
		return r.Number(measure)
	})
}

// Count groups records by keys and counts rows per group. Count, Sum and
// Mean/Min/Max all describe a constant 1 per row.
func Count(records []model.ContractRecord, keys []model.Field) []Group {
	return build(records, keys, func(model.ContractRecord) (float64, bool) {
		return 1, true
	})
}

func build(records []model.ContractRecord, keys []model.Field, value func(model.ContractRecord) (float64, bool)) []Group {
	if len(keys) == 0 {
		return nil
	}

	index := make(map[string]int)
	var groups []Group

	tuple := make([]string, len(keys))
	for _, r := range records {
		if !keyOf(r, keys, tuple) {
			continue
		}
		v, ok := value(r)
		if !ok {
			continue
		}

		id := JoinKey(tuple...)
		i, seen := index[id]
		if !seen {
			i = len(groups)
			index[id] = i
			groups = append(groups, Group{
				Key: append([]string(nil), tuple...),
				Min: math.Inf(1),
				Max: math.Inf(-1),
			})
		}

		g := &groups[i]
		g.Count++
		g.Sum += v
		if v < g.Min {
			g.Min = v
		}
		if v > g.Max {
			g.Max = v
		}
	}

	for i := range groups {
		groups[i].Mean = groups[i].Sum / float64(groups[i].Count)
	}
	return groups
}

func keyOf(r model.ContractRecord, keys []model.Field, out []string) bool {
	for i, f := range keys {
		v, ok := r.Text(f)
		if !ok {
			return false
		}
		out[i] = v
	}
	return true
}

// Index maps each group's joined key to the group
func Index(groups []Group) map[string]Group {
	out := make(map[string]Group, len(groups))
	for _, g := range groups {
		out[JoinKey(g.Key...)] = g
	}
	return out
}

// JoinKey renders a key tuple as a single map key
func JoinKey(parts ...string) string {
	return strings.Join(parts, "\x1f")
}
