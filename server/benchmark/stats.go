// Copyright 2025 ArgusLM
// SPDX-License-Identifier: Apache-2.0

package benchmark

import (
	"math"
	"sort"
)

// percentile returns the p-th percentile of values by linear interpolation
// between closest ranks. values must be sorted ascending.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	if len(values) == 1 {
		return values[0]
	}

	position := float64(len(values)-1) * p / 100
	lower := int(math.Floor(position))
	upper := int(math.Ceil(position))
	if lower == upper {
		return values[lower]
	}

	fraction := position - float64(lower)
	return values[lower] + (values[upper]-values[lower])*fraction
}

// computeStatistics returns the TTFT and TPS percentile block across all
// non-errored results. Empty input yields zeros.
func computeStatistics(results []Result) Statistics {
	var ttft, tps []float64
	for _, res := range results {
		if res.Error != nil {
			continue
		}
		ttft = append(ttft, res.TTFTMS)
		tps = append(tps, res.TPS)
	}
	sort.Float64s(ttft)
	sort.Float64s(tps)

	return Statistics{
		TTFTP50: percentile(ttft, 50),
		TTFTP95: percentile(ttft, 95),
		TTFTP99: percentile(ttft, 99),
		TPSP50:  percentile(tps, 50),
		TPSP95:  percentile(tps, 95),
		TPSP99:  percentile(tps, 99),
	}
}

// modelStatistics groups results by model, ordered by first appearance,
// and computes one percentile block per model.
func modelStatistics(results []Result) []ModelStatistics {
	grouped := make(map[string][]Result)
	var order []string

	for _, res := range results {
		if _, seen := grouped[res.ModelID]; !seen {
			order = append(order, res.ModelID)
		}
		grouped[res.ModelID] = append(grouped[res.ModelID], res)
	}

	blocks := make([]ModelStatistics, 0, len(order))
	for _, id := range order {
		group := grouped[id]
		block := ModelStatistics{
			ModelID:    id,
			ModelName:  group[0].ModelName,
			Runs:       len(group),
			Statistics: computeStatistics(group),
		}
		for _, res := range group {
			if res.Error != nil {
				block.Errors++
			}
		}
		blocks = append(blocks, block)
	}
	return blocks
}
