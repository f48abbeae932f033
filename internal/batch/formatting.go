package batch

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fidlab/quadmatch/internal/pipeline"
)

// formatBatchResults renders per-pair outcomes in the requested format.
func formatBatchResults(results []*PairResult, format string) (string, error) {
	switch format {
	case "json":
		return formatJSON(results)
	case "csv":
		return formatCSV(results)
	default: // text
		return formatText(results), nil
	}
}

// formatJSON renders results as an indented JSON document.
func formatJSON(results []*PairResult) (string, error) {
	batchResult := struct {
		Pairs []*PairResult `json:"pairs"`
	}{Pairs: results}

	bts, err := json.MarshalIndent(batchResult, "", "  ")
	return string(bts), err
}

// formatCSV renders one row per pair with the headline match numbers.
func formatCSV(results []*PairResult) (string, error) {
	csvData := [][]string{{
		"ref", "other", "status", "ratio", "inliers", "other_points", "residual", "duration_ms", "error",
	}}

	for _, pr := range results {
		if pr.Failed() {
			csvData = append(csvData, []string{
				pr.Ref, pr.Other, "failed", "", "", "", "", "", pr.Error,
			})
			continue
		}
		res := pr.Result
		csvData = append(csvData, []string{
			pr.Ref,
			pr.Other,
			"ok",
			fmt.Sprintf("%.2f", res.Ratio),
			strconv.Itoa(res.Inliers()),
			strconv.Itoa(res.Stats.OtherPoints),
			fmt.Sprintf("%.3f", res.MeanResidual),
			strconv.FormatInt(res.Stats.Duration.Milliseconds(), 10),
			"",
		})
	}

	var output strings.Builder
	writer := csv.NewWriter(&output)
	for _, row := range csvData {
		if err := writer.Write(row); err != nil {
			return "", err
		}
	}
	writer.Flush()
	return output.String(), nil
}

// formatText renders an aligned table, one pair per row.
func formatText(results []*PairResult) string {
	var output strings.Builder
	output.WriteString(fmt.Sprintf("%-44s %8s %-8s %7s %9s %9s\n",
		"PAIR", "RATIO", "GRADE", "INLIERS", "RESIDUAL", "TIME"))

	for _, pr := range results {
		name := fmt.Sprintf("%s -> %s", filepath.Base(pr.Ref), filepath.Base(pr.Other))
		if pr.Failed() {
			output.WriteString(fmt.Sprintf("%-44s failed: %s\n", name, pr.Error))
			continue
		}

		res := pr.Result
		output.WriteString(fmt.Sprintf("%-44s %8.2f %-8s %7d %9.3f %9s\n",
			name,
			res.Ratio,
			pipeline.RatioLabel(res.Ratio),
			res.Inliers(),
			res.MeanResidual,
			res.Stats.Duration.Round(time.Millisecond),
		))
	}
	return output.String()
}
