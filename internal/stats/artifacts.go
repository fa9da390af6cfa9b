package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"bitga/internal/model"
)

var seriesHeader = []string{"generation", "minimum_score", "average_score", "score_stddev", "diversity", "mutation_rate"}

// Summary condenses the best-score series of one run. Scores are minimized,
// so Improvement is positive when the run got better.
type Summary struct {
	RunID       string  `json:"run_id"`
	Generations int     `json:"generations"`
	InitialBest float64 `json:"initial_best"`
	FinalBest   float64 `json:"final_best"`
	BestMean    float64 `json:"best_mean"`
	BestStd     float64 `json:"best_std"`
	BestMax     float64 `json:"best_max"`
	BestMin     float64 `json:"best_min"`
	Improvement float64 `json:"improvement"`
}

type RunArtifacts struct {
	Run         model.Run
	Generations []model.GenerationStats
}

func Summarize(runID string, history []model.GenerationStats) Summary {
	summary := Summary{RunID: runID}
	if len(history) == 0 {
		return summary
	}
	best := make([]float64, len(history))
	for i, stats := range history {
		best[i] = stats.MinimumScore
	}
	summary.Generations = history[len(history)-1].Generation
	summary.InitialBest = best[0]
	summary.FinalBest = best[len(best)-1]
	summary.BestMean, summary.BestStd = stat.PopMeanStdDev(best, nil)
	summary.BestMax = floats.Max(best)
	summary.BestMin = floats.Min(best)
	summary.Improvement = summary.InitialBest - summary.FinalBest
	return summary
}

// WriteRunArtifacts writes run.json, generations.json, summary.json and
// generation_series.csv into baseDir/<run id> and returns that directory.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Run.ID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Run.ID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, "run.json"), artifacts.Run); err != nil {
		return "", err
	}
	generations := artifacts.Generations
	if generations == nil {
		generations = []model.GenerationStats{}
	}
	if err := writeJSON(filepath.Join(runDir, "generations.json"), generations); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "summary.json"), Summarize(artifacts.Run.ID, generations)); err != nil {
		return "", err
	}
	if err := WriteGenerationSeries(runDir, generations); err != nil {
		return "", err
	}
	return runDir, nil
}

func ReadSummary(baseDir, runID string) (Summary, bool, error) {
	path := filepath.Join(baseDir, runID, "summary.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Summary{}, false, nil
		}
		return Summary{}, false, err
	}
	var summary Summary
	if err := json.Unmarshal(data, &summary); err != nil {
		return Summary{}, false, err
	}
	return summary, true, nil
}

func WriteGenerationSeries(runDir string, history []model.GenerationStats) error {
	path := filepath.Join(runDir, "generation_series.csv")
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(seriesHeader); err != nil {
		return err
	}
	for _, stats := range history {
		if err := writer.Write([]string{
			strconv.Itoa(stats.Generation),
			formatFloat(stats.MinimumScore),
			formatFloat(stats.AverageScore),
			formatFloat(stats.ScoreStdDev),
			formatFloat(stats.Diversity),
			formatFloat(stats.MutationRate),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadGenerationSeries(baseDir, runID string) ([]model.GenerationStats, bool, error) {
	path := filepath.Join(baseDir, runID, "generation_series.csv")
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = len(seriesHeader)
	if _, err := reader.Read(); err != nil {
		if err == io.EOF {
			return []model.GenerationStats{}, true, nil
		}
		return nil, false, err
	}

	series := make([]model.GenerationStats, 0, 128)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		generation, err := strconv.Atoi(record[0])
		if err != nil {
			return nil, false, fmt.Errorf("generation series: %w", err)
		}
		values := make([]float64, len(record)-1)
		for i, field := range record[1:] {
			if values[i], err = strconv.ParseFloat(field, 64); err != nil {
				return nil, false, fmt.Errorf("generation series %s: %w", seriesHeader[i+1], err)
			}
		}
		series = append(series, model.GenerationStats{
			RunID:        runID,
			Generation:   generation,
			MinimumScore: values[0],
			AverageScore: values[1],
			ScoreStdDev:  values[2],
			Diversity:    values[3],
			MutationRate: values[4],
		})
	}
	return series, true, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}
