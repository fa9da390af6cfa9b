package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bitga/internal/model"
)

const DefaultNamespace = "bitga"

// Collector exports the statistics of each evaluated generation as
// Prometheus gauges. It satisfies the evolver's Observer interface.
type Collector struct {
	generation   prometheus.Gauge
	minimumScore prometheus.Gauge
	averageScore prometheus.Gauge
	scoreStdDev  prometheus.Gauge
	diversity    prometheus.Gauge
	mutationRate prometheus.Gauge
	evaluated    prometheus.Counter
}

// NewCollector registers the generation metrics with reg, or with the
// default registerer when reg is nil.
func NewCollector(reg prometheus.Registerer, namespace string) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "evolver",
			Name:      name,
			Help:      help,
		})
	}

	c := &Collector{
		generation:   gauge("generation", "Index of the last evaluated generation."),
		minimumScore: gauge("minimum_score", "Lowest raw score in the current population."),
		averageScore: gauge("average_score", "Mean raw score of the current population."),
		scoreStdDev:  gauge("score_stddev", "Sample standard deviation of the raw scores."),
		diversity:    gauge("diversity", "Mean pairwise Hamming distance per chromosome bit."),
		mutationRate: gauge("mutation_rate", "Mutation rate applied to the current generation's offspring."),
		evaluated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evolver",
			Name:      "generations_evaluated_total",
			Help:      "Number of generations evaluated.",
		}),
	}

	for _, collector := range []prometheus.Collector{
		c.generation, c.minimumScore, c.averageScore, c.scoreStdDev, c.diversity, c.mutationRate, c.evaluated,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register evolver metrics: %w", err)
		}
	}
	return c, nil
}

func (c *Collector) ObserveGeneration(_ context.Context, stats model.GenerationStats) error {
	c.generation.Set(float64(stats.Generation))
	c.minimumScore.Set(stats.MinimumScore)
	c.averageScore.Set(stats.AverageScore)
	c.scoreStdDev.Set(stats.ScoreStdDev)
	c.diversity.Set(stats.Diversity)
	c.mutationRate.Set(stats.MutationRate)
	c.evaluated.Inc()
	return nil
}

// Handler serves the metrics gathered by g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
