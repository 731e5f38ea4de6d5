package main

import (
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"
	dto "github.com/prometheus/client_model/go"
	"github.com/urfave/cli/v2"

	"github.com/prometheus/client_golang/prometheus"
)

// newCmdCacheStats prints the current controller telemetry gathered
// from the process's default Prometheus registry, the way an operator
// would scrape it, but rendered for a terminal instead of /metrics.
func newCmdCacheStats() *cli.Command {
	return &cli.Command{
		Name:        "cache-stats",
		Usage:       "Print current entity-iterable cache telemetry.",
		Description: "Print current entity-iterable cache telemetry, gathered from the process's Prometheus registry.",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "human", Usage: "render counters with entityIterableCacheUseHumanReadable-style formatting"},
		},
		Action: func(c *cli.Context) error {
			families, err := prometheus.DefaultGatherer.Gather()
			if err != nil {
				return fmt.Errorf("gather metrics: %w", err)
			}
			sort.Slice(families, func(i, j int) bool { return families[i].GetName() < families[j].GetName() })

			human := c.Bool("human")
			for _, mf := range families {
				for _, m := range mf.GetMetric() {
					printMetric(mf.GetName(), m, human)
				}
			}
			return nil
		},
	}
}

func printMetric(name string, m *dto.Metric, human bool) {
	labels := ""
	for _, lp := range m.GetLabel() {
		labels += fmt.Sprintf("{%s=%q}", lp.GetName(), lp.GetValue())
	}
	switch {
	case m.Counter != nil:
		fmt.Printf("%s%s %s\n", name, labels, formatValue(m.Counter.GetValue(), human))
	case m.Gauge != nil:
		fmt.Printf("%s%s %s\n", name, labels, formatValue(m.Gauge.GetValue(), human))
	}
}

func formatValue(v float64, human bool) string {
	if !human {
		return humanize.Commaf(v)
	}
	return humanize.SIWithDigits(v, 2, "")
}
