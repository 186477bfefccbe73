// gaze-report renders an HTML session report from an intent database:
// a fixation scatter over the normalized screen, a hypothesis
// probability timeline per object, and dwell/probability summary
// statistics.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/stat"

	"github.com/NoodleSploder/RayOS-sub005/internal/intentdb"
)

var (
	dbFile  = flag.String("db", "intent_data.db", "path to the SQLite intent database")
	outFile = flag.String("out", "gaze_report.html", "output HTML file")
	limit   = flag.Int("limit", 20000, "maximum rows to read per table")
)

func fixationScatter(points []intentdb.FixationPoint) *charts.Scatter {
	data := make([]opts.ScatterData, 0, len(points))
	for _, p := range points {
		// Screen Y grows downward; flip so the chart matches the screen.
		data = append(data, opts.ScatterData{
			Value: []interface{}{p.CenterX, 1 - p.CenterY, p.DwellMs},
		})
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Fixations",
			Subtitle: fmt.Sprintf("%d updates, colour = dwell ms", len(points)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: 0, Max: 1, Name: "screen x"}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: 1, Name: "screen y"}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Dimension:  "2",
			Max:        float32(maxDwell(points)),
		}),
	)
	scatter.AddSeries("fixations", data,
		charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}))
	return scatter
}

func maxDwell(points []intentdb.FixationPoint) float64 {
	m := 1.0
	for _, p := range points {
		if p.DwellMs > m {
			m = p.DwellMs
		}
	}
	return m
}

func probabilityTimeline(rows []intentdb.HypothesisRow) *charts.Line {
	generations := make([]uint64, 0)
	seen := map[uint64]bool{}
	byObject := map[uint64]map[string]float64{}
	objects := map[string]bool{}
	for _, h := range rows {
		if !seen[h.Generation] {
			seen[h.Generation] = true
			generations = append(generations, h.Generation)
			byObject[h.Generation] = map[string]float64{}
		}
		byObject[h.Generation][h.ObjectID] = h.Probability
		objects[h.ObjectID] = true
	}
	sort.Slice(generations, func(i, j int) bool { return generations[i] < generations[j] })

	xAxis := make([]string, len(generations))
	for i, g := range generations {
		xAxis[i] = fmt.Sprintf("%d", g)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Hypothesis probabilities",
			Subtitle: "per object, by generation",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "generation"}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: 1, Name: "probability"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	line.SetXAxis(xAxis)

	ids := make([]string, 0, len(objects))
	for id := range objects {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		series := make([]opts.LineData, len(generations))
		for i, g := range generations {
			if p, ok := byObject[g][id]; ok {
				series[i] = opts.LineData{Value: p}
			} else {
				series[i] = opts.LineData{Value: nil}
			}
		}
		line.AddSeries(id, series)
	}
	return line
}

func summarize(points []intentdb.FixationPoint, hyps []intentdb.HypothesisRow,
	pubs []intentdb.PublishRow, states map[string]int) string {

	dwells := make([]float64, 0, len(points))
	for _, p := range points {
		dwells = append(dwells, p.DwellMs)
	}
	probs := make([]float64, 0, len(hyps))
	for _, h := range hyps {
		probs = append(probs, h.Probability)
	}

	accepted := 0
	for _, p := range pubs {
		if p.Accepted {
			accepted++
		}
	}

	s := fmt.Sprintf("%d fixation updates, %d hypotheses, %d publishes (%d accepted)",
		len(points), len(hyps), len(pubs), accepted)
	if len(dwells) > 0 {
		mean, std := stat.MeanStdDev(dwells, nil)
		s += fmt.Sprintf("; dwell mean %.0fms sd %.0fms", mean, std)
	}
	if len(probs) > 0 {
		sort.Float64s(probs)
		s += fmt.Sprintf("; probability mean %.2f p90 %.2f",
			stat.Mean(probs, nil), stat.Quantile(0.9, stat.Empirical, probs, nil))
	}
	for _, state := range []string{"resolved", "deferred", "ambient"} {
		if n, ok := states[state]; ok {
			s += fmt.Sprintf("; %s=%d", state, n)
		}
	}
	return s
}

func main() {
	flag.Parse()

	store, err := intentdb.NewStore(*dbFile)
	if err != nil {
		log.Fatalf("Failed to open intent database: %v", err)
	}
	defer store.Close()

	points, err := store.ListFixations(*limit)
	if err != nil {
		log.Fatalf("Failed to read fixations: %v", err)
	}
	hyps, err := store.ListHypotheses(*limit)
	if err != nil {
		log.Fatalf("Failed to read hypotheses: %v", err)
	}
	pubs, err := store.ListPublishes(*limit)
	if err != nil {
		log.Fatalf("Failed to read publishes: %v", err)
	}
	states, err := store.StateCounts()
	if err != nil {
		log.Fatalf("Failed to read state counts: %v", err)
	}

	if len(points) == 0 && len(hyps) == 0 {
		log.Fatalf("No session data in %s", *dbFile)
	}

	page := components.NewPage()
	page.PageTitle = "Gaze session report"
	page.AddCharts(fixationScatter(points), probabilityTimeline(hyps))

	f, err := os.Create(*outFile)
	if err != nil {
		log.Fatalf("Failed to create %s: %v", *outFile, err)
	}
	defer f.Close()
	if err := page.Render(f); err != nil {
		log.Fatalf("Failed to render report: %v", err)
	}

	log.Printf("Wrote %s", *outFile)
	log.Print(summarize(points, hyps, pubs, states))
}
