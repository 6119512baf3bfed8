// Package batch replays a CSV of (guide, order, label) cases through the
// engine and scores each prediction against its label.
package batch

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/groupbuy-orders/internal/agent"
	"github.com/joseph-ayodele/groupbuy-orders/internal/core"
	"github.com/joseph-ayodele/groupbuy-orders/internal/order"
)

const (
	utf8BOM        = "\ufeff"
	ErrorOrder     = "ERROR"
	DefaultWorkers = 4
)

var (
	inputColumns  = []string{"no", "guide", "order", "label"}
	outputColumns = []string{"no", "order", "turn", "predict", "label", "correct_score"}
)

// Case is one input row.
type Case struct {
	No    string
	Guide string
	Order string
	Label string
}

// Result is one scored output row. Order holds the User/Agent transcript.
type Result struct {
	No           string
	Order        string
	Turn         int
	Predict      string
	Label        string
	CorrectScore float64
}

// ReadCases reads the input CSV. Columns are located by header name; rows
// with an empty "no" are skipped.
func ReadCases(r io.Reader) ([]Case, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx := map[string]int{}
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, utf8BOM)
		}
		idx[strings.TrimSpace(h)] = i
	}
	for _, col := range inputColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("missing column %q", col)
		}
	}

	var cases []Case
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(cases)+2, err)
		}
		get := func(col string) string {
			if i := idx[col]; i < len(rec) {
				return rec[i]
			}
			return ""
		}
		c := Case{No: strings.TrimSpace(get("no")), Guide: get("guide"), Order: get("order"), Label: get("label")}
		if c.No == "" {
			continue
		}
		cases = append(cases, c)
	}
	return cases, nil
}

// Runner scores cases concurrently.
type Runner struct {
	Workers int
	Clock   order.Clock
	Logger  *slog.Logger
}

// Run evaluates every case. Results keep input order. A failing case becomes
// an ERROR row; only context cancellation aborts the run.
func (r *Runner) Run(ctx context.Context, cases []Case) ([]Result, error) {
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	workers := r.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	results := make([]Result, len(cases))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, c := range cases {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := r.runCase(gctx, c)
			if err != nil {
				logger.Warn("batch.case.failed", "no", c.No, "err", err)
				res = Result{No: c.No, Order: ErrorOrder, Predict: err.Error(), Label: c.Label}
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger.Info("batch.run.ok", "cases", len(cases), "mean_score", MeanScore(results))
	return results, nil
}

func (r *Runner) runCase(ctx context.Context, c Case) (res Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("case %s panicked: %v", c.No, p)
		}
	}()

	session := agent.NewSession(r.caseEngine(c))
	for _, turn := range SplitTurns(c.Order) {
		if _, err := session.Send(ctx, turn); err != nil {
			return Result{}, err
		}
	}
	predict, err := session.CurrentOrder()
	if err != nil {
		return Result{}, err
	}
	return Result{
		No:           c.No,
		Order:        session.Transcript(),
		Turn:         session.Turns(),
		Predict:      predict,
		Label:        c.Label,
		CorrectScore: CalculateCorrectness(predict, c.Label),
	}, nil
}

// caseEngine builds a fresh engine per case with the case guide loaded, line endings normalized to LF.
func (r *Runner) caseEngine(c Case) *core.Engine {
	opts := []core.Option{core.WithLogger(slog.New(slog.DiscardHandler))}
	if r.Clock != nil {
		opts = append(opts, core.WithClock(r.Clock))
	}
	engine := core.NewEngine(opts...)
	engine.LoadGuide(strings.ReplaceAll(c.Guide, "\r\n", "\n"))
	return engine
}

// SplitTurns treats every non-blank line of an order cell as one user message.
func SplitTurns(order string) []string {
	var turns []string
	for _, line := range strings.Split(strings.ReplaceAll(order, "\r\n", "\n"), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			turns = append(turns, line)
		}
	}
	return turns
}

// MeanScore averages CorrectScore; zero for no results.
func MeanScore(results []Result) float64 {
	if len(results) == 0 {
		return 0
	}
	var sum float64
	for _, r := range results {
		sum += r.CorrectScore
	}
	return sum / float64(len(results))
}

// WriteCSV writes results as UTF-8 CSV with a BOM so spreadsheet tools pick
// up the encoding.
func WriteCSV(w io.Writer, results []Result) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(outputColumns); err != nil {
		return err
	}
	for _, r := range results {
		if err := cw.Write(r.Record()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Record renders the row in output column order.
func (r Result) Record() []string {
	return []string{r.No, r.Order, strconv.Itoa(r.Turn), r.Predict, r.Label, FormatScore(r.CorrectScore)}
}

// FormatScore prints a score with at least one decimal place (1 -> "1.0").
func FormatScore(s float64) string {
	out := strconv.FormatFloat(s, 'f', -1, 64)
	if !strings.ContainsAny(out, ".eE") {
		out += ".0"
	}
	return out
}

// OutputPath names the result file after the run time.
func OutputPath(dir string, now time.Time) string {
	return filepath.Join(dir, "test_result_"+now.Format("20060102_150405")+".csv")
}

// WriteCSVFile creates dir if needed and writes results to OutputPath.
func WriteCSVFile(dir string, now time.Time, results []Result) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := OutputPath(dir, now)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := WriteCSV(f, results); err != nil {
		_ = f.Close()
		return "", err
	}
	return path, f.Close()
}
