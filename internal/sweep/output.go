package sweep

import (
	"encoding/csv"
	"io"
	"strconv"
)

// CSVWriter writes ranked sweep results as CSV.
type CSVWriter struct {
	w *csv.Writer
}

// NewCSVWriter creates a CSVWriter on w.
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{w: csv.NewWriter(w)}
}

var csvHeader = []string{
	"rank", "score", "sigma", "ri", "t_positive", "t_negative",
	"num_appliances", "activations", "coverage", "solve_failures",
	"duration_ms", "message", "error",
}

// WriteHeader writes the column header.
func (c *CSVWriter) WriteHeader() error {
	return c.w.Write(csvHeader)
}

// WriteResult writes one ranked row.
func (c *CSVWriter) WriteResult(rank int, r ScoredResult) error {
	f := func(v float64) string { return strconv.FormatFloat(v, 'g', 6, 64) }
	score := ""
	if r.Err == "" {
		score = f(r.Score)
	}
	return c.w.Write([]string{
		strconv.Itoa(rank),
		score,
		f(r.Config.Sigma),
		f(r.Config.Ri),
		f(r.Config.TPositive),
		f(r.Config.TNegative),
		strconv.Itoa(r.NumAppliances),
		strconv.Itoa(r.Activations),
		f(r.Coverage),
		strconv.Itoa(r.SolveFailures),
		strconv.FormatInt(r.Duration.Milliseconds(), 10),
		r.Message,
		r.Err,
	})
}

// WriteAll writes the header and every result, ranked from 1, then flushes.
func (c *CSVWriter) WriteAll(results []ScoredResult) error {
	if err := c.WriteHeader(); err != nil {
		return err
	}
	for i, r := range results {
		if err := c.WriteResult(i+1, r); err != nil {
			return err
		}
	}
	return c.Flush()
}

// Flush flushes buffered rows and reports any write error.
func (c *CSVWriter) Flush() error {
	c.w.Flush()
	return c.w.Error()
}
