package main

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/rawblock/coref-scorer/pkg/models"
)

// writeText prints one line per metric followed by the CoNLL-2012 composite.
func writeText(w io.Writer, results []models.MetricResult, conll float64) error {
	for _, m := range results {
		if _, err := fmt.Fprintf(w, "%s:\tR=%s\tP=%s\tF₁=%s\n",
			m.Name, formatFloat(m.Score.Recall), formatFloat(m.Score.Precision), formatFloat(m.Score.F1)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "CoNLL-2012 average score: %s\n", formatFloat(conll))
	return err
}

// formatFloat prints the shortest representation that round-trips, always
// with a decimal point or an exponent: 1.0, 0.4, 1e-05.
func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	if abs := math.Abs(f); f != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
