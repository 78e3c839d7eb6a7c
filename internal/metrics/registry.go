package metrics

import (
	"strings"

	"github.com/rawblock/coref-scorer/pkg/models"
)

// Func scores a response clustering against a key clustering.
type Func func(key, response models.Clustering) models.Score

// Metric is a named entry of the registry.
type Metric struct {
	Name string
	Func Func
}

// Canonical metric names, as printed in reports.
const (
	NameMUC   = "MUC"
	NameB3    = "B³"
	NameCEAFm = "CEAF_m"
	NameCEAFe = "CEAF_e"
	NameBLANC = "BLANC"
	NameLEA   = "LEA"
)

var registry = []Metric{
	{NameMUC, MUC},
	{NameB3, BCubed},
	{NameCEAFm, CEAFm},
	{NameCEAFe, CEAFe},
	{NameBLANC, BLANC},
	{NameLEA, LEA},
}

var aliases = map[string]string{
	"muc":     NameMUC,
	"b3":      NameB3,
	"b³":      NameB3,
	"bcubed":  NameB3,
	"b_cubed": NameB3,
	"ceaf_m":  NameCEAFm,
	"ceafm":   NameCEAFm,
	"ceaf_e":  NameCEAFe,
	"ceafe":   NameCEAFe,
	"blanc":   NameBLANC,
	"lea":     NameLEA,
}

// All returns the registered metrics in report order.
func All() []Metric {
	out := make([]Metric, len(registry))
	copy(out, registry)
	return out
}

// Names returns the canonical metric names in report order.
func Names() []string {
	names := make([]string, len(registry))
	for i, m := range registry {
		names[i] = m.Name
	}
	return names
}

// Lookup finds a metric by canonical name or case-insensitive ASCII alias.
func Lookup(name string) (Metric, bool) {
	if canonical, ok := aliases[strings.ToLower(strings.TrimSpace(name))]; ok {
		name = canonical
	}
	for _, m := range registry {
		if m.Name == name {
			return m, true
		}
	}
	return Metric{}, false
}
