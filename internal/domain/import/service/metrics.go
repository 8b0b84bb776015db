package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	normalizationTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "invoice_import",
		Name:      "normalization_total",
		Help:      "Uploaded files by the normalization strategy that produced their text.",
	}, []string{"strategy", "valid"})

	delimiterTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "invoice_import",
		Name:      "delimiter_total",
		Help:      "Detected delimiters of uploaded files.",
	}, []string{"delimiter"})

	preimportDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "invoice_import",
		Name:      "preimport_duration_seconds",
		Help:      "Time spent preparing uploaded files for mapping.",
		Buckets:   prometheus.DefBuckets,
	})

	importedRowsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "invoice_import",
		Name:      "rows_total",
		Help:      "Imported rows by entity and outcome.",
	}, []string{"entity", "outcome"})
)
