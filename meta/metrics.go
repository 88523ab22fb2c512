package meta

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	methodLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vibemeta_method_lookups_total",
		Help: "Total number of method lookups along ancestor chains.",
	}, []string{"result"})

	superLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vibemeta_super_lookups_total",
		Help: "Total number of super method lookups.",
	}, []string{"result"})

	constantLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vibemeta_constant_lookups_total",
		Help: "Total number of constant lookups through lexical scope and ancestors.",
	}, []string{"result"})

	classVariableLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vibemeta_class_variable_lookups_total",
		Help: "Total number of class variable lookups.",
	}, []string{"result"})

	ancestorCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vibemeta_ancestor_cache_total",
		Help: "Ancestor linearization requests served from or missing the per-module memo.",
	}, []string{"result"})

	inheritedHooksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vibemeta_inherited_hooks_total",
		Help: "Total number of inherited hooks dispatched by class initialization.",
	})

	hashProbeLength = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "vibemeta_hash_probe_length",
		Help:    "Number of chain entries compared per hash table lookup.",
		Buckets: prometheus.LinearBuckets(0, 1, 9),
	})
)
