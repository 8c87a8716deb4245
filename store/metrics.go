package store

import "github.com/VictoriaMetrics/metrics"

// Engine counters, exposed through metrics.WritePrometheus by whatever
// surface embeds the engine.
var (
	putCounter      = metrics.NewCounter(`concretelocal_item_puts_total`)
	getCounter      = metrics.NewCounter(`concretelocal_item_gets_total`)
	deleteCounter   = metrics.NewCounter(`concretelocal_item_deletes_total`)
	updateCounter   = metrics.NewCounter(`concretelocal_item_updates_total`)
	queryCounter    = metrics.NewCounter(`concretelocal_queries_total`)
	scanCounter     = metrics.NewCounter(`concretelocal_scans_total`)
	conditionFailed = metrics.NewCounter(`concretelocal_condition_failures_total`)
	ttlSweepCounter = metrics.NewCounter(`concretelocal_ttl_sweeps_total`)
	ttlDeleteCount  = metrics.NewCounter(`concretelocal_ttl_deleted_items_total`)
)
