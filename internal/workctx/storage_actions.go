package workctx

import "github.com/rcrowley/go-metrics"

// StorageActions tracks the counters an indexing or reduce pass updates as
// it works through a batch: how many items are currently being attempted,
// and how many have failed outright.
type StorageActions interface {
	IncrementIndexingAttempt()
	DecrementIndexingAttempt()
	IncrementIndexingFailure()

	IncrementReduceAttempt()
	DecrementReduceAttempt()
	IncrementReduceFailure()
}

// metricsStorageActions backs StorageActions with go-metrics counters,
// registered under a per-index prefix so a process hosting many indexes
// keeps each index's counters distinct.
type metricsStorageActions struct {
	indexingAttempts metrics.Counter
	indexingFailures metrics.Counter
	reduceAttempts   metrics.Counter
	reduceFailures   metrics.Counter
}

// NewStorageActions registers a fresh set of counters under the given
// registry and index name.
func NewStorageActions(registry metrics.Registry, indexName string) StorageActions {
	if registry == nil {
		registry = metrics.DefaultRegistry
	}
	get := func(suffix string) metrics.Counter {
		return metrics.GetOrRegisterCounter("index."+indexName+"."+suffix, registry)
	}
	return &metricsStorageActions{
		indexingAttempts: get("indexing_attempts"),
		indexingFailures: get("indexing_failures"),
		reduceAttempts:   get("reduce_attempts"),
		reduceFailures:   get("reduce_failures"),
	}
}

func (s *metricsStorageActions) IncrementIndexingAttempt() { s.indexingAttempts.Inc(1) }
func (s *metricsStorageActions) DecrementIndexingAttempt() { s.indexingAttempts.Dec(1) }
func (s *metricsStorageActions) IncrementIndexingFailure() { s.indexingFailures.Inc(1) }
func (s *metricsStorageActions) IncrementReduceAttempt()   { s.reduceAttempts.Inc(1) }
func (s *metricsStorageActions) DecrementReduceAttempt()   { s.reduceAttempts.Dec(1) }
func (s *metricsStorageActions) IncrementReduceFailure()   { s.reduceFailures.Inc(1) }
