package robustenum

import "GoSearch/internal/workctx"

// ForIndexing builds the fault-barrier callbacks an indexing batch uses:
// attempts and failures are tracked on stats, and failures are additionally
// surfaced on wctx so the caller can report them per document.
func ForIndexing[S, T any](stats workctx.StorageActions, wctx *workctx.WorkContext, indexName string, keyOf func(S) string) Options[S, T] {
	return Options[S, T]{
		BeforeAdvance: func(item S) {
			if stats != nil {
				stats.IncrementIndexingAttempt()
			}
		},
		CancelAdvance: func(item S, err error) bool {
			return wctx != nil && wctx.Err() != nil
		},
		OnError: func(item S, err error) {
			if stats != nil {
				stats.DecrementIndexingAttempt()
				stats.IncrementIndexingFailure()
			}
			if wctx != nil {
				key := keyOf(item)
				wctx.AddError(indexName, &key, err.Error())
			}
		},
		OnSuccess: func(item S, _ T) {
			if stats != nil {
				stats.DecrementIndexingAttempt()
			}
		},
	}
}

// ForReduce builds the fault-barrier callbacks a map-phase reduction uses:
// same attempt/failure bookkeeping as indexing, but failures are swallowed
// rather than surfaced per document.
func ForReduce[S, T any](stats workctx.StorageActions) Options[S, T] {
	return Options[S, T]{
		BeforeAdvance: func(S) {
			if stats != nil {
				stats.IncrementReduceAttempt()
			}
		},
		OnError: func(S, error) {
			if stats != nil {
				stats.DecrementReduceAttempt()
				stats.IncrementReduceFailure()
			}
		},
		OnSuccess: func(S, T) {
			if stats != nil {
				stats.DecrementReduceAttempt()
			}
		},
	}
}
