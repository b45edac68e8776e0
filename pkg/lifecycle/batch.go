package lifecycle

// ItemFailure records why one item of a batch failed
type ItemFailure[K comparable] struct {
	ID    K      `json:"id"`
	Error string `json:"error"`
	err   error
}

// Err returns the underlying error
func (f ItemFailure[K]) Err() error {
	return f.err
}

// BatchResult reports per-item outcomes of a bulk action. Items are
// independent: successes are never rolled back because another item failed.
type BatchResult[K comparable] struct {
	Succeeded []K              `json:"succeeded"`
	Failed    []ItemFailure[K] `json:"failed"`
}

// NewBatchResult returns a result with empty, non-nil lists
func NewBatchResult[K comparable]() *BatchResult[K] {
	return &BatchResult[K]{Succeeded: []K{}, Failed: []ItemFailure[K]{}}
}

// Succeed records a successful item
func (r *BatchResult[K]) Succeed(id K) {
	r.Succeeded = append(r.Succeeded, id)
}

// Fail records a failed item
func (r *BatchResult[K]) Fail(id K, err error) {
	r.Failed = append(r.Failed, ItemFailure[K]{ID: id, Error: err.Error(), err: err})
}

// FailedIDs returns the identifiers of failed items
func (r *BatchResult[K]) FailedIDs() []K {
	ids := make([]K, 0, len(r.Failed))
	for _, f := range r.Failed {
		ids = append(ids, f.ID)
	}
	return ids
}

// Err returns a *PartialBatchError when any item failed, nil otherwise
func (r *BatchResult[K]) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	causes := make([]string, 0, len(r.Failed))
	for _, f := range r.Failed {
		causes = append(causes, f.Error)
	}
	return &PartialBatchError{Succeeded: len(r.Succeeded), Failed: len(r.Failed), Causes: causes}
}
