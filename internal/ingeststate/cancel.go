package ingeststate

// CancelRegistry is a process-wide batchId -> cancellation-requested flag,
// consulted by the orchestrator at phase boundaries and before each file.
// Built on the same SyncMap used for per-folder locking in the source
// this agent was adapted from.
type CancelRegistry struct {
	flags *SyncMap[string, struct{}]
}

// NewCancelRegistry creates an empty registry.
func NewCancelRegistry() *CancelRegistry {
	return &CancelRegistry{flags: NewSyncMap[string, struct{}]()}
}

// Cancel marks batchID as cancelled. Idempotent.
func (r *CancelRegistry) Cancel(batchID string) {
	r.flags.Store(batchID, struct{}{})
}

// IsCancelled reports whether Cancel has been called for batchID and not
// yet cleared.
func (r *CancelRegistry) IsCancelled(batchID string) bool {
	_, ok := r.flags.Load(batchID)
	return ok
}

// Clear removes the cancellation entry for batchID. Called once the
// orchestrator has wound down and persisted state for a cancelled batch;
// the batch's on-disk state is preserved so the batch can resume later.
func (r *CancelRegistry) Clear(batchID string) {
	r.flags.Delete(batchID)
}

// Active returns the batch ids currently flagged for cancellation, for
// diagnostics surfaces that want to report what's winding down.
func (r *CancelRegistry) Active() []string {
	return r.flags.Keys()
}
