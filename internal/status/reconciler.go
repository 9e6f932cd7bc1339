package status

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// pollInterval is how often the loop considers a backend fetch while
	// any image is queued or processing.
	pollInterval = 5 * time.Second

	// minFetchGap bounds actual backend traffic regardless of how many
	// triggers fire.
	minFetchGap = 2 * time.Second

	// staleProcessing is how long an image may sit in processing before
	// it is reported stuck.
	staleProcessing = 5 * time.Minute

	// DefaultCompletedGuard protects a freshly completed status from
	// being downgraded by a lagging backend snapshot.
	DefaultCompletedGuard = 30 * time.Second

	// drainedCheckDelay schedules one extra fetch shortly after the last
	// active image finishes, to catch results the final poll missed.
	drainedCheckDelay = 5 * time.Second
)

// Fetcher retrieves the authoritative status of every known image.
type Fetcher interface {
	FetchStatuses(ctx context.Context) ([]ImageStatus, error)
}

// Reconciler merges optimistic local status updates with periodic
// authoritative snapshots from the backend. All exported methods are safe
// for concurrent use.
type Reconciler struct {
	mu       sync.RWMutex
	local    map[string]ImageStatus
	inFlight bool

	fetcher        Fetcher
	limiter        *rate.Limiter
	completedGuard time.Duration
	onChange       func(ImageStatus)

	stopOnce sync.Once
	stopCh   chan struct{}
	pokeCh   chan struct{}

	now          func() time.Time
	drainedDelay time.Duration
}

// NewReconciler creates a reconciler around the given fetcher. The guard
// window controls how long a recently completed status resists downgrades;
// pass 0 for the default.
func NewReconciler(fetcher Fetcher, guard time.Duration) *Reconciler {
	if guard <= 0 {
		guard = DefaultCompletedGuard
	}
	return &Reconciler{
		local:          make(map[string]ImageStatus),
		fetcher:        fetcher,
		limiter:        rate.NewLimiter(rate.Every(minFetchGap), 1),
		completedGuard: guard,
		stopCh:         make(chan struct{}),
		pokeCh:         make(chan struct{}, 1),
		now:            time.Now,
		drainedDelay:   drainedCheckDelay,
	}
}

// OnChange registers a listener invoked whenever an image's status changes.
// Must be set before Start.
func (r *Reconciler) OnChange(callback func(ImageStatus)) {
	r.onChange = callback
}

// Status returns the current status for an image. Unknown images are
// pending.
func (r *Reconciler) Status(imageID string) ImageStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.local[imageID]; ok {
		return s
	}
	return ImageStatus{ImageID: imageID, Status: Pending}
}

// Statuses returns a snapshot of all tracked statuses.
func (r *Reconciler) Statuses() []ImageStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ImageStatus, 0, len(r.local))
	for _, s := range r.local {
		out = append(out, s)
	}
	return out
}

// Stuck reports whether an image has been processing longer than the
// stuck threshold, meaning a push notification was probably lost.
func (r *Reconciler) Stuck(imageID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.local[imageID]
	return ok && s.Status == Processing && r.now().Sub(s.UpdatedAt) >= staleProcessing
}

// SetOptimistic records a locally-initiated status change, e.g. marking an
// image queued the moment the user requests segmentation.
func (r *Reconciler) SetOptimistic(imageID string, s Status) {
	r.mu.Lock()
	st := ImageStatus{ImageID: imageID, Status: s, UpdatedAt: r.now()}
	changed := r.storeLocked(st)
	r.mu.Unlock()
	if changed {
		r.notify(st)
	}
}

// ApplyPush records a status delivered by a backend push notification.
// Pushes are treated like optimistic updates: applied immediately, then
// confirmed by the next reconcile pass.
func (r *Reconciler) ApplyPush(st ImageStatus) {
	if st.UpdatedAt.IsZero() {
		st.UpdatedAt = r.now()
	}
	r.mu.Lock()
	changed := r.storeLocked(st)
	drained := changed && !r.anyActiveLocked()
	r.mu.Unlock()
	if changed {
		r.notify(st)
	}
	if drained {
		r.scheduleDrainedCheck()
	}
}

// Forget drops an image from tracking, e.g. after it is removed from the
// workspace.
func (r *Reconciler) Forget(imageID string) {
	r.mu.Lock()
	delete(r.local, imageID)
	r.mu.Unlock()
}

// ReconcileNow requests an immediate fetch, subject to the rate limit.
func (r *Reconciler) ReconcileNow() {
	select {
	case r.pokeCh <- struct{}{}:
	default:
	}
}

// Start runs the reconcile loop until Stop is called or the context is
// cancelled.
func (r *Reconciler) Start(ctx context.Context) {
	go r.run(ctx)
}

// Stop terminates the reconcile loop.
func (r *Reconciler) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

func (r *Reconciler) run(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-ticker.C:
			if r.shouldPoll() {
				r.tryReconcile(ctx)
			}
		case <-r.pokeCh:
			r.tryReconcile(ctx)
		}
	}
}

// shouldPoll reports whether the periodic tick warrants backend traffic:
// any image actively queued or processing, or stuck in processing long
// enough that a push notification was probably lost.
func (r *Reconciler) shouldPoll() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.local {
		if s.Status.IsActive() {
			return true
		}
	}
	return false
}

// tryReconcile fetches once, honoring the rate limit and dropping the
// request when a fetch is already running.
func (r *Reconciler) tryReconcile(ctx context.Context) {
	if !r.limiter.Allow() {
		return
	}
	r.mu.Lock()
	if r.inFlight {
		r.mu.Unlock()
		return
	}
	r.inFlight = true
	r.mu.Unlock()

	go func() {
		defer func() {
			r.mu.Lock()
			r.inFlight = false
			r.mu.Unlock()
		}()
		snapshot, err := r.fetcher.FetchStatuses(ctx)
		if err != nil {
			// Keep local state; the next tick retries.
			log.Printf("Status: reconcile fetch failed: %v", err)
			return
		}
		r.applySnapshot(snapshot)
	}()
}

// applySnapshot merges an authoritative backend snapshot into local state.
func (r *Reconciler) applySnapshot(snapshot []ImageStatus) {
	now := r.now()
	var changed []ImageStatus

	r.mu.Lock()
	for _, remote := range snapshot {
		local, ok := r.local[remote.ImageID]
		merged := mergeStatus(local, remote.Status, ok, r.completedGuard, now)
		if !ok || merged != local.Status {
			st := ImageStatus{ImageID: remote.ImageID, Status: merged, UpdatedAt: now}
			r.local[remote.ImageID] = st
			changed = append(changed, st)
		}
	}
	drained := len(changed) > 0 && !r.anyActiveLocked()
	r.mu.Unlock()

	for _, st := range changed {
		r.notify(st)
	}
	if drained {
		r.scheduleDrainedCheck()
	}
}

// mergeStatus decides between the local value and the authoritative remote
// one. The remote wins except in one case: a completed status set within
// the guard window is not downgraded back to queued or processing, which
// suppresses flicker when the backend snapshot lags a push notification.
func mergeStatus(local ImageStatus, remote Status, haveLocal bool, guard time.Duration, now time.Time) Status {
	if !haveLocal {
		return remote
	}
	if local.Status == Completed && remote.IsActive() && now.Sub(local.UpdatedAt) < guard {
		return Completed
	}
	return remote
}

// scheduleDrainedCheck arranges one follow-up fetch shortly after the
// queue empties, catching completions the final in-flight poll missed.
func (r *Reconciler) scheduleDrainedCheck() {
	time.AfterFunc(r.drainedDelay, func() {
		select {
		case <-r.stopCh:
		default:
			r.ReconcileNow()
		}
	})
}

func (r *Reconciler) anyActiveLocked() bool {
	for _, s := range r.local {
		if s.Status.IsActive() {
			return true
		}
	}
	return false
}

// storeLocked writes a status, reporting whether it differs from the
// existing value. Caller holds mu.
func (r *Reconciler) storeLocked(st ImageStatus) bool {
	old, ok := r.local[st.ImageID]
	if ok && old.Status == st.Status {
		// Refresh the timestamp so guard windows track the latest event.
		r.local[st.ImageID] = st
		return false
	}
	r.local[st.ImageID] = st
	return true
}

func (r *Reconciler) notify(st ImageStatus) {
	if r.onChange != nil {
		r.onChange(st)
	}
}
