package router

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Klingon-tech/klingnet-wallet/internal/chains"
	klog "github.com/Klingon-tech/klingnet-wallet/internal/log"
	"github.com/Klingon-tech/klingnet-wallet/internal/origins"
	"github.com/Klingon-tech/klingnet-wallet/internal/session"
	"github.com/Klingon-tech/klingnet-wallet/internal/vault"
	"github.com/Klingon-tech/klingnet-wallet/pkg/werr"
)

// Config holds router timing parameters.
type Config struct {
	// ApprovalTimeout is the fixed ceiling a request may wait for
	// approval or unlock before auto-rejecting.
	ApprovalTimeout time.Duration
}

// PromptFunc is notified when a new prompt (approval or unlock)
// surfaces. The approval surface polls Pending regardless; the
// callback just lets a UI react promptly.
type PromptFunc func(PendingInfo)

// Router is the request-authorization engine.
type Router struct {
	cfg      Config
	session  *session.Manager
	vault    *vault.Store
	origins  *origins.Store
	adapters *chains.Registry
	table    *pendingTable
	prompt   PromptFunc
	logger   zerolog.Logger
}

// New creates a router and wires it to the session's lock/unlock
// transitions.
func New(cfg Config, sess *session.Manager, vaultStore *vault.Store, orig *origins.Store, adapters *chains.Registry) *Router {
	if cfg.ApprovalTimeout <= 0 {
		cfg.ApprovalTimeout = 5 * time.Minute
	}
	r := &Router{
		cfg:      cfg,
		session:  sess,
		vault:    vaultStore,
		origins:  orig,
		adapters: adapters,
		table:    newPendingTable(),
		logger:   klog.Router,
	}
	// Locking is a hard cancellation boundary: every request awaiting
	// vault access is rejected synchronously. Unlocking replays the
	// queued requests under their original ids.
	sess.OnLock(r.rejectAwaitingApproval)
	sess.OnUnlock(r.replayPendingUnlock)
	return r
}

// SetPrompt registers the prompt callback.
func (r *Router) SetPrompt(fn PromptFunc) {
	r.prompt = fn
}

// Pending returns the approval-surface view of all outstanding
// requests, oldest first.
func (r *Router) Pending() []PendingInfo {
	return r.table.snapshot()
}

// PendingCount returns the number of outstanding requests.
func (r *Router) PendingCount() int {
	return r.table.size()
}

// Handle processes one inbound request, blocking the caller until it
// resolves, is rejected, or times out. The block is always bounded by
// the approval timeout ceiling.
func (r *Router) Handle(ctx context.Context, req Request) (interface{}, error) {
	class, known := Classify(req.Method)
	if !known {
		return nil, werr.Newf(werr.CodeMethodNotFound, "method %q not found", req.Method)
	}
	if req.ID == "" {
		return nil, werr.New(werr.CodeInvalidParams, "id is required")
	}

	r.logger.Debug().Str("id", req.ID).Str("method", req.Method).Str("origin", req.Origin).Msg("request")

	// Public reads never touch the vault.
	if class == ClassPublic {
		return r.handlePublic(req)
	}

	// A vault that was never initialized rejects immediately; no
	// PendingRequest is created.
	initialized, err := r.vault.Initialized()
	if err != nil {
		return nil, err
	}
	if !initialized {
		return nil, werr.ErrNeedsSetup
	}

	locked := r.session.State() != session.Unlocked

	if class == ClassIdentity {
		granted, err := r.origins.Granted(req.Origin)
		if err != nil {
			return nil, err
		}
		// An origin without a grant gets an empty account list, no
		// prompt; connecting is the explicit wallet_connect flow.
		if !granted {
			return []AccountInfo{}, nil
		}
		if locked {
			return r.enqueueAndWait(ctx, req, kindUnlock)
		}
		return r.dispatch(req, nil)
	}

	// Privileged.
	if locked {
		return r.enqueueAndWait(ctx, req, kindUnlock)
	}
	if !r.needsApproval(req) {
		return r.dispatch(req, nil)
	}
	return r.enqueueAndWait(ctx, req, kindApproval)
}

// needsApproval reports whether an unlocked request still requires an
// explicit user approval. Re-connecting an origin that already holds a
// grant is the only privileged action considered pre-approved.
func (r *Router) needsApproval(req Request) bool {
	switch req.Method {
	case MethodAccounts:
		return false
	case MethodConnect, MethodRequestPermission:
		granted, err := r.origins.Granted(req.Origin)
		return err != nil || !granted
	}
	return true
}

// enqueueAndWait inserts the request into the pending table and blocks
// until it resolves. Outstanding ids are unique; a duplicate is
// rejected rather than silently overwritten.
func (r *Router) enqueueAndWait(ctx context.Context, req Request, kind pendingKind) (interface{}, error) {
	e := &pendingEntry{
		req:       req,
		kind:      kind,
		createdAt: time.Now(),
		done:      make(chan outcome, 1),
	}
	if !r.table.add(e) {
		return nil, werr.Newf(werr.CodeInvalidParams, "request id %q is already pending", req.ID)
	}
	e.timer = time.AfterFunc(r.cfg.ApprovalTimeout, func() {
		r.expire(req.ID)
	})

	r.logger.Info().Str("id", req.ID).Str("method", req.Method).
		Str("origin", req.Origin).Str("kind", kind.String()).Msg("request queued")
	if r.prompt != nil {
		r.prompt(e.info())
	}

	select {
	case out := <-e.done:
		return out.result, out.err
	case <-ctx.Done():
		// The caller went away; drop the entry if it is still ours.
		if dropped := r.table.take(req.ID); dropped != nil {
			if dropped.timer != nil {
				dropped.timer.Stop()
			}
		}
		return nil, werr.New(werr.CodeInternal, "request canceled")
	}
}

// expire handles an approval-timeout firing. No PendingRequest may
// outlive its ceiling.
func (r *Router) expire(id string) {
	e := r.table.take(id)
	if e == nil {
		return
	}
	r.logger.Info().Str("id", id).Msg("request timed out")
	e.resolve(nil, werr.ErrRequestTimeout)
}

// Respond handles one approval response from the approval surface.
// Ids not present in the table are rejected outright and nothing is
// acted on; the first response for an id wins and any later one finds
// the entry gone.
func (r *Router) Respond(resp ApprovalResponse) error {
	existing := r.table.get(resp.RequestID)
	if existing == nil {
		return werr.Newf(werr.CodeInvalidParams, "unknown or already-resolved request id %q", resp.RequestID)
	}
	if existing.kind == kindUnlock && resp.Approved {
		// Unlock-pending entries are resolved by the unlock signal,
		// not by the approval surface; only dismissal is allowed.
		return werr.Newf(werr.CodeInvalidParams, "request %q is awaiting unlock", resp.RequestID)
	}

	e := r.table.take(resp.RequestID)
	if e == nil {
		// Lost the race against a timeout or lock.
		return werr.Newf(werr.CodeInvalidParams, "unknown or already-resolved request id %q", resp.RequestID)
	}

	if !resp.Approved {
		rejErr := error(werr.ErrUserRejected)
		if resp.Error != "" {
			rejErr = werr.New(werr.CodeUserRejected, resp.Error)
		}
		r.logger.Info().Str("id", e.req.ID).Str("method", e.req.Method).Msg("request rejected by user")
		e.resolve(nil, rejErr)
		return nil
	}

	result, err := r.dispatch(e.req, resp.Result)
	e.resolve(result, err)
	return nil
}

// rejectAwaitingApproval fires on every lock transition: entries
// awaiting approval hold decrypt/sign intent and cannot survive a
// lock. Entries already queued for unlock stay queued.
func (r *Router) rejectAwaitingApproval() {
	rejected := r.table.takeAll(func(e *pendingEntry) bool {
		return e.kind == kindApproval
	})
	for _, e := range rejected {
		r.logger.Info().Str("id", e.req.ID).Msg("rejecting pending request on lock")
		e.resolve(nil, werr.ErrConnectionLost)
	}
}

// replayPendingUnlock fires on every unlock transition: each queued
// request is replayed under its original id, so the original caller's
// outstanding wait resolves with the eventual real outcome.
func (r *Router) replayPendingUnlock() {
	for _, info := range r.table.snapshot() {
		if info.Kind != kindUnlock.String() {
			continue
		}
		e := r.table.get(info.ID)
		if e == nil || e.kind != kindUnlock {
			continue
		}
		if r.needsApproval(e.req) {
			promoted := r.table.promote(info.ID)
			if promoted == nil {
				continue
			}
			r.logger.Info().Str("id", info.ID).Msg("replayed request now awaits approval")
			if r.prompt != nil {
				r.prompt(promoted.info())
			}
			continue
		}
		taken := r.table.take(info.ID)
		if taken == nil {
			continue
		}
		result, err := r.dispatch(taken.req, nil)
		taken.resolve(result, err)
	}
}
