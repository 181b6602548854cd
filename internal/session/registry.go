package session

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/gogotex/pdf-annotator/internal/resource"
	"github.com/gogotex/pdf-annotator/pkg/logger"
	"github.com/gogotex/pdf-annotator/pkg/metrics"
)

var ErrSessionNotFound = errors.New("session not found")

// DefaultIdleTTL is how long an untouched session is kept.
const DefaultIdleTTL = 30 * time.Minute

type entry struct {
	ctrl     *Controller
	owner    string
	lastSeen time.Time
}

// Registry holds the live sessions of the annotation API.
type Registry struct {
	svc     DocumentService
	store   resource.Store
	opts    Options
	idleTTL time.Duration
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
}

func NewRegistry(svc DocumentService, store resource.Store, opts Options, idleTTL time.Duration) *Registry {
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	return &Registry{
		svc:      svc,
		store:    store,
		opts:     opts,
		idleTTL:  idleTTL,
		now:      time.Now,
		sessions: map[string]*entry{},
	}
}

func newSessionID() string {
	b := make([]byte, 12)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return "sess_" + hex.EncodeToString(b)
}

// Create starts a session owned by owner ("" for anonymous use).
func (r *Registry) Create(owner string) (string, *Controller) {
	id := newSessionID()
	c := NewController(r.svc, r.store, r.opts)
	r.mu.Lock()
	r.sessions[id] = &entry{ctrl: c, owner: owner, lastSeen: r.now()}
	n := len(r.sessions)
	r.mu.Unlock()
	metrics.ActiveSessions.Set(float64(n))
	return id, c
}

// Get returns the session if it exists and belongs to owner. A session
// owned by someone else is reported as missing.
func (r *Registry) Get(id, owner string) (*Controller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok || e.owner != owner {
		return nil, ErrSessionNotFound
	}
	e.lastSeen = r.now()
	return e.ctrl, nil
}

// Delete closes the session and releases its resources.
func (r *Registry) Delete(ctx context.Context, id, owner string) error {
	r.mu.Lock()
	e, ok := r.sessions[id]
	if !ok || e.owner != owner {
		r.mu.Unlock()
		return ErrSessionNotFound
	}
	delete(r.sessions, id)
	n := len(r.sessions)
	r.mu.Unlock()
	metrics.ActiveSessions.Set(float64(n))
	e.ctrl.Close(ctx)
	return nil
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep closes sessions idle for longer than the TTL and returns how many
// were removed.
func (r *Registry) Sweep(ctx context.Context) int {
	cutoff := r.now().Add(-r.idleTTL)
	var expired []*Controller
	r.mu.Lock()
	for id, e := range r.sessions {
		if e.lastSeen.Before(cutoff) {
			expired = append(expired, e.ctrl)
			delete(r.sessions, id)
		}
	}
	n := len(r.sessions)
	r.mu.Unlock()
	metrics.ActiveSessions.Set(float64(n))
	for _, c := range expired {
		c.Close(ctx)
	}
	if len(expired) > 0 {
		logger.Infof("session: expired %d idle sessions", len(expired))
	}
	return len(expired)
}

// Run sweeps every interval until ctx is done, then closes all sessions.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			r.closeAll()
			return
		case <-t.C:
			r.Sweep(ctx)
		}
	}
}

func (r *Registry) closeAll() {
	r.mu.Lock()
	all := r.sessions
	r.sessions = map[string]*entry{}
	r.mu.Unlock()
	metrics.ActiveSessions.Set(0)
	for _, e := range all {
		e.ctrl.Close(context.Background())
	}
}
