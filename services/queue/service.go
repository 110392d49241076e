package queue

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"reelparty/models"
	"reelparty/services/policy"
)

const (
	// LowWatermark is the buffer size below which a refill is triggered.
	LowWatermark = 10
	// TargetSize is the buffer size a refill attempts to reach.
	TargetSize = 80
	// MaxPagesPerCall bounds discovery page fetches per EnsureQueue call.
	MaxPagesPerCall = 5
	// SeenRetention caps the seen ledger, oldest evicted first.
	SeenRetention = 300
	// certWorkers bounds concurrent certification lookups within one page.
	certWorkers = 4
)

var (
	ErrGroupIDRequired  = errors.New("group id is required")
	ErrMemberIDRequired = errors.New("member id is required")
)

// Provider is the paginated discovery API the orchestrator pulls from.
type Provider interface {
	Discover(ctx context.Context, mediaType string, page int, f models.DiscoverFilters) (models.DiscoverPage, error)
	Certification(ctx context.Context, mediaType string, tmdbID int64) (string, error)
}

// RatedLister exposes the authoritative rated-set from the shared store.
type RatedLister interface {
	RatedTitleIDs(groupID, memberID string) ([]string, error)
}

// Snapshot is what EnsureQueue and Peek hand to callers. Exhausted true with
// a short buffer means "no titles match your filters", distinct from a
// transient short buffer that will refill on the next call.
type Snapshot struct {
	Items     []models.QueueItem `json:"items"`
	Exhausted bool               `json:"exhausted"`
}

// Service is the refill orchestrator for the endless discovery queue. Each
// (group, member) queue is owned by the single session rating under that
// member identity; persisted state is the source of truth across reloads.
type Service struct {
	store    *Store
	provider Provider
	ratings  RatedLister

	// certMemo caches certification lookups for the service lifetime so a
	// title seen on several refills costs one round-trip.
	certMu   sync.Mutex
	certMemo map[string]string

	// inflight coalesces concurrent EnsureQueue calls per (group, member):
	// a second call while a refill is pending reconciles and returns
	// instead of duplicating fetches.
	inflightMu sync.Mutex
	inflight   map[string]bool

	debug bool
}

// NewService creates the queue orchestrator.
func NewService(store *Store, provider Provider, ratings RatedLister, debug bool) *Service {
	return &Service{
		store:    store,
		provider: provider,
		ratings:  ratings,
		certMemo: make(map[string]string),
		inflight: make(map[string]bool),
		debug:    debug,
	}
}

func stateKey(groupID, memberID string) string {
	return groupID + "/" + memberID
}

// EnsureQueue returns the member's queue, refilling it from the provider
// when it has dropped below the low-watermark. Idempotent when the buffer
// is healthy: no network calls, identical list.
func (s *Service) EnsureQueue(ctx context.Context, groupID, memberID string, p models.ContentPolicy) (Snapshot, error) {
	groupID = strings.TrimSpace(groupID)
	memberID = strings.TrimSpace(memberID)
	if groupID == "" {
		return Snapshot{}, ErrGroupIDRequired
	}
	if memberID == "" {
		return Snapshot{}, ErrMemberIDRequired
	}

	state := s.store.Load(groupID, memberID)

	fingerprint := policy.Fingerprint(p)
	if state.Cursor.Fingerprint != fingerprint {
		state.Cursor.ResetFor(fingerprint)
	}

	scope := p.MediaTypes()

	// Reconcile against the local ledger first; a healthy buffer means no
	// network at all.
	state.Buffer = filterKnown(state.Buffer, state.Seen, state.Rated)
	if len(state.Buffer) >= LowWatermark {
		if err := s.store.Save(groupID, memberID, state); err != nil {
			return Snapshot{}, err
		}
		return s.snapshot(state, scope), nil
	}

	key := stateKey(groupID, memberID)
	s.inflightMu.Lock()
	if s.inflight[key] {
		s.inflightMu.Unlock()
		return s.snapshot(state, scope), nil
	}
	s.inflight[key] = true
	s.inflightMu.Unlock()
	defer func() {
		s.inflightMu.Lock()
		delete(s.inflight, key)
		s.inflightMu.Unlock()
	}()

	// Below the watermark: pull the authoritative rated-set and re-check.
	// The remote fetch is deliberately skipped on the healthy path above.
	if remote, err := s.ratings.RatedTitleIDs(groupID, memberID); err == nil {
		state.Rated = dedupeIDs(append(state.Rated, remote...))
		state.Buffer = filterKnown(state.Buffer, state.Seen, state.Rated)
	} else {
		log.Printf("[queue] rated-set fetch failed for %s: %v", key, err)
	}

	if len(state.Buffer) < LowWatermark {
		s.refill(ctx, &state, p, scope)
	}

	// Persist unconditionally: partial progress from a failed refill is
	// still progress.
	if err := s.store.Save(groupID, memberID, state); err != nil {
		return Snapshot{}, err
	}
	return s.snapshot(state, scope), nil
}

// Peek returns the reconciled buffer without any network I/O.
func (s *Service) Peek(groupID, memberID string, p models.ContentPolicy) (Snapshot, error) {
	groupID = strings.TrimSpace(groupID)
	memberID = strings.TrimSpace(memberID)
	if groupID == "" {
		return Snapshot{}, ErrGroupIDRequired
	}
	if memberID == "" {
		return Snapshot{}, ErrMemberIDRequired
	}

	state := s.store.Load(groupID, memberID)
	state.Buffer = filterKnown(state.Buffer, state.Seen, state.Rated)
	return s.snapshot(state, p.MediaTypes()), nil
}

// Consume removes a title from the buffer and records it in the seen
// ledger. This is the only mutation rating/skip actions perform; refill is
// decoupled.
func (s *Service) Consume(groupID, memberID, titleID string) error {
	return s.consume(groupID, memberID, titleID, false)
}

// MarkRated is Consume plus an append to the local rated cache, so the
// title stays excluded even after it ages out of the seen ledger.
func (s *Service) MarkRated(groupID, memberID, titleID string) error {
	return s.consume(groupID, memberID, titleID, true)
}

func (s *Service) consume(groupID, memberID, titleID string, rated bool) error {
	groupID = strings.TrimSpace(groupID)
	memberID = strings.TrimSpace(memberID)
	titleID = strings.TrimSpace(titleID)
	if groupID == "" {
		return ErrGroupIDRequired
	}
	if memberID == "" {
		return ErrMemberIDRequired
	}
	if titleID == "" {
		return nil
	}

	state := s.store.Load(groupID, memberID)

	buffer := make([]models.QueueItem, 0, len(state.Buffer))
	for _, item := range state.Buffer {
		if item.TitleID != titleID {
			buffer = append(buffer, item)
		}
	}
	state.Buffer = buffer
	state.Seen = capSeen(appendIfAbsent(state.Seen, titleID))
	if rated {
		state.Rated = appendIfAbsent(state.Rated, titleID)
	}

	return s.store.Save(groupID, memberID, state)
}

// refill pulls discovery pages round-robin across the non-exhausted media
// types in scope until the buffer reaches TargetSize or the page budget is
// spent. A transient upstream failure stops the loop without marking
// exhaustion.
func (s *Service) refill(ctx context.Context, state *State, p models.ContentPolicy, scope []string) {
	known := make(map[string]bool, len(state.Buffer)+len(state.Seen)+len(state.Rated))
	for _, item := range state.Buffer {
		known[item.TitleID] = true
	}
	for _, id := range state.Seen {
		known[id] = true
	}
	for _, id := range state.Rated {
		known[id] = true
	}

	filters := p.Filters()
	pagesFetched := 0
	next := 0

	for len(state.Buffer) < TargetSize && pagesFetched < MaxPagesPerCall {
		mediaType, ok := nextInScope(state.Cursor, scope, &next)
		if !ok {
			break
		}

		page := state.Cursor.PageFor(mediaType)
		resp, err := s.provider.Discover(ctx, mediaType, page, filters)
		if err != nil {
			// Transient by taxonomy: keep progress, do not mark exhausted.
			log.Printf("[queue] discover %s page %d failed, stopping refill: %v", mediaType, page, err)
			return
		}
		pagesFetched++
		state.Cursor.Advance(mediaType, page, resp.TotalPages, len(resp.Results))

		for _, item := range s.filterPage(ctx, p, mediaType, resp.Results, known) {
			known[item.TitleID] = true
			state.Buffer = append(state.Buffer, item)
		}
	}
}

// nextInScope picks the next non-exhausted media type round-robin.
func nextInScope(cursor Cursor, scope []string, next *int) (string, bool) {
	for i := 0; i < len(scope); i++ {
		mt := scope[(*next+i)%len(scope)]
		if !cursor.Exhausted[mt] {
			*next = (*next + i + 1) % len(scope)
			return mt, true
		}
	}
	return "", false
}

// filterPage applies the client-side filters to one discover page: release
// window, data quality (poster and title present), in-page dedup, known-id
// dedup, then certification policy with concurrent lookups.
func (s *Service) filterPage(ctx context.Context, p models.ContentPolicy, mediaType string, items []models.QueueItem, known map[string]bool) []models.QueueItem {
	candidates := make([]models.QueueItem, 0, len(items))
	inPage := make(map[string]bool, len(items))
	for _, item := range items {
		if known[item.TitleID] || inPage[item.TitleID] {
			continue
		}
		if strings.TrimSpace(item.Name) == "" || strings.TrimSpace(item.PosterPath) == "" {
			continue
		}
		if !withinReleaseWindow(item.ReleaseDate, p.ReleaseFrom, p.ReleaseTo) {
			continue
		}
		inPage[item.TitleID] = true
		candidates = append(candidates, item)
	}
	if len(candidates) == 0 {
		return nil
	}

	// Certification is checked even when the allow lists are empty: an
	// unrecognized certification is denied regardless of policy flags, so
	// every candidate needs its lookup. The memo and the provider's disk
	// cache keep repeat lookups cheap. The lookups are independent
	// round-trips; fan out, then filter in the original page order.
	certs := make([]string, len(candidates))
	wp := pool.New().WithMaxGoroutines(certWorkers)
	for i, item := range candidates {
		wp.Go(func() {
			certs[i] = s.certification(ctx, mediaType, item.TMDBID)
		})
	}
	wp.Wait()

	out := make([]models.QueueItem, 0, len(candidates))
	for i, item := range candidates {
		if !policy.IsAllowed(p, mediaType, certs[i]) {
			continue
		}
		out = append(out, item)
	}
	return out
}

// certification resolves a title's certification through the service-scoped
// memo. Lookup failures degrade to "" (unrated), which the evaluator treats
// as unrestricted; a denial-worthy rating missed this way is caught on a
// later refill once the provider recovers.
func (s *Service) certification(ctx context.Context, mediaType string, tmdbID int64) string {
	key := models.TitleID(mediaType, tmdbID)

	s.certMu.Lock()
	cert, ok := s.certMemo[key]
	s.certMu.Unlock()
	if ok {
		return cert
	}

	cert, err := s.provider.Certification(ctx, mediaType, tmdbID)
	if err != nil {
		if s.debug {
			log.Printf("[queue] certification lookup failed for %s: %v", key, err)
		}
		return ""
	}

	s.certMu.Lock()
	s.certMemo[key] = cert
	s.certMu.Unlock()
	return cert
}

func (s *Service) snapshot(state State, scope []string) Snapshot {
	items := make([]models.QueueItem, len(state.Buffer))
	copy(items, state.Buffer)
	return Snapshot{
		Items:     items,
		Exhausted: state.Cursor.AllExhausted(scope),
	}
}

// filterKnown drops buffer entries that are now in the seen or rated sets.
func filterKnown(buffer []models.QueueItem, seen, rated []string) []models.QueueItem {
	known := make(map[string]bool, len(seen)+len(rated))
	for _, id := range seen {
		known[id] = true
	}
	for _, id := range rated {
		known[id] = true
	}

	out := make([]models.QueueItem, 0, len(buffer))
	for _, item := range buffer {
		if known[item.TitleID] {
			continue
		}
		out = append(out, item)
	}
	return out
}

func appendIfAbsent(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

// withinReleaseWindow re-checks the release window client-side. Items with
// no release date pass (the window is a filter, not a data-quality gate).
func withinReleaseWindow(date, from, to string) bool {
	date = strings.TrimSpace(date)
	if date == "" {
		return true
	}
	if from != "" && date < from {
		return false
	}
	if to != "" && date > to {
		return false
	}
	return true
}
