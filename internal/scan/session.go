// ABOUTME: Scanning session: identifies frames against a reference snapshot
// ABOUTME: Drives the poll loop with label de-duplication and a no-match window
package scan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/harper/artmatch/internal/catalog"
	"github.com/harper/artmatch/internal/embed"
	"github.com/harper/artmatch/internal/matcher"
	"github.com/harper/artmatch/internal/models"
)

// DefaultNoMatchWindow is how long the loop waits for an accepted match
// before reporting that no artwork is in view
const DefaultNoMatchWindow = 13 * time.Second

// ArtworkResolver looks up catalog details for a matched label
type ArtworkResolver interface {
	FindArtworkBySlug(ctx context.Context, slug string) (*models.Artwork, error)
	GetArtwork(ctx context.Context, id string) (*models.Artwork, error)
}

var _ ArtworkResolver = (*catalog.Client)(nil)

// Identification is the outcome of identifying one frame
type Identification struct {
	Match      models.MatchResult     `json:"match" yaml:"match"`
	Accepted   bool                   `json:"accepted" yaml:"accepted"`
	Entry      *models.ReferenceEntry `json:"-" yaml:"-"`
	Artwork    *models.Artwork        `json:"artwork,omitempty" yaml:"artwork,omitempty"`
	Candidates []matcher.Ranked       `json:"candidates,omitempty" yaml:"candidates,omitempty"`
	ResolveErr error                  `json:"-" yaml:"-"`
	Resolution string                 `json:"resolve_error,omitempty" yaml:"resolve_error,omitempty"`
	Elapsed    time.Duration          `json:"elapsed" yaml:"elapsed"`
}

// EventType distinguishes scan loop events
type EventType string

const (
	// EventMatched is emitted when a new artwork is identified
	EventMatched EventType = "matched"
	// EventNoMatch is emitted when the no-match window elapses
	EventNoMatch EventType = "no_match"
	// EventError is emitted when a frame could not be processed
	EventError EventType = "error"
)

// Event is delivered to the Run callback
type Event struct {
	Type           EventType
	Time           time.Time
	Identification *Identification
	Err            error
}

// Session identifies frames against an immutable reference snapshot
type Session struct {
	refs       []models.ReferenceEntry
	embedder   embed.Embedder
	policy     Policy
	resolver   ArtworkResolver
	window     time.Duration
	candidates int
	log        zerolog.Logger

	mu        sync.Mutex
	lastLabel string
}

// SessionOption configures a Session
type SessionOption func(*Session)

// WithResolver enables catalog lookups for accepted matches
func WithResolver(r ArtworkResolver) SessionOption {
	return func(s *Session) { s.resolver = r }
}

// WithNoMatchWindow sets how long Run waits before emitting EventNoMatch
func WithNoMatchWindow(d time.Duration) SessionOption {
	return func(s *Session) {
		if d > 0 {
			s.window = d
		}
	}
}

// WithCandidates makes Identify report the k best entries
func WithCandidates(k int) SessionOption {
	return func(s *Session) { s.candidates = k }
}

// WithLogger sets the logger
func WithLogger(log zerolog.Logger) SessionOption {
	return func(s *Session) { s.log = log }
}

// NewSession creates a Session over refs. The slice must not be modified afterwards.
func NewSession(refs []models.ReferenceEntry, embedder embed.Embedder, policy Policy, opts ...SessionOption) *Session {
	s := &Session{
		refs:     refs,
		embedder: embedder,
		policy:   policy,
		window:   DefaultNoMatchWindow,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if len(refs) == 0 {
		s.log.Warn().Msg("scan session has no references, every frame will be unmatched")
	}
	return s
}

// Identify embeds frame, finds the closest reference and applies the policy.
// Accepted matches are resolved to catalog artworks when a resolver is set.
// A failed lookup is recorded on the Identification rather than returned.
func (s *Session) Identify(ctx context.Context, frame []byte) (*Identification, error) {
	id, err := s.identify(ctx, frame)
	if err != nil {
		return nil, err
	}
	if id.Accepted {
		s.resolve(ctx, id)
	}
	return id, nil
}

func (s *Session) identify(ctx context.Context, frame []byte) (*Identification, error) {
	start := time.Now()

	vec, err := s.embedder.Embed(ctx, frame)
	if err != nil {
		return nil, fmt.Errorf("failed to embed frame: %w", err)
	}

	id := &Identification{}
	if s.candidates > 0 {
		id.Candidates, id.Match, err = matcher.Rank(vec, s.refs, s.candidates)
	} else {
		id.Match, err = matcher.FindBestMatch(vec, s.refs)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to match frame: %w", err)
	}

	if id.Match.AllSkipped() {
		s.log.Warn().Int("skipped", id.Match.Skipped).Msg("no reference entry was comparable with the frame")
	}

	if id.Match.Found {
		id.Entry = &s.refs[id.Match.Index]
	}
	id.Accepted = s.policy.Accept(id.Match)
	id.Elapsed = time.Since(start)
	return id, nil
}

// resolve looks the artwork up by slug, then by catalog id
func (s *Session) resolve(ctx context.Context, id *Identification) {
	if s.resolver == nil || id.Entry == nil {
		return
	}

	slug := id.Entry.Slug
	if slug == "" {
		slug = id.Entry.Label
	}

	art, err := s.resolver.FindArtworkBySlug(ctx, slug)
	if errors.Is(err, catalog.ErrNotFound) && id.Entry.ArtworkID != "" {
		art, err = s.resolver.GetArtwork(ctx, id.Entry.ArtworkID)
	}
	if err != nil {
		s.log.Warn().Err(err).Str("label", id.Match.Label).Msg("failed to resolve matched artwork")
		id.ResolveErr = err
		id.Resolution = err.Error()
		return
	}
	id.Artwork = art
}

// Run identifies frames until frames is closed or ctx ends.
//
// EventMatched is emitted only when the accepted label changes. Every accepted
// match restarts the no-match window; when the window elapses EventNoMatch is
// emitted and the window starts again. Frame failures produce EventError and
// the loop continues. Run returns nil when frames is closed and ctx.Err() when
// ctx ends. emit is called from the Run goroutine.
func (s *Session) Run(ctx context.Context, frames <-chan []byte, emit func(Event)) error {
	timer := time.NewTimer(s.window)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-timer.C:
			s.log.Debug().Dur("window", s.window).Msg("no artwork identified in window")
			emit(Event{Type: EventNoMatch, Time: time.Now()})
			timer.Reset(s.window)

		case frame, ok := <-frames:
			if !ok {
				return nil
			}

			id, err := s.identify(ctx, frame)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				emit(Event{Type: EventError, Time: time.Now(), Err: err})
				continue
			}
			if !id.Accepted {
				s.log.Debug().
					Str("label", id.Match.Label).
					Float64("score", id.Match.Score).
					Msg("frame below threshold")
				continue
			}

			resetTimer(timer, s.window)

			if !s.swapLabel(id.Match.Label) {
				continue
			}
			s.resolve(ctx, id)
			s.log.Info().
				Str("label", id.Match.Label).
				Float64("score", id.Match.Score).
				Msg("artwork identified")
			emit(Event{Type: EventMatched, Time: time.Now(), Identification: id})
		}
	}
}

// Reset forgets the last identified label so the next match is reported again
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastLabel = ""
}

// LastLabel returns the most recently reported label
func (s *Session) LastLabel() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastLabel
}

// swapLabel records label and reports whether it differs from the previous one
func (s *Session) swapLabel(label string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if label == s.lastLabel {
		return false
	}
	s.lastLabel = label
	return true
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}
