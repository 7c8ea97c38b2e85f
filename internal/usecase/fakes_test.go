package usecase

import (
	"context"
	"sync"

	"Briefcast/internal/domain"
	"Briefcast/internal/ports"
)

// fakeFeed serves canned entries per feed URL and per search query.
type fakeFeed struct {
	mu       sync.Mutex
	byURL    map[string][]domain.FeedEntry
	byQuery  map[string][]domain.FeedEntry
	fetchErr map[string]error
	searches []string
	onFetch  func()
}

func (f *fakeFeed) Fetch(_ context.Context, feedURL string) ([]domain.FeedEntry, error) {
	if f.onFetch != nil {
		f.onFetch()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.fetchErr[feedURL]; err != nil {
		return nil, err
	}
	return f.byURL[feedURL], nil
}

func (f *fakeFeed) Search(_ context.Context, query string) ([]domain.FeedEntry, error) {
	f.mu.Lock()
	f.searches = append(f.searches, query)
	entries := f.byQuery[query]
	f.mu.Unlock()
	return entries, nil
}

func (f *fakeFeed) searchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.searches)
}

// fakeGen replays scripted replies in call order.
type fakeGen struct {
	mu      sync.Mutex
	replies []string
	errs    []error
	calls   int
	prompts []string
}

func (g *fakeGen) Generate(_ context.Context, req ports.GenerateRequest) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	i := g.calls
	g.calls++
	g.prompts = append(g.prompts, req.Prompt)
	if i < len(g.errs) && g.errs[i] != nil {
		return "", g.errs[i]
	}
	if i < len(g.replies) {
		return g.replies[i], nil
	}
	return "", nil
}

func (g *fakeGen) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

// fakeSynth returns fixed bytes per call.
type fakeSynth struct {
	data  []byte
	err   error
	calls int
}

func (s *fakeSynth) Synthesize(context.Context, string, string, string) ([]byte, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if s.data == nil {
		return []byte("mp3"), nil
	}
	return s.data, nil
}

// fakeMixer records the spec and optionally writes the output file.
type fakeMixer struct {
	spec        domain.MixSpec
	err         error
	calls       int
	writeOutput func(spec domain.MixSpec) error
}

func (m *fakeMixer) Mix(_ context.Context, spec domain.MixSpec) error {
	m.calls++
	m.spec = spec
	if m.err != nil {
		return m.err
	}
	if m.writeOutput != nil {
		return m.writeOutput(spec)
	}
	return nil
}

// fakeMessenger records deliveries and fails on demand.
type fakeMessenger struct {
	textErrs  []error
	audioErr  error
	texts     []string
	formatted []bool
	audioPath string
	caption   string
	title     string
	performer string
}

func (m *fakeMessenger) SendText(_ context.Context, text string, formatted bool) error {
	i := len(m.texts)
	m.texts = append(m.texts, text)
	m.formatted = append(m.formatted, formatted)
	if i < len(m.textErrs) {
		return m.textErrs[i]
	}
	return nil
}

func (m *fakeMessenger) SendAudio(_ context.Context, path, caption, title, performer string) error {
	m.audioPath = path
	m.caption = caption
	m.title = title
	m.performer = performer
	return m.audioErr
}
