package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dubbishpsychic0000/tweet-bot-ai/internal/config"
	"github.com/dubbishpsychic0000/tweet-bot-ai/internal/core/domain"
	"github.com/dubbishpsychic0000/tweet-bot-ai/internal/core/ports"
	"github.com/dubbishpsychic0000/tweet-bot-ai/internal/logging"
)

type fakeGenerator struct {
	prompts []string
	reply   func(prompt string) string
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string) string {
	g.prompts = append(g.prompts, prompt)
	if g.reply == nil {
		return "generated"
	}
	return g.reply(prompt)
}

type fakeSocial struct {
	me          domain.UserID
	identifyErr error

	mentions    []domain.CandidateItem
	mentionsErr error
	search      []domain.CandidateItem
	searchErr   error
	usernames   map[string]string
	own         []domain.OwnPost

	// failOn makes the write action against the given target id fail.
	failOn map[string]error

	calls   []string
	lookups []string
	texts   []string
	nextID  int
}

var _ ports.Social = (*fakeSocial)(nil)

func (s *fakeSocial) IdentifySelf(context.Context) (domain.UserID, error) {
	if s.identifyErr != nil {
		return "", s.identifyErr
	}
	if s.me == "" {
		return "me", nil
	}
	return s.me, nil
}

func (s *fakeSocial) Search(_ context.Context, query string, limit int) ([]domain.CandidateItem, error) {
	s.calls = append(s.calls, "search:"+query)
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	items := s.search
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *fakeSocial) FetchMentions(context.Context, domain.UserID, int) ([]domain.CandidateItem, error) {
	s.calls = append(s.calls, "mentions")
	if s.mentionsErr != nil {
		return nil, s.mentionsErr
	}
	return append([]domain.CandidateItem(nil), s.mentions...), nil
}

func (s *fakeSocial) LookupUsername(_ context.Context, authorID string) (string, error) {
	s.lookups = append(s.lookups, authorID)
	name, ok := s.usernames[authorID]
	if !ok {
		return "", fmt.Errorf("%w: no such user %s", domain.ErrFetch, authorID)
	}
	return name, nil
}

func (s *fakeSocial) RecentPosts(context.Context, domain.UserID, int) ([]domain.OwnPost, error) {
	return s.own, nil
}

func (s *fakeSocial) write(action, target, text string) (string, error) {
	s.calls = append(s.calls, action+":"+target)
	s.texts = append(s.texts, text)
	if err, ok := s.failOn[target]; ok {
		return "", err
	}
	s.nextID++
	return fmt.Sprintf("new-%d", s.nextID), nil
}

func (s *fakeSocial) Post(_ context.Context, text string) (string, error) {
	return s.write("post", "", text)
}

func (s *fakeSocial) Reply(_ context.Context, text, targetID string) (string, error) {
	return s.write("reply", targetID, text)
}

func (s *fakeSocial) Quote(_ context.Context, text, targetID string) (string, error) {
	return s.write("quote", targetID, text)
}

func (s *fakeSocial) Like(_ context.Context, _ domain.UserID, targetID string) error {
	_, err := s.write("like", targetID, "")
	return err
}

func (s *fakeSocial) writes() []string {
	var out []string
	for _, c := range s.calls {
		if c != "mentions" && (len(c) < 7 || c[:7] != "search:") {
			out = append(out, c)
		}
	}
	return out
}

type memLedger struct {
	mu          sync.Mutex
	items       map[domain.WorkflowKind]map[string]bool
	containsErr error
	recordErr   error
	records     int
}

var _ ports.Ledger = (*memLedger)(nil)

func newMemLedger(kind domain.WorkflowKind, ids ...string) *memLedger {
	l := &memLedger{items: make(map[domain.WorkflowKind]map[string]bool)}
	for _, id := range ids {
		l.put(kind, id)
	}
	return l
}

func (l *memLedger) put(kind domain.WorkflowKind, id string) bool {
	if l.items[kind] == nil {
		l.items[kind] = make(map[string]bool)
	}
	if l.items[kind][id] {
		return false
	}
	l.items[kind][id] = true
	return true
}

func (l *memLedger) has(kind domain.WorkflowKind, id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.items[kind][id]
}

func (l *memLedger) Contains(_ context.Context, kind domain.WorkflowKind, id string) (bool, error) {
	if l.containsErr != nil {
		return false, l.containsErr
	}
	return l.has(kind, id), nil
}

func (l *memLedger) RecordIfAbsent(ctx context.Context, kind domain.WorkflowKind, id string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records++
	if l.recordErr != nil {
		return false, l.recordErr
	}
	return l.put(kind, id), nil
}

func (l *memLedger) Recent(context.Context, domain.WorkflowKind, int) ([]domain.ActedItem, error) {
	return nil, nil
}

func (l *memLedger) Close() error { return nil }

type fakeNotifier struct {
	titles []string
}

func (n *fakeNotifier) Notify(_ context.Context, title, _ string) error {
	n.titles = append(n.titles, title)
	return nil
}

type harness struct {
	cfg      config.Config
	gen      *fakeGenerator
	social   *fakeSocial
	ledger   *memLedger
	notifier *fakeNotifier
	sleeps   []time.Duration
}

func newHarness() *harness {
	return &harness{
		cfg:      config.Default(),
		gen:      &fakeGenerator{},
		social:   &fakeSocial{},
		ledger:   newMemLedger(domain.KindReply),
		notifier: &fakeNotifier{},
	}
}

func (h *harness) orchestrator() *Orchestrator {
	o := New(h.cfg, h.gen, h.social, h.ledger, h.notifier, logging.Discard())
	o.sleep = func(_ context.Context, d time.Duration) error {
		h.sleeps = append(h.sleeps, d)
		return nil
	}
	return o
}
