package edgar

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/seenimoa/edgarwatch/internal/fetch"
)

// stubFetcher serves canned bodies by exact URL; anything else is unavailable.
type stubFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	calls []string
}

func newStubFetcher(pages map[string]string) *stubFetcher {
	if pages == nil {
		pages = map[string]string{}
	}
	return &stubFetcher{pages: pages}
}

func (s *stubFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, url)
	body, ok := s.pages[url]
	if !ok {
		return nil, fmt.Errorf("%w: no page for %s", fetch.ErrUnavailable, url)
	}
	return []byte(body), nil
}

func (s *stubFetcher) FetchJSON(ctx context.Context, url string, dest any) error {
	body, err := s.Fetch(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("%w: %v", fetch.ErrUnavailable, err)
	}
	return nil
}

func (s *stubFetcher) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// mapTable is a synthetic ticker table.
type mapTable map[string]string

func (m mapTable) Lookup(t string) (string, bool) {
	v, ok := m[t]
	return v, ok
}
