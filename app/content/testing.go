package content

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/OdyseeTeam/mintstudio/internal/errors"
)

// UpdateCall is a recorded UpdatePublish invocation.
type UpdateCall struct {
	Token  string
	ID     string
	Update PublishUpdate
}

// MemoryService is an in-memory Service for tests.
type MemoryService struct {
	mu sync.Mutex

	Publishes map[string]*Publish
	// Accounts are keyed by identity token.
	Accounts map[string]*Account
	Profiles map[string]*Profile
	Updates  []UpdateCall
	// Errors injects a failure for the named operation.
	Errors map[string]error
	// OnCall, when set, is called with the operation name before it is applied.
	OnCall func(op string)

	calls []string
	seq   int
}

func NewMemoryService() *MemoryService {
	return &MemoryService{
		Publishes: map[string]*Publish{},
		Accounts:  map[string]*Account{},
		Profiles:  map[string]*Profile{},
		Errors:    map[string]error{},
	}
}

// Calls returns operation names in invocation order.
func (s *MemoryService) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.calls...)
}

// CallCount returns how many times op was invoked.
func (s *MemoryService) CallCount(op string) int {
	n := 0
	for _, c := range s.Calls() {
		if c == op {
			n++
		}
	}
	return n
}

func (s *MemoryService) AddPublish(p Publish) *Publish {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Publishes[p.ID] = &p
	return &p
}

// Publish returns a copy of the stored publish.
func (s *MemoryService) Publish(id string) Publish {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.Publishes[id]; ok {
		return *p
	}
	return Publish{}
}

func (s *MemoryService) enter(op string) error {
	if s.OnCall != nil {
		s.OnCall(op)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, op)
	return s.Errors[op]
}

func (s *MemoryService) CreateDraft(ctx context.Context, token, filename string) (string, error) {
	if err := s.enter("CreateDraft"); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	id := fmt.Sprintf("draft-%d", s.seq)
	now := time.Now().UTC()
	s.Publishes[id] = &Publish{ID: id, Filename: filename, CreatedAt: now, UpdatedAt: now}
	return id, nil
}

func (s *MemoryService) GetPublish(ctx context.Context, token, id string) (*Publish, error) {
	if err := s.enter("GetPublish"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.Publishes[id]
	if !ok {
		return nil, errors.NotFound("publish %s not found", id)
	}
	cp := *p
	return &cp, nil
}

func (s *MemoryService) ListPublishes(ctx context.Context, token, profileID string) ([]Publish, error) {
	if err := s.enter("ListPublishes"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ps := []Publish{}
	for _, p := range s.Publishes {
		if p.CreatorID == profileID {
			ps = append(ps, *p)
		}
	}
	return ps, nil
}

func (s *MemoryService) UpdatePublish(ctx context.Context, token, id string, u PublishUpdate) error {
	if err := s.enter("UpdatePublish"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Updates = append(s.Updates, UpdateCall{Token: token, ID: id, Update: u})
	p, ok := s.Publishes[id]
	if !ok {
		return errors.NotFound("publish %s not found", id)
	}
	if v, ok := u.Title.Get(); ok {
		p.Title = v
	}
	if v, ok := u.Description.Get(); ok {
		p.Description = v
	}
	if v, ok := u.ThumbnailSource.Get(); ok {
		p.ThumbnailSource = v
	}
	if v, ok := u.ThumbnailURI.Get(); ok {
		p.ThumbnailURI = v
	}
	if v, ok := u.PrimaryCategory.Get(); ok {
		p.PrimaryCategory = v
	}
	if u.SecondaryCategory.IsNull() {
		p.SecondaryCategory = ""
	} else if v, ok := u.SecondaryCategory.Get(); ok {
		p.SecondaryCategory = v
	}
	if v, ok := u.Visible.Get(); ok {
		p.Visible = v
	}
	p.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *MemoryService) SetMinting(ctx context.Context, token, id string, minting bool) error {
	if err := s.enter("SetMinting"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.Publishes[id]
	if !ok {
		return errors.NotFound("publish %s not found", id)
	}
	p.IsMinting = minting
	if minting {
		now := time.Now().UTC()
		p.MintRequestedAt = &now
	}
	return nil
}

func (s *MemoryService) DeletePublish(ctx context.Context, token, id string) error {
	if err := s.enter("DeletePublish"); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.Publishes, id)
	return nil
}

func (s *MemoryService) Viewer(ctx context.Context, token string) (*Account, error) {
	if err := s.enter("Viewer"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.Accounts[token]
	if !ok {
		return nil, errors.NotFound("account not found")
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryService) GetProfile(ctx context.Context, token, handle string) (*Profile, error) {
	if err := s.enter("GetProfile"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.Profiles[handle]
	if !ok {
		return nil, errors.NotFound("profile %s not found", handle)
	}
	cp := *p
	return &cp, nil
}

// MarkMinted simulates the chain service confirming a mint.
func (s *MemoryService) MarkMinted(id, tokenID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.Publishes[id]; ok {
		p.TokenID = &tokenID
		p.IsMinting = false
	}
}
