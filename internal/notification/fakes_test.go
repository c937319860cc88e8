package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/stanstork/chatpush/internal/credential"
	"github.com/stanstork/chatpush/internal/models"
	"github.com/stanstork/chatpush/internal/repository"
)

type fakeRepo struct {
	room      models.ChatRoom
	roomErr   error
	profiles  []models.Profile
	listErr   error
	senderErr error
}

func (r *fakeRepo) GetRoom(_ context.Context, roomID string) (models.ChatRoom, error) {
	if r.roomErr != nil {
		return models.ChatRoom{}, r.roomErr
	}
	if r.room.ID != roomID {
		return models.ChatRoom{}, fmt.Errorf("chat room %s: %w", roomID, repository.ErrNotFound)
	}
	return r.room, nil
}

func (r *fakeRepo) ListProfiles(_ context.Context, ids []string, excludeID string) ([]models.Profile, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var out []models.Profile
	for _, p := range r.profiles {
		if wanted[p.ID] && p.ID != excludeID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *fakeRepo) GetProfile(_ context.Context, id string) (models.Profile, error) {
	if r.senderErr != nil {
		return models.Profile{}, r.senderErr
	}
	for _, p := range r.profiles {
		if p.ID == id {
			return p, nil
		}
	}
	return models.Profile{}, fmt.Errorf("profile %s: %w", id, repository.ErrNotFound)
}

type fakeTokens struct {
	calls int32
	err   error
}

func (f *fakeTokens) AccessToken(context.Context) (credential.Token, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return credential.Token{}, f.err
	}
	return credential.Token{Value: "access-token"}, nil
}

type fakeSender struct {
	mu       sync.Mutex
	sent     []PushMessage
	bearer   []string
	failures map[string]error

	inFlight    int32
	maxInFlight int32
	hold        chan struct{}
}

func (s *fakeSender) Send(_ context.Context, accessToken string, msg PushMessage) (json.RawMessage, error) {
	n := atomic.AddInt32(&s.inFlight, 1)
	defer atomic.AddInt32(&s.inFlight, -1)
	for {
		cur := atomic.LoadInt32(&s.maxInFlight)
		if n <= cur || atomic.CompareAndSwapInt32(&s.maxInFlight, cur, n) {
			break
		}
	}
	if s.hold != nil {
		<-s.hold
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	s.bearer = append(s.bearer, accessToken)
	if err, ok := s.failures[msg.Token]; ok {
		return nil, err
	}
	return json.RawMessage(fmt.Sprintf(`{"name":"projects/demo/messages/%s"}`, msg.Token)), nil
}

func (s *fakeSender) tokens() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.sent))
	for _, m := range s.sent {
		out = append(out, m.Token)
	}
	return out
}

func (s *fakeSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func (s *fakeSender) inFlightNow() int32 {
	return atomic.LoadInt32(&s.inFlight)
}
