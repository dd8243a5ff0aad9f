package gamesession_test

import (
	"context"
	"log/slog"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kidsafe/access-management/internal"
	"github.com/kidsafe/access-management/internal/authorization"
	"github.com/kidsafe/access-management/internal/core/events"
	"github.com/kidsafe/access-management/internal/gamesession"
)

// Mock repository for testing
type mockSessionRepository struct {
	sessions map[int64]*gamesession.Session
	byToken  map[string]*gamesession.Session
	nextID   int64
}

func newMockSessionRepository() *mockSessionRepository {
	return &mockSessionRepository{
		sessions: make(map[int64]*gamesession.Session),
		byToken:  make(map[string]*gamesession.Session),
		nextID:   1,
	}
}

func (m *mockSessionRepository) Create(s *gamesession.Session) error {
	s.ID = m.nextID
	m.nextID++
	m.sessions[s.ID] = s
	m.byToken[s.Token] = s
	return nil
}

func (m *mockSessionRepository) GetByToken(token string) (*gamesession.Session, error) {
	s, ok := m.byToken[token]
	if !ok {
		return nil, internal.ErrInvalidToken
	}
	return s, nil
}

func (m *mockSessionRepository) GetByID(id int64) (*gamesession.Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, internal.NewNotFoundError("Session not found", internal.ErrCodeSessionInvalid)
	}
	return s, nil
}

func (m *mockSessionRepository) Update(s *gamesession.Session) error {
	m.sessions[s.ID] = s
	m.byToken[s.Token] = s
	return nil
}

func (m *mockSessionRepository) ListActiveForChild(childID int64) ([]*gamesession.Session, error) {
	var out []*gamesession.Session
	for _, s := range m.sessions {
		if s.ChildID == childID && s.IsActive {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockSessionRepository) DeactivateExpired(now time.Time) (int64, error) {
	var n int64
	for _, s := range m.sessions {
		if s.IsActive && s.IsExpired(now) {
			s.IsActive = false
			n++
		}
	}
	return n, nil
}

func (m *mockSessionRepository) DeleteExpiredBefore(cutoff time.Time) (int64, error) {
	var n int64
	for id, s := range m.sessions {
		if s.ExpiresAt.Before(cutoff) {
			delete(m.sessions, id)
			delete(m.byToken, s.Token)
			n++
		}
	}
	return n, nil
}

func (m *mockSessionRepository) TerminateSessionsForChild(childID int64) (int64, error) {
	var n int64
	for _, s := range m.sessions {
		if s.ChildID == childID && s.IsActive {
			s.IsActive = false
			n++
		}
	}
	return n, nil
}

type mockPinVerifier struct {
	pins map[int64]string
}

func (m *mockPinVerifier) VerifyPin(childID int64, rawPin string) (bool, error) {
	pin, ok := m.pins[childID]
	if !ok {
		return false, internal.ErrChildNotFound
	}
	return pin == rawPin, nil
}

type mockAccessChecker struct {
	allowed map[int64]map[int64]bool
}

func (m *mockAccessChecker) HasPermission(childID, userID int64, p authorization.Permission) (bool, error) {
	return m.allowed[childID][userID], nil
}

var _ = Describe("SessionService", func() {
	var (
		repo   *mockSessionRepository
		pins   *mockPinVerifier
		access *mockAccessChecker
		svc    *gamesession.Service
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		repo = newMockSessionRepository()
		pins = &mockPinVerifier{pins: map[int64]string{1: "1234"}}
		access = &mockAccessChecker{allowed: map[int64]map[int64]bool{
			1: {10: true},
		}}

		lg := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
		svc = gamesession.NewService(repo, pins, access, events.NewEventBus(lg), lg, 24*time.Hour)
	})

	Describe("Issue", func() {
		It("should mint a valid session after the PIN challenge passes", func() {
			s, err := svc.Issue(ctx, 1, 10, "1234")
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Token).To(HaveLen(64))
			Expect(s.ChildID).To(Equal(int64(1)))
			Expect(s.UserID).To(Equal(int64(10)))
			Expect(s.IsValid(time.Now())).To(BeTrue())
		})

		It("should issue distinct tokens for repeated challenges", func() {
			a, err := svc.Issue(ctx, 1, 10, "1234")
			Expect(err).NotTo(HaveOccurred())
			b, err := svc.Issue(ctx, 1, 10, "1234")
			Expect(err).NotTo(HaveOccurred())
			Expect(a.Token).NotTo(Equal(b.Token))
		})

		It("should reject a wrong PIN with a generic authentication failure", func() {
			_, err := svc.Issue(ctx, 1, 10, "9999")
			Expect(err).To(MatchError(internal.ErrPinMismatch))
		})

		It("should reject a caller without the play permission", func() {
			_, err := svc.Issue(ctx, 1, 30, "1234")
			Expect(err).To(MatchError(internal.ErrInsufficientPermission))
		})

		It("should fail for an unknown child", func() {
			access.allowed[99] = map[int64]bool{10: true}
			_, err := svc.Issue(ctx, 99, 10, "1234")
			Expect(err).To(MatchError(internal.ErrChildNotFound))
		})
	})

	Describe("Validate", func() {
		It("should resolve a freshly issued token", func() {
			issued, err := svc.Issue(ctx, 1, 10, "1234")
			Expect(err).NotTo(HaveOccurred())

			s, err := svc.Validate(issued.Token)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.ID).To(Equal(issued.ID))
		})

		It("should reject an unknown token", func() {
			_, err := svc.Validate("nope")
			Expect(err).To(MatchError(internal.ErrInvalidToken))
		})

		It("should reject an expired token the same way", func() {
			issued, err := svc.Issue(ctx, 1, 10, "1234")
			Expect(err).NotTo(HaveOccurred())
			issued.ExpiresAt = time.Now().Add(-time.Minute)

			_, err = svc.Validate(issued.Token)
			Expect(err).To(MatchError(internal.ErrInvalidToken))
		})
	})

	Describe("Heartbeat", func() {
		It("should record activity on a live session", func() {
			issued, err := svc.Issue(ctx, 1, 10, "1234")
			Expect(err).NotTo(HaveOccurred())

			s, err := svc.Heartbeat(issued.Token)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.LastUsedAt).NotTo(BeNil())
		})

		It("should fail on an expired session", func() {
			issued, err := svc.Issue(ctx, 1, 10, "1234")
			Expect(err).NotTo(HaveOccurred())
			issued.ExpiresAt = time.Now().Add(-time.Minute)

			_, err = svc.Heartbeat(issued.Token)
			Expect(err).To(MatchError(gamesession.ErrSessionInvalid))
		})
	})

	Describe("Extend", func() {
		It("should push expiry out to a fresh window", func() {
			issued, err := svc.Issue(ctx, 1, 10, "1234")
			Expect(err).NotTo(HaveOccurred())
			before := issued.ExpiresAt

			time.Sleep(5 * time.Millisecond)
			s, err := svc.Extend(issued.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.ExpiresAt.After(before)).To(BeTrue())
		})

		It("should fail on a terminated session", func() {
			issued, err := svc.Issue(ctx, 1, 10, "1234")
			Expect(err).NotTo(HaveOccurred())
			Expect(svc.Terminate(ctx, issued.ID)).To(Succeed())

			_, err = svc.Extend(issued.ID)
			Expect(err).To(MatchError(gamesession.ErrSessionInactive))
		})
	})

	Describe("Terminate", func() {
		It("should be idempotent", func() {
			issued, err := svc.Issue(ctx, 1, 10, "1234")
			Expect(err).NotTo(HaveOccurred())

			Expect(svc.Terminate(ctx, issued.ID)).To(Succeed())
			Expect(svc.Terminate(ctx, issued.ID)).To(Succeed())

			s, err := svc.GetSession(issued.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.IsActive).To(BeFalse())
		})
	})

	Describe("Sweeps", func() {
		It("should deactivate sessions past expiry", func() {
			issued, err := svc.Issue(ctx, 1, 10, "1234")
			Expect(err).NotTo(HaveOccurred())
			issued.ExpiresAt = time.Now().Add(-time.Minute)

			n, err := svc.DeactivateExpiredSessions()
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(int64(1)))
		})

		It("should purge rows expired before the cutoff", func() {
			issued, err := svc.Issue(ctx, 1, 10, "1234")
			Expect(err).NotTo(HaveOccurred())
			issued.ExpiresAt = time.Now().Add(-48 * time.Hour)

			n, err := svc.PurgeExpiredSessions(time.Now().Add(-24 * time.Hour))
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(int64(1)))

			_, err = svc.Validate(issued.Token)
			Expect(err).To(MatchError(internal.ErrInvalidToken))
		})
	})
})
