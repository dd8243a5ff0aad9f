package child_test

import (
	"context"
	"log/slog"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kidsafe/access-management/internal"
	"github.com/kidsafe/access-management/internal/authorization"
	"github.com/kidsafe/access-management/internal/child"
)

// Mock repository for testing
type mockChildRepository struct {
	children map[int64]*child.Child
	nextID   int64
}

func newMockChildRepository() *mockChildRepository {
	return &mockChildRepository{
		children: make(map[int64]*child.Child),
		nextID:   1,
	}
}

func (m *mockChildRepository) Create(c *child.Child) error {
	c.ID = m.nextID
	m.nextID++
	c.CreatedAt = time.Now()
	m.children[c.ID] = c
	return nil
}

func (m *mockChildRepository) GetByID(id int64) (*child.Child, error) {
	c, ok := m.children[id]
	if !ok || c.IsDeleted {
		return nil, internal.ErrChildNotFound
	}
	return c, nil
}

func (m *mockChildRepository) Update(c *child.Child) error {
	m.children[c.ID] = c
	return nil
}

func (m *mockChildRepository) SoftDelete(id int64, at time.Time) error {
	c, ok := m.children[id]
	if !ok || c.IsDeleted {
		return internal.ErrChildNotFound
	}
	c.IsDeleted = true
	c.DeletedAt = &at
	return nil
}

func (m *mockChildRepository) ListForUser(userID int64) ([]*child.Child, error) {
	var out []*child.Child
	for _, c := range m.children {
		if !c.IsDeleted {
			out = append(out, c)
		}
	}
	return out, nil
}

type mockGranter struct {
	calls []authorization.AddGrantDTO
	err   error
}

func (m *mockGranter) AddGrant(ctx context.Context, childID int64, dto authorization.AddGrantDTO, grantedBy int64) (*authorization.Grant, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.calls = append(m.calls, dto)
	return &authorization.Grant{ID: 1, ChildID: childID, UserID: dto.UserID, IsPrimary: dto.IsPrimary, IsActive: true}, nil
}

type mockCascade struct {
	grantsDeactivated  int64
	sessionsTerminated int64
	calledChildIDs     []int64
}

func (m *mockCascade) DeactivateGrantsForChild(childID int64) (int64, error) {
	m.calledChildIDs = append(m.calledChildIDs, childID)
	return m.grantsDeactivated, nil
}

func (m *mockCascade) TerminateSessionsForChild(childID int64) (int64, error) {
	return m.sessionsTerminated, nil
}

var _ = Describe("ChildService", func() {
	var (
		repo    *mockChildRepository
		granter *mockGranter
		cascade *mockCascade
		svc     *child.Service
		ctx     context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		repo = newMockChildRepository()
		granter = &mockGranter{}
		cascade = &mockCascade{grantsDeactivated: 2, sessionsTerminated: 1}

		lg := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
		svc = child.NewService(repo, granter, cascade, cascade, child.NewBcryptHasher(4), lg)
	})

	Describe("CreateChild", func() {
		It("should create the child and make the creator primary guardian", func() {
			c, err := svc.CreateChild(ctx, child.CreateChildDTO{Name: "Mika"}, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(c.ID).To(BeNumerically(">", 0))

			Expect(granter.calls).To(HaveLen(1))
			Expect(granter.calls[0].UserID).To(Equal(int64(10)))
			Expect(granter.calls[0].IsPrimary).To(BeTrue())
		})

		It("should reject an empty name", func() {
			_, err := svc.CreateChild(ctx, child.CreateChildDTO{}, 10)
			Expect(err).To(HaveOccurred())
			Expect(granter.calls).To(BeEmpty())
		})
	})

	Describe("DeleteChild", func() {
		var childID int64

		BeforeEach(func() {
			c, err := svc.CreateChild(ctx, child.CreateChildDTO{Name: "Mika"}, 10)
			Expect(err).NotTo(HaveOccurred())
			childID = c.ID
		})

		It("should soft-delete and cascade to grants and sessions", func() {
			Expect(svc.DeleteChild(ctx, childID)).To(Succeed())

			_, err := svc.GetChild(childID)
			Expect(err).To(MatchError(internal.ErrChildNotFound))
			Expect(cascade.calledChildIDs).To(ContainElement(childID))
		})

		It("should fail for an unknown child", func() {
			Expect(svc.DeleteChild(ctx, 99)).To(MatchError(internal.ErrChildNotFound))
		})
	})

	Describe("PIN management", func() {
		var childID int64

		BeforeEach(func() {
			c, err := svc.CreateChild(ctx, child.CreateChildDTO{Name: "Mika"}, 10)
			Expect(err).NotTo(HaveOccurred())
			childID = c.ID
		})

		It("should set and verify a PIN", func() {
			Expect(svc.SetPin(childID, child.SetPinDTO{Pin: "1234"})).To(Succeed())

			ok, err := svc.VerifyPin(childID, "1234")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())

			ok, err = svc.VerifyPin(childID, "0000")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
		})

		It("should reject a non-numeric PIN", func() {
			Expect(svc.SetPin(childID, child.SetPinDTO{Pin: "abcd"})).To(HaveOccurred())
		})

		It("should not verify after the PIN is disabled", func() {
			Expect(svc.SetPin(childID, child.SetPinDTO{Pin: "1234"})).To(Succeed())
			Expect(svc.DisablePin(childID)).To(Succeed())

			ok, err := svc.VerifyPin(childID, "1234")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
		})

		It("should fail to enable a PIN that was never set", func() {
			Expect(svc.EnablePin(childID)).To(MatchError(child.ErrPinNotConfigured))
		})

		It("should fail for an unknown child", func() {
			_, err := svc.VerifyPin(99, "1234")
			Expect(err).To(MatchError(internal.ErrChildNotFound))
		})
	})
})
