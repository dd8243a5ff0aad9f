package authorization_test

import (
	"context"
	"log/slog"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/kidsafe/access-management/internal"
	"github.com/kidsafe/access-management/internal/authorization"
	"github.com/kidsafe/access-management/internal/core/events"
)

// Mock repository for testing
type mockGrantRepository struct {
	children map[int64]bool
	roles    map[int64][]string
	grants   map[int64][]*authorization.Grant
	nextID   int64

	loadError   error
	createError error
	saveError   error
}

func newMockGrantRepository() *mockGrantRepository {
	return &mockGrantRepository{
		children: make(map[int64]bool),
		roles:    make(map[int64][]string),
		grants:   make(map[int64][]*authorization.Grant),
		nextID:   1,
	}
}

func (m *mockGrantRepository) ChildExists(childID int64) error {
	if !m.children[childID] {
		return internal.ErrChildNotFound
	}
	return nil
}

func (m *mockGrantRepository) LoadGrants(childID int64) ([]*authorization.Grant, error) {
	if m.loadError != nil {
		return nil, m.loadError
	}
	return m.grants[childID], nil
}

func (m *mockGrantRepository) GetUserRoles(userID int64) ([]string, error) {
	roles, ok := m.roles[userID]
	if !ok {
		return nil, internal.ErrUserNotFound
	}
	return roles, nil
}

func (m *mockGrantRepository) CreateGrant(g *authorization.Grant) error {
	if m.createError != nil {
		return m.createError
	}
	g.ID = m.nextID
	m.nextID++
	m.grants[g.ChildID] = append(m.grants[g.ChildID], g)
	return nil
}

func (m *mockGrantRepository) DeleteGrant(grantID int64) error {
	for childID, grants := range m.grants {
		for i, g := range grants {
			if g.ID == grantID {
				m.grants[childID] = append(grants[:i], grants[i+1:]...)
				return nil
			}
		}
	}
	return internal.ErrGrantNotFound
}

func (m *mockGrantRepository) SaveGrants(grants []*authorization.Grant) error {
	return m.saveError
}

var _ = Describe("Service", func() {
	var (
		repo *mockGrantRepository
		svc  *authorization.Service
		ctx  context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		repo = newMockGrantRepository()
		repo.children[1] = true
		repo.roles[10] = []string{"PARENT"}
		repo.roles[20] = []string{"PARENT"}
		repo.roles[30] = []string{"THERAPIST"}

		lg := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
		svc = authorization.NewService(repo, events.NewEventBus(lg), lg)
	})

	Describe("AddGrant", func() {
		It("should persist a primary grant for a parent", func() {
			// Given an empty grant set
			// When the first parent is granted primary guardianship
			grant, err := svc.AddGrant(ctx, 1, authorization.AddGrantDTO{
				UserID:    10,
				IsPrimary: true,
			}, 10)

			// Then the grant is saved with the child's id
			Expect(err).NotTo(HaveOccurred())
			Expect(grant.ID).To(BeNumerically(">", 0))
			Expect(grant.ChildID).To(Equal(int64(1)))
			Expect(grant.IsActive).To(BeTrue())
		})

		It("should reject a second primary guardian", func() {
			_, err := svc.AddGrant(ctx, 1, authorization.AddGrantDTO{UserID: 10, IsPrimary: true}, 10)
			Expect(err).NotTo(HaveOccurred())

			_, err = svc.AddGrant(ctx, 1, authorization.AddGrantDTO{UserID: 20, IsPrimary: true}, 10)
			Expect(err).To(MatchError(authorization.ErrPrimaryExists))
			Expect(repo.grants[1]).To(HaveLen(1))
		})

		It("should reject a primary grant for a non-parent", func() {
			_, err := svc.AddGrant(ctx, 1, authorization.AddGrantDTO{UserID: 30, IsPrimary: true}, 10)
			Expect(err).To(MatchError(authorization.ErrRoleMismatch))
		})

		It("should fail for an unknown child", func() {
			_, err := svc.AddGrant(ctx, 99, authorization.AddGrantDTO{UserID: 10}, 10)
			Expect(err).To(MatchError(internal.ErrChildNotFound))
		})

		It("should fail for an unknown grantee", func() {
			_, err := svc.AddGrant(ctx, 1, authorization.AddGrantDTO{UserID: 99}, 10)
			Expect(err).To(MatchError(internal.ErrUserNotFound))
		})

		It("should reject an unknown permission name", func() {
			_, err := svc.AddGrant(ctx, 1, authorization.AddGrantDTO{
				UserID:      30,
				Permissions: []string{"FLY_DRONE"},
			}, 10)
			Expect(err).To(HaveOccurred())
			Expect(repo.grants[1]).To(BeEmpty())
		})
	})

	Describe("RemoveGrant", func() {
		BeforeEach(func() {
			_, err := svc.AddGrant(ctx, 1, authorization.AddGrantDTO{UserID: 10, IsPrimary: true}, 10)
			Expect(err).NotTo(HaveOccurred())
			_, err = svc.AddGrant(ctx, 1, authorization.AddGrantDTO{
				UserID:      30,
				Permissions: []string{"VIEW_REPORT"},
			}, 10)
			Expect(err).NotTo(HaveOccurred())
		})

		It("should remove a non-primary grant", func() {
			Expect(svc.RemoveGrant(ctx, 1, 2)).To(Succeed())
			Expect(repo.grants[1]).To(HaveLen(1))
		})

		It("should refuse to remove the primary grant", func() {
			err := svc.RemoveGrant(ctx, 1, 1)
			Expect(err).To(MatchError(authorization.ErrPrimaryNotRemovable))
			Expect(repo.grants[1]).To(HaveLen(2))
		})

		It("should fail for an unknown grant id", func() {
			Expect(svc.RemoveGrant(ctx, 1, 99)).To(MatchError(internal.ErrGrantNotFound))
		})
	})

	Describe("TransferPrimary", func() {
		BeforeEach(func() {
			_, err := svc.AddGrant(ctx, 1, authorization.AddGrantDTO{UserID: 10, IsPrimary: true}, 10)
			Expect(err).NotTo(HaveOccurred())
			_, err = svc.AddGrant(ctx, 1, authorization.AddGrantDTO{
				UserID:      20,
				Permissions: []string{"PLAY_GAME"},
			}, 10)
			Expect(err).NotTo(HaveOccurred())
		})

		It("should move guardianship to another parent grant holder", func() {
			Expect(svc.TransferPrimary(ctx, 1, 20)).To(Succeed())

			isPrimary, err := svc.IsPrimaryParent(1, 20)
			Expect(err).NotTo(HaveOccurred())
			Expect(isPrimary).To(BeTrue())

			wasPrimary, err := svc.IsPrimaryParent(1, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(wasPrimary).To(BeFalse())
		})

		It("should fail when the target is not a parent", func() {
			_, err := svc.AddGrant(ctx, 1, authorization.AddGrantDTO{
				UserID:      30,
				Permissions: []string{"VIEW_REPORT"},
			}, 10)
			Expect(err).NotTo(HaveOccurred())

			Expect(svc.TransferPrimary(ctx, 1, 30)).To(MatchError(authorization.ErrRoleMismatch))
		})

		It("should fail when the target has no grant at all", func() {
			Expect(svc.TransferPrimary(ctx, 1, 20+1)).To(HaveOccurred())
		})
	})

	Describe("HasPermission", func() {
		BeforeEach(func() {
			_, err := svc.AddGrant(ctx, 1, authorization.AddGrantDTO{UserID: 10, IsPrimary: true}, 10)
			Expect(err).NotTo(HaveOccurred())
			_, err = svc.AddGrant(ctx, 1, authorization.AddGrantDTO{
				UserID:      30,
				Permissions: []string{"VIEW_REPORT", "WRITE_NOTE"},
			}, 10)
			Expect(err).NotTo(HaveOccurred())
		})

		It("should grant the primary every permission", func() {
			ok, err := svc.HasPermission(1, 10, authorization.PermissionManage)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
		})

		It("should check the stored set for others", func() {
			ok, err := svc.HasPermission(1, 30, authorization.PermissionViewReport)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())

			ok, err = svc.HasPermission(1, 30, authorization.PermissionAssignMission)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
		})
	})

	Describe("ListGrants", func() {
		It("should fail for an unknown child", func() {
			_, err := svc.ListGrants(99)
			Expect(err).To(MatchError(internal.ErrChildNotFound))
		})

		It("should return the child's grant set", func() {
			_, err := svc.AddGrant(ctx, 1, authorization.AddGrantDTO{UserID: 10, IsPrimary: true}, 10)
			Expect(err).NotTo(HaveOccurred())

			grants, err := svc.ListGrants(1)
			Expect(err).NotTo(HaveOccurred())
			Expect(grants).To(HaveLen(1))
		})
	})
})
