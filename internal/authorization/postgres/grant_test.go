package postgres

import (
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kidsafe/access-management/internal"
	"github.com/kidsafe/access-management/internal/authorization"
)

func TestGrantRepository(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "GrantRepository Suite")
}

type SQLiteChild struct {
	ID        int64      `gorm:"primaryKey"`
	Name      string     `gorm:"column:name;not null"`
	PinHash   string     `gorm:"column:pin_hash"`
	IsDeleted bool       `gorm:"column:is_deleted;default:false"`
	DeletedAt *time.Time `gorm:"column:deleted_at"`
	CreatedAt time.Time  `gorm:"column:created_at"`
	UpdatedAt time.Time  `gorm:"column:updated_at"`
}

func (SQLiteChild) TableName() string {
	return "children"
}

type SQLiteAuthorizedUser struct {
	ID          int64     `gorm:"primaryKey"`
	ChildID     int64     `gorm:"column:child_id;not null;uniqueIndex:idx_child_user"`
	UserID      int64     `gorm:"column:user_id;not null;uniqueIndex:idx_child_user"`
	Permissions string    `gorm:"column:permissions"`
	IsPrimary   bool      `gorm:"column:is_primary;default:false"`
	GrantedBy   int64     `gorm:"column:granted_by"`
	IsActive    bool      `gorm:"column:is_active;default:true"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

func (SQLiteAuthorizedUser) TableName() string {
	return "child_authorized_users"
}

type SQLiteUser struct {
	ID    int64  `gorm:"primaryKey"`
	Email string `gorm:"column:email"`
}

func (SQLiteUser) TableName() string {
	return "users"
}

type SQLiteRole struct {
	ID   int64  `gorm:"primaryKey"`
	Name string `gorm:"column:name"`
}

func (SQLiteRole) TableName() string {
	return "roles"
}

type SQLiteUserRole struct {
	UserID int64 `gorm:"column:user_id"`
	RoleID int64 `gorm:"column:role_id"`
}

func (SQLiteUserRole) TableName() string {
	return "user_roles"
}

var _ = Describe("GrantRepository", func() {
	var (
		db   *gorm.DB
		repo *Repository
	)

	BeforeEach(func() {
		var err error

		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
		Expect(err).NotTo(HaveOccurred())

		err = db.AutoMigrate(&SQLiteChild{}, &SQLiteAuthorizedUser{}, &SQLiteUser{}, &SQLiteRole{}, &SQLiteUserRole{})
		Expect(err).NotTo(HaveOccurred())

		repo = NewRepository(db)

		Expect(db.Create(&SQLiteChild{ID: 1, Name: "Mika"}).Error).To(Succeed())
		Expect(db.Create(&SQLiteUser{ID: 10, Email: "parent@example.com"}).Error).To(Succeed())
		Expect(db.Create(&SQLiteRole{ID: 1, Name: "PARENT"}).Error).To(Succeed())
		Expect(db.Create(&SQLiteUserRole{UserID: 10, RoleID: 1}).Error).To(Succeed())
	})

	AfterEach(func() {
		sqlDB, err := db.DB()
		Expect(err).NotTo(HaveOccurred())
		Expect(sqlDB.Close()).To(Succeed())
	})

	Describe("ChildExists", func() {
		It("should find an existing child", func() {
			Expect(repo.ChildExists(1)).To(Succeed())
		})

		It("should not find an unknown child", func() {
			Expect(repo.ChildExists(99)).To(MatchError(internal.ErrChildNotFound))
		})

		It("should treat a soft-deleted child as absent", func() {
			now := time.Now()
			Expect(db.Model(&SQLiteChild{}).Where("id = ?", 1).
				Updates(map[string]interface{}{"is_deleted": true, "deleted_at": now}).Error).To(Succeed())

			Expect(repo.ChildExists(1)).To(MatchError(internal.ErrChildNotFound))
		})
	})

	Describe("GetUserRoles", func() {
		It("should return the user's role names", func() {
			roles, err := repo.GetUserRoles(10)
			Expect(err).NotTo(HaveOccurred())
			Expect(roles).To(ConsistOf("PARENT"))
		})

		It("should fail for an unknown user", func() {
			_, err := repo.GetUserRoles(99)
			Expect(err).To(MatchError(internal.ErrUserNotFound))
		})
	})

	Describe("CreateGrant and LoadGrants", func() {
		It("should round-trip a grant with its permission set", func() {
			g := &authorization.Grant{
				ChildID:     1,
				UserID:      10,
				Permissions: []authorization.Permission{authorization.PermissionPlayGame, authorization.PermissionViewReport},
				IsPrimary:   false,
				GrantedBy:   10,
				IsActive:    true,
			}
			Expect(repo.CreateGrant(g)).To(Succeed())
			Expect(g.ID).To(BeNumerically(">", 0))

			grants, err := repo.LoadGrants(1)
			Expect(err).NotTo(HaveOccurred())
			Expect(grants).To(HaveLen(1))
			Expect(grants[0].UserID).To(Equal(int64(10)))
			Expect(grants[0].Permissions).To(Equal(g.Permissions))
		})
	})

	Describe("DeleteGrant", func() {
		It("should delete an existing grant", func() {
			g := &authorization.Grant{ChildID: 1, UserID: 10, IsActive: true}
			Expect(repo.CreateGrant(g)).To(Succeed())

			Expect(repo.DeleteGrant(g.ID)).To(Succeed())

			grants, err := repo.LoadGrants(1)
			Expect(err).NotTo(HaveOccurred())
			Expect(grants).To(BeEmpty())
		})

		It("should fail for an unknown grant id", func() {
			Expect(repo.DeleteGrant(99)).To(MatchError(internal.ErrGrantNotFound))
		})
	})

	Describe("SaveGrants", func() {
		It("should persist a primary transfer atomically", func() {
			oldPrimary := &authorization.Grant{ChildID: 1, UserID: 10, IsPrimary: true, IsActive: true}
			target := &authorization.Grant{ChildID: 1, UserID: 20, IsActive: true}
			Expect(repo.CreateGrant(oldPrimary)).To(Succeed())
			Expect(repo.CreateGrant(target)).To(Succeed())

			oldPrimary.IsPrimary = false
			target.IsPrimary = true
			target.Permissions = authorization.AllPermissions()

			Expect(repo.SaveGrants([]*authorization.Grant{oldPrimary, target})).To(Succeed())

			grants, err := repo.LoadGrants(1)
			Expect(err).NotTo(HaveOccurred())

			var primaries int
			for _, g := range grants {
				if g.IsPrimary {
					primaries++
					Expect(g.UserID).To(Equal(int64(20)))
					Expect(g.Permissions).To(Equal(authorization.AllPermissions()))
				}
			}
			Expect(primaries).To(Equal(1))
		})

		It("should fail when a grant row is missing", func() {
			ghost := &authorization.Grant{ID: 99, ChildID: 1, UserID: 10}
			Expect(repo.SaveGrants([]*authorization.Grant{ghost})).To(MatchError(internal.ErrGrantNotFound))
		})
	})

	Describe("DeactivateGrantsForChild", func() {
		It("should flip every active grant inactive", func() {
			Expect(repo.CreateGrant(&authorization.Grant{ChildID: 1, UserID: 10, IsActive: true})).To(Succeed())
			Expect(repo.CreateGrant(&authorization.Grant{ChildID: 1, UserID: 20, IsActive: true})).To(Succeed())

			n, err := repo.DeactivateGrantsForChild(1)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(int64(2)))

			grants, err := repo.LoadGrants(1)
			Expect(err).NotTo(HaveOccurred())
			for _, g := range grants {
				Expect(g.IsActive).To(BeFalse())
			}
		})
	})
})
