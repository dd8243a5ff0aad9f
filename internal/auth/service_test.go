package auth_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"golang.org/x/crypto/bcrypt"

	"github.com/kidsafe/access-management/internal"
	"github.com/kidsafe/access-management/internal/auth"
)

// Mock repository for testing
type mockAuthRepository struct {
	accounts map[string]*auth.UserAccount
	byID     map[int64]*auth.UserAccount
	creds    map[int64]*auth.RefreshCredential
}

func newMockAuthRepository() *mockAuthRepository {
	return &mockAuthRepository{
		accounts: make(map[string]*auth.UserAccount),
		byID:     make(map[int64]*auth.UserAccount),
		creds:    make(map[int64]*auth.RefreshCredential),
	}
}

func (m *mockAuthRepository) addAccount(acct *auth.UserAccount) {
	m.accounts[acct.Email] = acct
	m.byID[acct.ID] = acct
}

func (m *mockAuthRepository) GetUserForLogin(email string) (*auth.UserAccount, error) {
	acct, ok := m.accounts[email]
	if !ok {
		return nil, internal.ErrUserNotFound
	}
	return acct, nil
}

func (m *mockAuthRepository) GetUserByID(userID int64) (*auth.UserAccount, error) {
	acct, ok := m.byID[userID]
	if !ok {
		return nil, internal.ErrUserNotFound
	}
	return acct, nil
}

func (m *mockAuthRepository) GetRefreshCredential(userID int64) (*auth.RefreshCredential, error) {
	cred, ok := m.creds[userID]
	if !ok {
		return nil, internal.ErrInvalidToken
	}
	return cred, nil
}

func (m *mockAuthRepository) ReplaceRefreshCredential(userID int64, secret string, expiresAt time.Time) error {
	m.creds[userID] = &auth.RefreshCredential{
		UserID:    userID,
		Secret:    secret,
		ExpiresAt: expiresAt,
		UpdatedAt: time.Now(),
	}
	return nil
}

func (m *mockAuthRepository) RotateRefreshCredential(userID int64, presented, newSecret string, expiresAt time.Time) error {
	cred, ok := m.creds[userID]
	if !ok || cred.Secret != presented || cred.ExpiresAt.Before(time.Now()) {
		return internal.ErrInvalidToken
	}
	cred.Secret = newSecret
	cred.ExpiresAt = expiresAt
	cred.UpdatedAt = time.Now()
	return nil
}

func (m *mockAuthRepository) DeleteRefreshCredential(userID int64) error {
	delete(m.creds, userID)
	return nil
}

func (m *mockAuthRepository) DeleteExpiredRefreshCredentials(now time.Time) (int64, error) {
	var n int64
	for id, cred := range m.creds {
		if cred.ExpiresAt.Before(now) {
			delete(m.creds, id)
			n++
		}
	}
	return n, nil
}

func (m *mockAuthRepository) DeleteStaleRefreshCredentials(cutoff time.Time) (int64, error) {
	var n int64
	for id, cred := range m.creds {
		if cred.UpdatedAt.Before(cutoff) {
			delete(m.creds, id)
			n++
		}
	}
	return n, nil
}

var _ = Describe("AuthService", func() {
	var (
		repo *mockAuthRepository
		svc  *auth.Service
	)

	BeforeEach(func() {
		repo = newMockAuthRepository()
		gen := auth.NewTokenGenerator(auth.NewSigner("test-secret"), time.Minute)
		svc = auth.NewService(repo, gen, bcrypt.MinCost, 7*24*time.Hour)

		hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
		Expect(err).NotTo(HaveOccurred())
		repo.addAccount(&auth.UserAccount{
			ID:           42,
			Email:        "pat@example.com",
			Name:         "Pat",
			PasswordHash: string(hash),
			IsActive:     true,
			Roles:        []string{"PARENT"},
		})
	})

	Describe("Authenticate", func() {
		It("should issue tokens and record a refresh credential", func() {
			userID, tokens, err := svc.Authenticate(auth.LoginDTO{
				Email:    "pat@example.com",
				Password: "correct-horse",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(userID).To(Equal(int64(42)))
			Expect(tokens.AccessToken).NotTo(BeEmpty())
			Expect(tokens.RefreshToken).To(HaveLen(64))
			Expect(repo.creds[42].Secret).To(Equal(tokens.RefreshToken))

			claims, err := svc.ValidateAccessToken(tokens.AccessToken)
			Expect(err).NotTo(HaveOccurred())
			Expect(claims.UserID).To(Equal(int64(42)))
			Expect(claims.Roles).To(Equal([]string{"PARENT"}))
		})

		It("should case-fold the email", func() {
			_, _, err := svc.Authenticate(auth.LoginDTO{
				Email:    "  PAT@Example.com ",
				Password: "correct-horse",
			})
			Expect(err).NotTo(HaveOccurred())
		})

		It("should reject a wrong password with the generic credential error", func() {
			_, _, err := svc.Authenticate(auth.LoginDTO{
				Email:    "pat@example.com",
				Password: "wrong",
			})
			Expect(err).To(MatchError(internal.ErrInvalidCredentials))
		})

		It("should reject an unknown email the same way", func() {
			_, _, err := svc.Authenticate(auth.LoginDTO{
				Email:    "ghost@example.com",
				Password: "correct-horse",
			})
			Expect(err).To(MatchError(internal.ErrInvalidCredentials))
		})

		It("should reject an inactive account", func() {
			repo.byID[42].IsActive = false
			_, _, err := svc.Authenticate(auth.LoginDTO{
				Email:    "pat@example.com",
				Password: "correct-horse",
			})
			Expect(err).To(MatchError(internal.ErrUserInactive))
		})

		It("should replace the previous refresh credential on re-login", func() {
			_, first, err := svc.Authenticate(auth.LoginDTO{Email: "pat@example.com", Password: "correct-horse"})
			Expect(err).NotTo(HaveOccurred())
			_, second, err := svc.Authenticate(auth.LoginDTO{Email: "pat@example.com", Password: "correct-horse"})
			Expect(err).NotTo(HaveOccurred())

			Expect(second.RefreshToken).NotTo(Equal(first.RefreshToken))
			Expect(repo.creds[42].Secret).To(Equal(second.RefreshToken))
		})
	})

	Describe("Refresh", func() {
		var issued auth.AuthTokens

		BeforeEach(func() {
			var err error
			_, issued, err = svc.Authenticate(auth.LoginDTO{Email: "pat@example.com", Password: "correct-horse"})
			Expect(err).NotTo(HaveOccurred())
		})

		It("should rotate the stored secret on success", func() {
			tokens, err := svc.Refresh(42, issued.RefreshToken)
			Expect(err).NotTo(HaveOccurred())
			Expect(tokens.RefreshToken).NotTo(Equal(issued.RefreshToken))
			Expect(repo.creds[42].Secret).To(Equal(tokens.RefreshToken))
		})

		It("should invalidate the old secret after rotation", func() {
			_, err := svc.Refresh(42, issued.RefreshToken)
			Expect(err).NotTo(HaveOccurred())

			_, err = svc.Refresh(42, issued.RefreshToken)
			Expect(err).To(MatchError(internal.ErrInvalidToken))
		})

		It("should never mutate stored state on a wrong candidate", func() {
			before := repo.creds[42].Secret

			_, err := svc.Refresh(42, "wrong-secret")
			Expect(err).To(MatchError(internal.ErrInvalidToken))
			Expect(repo.creds[42].Secret).To(Equal(before))

			// the real secret still rotates cleanly afterwards
			_, err = svc.Refresh(42, before)
			Expect(err).NotTo(HaveOccurred())
		})

		It("should reject an expired credential without rotating", func() {
			repo.creds[42].ExpiresAt = time.Now().Add(-time.Minute)
			before := repo.creds[42].Secret

			_, err := svc.Refresh(42, issued.RefreshToken)
			Expect(err).To(MatchError(internal.ErrTokenExpired))
			Expect(repo.creds[42].Secret).To(Equal(before))
		})

		It("should reject a user with no stored credential", func() {
			_, err := svc.Refresh(99, "anything")
			Expect(err).To(MatchError(internal.ErrInvalidToken))
		})

		It("should reject an account deactivated since login", func() {
			repo.byID[42].IsActive = false
			_, err := svc.Refresh(42, issued.RefreshToken)
			Expect(err).To(MatchError(internal.ErrUserInactive))
		})
	})

	Describe("Logout", func() {
		It("should drop the refresh credential", func() {
			_, issued, err := svc.Authenticate(auth.LoginDTO{Email: "pat@example.com", Password: "correct-horse"})
			Expect(err).NotTo(HaveOccurred())

			Expect(svc.Logout(42)).To(Succeed())

			_, err = svc.Refresh(42, issued.RefreshToken)
			Expect(err).To(MatchError(internal.ErrInvalidToken))
		})
	})

	Describe("Sweeps", func() {
		It("should delete expired refresh credentials", func() {
			_, _, err := svc.Authenticate(auth.LoginDTO{Email: "pat@example.com", Password: "correct-horse"})
			Expect(err).NotTo(HaveOccurred())
			repo.creds[42].ExpiresAt = time.Now().Add(-time.Hour)

			n, err := svc.SweepExpiredRefreshCredentials(time.Now())
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(int64(1)))
		})

		It("should delete credentials not rotated since the cutoff", func() {
			_, _, err := svc.Authenticate(auth.LoginDTO{Email: "pat@example.com", Password: "correct-horse"})
			Expect(err).NotTo(HaveOccurred())
			repo.creds[42].UpdatedAt = time.Now().Add(-60 * 24 * time.Hour)

			n, err := svc.SweepStaleRefreshCredentials(time.Now().Add(-30 * 24 * time.Hour))
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(int64(1)))
		})
	})
})
