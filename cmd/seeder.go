package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with sample data for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		sqlDB, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}

		db, err := initGorm(sqlDB)
		if err != nil {
			log.Fatalf("failed to init gorm: %v", err)
		}

		if clearData {
			for _, table := range []string{"game_sessions", "child_authorized_users", "children", "refresh_credentials", "user_roles", "users", "roles"} {
				if err := db.Exec("DELETE FROM " + table).Error; err != nil {
					log.Fatalf("failed to clear %s: %v", table, err)
				}
			}
			fmt.Println("Cleared existing data")
		}

		password := "password"
		hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

		roles := []struct {
			Name string
			Desc string
		}{
			{"PENDING", "Registered, awaiting a real role"},
			{"PARENT", "Guardian of one or more children"},
			{"THERAPIST", "Assigned therapist"},
			{"TEACHER", "Assigned teacher"},
			{"ADMIN", "Full administrator"},
		}

		for _, r := range roles {
			var exists int
			row := db.Raw("SELECT 1 FROM roles WHERE name = ?", r.Name).Row()
			if err := row.Scan(&exists); err != nil {
				if err := db.Exec("INSERT INTO roles (name, description, created_at) VALUES (?, ?, now())", r.Name, r.Desc).Error; err != nil {
					log.Fatalf("failed to insert role %s: %v", r.Name, err)
				}
				fmt.Printf("Seeded role: %s\n", r.Name)
			}
		}

		parentEmail := "dina@mail.com"
		parentName := "Dina"
		var exists int
		row := db.Raw("SELECT 1 FROM users WHERE email = ?", parentEmail).Row()
		parentExists := false
		if err := row.Scan(&exists); err == nil {
			fmt.Println("parent user already exists; will ensure roles")
			parentExists = true
		}

		if !parentExists {
			if err := db.Exec("INSERT INTO users (email, name, password_hash, is_active, created_at, updated_at) VALUES (?, ?, ?, true, now(), now())", parentEmail, parentName, string(hash)).Error; err != nil {
				log.Fatalf("failed to insert parent user: %v", err)
			}
			fmt.Println("Seeded parent user:", parentEmail)
		}

		adminEmail := "admin@mail.com"
		adminName := "Site Admin"
		row = db.Raw("SELECT 1 FROM users WHERE email = ?", adminEmail).Row()
		adminExists := false
		if err := row.Scan(&exists); err == nil {
			fmt.Println("admin user already exists; will ensure roles")
			adminExists = true
		}

		if !adminExists {
			if err := db.Exec("INSERT INTO users (email, name, password_hash, is_active, created_at, updated_at) VALUES (?, ?, ?, true, now(), now())", adminEmail, adminName, string(hash)).Error; err != nil {
				log.Fatalf("failed to insert admin user: %v", err)
			}
			fmt.Println("Seeded admin user:", adminEmail)
		}

		var parentUserID, adminUserID int64
		if err := db.Raw("SELECT id FROM users WHERE email = ?", parentEmail).Row().Scan(&parentUserID); err != nil {
			log.Fatalf("failed to lookup parent user id: %v", err)
		}
		if err := db.Raw("SELECT id FROM users WHERE email = ?", adminEmail).Row().Scan(&adminUserID); err != nil {
			log.Fatalf("failed to lookup admin user id: %v", err)
		}

		assignRole := func(userID int64, roleName string) {
			var rid int64
			if err := db.Raw("SELECT id FROM roles WHERE name = ?", roleName).Row().Scan(&rid); err != nil {
				log.Fatalf("role not found %s: %v", roleName, err)
			}
			var exists int
			if err := db.Raw("SELECT 1 FROM user_roles WHERE user_id = ? AND role_id = ?", userID, rid).Row().Scan(&exists); err == nil {
				return
			}
			if err := db.Exec("INSERT INTO user_roles (user_id, role_id, created_at) VALUES (?, ?, now())", userID, rid).Error; err != nil {
				log.Fatalf("failed to assign role %s: %v", roleName, err)
			}
		}

		assignRole(parentUserID, "PARENT")
		assignRole(adminUserID, "ADMIN")
		fmt.Println("Assigned PARENT to", parentEmail, "and ADMIN to", adminEmail)

		childName := "Alya"
		var childID int64
		if err := db.Raw("SELECT id FROM children WHERE name = ? AND is_deleted = false", childName).Row().Scan(&childID); err != nil {
			if err := db.Exec("INSERT INTO children (name, avatar_emoji, pin_enabled, is_deleted, created_at, updated_at) VALUES (?, '🦊', false, false, now(), now())", childName).Error; err != nil {
				log.Fatalf("failed to insert sample child: %v", err)
			}
			if err := db.Raw("SELECT id FROM children WHERE name = ? AND is_deleted = false", childName).Row().Scan(&childID); err != nil {
				log.Fatalf("failed to lookup sample child id: %v", err)
			}
			fmt.Println("Seeded sample child:", childName)
		}

		if err := db.Raw("SELECT 1 FROM child_authorized_users WHERE child_id = ? AND user_id = ?", childID, parentUserID).Row().Scan(&exists); err != nil {
			if err := db.Exec("INSERT INTO child_authorized_users (child_id, user_id, permissions, is_primary, is_active, granted_by, created_at, updated_at) VALUES (?, ?, ?, true, true, ?, now(), now())",
				childID, parentUserID, "PLAY_GAME,VIEW_REPORT,WRITE_NOTE,ASSIGN_MISSION,MANAGE", parentUserID).Error; err != nil {
				log.Fatalf("failed to insert primary grant: %v", err)
			}
			fmt.Println("Granted primary guardianship of", childName, "to", parentEmail)
		}

		fmt.Println("Seeding complete")
	},
}
