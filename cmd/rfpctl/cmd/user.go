package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/keen-violet-ibis/rfphub/internal/api/auth"
	"github.com/keen-violet-ibis/rfphub/internal/models"
	"github.com/keen-violet-ibis/rfphub/internal/storage"
)

var (
	userEmail string
	userName  string
	userRole  string
)

// userCmd represents the user command group
var userCmd = &cobra.Command{
	Use:   "user",
	Short: "User management commands",
	Long: `Commands for managing RFPHub users.

These commands operate directly on the database file and are intended
for system administrators to manage users outside of the HTTP API.

Examples:
  # List all users
  rfpctl user list

  # Create an admin user
  rfpctl user create --email admin@example.com --name "Site Admin" --role admin

  # Change a user's password
  rfpctl user passwd --email admin@example.com`,
}

// userListCmd lists all users
var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all users",
	Long: `List all users in the database.

Displays email, name, role, and company linkage for each user.
Passwords are never displayed.

Example:
  rfpctl user list`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openDatabase(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()
		userList, err := store.Users().List(ctx)
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}

		if len(userList) == 0 {
			fmt.Println("No users found.")
			return nil
		}

		fmt.Printf("\n%-36s  %-30s  %-24s  %-16s  %s\n",
			"ID", "EMAIL", "NAME", "ROLE", "COMPANY")
		fmt.Println(strings.Repeat("-", 120))

		for _, u := range userList {
			company := u.CompanyID
			if company == "" && u.CompanyName != "" {
				company = u.CompanyName + " (unlinked)"
			}
			fmt.Printf("%-36s  %-30s  %-24s  %-16s  %s\n",
				u.ID,
				u.Email,
				u.FullName,
				u.Role,
				company,
			)
		}
		fmt.Printf("\nTotal: %d user(s)\n", len(userList))

		return nil
	},
}

// userCreateCmd creates a new user
var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new user",
	Long: `Create a new user in the database.

The password will be prompted interactively for security reasons
(to avoid exposing it in shell history).

Available roles:
  - admin: full control of RFPs, grants, and users
  - client_reviewer: reads confidential RFPs via access grants
  - bidder: reads public RFPs, signs NDAs, asks questions

Example:
  rfpctl user create --email jo@example.com --name "Jo Field" --role bidder`,
	RunE: func(cmd *cobra.Command, args []string) error {
		userEmail = strings.ToLower(strings.TrimSpace(userEmail))
		if userEmail == "" || !strings.Contains(userEmail, "@") {
			return fmt.Errorf("--email is required and must be a valid address")
		}
		if strings.TrimSpace(userName) == "" {
			return fmt.Errorf("--name is required")
		}
		if !models.ValidRole(userRole) {
			return fmt.Errorf("invalid role %q: use admin, client_reviewer, or bidder", userRole)
		}

		password, err := promptPassword("Enter password: ")
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		if err := auth.ValidatePassword(password); err != nil {
			return fmt.Errorf("invalid password: %w", err)
		}

		confirmPassword, err := promptPassword("Confirm password: ")
		if err != nil {
			return fmt.Errorf("read password confirmation: %w", err)
		}
		if password != confirmPassword {
			return fmt.Errorf("passwords do not match")
		}

		store, err := openDatabase(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()

		existing, err := store.Users().GetByEmail(ctx, userEmail)
		if err != nil {
			return fmt.Errorf("check email: %w", err)
		}
		if existing != nil {
			return fmt.Errorf("email '%s' already exists", userEmail)
		}

		hash, err := auth.HashPassword(password)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}

		user := models.NewUser(userEmail, strings.TrimSpace(userName), models.Role(userRole))
		user.ID = uuid.New().String()
		user.PasswordHash = hash

		if err := store.Users().Create(ctx, user); err != nil {
			return fmt.Errorf("create user: %w", err)
		}

		fmt.Printf("\nUser created successfully:\n")
		fmt.Printf("  ID:    %s\n", user.ID)
		fmt.Printf("  Email: %s\n", user.Email)
		fmt.Printf("  Name:  %s\n", user.FullName)
		fmt.Printf("  Role:  %s\n", user.Role)

		return nil
	},
}

// userPasswdCmd changes a user's password
var userPasswdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Change a user's password",
	Long: `Change the password for an existing user.

The new password will be prompted interactively for security reasons
(to avoid exposing it in shell history).

Example:
  rfpctl user passwd --email admin@example.com`,
	RunE: func(cmd *cobra.Command, args []string) error {
		userEmail = strings.ToLower(strings.TrimSpace(userEmail))
		if userEmail == "" {
			return fmt.Errorf("--email is required")
		}

		store, err := openDatabase(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()

		user, err := store.Users().GetByEmail(ctx, userEmail)
		if err != nil {
			return fmt.Errorf("find user: %w", err)
		}
		if user == nil {
			return fmt.Errorf("user '%s' not found", userEmail)
		}

		password, err := promptPassword("Enter new password: ")
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		if err := auth.ValidatePassword(password); err != nil {
			return fmt.Errorf("invalid password: %w", err)
		}

		confirmPassword, err := promptPassword("Confirm new password: ")
		if err != nil {
			return fmt.Errorf("read password confirmation: %w", err)
		}
		if password != confirmPassword {
			return fmt.Errorf("passwords do not match")
		}

		hash, err := auth.HashPassword(password)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		user.PasswordHash = hash

		if err := store.Users().Update(ctx, user); err != nil {
			return fmt.Errorf("update user: %w", err)
		}

		fmt.Printf("Password updated for %s\n", user.Email)
		return nil
	},
}

// userRoleCmd changes a user's role
var userRoleCmd = &cobra.Command{
	Use:   "role",
	Short: "Change a user's role",
	Long: `Change the role of an existing user and sync the role claim
store so the next issued token carries the new role.

Example:
  rfpctl user role --email jo@example.com --role client_reviewer`,
	RunE: func(cmd *cobra.Command, args []string) error {
		userEmail = strings.ToLower(strings.TrimSpace(userEmail))
		if userEmail == "" {
			return fmt.Errorf("--email is required")
		}
		if !models.ValidRole(userRole) {
			return fmt.Errorf("invalid role %q: use admin, client_reviewer, or bidder", userRole)
		}

		store, err := openDatabase(dbPath)
		if err != nil {
			return err
		}
		defer store.Close()

		ctx := context.Background()

		user, err := store.Users().GetByEmail(ctx, userEmail)
		if err != nil {
			return fmt.Errorf("find user: %w", err)
		}
		if user == nil {
			return fmt.Errorf("user '%s' not found", userEmail)
		}

		if err := store.Users().UpdateRole(ctx, user.ID, models.Role(userRole)); err != nil {
			return fmt.Errorf("update role: %w", err)
		}
		if err := syncRoleClaim(ctx, store, user.ID); err != nil {
			return fmt.Errorf("sync role claim: %w", err)
		}

		fmt.Printf("Role of %s set to %s\n", user.Email, userRole)
		return nil
	},
}

func init() {
	userCmd.PersistentFlags().StringVar(&userEmail, "email", "", "user email address")
	userCreateCmd.Flags().StringVar(&userName, "name", "", "user full name")
	userCreateCmd.Flags().StringVar(&userRole, "role", "bidder", "user role (admin, client_reviewer, bidder)")
	userRoleCmd.Flags().StringVar(&userRole, "role", "", "new role (admin, client_reviewer, bidder)")

	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userCreateCmd)
	userCmd.AddCommand(userPasswdCmd)
	userCmd.AddCommand(userRoleCmd)
	rootCmd.AddCommand(userCmd)
}

// openDatabase opens an existing database file.
func openDatabase(path string) (*storage.SQLiteStorage, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("database file not found: %s", path)
	}

	store := storage.NewSQLiteStorage(path)
	if err := store.Open(); err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	return store, nil
}

// promptPassword prompts for a password without echoing to the terminal.
func promptPassword(prompt string) (string, error) {
	fmt.Print(prompt)

	fd := syscall.Stdin
	if term.IsTerminal(fd) {
		passwordBytes, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", err
		}
		return string(passwordBytes), nil
	}

	// Fallback for non-terminal input (e.g., piped input)
	reader := bufio.NewReader(os.Stdin)
	password, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(password), nil
}
