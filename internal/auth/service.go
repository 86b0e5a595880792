package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/bookhive/internal/config"
	"github.com/mrlokans/bookhive/internal/database/users"
	"github.com/mrlokans/bookhive/internal/entities"
)

var (
	ErrMissingFields           = errors.New("all fields are required")
	ErrPasswordMismatch        = errors.New("passwords do not match")
	ErrEmailTaken              = errors.New("email already registered")
	ErrInvalidCredentials      = errors.New("invalid email or password")
	ErrInvalidAdminCredentials = errors.New("invalid admin credentials")
	ErrAdminLoginRequired      = errors.New("admin email must sign in as admin")
	ErrUserNotFound            = errors.New("user not found")
	ErrInvalidRole             = errors.New("invalid role")
)

// Service handles account registration, credential checks and admin elevation.
type Service struct {
	users  *users.Repository
	config config.Auth
	admin  config.Admin
	now    func() time.Time
}

// NewService creates a new authentication service. admin carries the
// elevation allow-list and shared secret.
func NewService(db *gorm.DB, cfg config.Auth, admin config.Admin) *Service {
	return &Service{
		users:  users.NewRepository(db),
		config: cfg,
		admin:  admin,
		now:    time.Now,
	}
}

// SignupRequest is the input of Register.
type SignupRequest struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
}

// Register creates a student account.
func (s *Service) Register(req SignupRequest) (*entities.User, error) {
	name := strings.TrimSpace(req.Name)
	email := users.NormalizeEmail(req.Email)
	if name == "" || email == "" || req.Password == "" || req.ConfirmPassword == "" {
		return nil, ErrMissingFields
	}
	if req.Password != req.ConfirmPassword {
		return nil, ErrPasswordMismatch
	}
	return s.CreateUser(name, email, req.Password, entities.UserRoleStudent)
}

// CreateUser creates an account with the given role.
func (s *Service) CreateUser(name, email, password string, role entities.UserRole) (*entities.User, error) {
	name = strings.TrimSpace(name)
	email = users.NormalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return nil, ErrMissingFields
	}
	if !role.IsValid() {
		return nil, ErrInvalidRole
	}

	exists, err := s.users.EmailExists(email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if exists {
		return nil, ErrEmailTaken
	}

	hash, err := HashPassword(password, s.config.BcryptCost)
	if err != nil {
		return nil, err
	}

	user := &entities.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.users.CreateUser(user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// Authenticate validates email and password against the stored hash.
// Allow-listed admin emails are refused here and must use AuthenticateAdmin.
func (s *Service) Authenticate(email, password string) (*entities.User, error) {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	if s.admin.IsAdminEmail(email) {
		return nil, ErrAdminLoginRequired
	}

	user, err := s.users.GetUserByEmail(email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if err := CheckPassword(password, user.PasswordHash); err != nil {
		if errors.Is(err, ErrInvalidPassword) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	s.touchLastLogin(user)
	return user, nil
}

// AuthenticateAdmin checks an elevation attempt: email must be on the admin
// allow-list and password must equal the shared admin secret. An allow-listed
// admin without an account gets one, stored with the plain user role; the
// elevation lives only in the issued session.
func (s *Service) AuthenticateAdmin(email, password string) (*entities.User, error) {
	if !s.admin.ElevationEnabled() || !s.admin.IsAdminEmail(email) || !secretMatches(password, s.admin.Password) {
		return nil, ErrInvalidAdminCredentials
	}

	user, err := s.users.GetUserByEmail(email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user, err = s.provisionAdmin(email, password)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load admin account: %w", err)
	}

	s.touchLastLogin(user)
	return user, nil
}

func (s *Service) provisionAdmin(email, secret string) (*entities.User, error) {
	hash, err := hashSecret(secret, s.config.BcryptCost)
	if err != nil {
		return nil, err
	}

	email = users.NormalizeEmail(email)
	name := email
	if at := strings.IndexByte(email, '@'); at > 0 {
		name = email[:at]
	}

	user := &entities.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         entities.UserRoleUser,
	}
	if err := s.users.CreateUser(user); err != nil {
		// A concurrent elevation created the account first.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return s.users.GetUserByEmail(email)
		}
		return nil, err
	}
	return user, nil
}

func (s *Service) touchLastLogin(user *entities.User) {
	now := s.now()
	if err := s.users.UpdateLastLogin(user.ID, now); err == nil {
		user.LastLoginAt = &now
	}
}

// GetUserByID retrieves a user by their ID.
func (s *Service) GetUserByID(id uint) (*entities.User, error) {
	user, err := s.users.GetUserByID(id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

// ListUsers returns every account, newest first.
func (s *Service) ListUsers() ([]entities.User, error) {
	return s.users.GetAllUsers()
}

// HasUsers returns true if any users exist in the database.
func (s *Service) HasUsers() (bool, error) {
	count, err := s.users.CountUsers()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// secretMatches compares in constant time; hashing first makes the
// comparison independent of the input length.
func secretMatches(given, want string) bool {
	if want == "" {
		return false
	}
	g := sha256.Sum256([]byte(given))
	w := sha256.Sum256([]byte(want))
	return subtle.ConstantTimeCompare(g[:], w[:]) == 1
}
