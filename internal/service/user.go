package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/ayo6706/wallet-ledger/internal/domain"
	"github.com/ayo6706/wallet-ledger/internal/models"
	"github.com/ayo6706/wallet-ledger/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

// TokenIssuer signs access tokens for authenticated users.
type TokenIssuer interface {
	Issue(userID, email string) (string, error)
}

type SignupRequest struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// Session is returned after a successful login.
type Session struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// UserService handles onboarding and credential checks.
type UserService struct {
	store    QueryStore
	accounts *AccountService
	tokens   TokenIssuer
	newID    func() string
	cost     int
}

func NewUserService(store QueryStore, accounts *AccountService, tokens TokenIssuer) *UserService {
	return &UserService{
		store:    store,
		accounts: accounts,
		tokens:   tokens,
		newID:    domain.GenerateID,
		cost:     bcrypt.DefaultCost,
	}
}

// Signup creates the user and the default-currency account in one scope.
func (s *UserService) Signup(ctx context.Context, req SignupRequest) (*models.User, error) {
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.FirstName == "" || req.LastName == "" {
		return nil, domain.Validation("firstName and lastName are required.")
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return nil, domain.Validation("email must be a valid email address.")
	}
	if len(req.Password) < minPasswordLength {
		return nil, domain.Validation(fmt.Sprintf("password must be at least %d characters.", minPasswordLength))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return nil, domain.Internal("hash password", err)
	}

	var user *models.User
	err = s.store.RunInTx(ctx, func(qtx repository.Querier) error {
		if _, err := qtx.GetUserByEmail(ctx, req.Email); err == nil {
			return domain.Conflict("A user with this email already exists.")
		} else if !repository.IsNotFound(err) {
			return domain.Internal("lookup user", err)
		}

		id, err := allocateID(ctx, s.newID, qtx.UserIDExists)
		if err != nil {
			return err
		}
		created, err := qtx.CreateUser(ctx, repository.CreateUserParams{
			ID:           id,
			FirstName:    req.FirstName,
			LastName:     req.LastName,
			Email:        req.Email,
			PasswordHash: string(hash),
		})
		if err != nil {
			if repository.IsUniqueViolation(err) {
				return domain.Conflict("A user with this email already exists.")
			}
			return domain.Internal("create user", err)
		}
		if _, err := s.accounts.createAccountTx(ctx, qtx, created.ID, domain.DefaultCurrency, domain.ChannelInternal); err != nil {
			return err
		}
		user = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	zap.L().Info("user signed up", zap.String("user_id", user.ID))
	return user, nil
}

// Login verifies credentials and issues an access token.
func (s *UserService) Login(ctx context.Context, email, password string) (*Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.store.Queries().GetUserByEmail(ctx, email)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, domain.Unauthorized("Invalid email or password.")
		}
		return nil, domain.Internal("lookup user", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, domain.Unauthorized("Invalid email or password.")
		}
		return nil, domain.Internal("compare password", err)
	}

	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, domain.Internal("issue token", err)
	}
	return &Session{Token: token, User: user}, nil
}

// GetUser returns the user by id.
func (s *UserService) GetUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.store.Queries().GetUser(ctx, id)
	if err != nil {
		return nil, storeError(err, "user not found")
	}
	return user, nil
}
