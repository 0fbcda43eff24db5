package auth

import (
	"context"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"MemberPortal/internal/apperrors"
)

type UserService struct {
	repo *UserRepository
}

func NewUserService(repo *UserRepository) *UserService {
	return &UserService{repo: repo}
}

func (s *UserService) RegisterUser(ctx context.Context, req RegisterRequest) error {
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Email) == "" {
		return apperrors.Validation("name and email are required")
	}
	if len(req.Password) < 8 {
		return apperrors.Validation("password must be at least 8 characters")
	}

	existingUser, err := s.repo.FindByEmail(ctx, req.Email)
	if err != nil {
		return err
	}
	if existingUser != nil {
		return apperrors.Validation("email already registered")
	}

	hashPassword, err := HashPassword(req.Password)
	if err != nil {
		return err
	}

	user := &User{
		ID:           primitive.NewObjectID(),
		Name:         req.Name,
		Email:        strings.ToLower(req.Email),
		PasswordHash: hashPassword,
		Role:         RoleMember,
		Active:       true,
		CreatedAt:    time.Now(),
	}

	return s.repo.CreateUser(ctx, user)
}

func (s *UserService) AuthenticateUser(ctx context.Context, cred Credential) (string, error) {
	user, err := s.repo.FindByEmail(ctx, strings.ToLower(cred.Email))
	if err != nil {
		return "", err
	}
	if user == nil || !CheckPasswordHash(cred.Password, user.PasswordHash) {
		return "", apperrors.Unauthorized("invalid credentials")
	}
	if !user.Active {
		return "", apperrors.Unauthorized("account is deactivated")
	}

	token, err := GenerateJWT(user.ID.Hex(), user.Name, user.Email, user.Role, 24*time.Hour)
	if err != nil {
		return "", err
	}
	return token, nil
}

func (s *UserService) Profile(ctx context.Context, userID primitive.ObjectID) (*User, error) {
	user, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperrors.NotFound("user")
	}
	return user, nil
}
