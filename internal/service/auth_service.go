package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"annotator-be/internal/dto"
	"annotator-be/internal/entity"
	"annotator-be/internal/pkg/logger"
	"annotator-be/internal/pkg/serverutils"
	"annotator-be/internal/repository/specification"
	"annotator-be/internal/repository/unitofwork"
	"annotator-be/pkg/events"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrEmailTaken         = errors.New("email already registered")
	ErrPasswordMismatch   = errors.New("passwords do not match")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// SessionInvalidator drops the annotation state of a session and keeps
// its id from being used again for d.
type SessionInvalidator interface {
	Revoke(sessionID string, d time.Duration)
}

type IAuthService interface {
	Register(ctx context.Context, req *dto.RegisterRequest) (*dto.RegisterResponse, error)
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error)
	Logout(ctx context.Context, sessionID string) error
}

type authService struct {
	uowFactory     unitofwork.RepositoryFactory
	sessions       SessionInvalidator
	eventPublisher EventPublisher
	jwtSecret      string
	tokenTTL       time.Duration
	logger         logger.ILogger
}

func NewAuthService(
	uowFactory unitofwork.RepositoryFactory,
	sessions SessionInvalidator,
	eventPublisher EventPublisher,
	jwtSecret string,
	tokenTTL time.Duration,
	log logger.ILogger,
) IAuthService {
	return &authService{
		uowFactory:     uowFactory,
		sessions:       sessions,
		eventPublisher: eventPublisher,
		jwtSecret:      jwtSecret,
		tokenTTL:       tokenTTL,
		logger:         log,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *authService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.RegisterResponse, error) {
	req.Email = normalizeEmail(req.Email)
	if !serverutils.ValidEmail(req.Email) {
		return nil, ErrInvalidEmail
	}
	if req.Password != req.PasswordRepeat {
		return nil, ErrPasswordMismatch
	}
	if err := serverutils.Validate(req); err != nil {
		return nil, err
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	existing, err := uow.UserRepository().FindOne(ctx, specification.ByEmail{Email: req.Email})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &entity.User{
		Id:           uuid.New(),
		Email:        req.Email,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer uow.Rollback()

	if err := uow.UserRepository().Create(ctx, user); err != nil {
		return nil, err
	}
	if err := uow.Commit(); err != nil {
		return nil, err
	}

	s.publish(ctx, events.TypeUserRegistered, map[string]interface{}{
		"user_id": user.Id.String(),
		"email":   user.Email,
	})

	return &dto.RegisterResponse{Id: user.Id, Email: user.Email}, nil
}

// Login checks the password and opens a new annotation session.
func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.LoginResponse, error) {
	req.Email = normalizeEmail(req.Email)
	if err := serverutils.Validate(req); err != nil {
		return nil, ErrInvalidCredentials
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	user, err := uow.UserRepository().FindOne(ctx, specification.ByEmail{Email: req.Email})
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	sessionID := uuid.NewString()
	token, err := serverutils.IssueSessionToken(s.jwtSecret, sessionID, user.Email, s.tokenTTL)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if err := uow.UserRepository().UpdateLastLogin(ctx, user.Id, now); err != nil {
		s.logger.Warn("AUTH", "Failed to record last login", map[string]interface{}{
			"user_id": user.Id.String(),
			"error":   err.Error(),
		})
	}

	s.publish(ctx, events.TypeUserLogin, map[string]interface{}{
		"user_id":    user.Id.String(),
		"session_id": sessionID,
		"time":       now.Format(time.RFC822),
	})

	return &dto.LoginResponse{
		SessionToken: token,
		SessionId:    sessionID,
		Email:        user.Email,
		ExpiresAt:    now.Add(s.tokenTTL),
	}, nil
}

func (s *authService) Logout(ctx context.Context, sessionID string) error {
	s.sessions.Revoke(sessionID, s.tokenTTL)
	s.logger.Info("AUTH", "Session closed", map[string]interface{}{"session_id": sessionID})
	return nil
}

func (s *authService) publish(ctx context.Context, eventType string, data map[string]interface{}) {
	if s.eventPublisher == nil {
		return
	}
	if err := s.eventPublisher.Publish(ctx, events.New(eventType, data)); err != nil {
		s.logger.Warn("AUTH", "Failed to publish event", map[string]interface{}{
			"type":  eventType,
			"error": err.Error(),
		})
	}
}
