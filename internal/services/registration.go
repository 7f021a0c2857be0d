package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"

	"church-checkin/internal/metrics"
	"church-checkin/internal/models"
	"church-checkin/internal/repository"
)

const (
	codeLength        = 12
	codeGenerateTries = 3
)

// ProfileInput carries the editable member attributes
type ProfileInput struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Ministry  string `json:"ministry"`
	Network   string `json:"network"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

func (p *ProfileInput) normalize() {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	p.Ministry = strings.TrimSpace(p.Ministry)
	p.Network = strings.TrimSpace(p.Network)
	p.Email = strings.TrimSpace(p.Email)
	p.Phone = strings.TrimSpace(p.Phone)
}

func (p ProfileInput) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.FirstName, validation.Required, validation.Length(1, 100)),
		validation.Field(&p.LastName, validation.Required, validation.Length(1, 100)),
		validation.Field(&p.Ministry, validation.Length(0, 100)),
		validation.Field(&p.Network, validation.Length(0, 100)),
		validation.Field(&p.Email, validation.Length(0, 255), is.EmailFormat),
		validation.Field(&p.Phone, validation.Length(0, 32)),
	)
}

// RegistrationService handles member registration and profile edits
type RegistrationService struct {
	identityRepo repository.IdentityRepository
	metrics      *metrics.Metrics
	newCode      func() string
	now          func() time.Time
}

func NewRegistrationService(identityRepo repository.IdentityRepository, m *metrics.Metrics) *RegistrationService {
	return &RegistrationService{
		identityRepo: identityRepo,
		metrics:      m,
		newCode:      generateCode,
		now:          time.Now,
	}
}

func generateCode() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:codeLength]
}

// Register validates the input and creates an identity with a fresh code
func (s *RegistrationService) Register(ctx context.Context, input ProfileInput) (*models.Identity, error) {
	input.normalize()
	if err := input.Validate(); err != nil {
		return nil, err
	}

	now := s.now()
	identity := &models.Identity{
		ID:        uuid.NewString(),
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Ministry:  input.Ministry,
		Network:   input.Network,
		Email:     input.Email,
		Phone:     input.Phone,
		CreatedAt: now,
		UpdatedAt: now,
	}
	for attempt := 1; ; attempt++ {
		identity.Code = s.newCode()
		err := s.identityRepo.Create(ctx, identity)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrDuplicate) || attempt >= codeGenerateTries {
			return nil, fmt.Errorf("failed to register identity: %w", err)
		}
	}
	s.metrics.ObserveRegistration()
	return identity, nil
}

func (s *RegistrationService) Get(ctx context.Context, code string) (*models.Identity, error) {
	return s.identityRepo.GetByCode(ctx, strings.TrimSpace(code))
}

// UpdateProfile edits the display attributes of an identity; the code is immutable
func (s *RegistrationService) UpdateProfile(ctx context.Context, code string, input ProfileInput) (*models.Identity, error) {
	input.normalize()
	if err := input.Validate(); err != nil {
		return nil, err
	}
	identity, err := s.identityRepo.GetByCode(ctx, strings.TrimSpace(code))
	if err != nil {
		return nil, err
	}
	identity.FirstName = input.FirstName
	identity.LastName = input.LastName
	identity.Ministry = input.Ministry
	identity.Network = input.Network
	identity.Email = input.Email
	identity.Phone = input.Phone
	identity.UpdatedAt = s.now()
	if err := s.identityRepo.Update(ctx, identity); err != nil {
		return nil, err
	}
	return identity, nil
}
