// Package applications manages the lifecycle of gateway applications.
// Writes are confirmed against the store before a result is returned.
package applications

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mpesa-console/internal/attempt"
	"github.com/mpesa-console/internal/functions"
	"github.com/mpesa-console/internal/models"
)

// Repository is the persistence the service needs.
type Repository interface {
	ListApplications(ctx context.Context) ([]models.Application, error)
	ApplicationNames(ctx context.Context) (map[string]string, error)
	GetApplication(ctx context.Context, id string) (models.Application, error)
	InsertApplication(ctx context.Context, a models.Application) error
	UpdateApplication(ctx context.Context, id string, in models.ApplicationInput) error
	SetApplicationActive(ctx context.Context, id string, active bool) error
	DeleteApplication(ctx context.Context, id string) error
	ApplicationNameTaken(ctx context.Context, name, excludeID string) (bool, error)
}

// Functions is the privileged function client.
type Functions interface {
	Configured(endpoint functions.Endpoint) bool
	MintCredentials(ctx context.Context, endpoint functions.Endpoint, in models.ApplicationInput) (functions.Credentials, error)
	ProxyWrite(ctx context.Context, action functions.Action, payload interface{}) error
}

// Service handles application operations
type Service struct {
	repo     Repository
	fn       Functions
	validate *validator.Validate
	newID    func() string
}

// NewService creates a new application service
func NewService(repo Repository, fn Functions) *Service {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Service{
		repo:     repo,
		fn:       fn,
		validate: v,
		newID:    uuid.NewString,
	}
}

type updatePayload struct {
	ID string `json:"id"`
	models.ApplicationInput
}

type togglePayload struct {
	ID       string `json:"id"`
	IsActive bool   `json:"is_active"`
}

// List returns every application.
func (s *Service) List(ctx context.Context) ([]models.Application, error) {
	return s.repo.ListApplications(ctx)
}

// Get returns one application.
func (s *Service) Get(ctx context.Context, id string) (models.Application, error) {
	return s.repo.GetApplication(ctx, id)
}

// Labels returns the application id to name lookup table.
func (s *Service) Labels(ctx context.Context) (map[string]string, error) {
	return s.repo.ApplicationNames(ctx)
}

// Create mints credentials and persists a new application. Nothing is
// persisted when minting fails.
func (s *Service) Create(ctx context.Context, in models.ApplicationInput) (models.Application, error) {
	in = normalize(in)
	if err := s.validate.Struct(in); err != nil {
		return models.Application{}, models.NewValidationError(err)
	}
	if err := s.checkName(ctx, in.Name, ""); err != nil {
		return models.Application{}, err
	}

	creds, err := s.mint(ctx, in)
	if err != nil {
		return models.Application{}, err
	}

	app := models.NewApplication(s.newID(), in, creds.AppID, creds.AppSecret)

	strategies := []attempt.Strategy[struct{}]{{
		Name: "store",
		Do: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, permanentIf(s.repo.InsertApplication(ctx, app), models.ErrDuplicateName)
		},
	}}
	strategies = s.withProxy(strategies, functions.ActionCreate, app)

	if _, err := attempt.Run(ctx, strategies...); err != nil {
		return models.Application{}, fmt.Errorf("failed to create application: %w", err)
	}

	logrus.WithFields(logrus.Fields{"id": app.ID, "name": app.Name}).Info("Application created")
	return s.repo.GetApplication(ctx, app.ID)
}

// Update overwrites the editable fields of an application.
func (s *Service) Update(ctx context.Context, id string, in models.ApplicationInput) (models.Application, error) {
	in = normalize(in)
	if err := s.validate.Struct(in); err != nil {
		return models.Application{}, models.NewValidationError(err)
	}
	if _, err := s.repo.GetApplication(ctx, id); err != nil {
		return models.Application{}, err
	}
	if err := s.checkName(ctx, in.Name, id); err != nil {
		return models.Application{}, err
	}

	strategies := []attempt.Strategy[struct{}]{{
		Name: "store",
		Do: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, permanentIf(s.repo.UpdateApplication(ctx, id, in), models.ErrDuplicateName, models.ErrNotFound)
		},
	}}
	strategies = s.withProxy(strategies, functions.ActionUpdate, updatePayload{ID: id, ApplicationInput: in})

	if _, err := attempt.Run(ctx, strategies...); err != nil {
		return models.Application{}, fmt.Errorf("failed to update application: %w", err)
	}
	return s.repo.GetApplication(ctx, id)
}

// SetActive enables or disables an application.
func (s *Service) SetActive(ctx context.Context, id string, active bool) (models.Application, error) {
	strategies := []attempt.Strategy[struct{}]{{
		Name: "store",
		Do: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, permanentIf(s.repo.SetApplicationActive(ctx, id, active), models.ErrNotFound)
		},
	}}
	strategies = s.withProxy(strategies, functions.ActionToggle, togglePayload{ID: id, IsActive: active})

	if _, err := attempt.Run(ctx, strategies...); err != nil {
		return models.Application{}, fmt.Errorf("failed to toggle application: %w", err)
	}
	return s.repo.GetApplication(ctx, id)
}

// Delete removes an application.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.DeleteApplication(ctx, id); err != nil {
		return err
	}
	logrus.WithField("id", id).Info("Application deleted")
	return nil
}

func (s *Service) checkName(ctx context.Context, name, excludeID string) error {
	taken, err := s.repo.ApplicationNameTaken(ctx, name, excludeID)
	if err != nil {
		return err
	}
	if taken {
		return models.ErrDuplicateName
	}
	return nil
}

// mint tries the primary endpoint, then the proxy.
func (s *Service) mint(ctx context.Context, in models.ApplicationInput) (functions.Credentials, error) {
	var strategies []attempt.Strategy[functions.Credentials]
	for _, endpoint := range []functions.Endpoint{functions.EndpointPrimary, functions.EndpointProxy} {
		if !s.fn.Configured(endpoint) {
			continue
		}
		endpoint := endpoint
		strategies = append(strategies, attempt.Strategy[functions.Credentials]{
			Name: string(endpoint) + " mint",
			Do: func(ctx context.Context) (functions.Credentials, error) {
				return s.fn.MintCredentials(ctx, endpoint, in)
			},
		})
	}
	if len(strategies) == 0 {
		return functions.Credentials{}, fmt.Errorf("%w: %w", models.ErrCredentialMint, functions.ErrNotConfigured)
	}

	creds, err := attempt.Run(ctx, strategies...)
	if err != nil {
		return functions.Credentials{}, fmt.Errorf("%w: %w", models.ErrCredentialMint, err)
	}
	return creds, nil
}

func (s *Service) withProxy(strategies []attempt.Strategy[struct{}], action functions.Action, payload interface{}) []attempt.Strategy[struct{}] {
	if !s.fn.Configured(functions.EndpointProxy) {
		return strategies
	}
	return append(strategies, attempt.Strategy[struct{}]{
		Name: "proxy " + string(action),
		Do: func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.fn.ProxyWrite(ctx, action, payload)
		},
	})
}

// permanentIf stops the attempt sequence for errors another path cannot fix.
func permanentIf(err error, targets ...error) error {
	for _, target := range targets {
		if errors.Is(err, target) {
			return attempt.Permanent(err)
		}
	}
	return err
}

func normalize(in models.ApplicationInput) models.ApplicationInput {
	in.Name = strings.TrimSpace(in.Name)
	in.CallbackURL = strings.TrimSpace(in.CallbackURL)
	in.BusinessShortCode = strings.TrimSpace(in.BusinessShortCode)
	in.PartyA = strings.TrimSpace(in.PartyA)
	in.PartyB = strings.TrimSpace(in.PartyB)
	return in
}
