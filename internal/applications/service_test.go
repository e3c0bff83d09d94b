package applications

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mpesa-console/internal/functions"
	"github.com/mpesa-console/internal/models"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) ListApplications(ctx context.Context) ([]models.Application, error) {
	args := m.Called(ctx)
	return args.Get(0).([]models.Application), args.Error(1)
}

func (m *MockRepository) ApplicationNames(ctx context.Context) (map[string]string, error) {
	args := m.Called(ctx)
	return args.Get(0).(map[string]string), args.Error(1)
}

func (m *MockRepository) GetApplication(ctx context.Context, id string) (models.Application, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(models.Application), args.Error(1)
}

func (m *MockRepository) InsertApplication(ctx context.Context, a models.Application) error {
	return m.Called(ctx, a).Error(0)
}

func (m *MockRepository) UpdateApplication(ctx context.Context, id string, in models.ApplicationInput) error {
	return m.Called(ctx, id, in).Error(0)
}

func (m *MockRepository) SetApplicationActive(ctx context.Context, id string, active bool) error {
	return m.Called(ctx, id, active).Error(0)
}

func (m *MockRepository) DeleteApplication(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockRepository) ApplicationNameTaken(ctx context.Context, name, excludeID string) (bool, error) {
	args := m.Called(ctx, name, excludeID)
	return args.Bool(0), args.Error(1)
}

type MockFunctions struct {
	mock.Mock
}

func (m *MockFunctions) Configured(endpoint functions.Endpoint) bool {
	return m.Called(endpoint).Bool(0)
}

func (m *MockFunctions) MintCredentials(ctx context.Context, endpoint functions.Endpoint, in models.ApplicationInput) (functions.Credentials, error) {
	args := m.Called(ctx, endpoint, in)
	return args.Get(0).(functions.Credentials), args.Error(1)
}

func (m *MockFunctions) ProxyWrite(ctx context.Context, action functions.Action, payload interface{}) error {
	return m.Called(ctx, action, payload).Error(0)
}

var errDown = errors.New("connection refused")

func validInput() models.ApplicationInput {
	return models.ApplicationInput{
		Name:              "Shop",
		CallbackURL:       "https://shop.example/callback",
		ConsumerKey:       "ck",
		ConsumerSecret:    "cs",
		BusinessShortCode: "174379",
		Passkey:           "pk",
	}
}

func newTestService(repo *MockRepository, fn *MockFunctions) *Service {
	s := NewService(repo, fn)
	s.newID = func() string { return "id-1" }
	return s
}

func configured(fn *MockFunctions, primary, proxy bool) {
	fn.On("Configured", functions.EndpointPrimary).Return(primary).Maybe()
	fn.On("Configured", functions.EndpointProxy).Return(proxy).Maybe()
}

func TestCreate(t *testing.T) {
	ctx := context.Background()
	creds := functions.Credentials{AppID: "app_1", AppSecret: "sec_1"}
	stored := models.NewApplication("id-1", validInput(), "app_1", "sec_1")

	tests := []struct {
		name    string
		setup   func(*MockRepository, *MockFunctions)
		wantErr error
	}{
		{
			name: "primary mint then store",
			setup: func(repo *MockRepository, fn *MockFunctions) {
				configured(fn, true, true)
				repo.On("ApplicationNameTaken", ctx, "Shop", "").Return(false, nil)
				fn.On("MintCredentials", ctx, functions.EndpointPrimary, validInput()).Return(creds, nil)
				repo.On("InsertApplication", ctx, stored).Return(nil)
				repo.On("GetApplication", ctx, "id-1").Return(stored, nil)
			},
		},
		{
			name: "falls back to proxy mint",
			setup: func(repo *MockRepository, fn *MockFunctions) {
				configured(fn, true, true)
				repo.On("ApplicationNameTaken", ctx, "Shop", "").Return(false, nil)
				fn.On("MintCredentials", ctx, functions.EndpointPrimary, validInput()).Return(functions.Credentials{}, errDown)
				fn.On("MintCredentials", ctx, functions.EndpointProxy, validInput()).Return(creds, nil)
				repo.On("InsertApplication", ctx, stored).Return(nil)
				repo.On("GetApplication", ctx, "id-1").Return(stored, nil)
			},
		},
		{
			name: "store down, proxy create",
			setup: func(repo *MockRepository, fn *MockFunctions) {
				configured(fn, true, true)
				repo.On("ApplicationNameTaken", ctx, "Shop", "").Return(false, nil)
				fn.On("MintCredentials", ctx, functions.EndpointPrimary, validInput()).Return(creds, nil)
				repo.On("InsertApplication", ctx, stored).Return(errDown)
				fn.On("ProxyWrite", ctx, functions.ActionCreate, stored).Return(nil)
				repo.On("GetApplication", ctx, "id-1").Return(stored, nil)
			},
		},
		{
			name: "mint exhausted persists nothing",
			setup: func(repo *MockRepository, fn *MockFunctions) {
				configured(fn, true, true)
				repo.On("ApplicationNameTaken", ctx, "Shop", "").Return(false, nil)
				fn.On("MintCredentials", ctx, functions.EndpointPrimary, validInput()).Return(functions.Credentials{}, errDown)
				fn.On("MintCredentials", ctx, functions.EndpointProxy, validInput()).Return(functions.Credentials{}, errDown)
			},
			wantErr: models.ErrCredentialMint,
		},
		{
			name: "no mint endpoint configured",
			setup: func(repo *MockRepository, fn *MockFunctions) {
				configured(fn, false, false)
				repo.On("ApplicationNameTaken", ctx, "Shop", "").Return(false, nil)
			},
			wantErr: functions.ErrNotConfigured,
		},
		{
			name: "duplicate name",
			setup: func(repo *MockRepository, fn *MockFunctions) {
				repo.On("ApplicationNameTaken", ctx, "Shop", "").Return(true, nil)
			},
			wantErr: models.ErrDuplicateName,
		},
		{
			name: "duplicate on insert is not retried through the proxy",
			setup: func(repo *MockRepository, fn *MockFunctions) {
				configured(fn, true, true)
				repo.On("ApplicationNameTaken", ctx, "Shop", "").Return(false, nil)
				fn.On("MintCredentials", ctx, functions.EndpointPrimary, validInput()).Return(creds, nil)
				repo.On("InsertApplication", ctx, stored).Return(models.ErrDuplicateName)
			},
			wantErr: models.ErrDuplicateName,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(MockRepository)
			fn := new(MockFunctions)
			tt.setup(repo, fn)

			got, err := newTestService(repo, fn).Create(ctx, validInput())

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				repo.AssertNotCalled(t, "GetApplication", mock.Anything, mock.Anything)
			} else {
				require.NoError(t, err)
				assert.Equal(t, stored, got)
			}
			repo.AssertExpectations(t)
			fn.AssertExpectations(t)
		})
	}
}

func TestCreate_Validation(t *testing.T) {
	repo := new(MockRepository)
	fn := new(MockFunctions)

	in := validInput()
	in.Name = "  "
	in.CallbackURL = "not a url"
	in.BusinessShortCode = "12ab"

	_, err := newTestService(repo, fn).Create(context.Background(), in)

	require.ErrorIs(t, err, models.ErrInvalidInput)
	var verr *models.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "name")
	assert.Contains(t, verr.Fields, "callback_url")
	assert.Contains(t, verr.Fields, "business_short_code")

	repo.AssertNotCalled(t, "ApplicationNameTaken", mock.Anything, mock.Anything, mock.Anything)
	fn.AssertNotCalled(t, "MintCredentials", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	existing := models.NewApplication("id-1", validInput(), "app_1", "sec_1")

	in := validInput()
	in.Name = "Shop Renamed"
	updated := models.NewApplication("id-1", in, "app_1", "sec_1")

	t.Run("updates and re-reads", func(t *testing.T) {
		repo := new(MockRepository)
		fn := new(MockFunctions)
		configured(fn, true, false)

		repo.On("GetApplication", ctx, "id-1").Return(existing, nil).Once()
		repo.On("ApplicationNameTaken", ctx, "Shop Renamed", "id-1").Return(false, nil)
		repo.On("UpdateApplication", ctx, "id-1", in).Return(nil)
		repo.On("GetApplication", ctx, "id-1").Return(updated, nil).Once()

		got, err := newTestService(repo, fn).Update(ctx, "id-1", in)
		require.NoError(t, err)
		assert.Equal(t, "Shop Renamed", got.Name)
		assert.Equal(t, "app_1", got.AppID)
		repo.AssertExpectations(t)
	})

	t.Run("name taken by another application", func(t *testing.T) {
		repo := new(MockRepository)
		fn := new(MockFunctions)

		repo.On("GetApplication", ctx, "id-1").Return(existing, nil)
		repo.On("ApplicationNameTaken", ctx, "Shop Renamed", "id-1").Return(true, nil)

		_, err := newTestService(repo, fn).Update(ctx, "id-1", in)
		assert.ErrorIs(t, err, models.ErrDuplicateName)
		repo.AssertNotCalled(t, "UpdateApplication", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("missing application", func(t *testing.T) {
		repo := new(MockRepository)
		fn := new(MockFunctions)

		repo.On("GetApplication", ctx, "nope").Return(models.Application{}, models.ErrNotFound)

		_, err := newTestService(repo, fn).Update(ctx, "nope", in)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("store down, proxy update", func(t *testing.T) {
		repo := new(MockRepository)
		fn := new(MockFunctions)
		configured(fn, true, true)

		repo.On("GetApplication", ctx, "id-1").Return(existing, nil).Once()
		repo.On("ApplicationNameTaken", ctx, "Shop Renamed", "id-1").Return(false, nil)
		repo.On("UpdateApplication", ctx, "id-1", in).Return(errDown)
		fn.On("ProxyWrite", ctx, functions.ActionUpdate, updatePayload{ID: "id-1", ApplicationInput: in}).Return(nil)
		repo.On("GetApplication", ctx, "id-1").Return(updated, nil).Once()

		got, err := newTestService(repo, fn).Update(ctx, "id-1", in)
		require.NoError(t, err)
		assert.Equal(t, updated, got)
		fn.AssertExpectations(t)
	})
}

func TestSetActive(t *testing.T) {
	ctx := context.Background()

	t.Run("both paths fail", func(t *testing.T) {
		repo := new(MockRepository)
		fn := new(MockFunctions)
		configured(fn, true, true)

		repo.On("SetApplicationActive", ctx, "id-1", false).Return(errDown)
		fn.On("ProxyWrite", ctx, functions.ActionToggle, togglePayload{ID: "id-1", IsActive: false}).Return(errDown)

		_, err := newTestService(repo, fn).SetActive(ctx, "id-1", false)
		assert.ErrorIs(t, err, errDown)
		repo.AssertNotCalled(t, "GetApplication", mock.Anything, mock.Anything)
	})

	t.Run("toggles and re-reads", func(t *testing.T) {
		repo := new(MockRepository)
		fn := new(MockFunctions)
		configured(fn, true, false)

		app := models.Application{ID: "id-1", IsActive: false}
		repo.On("SetApplicationActive", ctx, "id-1", false).Return(nil)
		repo.On("GetApplication", ctx, "id-1").Return(app, nil)

		got, err := newTestService(repo, fn).SetActive(ctx, "id-1", false)
		require.NoError(t, err)
		assert.False(t, got.IsActive)
	})
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	repo := new(MockRepository)
	fn := new(MockFunctions)

	repo.On("DeleteApplication", ctx, "id-1").Return(nil)
	repo.On("DeleteApplication", ctx, "gone").Return(models.ErrNotFound)

	s := newTestService(repo, fn)
	assert.NoError(t, s.Delete(ctx, "id-1"))
	assert.ErrorIs(t, s.Delete(ctx, "gone"), models.ErrNotFound)
}
