package itinerary

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rhymeas/tripweaver/internal/types"
)

// MockService is a mock implementation of Service
type MockService struct {
	mock.Mock
}

func (m *MockService) Generate(ctx context.Context, trip types.TripContext) (*types.Itinerary, error) {
	args := m.Called(ctx, trip)
	if i := args.Get(0); i != nil {
		return i.(*types.Itinerary), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockService) GenerateStream(ctx context.Context, trip types.TripContext, eventCh chan<- types.StreamEvent) error {
	args := m.Called(ctx, trip, eventCh)
	return args.Error(0)
}

// MockRepository is a mock implementation of Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Save(ctx context.Context, itinerary *types.Itinerary) error {
	args := m.Called(ctx, itinerary)
	return args.Error(0)
}

func (m *MockRepository) Get(ctx context.Context, id uuid.UUID) (*types.Itinerary, error) {
	args := m.Called(ctx, id)
	if i := args.Get(0); i != nil {
		return i.(*types.Itinerary), args.Error(1)
	}
	return nil, args.Error(1)
}

const validBody = `{"origin": "Munich", "destination": "Zurich", "transport_mode": "driving"}`

func generatedItinerary() *types.Itinerary {
	return &types.Itinerary{
		ID:      uuid.New(),
		Context: types.TripContext{Origin: "Munich", Destination: "Zurich"},
		Days:    []types.ItineraryDay{{}},
	}
}

func TestCreateItinerary(t *testing.T) {
	t.Run("returns 201 with the generated itinerary", func(t *testing.T) {
		service := new(MockService)
		itin := generatedItinerary()
		service.On("Generate", mock.Anything, mock.MatchedBy(func(trip types.TripContext) bool {
			return trip.Origin == "Munich" && trip.Destination == "Zurich" &&
				trip.TransportMode == types.ProfileDriving && !trip.StartDate.IsZero()
		})).Return(itin, nil)

		handler := NewHandler(service, nil, slog.Default())
		req := httptest.NewRequest(http.MethodPost, "/itineraries", strings.NewReader(validBody))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()

		handler.CreateItinerary(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		var got types.Itinerary
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, itin.ID, got.ID)
	})

	t.Run("persists the result when a repository is configured", func(t *testing.T) {
		service := new(MockService)
		itin := generatedItinerary()
		service.On("Generate", mock.Anything, mock.Anything).Return(itin, nil)

		repo := new(MockRepository)
		repo.On("Save", mock.Anything, itin).Return(nil)

		handler := NewHandler(service, repo, slog.Default())
		req := httptest.NewRequest(http.MethodPost, "/itineraries", strings.NewReader(validBody))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()

		handler.CreateItinerary(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		repo.AssertExpectations(t)
	})

	t.Run("a failed save still returns the itinerary", func(t *testing.T) {
		service := new(MockService)
		service.On("Generate", mock.Anything, mock.Anything).Return(generatedItinerary(), nil)

		repo := new(MockRepository)
		repo.On("Save", mock.Anything, mock.Anything).Return(assert.AnError)

		handler := NewHandler(service, repo, slog.Default())
		req := httptest.NewRequest(http.MethodPost, "/itineraries", strings.NewReader(validBody))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()

		handler.CreateItinerary(rec, req)
		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("missing origin is a 400", func(t *testing.T) {
		service := new(MockService)
		handler := NewHandler(service, nil, slog.Default())
		req := httptest.NewRequest(http.MethodPost, "/itineraries", strings.NewReader(`{"destination": "Zurich"}`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()

		handler.CreateItinerary(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		service.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
	})

	t.Run("bad start date is a 400", func(t *testing.T) {
		service := new(MockService)
		handler := NewHandler(service, nil, slog.Default())
		body := `{"origin": "Munich", "destination": "Zurich", "start_date": "01/06/2026"}`
		req := httptest.NewRequest(http.MethodPost, "/itineraries", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()

		handler.CreateItinerary(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("pipeline errors map to statuses", func(t *testing.T) {
		cases := []struct {
			name string
			err  error
			want int
		}{
			{"ambiguous location", types.ErrAmbiguousLocation, http.StatusUnprocessableEntity},
			{"no route", types.ErrNoRouteFound, http.StatusUnprocessableEntity},
			{"rate limited", types.ErrRateLimited, http.StatusBadGateway},
			{"providers down", types.ErrProviderUnavailable, http.StatusBadGateway},
			{"anything else", assert.AnError, http.StatusInternalServerError},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				service := new(MockService)
				service.On("Generate", mock.Anything, mock.Anything).Return(nil, tc.err)

				handler := NewHandler(service, nil, slog.Default())
				req := httptest.NewRequest(http.MethodPost, "/itineraries", strings.NewReader(validBody))
				req.Header.Set("Content-Type", "application/json")
				rec := httptest.NewRecorder()

				handler.CreateItinerary(rec, req)
				assert.Equal(t, tc.want, rec.Code)
			})
		}
	})
}

func TestCreateItineraryStream(t *testing.T) {
	t.Run("relays events as SSE frames", func(t *testing.T) {
		service := new(MockService)
		service.On("GenerateStream", mock.Anything, mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				ch := args.Get(2).(chan<- types.StreamEvent)
				ch <- types.StreamEvent{Stage: types.StageStrategy}
				ch <- types.StreamEvent{Stage: types.StageAdvisoryComplete, Payload: generatedItinerary()}
				close(ch)
			}).Return(nil)

		handler := NewHandler(service, nil, slog.Default())
		req := httptest.NewRequest(http.MethodPost, "/itineraries/stream", strings.NewReader(validBody))
		rec := httptest.NewRecorder()

		handler.CreateItineraryStream(rec, req)

		assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
		body := rec.Body.String()
		assert.Contains(t, body, "event: strategy\n")
		assert.Contains(t, body, "event: advisory-complete\n")
		assert.Contains(t, body, "data: ")
	})

	t.Run("pipeline failure becomes an error frame", func(t *testing.T) {
		service := new(MockService)
		service.On("GenerateStream", mock.Anything, mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) {
				close(args.Get(2).(chan<- types.StreamEvent))
			}).Return(types.ErrNoRouteFound)

		handler := NewHandler(service, nil, slog.Default())
		req := httptest.NewRequest(http.MethodPost, "/itineraries/stream", strings.NewReader(validBody))
		rec := httptest.NewRecorder()

		handler.CreateItineraryStream(rec, req)
		assert.Contains(t, rec.Body.String(), "event: error\n")
	})

	t.Run("invalid body becomes an error frame", func(t *testing.T) {
		service := new(MockService)
		handler := NewHandler(service, nil, slog.Default())
		req := httptest.NewRequest(http.MethodPost, "/itineraries/stream", strings.NewReader("{broken"))
		rec := httptest.NewRecorder()

		handler.CreateItineraryStream(rec, req)
		assert.Contains(t, rec.Body.String(), "event: error\n")
		service.AssertNotCalled(t, "GenerateStream", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestGetItinerary(t *testing.T) {
	withURLParam := func(req *http.Request, id string) *http.Request {
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("itineraryID", id)
		return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}

	t.Run("returns a stored itinerary", func(t *testing.T) {
		repo := new(MockRepository)
		itin := generatedItinerary()
		repo.On("Get", mock.Anything, itin.ID).Return(itin, nil)

		handler := NewHandler(new(MockService), repo, slog.Default())
		req := withURLParam(httptest.NewRequest(http.MethodGet, "/itineraries/"+itin.ID.String(), nil), itin.ID.String())
		rec := httptest.NewRecorder()

		handler.GetItinerary(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var got types.Itinerary
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, itin.ID, got.ID)
	})

	t.Run("unknown id is a 404", func(t *testing.T) {
		repo := new(MockRepository)
		id := uuid.New()
		repo.On("Get", mock.Anything, id).Return(nil, ErrItineraryNotFound)

		handler := NewHandler(new(MockService), repo, slog.Default())
		req := withURLParam(httptest.NewRequest(http.MethodGet, "/itineraries/"+id.String(), nil), id.String())
		rec := httptest.NewRecorder()

		handler.GetItinerary(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("malformed id is a 400", func(t *testing.T) {
		handler := NewHandler(new(MockService), new(MockRepository), slog.Default())
		req := withURLParam(httptest.NewRequest(http.MethodGet, "/itineraries/not-a-uuid", nil), "not-a-uuid")
		rec := httptest.NewRecorder()

		handler.GetItinerary(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("no repository means 501", func(t *testing.T) {
		handler := NewHandler(new(MockService), nil, slog.Default())
		req := httptest.NewRequest(http.MethodGet, "/itineraries/"+uuid.NewString(), nil)
		rec := httptest.NewRecorder()

		handler.GetItinerary(rec, req)
		assert.Equal(t, http.StatusNotImplemented, rec.Code)
	})
}
