package itinerary

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/rhymeas/tripweaver/internal/api"
	"github.com/rhymeas/tripweaver/internal/types"
)

type Handler interface {
	CreateItinerary(w http.ResponseWriter, r *http.Request)
	CreateItineraryStream(w http.ResponseWriter, r *http.Request)
	GetItinerary(w http.ResponseWriter, r *http.Request)
}

var _ Handler = (*HandlerImpl)(nil)

type HandlerImpl struct {
	service Service
	repo    Repository
	logger  *slog.Logger
}

// NewHandler creates the itinerary HTTP handler. repo may be nil when no
// database is configured; generated itineraries are then not persisted.
func NewHandler(service Service, repo Repository, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{service: service, repo: repo, logger: logger}
}

type createItineraryRequest struct {
	Origin                string   `json:"origin"`
	Destination           string   `json:"destination"`
	IntermediateStops     []string `json:"intermediate_stops,omitempty"`
	TransportMode         string   `json:"transport_mode,omitempty"`
	RoutePreference       string   `json:"route_preference,omitempty"`
	BudgetTier            string   `json:"budget_tier,omitempty"`
	InterestTags          []string `json:"interest_tags,omitempty"`
	MaxDrivingHoursPerDay float64  `json:"max_driving_hours_per_day,omitempty"`
	StartDate             string   `json:"start_date,omitempty"`
}

func (req createItineraryRequest) toTripContext() (types.TripContext, error) {
	if req.Origin == "" || req.Destination == "" {
		return types.TripContext{}, errors.New("origin and destination are required")
	}
	trip := types.TripContext{
		Origin:                req.Origin,
		Destination:           req.Destination,
		IntermediateStops:     req.IntermediateStops,
		TransportMode:         types.TransportProfile(req.TransportMode),
		RoutePreference:       types.RoutePreference(req.RoutePreference),
		BudgetTier:            types.BudgetTier(req.BudgetTier),
		InterestTags:          req.InterestTags,
		MaxDrivingHoursPerDay: req.MaxDrivingHoursPerDay,
	}
	if req.StartDate != "" {
		day, err := time.Parse("2006-01-02", req.StartDate)
		if err != nil {
			return types.TripContext{}, fmt.Errorf("start_date must be YYYY-MM-DD: %w", err)
		}
		trip.StartDate = day
	} else {
		now := time.Now().UTC()
		trip.StartDate = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
	return trip, nil
}

// CreateItinerary handles POST /itineraries: run the full pipeline and
// return the finished itinerary as one JSON document.
func (h *HandlerImpl) CreateItinerary(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ItineraryHandler").Start(r.Context(), "CreateItinerary")
	defer span.End()

	var req createItineraryRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		span.RecordError(err)
		return
	}
	trip, err := req.toTripContext()
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		span.RecordError(err)
		return
	}

	result, err := h.service.Generate(ctx, trip)
	if err != nil {
		status, msg := statusForError(err)
		h.logger.ErrorContext(ctx, "Itinerary generation failed",
			slog.Any("error", err), slog.Int("status", status))
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		api.ErrorResponse(w, r, status, msg)
		return
	}

	if h.repo != nil {
		if err := h.repo.Save(ctx, result); err != nil {
			// Persistence is best effort; the caller still gets the result.
			h.logger.WarnContext(ctx, "Failed to persist itinerary",
				slog.String("itinerary_id", result.ID.String()), slog.Any("error", err))
		}
	}

	span.SetAttributes(attribute.String("itinerary.id", result.ID.String()))
	span.SetStatus(codes.Ok, "itinerary created")
	api.WriteJSONResponse(w, r, http.StatusCreated, result)
}

// CreateItineraryStream handles POST /itineraries/stream: progressive
// itinerary generation over server-sent events.
func (h *HandlerImpl) CreateItineraryStream(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ItineraryHandler").Start(r.Context(), "CreateItineraryStream")
	defer span.End()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	var req createItineraryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeSSEError(w, flusher, "Invalid request body")
		span.RecordError(err)
		return
	}
	trip, err := req.toTripContext()
	if err != nil {
		h.writeSSEError(w, flusher, err.Error())
		span.RecordError(err)
		return
	}

	eventCh := make(chan types.StreamEvent, 8)
	errCh := make(chan error, 1)
	go func() {
		errCh <- h.service.GenerateStream(ctx, trip, eventCh)
	}()

	for {
		select {
		case event, open := <-eventCh:
			if !open {
				if err := <-errCh; err != nil {
					h.writeSSEError(w, flusher, err.Error())
					span.RecordError(err)
					span.SetStatus(codes.Error, "stream failed")
					return
				}
				span.SetStatus(codes.Ok, "stream complete")
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				h.logger.ErrorContext(ctx, "Failed to marshal stream event", slog.Any("error", err))
				continue
			}
			fmt.Fprintf(w, "id: %s\n", uuid.New().String())
			fmt.Fprintf(w, "event: %s\n", event.Stage)
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()

		case <-ctx.Done():
			h.logger.InfoContext(ctx, "Client disconnected during itinerary stream")
			return
		}
	}
}

// GetItinerary handles GET /itineraries/{itineraryID}.
func (h *HandlerImpl) GetItinerary(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("ItineraryHandler").Start(r.Context(), "GetItinerary")
	defer span.End()

	if h.repo == nil {
		api.ErrorResponse(w, r, http.StatusNotImplemented, "Itinerary storage is not configured")
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "itineraryID"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid itinerary ID format")
		span.RecordError(err)
		return
	}

	result, err := h.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrItineraryNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "Itinerary not found")
			return
		}
		h.logger.ErrorContext(ctx, "Failed to load itinerary", slog.Any("error", err))
		span.RecordError(err)
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to load itinerary")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, result)
}

func (h *HandlerImpl) writeSSEError(w http.ResponseWriter, flusher http.Flusher, msg string) {
	payload, _ := json.Marshal(map[string]string{"error": msg})
	fmt.Fprintf(w, "event: error\n")
	fmt.Fprintf(w, "data: %s\n\n", payload)
	flusher.Flush()
}

// statusForError maps pipeline errors to HTTP statuses. Bad input gets a
// 4xx, upstream provider exhaustion a 502, everything else a 500.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, types.ErrAmbiguousLocation):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, types.ErrNoRouteFound):
		return http.StatusUnprocessableEntity, "No route exists between the requested locations"
	case errors.Is(err, types.ErrRateLimited):
		return http.StatusBadGateway, "Upstream providers are rate limiting requests"
	case errors.Is(err, types.ErrProviderUnavailable):
		return http.StatusBadGateway, "All upstream providers are unavailable"
	default:
		return http.StatusInternalServerError, "Itinerary generation failed"
	}
}
