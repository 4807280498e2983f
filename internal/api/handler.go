package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/eugenenazirov/plate-binning/internal/calculator"
	"github.com/eugenenazirov/plate-binning/internal/metrics"
	"github.com/eugenenazirov/plate-binning/internal/plate"
	"github.com/eugenenazirov/plate-binning/internal/storage"
)

type contextKey string

const requestIDContextKey contextKey = "requestID"

// Handler wires storage, metrics and the calculators into HTTP handlers.
type Handler struct {
	storage  storage.Storage
	metrics  *metrics.Metrics
	logger   *zap.Logger
	geometry plate.Geometry

	clock func() time.Time
}

// HandlerOption configures Handler behaviour.
type HandlerOption func(*Handler)

// WithClock overrides the time source, primarily for tests.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *Handler) {
		h.clock = clock
	}
}

// WithMetrics records calculation outcomes on m.
func WithMetrics(m *metrics.Metrics) HandlerOption {
	return func(h *Handler) {
		h.metrics = m
	}
}

// WithLogger passes logger on to the calculators.
func WithLogger(logger *zap.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithDefaultGeometry sets the plate geometry assumed when a request omits it.
func WithDefaultGeometry(g plate.Geometry) HandlerOption {
	return func(h *Handler) {
		h.geometry = g
	}
}

// NewHandler constructs a Handler with the provided dependencies.
func NewHandler(store storage.Storage, opts ...HandlerOption) *Handler {
	h := &Handler{
		storage:  store,
		logger:   zap.NewNop(),
		geometry: plate.Standard96,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	_ = r
	resp := healthResponse{
		Status:    "ok",
		Timestamp: h.clock(),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleVariants(w http.ResponseWriter, r *http.Request) {
	_ = r
	strategies := calculator.Strategies()
	resp := make([]variantResponse, 0, len(strategies))
	for _, s := range strategies {
		required := make([]string, 0, len(s.Requires()))
		for _, f := range s.Requires() {
			required = append(required, string(f))
		}
		resp = append(resp, variantResponse{
			Name:     string(s.Variant()),
			Version:  s.Version(),
			Requires: required,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleListConfigurations(w http.ResponseWriter, r *http.Request) {
	_ = r
	names, err := h.storage.ListConfigurations()
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, configurationListResponse{Configurations: names})
}

func (h *Handler) handleGetConfiguration(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	raw, err := h.storage.GetConfiguration(name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Configuration not found", err.Error())
			return
		}
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, configurationResponse{Name: name, Configuration: raw})
}

func (h *Handler) handlePutConfiguration(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var raw calculator.RawConfiguration
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
		return
	}

	if err := h.storage.SetConfiguration(name, raw); err != nil {
		if errors.Is(err, storage.ErrInvalidConfiguration) || errors.Is(err, storage.ErrInvalidName) {
			writeError(w, http.StatusBadRequest, "Invalid configuration", err.Error())
			return
		}
		writeInternalError(w, err)
		return
	}

	stored, err := h.storage.GetConfiguration(name)
	if err != nil {
		writeInternalError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, configurationResponse{
		Name:          name,
		Configuration: stored,
		Message:       "Configuration updated successfully",
	})
}

func (h *Handler) handleCalculate(w http.ResponseWriter, r *http.Request) {
	var req calculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
		return
	}

	var opts []calculator.Option
	if req.Destination != nil {
		opts = append(opts, calculator.WithDestination(*req.Destination))
	}
	calc, cfg, ok := h.prepare(r.Context(), w, req.plateRequest, opts...)
	if !ok {
		return
	}
	variant := string(calc.Strategy().Variant())

	start := time.Now()
	result, calcErr := calc.Calculate(req.Plate.toPlate(h.geometry), cfg)
	elapsed := time.Since(start)

	if calcErr != nil {
		h.metrics.ObserveCalculation(variant, errorStatus(calcErr), elapsed)
		writeCalculationError(w, calcErr)
		return
	}

	h.metrics.ObserveCalculation(variant, "ok", elapsed)
	h.metrics.AddWells(variant, metrics.OutcomeTransferred, len(result.Transfers))
	h.metrics.AddWells(variant, metrics.OutcomeErrored, len(result.WellErrors))
	h.metrics.AddWells(variant, metrics.OutcomeUnbinned, len(result.Unbinned))

	resp := calculateResponse{
		Variant:           variant,
		Version:           result.Version,
		Compressed:        result.Compressed,
		Transfers:         result.Transfers,
		BinDetails:        result.BinDetails,
		WellErrors:        wellErrorMessages(result.WellErrors),
		Unbinned:          result.Unbinned,
		CalculationTimeMs: elapsed.Milliseconds(),
	}
	if resp.Unbinned == nil {
		resp.Unbinned = []string{}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleBinDetails(w http.ResponseWriter, r *http.Request) {
	var req plateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", "unable to parse JSON payload")
		return
	}

	calc, cfg, ok := h.prepare(r.Context(), w, req)
	if !ok {
		return
	}

	details, wellErrors, err := calc.BinDetails(req.Plate.toPlate(h.geometry), cfg)
	if err != nil {
		writeCalculationError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, binDetailsResponse{
		Variant:    string(calc.Strategy().Variant()),
		BinDetails: details,
		WellErrors: wellErrorMessages(wellErrors),
	})
}

// prepare resolves the strategy and configuration for a request. It writes
// the error response itself and reports false when the request cannot proceed.
func (h *Handler) prepare(ctx context.Context, w http.ResponseWriter, req plateRequest, opts ...calculator.Option) (calculator.Calculator, calculator.Configuration, bool) {
	strategy, err := calculator.StrategyFor(req.Variant)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid variant", err.Error())
		return nil, calculator.Configuration{}, false
	}

	raw, err := h.resolveConfiguration(req)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Configuration not found", err.Error())
			return nil, calculator.Configuration{}, false
		}
		writeInternalError(w, err)
		return nil, calculator.Configuration{}, false
	}

	cfg, err := calculator.LoadConfiguration(raw, strategy.Requires()...)
	if err != nil {
		h.metrics.ObserveCalculation(string(strategy.Variant()), errorStatus(err), 0)
		writeError(w, http.StatusBadRequest, "Invalid configuration", err.Error())
		return nil, calculator.Configuration{}, false
	}

	opts = append([]calculator.Option{calculator.WithLogger(h.calculatorLogger(ctx))}, opts...)
	return calculator.New(strategy, opts...), cfg, true
}

func (h *Handler) resolveConfiguration(req plateRequest) (calculator.RawConfiguration, error) {
	if req.Config != nil {
		return *req.Config, nil
	}
	name := req.Configuration
	if name == "" {
		name = string(req.Variant)
	}
	return h.storage.GetConfiguration(name)
}

func (h *Handler) calculatorLogger(ctx context.Context) *zap.Logger {
	if id := requestIDFromContext(ctx); id != "" {
		return h.logger.With(zap.String("request_id", id))
	}
	return h.logger
}

func errorStatus(err error) string {
	switch {
	case errors.Is(err, calculator.ErrMissingField),
		errors.Is(err, calculator.ErrInvalidField),
		errors.Is(err, calculator.ErrInvalidBin):
		return "invalid_configuration"
	case errors.Is(err, calculator.ErrPlateOverflow):
		return "overflow"
	case errors.Is(err, plate.ErrInvalidGeometry),
		errors.Is(err, plate.ErrInvalidLocation),
		errors.Is(err, plate.ErrDuplicateLocation):
		return "invalid_plate"
	default:
		return "error"
	}
}

func writeCalculationError(w http.ResponseWriter, err error) {
	switch errorStatus(err) {
	case "invalid_configuration":
		writeError(w, http.StatusBadRequest, "Invalid configuration", err.Error())
	case "invalid_plate":
		writeError(w, http.StatusBadRequest, "Invalid plate", err.Error())
	case "overflow":
		writeError(w, http.StatusUnprocessableEntity, "Destination plate overflow", err.Error(),
			"Split the source wells across plates or use a larger destination plate")
	default:
		writeInternalError(w, err)
	}
}

func wellErrorMessages(we calculator.WellErrors) map[string]string {
	out := make(map[string]string, len(we))
	for loc, err := range we {
		out[loc] = err.Error()
	}
	return out
}

func requestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(requestIDContextKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

type plateRequest struct {
	Variant       calculator.Variant           `json:"variant"`
	Configuration string                       `json:"configuration,omitempty"`
	Config        *calculator.RawConfiguration `json:"config,omitempty"`
	Plate         plateBody                    `json:"plate"`
}

type plateBody struct {
	Geometry *plate.Geometry `json:"geometry,omitempty"`
	Wells    []plate.Well    `json:"wells"`
}

func (b plateBody) toPlate(fallback plate.Geometry) plate.Plate {
	g := fallback
	if b.Geometry != nil {
		g = *b.Geometry
	}
	return plate.Plate{Geometry: g, Wells: b.Wells}
}

type calculateRequest struct {
	plateRequest
	Destination *plate.Geometry `json:"destination,omitempty"`
}

type calculateResponse struct {
	Variant           string                          `json:"variant"`
	Version           string                          `json:"version"`
	Compressed        bool                            `json:"compressed"`
	Transfers         map[string]calculator.Transfer  `json:"transfers"`
	BinDetails        map[string]calculator.BinDetail `json:"binDetails"`
	WellErrors        map[string]string               `json:"wellErrors"`
	Unbinned          []string                        `json:"unbinned"`
	CalculationTimeMs int64                           `json:"calculationTimeMs"`
}

type binDetailsResponse struct {
	Variant    string                          `json:"variant"`
	BinDetails map[string]calculator.BinDetail `json:"binDetails"`
	WellErrors map[string]string               `json:"wellErrors"`
}

type variantResponse struct {
	Name     string   `json:"name"`
	Version  string   `json:"version"`
	Requires []string `json:"requires"`
}

type configurationListResponse struct {
	Configurations []string `json:"configurations"`
}

type configurationResponse struct {
	Name          string                      `json:"name"`
	Configuration calculator.RawConfiguration `json:"configuration"`
	Message       string                      `json:"message,omitempty"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type errorResponse struct {
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	if status != 0 {
		w.WriteHeader(status)
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string, suggestion ...string) {
	resp := errorResponse{
		Error:   message,
		Details: details,
	}
	if len(suggestion) > 0 {
		resp.Suggestion = suggestion[0]
	}
	writeJSON(w, status, resp)
}

func writeInternalError(w http.ResponseWriter, err error) {
	writeError(w, http.StatusInternalServerError, "Internal error", err.Error())
}
