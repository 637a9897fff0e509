package sqlite

import (
	"fmt"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/conduit/deadletter"
	"github.com/xraph/conduit/id"
	"github.com/xraph/conduit/internal/entity"
	"github.com/xraph/conduit/route"
	"github.com/xraph/conduit/run"
	"github.com/xraph/conduit/store/internal/codec"
)

// --- Route models ---

type routeModel struct {
	grove.BaseModel `grove:"table:conduit_routes"`

	ID          string          `grove:"id,pk"`
	Name        string          `grove:"name"`
	Description string          `grove:"description"`
	Enabled     bool            `grove:"enabled"`
	SourceEvent string          `grove:"source_event"`
	Spec        string          `grove:"spec"`
	CreatedAt   time.Time       `grove:"created_at"`
	UpdatedAt   time.Time       `grove:"updated_at"`
}

func toRouteModel(r *route.Route) (*routeModel, error) {
	spec, err := codec.EncodeRouteSpec(r)
	if err != nil {
		return nil, err
	}
	return &routeModel{
		ID:          r.ID.String(),
		Name:        r.Name,
		Description: r.Description,
		Enabled:     r.Enabled,
		SourceEvent: r.Source.Event,
		Spec:        string(spec),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}, nil
}

func fromRouteModel(m *routeModel) (*route.Route, error) {
	routeID, err := id.ParseRouteID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse route ID %q: %w", m.ID, err)
	}
	r := &route.Route{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:          routeID,
		Name:        m.Name,
		Description: m.Description,
		Enabled:     m.Enabled,
	}
	if err := codec.DecodeRouteSpec([]byte(m.Spec), r); err != nil {
		return nil, err
	}
	return r, nil
}

// --- Run models ---

type runModel struct {
	grove.BaseModel `grove:"table:conduit_runs"`

	ID             string          `grove:"id,pk"`
	RouteID        string          `grove:"route_id"`
	Status         string          `grove:"status"`
	SourcePayload  string          `grove:"source_payload"`
	MappedPayload  string          `grove:"mapped_payload"`
	ResponseStatus int             `grove:"response_status"`
	ResponseBody   string          `grove:"response_body"`
	Attempts       int             `grove:"attempts"`
	Error          string          `grove:"error"`
	CorrelationID  string          `grove:"correlation_id"`
	IdempotencyKey string          `grove:"idempotency_key"`
	StartedAt      time.Time       `grove:"started_at"`
	FinishedAt     *time.Time      `grove:"finished_at"`
	DurationMs     int64           `grove:"duration_ms"`
}

func toRunModel(r *run.Run) (*runModel, error) {
	source, err := codec.EncodeValue(r.SourcePayload)
	if err != nil {
		return nil, err
	}
	mapped, err := codec.EncodeValue(r.MappedPayload)
	if err != nil {
		return nil, err
	}
	body, err := codec.EncodeValue(r.ResponseBody)
	if err != nil {
		return nil, err
	}
	return &runModel{
		ID:             r.ID.String(),
		RouteID:        r.RouteID.String(),
		Status:         string(r.Status),
		SourcePayload:  string(source),
		MappedPayload:  string(mapped),
		ResponseStatus: r.ResponseStatus,
		ResponseBody:   string(body),
		Attempts:       r.Attempts,
		Error:          r.Error,
		CorrelationID:  r.CorrelationID,
		IdempotencyKey: r.IdempotencyKey,
		StartedAt:      r.StartedAt,
		FinishedAt:     r.FinishedAt,
		DurationMs:     r.DurationMs,
	}, nil
}

func fromRunModel(m *runModel) (*run.Run, error) {
	runID, err := id.ParseRunID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse run ID %q: %w", m.ID, err)
	}
	routeID, err := id.ParseRouteID(m.RouteID)
	if err != nil {
		return nil, fmt.Errorf("parse route ID %q: %w", m.RouteID, err)
	}
	source, err := codec.DecodeValue([]byte(m.SourcePayload))
	if err != nil {
		return nil, err
	}
	mapped, err := codec.DecodeValue([]byte(m.MappedPayload))
	if err != nil {
		return nil, err
	}
	body, err := codec.DecodeValue([]byte(m.ResponseBody))
	if err != nil {
		return nil, err
	}
	return &run.Run{
		ID:             runID,
		RouteID:        routeID,
		Status:         run.Status(m.Status),
		SourcePayload:  source,
		MappedPayload:  mapped,
		ResponseStatus: m.ResponseStatus,
		ResponseBody:   body,
		Attempts:       m.Attempts,
		Error:          m.Error,
		CorrelationID:  m.CorrelationID,
		IdempotencyKey: m.IdempotencyKey,
		StartedAt:      m.StartedAt,
		FinishedAt:     m.FinishedAt,
		DurationMs:     m.DurationMs,
	}, nil
}

// --- Dead letter models ---

type deadLetterModel struct {
	grove.BaseModel `grove:"table:conduit_dead_letters"`

	ID             string          `grove:"id,pk"`
	RouteID        string          `grove:"route_id"`
	RunID          string          `grove:"run_id"`
	SourcePayload  string          `grove:"source_payload"`
	MappedPayload  string          `grove:"mapped_payload"`
	Error          string          `grove:"error"`
	Attempts       int             `grove:"attempts"`
	LastStatusCode int             `grove:"last_status_code"`
	Status         string          `grove:"status"`
	ReplayCount    int             `grove:"replay_count"`
	LastReplayedAt *time.Time      `grove:"last_replayed_at"`
	CreatedAt      time.Time       `grove:"created_at"`
	UpdatedAt      time.Time       `grove:"updated_at"`
}

func toDeadLetterModel(e *deadletter.Entry) (*deadLetterModel, error) {
	source, err := codec.EncodeValue(e.SourcePayload)
	if err != nil {
		return nil, err
	}
	mapped, err := codec.EncodeValue(e.MappedPayload)
	if err != nil {
		return nil, err
	}
	return &deadLetterModel{
		ID:             e.ID.String(),
		RouteID:        e.RouteID.String(),
		RunID:          e.RunID.String(),
		SourcePayload:  string(source),
		MappedPayload:  string(mapped),
		Error:          e.Error,
		Attempts:       e.Attempts,
		LastStatusCode: e.LastStatusCode,
		Status:         string(e.Status),
		ReplayCount:    e.ReplayCount,
		LastReplayedAt: e.LastReplayedAt,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}, nil
}

func fromDeadLetterModel(m *deadLetterModel) (*deadletter.Entry, error) {
	entryID, err := id.ParseDeadLetterID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("parse dead letter ID %q: %w", m.ID, err)
	}
	routeID, err := id.ParseRouteID(m.RouteID)
	if err != nil {
		return nil, fmt.Errorf("parse route ID %q: %w", m.RouteID, err)
	}
	runID, err := id.ParseRunID(m.RunID)
	if err != nil {
		return nil, fmt.Errorf("parse run ID %q: %w", m.RunID, err)
	}
	source, err := codec.DecodeValue([]byte(m.SourcePayload))
	if err != nil {
		return nil, err
	}
	mapped, err := codec.DecodeValue([]byte(m.MappedPayload))
	if err != nil {
		return nil, err
	}
	return &deadletter.Entry{
		Entity: entity.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             entryID,
		RouteID:        routeID,
		RunID:          runID,
		SourcePayload:  source,
		MappedPayload:  mapped,
		Error:          m.Error,
		Attempts:       m.Attempts,
		LastStatusCode: m.LastStatusCode,
		Status:         deadletter.Status(m.Status),
		ReplayCount:    m.ReplayCount,
		LastReplayedAt: m.LastReplayedAt,
	}, nil
}
