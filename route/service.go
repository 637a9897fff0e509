package route

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/xraph/conduit/connector"
	"github.com/xraph/conduit/credential"
	"github.com/xraph/conduit/id"
	"github.com/xraph/conduit/internal/entity"
	"github.com/xraph/conduit/mapping"
	"github.com/xraph/conduit/schema"
)

// Service provides route management operations.
type Service struct {
	store    Store
	schemas  *schema.Validator
	validate *validator.Validate
	logger   *slog.Logger
}

// NewService creates a new route service.
func NewService(store Store, schemas *schema.Validator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if schemas == nil {
		schemas = schema.NewValidator()
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	return &Service{
		store:    store,
		schemas:  schemas,
		validate: v,
		logger:   logger,
	}
}

// Create validates in and persists it as a new route.
func (svc *Service) Create(ctx context.Context, in Input) (*Route, error) {
	if err := svc.Validate(in); err != nil {
		return nil, err
	}

	target := in.Target
	target.Protocol = connector.Normalize(target.Protocol)
	if target.Method == "" {
		target.Method = "POST"
	}

	r := &Route{
		Entity:      entity.New(),
		ID:          id.NewRouteID(),
		Name:        in.Name,
		Description: in.Description,
		Enabled:     in.Enabled,
		Source:      in.Source,
		Target:      target,
		Mapping:     in.Mapping,
		Credential:  in.Credential,
		Retry:       in.Retry.Normalize(),
		Circuit:     in.Circuit.Normalize(),
	}

	if err := svc.store.CreateRoute(ctx, r); err != nil {
		return nil, err
	}

	svc.logger.InfoContext(ctx, "route created", "route_id", r.ID.String(), "name", r.Name, "target", r.Target.Name)
	return r, nil
}

// Validate checks in without persisting it.
func (svc *Service) Validate(in Input) error {
	if err := svc.validate.Struct(in); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return &ValidationError{Field: fieldPath(fe.Namespace()), Message: fieldMessage(fe)}
		}
		return &ValidationError{Field: "", Message: err.Error()}
	}

	switch connector.Normalize(in.Target.Protocol) {
	case connector.ProtocolHTTP:
	case connector.ProtocolKafka, connector.ProtocolMQTT:
		if in.Target.Topic == "" {
			return &ValidationError{Field: "target.topic", Message: "required for " + string(in.Target.Protocol)}
		}
	default:
		return &ValidationError{Field: "target.protocol", Message: fmt.Sprintf("unsupported protocol %q", in.Target.Protocol)}
	}

	if err := mapping.Validate(in.Mapping); err != nil {
		return &ValidationError{Field: "mapping", Message: err.Error()}
	}

	if err := svc.schemas.Compile(in.Source.Schema); err != nil {
		return &ValidationError{Field: "source.schema", Message: err.Error()}
	}

	if c := in.Credential; c != nil {
		switch c.Type {
		case credential.TypeAPIKey, credential.TypeBearerToken, credential.TypeOAuth2ClientCredentials:
		default:
			return &ValidationError{Field: "credential.auth_type", Message: fmt.Sprintf("unsupported type %q", c.Type)}
		}
	}

	return nil
}

// Get returns a route by ID.
func (svc *Service) Get(ctx context.Context, routeID id.ID) (*Route, error) {
	return svc.store.GetRoute(ctx, routeID)
}

// List returns routes, oldest first.
func (svc *Service) List(ctx context.Context, opts ListOpts) ([]*Route, error) {
	return svc.store.ListRoutes(ctx, opts)
}

// SetEnabled enables or disables a route without deleting it.
func (svc *Service) SetEnabled(ctx context.Context, routeID id.ID, enabled bool) (*Route, error) {
	r, err := svc.store.GetRoute(ctx, routeID)
	if err != nil {
		return nil, err
	}

	r.Enabled = enabled
	r.Touch()

	if err := svc.store.UpdateRoute(ctx, r); err != nil {
		return nil, err
	}

	svc.logger.InfoContext(ctx, "route toggled", "route_id", routeID.String(), "enabled", enabled)
	return r, nil
}

// Delete removes a route.
func (svc *Service) Delete(ctx context.Context, routeID id.ID) error {
	return svc.store.DeleteRoute(ctx, routeID)
}

// ValidationError indicates invalid input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "route validation: " + e.Message
	}
	return "route validation: " + e.Field + ": " + e.Message
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "gte":
		return "must be >= " + fe.Param()
	default:
		return "failed " + fe.Tag() + " check"
	}
}
