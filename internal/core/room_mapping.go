package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/JonMunkholm/dayroster/internal/logging"
)

// ErrMappingsUnavailable is returned when no MappingStore is configured.
var ErrMappingsUnavailable = errors.New("room mappings are not configured")

// ValidationError reports rejected input field by field.
type ValidationError struct {
	What   string
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.What, strings.Join(e.Fields, "; "))
}

func (s *Service) validateInput(what string, v interface{}) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	ve := &ValidationError{What: what}
	for _, fe := range fieldErrs {
		ve.Fields = append(ve.Fields, describeFieldError(fe))
	}
	return ve
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "numeric":
		return fe.Field() + " must be numeric"
	case "uuid":
		return fe.Field() + " must be a UUID"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag())
	}
}

func (s *Service) ListRoomMappings(ctx context.Context) ([]RoomMapping, error) {
	if s.mappings == nil {
		return nil, ErrMappingsUnavailable
	}
	mappings, err := s.mappings.ListMappings(ctx)
	if err != nil {
		return nil, fmt.Errorf("list room mappings: %w", err)
	}
	if mappings == nil {
		mappings = []RoomMapping{}
	}
	return mappings, nil
}

// GetRoomMapping returns the mapping for one prefix, active or not.
func (s *Service) GetRoomMapping(ctx context.Context, prefix string) (RoomMapping, error) {
	if s.mappings == nil {
		return RoomMapping{}, ErrMappingsUnavailable
	}
	prefix = strings.TrimSpace(prefix)
	m, err := s.mappings.GetMapping(ctx, prefix)
	if err != nil {
		return RoomMapping{}, fmt.Errorf("get room mapping %s: %w", prefix, err)
	}
	return m, nil
}

// CreateRoomMapping adds a prefix. New mappings are active unless IsActive is false.
func (s *Service) CreateRoomMapping(ctx context.Context, in RoomMappingInput) (RoomMapping, error) {
	if s.mappings == nil {
		return RoomMapping{}, ErrMappingsUnavailable
	}
	in.RoomPrefix = strings.TrimSpace(in.RoomPrefix)
	if err := s.validateInput("room mapping", in); err != nil {
		return RoomMapping{}, err
	}
	if err := s.checkCoordinator(ctx, in.CoordinatorID); err != nil {
		return RoomMapping{}, err
	}

	m, err := s.mappings.CreateMapping(ctx, RoomMapping{
		RoomPrefix:    in.RoomPrefix,
		CoordinatorID: in.CoordinatorID,
		IsActive:      in.IsActive == nil || *in.IsActive,
	})
	if err != nil {
		return RoomMapping{}, fmt.Errorf("create room mapping %s: %w", in.RoomPrefix, err)
	}
	logging.WithFields(ctx, "room_prefix", m.RoomPrefix, "coordinator_id", m.CoordinatorID).Info("room mapping created")
	return m, nil
}

// UpdateRoomMapping replaces the coordinator and active flag of prefix.
func (s *Service) UpdateRoomMapping(ctx context.Context, prefix string, in RoomMappingInput) error {
	if s.mappings == nil {
		return ErrMappingsUnavailable
	}
	in.RoomPrefix = strings.TrimSpace(prefix)
	if err := s.validateInput("room mapping", in); err != nil {
		return err
	}
	if err := s.checkCoordinator(ctx, in.CoordinatorID); err != nil {
		return err
	}

	err := s.mappings.UpdateMapping(ctx, RoomMapping{
		RoomPrefix:    in.RoomPrefix,
		CoordinatorID: in.CoordinatorID,
		IsActive:      in.IsActive == nil || *in.IsActive,
	})
	if err != nil {
		return fmt.Errorf("update room mapping %s: %w", in.RoomPrefix, err)
	}
	logging.WithFields(ctx, "room_prefix", in.RoomPrefix, "coordinator_id", in.CoordinatorID).Info("room mapping updated")
	return nil
}

func (s *Service) DeleteRoomMapping(ctx context.Context, prefix string) error {
	if s.mappings == nil {
		return ErrMappingsUnavailable
	}
	prefix = strings.TrimSpace(prefix)
	if err := s.mappings.DeleteMapping(ctx, prefix); err != nil {
		return fmt.Errorf("delete room mapping %s: %w", prefix, err)
	}
	logging.WithFields(ctx, "room_prefix", prefix).Info("room mapping deleted")
	return nil
}

// An empty coordinator is allowed: the prefix is then explicitly unassigned.
func (s *Service) checkCoordinator(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	ok, err := s.mappings.CoordinatorExists(ctx, id)
	if err != nil {
		return fmt.Errorf("look up coordinator: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrCoordinatorNotFound, id)
	}
	return nil
}
