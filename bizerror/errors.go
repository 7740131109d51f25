package bizerror

import (
	"errors"
	"fmt"
)

var (
	ErrForbidden              = errors.New("forbidden")
	ErrNotFound               = errors.New("not found")
	ErrUnknownState           = errors.New("unknown state")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrPermissionDenied       = errors.New("permission denied")
	ErrStateMachineValidation = errors.New("state machine validation failed")
	ErrValidation             = errors.New("validation failed")
	ErrConfiguration          = errors.New("configuration error")
	ErrConflict               = errors.New("concurrent modification")
)

type BizError interface {
	Respond() *BizErrorDetail
}

type BizErrorDetail struct {
	Code    string
	Message string
	Data    interface{}

	Cause error
}

type ErrBadParam struct {
	Cause error
}

func (e *ErrBadParam) Unwrap() error {
	return e.Cause
}
func (e *ErrBadParam) Error() string {
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return "common.bad_param"
}
func (e *ErrBadParam) Respond() *BizErrorDetail {
	return &BizErrorDetail{Code: "common.bad_param", Message: e.Error(), Cause: e.Cause}
}

// InvalidStateTransitionError reports an edge that is not declared for the entity type.
type InvalidStateTransitionError struct {
	EntityType string
	From       string
	To         string
}

func NewInvalidStateTransitionError(entityType, from, to string) *InvalidStateTransitionError {
	return &InvalidStateTransitionError{EntityType: entityType, From: from, To: to}
}

func (e *InvalidStateTransitionError) Error() string {
	return fmt.Sprintf("invalid state transition of %s: %s -> %s", e.EntityType, e.From, e.To)
}
func (e *InvalidStateTransitionError) Is(target error) bool {
	return target == ErrInvalidStateTransition
}
func (e *InvalidStateTransitionError) Respond() *BizErrorDetail {
	return &BizErrorDetail{Code: "workflow.invalid_state_transition", Message: e.Error(),
		Data: map[string]string{"entityType": e.EntityType, "from": e.From, "to": e.To}}
}

type PermissionDeniedError struct {
	Permission string
	Reason     string
}

func NewPermissionDeniedError(permission, reason string) *PermissionDeniedError {
	return &PermissionDeniedError{Permission: permission, Reason: reason}
}

func (e *PermissionDeniedError) Error() string {
	if e.Permission != "" {
		return "permission denied: " + e.Permission + " is required"
	}
	if e.Reason != "" {
		return "permission denied: " + e.Reason
	}
	return ErrPermissionDenied.Error()
}
func (e *PermissionDeniedError) Is(target error) bool {
	return target == ErrPermissionDenied || target == ErrForbidden
}
func (e *PermissionDeniedError) Respond() *BizErrorDetail {
	return &BizErrorDetail{Code: "security.permission_denied", Message: e.Error(), Data: e.Permission}
}

// StateMachineValidationError is raised by a transition's validate phase, the entity stays unchanged.
type StateMachineValidationError struct {
	Reason string
}

func NewStateMachineValidationError(format string, args ...interface{}) *StateMachineValidationError {
	return &StateMachineValidationError{Reason: fmt.Sprintf(format, args...)}
}

func (e *StateMachineValidationError) Error() string {
	return "state machine validation failed: " + e.Reason
}
func (e *StateMachineValidationError) Is(target error) bool {
	return target == ErrStateMachineValidation || target == ErrValidation
}
func (e *StateMachineValidationError) Respond() *BizErrorDetail {
	return &BizErrorDetail{Code: "workflow.validation_failed", Message: e.Reason}
}

type ValidationError struct {
	Reason string
}

func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
func (e *ValidationError) Respond() *BizErrorDetail {
	return &BizErrorDetail{Code: "approval.validation_failed", Message: e.Reason}
}

type NotFoundError struct {
	Kind string
	ID   string
}

func NewNotFoundError(kind string, id fmt.Stringer) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id.String()}
}

func (e *NotFoundError) Error() string {
	return e.Kind + " " + e.ID + " not found"
}
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
func (e *NotFoundError) Respond() *BizErrorDetail {
	return &BizErrorDetail{Code: "common.record_not_found", Message: e.Error(), Data: map[string]string{"kind": e.Kind, "id": e.ID}}
}

// ConfigurationError reports broken definitions, e.g. a template that cannot route an instance.
type ConfigurationError struct {
	Reason string
}

func NewConfigurationError(format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Reason: fmt.Sprintf(format, args...)}
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}
func (e *ConfigurationError) Respond() *BizErrorDetail {
	return &BizErrorDetail{Code: "common.configuration_error", Message: e.Reason}
}

type ConflictError struct {
	Reason string
}

func NewConflictError(format string, args ...interface{}) *ConflictError {
	return &ConflictError{Reason: fmt.Sprintf(format, args...)}
}

func (e *ConflictError) Error() string {
	return "concurrent modification: " + e.Reason
}
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}
func (e *ConflictError) Respond() *BizErrorDetail {
	return &BizErrorDetail{Code: "common.conflict", Message: e.Reason}
}
