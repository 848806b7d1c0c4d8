// Package notify sends desktop notifications when workflows and stages finish.
package notify

import "time"

// NotificationType represents the type of notification event
type NotificationType string

const (
	TypeSuccess NotificationType = "success"
	TypeFailure NotificationType = "failure"
	TypeInfo    NotificationType = "info"
)

// DispatchTimeout bounds a single notification dispatch.
const DispatchTimeout = 5 * time.Second

// OutputType represents the notification output type
type OutputType string

const (
	OutputSound  OutputType = "sound"
	OutputVisual OutputType = "visual"
	OutputBoth   OutputType = "both"
)

// OutputTypes lists the accepted values for notifications.type.
func OutputTypes() []string {
	return []string{string(OutputSound), string(OutputVisual), string(OutputBoth)}
}

// ValidOutputType checks if the given string is a valid output type
func ValidOutputType(s string) bool {
	switch OutputType(s) {
	case OutputSound, OutputVisual, OutputBoth:
		return true
	default:
		return false
	}
}

// NotificationConfig holds the notifications section of the appgen config.
type NotificationConfig struct {
	// Enabled is the master switch (default: false, opt-in)
	Enabled bool `koanf:"enabled" yaml:"enabled" json:"enabled"`

	Type      OutputType `koanf:"type" yaml:"type" json:"type"`
	SoundFile string     `koanf:"sound_file" yaml:"sound_file" json:"sound_file"`

	// OnWorkflowComplete notifies when a workflow reaches a terminal status.
	OnWorkflowComplete bool `koanf:"on_workflow_complete" yaml:"on_workflow_complete" json:"on_workflow_complete"`

	// OnCommandComplete notifies when a CLI command finishes.
	OnCommandComplete bool `koanf:"on_command_complete" yaml:"on_command_complete" json:"on_command_complete"`

	// OnStageComplete notifies after each stage (default: false)
	OnStageComplete bool `koanf:"on_stage_complete" yaml:"on_stage_complete" json:"on_stage_complete"`

	OnError bool `koanf:"on_error" yaml:"on_error" json:"on_error"`

	// OnLongRunning restricts completion notifications to runs longer than
	// LongRunningThreshold. A threshold of 0 or less always notifies.
	OnLongRunning        bool          `koanf:"on_long_running" yaml:"on_long_running" json:"on_long_running"`
	LongRunningThreshold time.Duration `koanf:"long_running_threshold" yaml:"long_running_threshold" json:"long_running_threshold"`
}

// DefaultConfig returns a NotificationConfig with default values
func DefaultConfig() NotificationConfig {
	return NotificationConfig{
		Enabled:              false,
		Type:                 OutputBoth,
		OnWorkflowComplete:   true,
		OnCommandComplete:    false,
		OnStageComplete:      false,
		OnError:              true,
		OnLongRunning:        false,
		LongRunningThreshold: 30 * time.Second,
	}
}

// Notification is a single notification to dispatch.
type Notification struct {
	Title            string
	Message          string
	NotificationType NotificationType
}

// NewNotification creates a new Notification with the given parameters
func NewNotification(title, message string, notificationType NotificationType) Notification {
	return Notification{
		Title:            title,
		Message:          message,
		NotificationType: notificationType,
	}
}
