package androidtv

import (
	"time"

	"github.com/nerrad567/gray-logic-androidtv/internal/player"
)

// Protocol is the protocol identifier used in topics and messages.
const Protocol = "androidtv"

// CommandMessage is sent from Core to the bridge to control a player.
// Topic: graylogic/command/androidtv/{entry_id}
type CommandMessage struct {
	// ID uniquely identifies this command for correlation with acknowledgments.
	ID string `json:"id"`

	// Timestamp is when the command was issued (UTC, ISO8601).
	Timestamp time.Time `json:"timestamp"`

	// EntryID is the target config entry. Empty means the entry named by
	// the topic.
	EntryID string `json:"entry_id,omitempty"`

	// Command is a media-player command (e.g., "play", "volume_set").
	Command string `json:"command,omitempty"`

	// Service is an integration service (e.g., "adb_command", "download").
	// It takes precedence over Command.
	Service string `json:"service,omitempty"`

	// Parameters contains command-specific values.
	// Examples:
	//   {"volume_level": 0.4} for volume_set
	//   {"source": "Netflix"} for select_source
	//   {"command": "HOME"} for the adb_command service
	Parameters map[string]any `json:"parameters,omitempty"`

	// Source indicates where the command originated.
	Source string `json:"source,omitempty"`

	// UserID is the user who triggered the command (if applicable).
	UserID string `json:"user_id,omitempty"`
}

// Name is the command or service name, whichever the message carries.
func (m CommandMessage) Name() string {
	if m.Service != "" {
		return m.Service
	}
	return m.Command
}

// AckStatus represents the acknowledgment status of a command.
type AckStatus string

const (
	// AckAccepted indicates the command ran against a reachable device.
	AckAccepted AckStatus = "accepted"

	// AckFailed indicates the command could not be executed.
	AckFailed AckStatus = "failed"

	// AckTimeout indicates the device did not answer within the timeout.
	AckTimeout AckStatus = "timeout"
)

// AckMessage is sent from the bridge to Core to acknowledge a command.
// Topic: graylogic/ack/androidtv/{entry_id}
type AckMessage struct {
	CommandID string    `json:"command_id"`
	Timestamp time.Time `json:"timestamp"`
	EntryID   string    `json:"entry_id"`
	Status    AckStatus `json:"status"`
	Protocol  string    `json:"protocol"`
	Error     *AckError `json:"error,omitempty"`
}

// AckError contains error details for failed commands.
type AckError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes for command and request failures.
const (
	ErrCodeDeviceUnreachable = "DEVICE_UNREACHABLE"
	ErrCodeDeviceBusy        = "DEVICE_BUSY"
	ErrCodeInvalidCommand    = "INVALID_COMMAND"
	ErrCodeInvalidParameters = "INVALID_PARAMETERS"
	ErrCodeNotSupported      = "NOT_SUPPORTED"
	ErrCodeProtocolError     = "PROTOCOL_ERROR"
	ErrCodeTimeout           = "TIMEOUT"
	ErrCodeNotConfigured     = "NOT_CONFIGURED"
	ErrCodeBridgeError       = "BRIDGE_ERROR"
)

// StateMessage is sent from the bridge to Core when a player's state changes.
// Topic: graylogic/state/androidtv/{entry_id}
// QoS: 1, Retained: Yes
type StateMessage struct {
	EntryID   string       `json:"entry_id"`
	Timestamp time.Time    `json:"timestamp"`
	Protocol  string       `json:"protocol"`
	State     player.State `json:"state"`
}

// NotificationMessage carries a user-visible notification raised by a player.
// Topic: graylogic/notification/androidtv/{entry_id}
type NotificationMessage struct {
	EntryID   string    `json:"entry_id"`
	Timestamp time.Time `json:"timestamp"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
}

// HealthStatus represents the operational status of the bridge.
type HealthStatus string

const (
	// HealthHealthy indicates every player is reachable.
	HealthHealthy HealthStatus = "healthy"

	// HealthDegraded indicates MQTT is down or some players are unreachable.
	HealthDegraded HealthStatus = "degraded"

	// HealthUnhealthy indicates no configured player is reachable.
	HealthUnhealthy HealthStatus = "unhealthy"

	// HealthOffline indicates the bridge is not connected (from LWT).
	HealthOffline HealthStatus = "offline"

	// HealthStarting indicates the bridge is starting up.
	HealthStarting HealthStatus = "starting"

	// HealthStopping indicates the bridge is shutting down.
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage reports the bridge's operational status.
// Topic: graylogic/health/androidtv
// QoS: 1, Retained: Yes
type HealthMessage struct {
	Bridge        string       `json:"bridge"`
	Timestamp     time.Time    `json:"timestamp"`
	Status        HealthStatus `json:"status"`
	Version       string       `json:"version"`
	UptimeSeconds int64        `json:"uptime_seconds"`

	// Players summarises player availability.
	Players *PlayerStatistics `json:"players,omitempty"`

	// Statistics contains operational counters.
	Statistics *BridgeStatistics `json:"statistics,omitempty"`

	// DevicesManaged is the number of configured entries.
	DevicesManaged int `json:"devices_managed"`

	// Reason explains the status (especially for offline/degraded).
	Reason string `json:"reason,omitempty"`
}

// PlayerStatistics counts players by availability.
type PlayerStatistics struct {
	Total       int `json:"total"`
	Available   int `json:"available"`
	Unavailable int `json:"unavailable"`
}

// BridgeStatistics contains operational counters.
type BridgeStatistics struct {
	CommandsReceived uint64 `json:"commands_received"`
	CommandsFailed   uint64 `json:"commands_failed"`
	StatesPublished  uint64 `json:"states_published"`
}

// RequestMessage is sent from Core to the bridge for request/response calls.
// Topic: graylogic/request/androidtv/{request_id}
type RequestMessage struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`

	// Action is the requested operation: "read_state", "read_all" or "reload".
	Action string `json:"action"`

	// EntryID is the target entry for entry-specific actions.
	EntryID string `json:"entry_id,omitempty"`

	Parameters map[string]any `json:"parameters,omitempty"`
}

// Request actions.
const (
	ActionReadState = "read_state"
	ActionReadAll   = "read_all"
	ActionReload    = "reload"
)

// ResponseMessage answers a request.
// Topic: graylogic/response/androidtv/{request_id}
type ResponseMessage struct {
	RequestID string         `json:"request_id"`
	Timestamp time.Time      `json:"timestamp"`
	Success   bool           `json:"success"`
	Data      map[string]any `json:"data,omitempty"`
	Error     *ResponseError `json:"error,omitempty"`
}

// ResponseError contains error details for failed requests.
type ResponseError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// DiscoveryMessage announces the players the bridge manages.
// Topic: graylogic/discovery/androidtv
// QoS: 1, Retained: Yes
type DiscoveryMessage struct {
	Timestamp time.Time          `json:"timestamp"`
	Bridge    string             `json:"bridge"`
	Players   []DiscoveredPlayer `json:"players"`
}

// DiscoveredPlayer describes one managed player.
type DiscoveredPlayer struct {
	EntryID     string             `json:"entry_id"`
	Name        string             `json:"name"`
	Address     string             `json:"address"`
	DeviceClass string             `json:"device_class"`
	Ready       bool               `json:"ready"`
	Device      *player.DeviceInfo `json:"device,omitempty"`
	Features    []string           `json:"supported_features,omitempty"`
	Commands    []string           `json:"commands,omitempty"`
	Services    []string           `json:"services,omitempty"`
}

// NewAckMessage creates an acknowledgment message for a command.
func NewAckMessage(cmd CommandMessage, status AckStatus) AckMessage {
	return AckMessage{
		CommandID: cmd.ID,
		Timestamp: time.Now().UTC(),
		EntryID:   cmd.EntryID,
		Status:    status,
		Protocol:  Protocol,
	}
}

// NewAckError creates an acknowledgment with error details. A TIMEOUT code
// yields the timeout status.
func NewAckError(cmd CommandMessage, code, message string) AckMessage {
	status := AckFailed
	if code == ErrCodeTimeout {
		status = AckTimeout
	}
	ack := NewAckMessage(cmd, status)
	ack.Error = &AckError{Code: code, Message: message}
	return ack
}

// NewStateMessage wraps a player state for publishing.
func NewStateMessage(st player.State) StateMessage {
	return StateMessage{
		EntryID:   st.EntryID,
		Timestamp: time.Now().UTC(),
		Protocol:  Protocol,
		State:     st,
	}
}

// NewHealthMessage creates a health status message.
func NewHealthMessage(bridgeID, version string, status HealthStatus, players PlayerStatistics, stats BridgeStatistics, startTime time.Time) HealthMessage {
	return HealthMessage{
		Bridge:         bridgeID,
		Timestamp:      time.Now().UTC(),
		Status:         status,
		Version:        version,
		UptimeSeconds:  int64(time.Since(startTime).Seconds()),
		Players:        &players,
		Statistics:     &stats,
		DevicesManaged: players.Total,
	}
}

// NewLWTMessage creates the Last Will message the broker publishes when the
// bridge disconnects unexpectedly.
func NewLWTMessage(bridgeID string) HealthMessage {
	return HealthMessage{
		Bridge:    bridgeID,
		Timestamp: time.Now().UTC(),
		Status:    HealthOffline,
		Reason:    "unexpected_disconnect",
	}
}

func successResponse(requestID string, data map[string]any) ResponseMessage {
	return ResponseMessage{
		RequestID: requestID,
		Timestamp: time.Now().UTC(),
		Success:   true,
		Data:      data,
	}
}

func errorResponse(requestID, code, message string) ResponseMessage {
	return ResponseMessage{
		RequestID: requestID,
		Timestamp: time.Now().UTC(),
		Success:   false,
		Error: &ResponseError{
			Code:    code,
			Message: message,
		},
	}
}
