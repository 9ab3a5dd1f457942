package androidtv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	atv "github.com/nerrad567/gray-logic-androidtv/internal/androidtv"
	"github.com/nerrad567/gray-logic-androidtv/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-androidtv/internal/player"
)

// topicParts is the number of parts in graylogic/{category}/androidtv/{id}.
const topicParts = 4

// handleMQTTMessage routes incoming MQTT messages to the command or request
// handler.
func (b *Bridge) handleMQTTMessage(topic string, payload []byte) error {
	parts := strings.Split(topic, "/")
	if len(parts) != topicParts {
		return fmt.Errorf("invalid topic format: %s", topic)
	}

	switch parts[1] {
	case "command":
		return b.handleCommand(parts[3], payload)
	case "request":
		return b.handleRequest(parts[3], payload)
	default:
		return fmt.Errorf("unknown message type: %s", parts[1])
	}
}

// ── Commands ───────────────────────────────────────────────────────

// handleCommand runs a command from Core and acknowledges it. The entry is
// taken from the message or, when absent, from the topic.
func (b *Bridge) handleCommand(topicID string, payload []byte) error {
	var cmd CommandMessage
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("parse command: %w", err)
	}
	if cmd.EntryID == "" {
		cmd.EntryID = topicID
	}

	b.publishAck(b.Dispatch(cmd))
	return nil
}

// Dispatch runs a command against its player and returns the ack without
// publishing it. Commands from MQTT and from the HTTP API both pass through
// here, so both are counted and written to telemetry.
func (b *Bridge) Dispatch(cmd CommandMessage) AckMessage {
	b.commandsReceived.Add(1)
	b.logger.Info("received command",
		"command_id", cmd.ID,
		"entry_id", cmd.EntryID,
		"command", cmd.Name(),
		"source", cmd.Source)

	start := time.Now()
	ack := b.executeCommand(cmd)

	if ack.Status != AckAccepted {
		b.commandsFailed.Add(1)
		b.logger.Warn("command failed",
			"command_id", cmd.ID,
			"entry_id", cmd.EntryID,
			"code", ack.Error.Code,
			"message", ack.Error.Message)
	}

	if b.telemetry != nil {
		b.telemetry.WriteCommand(influxdb.CommandPoint{
			EntryID:  cmd.EntryID,
			Command:  cmd.Name(),
			Status:   string(ack.Status),
			Duration: time.Since(start),
		})
	}
	return ack
}

// executeCommand runs cmd against its player. A command on an unavailable
// player fails, as does one during which the connection was lost or one
// skipped because the connection was busy.
func (b *Bridge) executeCommand(cmd CommandMessage) AckMessage {
	h := b.handle(cmd.EntryID)
	if h == nil {
		return NewAckError(cmd, ErrCodeNotConfigured,
			fmt.Sprintf("entry %s not configured", cmd.EntryID))
	}
	_, p := h.get()
	if p == nil {
		return NewAckError(cmd, ErrCodeDeviceUnreachable,
			fmt.Sprintf("entry %s has not connected to its device", cmd.EntryID))
	}
	if !p.Available() {
		return NewAckError(cmd, ErrCodeDeviceUnreachable, "player unavailable")
	}
	if cmd.Name() == "" {
		return NewAckError(cmd, ErrCodeInvalidCommand, "command or service is required")
	}

	ctx, cancel := context.WithTimeout(b.ctx, b.commandTimeout)
	defer cancel()

	var err error
	if cmd.Service != "" {
		err = p.CallService(ctx, cmd.Service, cmd.Parameters)
	} else {
		err = p.Execute(ctx, cmd.Command, cmd.Parameters)
	}
	if err != nil {
		return NewAckError(cmd, errorCode(err), err.Error())
	}
	if !p.Available() {
		return NewAckError(cmd, ErrCodeDeviceUnreachable, "connection to the device was lost")
	}

	// Commands change state locally (volume, adb_response); publish it now
	// rather than waiting for the next poll.
	b.publishState(p.State())
	return NewAckMessage(cmd, AckAccepted)
}

// errorCode maps a player error to an ack error code.
func errorCode(err error) string {
	switch {
	case errors.Is(err, player.ErrUnknownService):
		return ErrCodeInvalidCommand
	case errors.Is(err, player.ErrInvalidParameters),
		errors.Is(err, atv.ErrInvalidVolume),
		errors.Is(err, atv.ErrEmptyCommand):
		return ErrCodeInvalidParameters
	case errors.Is(err, player.ErrNotSupported),
		errors.Is(err, atv.ErrVolumeUnknown):
		return ErrCodeNotSupported
	case errors.Is(err, player.ErrBusy):
		return ErrCodeDeviceBusy
	case errors.Is(err, context.DeadlineExceeded):
		return ErrCodeTimeout
	default:
		return ErrCodeProtocolError
	}
}

func (b *Bridge) publishAck(ack AckMessage) {
	payload, err := json.Marshal(ack)
	if err != nil {
		b.logger.Error("failed to marshal ack", "error", err)
		return
	}
	if err := b.mqtt.Publish(b.topics.Ack(ack.EntryID), payload, 1, false); err != nil {
		b.logger.Error("failed to publish ack", "command_id", ack.CommandID, "error", err)
	}
}

// ── Requests ───────────────────────────────────────────────────────

// handleRequest answers a request from Core on the response topic.
func (b *Bridge) handleRequest(topicID string, payload []byte) error {
	var req RequestMessage
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("parse request: %w", err)
	}
	if req.RequestID == "" {
		req.RequestID = topicID
	}

	b.logger.Info("received request",
		"request_id", req.RequestID,
		"action", req.Action,
		"entry_id", req.EntryID)

	var resp ResponseMessage
	switch req.Action {
	case ActionReadState:
		resp = b.handleReadState(req)
	case ActionReadAll:
		resp = b.handleReadAll(req)
	case ActionReload:
		resp = b.handleReload(req)
	default:
		resp = errorResponse(req.RequestID, ErrCodeInvalidCommand,
			fmt.Sprintf("unknown action: %s", req.Action))
	}

	respPayload, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	if err := b.mqtt.Publish(b.topics.Response(req.RequestID), respPayload, 1, false); err != nil {
		return fmt.Errorf("publish response: %w", err)
	}
	return nil
}

func (b *Bridge) handleReadState(req RequestMessage) ResponseMessage {
	if req.EntryID == "" {
		return errorResponse(req.RequestID, ErrCodeInvalidParameters, "entry_id is required")
	}
	st, err := b.State(req.EntryID)
	if err != nil {
		return errorResponse(req.RequestID, ErrCodeNotConfigured,
			fmt.Sprintf("entry %s not configured", req.EntryID))
	}
	return successResponse(req.RequestID, map[string]any{"state": st})
}

func (b *Bridge) handleReadAll(req RequestMessage) ResponseMessage {
	states := b.States()
	return successResponse(req.RequestID, map[string]any{
		"states": states,
		"count":  len(states),
	})
}

func (b *Bridge) handleReload(req RequestMessage) ResponseMessage {
	if req.EntryID == "" {
		return errorResponse(req.RequestID, ErrCodeInvalidParameters, "entry_id is required")
	}
	if err := b.ReloadEntry(req.EntryID); err != nil {
		if errors.Is(err, ErrPlayerNotFound) {
			return errorResponse(req.RequestID, ErrCodeNotConfigured,
				fmt.Sprintf("entry %s not configured", req.EntryID))
		}
		return errorResponse(req.RequestID, ErrCodeBridgeError, err.Error())
	}
	return successResponse(req.RequestID, map[string]any{
		"message": "player reloading, state updates will follow",
	})
}
