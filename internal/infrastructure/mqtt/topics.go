package mqtt

import "fmt"

// TopicPrefix is the root of every Gray Logic topic.
const TopicPrefix = "graylogic"

// Topics builds the flat bridge topics graylogic/{category}/{protocol}/{id}.
//
//	topics := mqtt.Topics{Protocol: "androidtv"}
//	topics.State("0b6f0c1e")
//	// graylogic/state/androidtv/0b6f0c1e
type Topics struct {
	Protocol string
}

func (t Topics) topic(category, id string) string {
	return fmt.Sprintf("%s/%s/%s/%s", TopicPrefix, category, t.Protocol, id)
}

// Command is where Core sends commands for one entity.
func (t Topics) Command(id string) string { return t.topic("command", id) }

// Ack is where command acknowledgements for one entity go.
func (t Topics) Ack(id string) string { return t.topic("ack", id) }

// State is the retained state topic of one entity.
func (t Topics) State(id string) string { return t.topic("state", id) }

// Request is where Core sends request/response calls.
func (t Topics) Request(requestID string) string { return t.topic("request", requestID) }

// Response carries the answer to a request.
func (t Topics) Response(requestID string) string { return t.topic("response", requestID) }

// Notification carries user-visible notifications raised for one entity.
func (t Topics) Notification(id string) string { return t.topic("notification", id) }

// Health is the retained bridge health topic, also used for the Last Will.
func (t Topics) Health() string {
	return fmt.Sprintf("%s/health/%s", TopicPrefix, t.Protocol)
}

// Discovery announces the entities the bridge manages.
func (t Topics) Discovery() string {
	return fmt.Sprintf("%s/discovery/%s", TopicPrefix, t.Protocol)
}

// CommandSubscribe matches the command topic of every entity.
func (t Topics) CommandSubscribe() string { return t.topic("command", "+") }

// RequestSubscribe matches every request topic.
func (t Topics) RequestSubscribe() string { return t.topic("request", "+") }
