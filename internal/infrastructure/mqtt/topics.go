package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is used when the configuration leaves topic_prefix empty.
const DefaultTopicPrefix = "demosec"

// Topics builds the topic names this service publishes to.
//
//	topics := mqtt.NewTopics("demosec")
//	topics.AuthEvent("login_succeeded")
//	// Returns: "demosec/auth/events/login_succeeded"
type Topics struct {
	prefix string
}

// NewTopics returns a topic builder rooted at prefix. Leading and trailing
// slashes are trimmed; an empty prefix falls back to DefaultTopicPrefix.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the root of every topic.
func (t Topics) Prefix() string {
	return t.prefix
}

// ServiceStatus returns the retained online/offline status topic.
//
// Example: demosec/system/status
func (t Topics) ServiceStatus() string {
	return t.prefix + "/system/status"
}

// AuthEvent returns the topic for one kind of authentication event.
//
// Example: demosec/auth/events/renewal_rejected
func (t Topics) AuthEvent(kind string) string {
	return fmt.Sprintf("%s/auth/events/%s", t.prefix, kind)
}

// AllAuthEvents returns a subscription filter matching every auth event.
//
// Example: demosec/auth/events/#
func (t Topics) AllAuthEvents() string {
	return t.prefix + "/auth/events/#"
}

// validatePublishTopic rejects topics a broker would refuse for PUBLISH.
func validatePublishTopic(topic string) error {
	if topic == "" {
		return fmt.Errorf("%w: topic cannot be empty", ErrInvalidTopic)
	}
	if strings.ContainsAny(topic, "+#") {
		return fmt.Errorf("%w: wildcards are not allowed in publish topic %q", ErrInvalidTopic, topic)
	}
	return nil
}
