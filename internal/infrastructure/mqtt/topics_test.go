package mqtt

import (
	"errors"
	"testing"
)

func TestTopicBuilders(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"service status", NewTopics("demosec").ServiceStatus(), "demosec/system/status"},
		{"auth event", NewTopics("demosec").AuthEvent("login_succeeded"), "demosec/auth/events/login_succeeded"},
		{"all auth events", NewTopics("demosec").AllAuthEvents(), "demosec/auth/events/#"},
		{"trims slashes", NewTopics("/site-a/").AuthEvent("renewed"), "site-a/auth/events/renewed"},
		{"empty prefix falls back", NewTopics("").ServiceStatus(), DefaultTopicPrefix + "/system/status"},
		{"nested prefix", NewTopics("org/app").AuthEvent("logged_out"), "org/app/auth/events/logged_out"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestValidatePublishTopic(t *testing.T) {
	tests := []struct {
		topic   string
		wantErr bool
	}{
		{"demosec/auth/events/renewed", false},
		{"", true},
		{"demosec/auth/events/#", true},
		{"demosec/+/events", true},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			err := validatePublishTopic(tt.topic)
			if (err != nil) != tt.wantErr {
				t.Fatalf("validatePublishTopic(%q) error = %v, wantErr %v", tt.topic, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidTopic) {
				t.Errorf("error = %v, want ErrInvalidTopic", err)
			}
		})
	}
}
