package types

import (
	"reflect"
	"testing"
)

func TestMessageStatusTransitions(t *testing.T) {
	tests := []struct {
		name string
		from MessageStatus
		to   MessageStatus
		want bool
	}{
		{"sending to sent", MESSAGE_STATUS_SENDING, MESSAGE_STATUS_SENT, true},
		{"sent to delivered", MESSAGE_STATUS_SENT, MESSAGE_STATUS_DELIVERED, true},
		{"delivered to read", MESSAGE_STATUS_DELIVERED, MESSAGE_STATUS_READ, true},
		{"sending to read skips ahead", MESSAGE_STATUS_SENDING, MESSAGE_STATUS_READ, true},
		{"sent to sending is backward", MESSAGE_STATUS_SENT, MESSAGE_STATUS_SENDING, false},
		{"read to delivered is backward", MESSAGE_STATUS_READ, MESSAGE_STATUS_DELIVERED, false},
		{"sending to failed", MESSAGE_STATUS_SENDING, MESSAGE_STATUS_FAILED, true},
		{"sent to failed", MESSAGE_STATUS_SENT, MESSAGE_STATUS_FAILED, true},
		{"delivered to failed", MESSAGE_STATUS_DELIVERED, MESSAGE_STATUS_FAILED, false},
		{"read is terminal", MESSAGE_STATUS_READ, MESSAGE_STATUS_FAILED, false},
		{"failed is terminal", MESSAGE_STATUS_FAILED, MESSAGE_STATUS_SENT, false},
		{"same status is not a transition", MESSAGE_STATUS_SENT, MESSAGE_STATUS_SENT, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.want {
				t.Errorf("CanTransition(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestReactionSetIdempotence(t *testing.T) {
	var r ReactionSet

	r = r.Add("👍", "u1")
	r = r.Add("👍", "u2")
	r = r.Add("👍", "u1") // duplicate add is a no-op
	if got := r["👍"]; !reflect.DeepEqual(got, []string{"u1", "u2"}) {
		t.Fatalf("unexpected reaction users: %v", got)
	}

	r = r.Remove("👍", "u3") // removing a missing reaction is a no-op
	if got := r["👍"]; !reflect.DeepEqual(got, []string{"u1", "u2"}) {
		t.Fatalf("remove of absent user changed set: %v", got)
	}

	r = r.Remove("👍", "u1")
	r = r.Remove("👍", "u2")
	if _, exist := r["👍"]; exist {
		t.Fatal("empty emoji entry should be dropped")
	}
}

func TestReactionSetScanRoundTrip(t *testing.T) {
	var r ReactionSet
	r = r.Add("🎉", "u9")

	var scanned ReactionSet
	if err := scanned.Scan([]byte(r.String())); err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if !reflect.DeepEqual(scanned, r) {
		t.Fatalf("round trip mismatch: %v != %v", scanned, r)
	}
}

func TestStreamStateTransitions(t *testing.T) {
	tests := []struct {
		name string
		from StreamState
		to   StreamState
		want bool
	}{
		{"pending to generating", STREAM_STATE_PENDING, STREAM_STATE_GENERATING, true},
		{"generating to streaming", STREAM_STATE_GENERATING, STREAM_STATE_STREAMING, true},
		{"streaming to complete", STREAM_STATE_STREAMING, STREAM_STATE_COMPLETE, true},
		{"pending to complete skips streaming", STREAM_STATE_PENDING, STREAM_STATE_COMPLETE, false},
		{"generating to failed", STREAM_STATE_GENERATING, STREAM_STATE_FAILED, true},
		{"streaming to cancelled", STREAM_STATE_STREAMING, STREAM_STATE_CANCELLED, true},
		{"pending to cancelled", STREAM_STATE_PENDING, STREAM_STATE_CANCELLED, false},
		{"complete is terminal", STREAM_STATE_COMPLETE, STREAM_STATE_FAILED, false},
		{"cancelled is terminal", STREAM_STATE_CANCELLED, STREAM_STATE_STREAMING, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.want {
				t.Errorf("CanTransition(%s -> %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}
