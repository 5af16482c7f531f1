package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/talclub-next/internal/config"
	"github.com/talclub-next/internal/constants"
	"github.com/talclub-next/internal/models"
)

func TestDispatchPendingDeliversAndMarks(t *testing.T) {
	s := setupReferralTestStack(t, "notify_pending")

	if err := s.notification.Emit(1, constants.NotifyTypeNewReferral, models.JSON{"member_id": 2}); err != nil {
		t.Fatalf("emit failed: %v", err)
	}
	if err := s.notification.Emit(1, constants.NotifyTypePromotion, models.JSON{"to_level": 2}); err != nil {
		t.Fatalf("emit failed: %v", err)
	}

	delivered, err := s.notification.DispatchPending(context.Background(), 10)
	if err != nil {
		t.Fatalf("dispatch pending failed: %v", err)
	}
	if delivered != 2 {
		t.Fatalf("expected 2 delivered, got %d", delivered)
	}

	// 已投递事件不重复投递
	delivered, err = s.notification.DispatchPending(context.Background(), 10)
	if err != nil {
		t.Fatalf("second dispatch failed: %v", err)
	}
	if delivered != 0 {
		t.Fatalf("expected nothing left to deliver, got %d", delivered)
	}
}

func TestWebhookChannelPostsEvent(t *testing.T) {
	received := make(chan map[string]interface{}, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode webhook body failed: %v", err)
		}
		received <- body
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	channel := NewWebhookChannel(&config.NotifyConfig{WebhookURL: server.URL, TimeoutMS: 2000})
	event := &models.NotificationEvent{
		MemberID:  7,
		EventType: constants.NotifyTypePromotion,
		Payload:   models.JSON{"to_level": 3},
	}
	event.ID = 99

	if err := channel.Deliver(context.Background(), event); err != nil {
		t.Fatalf("deliver failed: %v", err)
	}
	body := <-received
	if body["event_type"] != constants.NotifyTypePromotion {
		t.Fatalf("unexpected event type %v", body["event_type"])
	}
	if body["member_id"] != float64(7) {
		t.Fatalf("unexpected member id %v", body["member_id"])
	}
}

func TestWebhookChannelRejectsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	channel := NewWebhookChannel(&config.NotifyConfig{WebhookURL: server.URL, TimeoutMS: 2000})
	if err := channel.Deliver(context.Background(), &models.NotificationEvent{MemberID: 1}); err == nil {
		t.Fatalf("expected error for non-2xx response")
	}
}
