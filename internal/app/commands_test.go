package app

import (
	"context"
	"testing"
	"time"

	"github.com/j-veylop/token-monitor-tui/internal/services"
)

func TestNotifyCommands(t *testing.T) {
	tests := []struct {
		name     string
		msg      AddNotificationMsg
		wantType NotificationType
		wantDur  time.Duration
	}{
		{"success", notifySuccessCmd("ok")().(AddNotificationMsg), NotificationSuccess, DefaultNotificationDuration},
		{"error", notifyErrorCmd("bad")().(AddNotificationMsg), NotificationError, LongNotificationDuration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.msg.Type != tt.wantType || tt.msg.Duration != tt.wantDur {
				t.Errorf("msg = %+v", tt.msg)
			}
		})
	}
}

func TestTickCmd(t *testing.T) {
	if tickCmd(time.Millisecond) == nil {
		t.Error("tickCmd returned nil")
	}
	if clearNotificationCmd("id", time.Millisecond) == nil {
		t.Error("clearNotificationCmd returned nil")
	}
}

func TestWaitForServiceEventCmd(t *testing.T) {
	ch := make(chan services.ServiceEvent, 1)
	ch <- services.StateChangedEvent{}

	if _, ok := waitForServiceEventCmd(ch)().(ServiceEventMsg); !ok {
		t.Error("expected ServiceEventMsg")
	}

	close(ch)
	if msg := waitForServiceEventCmd(ch)(); msg != nil {
		t.Errorf("closed channel should yield nil, got %#v", msg)
	}
}

func TestRefreshCmd(t *testing.T) {
	mgr := newTestManager(t)

	res := refreshCmd(mgr)().(RefreshResultMsg)
	if res.Err != nil {
		t.Fatalf("refresh: %v", res.Err)
	}
	if mgr.State().Stats == nil {
		t.Error("refresh should commit a snapshot")
	}

	_ = mgr.Close()
	if res := refreshCmd(mgr)().(RefreshResultMsg); res.Err == nil {
		t.Error("refresh after Close should fail")
	}
}

func TestSubscribeToServicesCmd(t *testing.T) {
	mgr := newTestManager(t)

	msg := subscribeToServicesCmd(mgr)().(SubscriptionEventMsg)
	if msg.Channel == nil {
		t.Fatal("nil channel")
	}

	if err := mgr.Mount(); err != nil {
		t.Fatal(err)
	}
	if err := mgr.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	select {
	case ev := <-msg.Channel:
		if _, ok := ev.(services.StateChangedEvent); !ok {
			t.Errorf("event = %T", ev)
		}
	case <-time.After(time.Second):
		t.Fatal("no event broadcast")
	}
}
