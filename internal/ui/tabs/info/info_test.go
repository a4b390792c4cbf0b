package info

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/token-monitor-tui/internal/app"
	"github.com/j-veylop/token-monitor-tui/internal/config"
	"github.com/j-veylop/token-monitor-tui/internal/store"
)

func localConfig() *config.Config {
	return &config.Config{
		DatabasePath: "/var/lib/monitor/monitor.db",
		WatchPaths:   []string{"/var/lib/monitor"},
		CostAlertUSD: 25,
		LogLevel:     "info",
	}
}

func TestNew(t *testing.T) {
	m := New(app.NewState(), localConfig())
	if m == nil {
		t.Fatal("New returned nil")
	}
	if m.Init() != nil {
		t.Error("Init should return nil")
	}
}

func TestModel_ViewLocal(t *testing.T) {
	state := app.NewState()
	state.SetView(store.State{LastUpdated: time.Date(2026, 1, 2, 3, 4, 5, 0, time.Local), Version: 7})
	m := New(state, localConfig())
	m.SetSize(100, 60)

	view := m.View()
	for _, want := range []string{"local", "/var/lib/monitor/monitor.db", "$25.00 per day", "not used", "2026-01-02 03:04:05", "Go Version"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestModel_ViewRemote(t *testing.T) {
	state := app.NewState()
	state.SetView(store.State{StreamState: "connected", Version: 1})
	cfg := &config.Config{
		BackendURL:              "https://monitor.example.com",
		StreamURL:               "wss://monitor.example.com/ws",
		StreamReconnectDelay:    time.Second,
		StreamMaxReconnectDelay: 30 * time.Second,
		StreamMaxReconnects:     10,
	}
	m := New(state, cfg)
	m.SetSize(100, 60)

	view := m.View()
	for _, want := range []string{"remote", "https://monitor.example.com", "wss://monitor.example.com/ws", "10 retries", "connected", "off"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
	if strings.Contains(view, "Database") {
		t.Error("remote mode should not show the database path")
	}
}

func TestModel_ViewWithoutConfig(t *testing.T) {
	m := New(app.NewState(), nil)
	m.SetSize(80, 40)
	if !strings.Contains(m.View(), "Configuration not loaded") {
		t.Error("expected placeholder without config")
	}
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("c")}); cmd != nil {
		t.Error("nothing to copy without config")
	}
}

func TestModel_Copy(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *config.Config
		err      error
		wantText string
		wantType app.NotificationType
	}{
		{"local copies database path", localConfig(), nil, "/var/lib/monitor/monitor.db", app.NotificationSuccess},
		{"remote copies backend url", &config.Config{BackendURL: "http://localhost:8080"}, nil, "http://localhost:8080", app.NotificationSuccess},
		{"clipboard failure", localConfig(), errors.New("no clipboard"), "/var/lib/monitor/monitor.db", app.NotificationError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(app.NewState(), tt.cfg)
			var copied string
			m.copyText = func(s string) error {
				copied = s
				return tt.err
			}

			_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("c")})
			if cmd == nil {
				t.Fatal("expected copy command")
			}
			note, ok := cmd().(app.AddNotificationMsg)
			if !ok {
				t.Fatal("expected AddNotificationMsg")
			}
			if copied != tt.wantText {
				t.Errorf("copied %q, want %q", copied, tt.wantText)
			}
			if note.Type != tt.wantType {
				t.Errorf("notification type = %v, want %v", note.Type, tt.wantType)
			}
		})
	}
}

func TestModel_Help(t *testing.T) {
	m := New(app.NewState(), nil)
	if len(m.ShortHelp()) != 1 || len(m.FullHelp()) != 2 {
		t.Error("unexpected help bindings")
	}
}
