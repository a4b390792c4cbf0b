package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/j-veylop/token-monitor-tui/internal/backend"
	"github.com/j-veylop/token-monitor-tui/internal/logger"
	"github.com/j-veylop/token-monitor-tui/internal/models"
	"github.com/j-veylop/token-monitor-tui/internal/services"
	"github.com/j-veylop/token-monitor-tui/internal/store"
)

func init() {
	logger.Discard()
}

type fakeBackend struct {
	backend.Backend
}

func (fakeBackend) GetCurrentStats(context.Context) (*models.Snapshot, error) {
	return &models.Snapshot{TotalInputTokens: 100, TotalCostUSD: 1.5}, nil
}

func (fakeBackend) GetTodayProviderStats(context.Context) ([]models.ProviderStats, error) {
	name := "Work"
	return []models.ProviderStats{
		{Provider: models.Provider{ID: 1, DisplayName: &name, IsActive: true}, TodayCostUSD: 1},
		{Provider: models.Provider{ID: 2, APIKeyPrefix: "sk-ant-b"}},
	}, nil
}

func (fakeBackend) GetDailyActivities(context.Context, string, string) ([]models.DailyActivity, error) {
	return []models.DailyActivity{}, nil
}

func (fakeBackend) DeleteProvider(_ context.Context, id int64) error {
	if id == 99 {
		return &backend.CommandError{Command: backend.CmdDeleteProvider, Message: "provider 99 not found"}
	}
	return nil
}

func newTestManager(t *testing.T) *services.Manager {
	t.Helper()
	mgr := services.NewManager(store.New(), services.Options{
		Backend: fakeBackend{},
		Notify:  func(string, string) error { return nil },
	})
	t.Cleanup(func() { _ = mgr.Close() })
	return mgr
}

// fakeTab records the messages it receives.
type fakeTab struct {
	capturing bool
	received  []tea.Msg
	width     int
}

func (f *fakeTab) Init() tea.Cmd { return nil }
func (f *fakeTab) Update(msg tea.Msg) (Tab, tea.Cmd) {
	f.received = append(f.received, msg)
	return f, nil
}
func (f *fakeTab) View() string              { return "fake tab" }
func (f *fakeTab) SetSize(width, _ int)      { f.width = width }
func (f *fakeTab) ShortHelp() []key.Binding  { return nil }
func (f *fakeTab) FullHelp() [][]key.Binding { return nil }
func (f *fakeTab) CapturingInput() bool      { return f.capturing }

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestNewModel(t *testing.T) {
	model := NewModel(nil)
	if model.state == nil {
		t.Error("State should be initialized")
	}
	if model.activeTab != TabDashboard {
		t.Error("Default tab should be Dashboard")
	}
	if len(model.tabs) != 4 {
		t.Errorf("tabs = %d, want 4", len(model.tabs))
	}
	if model.Init() == nil {
		t.Error("Init returned nil command")
	}
}

func TestModel_Update_WindowSize(t *testing.T) {
	model := NewModel(nil)
	tab := &fakeTab{}
	model.SetTabs([]Tab{tab, nil, nil, nil})

	newModel, _ := model.Update(tea.WindowSizeMsg{Width: 100, Height: 50})
	m := newModel.(*Model)

	if m.width != 100 || m.height != 50 || !m.IsReady() {
		t.Errorf("size = %dx%d ready=%v", m.width, m.height, m.ready)
	}
	if tab.width != 100 {
		t.Errorf("tab width = %d, want 100", tab.width)
	}
}

func TestModel_KeyBindings(t *testing.T) {
	tests := []struct {
		name string
		key  tea.KeyMsg
		want TabID
	}{
		{"tab 2", runes("2"), TabProviders},
		{"tab 3", runes("3"), TabHistory},
		{"tab 4", runes("4"), TabInfo},
		{"next", tea.KeyMsg{Type: tea.KeyTab}, TabProviders},
		{"prev wraps", tea.KeyMsg{Type: tea.KeyShiftTab}, TabInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := NewModel(nil)
			model.Update(tt.key)
			if model.GetActiveTab() != tt.want {
				t.Errorf("active tab = %v, want %v", model.GetActiveTab(), tt.want)
			}
		})
	}
}

func TestModel_QuitAndRefreshKeys(t *testing.T) {
	model := NewModel(nil)

	cmd, handled := model.handleKeyMsg(runes("q"))
	if !handled || cmd == nil {
		t.Fatal("q should be handled")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q should quit")
	}

	cmd, handled = model.handleKeyMsg(runes("r"))
	if !handled || cmd == nil {
		t.Fatal("r should be handled")
	}
	if _, ok := cmd().(RefreshMsg); !ok {
		t.Error("r should request a refresh")
	}
}

func TestModel_InputCaptureBypassesGlobalKeys(t *testing.T) {
	model := NewModel(nil)
	tab := &fakeTab{capturing: true}
	model.SetTabs([]Tab{tab, nil, nil, nil})

	model.Update(runes("q"))
	model.Update(runes("2"))

	if model.GetActiveTab() != TabDashboard {
		t.Error("global binding applied while the tab captures input")
	}
	if len(tab.received) != 2 {
		t.Errorf("tab received %d keys, want 2", len(tab.received))
	}

	cmd, handled := model.handleKeyMsg(tea.KeyMsg{Type: tea.KeyCtrlC})
	if !handled {
		t.Fatal("ctrl+c must always be handled")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("ctrl+c should quit")
	}
}

func TestModel_HandleServiceEvent(t *testing.T) {
	model := NewModel(nil)
	model.state.SetLoadingNotification("Loading...")

	cmd := model.handleServiceEvent(services.StateChangedEvent{State: store.State{Version: 4}})
	if cmd == nil {
		t.Fatal("newer state should produce a StateUpdatedMsg")
	}
	if msg, ok := cmd().(StateUpdatedMsg); !ok || msg.State.Version != 4 {
		t.Errorf("msg = %#v", msg)
	}
	if len(model.state.GetNotifications()) != 0 {
		t.Error("loading notification should clear once not loading")
	}

	if cmd := model.handleServiceEvent(services.StateChangedEvent{State: store.State{Version: 2}}); cmd != nil {
		t.Error("older state must be ignored")
	}
	if model.state.View().Version != 4 {
		t.Errorf("version = %d, want 4", model.state.View().Version)
	}

	model.handleServiceEvent(services.StateChangedEvent{State: store.State{Version: 5, IsLoading: true}})
	if n := model.state.GetNotifications(); len(n) != 1 || n[0].Type != NotificationLoading || n[0].Message != "Loading usage..." {
		t.Errorf("notifications = %+v, want loading", n)
	}

	model.handleServiceEvent(services.StateChangedEvent{State: store.State{Version: 6, IsLoading: true, Stats: &models.Snapshot{}}})
	if n := model.state.GetNotifications(); len(n) != 1 || n[0].Message != "Refreshing usage..." {
		t.Errorf("notifications = %+v, want refreshing", n)
	}

	cmd = model.handleServiceEvent(services.ErrorEvent{Service: "stream", Error: errors.New("dial failed")})
	msg := cmd().(AddNotificationMsg)
	if msg.Type != NotificationError || !strings.Contains(msg.Message, "dial failed") {
		t.Errorf("error notification = %+v", msg)
	}
}

func TestModel_StateFromManager(t *testing.T) {
	mgr := newTestManager(t)
	model := NewModel(mgr)

	if err := mgr.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	msg := currentStateCmd(mgr)()
	model.Update(msg)

	view := model.GetState().View()
	if view.Stats == nil || view.Stats.TotalCostUSD != 1.5 {
		t.Fatalf("view stats = %+v", view.Stats)
	}
	if model.GetState().IsInitialLoading() {
		t.Error("state should not be loading after the first snapshot")
	}
	if model.GetState().ProviderCount() != 2 {
		t.Errorf("providers = %d, want 2", model.GetState().ProviderCount())
	}
}

func TestModel_MutationCommands(t *testing.T) {
	mgr := newTestManager(t)
	if err := mgr.Refresh(context.Background()); err != nil {
		t.Fatal(err)
	}

	res := deleteProviderCmd(mgr, DeleteProviderMsg{ProviderID: 2, Label: "sk-ant-b..."})().(MutationResultMsg)
	if res.Err != nil || res.Action != ActionDelete {
		t.Fatalf("delete result = %+v", res)
	}
	for _, p := range mgr.State().Providers {
		if p.ID == 2 {
			t.Error("provider 2 still present after delete")
		}
	}

	res = deleteProviderCmd(mgr, DeleteProviderMsg{ProviderID: 99})().(MutationResultMsg)
	notice := mutationNotice(res)().(AddNotificationMsg)
	if notice.Type != NotificationError || notice.Message != "provider 99 not found" {
		t.Errorf("notice = %+v, want verbatim backend error", notice)
	}
}

func TestMutationNotice(t *testing.T) {
	tests := []struct {
		msg  MutationResultMsg
		want string
	}{
		{MutationResultMsg{Action: ActionAdd, Label: "Team"}, "Added provider Team"},
		{MutationResultMsg{Action: ActionRename, Label: "Ops"}, "Renamed provider to Ops"},
		{MutationResultMsg{Action: ActionDelete, Label: "Old"}, "Deleted provider Old"},
		{MutationResultMsg{Action: ActionAdd, Err: errors.New("connection refused")}, "connection refused"},
	}

	for _, tt := range tests {
		got := mutationNotice(tt.msg)().(AddNotificationMsg)
		if got.Message != tt.want {
			t.Errorf("mutationNotice(%+v) = %q, want %q", tt.msg, got.Message, tt.want)
		}
	}

	if mutationNotice(MutationResultMsg{Action: "unknown"}) != nil {
		t.Error("unknown action should produce no notice")
	}
}

func TestModel_Notifications(t *testing.T) {
	model := NewModel(nil)

	model.Update(AddNotificationMsg{Type: NotificationSuccess, Message: "saved", Duration: DefaultNotificationDuration})
	notifications := model.state.GetNotifications()
	if len(notifications) != 1 || notifications[0].Message != "saved" {
		t.Fatalf("notifications = %+v", notifications)
	}

	model.Update(RemoveNotificationMsg{ID: notifications[0].ID})
	if len(model.state.GetNotifications()) != 0 {
		t.Error("notification should be removed")
	}
}

func TestModel_View(t *testing.T) {
	model := NewModel(nil)
	if !strings.Contains(model.View(), "Loading") {
		t.Error("view before ready should show loading")
	}

	model.SetTabs([]Tab{&fakeTab{}, nil, nil, nil})
	model.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	model.state.SetView(store.State{Version: 1, StreamState: "connected"})
	model.Update(AddNotificationMsg{Type: NotificationError, Message: "boom"})
	model.Update(ToggleHelpMsg{})

	view := model.View()
	for _, want := range []string{"Dashboard", "Providers", "stream:", "boom", "Keyboard Shortcuts"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestModel_HandleSpinnerTick(t *testing.T) {
	model := NewModel(nil)
	_, cmd := model.Update(spinner.TickMsg{ID: model.spinner.ID()})
	if cmd == nil {
		t.Error("spinner tick should schedule the next tick")
	}
}

func TestTabID_String(t *testing.T) {
	tests := []struct {
		tab  TabID
		want string
	}{
		{TabDashboard, "Dashboard"},
		{TabProviders, "Providers"},
		{TabHistory, "History"},
		{TabInfo, "Info"},
		{TabID(99), "Unknown"},
	}
	for _, tt := range tests {
		if got := tt.tab.String(); got != tt.want {
			t.Errorf("TabID(%d).String() = %q, want %q", tt.tab, got, tt.want)
		}
	}
}

func TestDefaultKeyMap(t *testing.T) {
	km := DefaultKeyMap()
	if len(km.ShortHelp()) == 0 || len(km.FullHelp()) == 0 {
		t.Error("help bindings should not be empty")
	}
}

func TestModel_TabSwitchNotifiesNewTab(t *testing.T) {
	model := NewModel(nil)
	dash, history := &fakeTab{}, &fakeTab{}
	model.SetTabs([]Tab{dash, &fakeTab{}, history, &fakeTab{}})

	model.Update(runes("3"))

	if len(history.received) != 1 {
		t.Fatalf("history received %d messages, want 1", len(history.received))
	}
	if msg, ok := history.received[0].(TabSwitchMsg); !ok || msg.Tab != TabHistory {
		t.Errorf("received %#v, want TabSwitchMsg{TabHistory}", history.received[0])
	}
	if len(dash.received) != 0 {
		t.Errorf("previous tab received %v", dash.received)
	}

	model.Update(runes("3"))
	if len(history.received) != 1 {
		t.Error("re-selecting the active tab should not notify it again")
	}
}
