package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/catx/internal/catalog"
	"github.com/desertthunder/catx/internal/models"
	"github.com/desertthunder/catx/internal/notify"
	"github.com/desertthunder/catx/internal/realtime"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgLoginDone MsgKind = iota
	MsgUserChanged
	MsgAlbumsChanged
	MsgToast
	MsgChannelState
	MsgNotification
)

// loginDoneMsg is the constructor for [MsgLoginDone]
func loginDoneMsg(err error) Msg {
	return Msg{kind: MsgLoginDone, data: err}
}

// userChangedMsg is the constructor for [MsgUserChanged]
func userChangedMsg(user *models.User) Msg {
	return Msg{kind: MsgUserChanged, data: user}
}

// albumsChangedMsg is the constructor for [MsgAlbumsChanged]
func albumsChangedMsg(state catalog.State) Msg {
	return Msg{kind: MsgAlbumsChanged, data: state}
}

// toastMsg is the constructor for [MsgToast]
func toastMsg(toast *notify.Toast) Msg {
	return Msg{kind: MsgToast, data: toast}
}

// channelStateMsg is the constructor for [MsgChannelState]
func channelStateMsg(state realtime.State) Msg {
	return Msg{kind: MsgChannelState, data: state}
}

// notificationMsg is the constructor for [MsgNotification]
func notificationMsg(n models.AlbumNotification) Msg {
	return Msg{kind: MsgNotification, data: n}
}

// listen waits for the next value on ch. It yields nil once ch is closed, which ends the loop.
func listen[T any](ch <-chan T, wrap func(T) Msg) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		v, ok := <-ch
		if !ok {
			return nil
		}
		return wrap(v)
	}
}
