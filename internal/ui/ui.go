package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/catx/internal/auth"
	"github.com/desertthunder/catx/internal/catalog"
	"github.com/desertthunder/catx/internal/models"
	"github.com/desertthunder/catx/internal/notify"
	"github.com/desertthunder/catx/internal/realtime"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	LoginView ViewState = iota
	AlbumListView
	ConfirmDeleteView
)

// Session is the part of [auth.Manager] the TUI drives.
type Session interface {
	Login(ctx context.Context, creds models.Credentials) (*auth.Session, error)
	Logout()
	IsAuthenticated() bool
	Users() (<-chan *models.User, func())
}

// Deps are the long-lived services the TUI renders. Channel may be nil.
type Deps struct {
	Session Session
	Albums  *catalog.AlbumList
	Toasts  *notify.Service
	Channel *realtime.Channel
}

// Model represents the TUI application state.
type Model struct {
	ctx     context.Context
	view    ViewState
	session Session
	albums  *catalog.AlbumList
	toasts  *notify.Service
	width   int
	height  int

	username  textinput.Model
	password  textinput.Model
	searching bool
	search    textinput.Model
	albumList list.Model
	state     catalog.State
	pending   *models.Album

	user      *models.User
	toast     *notify.Toast
	connState realtime.State

	users         <-chan *models.User
	changes       <-chan catalog.State
	toastStream   <-chan *notify.Toast
	states        <-chan realtime.State
	notifications <-chan models.AlbumNotification
	cancels       []func()

	help help.Model
	keys keyMap
}

// NewModel creates a new TUI model and subscribes to its services. Call [Model.Close] when the
// program exits.
func NewModel(ctx context.Context, deps Deps) *Model {
	username := textinput.New()
	username.Placeholder = "username"
	username.Prompt = "Username: "
	username.Focus()

	password := textinput.New()
	password.Placeholder = "password"
	password.Prompt = "Password: "
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'

	search := textinput.New()
	search.Prompt = "Search: "
	search.Placeholder = "title or artist"

	albumList := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	albumList.Title = "Albums"
	albumList.SetFilteringEnabled(false)
	albumList.SetShowHelp(false)

	m := &Model{
		ctx:       ctx,
		session:   deps.Session,
		albums:    deps.Albums,
		toasts:    deps.Toasts,
		username:  username,
		password:  password,
		search:    search,
		albumList: albumList,
		help:      help.New(),
		keys:      newKeyMap(),
	}
	if deps.Session.IsAuthenticated() {
		m.view = AlbumListView
	}

	var cancel func()
	m.users, cancel = deps.Session.Users()
	m.cancels = append(m.cancels, cancel)
	m.changes, cancel = deps.Albums.Changes()
	m.cancels = append(m.cancels, cancel)
	m.toastStream, cancel = deps.Toasts.Toasts()
	m.cancels = append(m.cancels, cancel)
	if deps.Channel != nil {
		m.states, cancel = deps.Channel.States()
		m.cancels = append(m.cancels, cancel)
		m.notifications, cancel = deps.Channel.Notifications()
		m.cancels = append(m.cancels, cancel)
	}
	return m
}

// Close ends every subscription opened by [NewModel].
func (m *Model) Close() {
	for _, cancel := range m.cancels {
		cancel()
	}
	m.cancels = nil
}

// Init starts listening to every service and loads the first page when a session exists.
func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		textinput.Blink,
		listen(m.users, userChangedMsg),
		listen(m.changes, albumsChangedMsg),
		listen(m.toastStream, toastMsg),
		listen(m.states, channelStateMsg),
		listen(m.notifications, notificationMsg),
	}
	if m.view == AlbumListView {
		cmds = append(cmds, m.run(m.albums.Reload))
	}
	return tea.Batch(cmds...)
}

// View returns the active view.
func (m *Model) View() string {
	var body string
	switch m.view {
	case LoginView:
		body = m.renderLogin()
	case AlbumListView:
		body = m.renderAlbums()
	case ConfirmDeleteView:
		body = m.renderConfirm()
	}

	if m.toast != nil {
		body = styles.Toast(m.toast) + "\n" + body
	}
	return body
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.albumList.SetSize(msg.Width-4, max(msg.Height-10, 4))
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		switch m.view {
		case LoginView:
			return m.handleLoginKeys(msg)
		case AlbumListView:
			return m.handleAlbumKeys(msg)
		case ConfirmDeleteView:
			return m.handleConfirmKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateInputs(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgLoginDone:
		if err, _ := msg.data.(error); err != nil {
			m.toasts.Report(err)
			m.password.SetValue("")
			return m, nil
		}
		return m, m.enterAlbums()

	case MsgUserChanged:
		m.user, _ = msg.data.(*models.User)
		next := listen(m.users, userChangedMsg)
		switch {
		case m.user == nil && !m.session.IsAuthenticated() && m.view != LoginView:
			m.enterLogin()
		case m.user != nil && m.view == LoginView:
			return m, tea.Batch(next, m.enterAlbums())
		}
		return m, next

	case MsgAlbumsChanged:
		m.state = msg.data.(catalog.State)
		cmd := m.albumList.SetItems(albumItems(m.state.Albums))
		return m, tea.Batch(cmd, listen(m.changes, albumsChangedMsg))

	case MsgToast:
		m.toast, _ = msg.data.(*notify.Toast)
		return m, listen(m.toastStream, toastMsg)

	case MsgChannelState:
		m.connState = msg.data.(realtime.State)
		return m, listen(m.states, channelStateMsg)

	case MsgNotification:
		n := msg.data.(models.AlbumNotification)
		m.toasts.Info(describe(n))
		return m, listen(m.notifications, notificationMsg)
	}
	return m, nil
}

func describe(n models.AlbumNotification) string {
	var verb string
	switch n.Action {
	case models.ActionCreate:
		verb = "added"
	case models.ActionUpdate:
		verb = "updated"
	case models.ActionDelete:
		verb = "removed"
	default:
		verb = strings.ToLower(string(n.Action))
	}
	if n.Title == "" {
		return fmt.Sprintf("Album #%d %s", n.ID, verb)
	}
	return fmt.Sprintf("Album %q %s", n.Title, verb)
}

func (m *Model) enterAlbums() tea.Cmd {
	if m.view != LoginView {
		return nil
	}
	m.view = AlbumListView
	m.username.Blur()
	m.password.Blur()
	m.password.SetValue("")
	return m.run(m.albums.Reload)
}

func (m *Model) enterLogin() {
	m.view = LoginView
	m.searching = false
	m.pending = nil
	m.password.SetValue("")
	m.password.Blur()
	m.username.Focus()
}

func (m *Model) handleLoginKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.back):
		return m, tea.Quit
	case key.Matches(msg, m.keys.tab):
		if m.username.Focused() {
			m.username.Blur()
			return m, m.password.Focus()
		}
		m.password.Blur()
		return m, m.username.Focus()
	case key.Matches(msg, m.keys.enter):
		if m.username.Focused() {
			m.username.Blur()
			return m, m.password.Focus()
		}
		return m, m.login()
	}
	return m.updateInputs(msg)
}

func (m *Model) login() tea.Cmd {
	creds := models.Credentials{
		Username: strings.TrimSpace(m.username.Value()),
		Password: m.password.Value(),
	}
	if creds.Username == "" || creds.Password == "" {
		m.toasts.Warning("Username and password are required")
		return nil
	}
	return func() tea.Msg {
		_, err := m.session.Login(m.ctx, creds)
		return loginDoneMsg(err)
	}
}

func (m *Model) handleAlbumKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.searching {
		switch {
		case key.Matches(msg, m.keys.enter):
			m.searching = false
			m.search.Blur()
			term := m.search.Value()
			return m, m.run(func(ctx context.Context) error { return m.albums.SetSearchTerm(ctx, term) })
		case key.Matches(msg, m.keys.back):
			m.searching = false
			m.search.Blur()
			m.search.SetValue("")
			return m, m.run(func(ctx context.Context) error { return m.albums.SetSearchTerm(ctx, "") })
		}
		var cmd tea.Cmd
		m.search, cmd = m.search.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.next):
		return m, m.run(m.albums.NextPage)
	case key.Matches(msg, m.keys.prev):
		return m, m.run(m.albums.PreviousPage)
	case key.Matches(msg, m.keys.sort):
		return m, m.run(m.albums.ToggleSortOrder)
	case key.Matches(msg, m.keys.refresh):
		return m, m.run(m.albums.Reload)
	case key.Matches(msg, m.keys.search):
		m.searching = true
		return m, m.search.Focus()
	case key.Matches(msg, m.keys.logout):
		m.session.Logout()
		m.enterLogin()
		return m, nil
	case key.Matches(msg, m.keys.delete):
		if item, ok := m.albumList.SelectedItem().(albumItem); ok {
			album := item.album
			m.pending = &album
			m.view = ConfirmDeleteView
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.albumList, cmd = m.albumList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.yes):
		id, title := m.pending.ID, m.pending.Title
		m.pending = nil
		m.view = AlbumListView
		return m, m.run(func(ctx context.Context) error {
			if err := m.albums.Delete(ctx, id); err != nil {
				return err
			}
			m.toasts.Success(fmt.Sprintf("Deleted %q", title))
			return nil
		})
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.quit):
		m.pending = nil
		m.view = AlbumListView
	}
	return m, nil
}

func (m *Model) updateInputs(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds [2]tea.Cmd
	switch m.view {
	case LoginView:
		m.username, cmds[0] = m.username.Update(msg)
		m.password, cmds[1] = m.password.Update(msg)
	case AlbumListView:
		if m.searching {
			m.search, cmds[0] = m.search.Update(msg)
		} else {
			m.albumList, cmds[0] = m.albumList.Update(msg)
		}
	}
	return m, tea.Batch(cmds[:]...)
}

// run performs a blocking album list operation off the update loop. Results arrive through
// [catalog.AlbumList.Changes]; failures are reported as toasts by the list itself.
func (m *Model) run(op func(context.Context) error) tea.Cmd {
	return func() tea.Msg {
		op(m.ctx)
		return nil
	}
}

func (m *Model) renderLogin() string {
	title := styles.title.Render("catx • Log in")
	helpKeys := []key.Binding{m.keys.tab, m.keys.enter, m.keys.back}
	return fmt.Sprintf("%s\n%s\n%s\n\n%s", title, m.username.View(), m.password.View(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderAlbums() string {
	var top string
	if m.searching {
		top = m.search.View() + "\n"
	} else if m.state.SearchTerm != "" {
		top = styles.help.Render(fmt.Sprintf("Filtered by %q (esc in search clears)", m.state.SearchTerm)) + "\n"
	}

	helpKeys := []key.Binding{m.keys.next, m.keys.prev, m.keys.sort, m.keys.search, m.keys.delete, m.keys.logout, m.keys.quit}
	return fmt.Sprintf("%s%s\n%s\n%s", top, m.albumList.View(), m.statusLine(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) statusLine() string {
	parts := []string{}
	if m.user != nil {
		parts = append(parts, "user: "+m.user.Username)
	}
	parts = append(parts, "live: "+m.liveStatus())

	pages := max(m.state.TotalPages, 1)
	parts = append(parts, fmt.Sprintf("page %d/%d", m.state.Page+1, pages))
	parts = append(parts, fmt.Sprintf("%d albums", m.state.TotalElements))
	parts = append(parts, "sort "+string(m.state.SortDirection))
	if m.state.Loading {
		parts = append(parts, "loading…")
	}
	return styles.help.Render(strings.Join(parts, " • "))
}

func (m *Model) liveStatus() string {
	switch m.connState {
	case realtime.Connected:
		return styles.ok.Render(m.connState.String())
	case realtime.Connecting:
		return styles.warn.Render(m.connState.String())
	default:
		return styles.err.Render(m.connState.String())
	}
}

func (m *Model) renderConfirm() string {
	if m.pending == nil {
		return ""
	}
	title := styles.title.Render(fmt.Sprintf("Delete '%s'?", m.pending.Title))
	info := fmt.Sprintf("\nArtists: %s\nThis cannot be undone.\n", m.pending.ArtistNames())
	helpKeys := []key.Binding{m.keys.yes, m.keys.no}
	return fmt.Sprintf("%s\n%s\n%s", title, info, m.help.ShortHelpView(helpKeys))
}
