// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI has three views:
//  1. [LoginView] : username and password form backed by the session manager
//  2. [AlbumListView] : paginated album list with search, sort and a live connection indicator
//  3. [ConfirmDeleteView] : confirm removing the selected album
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Service streams (current user, album list snapshots, toasts, realtime state and notifications) are each read by a
// command that re-arms itself after every value, so updates never block the render loop.
//
// A forced logout (for example a failed token refresh) publishes a nil user, which returns the TUI to the login view.
package ui
