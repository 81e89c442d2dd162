package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/catx/internal/catalog"
	"github.com/desertthunder/catx/internal/shared"
	"github.com/desertthunder/catx/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive album browser.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(cmd.String("log-file"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	if err := r.init(); err != nil {
		return err
	}

	albums := catalog.NewAlbumList(catalog.AlbumListOpts{
		Source:   r.albums,
		Reporter: r.toasts,
		Logger:   r.logger,
	})
	defer albums.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	channel := r.newChannel(false)
	defer channel.Close()

	updates, cancelUpdates := channel.Notifications()
	defer cancelUpdates()
	go albums.Watch(ctx, updates)
	channel.Connect(ctx)

	model := ui.NewModel(ctx, ui.Deps{
		Session: r.manager,
		Albums:  albums,
		Toasts:  r.toasts,
		Channel: channel,
	})
	defer model.Close()

	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
