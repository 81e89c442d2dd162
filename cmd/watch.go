package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/catx/internal/catalog"
	"github.com/desertthunder/catx/internal/formatter"
	"github.com/desertthunder/catx/internal/models"
	"github.com/urfave/cli/v3"
)

// Watch connects to the notification channel and prints album changes until interrupted.
//
// Without a terminal the channel is disabled unless --force is given.
func (r *Runner) Watch(ctx context.Context, cmd *cli.Command) error {
	force := cmd.Bool("force")
	if !r.interactive && !force {
		r.logger.Warn("live updates need a terminal, pass --force to connect anyway")
		return nil
	}

	channel := r.newChannel(force)
	defer channel.Close()

	notifications, cancel := channel.Notifications()
	defer cancel()
	states, cancelStates := channel.States()
	defer cancelStates()

	var reloaded <-chan catalog.State
	if cmd.Bool("reload") {
		if err := r.init(); err != nil {
			return err
		}
		list := catalog.NewAlbumList(catalog.AlbumListOpts{Source: r.albums, Reporter: r.toasts, Logger: r.logger})
		defer list.Close()

		updates, cancelList := channel.Notifications()
		defer cancelList()
		changes, cancelChanges := list.Changes()
		defer cancelChanges()
		reloaded = settled(ctx, list, changes)

		go list.Watch(ctx, updates)
	}

	r.logger.Info("watching albums", "url", r.config.Realtime.URL, "topic", r.config.Realtime.Topic)
	channel.Connect(ctx)

	asJSON := cmd.Bool("json")
	for {
		select {
		case <-ctx.Done():
			return nil
		case s, ok := <-states:
			if !ok {
				return nil
			}
			r.logger.Debug("channel state", "state", s)
		case n, ok := <-notifications:
			if !ok {
				return nil
			}
			if err := r.printNotification(n, asJSON); err != nil {
				return err
			}
		case state := <-reloaded:
			if err := r.printState(state, asJSON); err != nil {
				return err
			}
		}
	}
}

// settled forwards list states once each reload has finished.
func settled(ctx context.Context, list *catalog.AlbumList, changes <-chan catalog.State) <-chan catalog.State {
	out := make(chan catalog.State)
	go func() {
		seen := list.Reloads()
		for {
			select {
			case <-ctx.Done():
				return
			case state, ok := <-changes:
				if !ok {
					return
				}
				if state.Loading || list.Reloads() == seen {
					continue
				}
				seen = list.Reloads()
				select {
				case out <- state:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func (r *Runner) printNotification(n models.AlbumNotification, asJSON bool) error {
	if asJSON {
		return r.writeJSON(n, false)
	}
	if n.ReleaseYear > 0 {
		return r.writePlain("%-6s #%d %s (%d)\n", n.Action, n.ID, n.Title, n.ReleaseYear)
	}
	return r.writePlain("%-6s #%d %s\n", n.Action, n.ID, n.Title)
}

func (r *Runner) printState(state catalog.State, asJSON bool) error {
	if state.Err != nil {
		r.logger.Warn("reload failed", "error", state.Err)
		return nil
	}
	page := &models.Page[models.Album]{
		Content:       state.Albums,
		TotalElements: state.TotalElements,
		TotalPages:    state.TotalPages,
		Size:          state.Size,
		Number:        state.Page,
	}
	f := formatter.FormatText
	if asJSON {
		f = formatter.FormatJSON
	}
	data, err := formatter.Render(f, page)
	if err != nil {
		return fmt.Errorf("failed to render albums: %w", err)
	}
	_, err = r.output.Write(data)
	return err
}
