package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/catx/internal/auth"
	"github.com/desertthunder/catx/internal/notify"
	"github.com/desertthunder/catx/internal/pipeline"
	"github.com/desertthunder/catx/internal/realtime"
	"github.com/desertthunder/catx/internal/repositories"
	"github.com/desertthunder/catx/internal/services"
	"github.com/desertthunder/catx/internal/shared"
	"github.com/desertthunder/catx/internal/store"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The session stack (token store, auth manager, request pipeline and API services) is built on
// first use so that commands like setup never touch the database or network.
type Runner struct {
	config      *shared.Config
	configPath  string
	httpClient  *http.Client
	logger      *log.Logger
	output      io.Writer
	interactive bool

	once        sync.Once
	initErr     error
	db          *sql.DB
	store       store.TokenStore
	manager     *auth.Manager
	coordinator *pipeline.Coordinator
	api         *services.APIService
	authClient  *services.AuthClient
	albums      *services.AlbumService
	artists     *services.ArtistService
	toasts      *notify.Service
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config      *shared.Config
	ConfigPath  string
	HTTPClient  *http.Client
	Logger      *log.Logger
	Output      io.Writer
	Store       store.TokenStore // defaults to the SQLite credential store
	Interactive bool             // attached to a terminal
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:      opts.Config,
		configPath:  opts.ConfigPath,
		httpClient:  opts.HTTPClient,
		logger:      opts.Logger,
		output:      opts.Output,
		store:       opts.Store,
		interactive: opts.Interactive,
	}
}

// SetLogger replaces the logger. It must be called before the session stack is built.
func (r *Runner) SetLogger(l *log.Logger) {
	r.logger = l
}

// init builds the session stack once.
//
// Auth endpoints use a plain client; every other call goes through the authorization pipeline.
func (r *Runner) init() error {
	r.once.Do(func() {
		if r.store == nil {
			db, err := shared.OpenDatabase(r.config.Database)
			if err != nil {
				r.initErr = fmt.Errorf("failed to open credential store: %w", err)
				return
			}
			r.db = db
			r.store = store.NewPersistent(repositories.NewCredentialRepository(db), r.config.Origin(), r.logger)
		}

		base := r.httpClient.Transport
		timeout := r.config.API.Timeout.Duration

		plain := services.NewAPIService(r.config.API.BaseURL, &http.Client{Transport: base, Timeout: timeout})
		r.authClient = services.NewAuthClient(plain)

		r.manager = auth.NewManager(auth.ManagerOpts{
			Client:    r.authClient,
			Store:     r.store,
			Logger:    r.logger,
			Navigator: r.navigate,
		})

		r.coordinator = pipeline.NewCoordinator()
		transport := pipeline.NewTransport(pipeline.Options{
			Base:        base,
			Session:     r.manager,
			Coordinator: r.coordinator,
			Logger:      r.logger,
		})

		client := transport.Client()
		client.Timeout = timeout
		r.api = services.NewAPIService(r.config.API.BaseURL, client)
		r.albums = services.NewAlbumService(r.api)
		r.artists = services.NewArtistService(r.api)
		r.toasts = notify.NewService(r.logger)
	})
	return r.initErr
}

func (r *Runner) navigate(route string) {
	if route == auth.LoginRoute {
		r.logger.Warn("session ended, run `catx auth login` to sign in again")
	}
}

// Close releases the session stack.
func (r *Runner) Close() {
	if r.manager != nil {
		r.manager.Close()
	}
	if r.toasts != nil {
		r.toasts.Close()
	}
	if r.db != nil {
		r.db.Close()
	}
}

// newChannel builds the realtime channel, live only when attached to a terminal.
func (r *Runner) newChannel(force bool) *realtime.Channel {
	rt := r.config.Realtime
	tr := realtime.NewTransport(r.interactive || force, realtime.StompOpts{
		URL:       rt.URL,
		Heartbeat: rt.Heartbeat.Duration,
		Logger:    r.logger,
	})
	return realtime.NewChannel(realtime.ChannelOpts{
		Transport:      tr,
		Topic:          rt.Topic,
		ReconnectDelay: rt.ReconnectDelay.Duration,
		Logger:         r.logger,
	})
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, authCommand, albumsCommand, artistsCommand, apiCommand, watchCommand, serveCommand, tuiCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("═══════════════════════════════════════\n")
	r.writePlain("%v\n", title)
	r.writePlain("═══════════════════════════════════════\n")
}
