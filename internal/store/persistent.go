package store

import (
	"errors"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/catx/internal/repositories"
	"github.com/desertthunder/catx/internal/shared"
)

// Persistent is a [TokenStore] backed by [repositories.CredentialRepository].
type Persistent struct {
	repo   *repositories.CredentialRepository
	origin string
	logger *log.Logger
}

// NewPersistent scopes repo to origin. A nil logger defaults to [shared.NewLogger].
func NewPersistent(repo *repositories.CredentialRepository, origin string, logger *log.Logger) *Persistent {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Persistent{
		repo:   repo,
		origin: origin,
		logger: shared.WithLogger(logger, "component", "store", "origin", origin),
	}
}

func (p *Persistent) Set(kind Kind, value string) {
	if err := p.repo.Put(p.origin, string(kind), value); err != nil {
		p.logger.Warn("failed to persist credential", "kind", kind, "error", err)
	}
}

func (p *Persistent) Get(kind Kind) (string, bool) {
	value, err := p.repo.Get(p.origin, string(kind))
	if err != nil {
		if !errors.Is(err, repositories.ErrCredentialNotFound) {
			p.logger.Warn("failed to read credential", "kind", kind, "error", err)
		}
		return "", false
	}
	return value, value != ""
}

func (p *Persistent) Clear() {
	if _, err := p.repo.DeleteAll(p.origin); err != nil {
		p.logger.Warn("failed to clear credentials", "error", err)
	}
}
