package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/sessionkeeper/internal/dbx"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/repositories/passwordresets"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/repositories/ratelimits"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/repositories/remembertokens"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to either the pool or an open
// transaction, so services can compose several of them atomically.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	RememberTokens(db dbx.DBTX) remembertokens.Repository
	PasswordResets(db dbx.DBTX) passwordresets.Repository
	RateLimits(db dbx.DBTX) ratelimits.Repository
}
