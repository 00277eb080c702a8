package bootstrap

import (
	"context"

	"github.com/telcoops/vnf-lifecycle-manager/internal/config"
	"github.com/telcoops/vnf-lifecycle-manager/internal/infra/persistence"
)

func openDB(ctx context.Context, cfg config.Config) (*persistence.DB, error) {
	db, err := persistence.New(ctx, persistence.Config{
		WriteDSN:        cfg.Database.WriteDSN,
		ReadDSN:         cfg.Database.ReadDSN,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
		MaxConnIdleTime: cfg.Database.MaxConnIdleTime,
	})
	if err != nil {
		return nil, err
	}

	pingCtx := ctx
	if cfg.Database.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.Database.ConnectTimeout)
		defer cancel()
	}
	if err := db.Ping(pingCtx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
