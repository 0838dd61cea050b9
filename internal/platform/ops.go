package platform

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/dispensa/internal/config"
	"github.com/aretw0/dispensa/pkg/adapters/fs"
	"github.com/aretw0/dispensa/pkg/adapters/kv"
	"github.com/aretw0/dispensa/pkg/adapters/local"
	"github.com/aretw0/dispensa/pkg/adapters/memory"
	"github.com/aretw0/dispensa/pkg/auth"
	"github.com/aretw0/dispensa/pkg/core"
)

// OpenStore builds the document store selected by the options.
// The returned close function releases every resource it opened.
func OpenStore(ctx context.Context, root string, opts ...Option) (core.Store, func() error, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return openStore(ctx, root, o)
}

func openStore(ctx context.Context, root string, o *options) (core.Store, func() error, error) {
	noop := func() error { return nil }
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.store != nil {
		return o.store, noop, nil
	}

	sc := o.config.Store
	useTemp := o.devSafety && !sc.ReadOnly && IsDevRun()

	switch sc.Driver {
	case config.DriverMemory:
		s := memory.New(memory.WithLogger(o.logger))
		return s, s.Close, nil

	case config.DriverFS:
		path := ResolvePath(under(root, sc.Path), useTemp)
		if useTemp {
			o.logger.Warn("running in SAFE MODE (Dev/Test)", "original_path", sc.Path, "resolved_path", path)
		}
		s := fs.NewStore(fs.Config{
			Path:      path,
			MustExist: sc.MustExist,
			ReadOnly:  sc.ReadOnly,
			Format:    sc.Format,
			Pattern:   sc.Pattern,
			Debounce:  sc.Debounce,
			Logger:    o.logger,
		})
		if err := s.Initialize(ctx); err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil

	case config.DriverLocal:
		dsn := sc.KV.DSN
		if isFileDSN(sc.KV.Driver, dsn) {
			if dsn == "" {
				dsn = filepath.Join(SystemDir, "dispensa.db")
			}
			dsn = ResolvePath(under(root, dsn), useTemp)
		}
		db, err := kv.Open(ctx, sc.KV.Driver, dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("open local store: %w", err)
		}
		s := local.New(db, local.WithLogger(o.logger))
		return s, func() error {
			err := s.Close()
			if cerr := db.Close(); err == nil {
				err = cerr
			}
			return err
		}, nil

	default:
		return nil, nil, fmt.Errorf("unknown store driver: %s", sc.Driver)
	}
}

// OpenSessions builds the session provider described by cfg.
func OpenSessions(cfg config.AuthConfig) (core.SessionProvider, error) {
	switch cfg.Mode {
	case config.AuthStatic, "":
		return auth.NewStatic(core.Session{
			UID:         cfg.UID,
			Email:       cfg.Email,
			DisplayName: cfg.Name,
		}, cfg.SignedIn), nil
	case config.AuthToken:
		var source auth.TokenSource
		switch {
		case cfg.Token != "":
			source = auth.StaticToken(cfg.Token)
		case cfg.TokenFile != "":
			source = tokenFile(cfg.TokenFile)
		}
		return auth.NewToken([]byte(cfg.Secret), source), nil
	default:
		return nil, fmt.Errorf("unknown auth mode: %s", cfg.Mode)
	}
}

func tokenFile(path string) auth.TokenSource {
	return func(context.Context) (string, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(data)), nil
	}
}

func under(root, p string) string {
	if p == "" || filepath.IsAbs(p) || root == "" {
		return p
	}
	return filepath.Join(root, p)
}

// isFileDSN reports whether dsn names a SQLite file on disk.
func isFileDSN(driver, dsn string) bool {
	switch strings.ToLower(driver) {
	case "", kv.DriverSQLite, "sqlite3":
		return dsn != ":memory:" && !strings.HasPrefix(dsn, "file:")
	}
	return false
}
