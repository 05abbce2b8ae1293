package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/brianndofor/cloudguard/internal/config"
	"github.com/brianndofor/cloudguard/internal/credential"
	"github.com/brianndofor/cloudguard/internal/generator"
	"github.com/brianndofor/cloudguard/internal/github"
	"github.com/brianndofor/cloudguard/internal/lifecycle"
	"github.com/brianndofor/cloudguard/internal/logging"
	"github.com/brianndofor/cloudguard/internal/store"
)

type appKey struct{}

type App struct {
	Config      config.Config
	Project     config.ProjectConfig
	GH          *github.Client
	GenRunner   generator.Runner
	Generator   *generator.Client
	Store       *store.Store
	Engine      *lifecycle.Engine
	Credentials *credential.MemoryCache
	Flight      *lifecycle.Flight
	Exec        ExecRunner
	Logger      *slog.Logger
	Now         func() time.Time
}

func withApp(ctx context.Context, app *App) context.Context {
	return context.WithValue(ctx, appKey{}, app)
}

func getApp(ctx context.Context) (*App, error) {
	app, ok := ctx.Value(appKey{}).(*App)
	if !ok || app == nil {
		return nil, fmt.Errorf("internal error: app not initialized")
	}
	return app, nil
}

func initApp(configPath string, logOut io.Writer) (*App, error) {
	cfg, project, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(logOut, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}

	var ghRunner github.Runner = github.RealRunner{}
	var genRunner generator.Runner = generator.NewClaudeRunner(cfg.Generator)
	var execRunner ExecRunner = RealExecRunner{}
	if os.Getenv("CLOUDGUARD_MOCK") == "1" {
		fixtures := os.Getenv("CLOUDGUARD_MOCK_DIR")
		if fixtures == "" {
			fixtures = filepath.Join("testdata", "gh")
		}
		ghRunner = github.NewFixtureRunner(fixtures)
		genFixtures := os.Getenv("CLOUDGUARD_GENERATOR_FIXTURES")
		if genFixtures == "" {
			genFixtures = filepath.Join("testdata", "generator")
		}
		genRunner = generator.NewFakeRunner(genFixtures)
		execRunner = &FakeExecRunner{}
	}
	gh := github.NewClient(ghRunner)
	if project.GitHub.ControlsDir != "" {
		gh.ControlsDir = project.GitHub.ControlsDir
	}

	storePath := os.Getenv("CLOUDGUARD_DB_PATH")
	if storePath == "" {
		storePath = cfg.Store.Path
	}
	st, err := store.Open(storePath)
	if err != nil {
		return nil, err
	}
	now := clock()
	st.SetClock(now)

	creds := credential.NewMemoryCache()
	gen := generator.NewClient(genRunner, config.Rules(cfg, project), cfg.Redaction.Enabled)
	engine := &lifecycle.Engine{
		Store:       st,
		Backend:     gh,
		Generator:   gen,
		Credentials: creds,
		Logger:      logger,
		Now:         now,
	}

	return &App{
		Config:      cfg,
		Project:     project,
		GH:          gh,
		GenRunner:   genRunner,
		Generator:   gen,
		Store:       st,
		Engine:      engine,
		Credentials: creds,
		Flight:      lifecycle.NewFlight(),
		Exec:        execRunner,
		Logger:      logger,
		Now:         now,
	}, nil
}

// clock honours CLOUDGUARD_NOW so fixture timestamps stay deterministic.
func clock() func() time.Time {
	if value := os.Getenv("CLOUDGUARD_NOW"); value != "" {
		if parsed, err := time.Parse(time.RFC3339, value); err == nil {
			return func() time.Time { return parsed }
		}
	}
	return time.Now
}
