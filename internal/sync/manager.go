package sync

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/eerkela/pinsync/internal/collection"
	"github.com/eerkela/pinsync/internal/rules"
	"github.com/eerkela/pinsync/internal/state"
)

// Manager discovers the remote board/section tree and applies the
// four-phase engine to every allowed container, boards first, each
// followed by its own sections.
type Manager struct {
	remote  RemoteStore
	local   *collection.LocalStore
	engine  *Engine
	rules   *rules.Rules
	state   *state.State
	logger  *slog.Logger
	root    string
	workers int
}

func NewManager(remote RemoteStore, local *collection.LocalStore, engine *Engine, syncRules *rules.Rules, appState *state.State, logger *slog.Logger, root string, workers int) *Manager {
	if workers < 1 {
		workers = 1
	}

	return &Manager{
		remote:  remote,
		local:   local,
		engine:  engine,
		rules:   syncRules,
		state:   appState,
		logger:  logger,
		root:    root,
		workers: workers,
	}
}

// boardPlan is one board's slice of the sync plan: the board container
// followed by its section containers in listing order.
type boardPlan struct {
	order      int
	containers []*collection.Container
}

// Run performs one full sync pass: discover containers on a bounded
// pool, then reconcile them sequentially in listing order. Console
// confirmation only ever happens inside the sequential loop.
func (m *Manager) Run(ctx context.Context) error {
	// Orphaned non-image files share a filename stem with the remote
	// item they came from; scanning reports them for remote cleanup.
	m.local.SetOrphanFunc(func(ctx context.Context, id string) {
		if err := m.remote.DeleteItem(ctx, id); err != nil {
			m.logger.Warn("remote delete for orphaned file failed",
				slog.String("id", id),
				slog.String("error", err.Error()),
			)
		}
	})

	plans, err := m.discover(ctx)
	if err != nil {
		return fmt.Errorf("discovering containers: %w", err)
	}

	var failures int

	for _, plan := range plans {
		for _, c := range plan.containers {
			stats, err := m.engine.Sync(ctx, c)
			if err != nil {
				if ctx.Err() != nil {
					return err
				}

				failures++

				m.logger.Warn("container sync failed",
					slog.String("container", c.Name()),
					slog.String("error", err.Error()),
				)

				continue
			}

			m.recordPass(c, stats)
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d container(s) failed to sync", failures)
	}

	return nil
}

// discover lists every board, then each allowed board's sections, on a
// bounded pool. Container construction creates the local directories;
// MkdirAll tolerates two workers racing on first creation.
func (m *Manager) discover(ctx context.Context) ([]boardPlan, error) {
	boards, err := m.remote.Boards(ctx)
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)

	plans := make([]boardPlan, 0, len(boards))
	planCh := make(chan boardPlan, len(boards))

	for i, board := range boards {
		i, board := i, board
		if !m.rules.AllowBoard(board.Name) {
			m.logger.Debug("board excluded by rules", slog.String("board", board.Name))
			continue
		}

		g.Go(func() error {
			plan, err := m.planBoard(gctx, board.Name)
			if err != nil {
				return err
			}

			plan.order = i
			planCh <- plan

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	close(planCh)

	for plan := range planCh {
		plans = append(plans, plan)
	}

	sort.Slice(plans, func(i, j int) bool { return plans[i].order < plans[j].order })

	return plans, nil
}

// planBoard builds one board's containers: the board itself (when the
// rules allow it directly), then its sections in listing order.
func (m *Manager) planBoard(ctx context.Context, board string) (boardPlan, error) {
	var plan boardPlan

	if m.rules.Allow(board, "") {
		c, err := collection.NewBoard(m.root, board)
		if err != nil {
			return plan, err
		}

		plan.containers = append(plan.containers, c)
	}

	sections, err := m.remote.Sections(ctx, board)
	if err != nil {
		return plan, err
	}

	for _, section := range sections {
		if !m.rules.Allow(board, section.Title) {
			m.logger.Debug("section excluded by rules",
				slog.String("board", board),
				slog.String("section", section.Title),
			)

			continue
		}

		c, err := collection.NewSection(m.root, board, section.Title)
		if err != nil {
			return plan, err
		}

		plan.containers = append(plan.containers, c)
	}

	return plan, nil
}

func (m *Manager) recordPass(c *collection.Container, stats Stats) {
	rec := state.SyncRecord{
		Container: c.Name(),
		SyncedAt:  time.Now().Unix(),
		Items:     stats.Items,
		Downloads: stats.Downloads,
		Removed:   stats.Removed,
	}

	if err := m.state.SetSyncRecord(rec); err != nil {
		m.logger.Warn("recording sync pass",
			slog.String("container", c.Name()),
			slog.String("error", err.Error()),
		)
	}
}
