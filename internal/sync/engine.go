package sync

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"github.com/eerkela/pinsync/internal/collection"
	"github.com/eerkela/pinsync/internal/dedupe"
	"github.com/eerkela/pinsync/internal/manifest"
	"github.com/eerkela/pinsync/internal/pinterest"
)

//go:generate mockgen -source=engine.go -destination=mock_remote_test.go -package=sync

// RemoteStore is the remote side of the reconciliation. Implemented by
// pinterest.Client; mocked in tests.
type RemoteStore interface {
	Boards(ctx context.Context) ([]pinterest.BoardInfo, error)
	Sections(ctx context.Context, board string) ([]pinterest.SectionInfo, error)
	ListItems(ctx context.Context, container *collection.Container) ([]collection.RemoteItem, error)
	DeleteItem(ctx context.Context, id string) error
	FetchPayload(ctx context.Context, item collection.RemoteItem) (io.ReadCloser, error)
}

// Stats summarizes one container's sync pass.
type Stats struct {
	Items     int
	Downloads int
	Removed   int
}

// Engine reconciles a single container in four ordered phases:
//
//  1. Push confirmed local deletions to the remote side.
//  2. Converge existence: delete local items gone remotely, download
//     remote items missing locally.
//  3. Eliminate exact-hash duplicates, mirroring each removal remotely.
//  4. Persist the manifest from the final scan.
//
// Phases for one container always run sequentially. Pushing manual
// deletions first prevents phase 2 from re-downloading a file the user
// just removed; deduplicating only after convergence prevents removing
// a duplicate whose sibling no longer exists remotely.
type Engine struct {
	remote    RemoteStore
	local     *collection.LocalStore
	manifests *manifest.Manifest
	confirm   Confirmer
	logger    *slog.Logger
	workers   int
}

func NewEngine(remote RemoteStore, local *collection.LocalStore, manifests *manifest.Manifest, confirm Confirmer, logger *slog.Logger, workers int) *Engine {
	if workers < 1 {
		workers = 1
	}

	return &Engine{
		remote:    remote,
		local:     local,
		manifests: manifests,
		confirm:   confirm,
		logger:    logger,
		workers:   workers,
	}
}

// Sync runs the four-phase reconciliation for one container.
func (e *Engine) Sync(ctx context.Context, c *collection.Container) (Stats, error) {
	var stats Stats

	e.logger.Info("syncing container", slog.String("container", c.Name()))

	if err := e.pushLocalDeletions(ctx, c); err != nil {
		return stats, fmt.Errorf("pushing local deletions for %s: %w", c.Name(), err)
	}

	downloads, removed, err := e.convergeExistence(ctx, c)
	if err != nil {
		return stats, fmt.Errorf("converging %s: %w", c.Name(), err)
	}

	stats.Downloads = downloads
	stats.Removed = removed

	duplicates, err := e.eliminateDuplicates(ctx, c)
	if err != nil {
		return stats, fmt.Errorf("deduplicating %s: %w", c.Name(), err)
	}

	stats.Removed += duplicates

	items, err := e.persistManifest(ctx, c)
	if err != nil {
		return stats, fmt.Errorf("persisting manifest for %s: %w", c.Name(), err)
	}

	stats.Items = items

	e.logger.Info("container synced",
		slog.String("container", c.Name()),
		slog.Int("items", stats.Items),
		slog.Int("downloads", stats.Downloads),
		slog.Int("removed", stats.Removed),
	)

	return stats, nil
}

// pushLocalDeletions is phase 1: ids present in the previous manifest
// but absent from disk were deleted by hand since the last pass. With
// the user's confirmation each one is deleted remotely too; answering
// no skips the phase with no side effects. Per-id deletes are
// best-effort.
func (e *Engine) pushLocalDeletions(ctx context.Context, c *collection.Container) error {
	scan, err := e.local.Scan(ctx, c)
	if err != nil {
		return err
	}

	deleted := e.manifests.ExternallyDeleted(c, scan)
	if len(deleted) == 0 {
		return nil
	}

	prompt := fmt.Sprintf("%d file(s) were deleted locally from %s; delete them remotely as well?", len(deleted), c.Name())

	ok, err := e.confirm.Confirm(ctx, prompt)
	if err != nil {
		return err
	}

	if !ok {
		e.logger.Info("keeping remote copies of locally deleted items",
			slog.String("container", c.Name()),
			slog.Int("count", len(deleted)),
		)

		return nil
	}

	for _, id := range deleted {
		if err := e.remote.DeleteItem(ctx, id); err != nil {
			e.logger.Warn("remote delete failed",
				slog.String("container", c.Name()),
				slog.String("id", id),
				slog.String("error", err.Error()),
			)
		}
	}

	return nil
}

// convergeExistence is phase 2: the remote listing is the source of
// truth for which ids exist. Local items absent remotely are deleted;
// remote items absent locally are downloaded on a bounded pool.
func (e *Engine) convergeExistence(ctx context.Context, c *collection.Container) (downloads, removed int, err error) {
	remoteItems, err := e.remote.ListItems(ctx, c)
	if err != nil {
		return 0, 0, err
	}

	// Phase 1 confirmations and orphan handling may have changed the
	// directory since the first scan.
	e.local.Invalidate(c)

	scan, err := e.local.Scan(ctx, c)
	if err != nil {
		return 0, 0, err
	}

	remoteByID := make(map[string]collection.RemoteItem, len(remoteItems))
	for _, it := range remoteItems {
		remoteByID[it.ID] = it
	}

	localIDs := make(map[string]struct{}, len(scan))

	for _, it := range scan {
		localIDs[it.ID] = struct{}{}

		if _, ok := remoteByID[it.ID]; !ok {
			if err := e.local.Remove(c, it); err != nil {
				return downloads, removed, err
			}

			removed++
		}
	}

	var missing []collection.RemoteItem

	for _, it := range remoteItems {
		if _, ok := localIDs[it.ID]; !ok {
			missing = append(missing, it)
		}
	}

	if len(missing) == 0 {
		return downloads, removed, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for _, it := range missing {
		it := it
		g.Go(func() error {
			return e.download(gctx, c, it)
		})
	}

	if err := g.Wait(); err != nil {
		e.local.Invalidate(c)
		return downloads, removed, err
	}

	downloads = len(missing)
	e.local.Invalidate(c)

	return downloads, removed, nil
}

// download materializes one remote item at <container>/<id><ext>. An
// abort mid-write removes the partial file before the error propagates;
// a truncated image on disk would poison every later scan.
func (e *Engine) download(ctx context.Context, c *collection.Container, item collection.RemoteItem) error {
	body, err := e.remote.FetchPayload(ctx, item)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", item.ID, err)
	}
	defer body.Close()

	dest := filepath.Join(c.Path, item.Filename())

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dest, err)
	}

	if _, err := io.Copy(f, &ctxReader{ctx: ctx, r: body}); err != nil {
		f.Close()
		os.Remove(dest)

		return fmt.Errorf("downloading %s: %w", item.ID, err)
	}

	if err := f.Close(); err != nil {
		os.Remove(dest)
		return fmt.Errorf("writing %s: %w", dest, err)
	}

	e.logger.Debug("downloaded item",
		slog.String("container", c.Name()),
		slog.String("id", item.ID),
	)

	return nil
}

// eliminateDuplicates is phase 3: after convergence, local files with
// identical hashes collapse to one keeper each. Every removed local
// file gets a matching best-effort remote delete so the next pass does
// not download it straight back.
func (e *Engine) eliminateDuplicates(ctx context.Context, c *collection.Container) (int, error) {
	scan, err := e.local.Scan(ctx, c)
	if err != nil {
		return 0, err
	}

	removed := dedupe.Resolve(c, scan, e.local, e.logger)

	for _, it := range removed {
		if err := e.remote.DeleteItem(ctx, it.ID); err != nil {
			e.logger.Warn("remote delete of duplicate failed",
				slog.String("container", c.Name()),
				slog.String("id", it.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	return len(removed), nil
}

// persistManifest is phase 4: the final scan becomes the next pass's
// baseline.
func (e *Engine) persistManifest(ctx context.Context, c *collection.Container) (int, error) {
	scan, err := e.local.Scan(ctx, c)
	if err != nil {
		return 0, err
	}

	if err := e.manifests.Persist(c, scan); err != nil {
		return 0, err
	}

	return len(scan), nil
}

// ctxReader aborts an in-flight copy as soon as the context is
// cancelled instead of waiting out the transfer.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}

	return c.r.Read(p)
}
