package imaging

import (
	"context"
	"fmt"
	"time"

	"github.com/Jane1217/branch-aware-workflow-scheduler/internal/app"
	"github.com/Jane1217/branch-aware-workflow-scheduler/internal/config"
	"github.com/Jane1217/branch-aware-workflow-scheduler/pkg/domain/workflow"
	"github.com/Jane1217/branch-aware-workflow-scheduler/pkg/logger"
)

// TissueMask computes a tissue mask summary for a slide image (a tissue
// fraction per tile and the overall tissue coverage) using the same tiled
// processing architecture as cell segmentation. No pixel mask is produced.
type TissueMask struct {
	cfg     config.ExecutorConfig
	storage *Storage
	logger  *logger.Logger

	// TileDelay throttles per-tile processing; tests leave it zero.
	TileDelay time.Duration
}

// NewTissueMask creates the executor.
func NewTissueMask(cfg config.ExecutorConfig, storage *Storage, log *logger.Logger) *TissueMask {
	return &TissueMask{
		cfg:     cfg,
		storage: storage,
		logger:  log.With("executor", "tissue_mask"),
	}
}

// Execute implements the executor contract.
func (e *TissueMask) Execute(ctx context.Context, job *workflow.Job, report app.ProgressSink) (string, error) {
	width, height, err := slideDimensions(job.ImagePath, e.cfg.WSILevel)
	if err != nil {
		return "", err
	}

	tiles := TileGrid(width, height, e.cfg.TileSize, e.cfg.TileOverlap)
	total := len(tiles)
	if total == 0 {
		return "", fmt.Errorf("image %s produced an empty tile grid", job.ImagePath)
	}

	var tissueArea int64
	var totalArea int64
	maskTiles := make([]map[string]any, 0, total)
	for i, tile := range tiles {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}
		if e.TileDelay > 0 {
			time.Sleep(e.TileDelay)
		}

		area := int64(tile.Width) * int64(tile.Height)
		// Tissue fraction per tile in [0, 1), derived from the tile hash.
		fraction := float64(tileHash(job.ImagePath, tile)%1000) / 1000.0
		covered := int64(fraction * float64(area))
		tissueArea += covered
		totalArea += area
		maskTiles = append(maskTiles, map[string]any{
			"tile":            tile,
			"tissue_fraction": fraction,
		})

		report(float64(i+1)/float64(total), i+1, total)
	}

	coverage := 0.0
	if totalArea > 0 {
		coverage = float64(tissueArea) / float64(totalArea)
	}

	doc := map[string]any{
		"job_id":          job.JobID,
		"job_type":        string(job.Type),
		"image_path":      job.ImagePath,
		"dimensions":      map[string]int{"width": width, "height": height},
		"tile_size":       e.cfg.TileSize,
		"overlap":         e.cfg.TileOverlap,
		"num_tiles":       total,
		"tissue_coverage": coverage,
		"tiles":           maskTiles,
	}
	path, err := e.storage.Save(job.JobID, suffixTissueMask, doc)
	if err != nil {
		return "", err
	}

	e.logger.Debug("tissue mask complete",
		"job_id", job.JobID,
		"tiles", total,
		"coverage", coverage,
	)
	return path, nil
}
