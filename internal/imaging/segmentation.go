package imaging

import (
	"context"
	"fmt"
	"hash/fnv"
	"os"
	"time"

	"github.com/Jane1217/branch-aware-workflow-scheduler/internal/app"
	"github.com/Jane1217/branch-aware-workflow-scheduler/internal/config"
	"github.com/Jane1217/branch-aware-workflow-scheduler/pkg/domain/workflow"
	"github.com/Jane1217/branch-aware-workflow-scheduler/pkg/logger"
)

// CellSegmentation runs tile-based cell segmentation over a slide image.
//
// The inference itself is deterministic and synthetic: per-tile cell counts
// are derived from the image path and tile coordinates. The tile planning,
// progress accounting and result layout match the production pipeline so
// the scheduler exercises the real executor contract.
type CellSegmentation struct {
	cfg     config.ExecutorConfig
	storage *Storage
	logger  *logger.Logger

	// TileDelay throttles per-tile processing; tests leave it zero.
	TileDelay time.Duration
}

// NewCellSegmentation creates the executor.
func NewCellSegmentation(cfg config.ExecutorConfig, storage *Storage, log *logger.Logger) *CellSegmentation {
	return &CellSegmentation{
		cfg:     cfg,
		storage: storage,
		logger:  log.With("executor", "cell_segmentation"),
	}
}

// Execute implements the executor contract.
func (e *CellSegmentation) Execute(ctx context.Context, job *workflow.Job, report app.ProgressSink) (string, error) {
	width, height, err := slideDimensions(job.ImagePath, e.cfg.WSILevel)
	if err != nil {
		return "", err
	}

	tiles := TileGrid(width, height, e.cfg.TileSize, e.cfg.TileOverlap)
	total := len(tiles)
	if total == 0 {
		return "", fmt.Errorf("image %s produced an empty tile grid", job.ImagePath)
	}

	totalCells := 0
	tileSummaries := make([]map[string]any, 0, total)
	for i, tile := range tiles {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}
		if e.TileDelay > 0 {
			time.Sleep(e.TileDelay)
		}

		cells := int(tileHash(job.ImagePath, tile) % 200)
		totalCells += cells
		tileSummaries = append(tileSummaries, map[string]any{
			"tile":  tile,
			"cells": cells,
		})

		report(float64(i+1)/float64(total), i+1, total)
	}

	doc := map[string]any{
		"job_id":     job.JobID,
		"job_type":   string(job.Type),
		"image_path": job.ImagePath,
		"dimensions": map[string]int{"width": width, "height": height},
		"tile_size":  e.cfg.TileSize,
		"overlap":    e.cfg.TileOverlap,
		"num_tiles":  total,
		"num_cells":  totalCells,
		"tiles":      tileSummaries,
	}
	path, err := e.storage.Save(job.JobID, suffixSegmentation, doc)
	if err != nil {
		return "", err
	}

	e.logger.Debug("segmentation complete",
		"job_id", job.JobID,
		"tiles", total,
		"cells", totalCells,
	)
	return path, nil
}

// slideDimensions derives the working resolution of an image. Real slide
// decoding is out of scope; dimensions are derived from the file size so
// behaviour is stable per input. Each pyramid level halves the resolution.
func slideDimensions(imagePath string, level int) (int, int, error) {
	info, err := os.Stat(imagePath)
	if err != nil {
		return 0, 0, fmt.Errorf("image not found: %s", imagePath)
	}

	h := fnv.New64a()
	fmt.Fprintf(h, "%s:%d", imagePath, info.Size())
	seed := h.Sum64()

	width := 1024 + int(seed%7)*512
	height := 1024 + int((seed>>8)%7)*512
	for l := 0; l < level; l++ {
		width /= 2
		height /= 2
	}
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	return width, height, nil
}

func tileHash(imagePath string, tile Tile) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s:%d:%d:%d:%d", imagePath, tile.X, tile.Y, tile.Width, tile.Height)
	return h.Sum64()
}
