package server

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"flickrharvest/pkg/dataset"
	errs "flickrharvest/pkg/errors"
	"flickrharvest/pkg/region"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// startRequest is the body of POST /api/v1/harvests
type startRequest struct {
	West           float64 `json:"west"`
	South          float64 `json:"south"`
	East           float64 `json:"east"`
	North          float64 `json:"north"`
	Start          string  `json:"start" binding:"required"`
	End            string  `json:"end" binding:"required"`
	APIKey         string  `json:"api_key"`
	OutputDir      string  `json:"output_dir"`
	DownloadAssets bool    `json:"download_assets"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "flickrharvest",
		"runs":    len(s.list()),
	})
}

func (s *Server) startHarvest(c *gin.Context) {
	var body startRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	id := uuid.NewString()
	params, err := s.params(id, body)
	if err == nil {
		var req region.HarvestRequest
		req, err = region.NewHarvestRequest(params)
		if err == nil {
			s.launch(id, req)
			c.JSON(http.StatusAccepted, gin.H{"id": id, "state": "started"})
			return
		}
	}

	s.logger.WithError(err).Warn("rejected harvest request")
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid harvest request", "details": err.Error()})
}

// params fills request defaults from the server config
func (s *Server) params(id string, body startRequest) (region.Params, error) {
	start, err := region.ParseDate(body.Start)
	if err != nil {
		return region.Params{}, errs.Wrap(errs.ErrorTypeValidation, err, "invalid start")
	}
	end, err := region.ParseDate(body.End)
	if err != nil {
		return region.Params{}, errs.Wrap(errs.ErrorTypeValidation, err, "invalid end")
	}

	p := region.Params{
		West: body.West, South: body.South, East: body.East, North: body.North,
		Start:          start,
		End:            end,
		APIKey:         body.APIKey,
		DownloadAssets: body.DownloadAssets,
	}
	if body.OutputDir != "" {
		dir, err := confine(s.cfg.Harvest.OutputDir, body.OutputDir)
		if err != nil {
			return region.Params{}, err
		}
		p.OutputDir = dir
	}
	if p.APIKey == "" {
		p.APIKey = s.cfg.Flickr.APIKey
	}
	if p.DownloadAssets && p.OutputDir == "" && s.cfg.Harvest.OutputDir != "" {
		p.OutputDir = filepath.Join(s.cfg.Harvest.OutputDir, id)
	}
	return p, nil
}

// confine resolves a client supplied directory inside base. Relative paths
// are taken from base; anything that ends up outside it is rejected.
func confine(base, dir string) (string, error) {
	if base == "" {
		return "", errs.New(errs.ErrorTypeValidation, 0, "output_dir needs a server output directory")
	}
	root, err := filepath.Abs(base)
	if err != nil {
		return "", errs.Wrap(errs.ErrorTypeValidation, err, "invalid server output directory")
	}

	target := dir
	if !filepath.IsAbs(target) {
		target = filepath.Join(root, target)
	}
	target = filepath.Clean(target)

	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errs.New(errs.ErrorTypeValidation, 0, fmt.Sprintf("output_dir %q is outside the server output directory", dir))
	}
	return target, nil
}

func (s *Server) launch(id string, req region.HarvestRequest) {
	r := &run{id: id, started: time.Now()}
	r.harvester = s.factory(id, r)
	s.add(r)

	s.logger.InfoWithFields("harvest started", map[string]interface{}{
		"run_id": id,
		"region": req.Root().String(),
	})

	results := r.harvester.Start(s.ctx, req)
	go func() {
		for res := range results {
			r.finish(res)
		}
	}()
}

func (s *Server) listHarvests(c *gin.Context) {
	runs := s.list()
	out := make([]Status, 0, len(runs))
	for _, r := range runs {
		out = append(out, r.status(false))
	}
	c.JSON(http.StatusOK, gin.H{"harvests": out})
}

func (s *Server) getHarvest(c *gin.Context) {
	r, ok := s.get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "harvest not found"})
		return
	}
	c.JSON(http.StatusOK, r.status(true))
}

func (s *Server) cancelHarvest(c *gin.Context) {
	r, ok := s.get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "harvest not found"})
		return
	}
	r.harvester.Cancel()
	c.JSON(http.StatusAccepted, gin.H{"id": r.id, "state": r.harvester.State().String()})
}

// getRecords returns the finished dataset as JSON, or as CSV with
// ?format=csv.
func (s *Server) getRecords(c *gin.Context) {
	r, ok := s.get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "harvest not found"})
		return
	}
	ds := r.result()
	if ds == nil {
		c.JSON(http.StatusConflict, gin.H{
			"error": "no dataset available",
			"state": r.harvester.State().String(),
		})
		return
	}

	if c.Query("format") == "csv" {
		c.Header("Content-Type", "text/csv")
		c.Header("Content-Disposition", "attachment; filename=\""+r.id+".csv\"")
		c.Status(http.StatusOK)
		if err := dataset.WriteCSV(c.Writer, ds); err != nil {
			s.logger.WithError(err).WithField("run_id", r.id).Error("failed to stream csv")
		}
		return
	}
	c.JSON(http.StatusOK, ds)
}
