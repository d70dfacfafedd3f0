package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"capset/pkg/grid"
	"capset/pkg/metakey"
	"capset/pkg/store"
	"capset/pkg/transform"
	"capset/pkg/types"
)

// decodeBody parses a JSON request body. An empty body is allowed and
// leaves the request at its defaults.
func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

func (s *Server) handleDatasets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	datasets, err := s.root.List()
	if err != nil {
		s.writeError(w, err)
		return
	}
	if datasets == nil {
		datasets = []string{}
	}
	s.writeJSON(w, http.StatusOK, types.DatasetListResponse{Datasets: datasets})
}

func (s *Server) handleGlobalVocabulary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	words, err := s.vocab.Global()
	if err != nil {
		s.writeError(w, err)
		return
	}
	if words == nil {
		words = []string{}
	}
	s.writeJSON(w, http.StatusOK, types.VocabularyResponse{Words: words})
}

// handleDatasetRoutes dispatches everything under /api/datasets/{name}/.
// Image paths may contain slashes, so routing is by manual segment
// parsing rather than mux patterns.
func (s *Server) handleDatasetRoutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/datasets/")
	name, tail, _ := strings.Cut(rest, "/")
	if name == "" {
		http.NotFound(w, r)
		return
	}

	switch {
	case tail == "images" && r.Method == http.MethodGet:
		s.listImages(w, name)
	case tail == "metadata" && r.Method == http.MethodGet:
		s.datasetMetadata(w, name)
	case tail == "vocabulary" && r.Method == http.MethodGet:
		s.datasetVocabulary(w, name)
	case tail == "export" && r.Method == http.MethodGet:
		s.exportMetadata(w, r, name)
	case strings.HasPrefix(tail, "images/"):
		s.imageRoutes(w, r, name, strings.TrimPrefix(tail, "images/"))
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) imageRoutes(w http.ResponseWriter, r *http.Request, name, imagePath string) {
	switch r.Method {
	case http.MethodGet:
		s.serveImage(w, r, name, imagePath)
	case http.MethodPost:
		if p, ok := strings.CutSuffix(imagePath, "/resize"); ok {
			s.resizeImage(w, r, name, p)
		} else if p, ok := strings.CutSuffix(imagePath, "/extend"); ok {
			s.extendImage(w, r, name, p)
		} else if p, ok := strings.CutSuffix(imagePath, "/suggest-caption"); ok {
			s.suggestCaption(w, r, name, p)
		} else {
			s.updateImage(w, r, name, imagePath)
		}
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) listImages(w http.ResponseWriter, name string) {
	images, err := s.root.ListImages(name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	doc, err := s.store.Load(name)
	if err != nil {
		s.writeError(w, err)
		return
	}

	records := make([]types.ImageRecord, 0, len(images))
	for _, rel := range images {
		path, err := s.root.ResolveImage(name, rel)
		if err != nil {
			s.writeError(w, err)
			return
		}
		dims, err := s.engine.Dimensions(path)
		if err != nil {
			s.writeError(w, err)
			return
		}

		entry := doc[metakey.Make(name, rel)]
		trainResolution := grid.Merged(dims, entry.TrainResolution)
		records = append(records, types.ImageRecord{
			Name:            rel,
			Path:            rel,
			Caption:         entry.Caption,
			TrainResolution: trainResolution[:],
			ImageResolution: []int{dims[0], dims[1]},
			Annotated:       strings.TrimSpace(entry.Caption) != "",
		})
	}
	s.writeJSON(w, http.StatusOK, types.DatasetImagesResponse{Dataset: name, Images: records})
}

func (s *Server) serveImage(w http.ResponseWriter, r *http.Request, name, imagePath string) {
	path, err := s.root.ResolveImage(name, imagePath)
	if err != nil {
		s.writeError(w, err)
		return
	}
	http.ServeFile(w, r, path)
}

func (s *Server) datasetMetadata(w http.ResponseWriter, name string) {
	doc, err := s.store.Load(name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, doc)
}

func (s *Server) datasetVocabulary(w http.ResponseWriter, name string) {
	words, err := s.vocab.Dataset(name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if words == nil {
		words = []string{}
	}
	s.writeJSON(w, http.StatusOK, types.VocabularyResponse{Words: words})
}

func (s *Server) exportMetadata(w http.ResponseWriter, r *http.Request, name string) {
	path, err := s.store.Path(name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", name+"_metadata.json"))
	w.Header().Set("Content-Type", "application/json")
	http.ServeFile(w, r, path)
}

func (s *Server) updateImage(w http.ResponseWriter, r *http.Request, name, imagePath string) {
	var req types.UpdateRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	path, err := s.root.ResolveImage(name, imagePath)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var imageResolution [2]int
	entry, err := s.store.Mutate(name, imagePath, func(e *store.Entry) error {
		e.Caption = strings.TrimSpace(req.Caption)

		var err error
		if req.ApplyCrop && req.CropData != nil {
			imageResolution, err = s.engine.Crop(path, transform.Box{
				X:      req.CropData.X,
				Y:      req.CropData.Y,
				Width:  req.CropData.Width,
				Height: req.CropData.Height,
			})
		} else {
			imageResolution, err = s.engine.Dimensions(path)
		}
		if err != nil {
			return err
		}

		merged := grid.Merged(imageResolution, e.TrainResolution)
		e.TrainResolution = merged[:]
		return nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, types.TransformResponse{
		Status:          "ok",
		TrainResolution: entry.TrainResolution,
		ImageResolution: imageResolution[:],
	})
}

func (s *Server) resizeImage(w http.ResponseWriter, r *http.Request, name, imagePath string) {
	var req types.ResizeRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	maxSide := req.MaxSide
	if maxSide == 0 {
		maxSide = s.defaultMaxSide
	}
	path, err := s.root.ResolveImage(name, imagePath)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var imageResolution [2]int
	entry, err := s.store.Mutate(name, imagePath, func(e *store.Entry) error {
		var err error
		imageResolution, err = s.engine.ResizeToFit(path, maxSide)
		if err != nil {
			return err
		}
		merged := grid.Merged(imageResolution, e.TrainResolution)
		e.TrainResolution = merged[:]
		return nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, types.TransformResponse{
		Status:          "ok",
		TrainResolution: entry.TrainResolution,
		ImageResolution: imageResolution[:],
	})
}

func (s *Server) extendImage(w http.ResponseWriter, r *http.Request, name, imagePath string) {
	var req types.ExtendRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	anchor := req.Anchor
	if anchor == "" {
		anchor = transform.DefaultAnchor
	}
	path, err := s.root.ResolveImage(name, imagePath)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var imageResolution [2]int
	var status transform.Status
	entry, err := s.store.Mutate(name, imagePath, func(e *store.Entry) error {
		var err error
		imageResolution, status, err = s.engine.ExtendToGrid(path, anchor)
		if err != nil {
			return err
		}
		merged := grid.Merged(imageResolution, e.TrainResolution)
		e.TrainResolution = merged[:]
		return nil
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, types.TransformResponse{
		Status:          string(status),
		TrainResolution: entry.TrainResolution,
		ImageResolution: imageResolution[:],
	})
}

func (s *Server) suggestCaption(w http.ResponseWriter, r *http.Request, name, imagePath string) {
	if s.captioner == nil {
		s.writeError(w, errCaptionerDisabled)
		return
	}
	path, err := s.root.ResolveImage(name, imagePath)
	if err != nil {
		s.writeError(w, err)
		return
	}
	caption, err := s.captioner.Suggest(r.Context(), path)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, types.SuggestionResponse{Caption: caption})
}
