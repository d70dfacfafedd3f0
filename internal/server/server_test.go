package server

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"capset/internal/config"
	"capset/pkg/types"
)

func newTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	root := t.TempDir()

	cfg := config.Default()
	cfg.Dataset.Root = root

	log := logrus.New()
	log.SetOutput(io.Discard)

	s, err := New(cfg, log)
	if err != nil {
		t.Fatal(err)
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts, root
}

func writePNG(t *testing.T, path string, width, height int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatal(err)
		}
	}
	return resp.StatusCode
}

func postJSON(t *testing.T, url string, body, v any) int {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if v != nil {
		if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
			t.Fatal(err)
		}
	}
	return resp.StatusCode
}

func TestListDatasets(t *testing.T) {
	ts, root := newTestServer(t)
	for _, name := range []string{"beta", "Alpha"} {
		if err := os.Mkdir(filepath.Join(root, name), 0o755); err != nil {
			t.Fatal(err)
		}
	}

	var got types.DatasetListResponse
	if status := getJSON(t, ts.URL+"/api/datasets", &got); status != http.StatusOK {
		t.Fatalf("status %d", status)
	}
	if !reflect.DeepEqual(got.Datasets, []string{"Alpha", "beta"}) {
		t.Errorf("datasets = %v", got.Datasets)
	}
}

func TestListImages(t *testing.T) {
	ts, root := newTestServer(t)
	writePNG(t, filepath.Join(root, "cats", "img", "a.png"), 100, 60)

	var got types.DatasetImagesResponse
	if status := getJSON(t, ts.URL+"/api/datasets/cats/images", &got); status != http.StatusOK {
		t.Fatalf("status %d", status)
	}
	if len(got.Images) != 1 {
		t.Fatalf("images = %v", got.Images)
	}
	record := got.Images[0]
	if record.Path != "img/a.png" || record.Annotated {
		t.Errorf("record = %+v", record)
	}
	if !reflect.DeepEqual(record.ImageResolution, []int{60, 100}) {
		t.Errorf("image resolution = %v", record.ImageResolution)
	}
	if !reflect.DeepEqual(record.TrainResolution, []int{64, 128}) {
		t.Errorf("train resolution = %v", record.TrainResolution)
	}
}

func TestListImagesMissingDataset(t *testing.T) {
	ts, _ := newTestServer(t)
	if status := getJSON(t, ts.URL+"/api/datasets/nope/images", nil); status != http.StatusNotFound {
		t.Errorf("status = %d, want 404", status)
	}
}

func TestUpdateCaptionWithCrop(t *testing.T) {
	ts, root := newTestServer(t)
	writePNG(t, filepath.Join(root, "cats", "a.png"), 200, 150)

	req := types.UpdateRequest{
		Caption:   "  cat, indoor  ",
		ApplyCrop: true,
		CropData:  &types.CropData{X: 10, Y: 10, Width: 100, Height: 50},
	}
	var got types.TransformResponse
	if status := postJSON(t, ts.URL+"/api/datasets/cats/images/a.png", req, &got); status != http.StatusOK {
		t.Fatalf("status %d", status)
	}
	if got.Status != "ok" || !reflect.DeepEqual(got.ImageResolution, []int{50, 100}) {
		t.Errorf("response = %+v", got)
	}
	if !reflect.DeepEqual(got.TrainResolution, []int{64, 128}) {
		t.Errorf("train resolution = %v", got.TrainResolution)
	}

	// Caption persisted, trimmed.
	var doc map[string]struct {
		Caption string `json:"caption"`
	}
	if status := getJSON(t, ts.URL+"/api/datasets/cats/metadata", &doc); status != http.StatusOK {
		t.Fatal("metadata fetch failed")
	}
	if doc["dataset/cats/a.png"].Caption != "cat, indoor" {
		t.Errorf("metadata = %v", doc)
	}
}

func TestResizeEndpoint(t *testing.T) {
	ts, root := newTestServer(t)
	writePNG(t, filepath.Join(root, "cats", "a.png"), 400, 200)

	var got types.TransformResponse
	status := postJSON(t, ts.URL+"/api/datasets/cats/images/a.png/resize",
		types.ResizeRequest{MaxSide: 100}, &got)
	if status != http.StatusOK {
		t.Fatalf("status %d", status)
	}
	if !reflect.DeepEqual(got.ImageResolution, []int{50, 100}) {
		t.Errorf("image resolution = %v", got.ImageResolution)
	}
	if !reflect.DeepEqual(got.TrainResolution, []int{64, 128}) {
		t.Errorf("train resolution = %v", got.TrainResolution)
	}
}

func TestResizeKeepsStoredResolution(t *testing.T) {
	ts, root := newTestServer(t)
	writePNG(t, filepath.Join(root, "cats", "a.png"), 400, 200)

	// First write records [256, 448].
	if status := postJSON(t, ts.URL+"/api/datasets/cats/images/a.png",
		types.UpdateRequest{Caption: "cat"}, nil); status != http.StatusOK {
		t.Fatal("update failed")
	}

	// Shrinking the image must not shrink the stored training resolution.
	var got types.TransformResponse
	status := postJSON(t, ts.URL+"/api/datasets/cats/images/a.png/resize",
		types.ResizeRequest{MaxSide: 100}, &got)
	if status != http.StatusOK {
		t.Fatalf("status %d", status)
	}
	if !reflect.DeepEqual(got.TrainResolution, []int{256, 448}) {
		t.Errorf("train resolution = %v, want [256 448]", got.TrainResolution)
	}
}

func TestExtendEndpoint(t *testing.T) {
	ts, root := newTestServer(t)
	writePNG(t, filepath.Join(root, "cats", "a.png"), 100, 60)

	var got types.TransformResponse
	status := postJSON(t, ts.URL+"/api/datasets/cats/images/a.png/extend",
		types.ExtendRequest{Anchor: "lu"}, &got)
	if status != http.StatusOK {
		t.Fatalf("status %d", status)
	}
	if got.Status != "extended" || !reflect.DeepEqual(got.ImageResolution, []int{64, 128}) {
		t.Errorf("response = %+v", got)
	}

	// A second extend is a no-op.
	status = postJSON(t, ts.URL+"/api/datasets/cats/images/a.png/extend",
		types.ExtendRequest{}, &got)
	if status != http.StatusOK || got.Status != "unchanged" {
		t.Errorf("second extend = %d %+v", status, got)
	}
}

func TestInvalidCropRejected(t *testing.T) {
	ts, root := newTestServer(t)
	writePNG(t, filepath.Join(root, "cats", "a.png"), 100, 60)

	req := types.UpdateRequest{
		ApplyCrop: true,
		CropData:  &types.CropData{Width: 0, Height: 10},
	}
	if status := postJSON(t, ts.URL+"/api/datasets/cats/images/a.png", req, nil); status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", status)
	}
}

func TestPathTraversalRejected(t *testing.T) {
	ts, root := newTestServer(t)
	writePNG(t, filepath.Join(root, "cats", "a.png"), 10, 10)
	writePNG(t, filepath.Join(root, "secret.png"), 10, 10)

	resp, err := http.Get(ts.URL + "/api/datasets/cats/images/..%2Fsecret.png")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest && resp.StatusCode != http.StatusNotFound {
		t.Errorf("traversal status = %d, want rejection", resp.StatusCode)
	}
}

func TestServeImage(t *testing.T) {
	ts, root := newTestServer(t)
	writePNG(t, filepath.Join(root, "cats", "a.png"), 10, 10)

	resp, err := http.Get(ts.URL + "/api/datasets/cats/images/a.png")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG")) {
		t.Error("served file is not the PNG")
	}
}

func TestVocabularyEndpoints(t *testing.T) {
	ts, root := newTestServer(t)
	writePNG(t, filepath.Join(root, "cats", "a.png"), 10, 10)
	if status := postJSON(t, ts.URL+"/api/datasets/cats/images/a.png",
		types.UpdateRequest{Caption: "sky, cloud , , sunset"}, nil); status != http.StatusOK {
		t.Fatal("update failed")
	}

	var got types.VocabularyResponse
	if status := getJSON(t, ts.URL+"/api/datasets/cats/vocabulary", &got); status != http.StatusOK {
		t.Fatal("dataset vocabulary failed")
	}
	want := []string{"cloud", "sky", "sunset"}
	if !reflect.DeepEqual(got.Words, want) {
		t.Errorf("dataset vocabulary = %v, want %v", got.Words, want)
	}

	if status := getJSON(t, ts.URL+"/api/vocabulary", &got); status != http.StatusOK {
		t.Fatal("global vocabulary failed")
	}
	if !reflect.DeepEqual(got.Words, want) {
		t.Errorf("global vocabulary = %v, want %v", got.Words, want)
	}
}

func TestExportCreatesDocument(t *testing.T) {
	ts, root := newTestServer(t)
	if err := os.Mkdir(filepath.Join(root, "cats"), 0o755); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Get(ts.URL + "/api/datasets/cats/export")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, "cats_metadata.json") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if _, err := os.Stat(filepath.Join(root, "cats", "metadata.json")); err != nil {
		t.Errorf("metadata file not created: %v", err)
	}
}

func TestSuggestCaptionUnavailable(t *testing.T) {
	ts, root := newTestServer(t)
	writePNG(t, filepath.Join(root, "cats", "a.png"), 10, 10)

	status := postJSON(t, ts.URL+"/api/datasets/cats/images/a.png/suggest-caption", struct{}{}, nil)
	if status != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", status)
	}
}
