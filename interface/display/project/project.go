package project

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/airbusgeo/opera-mosaic/mosaic"
	"github.com/airbusgeo/opera-mosaic/service"
	"github.com/airbusgeo/opera-mosaic/service/log"
	"github.com/go-spatial/geom"
	"go.uber.org/zap/zapcore"
)

const (
	ManifestName = "manifest"
	BundleName   = "opera_mosaic"
)

// Vector is a vector layer of the project (e.g. the footprints of the granules)
type Vector struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Manifest is the persisted state of the project
type Manifest struct {
	CanvasCRS mosaic.SpatialRef `json:"canvas_crs"`
	Layers    []mosaic.Layer    `json:"layers"`
	Vectors   []Vector          `json:"vectors,omitempty"`
	Extent    *geom.Extent      `json:"extent,omitempty"`
	Updated   time.Time         `json:"updated"`
}

// Project implements mosaic.Display, writing a manifest of its layers in a directory.
// The manifest can be opened by an external viewer.
type Project struct {
	dir    string
	viewer []string

	mu       sync.Mutex
	manifest Manifest
}

// Option configures a Project
type Option func(*Project)

// WithViewer sets the command launched by View (the manifest and the layer paths are appended to the arguments)
func WithViewer(command string) Option {
	return func(p *Project) { p.viewer = strings.Fields(command) }
}

// New creates a project whose canvas is in the given CRS (zero: the CRS of the first layer)
func New(dir string, canvas mosaic.SpatialRef, opts ...Option) *Project {
	p := &Project{dir: dir, manifest: Manifest{CanvasCRS: canvas}}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Dir returns the directory of the project
func (p *Project) Dir() string {
	return p.dir
}

// ManifestPath returns the path of the manifest
func (p *Project) ManifestPath() string {
	return filepath.Join(p.dir, ManifestName+"."+string(service.ExtensionJSON))
}

// CRS implements mosaic.Display
func (p *Project) CRS() mosaic.SpatialRef {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.manifest.CanvasCRS
}

// AddLayer implements mosaic.Display
// The layer is refused if its (local) source is not readable. A layer with the same name is replaced.
func (p *Project) AddLayer(ctx context.Context, layer mosaic.Layer) error {
	if !strings.HasPrefix(layer.Path, "/vsi") {
		if _, err := os.Stat(layer.Path); err != nil {
			return fmt.Errorf("AddLayer[%s]: %w", layer.Name, err)
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.manifest.CanvasCRS.IsZero() {
		p.manifest.CanvasCRS = layer.CRS
	}
	for i, l := range p.manifest.Layers {
		if l.Name == layer.Name {
			p.manifest.Layers[i] = layer
			log.Logger(ctx).Sugar().Debugf("layer %s replaced (%s)", layer.Name, layer.Path)
			return nil
		}
	}
	p.manifest.Layers = append(p.manifest.Layers, layer)
	log.Logger(ctx).Sugar().Debugf("layer %s added (%s)", layer.Name, layer.Path)
	return nil
}

// AddVector adds a vector layer
func (p *Project) AddVector(ctx context.Context, name, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("AddVector[%s]: %w", name, err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.manifest.Vectors = append(p.manifest.Vectors, Vector{Name: name, Path: path})
	return nil
}

// SetExtent implements mosaic.Display
func (p *Project) SetExtent(ctx context.Context, extent *geom.Extent) error {
	if !mosaic.ValidExtent(extent) {
		return fmt.Errorf("SetExtent: invalid extent %v", extent)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	e := *extent
	p.manifest.Extent = &e
	return nil
}

// Refresh implements mosaic.Display: the manifest is written
func (p *Project) Refresh(ctx context.Context) error {
	p.mu.Lock()
	p.manifest.Updated = time.Now().UTC()
	b, err := json.MarshalIndent(p.manifest, "", "  ")
	p.mu.Unlock()
	if err != nil {
		return fmt.Errorf("Refresh.Marshal: %w", err)
	}
	if err := os.MkdirAll(p.dir, 0766); err != nil {
		return fmt.Errorf("Refresh.MkdirAll: %w", err)
	}
	if err := os.WriteFile(p.ManifestPath(), b, 0644); err != nil {
		return fmt.Errorf("Refresh.WriteFile: %w", err)
	}
	return nil
}

// Manifest returns a copy of the current state
func (p *Project) Manifest() Manifest {
	p.mu.Lock()
	defer p.mu.Unlock()
	m := p.manifest
	m.Layers = append([]mosaic.Layer{}, p.manifest.Layers...)
	m.Vectors = append([]Vector{}, p.manifest.Vectors...)
	return m
}

// LoadManifest reads a manifest written by Refresh
func LoadManifest(path string) (Manifest, error) {
	var m Manifest
	b, err := os.ReadFile(path)
	if err != nil {
		return m, fmt.Errorf("LoadManifest.%w", err)
	}
	if err := json.Unmarshal(b, &m); err != nil {
		return m, fmt.Errorf("LoadManifest.Unmarshal: %w", err)
	}
	return m, nil
}

// Bundle uploads the manifest and a zip of the whole project directory to the storage.
// It returns the uri of the bundle.
func (p *Project) Bundle(ctx context.Context, storage service.Storage, jobID string) (string, error) {
	if _, err := storage.SaveArtifact(ctx, jobID, ManifestName, service.ExtensionJSON, p.dir); err != nil {
		return "", fmt.Errorf("Bundle.%w", err)
	}
	uri, err := storage.SaveArtifact(ctx, jobID, BundleName, service.ExtensionAll, p.dir)
	if err != nil {
		return "", fmt.Errorf("Bundle.%w", err)
	}
	log.Logger(ctx).Sugar().Infof("Mosaic bundle uploaded to %s", uri)
	return uri, nil
}

// View launches the viewer (if any) with the manifest and the layers. It returns when the viewer exits.
func (p *Project) View(ctx context.Context) error {
	if len(p.viewer) == 0 {
		return nil
	}
	m := p.Manifest()
	args := append(append([]string{}, p.viewer[1:]...), p.ManifestPath())
	for _, l := range m.Layers {
		args = append(args, l.Path)
	}
	for _, v := range m.Vectors {
		args = append(args, v.Path)
	}
	cmd := exec.CommandContext(ctx, p.viewer[0], args...)
	if err := log.Exec(ctx, cmd, log.StderrLevel(zapcore.DebugLevel), log.Prefix(filepath.Base(p.viewer[0])+": ")); err != nil {
		return fmt.Errorf("View[%s].%w", p.viewer[0], err)
	}
	return nil
}
