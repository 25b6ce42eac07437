// Package config provides motion estimation job files and their persistence.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"globalmotion/internal/motion"
	"globalmotion/pkg/geometry"
)

// CurrentVersion is the job file format version written by Save.
const CurrentVersion = 1

var (
	// ErrInvalidJob is returned by Validate for inconsistent job settings.
	ErrInvalidJob = errors.New("config: invalid job")

	// ErrUnknownFormat is returned for job files that are neither JSON nor
	// YAML.
	ErrUnknownFormat = errors.New("config: unknown job file format")
)

// Correspondence pairs a point in the current frame with its match in the
// reference frame.
type Correspondence struct {
	Src geometry.Point2D `json:"src" yaml:"src"`
	Dst geometry.Point2D `json:"dst" yaml:"dst"`
}

// RANSACSettings mirrors motion.RANSACOptions in the job file.
type RANSACSettings struct {
	Enabled    bool    `json:"enabled" yaml:"enabled"`
	Iterations int     `json:"iterations,omitempty" yaml:"iterations,omitempty"`
	Threshold  float64 `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	Seed       int64   `json:"seed,omitempty" yaml:"seed,omitempty"`
}

// Job describes one estimate-and-compensate run (.json, .yaml or .yml).
type Job struct {
	Version     int                  `json:"version" yaml:"version"`
	Name        string               `json:"name" yaml:"name"`
	Created     time.Time            `json:"created" yaml:"created"`
	Modified    time.Time            `json:"modified" yaml:"modified"`
	Family      motion.TransformType `json:"family" yaml:"family"`
	Description string               `json:"description,omitempty" yaml:"description,omitempty"`

	// Frame paths (relative to the job file)
	ReferencePath string `json:"reference" yaml:"reference"`
	CurrentPath   string `json:"current" yaml:"current"`
	OutputPath    string `json:"output,omitempty" yaml:"output,omitempty"`

	// Plane layout
	BitDepth int  `json:"bit_depth" yaml:"bit_depth"`
	SubX     bool `json:"sub_x,omitempty" yaml:"sub_x,omitempty"`
	SubY     bool `json:"sub_y,omitempty" yaml:"sub_y,omitempty"`
	XScale   int  `json:"x_scale,omitempty" yaml:"x_scale,omitempty"`
	YScale   int  `json:"y_scale,omitempty" yaml:"y_scale,omitempty"`

	// Region to predict; empty means the whole current frame.
	Region geometry.RectInt `json:"region" yaml:"region"`

	Correspondences []Correspondence `json:"correspondences" yaml:"correspondences"`
	RANSAC          RANSACSettings   `json:"ransac" yaml:"ransac"`
	Workers         int              `json:"workers,omitempty" yaml:"workers,omitempty"`
}

// New creates a new job with default settings.
func New(name string, family motion.TransformType) *Job {
	now := time.Now()
	opts := motion.DefaultRANSACOptions()
	return &Job{
		Version:  CurrentVersion,
		Name:     name,
		Created:  now,
		Modified: now,
		Family:   family,
		BitDepth: 8,
		RANSAC: RANSACSettings{
			Iterations: opts.Iterations,
			Threshold:  opts.Threshold,
			Seed:       opts.Seed,
		},
	}
}

func isYAML(path string) (bool, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return false, nil
	case ".yaml", ".yml":
		return true, nil
	default:
		return false, fmt.Errorf("%s: %w", path, ErrUnknownFormat)
	}
}

// Load loads a job file, picking the decoder from the extension. The job is
// not validated.
func Load(path string) (*Job, error) {
	yml, err := isYAML(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var job Job
	if yml {
		err = yaml.Unmarshal(data, &job)
	} else {
		err = json.Unmarshal(data, &job)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse job %s: %w", path, err)
	}
	return &job, nil
}

// Save saves the job to a file in the format named by its extension.
func (j *Job) Save(path string) error {
	yml, err := isYAML(path)
	if err != nil {
		return err
	}
	j.Modified = time.Now()

	var data []byte
	if yml {
		data, err = yaml.Marshal(j)
	} else {
		data, err = json.MarshalIndent(j, "", "  ")
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate checks that the job can be run.
func (j *Job) Validate() error {
	var problems []string
	if j.Version < 1 || j.Version > CurrentVersion {
		problems = append(problems, fmt.Sprintf("unsupported version %d", j.Version))
	}
	if !j.Family.Valid() {
		problems = append(problems, fmt.Sprintf("unknown family %d", int(j.Family)))
	}
	if j.ReferencePath == "" || j.CurrentPath == "" {
		problems = append(problems, "reference and current frames are required")
	}
	switch j.BitDepth {
	case 8, 10, 12:
	default:
		problems = append(problems, fmt.Sprintf("bit depth %d", j.BitDepth))
	}
	if j.XScale < 0 || j.YScale < 0 {
		problems = append(problems, fmt.Sprintf("negative scale %d/%d", j.XScale, j.YScale))
	}
	r := j.Region
	if r.X < 0 || r.Y < 0 || r.Width < 0 || r.Height < 0 {
		problems = append(problems, fmt.Sprintf("region %+v", r))
	}
	if j.Family.Valid() && len(j.Correspondences) < j.Family.MinPoints() {
		problems = append(problems, fmt.Sprintf("%s needs %d correspondences, have %d",
			j.Family, j.Family.MinPoints(), len(j.Correspondences)))
	}
	if len(j.Correspondences) > motion.MaxCorrespondences {
		problems = append(problems, fmt.Sprintf("%d correspondences", len(j.Correspondences)))
	}
	if j.RANSAC.Enabled && (j.RANSAC.Iterations <= 0 || j.RANSAC.Threshold <= 0) {
		problems = append(problems, "ransac needs positive iterations and threshold")
	}
	if j.Workers < 0 {
		problems = append(problems, fmt.Sprintf("workers %d", j.Workers))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidJob, strings.Join(problems, "; "))
	}
	return nil
}

// Points returns fresh copies of the source and destination points. The
// fitters normalize their inputs in place, so every fit needs its own copy.
func (j *Job) Points() (src, dst []geometry.Point2D) {
	src = make([]geometry.Point2D, len(j.Correspondences))
	dst = make([]geometry.Point2D, len(j.Correspondences))
	for i, c := range j.Correspondences {
		src[i] = c.Src
		dst[i] = c.Dst
	}
	return src, dst
}

// RANSACOptions returns the robust fitting options for the job.
func (j *Job) RANSACOptions(debug bool) motion.RANSACOptions {
	return motion.RANSACOptions{
		Iterations: j.RANSAC.Iterations,
		Threshold:  j.RANSAC.Threshold,
		Seed:       j.RANSAC.Seed,
		Debug:      debug,
	}
}

// RegionOr returns the job region, or the whole w×h frame when it is empty.
func (j *Job) RegionOr(w, h int) geometry.RectInt {
	if j.Region.Empty() {
		return geometry.RectInt{Width: w, Height: h}
	}
	return j.Region
}

func resolve(jobPath, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(filepath.Dir(jobPath), p)
}

// SetReference sets the reference frame path (relative to the job file).
func (j *Job) SetReference(jobPath, imagePath string) {
	j.ReferencePath = relative(jobPath, imagePath)
	j.Modified = time.Now()
}

// SetCurrent sets the current frame path (relative to the job file).
func (j *Job) SetCurrent(jobPath, imagePath string) {
	j.CurrentPath = relative(jobPath, imagePath)
	j.Modified = time.Now()
}

func relative(jobPath, imagePath string) string {
	rel, err := filepath.Rel(filepath.Dir(jobPath), imagePath)
	if err != nil {
		return imagePath
	}
	return rel
}

// GetReferencePath returns the absolute path to the reference frame.
func (j *Job) GetReferencePath(jobPath string) string {
	return resolve(jobPath, j.ReferencePath)
}

// GetCurrentPath returns the absolute path to the current frame.
func (j *Job) GetCurrentPath(jobPath string) string {
	return resolve(jobPath, j.CurrentPath)
}

// GetOutputPath returns the path for the prediction image.
func (j *Job) GetOutputPath(jobPath string) string {
	if j.OutputPath == "" {
		// Default: job_name_pred.png
		base := jobPath[:len(jobPath)-len(filepath.Ext(jobPath))]
		return base + "_pred.png"
	}
	return resolve(jobPath, j.OutputPath)
}
