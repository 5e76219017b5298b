// Package batch runs several place files through the decompiler from one
// YAML manifest, sharing a single service connection and cache across all
// of them.
package batch

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/cutzel/oracle-postprocess/pkg/decompiler"
	"github.com/cutzel/oracle-postprocess/pkg/rbxlx"
)

// Job is one input/output pair from the manifest.
type Job struct {
	Input  string
	Output string `yaml:",omitempty"`
}

// Manifest lists the jobs of a batch run.
type Manifest struct {
	OutputDir string `yaml:"outputDir,omitempty"`
	Jobs      []Job
}

// LoadManifest reads and checks a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read %s", path)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, eris.Wrapf(err, "failed to parse %s", path)
	}

	if len(manifest.Jobs) == 0 {
		return nil, eris.Errorf("%s lists no jobs", path)
	}

	for idx, job := range manifest.Jobs {
		if job.Input == "" {
			return nil, eris.Errorf("job %d in %s has no input", idx+1, path)
		}
	}

	return &manifest, nil
}

// OutputPath resolves where a job's result goes. Jobs without an explicit
// output get one derived from their input name; relative outputs land under
// outputDir when the manifest sets one.
func (m *Manifest) OutputPath(job Job) string {
	out := job.Output
	if out == "" {
		base := strings.TrimSuffix(filepath.Base(job.Input), filepath.Ext(job.Input))
		out = base + ".decompiled.rbxlx"
	}

	if m.OutputDir != "" && !filepath.IsAbs(out) {
		out = filepath.Join(m.OutputDir, out)
	}

	return out
}

// Result pairs a job with its outcome.
type Result struct {
	Job     Job
	Output  string
	Summary rbxlx.Summary
	Err     error
}

// Failed counts the results that ended with an error.
func Failed(results []Result) int {
	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}
	return failed
}

// Run processes every job in order over the shared client. A failed job is
// recorded and the run moves on; when the transport itself died the session
// turns the remaining jobs down quickly. progress is forwarded per job.
func Run(ctx context.Context, client decompiler.Client, manifest *Manifest, progress func(job Job, done, total int)) []Result {
	results := make([]Result, 0, len(manifest.Jobs))
	for _, job := range manifest.Jobs {
		if ctx.Err() != nil {
			results = append(results, Result{Job: job, Err: eris.Wrap(ctx.Err(), "batch run aborted")})
			continue
		}

		output := manifest.OutputPath(job)
		if dir := filepath.Dir(output); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				results = append(results, Result{Job: job, Output: output, Err: eris.Wrapf(err, "failed to create %s", dir)})
				continue
			}
		}

		summary, err := rbxlx.Process(ctx, rbxlx.Params{
			InputPath:  job.Input,
			OutputPath: output,
			Client:     client,
			Report: func(done, total int) {
				if progress != nil {
					progress(job, done, total)
				}
			},
		})
		results = append(results, Result{Job: job, Output: output, Summary: summary, Err: err})
	}

	return results
}
