package batch

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cutzel/oracle-postprocess/pkg/decompiler"
)

type stubClient struct{}

func (stubClient) Submit(req *decompiler.Request) error {
	req.Reply <- decompiler.Result{Source: "decompiled"}
	return nil
}

func (stubClient) Shutdown(context.Context) error { return nil }

func writeManifest(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "jobs.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadManifest(t *testing.T) {
	t.Run("parses jobs and shared settings", func(t *testing.T) {
		path := writeManifest(t, `
outputDir: decompiled
jobs:
  - input: maps/city.rbxlx
    output: city.rbxlx
  - input: maps/desert.rbxlx
`)

		manifest, err := LoadManifest(path)
		require.NoError(t, err)
		assert.Equal(t, "decompiled", manifest.OutputDir)
		require.Len(t, manifest.Jobs, 2)
		assert.Equal(t, "maps/city.rbxlx", manifest.Jobs[0].Input)
		assert.Equal(t, "city.rbxlx", manifest.Jobs[0].Output)
		assert.Empty(t, manifest.Jobs[1].Output)
	})

	t.Run("rejects empty manifests", func(t *testing.T) {
		path := writeManifest(t, "outputDir: decompiled\n")
		_, err := LoadManifest(path)
		assert.ErrorContains(t, err, "lists no jobs")
	})

	t.Run("rejects jobs without input", func(t *testing.T) {
		path := writeManifest(t, "jobs:\n  - output: city.rbxlx\n")
		_, err := LoadManifest(path)
		assert.ErrorContains(t, err, "job 1")
	})

	t.Run("rejects broken yaml", func(t *testing.T) {
		path := writeManifest(t, "jobs: [\n")
		_, err := LoadManifest(path)
		assert.ErrorContains(t, err, "failed to parse")
	})

	t.Run("fails on missing files", func(t *testing.T) {
		_, err := LoadManifest(filepath.Join(t.TempDir(), "nope.yml"))
		assert.ErrorContains(t, err, "failed to read")
	})
}

func TestOutputPath(t *testing.T) {
	manifest := &Manifest{OutputDir: "decompiled"}

	t.Run("keeps explicit outputs under the output dir", func(t *testing.T) {
		assert.Equal(t, filepath.Join("decompiled", "city.rbxlx"),
			manifest.OutputPath(Job{Input: "maps/city.rbxlx", Output: "city.rbxlx"}))
	})

	t.Run("derives a name from the input", func(t *testing.T) {
		assert.Equal(t, filepath.Join("decompiled", "city.decompiled.rbxlx"),
			manifest.OutputPath(Job{Input: "maps/city.rbxlx"}))
	})

	t.Run("leaves absolute outputs alone", func(t *testing.T) {
		out := filepath.Join(string(filepath.Separator), "tmp", "city.rbxlx")
		assert.Equal(t, out, manifest.OutputPath(Job{Input: "maps/city.rbxlx", Output: out}))
	})

	t.Run("without an output dir", func(t *testing.T) {
		plain := &Manifest{}
		assert.Equal(t, "city.decompiled.rbxlx", plain.OutputPath(Job{Input: "maps/city.rbxlx"}))
	})
}

func TestRun(t *testing.T) {
	t.Run("processes jobs in order", func(t *testing.T) {
		dir := t.TempDir()
		doc := "<roblox><Item></Item></roblox>\n"
		for _, name := range []string{"one.rbxlx", "two.rbxlx"} {
			require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(doc), 0o600))
		}

		manifest := &Manifest{
			OutputDir: filepath.Join(dir, "out"),
			Jobs: []Job{
				{Input: filepath.Join(dir, "one.rbxlx")},
				{Input: filepath.Join(dir, "two.rbxlx")},
			},
		}

		results := Run(context.Background(), stubClient{}, manifest, nil)
		require.Len(t, results, 2)
		assert.Zero(t, Failed(results))

		for _, res := range results {
			require.NoError(t, res.Err)
			data, err := os.ReadFile(res.Output)
			require.NoError(t, err)
			assert.Equal(t, doc, string(data))
		}
	})

	t.Run("keeps going after a failed job", func(t *testing.T) {
		dir := t.TempDir()
		doc := "<roblox></roblox>\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, "good.rbxlx"), []byte(doc), 0o600))

		manifest := &Manifest{
			OutputDir: filepath.Join(dir, "out"),
			Jobs: []Job{
				{Input: filepath.Join(dir, "missing.rbxlx")},
				{Input: filepath.Join(dir, "good.rbxlx")},
			},
		}

		results := Run(context.Background(), stubClient{}, manifest, nil)
		require.Len(t, results, 2)
		assert.Equal(t, 1, Failed(results))
		assert.Error(t, results[0].Err)
		assert.NoError(t, results[1].Err)
		assert.FileExists(t, results[1].Output)
	})

	t.Run("stops starting jobs once the context is gone", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		manifest := &Manifest{Jobs: []Job{{Input: "whatever.rbxlx"}}}
		results := Run(ctx, stubClient{}, manifest, nil)
		require.Len(t, results, 1)
		assert.ErrorContains(t, results[0].Err, "aborted")
	})
}
