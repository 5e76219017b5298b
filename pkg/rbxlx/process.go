package rbxlx

import (
	"bufio"
	"context"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/aidarkhanov/nanoid"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/cutzel/oracle-postprocess/pkg/bytecode"
	"github.com/cutzel/oracle-postprocess/pkg/decompiler"
)

// Params configures Process.
type Params struct {
	InputPath  string
	OutputPath string
	Client     decompiler.Client
	// Report, when set, is called once a second with the number of finished
	// and discovered scripts while the document is processed.
	Report func(done, total int)
}

// Summary describes a finished run.
type Summary struct {
	Scripts int
	Failed  int
	Bytes   int64
	Elapsed time.Duration
}

type pendingScript struct {
	name   string
	marker bytecode.Marker
	reply  chan decompiler.Result
}

// task is one ordered write. Exactly one of the fields is set.
type task struct {
	verbatim []byte
	script   *pendingScript
}

// Process streams the place file at InputPath and writes the decompiled
// version to OutputPath. The reader keeps submitting scripts while the
// writer waits for results, so the document comes out in its original order
// without stalling the service round trips behind each other. The output is
// written to a temporary file next to the target and only moved into place
// once the whole document went through.
func Process(ctx context.Context, params Params) (Summary, error) {
	start := time.Now()

	input, err := os.Open(params.InputPath)
	if err != nil {
		return Summary{}, eris.Wrapf(err, "failed to open %s", params.InputPath)
	}
	defer input.Close()

	tmpPath := params.OutputPath + ".tmp-" + nanoid.New()
	output, err := os.Create(tmpPath)
	if err != nil {
		return Summary{}, eris.Wrapf(err, "failed to create %s", tmpPath)
	}

	summary, err := pipeline(ctx, params, input, output)
	closeErr := output.Close()
	if err == nil && closeErr != nil {
		err = eris.Wrapf(closeErr, "failed to finish %s", tmpPath)
	}
	if err != nil {
		os.Remove(tmpPath)
		return Summary{}, err
	}

	if info, err := os.Stat(tmpPath); err == nil {
		summary.Bytes = info.Size()
	}

	if err := os.Rename(tmpPath, params.OutputPath); err != nil {
		os.Remove(tmpPath)
		return Summary{}, eris.Wrapf(err, "failed to move the finished document to %s", params.OutputPath)
	}

	summary.Elapsed = time.Since(start)
	return summary, nil
}

func pipeline(ctx context.Context, params Params, input io.Reader, output io.Writer) (Summary, error) {
	var total, done, failed int32

	eg, ctx := errgroup.WithContext(ctx)
	tasks := make(chan *task, 128)
	written := make(chan struct{})

	eg.Go(func() error {
		defer close(tasks)
		return readDocument(ctx, params.Client, input, tasks, &total)
	})

	eg.Go(func() error {
		defer close(written)
		return writeDocument(ctx, output, tasks, &done, &failed)
	})

	eg.Go(func() error {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if params.Report != nil {
					params.Report(int(atomic.LoadInt32(&done)), int(atomic.LoadInt32(&total)))
				}
			case <-written:
				return nil
			case <-ctx.Done():
				return nil
			}
		}
	})

	if err := eg.Wait(); err != nil {
		return Summary{}, err
	}

	return Summary{
		Scripts: int(atomic.LoadInt32(&total)),
		Failed:  int(atomic.LoadInt32(&failed)),
	}, nil
}

func readDocument(ctx context.Context, client decompiler.Client, input io.Reader, tasks chan<- *task, total *int32) error {
	scanner := NewScanner(input)

	for scanner.Scan() {
		tok := scanner.Token()

		var item *task
		if tok.Kind == TokenVerbatim {
			item = &task{verbatim: append([]byte(nil), tok.Data...)}
		} else if marker, ok := bytecode.FindMarker(string(tok.Data)); ok {
			atomic.AddInt32(total, 1)

			name := tok.Name
			if name == "" {
				name = "unknown"
			}

			req := decompiler.NewRequest(marker.Base64)
			if err := client.Submit(req); err != nil {
				return err
			}

			log.Debug().Str("script", name).Str("hash", req.Hash).Msg("Queued script for decompilation")
			item = &task{script: &pendingScript{name: name, marker: marker, reply: req.Reply}}
		} else {
			// not a script dump; echo the section unchanged
			data := make([]byte, 0, len(cdataOpen)+len(tok.Data)+len(cdataClose))
			data = append(data, cdataOpen...)
			data = append(data, tok.Data...)
			data = append(data, cdataClose...)
			item = &task{verbatim: data}
		}

		select {
		case tasks <- item:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return scanner.Err()
}

func writeDocument(ctx context.Context, output io.Writer, tasks <-chan *task, done, failed *int32) error {
	writer := bufio.NewWriterSize(output, ioBufferSize)

	for {
		var item *task
		var ok bool
		select {
		case item, ok = <-tasks:
			if !ok {
				return eris.Wrap(writer.Flush(), "failed to write the document")
			}
		case <-ctx.Done():
			return ctx.Err()
		}

		if item.script == nil {
			if _, err := writer.Write(item.verbatim); err != nil {
				return eris.Wrap(err, "failed to write the document")
			}
			continue
		}

		var res decompiler.Result
		select {
		case res = <-item.script.reply:
		case <-ctx.Done():
			return ctx.Err()
		}

		var body string
		switch {
		case res.Err == nil:
			body = "-- decompilation:\n" + res.Source
		case recoverable(res.Err):
			atomic.AddInt32(failed, 1)
			log.Warn().Err(res.Err).Str("script", item.script.name).Msg("Failed to decompile script")
			body = "-- decompilation failed:\n-- " + res.Err.Error()
		default:
			return res.Err
		}

		marker := item.script.marker
		if err := WriteCData(writer, marker.Prefix+marker.Base64+"\n\n"+body+"\n"); err != nil {
			return eris.Wrap(err, "failed to write the document")
		}

		atomic.AddInt32(done, 1)
	}
}

// recoverable reports whether a failed decompilation only concerns its own
// script. Transport errors take the whole run down instead since every
// following script would fail the same way.
func recoverable(err error) bool {
	switch err.(type) {
	case decompiler.DecompileError, decompiler.TooLargeError, decompiler.RejectedError:
		return true
	default:
		return false
	}
}
