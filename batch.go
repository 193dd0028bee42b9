package faceshape

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/esimov/faceshape/metrics"
)

// maxWorkers sets the maximum number of concurrently running workers.
const maxWorkers = 20

// SupportedExtensions lists the image file extensions picked up by the batch classifier.
var SupportedExtensions = []string{".jpg", ".jpeg", ".png", ".bmp"}

// BatchResult holds the analysis of a single image of a batch.
type BatchResult struct {
	Path     string        `json:"path"`
	Analysis Analysis      `json:"analysis"`
	Metrics  FacialMetrics `json:"metrics"`
	Err      error         `json:"-"`
}

// BatchClassify analyzes every supported image of the directory tree concurrently and returns
// one result per image, sorted by path. Per image failures are reported in the result and do not
// stop the batch. The number of workers defaults to the number of CPUs and is capped to maxWorkers.
func BatchClassify(ctx context.Context, dir string, workers int, pipeline *Pipeline) ([]BatchResult, error) {
	if workers <= 0 || workers > maxWorkers {
		workers = runtime.NumCPU()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	paths, errc := walkDir(ctx, dir, SupportedExtensions)
	ch := make(chan BatchResult)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			consumer(ctx, pipeline, paths, ch)
		}()
	}

	// Close the channel after the values are consumed.
	go func() {
		defer close(ch)
		wg.Wait()
	}()

	var results []BatchResult
	for res := range ch {
		results = append(results, res)
	}
	if err := <-errc; err != nil {
		return results, err
	}
	if err := ctx.Err(); err != nil {
		return results, err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Path < results[j].Path })
	return results, nil
}

// consumer reads the path names from the paths channel and runs the analysis pipeline against every image.
func consumer(ctx context.Context, pipeline *Pipeline, paths <-chan string, res chan<- BatchResult) {
	for src := range paths {
		r := analyzeFile(pipeline, src)

		select {
		case <-ctx.Done():
			return
		case res <- r:
		}
	}
}

func analyzeFile(pipeline *Pipeline, src string) BatchResult {
	r := BatchResult{Path: src}

	img, err := decodeImage(src)
	if err != nil {
		metrics.RecordBatchImage("decode_failed")
		r.Err = err
		return r
	}
	a, err := pipeline.Analyze(img)
	if err != nil {
		metrics.RecordBatchImage("skipped")
		r.Err = err
		return r
	}
	metrics.RecordBatchImage("classified")
	r.Analysis = a
	r.Metrics = ComputeFacialMetrics(a.Measurements)
	return r
}

// walkDir starts a new goroutine to walk the specified directory tree
// in recursive manner and sends the path of each supported file to a new channel.
// It finishes in case the context is cancelled.
func walkDir(ctx context.Context, src string, exts []string) (<-chan string, <-chan error) {
	pathChan := make(chan string)
	errChan := make(chan error, 1)

	go func() {
		// Close the paths channel after Walk returns.
		defer close(pathChan)

		errChan <- filepath.Walk(src, func(path string, f os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !f.Mode().IsRegular() || !isValidExtension(filepath.Ext(f.Name()), exts) {
				return nil
			}
			select {
			case <-ctx.Done():
				return errors.New("directory walk cancelled")
			case pathChan <- path:
			}
			return nil
		})
	}()
	return pathChan, errChan
}

// isValidExtension checks for the supported extensions.
func isValidExtension(ext string, extensions []string) bool {
	ext = strings.ToLower(ext)
	for _, ex := range extensions {
		if ex == ext {
			return true
		}
	}
	return false
}
