package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/disintegration/imaging"
	"github.com/esimov/faceshape"
	"github.com/esimov/faceshape/capture"
	"github.com/esimov/faceshape/config"
	"github.com/esimov/faceshape/detector"
	"github.com/esimov/faceshape/logger"
	"github.com/esimov/faceshape/metrics"
	"github.com/esimov/faceshape/modelstore"
	"github.com/esimov/faceshape/sink"
	"github.com/esimov/faceshape/utils"
	"github.com/joho/godotenv"
	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

const HelpBanner = `
┌─┐┌─┐┌─┐┌─┐┌─┐┬ ┬┌─┐┌─┐┌─┐
├┤ ├─┤│  ├┤ └─┐├─┤├─┤├─┘├┤
└  ┴ ┴└─┘└─┘└─┘┴ ┴┴ ┴┴  └─┘

Face shape classification from a camera, a video or an image sequence.
    Version: %s

`

// pipeName is the file name that indicates stdin/stdout is being used.
const pipeName = "-"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Version indicates the current build version.
var Version string

var (
	// Flags
	source      = flag.String("in", pipeName, "Source: image directory, video file, stream URL, capture device or - for a BMP pipe")
	destination = flag.String("out", pipeName, "Destination of the JSON result")
	format      = flag.String("format", "", "ffmpeg input format of a capture device (v4l2, avfoundation, dshow)")
	fps         = flag.Int("fps", 20, "Frames per second extracted through ffmpeg")
	batch       = flag.Bool("batch", false, "Classify every image of the source directory independently")
	configFile  = flag.String("config", "", "YAML configuration file")
	envFile     = flag.String("env", ".env", "Environment file")
	strategy    = flag.String("strategy", "", "Classifier strategy: auto, learned or heuristic")
	debugDir    = flag.String("debug", "", "Directory receiving the annotated images of a batch run")
)

func main() {
	log.SetFlags(0)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, HelpBanner, Version)
		flag.PrintDefaults()
	}
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf(utils.DecorateText("Unable to load the environment file: %v", utils.ErrorMessage), err)
	}
	if *configFile != "" {
		os.Setenv(config.EnvConfigFile, *configFile)
	}
	if *strategy != "" {
		os.Setenv("FACESHAPE_STRATEGY", *strategy)
	}

	cfg, err := config.Load(context.Background())
	if err != nil {
		log.Fatalf(utils.DecorateText("Failed to load the configuration: %v", utils.ErrorMessage), err)
	}
	logg, err := logger.New(cfg.Logger())
	if err != nil {
		log.Fatalf(utils.DecorateText("Failed to create the logger: %v", utils.ErrorMessage), err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		fmt.Fprintf(os.Stderr,
			utils.DecorateText("\nError classifying the face shape: %s", utils.ErrorMessage),
			utils.DecorateText(fmt.Sprintf("\n\tReason: %v\n", err.Error()), utils.DefaultMessage),
		)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logrus.Logger) error {
	store, err := newStore(cfg, logg)
	if err != nil {
		return err
	}
	pipeline, err := newPipeline(ctx, cfg, store, logg)
	if err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, logg)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	now := time.Now()
	spinnerText := fmt.Sprintf("%s %s",
		utils.DecorateText("⚡ FACESHAPE", utils.StatusMessage),
		utils.DecorateText("is analyzing the face shape...", utils.DefaultMessage))
	spinner := utils.NewSpinner(os.Stderr, spinnerText, time.Millisecond*200, true)
	spinner.Start()

	var result any
	if *batch {
		result, err = runBatch(ctx, cfg, pipeline)
	} else {
		result, err = runSession(ctx, cfg, pipeline, spinner, logg)
	}

	spinner.StopMsg = fmt.Sprintf("%s %s",
		utils.DecorateText("⚡ FACESHAPE", utils.StatusMessage),
		utils.DecorateText("is analyzing the face shape... ✔", utils.DefaultMessage))
	spinner.Stop()

	if err != nil {
		return err
	}
	if err := writeResult(*destination, result); err != nil {
		return err
	}
	if res, ok := result.(faceshape.SessionResult); ok {
		printSummary(res.Report)
	}

	fmt.Fprintf(os.Stderr, "\nExecution time: %s\n", utils.DecorateText(utils.FormatTime(time.Since(now)), utils.SuccessMessage))
	return nil
}

// newStore creates the artifact store. The S3 client is only created when an artifact lives on S3.
func newStore(cfg *config.Config, logg *logrus.Logger) (*modelstore.Store, error) {
	opts := []modelstore.Option{modelstore.WithLogger(logg)}

	for _, uri := range []string{cfg.FaceCascade, cfg.PupilCascade, cfg.ModelURI, cfg.ScalerURI} {
		if strings.HasPrefix(uri, "s3://") {
			client, err := modelstore.NewS3Client(cfg.S3)
			if err != nil {
				return nil, err
			}
			opts = append(opts, modelstore.WithS3Client(client))
			break
		}
	}
	return modelstore.New(opts...), nil
}

// newPipeline loads the detection cascades and the classifier artifacts, then assembles the analysis pipeline.
func newPipeline(ctx context.Context, cfg *config.Config, store *modelstore.Store, logg logrus.FieldLogger) (*faceshape.Pipeline, error) {
	faceCascade, err := store.Load(ctx, cfg.FaceCascade)
	if err != nil {
		return nil, fmt.Errorf("unable to load the face cascade: %w", err)
	}
	var pupilCascade []byte
	if cfg.PupilCascade != "" {
		if pupilCascade, err = store.Load(ctx, cfg.PupilCascade); err != nil {
			return nil, fmt.Errorf("unable to load the pupil cascade: %w", err)
		}
	}
	det, err := detector.New(faceCascade, pupilCascade, cfg.Detection)
	if err != nil {
		return nil, err
	}

	classifier, err := newClassifier(ctx, cfg, store, logg)
	if err != nil {
		return nil, err
	}

	var eyes faceshape.EyeDetector
	if det.HasEyeDetection() {
		eyes = det
	}
	return faceshape.NewPipeline(det, faceshape.NewMeasurer(eyes), classifier).WithContour(true), nil
}

// newClassifier resolves the classification strategy. In auto mode a model which cannot be loaded
// leaves the session on the heuristic scorer, only the learned strategy requires the model.
func newClassifier(ctx context.Context, cfg *config.Config, store *modelstore.Store, logg logrus.FieldLogger) (faceshape.ShapeClassifier, error) {
	var learned *faceshape.LearnedClassifier
	if cfg.ModelURI != "" && cfg.Strategy != faceshape.StrategyHeuristic {
		var err error
		if learned, err = loadLearned(ctx, cfg, store); err != nil {
			if cfg.Strategy == faceshape.StrategyLearned {
				return nil, err
			}
			logg.WithError(err).WithField("model", cfg.ModelURI).Warn("falling back to the heuristic scorer")
			learned = nil
		}
	}
	return faceshape.SelectClassifier(learned, cfg.Strategy)
}

func loadLearned(ctx context.Context, cfg *config.Config, store *modelstore.Store) (*faceshape.LearnedClassifier, error) {
	model, err := store.Load(ctx, cfg.ModelURI)
	if err != nil {
		return nil, fmt.Errorf("unable to load the model: %w", err)
	}
	scaler, err := store.Load(ctx, cfg.ScalerURI)
	if err != nil {
		return nil, fmt.Errorf("unable to load the scaler: %w", err)
	}
	return faceshape.LoadLearnedClassifier(model, scaler)
}

func runBatch(ctx context.Context, cfg *config.Config, pipeline *faceshape.Pipeline) (any, error) {
	fs, err := os.Stat(*source)
	if err != nil {
		return nil, fmt.Errorf("failed to load the source directory: %w", err)
	}
	if !fs.IsDir() {
		return nil, errors.New("batch mode requires a source directory")
	}

	results, err := faceshape.BatchClassify(ctx, *source, cfg.Workers, pipeline)
	if err != nil {
		return nil, err
	}
	if *debugDir != "" {
		if err := writeAnnotations(*debugDir, results); err != nil {
			return nil, err
		}
	}

	type item struct {
		faceshape.BatchResult
		Error string `json:"error,omitempty"`
	}
	items := make([]item, 0, len(results))
	for _, res := range results {
		it := item{BatchResult: res}
		if res.Err != nil {
			it.Error = res.Err.Error()
		}
		items = append(items, it)
	}
	return items, nil
}

// writeAnnotations saves a copy of every analyzed image with its face box and bands drawn over it.
func writeAnnotations(dir string, results []faceshape.BatchResult) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("unable to create the debug directory: %w", err)
	}
	for _, res := range results {
		if res.Err != nil {
			continue
		}
		img, err := imaging.Open(res.Path)
		if err != nil {
			return err
		}
		name := filepath.Join(dir, filepath.Base(res.Path))
		if err := imaging.Save(faceshape.Annotate(img, res.Analysis), name); err != nil {
			return fmt.Errorf("unable to save the annotated image: %w", err)
		}
	}
	return nil
}

func runSession(ctx context.Context, cfg *config.Config, pipeline *faceshape.Pipeline, spinner *utils.Spinner, logg *logrus.Logger) (any, error) {
	src, err := openSource(ctx)
	if err != nil {
		return nil, err
	}

	session := faceshape.NewSession(src, pipeline,
		faceshape.WithLogger(logg),
		faceshape.WithHistorySize(cfg.HistorySize),
	)

	// A stop request ends the capture gracefully, the partial result is still reported.
	go func() {
		<-ctx.Done()
		session.Stop()
	}()

	progress := make(chan struct{})
	go showProgress(spinner, session, progress)

	res, err := session.Collect(context.WithoutCancel(ctx), cfg.Policy())
	close(progress)
	if err != nil {
		return nil, err
	}

	if cfg.Redis.Addr != "" {
		if err := publish(ctx, cfg, res, logg); err != nil {
			logg.WithError(err).Warn("unable to publish the session result")
		}
	}
	return res, nil
}

// showProgress updates the spinner with the session progress until done is closed.
func showProgress(spinner *utils.Spinner, session *faceshape.Session, done <-chan struct{}) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			spinner.SetMessage(fmt.Sprintf("%s %s",
				utils.DecorateText("⚡ FACESHAPE", utils.StatusMessage),
				utils.DecorateText(fmt.Sprintf("is analyzing the face shape... %d frames, %d predictions",
					session.Frames(), session.Aggregator().Len()), utils.DefaultMessage)))
		}
	}
}

// printSummary prints the ranked face shapes of the session.
func printSummary(report faceshape.AggregatedReport) {
	if report.Undetected() {
		fmt.Fprintf(os.Stderr, "\n%s\n", utils.DecorateText("No face shape could be detected.", utils.WarningMessage))
		return
	}
	for i, r := range report.Ranked {
		msgType := utils.DefaultMessage
		if i == 0 {
			msgType = utils.SuccessMessage
		}
		fmt.Fprintf(os.Stderr, "\n\t%s", utils.DecorateText(utils.FormatShare(r.Label.String(), r.Percentage), msgType))
	}
	fmt.Fprintln(os.Stderr)
}

// openSource selects the frame source: an image directory, a BMP pipe on stdin or an ffmpeg input.
func openSource(ctx context.Context) (faceshape.FrameSource, error) {
	if *source == pipeName {
		if term.IsTerminal(int(os.Stdin.Fd())) {
			return nil, errors.New("`-` should be used with a pipe for stdin")
		}
		return capture.NewBMPStream(os.Stdin), nil
	}
	if fs, err := os.Stat(*source); err == nil && fs.IsDir() {
		return capture.NewDirSource(*source)
	}
	return capture.NewFFmpegSource(ctx, *source, *format, *fps)
}

func publish(ctx context.Context, cfg *config.Config, res faceshape.SessionResult, logg *logrus.Logger) error {
	sinkCfg := cfg.Sink()
	client, err := sink.Connect(ctx, sinkCfg)
	if err != nil {
		return err
	}
	defer client.Close()

	return sink.NewPublisher(client, sinkCfg, logg).Publish(ctx, res)
}

func serveMetrics(addr string, logg *logrus.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.WithError(err).Error("metrics server stopped")
		}
	}()
	return srv
}

// writeResult encodes the result as indented JSON into the destination file or stdout.
func writeResult(out string, result any) error {
	var dst io.Writer
	if out == pipeName {
		dst = os.Stdout
	} else {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("unable to create the destination file: %w", err)
		}
		defer f.Close()
		dst = f
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("unable to encode the result: %w", err)
	}
	if _, err := fmt.Fprintln(dst, string(data)); err != nil {
		return err
	}

	if out != pipeName {
		fmt.Fprintf(os.Stderr, "\nThe result has been saved as: %s\n", utils.DecorateText(out, utils.SuccessMessage))
	}
	return nil
}
