// cmd/pipeline/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/comprehend"
	awsiam "github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/tendant/simple-classify/internal/bus"
	"github.com/tendant/simple-classify/internal/classify"
	"github.com/tendant/simple-classify/internal/dataset"
	"github.com/tendant/simple-classify/internal/iam"
	"github.com/tendant/simple-classify/internal/jobs"
	"github.com/tendant/simple-classify/internal/storage"
	"github.com/tendant/simple-classify/pkg/schema"
)

type config struct {
	Region              string
	Bucket              string
	RoleName            string
	ClassifierName      string
	Language            string
	SourceCSV           string
	LabelColumn         int
	TextColumns         []int
	SkipHeader          bool
	TrainRatio          float64
	SplitSeed           int64
	WorkDir             string
	PollInterval        time.Duration
	PollMaxAttempts     int
	RolePropagationWait time.Duration
	NATSURL             string
	EventSubject        string
}

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	skipTeardown := flag.Bool("skip-teardown", false, "leave the classifier, role and uploaded objects in place")
	classifierARN := flag.String("classifier", "", "reuse an existing classifier ARN instead of training one")
	flag.Parse()

	cfg, err := loadConfig()
	if err != nil {
		fatal(logger, "load config", err)
	}

	runID := uuid.NewString()[:8]
	logger = logger.With("run_id", runID)
	logger.Info("pipeline starting",
		"region", cfg.Region,
		"bucket", cfg.Bucket,
		"source", cfg.SourceCSV,
		"poll_interval", cfg.PollInterval,
		"poll_max_attempts", cfg.PollMaxAttempts,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		fatal(logger, "load aws config", err)
	}

	store := storage.NewClient(s3.NewFromConfig(awsCfg), cfg.Bucket, cfg.Region)
	roles := iam.NewProvisioner(awsiam.NewFromConfig(awsCfg))
	provider := classify.NewClient(comprehend.NewFromConfig(awsCfg))
	poller := jobs.NewPoller(cfg.PollInterval, cfg.PollMaxAttempts)

	var events *bus.Client
	if cfg.NATSURL != "" {
		events, err = bus.Connect(cfg.NATSURL)
		if err != nil {
			fatal(logger, "connect to NATS", err, "nats_url", cfg.NATSURL)
		}
		defer events.Close()
		logger.Info("publishing stage events", "subject", cfg.EventSubject)
	}

	start := time.Now()

	// Stage 1: prepare the dataset.
	publishStage(events, cfg.EventSubject, runID, schema.StagePrepare, "", "started", nil)
	train, test, err := prepare(cfg)
	if err != nil {
		publishStage(events, cfg.EventSubject, runID, schema.StagePrepare, "", "failed", err)
		fatal(logger, "prepare dataset", err)
	}
	logger.Info("dataset prepared", "train_records", len(train), "test_records", len(test), "work_dir", cfg.WorkDir)

	// Stage 2: upload prepared files.
	trainKey := fmt.Sprintf("runs/%s/input/train.csv", runID)
	docsKey := fmt.Sprintf("runs/%s/input/docs.txt", runID)
	resultsPrefix := fmt.Sprintf("runs/%s/results/", runID)

	publishStage(events, cfg.EventSubject, runID, schema.StageUpload, "", "started", nil)
	if err := store.EnsureBucket(ctx); err != nil {
		fatal(logger, "ensure bucket", err, "bucket", cfg.Bucket)
	}
	uploads := map[string]string{
		trainKey: filepath.Join(cfg.WorkDir, "train.csv"),
		docsKey:  filepath.Join(cfg.WorkDir, "docs.txt"),
	}
	if err := store.UploadFiles(ctx, uploads); err != nil {
		publishStage(events, cfg.EventSubject, runID, schema.StageUpload, "", "failed", err)
		fatal(logger, "upload inputs", err)
	}
	logger.Info("inputs uploaded", "train_uri", store.URI(trainKey), "docs_uri", store.URI(docsKey))

	// Stage 3: provision the data-access role.
	publishStage(events, cfg.EventSubject, runID, schema.StageProvision, "", "started", nil)
	roleARN, err := roles.EnsureRole(ctx, cfg.RoleName, cfg.Bucket)
	if err != nil {
		publishStage(events, cfg.EventSubject, runID, schema.StageProvision, "", "failed", err)
		fatal(logger, "provision role", err, "role", cfg.RoleName)
	}
	logger.Info("role ready", "role_arn", roleARN)
	// IAM is eventually consistent; a freshly created role is not always
	// assumable immediately.
	sleepCtx(ctx, cfg.RolePropagationWait)

	// Stage 4: train the classifier, or reuse one.
	arn := *classifierARN
	if arn == "" {
		publishStage(events, cfg.EventSubject, runID, schema.StageTraining, "", "started", nil)
		name := fmt.Sprintf("%s-%s", cfg.ClassifierName, runID)
		res, err := poller.Run(ctx, jobs.KindTraining,
			func(ctx context.Context) (string, error) {
				return provider.CreateClassifier(ctx, classify.TrainingInput{
					Name:        name,
					RoleARN:     roleARN,
					TrainingURI: store.URI(trainKey),
					Language:    cfg.Language,
				})
			},
			provider.ClassifierState,
		)
		if err != nil {
			publishStage(events, cfg.EventSubject, runID, schema.StageTraining, res.JobID, res.Status, err)
			fatal(logger, "train classifier", err, "status", res.Status, "message", res.Message)
		}
		arn = res.JobID
		publishStage(events, cfg.EventSubject, runID, schema.StageTraining, arn, res.Status, nil)
		logger.Info("classifier trained", "classifier_arn", arn, "status", res.Status)
	} else {
		logger.Info("reusing classifier", "classifier_arn", arn)
	}

	// Stage 5: run the classification job.
	publishStage(events, cfg.EventSubject, runID, schema.StageClassification, "", "started", nil)
	jobRes, err := poller.Run(ctx, jobs.KindClassification,
		func(ctx context.Context) (string, error) {
			return provider.StartJob(ctx, classify.JobInput{
				Name:          fmt.Sprintf("%s-%s-infer", cfg.ClassifierName, runID),
				ClassifierARN: arn,
				RoleARN:       roleARN,
				InputURI:      store.URI(docsKey),
				OutputURI:     store.URI(resultsPrefix),
			})
		},
		provider.JobState,
	)
	if err != nil {
		publishStage(events, cfg.EventSubject, runID, schema.StageClassification, jobRes.JobID, jobRes.Status, err)
		fatal(logger, "classification job", err, "job_id", jobRes.JobID, "status", jobRes.Status, "message", jobRes.Message)
	}
	publishStage(events, cfg.EventSubject, runID, schema.StageClassification, jobRes.JobID, jobRes.Status, nil)
	logger.Info("classification complete", "job_id", jobRes.JobID, "status", jobRes.Status)

	// Stage 6: fetch and extract predictions.
	publishStage(events, cfg.EventSubject, runID, schema.StageResults, jobRes.JobID, "started", nil)
	predsPath, err := fetchResults(ctx, provider, store, jobRes.JobID, cfg.WorkDir)
	if err != nil {
		publishStage(events, cfg.EventSubject, runID, schema.StageResults, jobRes.JobID, "failed", err)
		fatal(logger, "fetch results", err, "job_id", jobRes.JobID)
	}
	logger.Info("predictions retrieved", "path", predsPath)

	// Stage 7: score against the held-out labels.
	preds, err := dataset.ReadPredictionsFile(predsPath)
	if err != nil {
		publishStage(events, cfg.EventSubject, runID, schema.StageScore, jobRes.JobID, "failed", err)
		fatal(logger, "read predictions", err, "path", predsPath)
	}
	score, err := dataset.ScorePredictions(preds, dataset.Labels(test))
	if err != nil {
		publishStage(events, cfg.EventSubject, runID, schema.StageScore, jobRes.JobID, "failed", err)
		fatal(logger, "score predictions", err)
	}
	logger.Info("scored", "accuracy", fmt.Sprintf("%.4f", score.Accuracy()), "correct", score.Correct, "total", score.Total)
	for label, ls := range score.PerLabel {
		logger.Info("label score", "label", label, "correct", ls.Correct, "total", ls.Total)
	}
	publishStage(events, cfg.EventSubject, runID, schema.StageScore, jobRes.JobID, "completed", nil)

	// Stage 8: teardown.
	if !*skipTeardown {
		publishStage(events, cfg.EventSubject, runID, schema.StageTeardown, "", "started", nil)
		teardown(ctx, logger, provider, store, roles, cfg, arn, []string{trainKey, docsKey}, resultsPrefix, *classifierARN != "")
	}

	summary := schema.RunSummary{
		RunID:            runID,
		ClassifierARN:    arn,
		JobID:            jobRes.JobID,
		TrainDocuments:   len(train),
		TestDocuments:    len(test),
		Accuracy:         score.Accuracy(),
		ProcessingTimeMs: time.Since(start).Milliseconds(),
		HappenedAt:       time.Now().Unix(),
	}
	if err := events.PublishJSON(cfg.EventSubject+".summary", summary); err != nil {
		logger.Error("publish run summary failed", "err", err)
	}
	logger.Info("pipeline finished", "elapsed", time.Since(start).Round(time.Second))
}

func prepare(cfg config) (train, test []dataset.Record, err error) {
	records, err := dataset.Load(cfg.SourceCSV, dataset.LoadOptions{
		LabelColumn: cfg.LabelColumn,
		TextColumns: cfg.TextColumns,
		SkipHeader:  cfg.SkipHeader,
	})
	if err != nil {
		return nil, nil, err
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("no usable records in %s", cfg.SourceCSV)
	}

	train, test, err = dataset.Split(records, cfg.TrainRatio, cfg.SplitSeed)
	if err != nil {
		return nil, nil, err
	}
	if len(train) == 0 || len(test) == 0 {
		return nil, nil, fmt.Errorf("split produced empty set: %d train, %d test", len(train), len(test))
	}

	if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("ensure work dir: %w", err)
	}
	if err := dataset.WriteTraining(filepath.Join(cfg.WorkDir, "train.csv"), train); err != nil {
		return nil, nil, err
	}
	if err := dataset.WriteDocuments(filepath.Join(cfg.WorkDir, "docs.txt"), test); err != nil {
		return nil, nil, err
	}
	// Truth set kept locally for re-scoring with cmd/score.
	if err := dataset.WriteTraining(filepath.Join(cfg.WorkDir, "truth.csv"), test); err != nil {
		return nil, nil, err
	}
	return train, test, nil
}

func fetchResults(ctx context.Context, provider *classify.Client, store *storage.Client, jobID, workDir string) (string, error) {
	uri, err := provider.JobOutputURI(ctx, jobID)
	if err != nil {
		return "", err
	}
	bucket, key, err := storage.ParseURI(uri)
	if err != nil {
		return "", err
	}

	archive := filepath.Join(workDir, "output.tar.gz")
	if err := store.Download(ctx, bucket, key, archive); err != nil {
		return "", err
	}
	return storage.ExtractPredictions(archive, workDir)
}

func teardown(ctx context.Context, logger *slog.Logger, provider *classify.Client, store *storage.Client, roles *iam.Provisioner, cfg config, arn string, keys []string, resultsPrefix string, keepClassifier bool) {
	if !keepClassifier {
		if err := provider.DeleteClassifier(ctx, arn); err != nil {
			logger.Warn("delete classifier failed", "classifier_arn", arn, "err", err)
		}
	}
	if err := store.DeleteKeys(ctx, keys); err != nil {
		logger.Warn("delete uploaded objects failed", "err", err)
	}
	if err := store.DeletePrefix(ctx, resultsPrefix); err != nil {
		logger.Warn("delete result objects failed", "prefix", resultsPrefix, "err", err)
	}
	if err := roles.DeleteRole(ctx, cfg.RoleName); err != nil {
		logger.Warn("delete role failed", "role", cfg.RoleName, "err", err)
	}
	logger.Info("teardown finished")
}

func stageEvent(runID string, stage schema.PipelineStage, jobID, status string, cause error) schema.StageEvent {
	evt := schema.StageEvent{
		RunID:      runID,
		Stage:      stage,
		JobID:      jobID,
		Status:     status,
		HappenedAt: time.Now().Unix(),
	}
	if cause != nil {
		evt.Error = cause.Error()
	}
	return evt
}

func publishStage(events *bus.Client, subject, runID string, stage schema.PipelineStage, jobID, status string, cause error) {
	if err := events.PublishJSON(subject, stageEvent(runID, stage, jobID, status, cause)); err != nil {
		slog.Error("publish stage event failed", "stage", stage, "err", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

func fatal(logger *slog.Logger, msg string, err error, attrs ...any) {
	attrs = append(attrs, "err", err)
	logger.Error(msg, attrs...)
	os.Exit(1)
}

func loadConfig() (config, error) {
	cfg := config{
		Region:         getenv("AWS_REGION", "us-east-1"),
		Bucket:         getenv("CLASSIFY_BUCKET", ""),
		RoleName:       getenv("CLASSIFY_ROLE_NAME", "simple-classify-data-access"),
		ClassifierName: getenv("CLASSIFY_NAME", "simple-classify"),
		Language:       getenv("CLASSIFY_LANGUAGE", "en"),
		SourceCSV:      getenv("SOURCE_CSV", ""),
		SkipHeader:     getenv("SOURCE_SKIP_HEADER", "false") == "true",
		WorkDir:        getenv("WORK_DIR", "./data/classify"),
		NATSURL:        getenv("NATS_URL", ""),
		EventSubject:   getenv("EVENT_SUBJECT", "classify.pipeline.events"),
	}

	if cfg.Bucket == "" {
		return config{}, fmt.Errorf("CLASSIFY_BUCKET must be set")
	}
	if cfg.SourceCSV == "" {
		return config{}, fmt.Errorf("SOURCE_CSV must be set")
	}

	labelCol, err := parseNonNegativeInt(getenv("SOURCE_LABEL_COLUMN", "0"), "SOURCE_LABEL_COLUMN")
	if err != nil {
		return config{}, err
	}
	cfg.LabelColumn = labelCol

	cfg.TextColumns, err = parseColumns(getenv("SOURCE_TEXT_COLUMNS", "1,2"))
	if err != nil {
		return config{}, fmt.Errorf("parse SOURCE_TEXT_COLUMNS: %w", err)
	}

	ratio, err := strconv.ParseFloat(getenv("TRAIN_RATIO", "0.8"), 64)
	if err != nil || ratio <= 0 || ratio >= 1 {
		return config{}, fmt.Errorf("invalid TRAIN_RATIO: %q", getenv("TRAIN_RATIO", "0.8"))
	}
	cfg.TrainRatio = ratio

	seed, err := strconv.ParseInt(getenv("SPLIT_SEED", "42"), 10, 64)
	if err != nil {
		return config{}, fmt.Errorf("invalid SPLIT_SEED: %w", err)
	}
	cfg.SplitSeed = seed

	intervalSec, err := parsePositiveInt(getenv("POLL_INTERVAL_SECONDS", "15"), "POLL_INTERVAL_SECONDS")
	if err != nil {
		return config{}, err
	}
	cfg.PollInterval = time.Duration(intervalSec) * time.Second

	attempts, err := parsePositiveInt(getenv("POLL_MAX_ATTEMPTS", "240"), "POLL_MAX_ATTEMPTS")
	if err != nil {
		return config{}, err
	}
	cfg.PollMaxAttempts = attempts

	waitSec, err := parseNonNegativeInt(getenv("ROLE_PROPAGATION_SECONDS", "10"), "ROLE_PROPAGATION_SECONDS")
	if err != nil {
		return config{}, err
	}
	cfg.RolePropagationWait = time.Duration(waitSec) * time.Second

	return cfg, nil
}

func parseColumns(value string) ([]int, error) {
	parts := strings.Split(value, ",")
	cols := make([]int, 0, len(parts))
	for _, part := range parts {
		col, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || col < 0 {
			return nil, fmt.Errorf("invalid column %q", part)
		}
		cols = append(cols, col)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("no columns in %q", value)
	}
	return cols, nil
}

func parsePositiveInt(value string, name string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("%s must be greater than zero (got %d)", name, v)
	}
	return v, nil
}

func parseNonNegativeInt(value string, name string) (int, error) {
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("%s must not be negative (got %d)", name, v)
	}
	return v, nil
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}
