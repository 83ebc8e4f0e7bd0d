package integration

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/asusplayer/time-lapse/internal/domain/entity"
	"github.com/asusplayer/time-lapse/internal/infra/ffmpeg"
	miniostorage "github.com/asusplayer/time-lapse/internal/infra/minio"
	"github.com/asusplayer/time-lapse/internal/infra/postgres"
	"github.com/asusplayer/time-lapse/internal/infra/rabbitmq"
	"github.com/asusplayer/time-lapse/internal/usecase"
	"github.com/asusplayer/time-lapse/pkg/logger"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tcminio "github.com/testcontainers/testcontainers-go/modules/minio"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcrabbitmq "github.com/testcontainers/testcontainers-go/modules/rabbitmq"
)

// stubCompiler stands in for ffmpeg so the test only depends on the sinks.
type stubCompiler struct{}

func (stubCompiler) Compile(_ context.Context, framePaths []string, outputPath string) error {
	return os.WriteFile(outputPath, []byte("mp4:"+filepath.Base(framePaths[0])), 0o644)
}

func TestAssembledArtifactReachesAllSinks(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	// Start PostgreSQL container
	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:15-alpine",
		tcpostgres.WithDatabase("timelapse"),
		tcpostgres.WithUsername("timelapse"),
		tcpostgres.WithPassword("timelapse"),
		tcpostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	defer pgContainer.Terminate(ctx)

	pgConnStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Start RabbitMQ container
	rmqContainer, err := tcrabbitmq.Run(ctx, "rabbitmq:3.12-management-alpine")
	require.NoError(t, err)
	defer rmqContainer.Terminate(ctx)

	rmqURL, err := rmqContainer.AmqpURL(ctx)
	require.NoError(t, err)

	// Start MinIO container
	minioContainer, err := tcminio.Run(ctx,
		"minio/minio:latest",
		tcminio.WithUsername("minioadmin"),
		tcminio.WithPassword("minioadmin"),
	)
	require.NoError(t, err)
	defer minioContainer.Terminate(ctx)

	minioEndpoint, err := minioContainer.ConnectionString(ctx)
	require.NoError(t, err)

	require.NoError(t, postgres.RunMigrations(pgConnStr))
	// Applying twice is a no-op.
	require.NoError(t, postgres.RunMigrations(pgConnStr))

	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:  minioEndpoint,
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Bucket:    "timelapses",
	})
	require.NoError(t, err)
	require.NoError(t, storage.EnsureBucket(ctx))

	pub, err := rabbitmq.Dial(rmqURL, "timelapse.events")
	require.NoError(t, err)
	defer pub.Close()

	// Bind a queue so the published event can be observed
	conn, err := amqp.Dial(rmqURL)
	require.NoError(t, err)
	defer conn.Close()
	ch, err := conn.Channel()
	require.NoError(t, err)
	defer ch.Close()
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	require.NoError(t, err)
	require.NoError(t, ch.QueueBind(q.Name, rabbitmq.ArtifactRoutingKey, "timelapse.events", false, nil))
	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, pgConnStr)
	require.NoError(t, err)
	defer pool.Close()

	log, _ := logger.New("debug")
	repo := postgres.NewArtifactRepository(pool)
	publisher := usecase.NewPublishArtifactUseCase(
		repo, storage, rabbitmq.NewEventPublisher(pub, log), nil, nil, log,
		usecase.PublishConfig{UploadRetries: 2, RetryDelay: 100 * time.Millisecond},
	)

	framesDir, outDir := t.TempDir(), t.TempDir()
	start := time.Date(2024, 6, 1, 6, 0, 0, 0, time.UTC)
	var frames []entity.Frame
	for i := 1; i <= 3; i++ {
		f := entity.NewFrame(framesDir, uint64(i), start.Add(time.Duration(i-1)*time.Minute))
		require.NoError(t, os.WriteFile(f.Path, []byte("jpeg"), 0o644))
		frames = append(frames, f)
	}

	assembler := usecase.NewBatchAssembler(stubCompiler{}, ffmpeg.NewZipArchiver(), nil, publisher, log,
		usecase.AssemblerConfig{OutputDir: outDir})
	result, err := assembler.Assemble(ctx, entity.Batch{
		Kind:      entity.BatchKindScheduled,
		StartedAt: start,
		Frames:    frames,
	})
	require.NoError(t, err)

	artifact := result.Artifact
	assert.Equal(t, "2024/06/timelapse_20240601_060000.mp4", artifact.ObjectKey)

	// Event
	var event entity.ArtifactEventMessage
	select {
	case d := <-deliveries:
		require.NoError(t, json.Unmarshal(d.Body, &event))
	case <-time.After(30 * time.Second):
		t.Fatal("timeout waiting for artifact event")
	}
	assert.Equal(t, artifact.ID, event.ArtifactID)
	assert.Equal(t, entity.ArtifactStatusCompleted, event.Status)
	assert.Equal(t, 3, event.FrameCount)
	assert.Equal(t, artifact.ObjectKey, event.ObjectKey)

	// Object
	size, err := storage.StatArtifact(ctx, artifact.ObjectKey)
	require.NoError(t, err)
	assert.Equal(t, artifact.SizeBytes, size)

	// Catalog
	stored, err := repo.FindByID(ctx, artifact.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ArtifactStatusCompleted, stored.Status)
	assert.Equal(t, entity.BatchKindScheduled, stored.Kind)
	assert.Equal(t, "timelapse_20240601_060000.mp4", stored.Path)
	assert.Equal(t, artifact.ObjectKey, stored.ObjectKey)
	assert.Equal(t, 3, stored.FrameCount)
	assert.NotNil(t, stored.CompletedAt)

	t.Logf("artifact %s catalogued, uploaded and announced", artifact.ID)
}
