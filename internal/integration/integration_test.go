package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"spaceforces-client/internal/domain"
	"spaceforces-client/internal/infra/memory"
	pgsource "spaceforces-client/internal/infra/postgres"
	pgmigrations "spaceforces-client/internal/infra/postgres/migrations"
	infraredis "spaceforces-client/internal/infra/redis"
	"spaceforces-client/internal/session"
)

func TestQuizSessionEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	start := time.Now().Add(-time.Minute)
	seedContest(t, ctx, pgURL, sampleContest(start))

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	poolClosed := false
	defer func() {
		if !poolClosed {
			pool.Close()
		}
	}()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	source := infraredis.NewContentCache(redisClient, pgsource.NewContentSource(pool), 5*time.Minute)
	submitter := memory.NewLocalSubmitter()

	sess := session.New(session.Config{
		Source:    source,
		Submitter: submitter,
		QuizID:    1,
		Tick:      -1,
	})
	defer sess.Close()

	if err := sess.Start(ctx); err != nil {
		t.Fatalf("start session: %v", err)
	}
	snap := sess.Snapshot()
	if snap.State != session.StateInProgress || snap.QuestionCount != 2 {
		t.Fatalf("snapshot after start = %+v", snap)
	}

	// Options served through the cache must never carry validity.
	raw, err := redisClient.Get(ctx, "question:10:options").Bytes()
	if err != nil {
		t.Fatalf("cached options: %v", err)
	}
	if strings.Contains(strings.ToLower(string(raw)), "valid") {
		t.Fatalf("cache leaked validity: %s", raw)
	}

	if err := sess.SelectAnswer(10, 101); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := sess.Advance(session.Forward); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if err := sess.SelectAnswer(11, 111); err != nil {
		t.Fatalf("select second: %v", err)
	}
	if err := sess.Advance(session.Forward); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got := sess.Snapshot().State; got != session.StateReviewComplete {
		t.Fatalf("state = %s, want REVIEW_COMPLETE", got)
	}

	if _, err := sess.Submit(ctx); err != nil {
		t.Fatalf("submit: %v", err)
	}
	batches := submitter.Batches()
	if len(batches) != 1 || len(batches[0].Submissions) != 2 {
		t.Fatalf("batches = %+v", batches)
	}

	// A second session for the same contest is served from redis without
	// touching postgres again; the payload must be identical.
	pool.Close()
	poolClosed = true
	again := session.New(session.Config{
		Source:    source,
		Submitter: submitter,
		QuizID:    1,
		Tick:      -1,
	})
	defer again.Close()
	if err := again.Start(ctx); err != nil {
		t.Fatalf("start cached session: %v", err)
	}
	if got := again.Snapshot().QuestionCount; got != 2 {
		t.Fatalf("cached question count = %d, want 2", got)
	}
}

func TestRedisSessionRegistryEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	registry := infraredis.NewSessionRegistry(redisClient, time.Hour)
	releaseA := registry.Register(1)
	releaseB := registry.Register(1)
	if got := registry.Active(1); got != 2 {
		t.Fatalf("active = %d, want 2", got)
	}
	releaseA()
	releaseB()
	if got := registry.Active(1); got != 0 {
		t.Fatalf("active after release = %d, want 0", got)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func seedContest(t *testing.T, ctx context.Context, dsn string, content domain.QuizContent) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	data, err := json.Marshal(content)
	if err != nil {
		t.Fatalf("marshal contest: %v", err)
	}
	if _, err := db.ExecContext(ctx, `INSERT INTO contests (id, data) VALUES (?, ?::jsonb) ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data`, content.Quiz.ID, string(data)); err != nil {
		t.Fatalf("insert contest: %v", err)
	}
}

func sampleContest(start time.Time) domain.QuizContent {
	return domain.QuizContent{
		Quiz: domain.Quiz{
			ID:            1,
			Title:         "Outer Planets",
			Duration:      30,
			StartDateTime: start,
			Status:        domain.StatusLive,
		},
		Questions: []domain.Question{
			{ID: 10, Text: "Which moon orbits Neptune?", Points: 10},
			{ID: 11, Text: "Which planet has the Great Red Spot?", Points: 10},
		},
		Options: map[int64][]domain.ReviewOption{
			10: {
				{Option: domain.Option{ID: 100, Text: "Titan"}},
				{Option: domain.Option{ID: 101, Text: "Triton"}, Valid: true},
			},
			11: {
				{Option: domain.Option{ID: 110, Text: "Saturn"}},
				{Option: domain.Option{ID: 111, Text: "Jupiter"}, Valid: true},
			},
		},
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
