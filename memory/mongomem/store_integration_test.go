package mongomem

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

var (
	testClient    *mongo.Client
	testContainer testcontainers.Container
	skipTests     bool
)

// setupMongo starts a disposable mongo:7 container the same way the
// teacher's registry/store/mongo test suite does, falling back to skipping
// the suite when Docker is unavailable rather than failing the run.
func setupMongo(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Printf("docker not available, mongomem integration tests will be skipped: %v\n", r)
			skipTests = true
		}
	}()

	req := testcontainers.ContainerRequest{
		Image:        "mongo:7",
		ExposedPorts: []string{"27017/tcp"},
		WaitingFor:   wait.ForLog("Waiting for connections"),
		Tmpfs:        map[string]string{"/data/db": "rw"},
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		fmt.Printf("docker not available, mongomem integration tests will be skipped: %v\n", err)
		skipTests = true
		return
	}
	testContainer = container

	host, err := container.Host(ctx)
	if err != nil {
		skipTests = true
		return
	}
	port, err := container.MappedPort(ctx, "27017")
	if err != nil {
		skipTests = true
		return
	}

	uri := fmt.Sprintf("mongodb://%s:%s", host, port.Port())
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		skipTests = true
		return
	}
	if err := client.Ping(ctx, nil); err != nil {
		skipTests = true
		return
	}
	testClient = client
}

func getStore(t *testing.T) *Store {
	t.Helper()
	if skipTests {
		t.Skip("docker not available, skipping mongomem integration test")
	}
	coll := testClient.Database("mongomem_test").Collection(t.Name())
	_, err := coll.Indexes().CreateOne(context.Background(), mongo.IndexModel{
		Keys:    bson.D{{Key: "user_scope", Value: 1}, {Key: "key", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		t.Fatalf("create index: %v", err)
	}
	return New(coll)
}

func TestMain(m *testing.M) {
	ctx := context.Background()
	setupMongo(ctx)
	code := m.Run()
	if testContainer != nil {
		_ = testContainer.Terminate(ctx)
	}
	os.Exit(code)
}

func TestStorePutAndGetRoundTrips(t *testing.T) {
	store := getStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, "nickname", "ringo", "user-1"); err != nil {
		t.Fatalf("put: %v", err)
	}
	val, ok, err := store.Get(ctx, "nickname", "user-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok || val != "ringo" {
		t.Fatalf("expected nickname=ringo, got ok=%v val=%v", ok, val)
	}

	if _, ok, err := store.Get(ctx, "nickname", "user-2"); err != nil || ok {
		t.Fatalf("expected no entry for a different user_scope, got ok=%v err=%v", ok, err)
	}
}

func TestStorePutUpserts(t *testing.T) {
	store := getStore(t)
	ctx := context.Background()

	if err := store.Put(ctx, "status", "away", "user-1"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Put(ctx, "status", "online", "user-1"); err != nil {
		t.Fatalf("put: %v", err)
	}
	val, ok, err := store.Get(ctx, "status", "user-1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if val != "online" {
		t.Fatalf("expected the second put to overwrite the first, got %v", val)
	}
}
