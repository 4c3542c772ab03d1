package testmongo

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	sharedContainer *MongoContainer
	sharedOnce      sync.Once
)

type MongoContainer struct {
	Container testcontainers.Container
	Client    *mongo.Client
	URI       string
}

// SetupSharedMongo starts one MongoDB container for the whole test binary.
// Call Cleanup once at the top-level test and use a fresh database name per subtest.
func SetupSharedMongo(t *testing.T) *MongoContainer {
	t.Helper()

	sharedOnce.Do(func() {
		ctx := context.Background()

		req := testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForLog("Waiting for connections"),
		}

		container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
		require.NoError(t, err)

		host, err := container.Host(ctx)
		require.NoError(t, err)

		port, err := container.MappedPort(ctx, "27017")
		require.NoError(t, err)

		uri := "mongodb://" + host + ":" + port.Port()

		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()

		client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
		require.NoError(t, err)
		require.NoError(t, client.Ping(connectCtx, nil))

		sharedContainer = &MongoContainer{
			Container: container,
			Client:    client,
			URI:       uri,
		}
	})

	require.NotNil(t, sharedContainer, "shared mongo container failed to start")
	return sharedContainer
}

func (mc *MongoContainer) Cleanup(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	if mc.Client != nil {
		_ = mc.Client.Disconnect(ctx)
	}

	if mc.Container != nil {
		if err := mc.Container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}
}

// DropDatabase removes a database left behind by a subtest.
func (mc *MongoContainer) DropDatabase(t *testing.T, name string) {
	t.Helper()
	require.NoError(t, mc.Client.Database(name).Drop(context.Background()))
}
