//go:build integration

package testutil

import (
	"fmt"
	"os"
	"testing"
	"time"

	"carrental/pkg/client"
)

const DefaultHealthCheckTimeout = 30 * time.Second

type TestEnv struct {
	MongoURI     string
	DatabaseName string
	ServerURL    string
	ServerPort   string
}

func NewTestEnv() *TestEnv {
	serverPort := getEnv("TEST_SERVER_PORT", "8080")
	return &TestEnv{
		MongoURI:     getEnv("TEST_MONGO_URI", DefaultMongoURI),
		DatabaseName: getEnv("TEST_DB_NAME", DefaultDatabaseName),
		ServerURL:    getEnv("TEST_SERVER_URL", fmt.Sprintf("http://localhost:%s", serverPort)),
		ServerPort:   serverPort,
	}
}

// Setup connects to the service's database, empties the data collections
// and waits for the service to answer /health.
func (e *TestEnv) Setup(t *testing.T) *MongoHelper {
	t.Helper()

	mongo := NewMongoHelper(t, e.MongoURI, e.DatabaseName)
	mongo.CleanDatabase(t)

	if err := client.NewHttpClient(e.ServerURL).WaitForHealthy(DefaultHealthCheckTimeout); err != nil {
		t.Fatalf("service not healthy: %v", err)
	}
	return mongo
}

func (e *TestEnv) Cleanup(t *testing.T, mongo *MongoHelper) {
	t.Helper()

	if mongo != nil {
		mongo.CleanDatabase(t)
		mongo.Close(t)
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
