package main

import (
	"os"
	"testing"
)

// TestMain clears settings a developer .env could leak into the tests.
func TestMain(m *testing.M) {
	for _, key := range []string{"BLOB_BACKEND", "FAL_KEY", "GEMINI_API_KEY", "DATABASE_URL", "LOCAL_BLOB_DIR", "PORT"} {
		_ = os.Unsetenv(key)
	}
	os.Exit(m.Run())
}
