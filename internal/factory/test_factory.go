package factory

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mcoot/lobbysync/internal/dependencies/mocks"
	"github.com/mcoot/lobbysync/internal/services/auth"
	"github.com/mcoot/lobbysync/internal/storage/memory"
	"github.com/mcoot/lobbysync/internal/testutil"
)

// TestApp extends App with test-specific helpers
type TestApp struct {
	*App

	MockClock  *mocks.MockClock
	MockRandom *mocks.MockRandom
}

// NewTestApp creates an App on memory storage with a fixed clock and a
// random source that hands out queued secrets. Callers should Close it.
func NewTestApp() *TestApp {
	store := memory.New()
	mockClock := mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	mockRandom := mocks.NewMockRandom()
	mockRandom.Fallback = "test-secret"

	authCfg := auth.Config{SessionDuration: time.Hour, HashCost: bcrypt.MinCost}
	app := newWithDependencies(store, mockClock, mockRandom, authCfg, testutil.NopLogger())

	return &TestApp{
		App:        app,
		MockClock:  mockClock,
		MockRandom: mockRandom,
	}
}
