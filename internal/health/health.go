// Package health runs the startup checks: credential shape, database
// reachability and schema, and model endpoint reachability. Any failure here
// is fatal — the process should not come up half-working.
package health

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/phuslu/log"

	"jobscout/internal/store"
)

const checkTimeout = 30 * time.Second

// ModelPinger verifies the hosted model endpoint is usable.
type ModelPinger interface {
	Ping(ctx context.Context) error
}

// RunStartupChecks validates the credential, ensures the job_listings schema,
// and pings the model endpoint. The database connection itself is verified
// earlier, when the pool is constructed.
func RunStartupChecks(ctx context.Context, apiKey string, st *store.Store, model ModelPinger) error {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	log.Info().Msg("Running startup checks")

	if !strings.HasPrefix(apiKey, "sk-or-v1-") {
		return fmt.Errorf("OPENROUTER_API_KEY is missing or not an OpenRouter key")
	}

	if err := st.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("database schema check failed: %w", err)
	}
	log.Info().Msg("Database schema verified")

	if err := model.Ping(ctx); err != nil {
		return fmt.Errorf("model endpoint check failed: %w", err)
	}
	log.Info().Msg("Model endpoint reachable")

	return nil
}
