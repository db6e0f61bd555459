// Package scheduler drives the business-rules evaluator on a cron
// schedule, independent of any attendant's browser session. Rule
// application itself is idempotent, so overlapping or retried runs across
// instances are harmless.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/adhocore/gronx"

	"supportdesk/services"
)

// Start launches the evaluation loop and returns its cancel func. The
// loop sleeps until the next cron tick and runs one EvaluateAll per tick.
func Start(ctx context.Context, rules *services.RulesService, cronExpr string) (context.CancelFunc, error) {
	if cronExpr == "" {
		cronExpr = "* * * * *"
	}
	if !gronx.IsValid(cronExpr) {
		return nil, fmt.Errorf("invalid rules cron expression: %s", cronExpr)
	}

	ctx2, cancel := context.WithCancel(ctx)
	go run(ctx2, rules, cronExpr)
	return cancel, nil
}

func run(ctx context.Context, rules *services.RulesService, cronExpr string) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			log.Printf("rules scheduler: next tick failed: %v", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case <-time.After(time.Until(next)):
			if err := rules.EvaluateAll(ctx, time.Now().UTC()); err != nil {
				log.Printf("rules evaluation error: %v", err)
			}
		case <-ctx.Done():
			return
		}
	}
}
