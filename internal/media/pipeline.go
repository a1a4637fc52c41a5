package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/evently/apiserver/internal/lib/sl"
	"github.com/evently/apiserver/types"
)

const (
	defaultTimeout = 60 * time.Second
	maxRetries     = 1
)

// Pipeline resolves the flyer URL of an event. Every upstream call runs under
// a timeout and is retried once.
type Pipeline struct {
	generator  Generator
	uploader   Uploader
	folder     string
	timeout    time.Duration
	newBackOff func() backoff.BackOff
	log        *slog.Logger
}

func NewPipeline(generator Generator, uploader Uploader, folder string, timeout time.Duration, log *slog.Logger) *Pipeline {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Pipeline{
		generator: generator,
		uploader:  uploader,
		folder:    folder,
		timeout:   timeout,
		newBackOff: func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		},
		log: log,
	}
}

// FlyerURL uploads flyer, generating one from the event text when flyer is nil.
func (p *Pipeline) FlyerURL(ctx context.Context, event types.Event, flyer *types.Flyer) (string, error) {
	if flyer == nil {
		if p.generator == nil {
			return "", fmt.Errorf("%w: no flyer supplied and image generation is not configured", ErrUpstream)
		}
		prompt := Prompt(event.Title, event.Description)
		generated, err := retry(ctx, p, "generate flyer", func(ctx context.Context) (types.Flyer, error) {
			return p.generator.Generate(ctx, prompt)
		})
		if err != nil {
			return "", err
		}
		flyer = &generated
	}

	key := ObjectKey(p.folder, event.Title, flyer.ContentType)
	return retry(ctx, p, "upload flyer", func(ctx context.Context) (string, error) {
		return p.uploader.Upload(ctx, key, *flyer)
	})
}

func retry[T any](ctx context.Context, p *Pipeline, op string, call func(context.Context) (T, error)) (T, error) {
	attempt := 0
	result, err := backoff.RetryWithData(func() (T, error) {
		attempt++
		callCtx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()

		value, err := call(callCtx)
		if err != nil {
			if ctx.Err() != nil {
				return value, backoff.Permanent(ctx.Err())
			}
			p.log.Warn("upstream call failed", slog.String("op", op), slog.Int("attempt", attempt), sl.Err(err))
		}
		return value, err
	}, backoff.WithContext(backoff.WithMaxRetries(p.newBackOff(), maxRetries), ctx))
	if err != nil {
		var zero T
		if errors.Is(err, context.Canceled) {
			return zero, err
		}
		return zero, fmt.Errorf("%w: %s: %v", ErrUpstream, op, err)
	}
	return result, nil
}
