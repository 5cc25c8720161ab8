package dispatcher

import (
	"context"
	"errors"
	"time"

	"github.com/jmehdipour/contact-relay/internal/logger"
	"github.com/jmehdipour/contact-relay/internal/metrics"
	"github.com/jmehdipour/contact-relay/internal/model"
	"github.com/jmehdipour/contact-relay/internal/telegram"
	"github.com/jmehdipour/contact-relay/internal/util"
	"go.uber.org/zap"
)

type step struct {
	p  Provider
	br *MicroBreaker
}

// Dispatcher walks its providers in order until one delivers.
type Dispatcher struct {
	steps []step
	now   func() time.Time
}

// NewDispatcher keeps provs in the given order. Each provider gets its own
// breaker; failThreshold <= 0 disables breaking.
func NewDispatcher(provs []Provider, failThreshold int, openFor time.Duration) *Dispatcher {
	steps := make([]step, 0, len(provs))
	for _, p := range provs {
		steps = append(steps, step{p: p, br: NewMicroBreaker(failThreshold, openFor)})
	}

	return &Dispatcher{steps: steps, now: time.Now}
}

// Providers lists strategy names in attempt order.
func (d *Dispatcher) Providers() []string {
	names := make([]string, 0, len(d.steps))
	for _, s := range d.steps {
		names = append(names, s.p.Name())
	}
	return names
}

// Send delivers sub and reports success. It never panics or returns an
// error: every failure is logged and turned into false.
func (d *Dispatcher) Send(ctx context.Context, sub model.Submission) (ok bool) {
	id := util.NewSubmissionID()
	log := logger.Log.With(zap.String("submission_id", id))

	defer func() {
		if r := recover(); r != nil {
			log.Error("send panicked", zap.Any("panic", r))
			ok = false
		}
		outcome := "ok"
		if !ok {
			outcome = "failed"
		}
		metrics.SubmissionsTotal.WithLabelValues("send", outcome).Inc()
	}()

	if !sub.Complete() {
		log.Error("required form data missing: name or phone")
		return false
	}
	if len(d.steps) == 0 {
		log.Error("no transport configured: set a relay url or a bot token and chat id")
		return false
	}

	dl := Delivery{ID: id, Submission: sub, Text: telegram.FormatMessage(sub, d.now())}

	var last error
	for _, s := range d.steps {
		name := s.p.Name()

		if !s.br.TryAcquire() {
			log.Warn("transport skipped, breaker open", zap.String("provider", name), zap.String("breaker", s.br.State()))
			metrics.TransportAttemptsTotal.WithLabelValues(name, "skipped").Inc()
			continue
		}

		log.Debug("trying transport", zap.String("provider", name))
		err := s.p.Send(ctx, dl)
		if err == nil {
			s.br.OnSuccess()
			metrics.TransportAttemptsTotal.WithLabelValues(name, "ok").Inc()
			log.Info("message delivered", zap.String("provider", name))
			return true
		}
		last = err

		if errors.Is(err, ErrRejected) {
			// the transport itself works; the message was refused upstream
			s.br.OnSuccess()
			metrics.TransportAttemptsTotal.WithLabelValues(name, "rejected").Inc()
			log.Error("delivery rejected", zap.String("provider", name), zap.Error(err))
			return false
		}

		s.br.OnFailure()
		outcome := "failed"
		if errors.Is(err, ErrUnavailable) {
			outcome = "unavailable"
		}
		metrics.TransportAttemptsTotal.WithLabelValues(name, outcome).Inc()
		log.Warn("transport failed, falling through", zap.String("provider", name), zap.Error(err))
	}

	log.Error("all transports failed", zap.Error(last))
	return false
}
