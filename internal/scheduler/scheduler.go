package scheduler

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phuslu/log"
	"github.com/sethvargo/go-retry"

	"github.com/joestump/marketwatch/internal/adapter"
	"github.com/joestump/marketwatch/internal/audit"
	"github.com/joestump/marketwatch/internal/history"
	"github.com/joestump/marketwatch/internal/logging"
	"github.com/joestump/marketwatch/internal/model"
	"github.com/joestump/marketwatch/internal/notifier"
	"github.com/joestump/marketwatch/internal/sessiontoken"
	"github.com/joestump/marketwatch/internal/usersession"
)

// Config carries the loop-level tunables spec.md §4.7 and §5 name.
type Config struct {
	MaxRetries     int
	RetryDelay     time.Duration
	ItemSleep      time.Duration
	ShutdownGrace  time.Duration
}

// Scheduler runs exactly one polling loop per allowed user id on top of a
// bounded Pool (spec.md §4.5). It owns the user's *usersession.Session and
// the context used to cancel its loop.
type Scheduler struct {
	pool     *Pool
	adapter  adapter.Adapter
	tokens   *sessiontoken.Manager
	history  *history.Store
	notify   notifier.Notifier
	cfg      Config
	logger   log.Logger

	audit *audit.DB // optional; nil disables audit recording (SPEC_FULL.md §9.6)

	mu    sync.Mutex
	loops map[string]*loopHandle
}

// SetAudit wires an Audit Store into the Scheduler: every completed cycle
// records one audit.Iteration row, and auth/blocked outcomes additionally
// record an audit.Event row. Recording failures are logged, never
// propagated — the audit store is a read side, never on the
// correctness-critical path (SPEC_FULL.md §9.6).
func (s *Scheduler) SetAudit(db *audit.DB) {
	s.audit = db
}

type loopHandle struct {
	session *usersession.Session
	cancel  context.CancelFunc
	done    chan struct{}
}

// New returns a Scheduler backed by pool, talking to the given site
// adapter, session-token manager, history store, and notifier.
func New(pool *Pool, ad adapter.Adapter, tokens *sessiontoken.Manager, hist *history.Store, notify notifier.Notifier, cfg Config, logger log.Logger) *Scheduler {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	if cfg.ItemSleep <= 0 {
		cfg.ItemSleep = 800 * time.Millisecond
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 30 * time.Second
	}
	return &Scheduler{
		pool: pool, adapter: ad, tokens: tokens, history: hist, notify: notify,
		cfg: cfg, logger: logger, loops: make(map[string]*loopHandle),
	}
}

// StartUser starts exactly one loop for userID's session, submitting it
// onto the bounded Pool. Calling StartUser twice for the same user id
// while a loop is already registered is a no-op, matching spec.md §4.5's
// "exactly one loop per user id" invariant.
func (s *Scheduler) StartUser(ctx context.Context, sess *usersession.Session) error {
	s.mu.Lock()
	if _, exists := s.loops[sess.UserID]; exists {
		s.mu.Unlock()
		return nil
	}
	if err := sess.Start(); err != nil {
		s.mu.Unlock()
		return err
	}
	loopCtx, cancel := context.WithCancel(ctx)
	h := &loopHandle{session: sess, cancel: cancel, done: make(chan struct{})}
	s.loops[sess.UserID] = h
	s.mu.Unlock()

	s.pool.Submit(func() {
		defer close(h.done)
		s.runLoop(loopCtx, sess)
	})
	return nil
}

// StopUser requests the user's loop to stop and waits up to
// cfg.ShutdownGrace for it to exit cleanly before force-cancelling.
func (s *Scheduler) StopUser(userID string) error {
	s.mu.Lock()
	h, exists := s.loops[userID]
	if !exists {
		s.mu.Unlock()
		return nil
	}
	delete(s.loops, userID)
	s.mu.Unlock()

	if err := h.session.RequestStop(); err != nil {
		s.logger.Warn().Str("component", "scheduler").Str("user_id", userID).Err(err).Msg("request stop")
	}

	select {
	case <-h.done:
	case <-time.After(s.cfg.ShutdownGrace):
		h.cancel()
		<-h.done
	}
	return h.session.MarkStopped()
}

// PauseUser pauses a running user's loop without destroying its session.
func (s *Scheduler) PauseUser(userID string) error {
	h, ok := s.handle(userID)
	if !ok {
		return errNoSuchUser(userID)
	}
	return h.session.Pause()
}

// ResumeUser resumes a paused user's loop.
func (s *Scheduler) ResumeUser(userID string) error {
	h, ok := s.handle(userID)
	if !ok {
		return errNoSuchUser(userID)
	}
	return h.session.Resume()
}

func (s *Scheduler) handle(userID string) (*loopHandle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.loops[userID]
	return h, ok
}

// ShutdownAll stops every registered loop, waiting up to cfg.ShutdownGrace
// per user (spec.md §4.5, §4.9).
func (s *Scheduler) ShutdownAll() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.loops))
	for id := range s.loops {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, id := range ids {
		id := id
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.StopUser(id)
		}()
	}
	wg.Wait()
	s.pool.Shutdown()
}

// runLoop is the Polling Loop (spec.md §4.7): repeatedly page through the
// user's query, filter against history, notify, mark-before-send, sleep
// cfg.ItemSleep between deliveries, and sleep PollIntervalS between
// cycles — all cancellable in under a second via ctx.
func (s *Scheduler) runLoop(ctx context.Context, sess *usersession.Session) {
	log := logging.Component(s.logger, "polling_loop")
	for {
		if sess.State() == usersession.Stopping {
			return
		}
		if sess.State() == usersession.Paused {
			if !sleepCancellable(ctx, time.Second) {
				return
			}
			continue
		}

		settings := sess.Settings()
		cycleID := uuid.NewString()
		startedAt := time.Now()
		found, fresh, sentCount, cycleErr := s.runCycle(ctx, sess, settings, cycleID)
		sess.RecordCycle(found, fresh, sentCount, cycleErr)
		if cycleErr != nil {
			logging.User(log, sess.UserID, strings.Join(settings.Queries, ",")).Warn().Str("cycle_id", cycleID).Err(cycleErr).Msg("poll cycle failed")
		}
		s.recordIteration(ctx, sess.UserID, strings.Join(settings.Queries, ","), found, fresh, sentCount, cycleErr, startedAt)

		// spec.md §7: a cycle failure combined with no usable token at all
		// (the Session Manager could not refresh, or never had a token) is
		// fatal for this user, not just this cycle.
		if cycleErr != nil && !s.tokens.Current().Valid() {
			s.failUser(ctx, sess, cycleErr)
			return
		}

		// Sleep the poll interval in steps of at most one second so a
		// RequestStop is observed within a second, not only when the
		// interval ends.
		deadline := time.Now().Add(time.Duration(settings.PollIntervalS) * time.Second)
		for sess.State() != usersession.Stopping {
			step := time.Until(deadline)
			if step <= 0 {
				break
			}
			if step > time.Second {
				step = time.Second
			}
			if !sleepCancellable(ctx, step) {
				return
			}
		}
	}
}

// failUser transitions sess toward Stopping on an unrecoverable auth
// failure (spec.md §7: "no usable token at all" is fatal for this user)
// and sends the user a final notification before the loop exits.
func (s *Scheduler) failUser(ctx context.Context, sess *usersession.Session, cause error) {
	sess.Fail(cause)
	s.recordEvent(ctx, sess.UserID, "fatal", cause.Error())
	msg := "marketwatch stopped polling for you: the marketplace session could not be refreshed (" + cause.Error() + "). An operator needs to refresh the session cookie."
	if err := s.notify.SendText(ctx, sess.UserID, msg); err != nil {
		s.logger.Warn().Str("component", "scheduler").Str("user_id", sess.UserID).Err(err).Msg("fatal-failure notification delivery failed")
	}
	if err := s.notify.SendAdmin(ctx, "user "+sess.UserID+" stopped: "+cause.Error()); err != nil {
		s.logger.Warn().Str("component", "scheduler").Str("user_id", sess.UserID).Err(err).Msg("fatal-failure admin notice failed")
	}
}

func (s *Scheduler) runCycle(ctx context.Context, sess *usersession.Session, settings model.UserSettings, cycleID string) (found, fresh, sent int, err error) {
	for _, query := range settings.Queries {
		qFound, qFresh, qSent, qErr := s.runQuery(ctx, sess, settings, query, cycleID)
		found += qFound
		fresh += qFresh
		sent += qSent
		if qErr != nil {
			return found, fresh, sent, qErr
		}
	}
	return found, fresh, sent, nil
}

// runQuery pages through a single query in settings.Queries (spec.md
// §4.7's "for each query Q in U.queries, in order").
func (s *Scheduler) runQuery(ctx context.Context, sess *usersession.Session, settings model.UserSettings, query, cycleID string) (found, fresh, sent int, err error) {
	for page := 1; page <= settings.PagesPerCycle; page++ {
		items, pageErr := s.searchPageWithRetry(ctx, query, settings.RowsPerPage, page)
		if pageErr != nil {
			if aerr, ok := asAdapterError(pageErr); ok {
				if aerr.Kind == adapter.KindEmptyPage {
					break // a page with zero raw results ends this query's page walk, not as an error
				}
				if aerr.Kind == adapter.KindAuth || aerr.Kind == adapter.KindBlocked {
					s.recordEvent(ctx, sess.UserID, aerr.Kind.String(), cycleID+": "+aerr.Error())
				}
			}
			return found, fresh, sent, pageErr
		}
		found += len(items)

		now := time.Now()
		ageFiltered := items[:0:0]
		for _, it := range items {
			if it.AgeMinutes(now) <= settings.MaxAgeMin {
				ageFiltered = append(ageFiltered, it)
			}
		}
		items = ageFiltered

		var candidates []model.Item
		if settings.NotifyNewOnly {
			candidates, err = s.history.FilterNew(sess.UserID, items)
			if err != nil {
				return found, fresh, sent, err
			}
		} else {
			// spec.md §4.7's "else" branch: re-notify even previously-seen
			// items, as long as they pass the age filter above.
			candidates = items
		}

		for _, it := range candidates {
			if !settings.Matches(parsePrice(it.Price), it.Title) {
				continue
			}
			fresh++
			if err := s.history.MarkSent(sess.UserID, it.ID); err != nil {
				return found, fresh, sent, err
			}
			if serr := s.notify.SendText(ctx, sess.UserID, it.Title+" - "+it.Price+" - "+it.URL); serr != nil {
				notifyLog := logging.User(logging.Component(s.logger, "notifier"), sess.UserID, query)
				notifyLog.Warn().Err(serr).Msg("notify delivery failed")
			} else {
				sent++
			}
			if !sleepCancellable(ctx, s.cfg.ItemSleep) {
				return found, fresh, sent, ctx.Err()
			}
		}

		// Post-filter pagination-stop rule: a page with fewer than
		// RowsPerPage items after the age filter ends the walk.
		if len(items) < settings.RowsPerPage {
			break
		}
		if !sleepCancellable(ctx, s.adapter.RequestDelay()) {
			return found, fresh, sent, ctx.Err()
		}
	}
	return found, fresh, sent, nil
}

// searchPageWithRetry retries a single page on KindAuth (after asking the
// Session Manager to refresh) up to cfg.MaxRetries times with exponential
// backoff, using sethvargo/go-retry rather than a hand-rolled sleep loop
// (spec.md §5, §9.5). A throttled refresh (sessiontoken.Manager.Refresh
// applies its throttle uniformly, spec.md §4.2 #4) returns the
// already-current token, and this retry is exactly the "caller retries
// its request once against it" spec.md describes.
func (s *Scheduler) searchPageWithRetry(ctx context.Context, query string, rows, page int) ([]model.Item, error) {
	backoff := retry.WithMaxRetries(uint64(s.cfg.MaxRetries), retry.NewExponential(s.cfg.RetryDelay))

	var items []model.Item
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		token := s.tokens.Current()
		got, err := s.adapter.Search(ctx, query, page, rows, token)
		if err != nil {
			if aerr, ok := asAdapterError(err); ok {
				switch aerr.Kind {
				case adapter.KindAuth:
					if _, rerr := s.tokens.Refresh(ctx, "auth-error"); rerr != nil {
						return retry.RetryableError(rerr)
					}
					return retry.RetryableError(aerr)
				case adapter.KindTransient:
					return retry.RetryableError(aerr)
				default:
					return aerr // KindBlocked, KindEmptyPage: not retryable
				}
			}
			return retry.RetryableError(err)
		}
		items = got
		return nil
	})
	return items, err
}

// recordIteration writes one audit.Iteration row, a no-op when no audit
// store is wired.
func (s *Scheduler) recordIteration(ctx context.Context, userID, query string, found, fresh, sent int, cycleErr error, startedAt time.Time) {
	if s.audit == nil {
		return
	}
	errText := ""
	if cycleErr != nil {
		errText = cycleErr.Error()
	}
	iter := audit.Iteration{
		UserID:     userID,
		Query:      query,
		ItemsFound: found,
		ItemsNew:   fresh,
		ItemsSent:  sent,
		Error:      errText,
		DurationMs: time.Since(startedAt).Milliseconds(),
		StartedAt:  startedAt,
		EndedAt:    time.Now(),
	}
	if err := s.audit.RecordIteration(ctx, iter); err != nil {
		s.logger.Warn().Str("component", "scheduler").Str("user_id", userID).Err(err).Msg("audit: record iteration failed")
	}
}

// recordEvent writes one audit.Event row, a no-op when no audit store is
// wired.
func (s *Scheduler) recordEvent(ctx context.Context, userID, kind, message string) {
	if s.audit == nil {
		return
	}
	ev := audit.Event{UserID: userID, Kind: kind, Message: message, CreatedAt: time.Now()}
	if err := s.audit.RecordEvent(ctx, ev); err != nil {
		s.logger.Warn().Str("component", "scheduler").Str("user_id", userID).Err(err).Msg("audit: record event failed")
	}
}

func asAdapterError(err error) (*adapter.Error, bool) {
	var aerr *adapter.Error
	if errors.As(err, &aerr) {
		return aerr, true
	}
	return nil, false
}

// sleepCancellable sleeps for d and reports true, or returns false as soon
// as ctx is cancelled. It does not look at the session state; runLoop
// calls it in steps of at most one second during the poll interval so a
// stop request is seen within a second.
func sleepCancellable(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = 0
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// parsePrice extracts the leading numeric value from a marketplace price
// string (e.g. "¥128.50", "128.50元"), tolerating any non-numeric prefix
// or suffix. A malformed price parses to 0; UserSettings.Matches then
// rejects it when a MinPrice is set and accepts it otherwise.
func parsePrice(s string) float64 {
	start := -1
	end := len(s)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= '0' && c <= '9') || c == '.' {
			if start < 0 {
				start = i
			}
		} else if start >= 0 {
			end = i
			break
		}
	}
	if start < 0 {
		return 0
	}
	v, err := strconv.ParseFloat(s[start:end], 64)
	if err != nil {
		return 0
	}
	return v
}

type schedulerError string

func (e schedulerError) Error() string { return string(e) }

func errNoSuchUser(userID string) error {
	return schedulerError("scheduler: no active loop for user " + userID)
}
