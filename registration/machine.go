package registration

import (
	"slices"
	"sync"
	"time"

	"github.com/jrsteele09/go-auth-client/apiclient"
	"github.com/jrsteele09/go-auth-client/autherror"
	"github.com/jrsteele09/go-auth-client/credentials"
	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/jrsteele09/go-auth-client/internal/config"
	"github.com/jrsteele09/go-auth-client/session"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	defaultMinAge            = 16
	defaultMinPasswordLength = 8
	defaultCodeLength        = 6
	defaultDebounce          = time.Second
)

// Machine drives the registration flow. Like the login machine it never
// returns errors from its operations; see State.LastError.
type Machine struct {
	api        apiclient.Sender
	store      credentials.Store
	logger     zerolog.Logger
	nowTime    func() time.Time
	onComplete func(session.Session)

	minAge            int
	minPasswordLength int
	codeLength        int
	debounce          time.Duration

	lock           sync.Mutex
	state          State
	epoch          uint64
	checksInFlight int
	observers      map[int]func(State)
	nextObsID      int
}

// Option configures a Machine.
type Option func(*Machine)

// WithLogger sets the logger used for transition and failure logs.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Machine) {
		m.logger = l
	}
}

// WithNowTime sets the now time function (primarily for testing)
func WithNowTime(nowFunc func() time.Time) Option {
	return func(m *Machine) {
		m.nowTime = nowFunc
	}
}

// WithOnComplete registers the callback fired once the account is created.
// It receives the new session and runs without the machine lock held.
func WithOnComplete(fn func(session.Session)) Option {
	return func(m *Machine) {
		m.onComplete = fn
	}
}

// WithFlowConfig applies the age, password, code and debounce limits from cfg.
func WithFlowConfig(cfg config.FlowConfig) Option {
	return func(m *Machine) {
		if v := cfg.GetMinAge(); v > 0 {
			m.minAge = v
		}
		if v := cfg.GetMinPasswordLength(); v > 0 {
			m.minPasswordLength = v
		}
		if v := cfg.GetCodeLength(); v > 0 {
			m.codeLength = v
		}
		if v := cfg.GetUsernameDebounce(); v > 0 {
			m.debounce = v
		}
	}
}

// New creates a registration Machine at StepEmail.
func New(api apiclient.Sender, store credentials.Store, options ...Option) (*Machine, error) {
	if api == nil {
		return nil, errors.New("[registration.New] api sender is required")
	}
	if store == nil {
		return nil, errors.New("[registration.New] credential store is required")
	}

	m := &Machine{
		api:               api,
		store:             store,
		logger:            log.Logger,
		nowTime:           time.Now,
		minAge:            defaultMinAge,
		minPasswordLength: defaultMinPasswordLength,
		codeLength:        defaultCodeLength,
		debounce:          defaultDebounce,
		state:             State{Step: StepEmail},
		observers:         make(map[int]func(State)),
	}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

// State returns a snapshot of the current state.
func (m *Machine) State() State {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.state.clone()
}

// Subscribe registers fn to receive a snapshot after every change.
func (m *Machine) Subscribe(fn func(State)) (unsubscribe func()) {
	m.lock.Lock()
	id := m.nextObsID
	m.nextObsID++
	m.observers[id] = fn
	m.lock.Unlock()

	return func() {
		m.lock.Lock()
		delete(m.observers, id)
		m.lock.Unlock()
	}
}

// Reset returns the flow to a fresh StepEmail with every field cleared.
// Responses to requests still in flight are dropped.
func (m *Machine) Reset() State {
	m.lock.Lock()
	m.state = State{Step: StepEmail}
	m.epoch++
	m.checksInFlight = 0
	snapshot, observers := m.snapshotLocked()
	m.lock.Unlock()

	m.logger.Debug().Str("op", "Reset").Msg("registration flow reset")
	notify(observers, snapshot)
	return snapshot
}

type attempt struct {
	op    string
	from  Step
	epoch uint64
	state State
}

// begin gates a network operation; see loginflow for the same contract.
func (m *Machine) begin(op string, steps []Step, validate func(State) *autherror.AuthError) (attempt, State, bool) {
	m.lock.Lock()
	if rejected, ok := m.gateLocked(op, steps); !ok {
		m.lock.Unlock()
		return attempt{}, rejected, false
	}
	if validate != nil {
		if authErr := validate(m.state); authErr != nil {
			m.state.LastError = authErr
			snapshot, observers := m.snapshotLocked()
			m.lock.Unlock()
			m.logger.Debug().Str("op", op).Str("code", authErr.Code).Msg("registration input rejected")
			notify(observers, snapshot)
			return attempt{}, snapshot, false
		}
	}

	m.state.IsPending = true
	m.state.LastError = nil
	a := attempt{op: op, from: m.state.Step, epoch: m.epoch, state: m.state.clone()}
	snapshot, observers := m.snapshotLocked()
	m.lock.Unlock()

	notify(observers, snapshot)
	return a, snapshot, true
}

func (m *Machine) finish(a attempt, apply func(s *State)) State {
	m.lock.Lock()
	if a.epoch != m.epoch {
		snapshot := m.state.clone()
		m.lock.Unlock()
		m.logger.Debug().Str("op", a.op).Msg("registration was reset while request was in flight, dropping result")
		return snapshot
	}
	apply(&m.state)
	m.state.IsPending = false
	snapshot, observers := m.snapshotLocked()
	m.lock.Unlock()

	m.logOutcome(a.op, a.from, snapshot)
	notify(observers, snapshot)
	return snapshot
}

func (m *Machine) fail(a attempt, err error) State {
	authErr := autherror.FromError(err)
	return m.finish(a, func(s *State) {
		s.LastError = authErr
	})
}

// local runs a transition that needs no request. apply returns a non-nil
// error to reject the input; the step is then left unchanged.
func (m *Machine) local(op string, steps []Step, apply func(s *State) *autherror.AuthError) State {
	m.lock.Lock()
	if rejected, ok := m.gateLocked(op, steps); !ok {
		m.lock.Unlock()
		return rejected
	}
	from := m.state.Step
	if authErr := apply(&m.state); authErr != nil {
		m.state.LastError = authErr
	} else {
		m.state.LastError = nil
	}
	snapshot, observers := m.snapshotLocked()
	m.lock.Unlock()

	m.logOutcome(op, from, snapshot)
	notify(observers, snapshot)
	return snapshot
}

func (m *Machine) gateLocked(op string, steps []Step) (State, bool) {
	if m.state.IsPending {
		m.logger.Debug().Err(autherrors.ErrRequestInFlight).Str("op", op).Msg("ignoring registration operation")
		return m.state.clone(), false
	}
	if steps != nil && !slices.Contains(steps, m.state.Step) {
		m.logger.Debug().Err(autherrors.ErrInvalidStep).Str("op", op).Stringer("step", m.state.Step).Msg("ignoring registration operation")
		return m.state.clone(), false
	}
	return State{}, true
}

func (m *Machine) logOutcome(op string, from Step, s State) {
	switch {
	case s.LastError != nil:
		m.logger.Warn().Str("op", op).Stringer("category", s.LastError.Category).Str("code", s.LastError.Code).Msg("registration step failed")
	case s.Step != from:
		m.logger.Debug().Str("op", op).Stringer("from", from).Stringer("to", s.Step).Msg("registration transition")
	}
}

func (m *Machine) snapshotLocked() (State, []func(State)) {
	observers := make([]func(State), 0, len(m.observers))
	for _, fn := range m.observers {
		observers = append(observers, fn)
	}
	return m.state.clone(), observers
}

func notify(observers []func(State), s State) {
	for _, fn := range observers {
		fn(s.clone())
	}
}
