package loginflow

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-auth-client/apiclient"
	"github.com/jrsteele09/go-auth-client/autherror"
	"github.com/jrsteele09/go-auth-client/credentials"
	autherrors "github.com/jrsteele09/go-auth-client/internal/errors"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const defaultCodeLength = 6

// pendingLogin is what the method-choice, verification and resend calls
// need to repeat from the credentials step. It is dropped as soon as the
// flow completes or returns to StepCredentials.
type pendingLogin struct {
	identifier     string
	password       string
	rememberDevice bool
}

// Machine drives the login flow. Operations never return errors; failures
// land in State.LastError and the step is left unchanged.
type Machine struct {
	api        apiclient.Sender
	store      credentials.Store
	logger     zerolog.Logger
	nowTime    func() time.Time
	deviceID   string
	codeLength int

	lock      sync.Mutex
	state     State
	login     pendingLogin
	epoch     uint64 // bumped on every reset; results from an older epoch are dropped
	observers map[int]func(State)
	nextObsID int
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

// WithDeviceID sets the id sent with remember-device logins. Without it a
// random id is generated for the lifetime of the machine.
func WithDeviceID(id string) Option {
	return func(m *Machine) {
		m.deviceID = id
	}
}

// WithCodeLength sets the number of digits a 2FA code must have.
func WithCodeLength(n int) Option {
	return func(m *Machine) {
		if n > 0 {
			m.codeLength = n
		}
	}
}

// New creates a login Machine at StepCredentials.
func New(api apiclient.Sender, store credentials.Store, options ...Option) (*Machine, error) {
	if api == nil {
		return nil, errors.New("[loginflow.New] api sender is required")
	}
	if store == nil {
		return nil, errors.New("[loginflow.New] credential store is required")
	}

	m := &Machine{
		api:        api,
		store:      store,
		logger:     log.Logger,
		nowTime:    time.Now,
		codeLength: defaultCodeLength,
		state:      State{Step: StepCredentials},
		observers:  make(map[int]func(State)),
	}
	for _, opt := range options {
		opt(m)
	}
	if m.deviceID == "" {
		m.deviceID = uuid.NewString()
	}
	return m, nil
}

// State returns a snapshot of the current state.
func (m *Machine) State() State {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.state.clone()
}

// Subscribe registers fn to receive a snapshot after every change. fn is
// called without the machine lock held and may call back into the machine.
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

// attempt is a request that passed the begin gate.
type attempt struct {
	op    string
	from  Step
	epoch uint64
	login pendingLogin
}

// begin gates an operation. The call is ignored when a request is already in
// flight or the current step is not one of steps. validate runs under the
// lock; a non-nil result is stored as LastError and the call goes no further.
// Otherwise the machine becomes pending with LastError cleared.
func (m *Machine) begin(op string, steps []Step, validate func(State) *autherror.AuthError) (attempt, State, bool) {
	m.lock.Lock()
	if m.state.IsPending {
		snapshot := m.state.clone()
		m.lock.Unlock()
		m.logger.Debug().Err(autherrors.ErrRequestInFlight).Str("op", op).Msg("ignoring login operation")
		return attempt{}, snapshot, false
	}
	if !slices.Contains(steps, m.state.Step) {
		snapshot := m.state.clone()
		m.lock.Unlock()
		m.logger.Debug().Err(autherrors.ErrInvalidStep).Str("op", op).Stringer("step", snapshot.Step).Msg("ignoring login operation")
		return attempt{}, snapshot, false
	}
	if validate != nil {
		if authErr := validate(m.state); authErr != nil {
			m.state.LastError = authErr
			snapshot, observers := m.snapshotLocked()
			m.lock.Unlock()
			m.logger.Debug().Str("op", op).Str("code", authErr.Code).Msg("login input rejected")
			notify(observers, snapshot)
			return attempt{}, snapshot, false
		}
	}

	m.state.IsPending = true
	m.state.LastError = nil
	a := attempt{op: op, from: m.state.Step, epoch: m.epoch, login: m.login}
	snapshot, observers := m.snapshotLocked()
	m.lock.Unlock()

	notify(observers, snapshot)
	return a, snapshot, true
}

// finish applies the outcome of an attempt and clears IsPending. Outcomes of
// an attempt that was overtaken by a reset are discarded.
func (m *Machine) finish(a attempt, apply func(s *State)) State {
	m.lock.Lock()
	if a.epoch != m.epoch {
		snapshot := m.state.clone()
		m.lock.Unlock()
		m.logger.Debug().Str("op", a.op).Msg("login flow was reset while request was in flight, dropping result")
		return snapshot
	}
	apply(&m.state)
	m.state.IsPending = false
	snapshot, observers := m.snapshotLocked()
	m.lock.Unlock()

	if snapshot.LastError != nil {
		m.logger.Warn().Str("op", a.op).Stringer("category", snapshot.LastError.Category).Str("code", snapshot.LastError.Code).Msg("login step failed")
	} else if snapshot.Step != a.from {
		m.logger.Debug().Str("op", a.op).Stringer("from", a.from).Stringer("to", snapshot.Step).Msg("login transition")
	}
	notify(observers, snapshot)
	return snapshot
}

// fail finishes an attempt with err stored as LastError.
func (m *Machine) fail(a attempt, err error) State {
	authErr := autherror.FromError(err)
	return m.finish(a, func(s *State) {
		s.LastError = authErr
	})
}

// reset returns the flow to a fresh StepCredentials and invalidates any
// request still in flight.
func (m *Machine) reset() State {
	m.lock.Lock()
	m.state = State{Step: StepCredentials}
	m.login = pendingLogin{}
	m.epoch++
	snapshot, observers := m.snapshotLocked()
	m.lock.Unlock()

	notify(observers, snapshot)
	return snapshot
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
