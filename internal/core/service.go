// Package core exposes the trekcore service facade: entity mutations with
// observability hooks, credential checks, relational queries over the
// persistent collections, and report export.
package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"trekcore/pkg/domain"
)

// ErrInvalidCredentials is returned when an email/password pair does not match
// a stored account. The same error covers unknown accounts so callers cannot
// distinguish the two.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Service wraps a persistent store with identifier policy, credential checks,
// and optional metrics/tracing hooks.
type Service struct {
	store   domain.PersistentStore
	log     zerolog.Logger
	metrics MetricsRecorder
	tracer  Tracer
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithMetricsRecorder attaches a metrics recorder to every operation.
func WithMetricsRecorder(rec MetricsRecorder) Option {
	return func(s *Service) { s.metrics = rec }
}

// WithTracer attaches a tracer to every operation.
func WithTracer(tr Tracer) Option {
	return func(s *Service) { s.tracer = tr }
}

// WithClock overrides the service clock, used by booking id generation.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService constructs a service backed by the supplied store.
func NewService(store domain.PersistentStore, opts ...Option) *Service {
	s := &Service{
		store: store,
		log:   zerolog.Nop(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying storage implementation.
func (s *Service) Store() domain.PersistentStore { return s.store }

// instrument opens a span and returns a completion callback that finalizes the
// span and records metrics. Both hooks are optional.
func (s *Service) instrument(ctx context.Context, operation string) (context.Context, func(error)) {
	started := time.Now()
	var span TraceSpan
	if s.tracer != nil {
		ctx, span = s.tracer.Start(ctx, operation)
	}
	return ctx, func(err error) {
		if span != nil {
			span.End(err)
		}
		if s.metrics != nil {
			s.metrics.Observe(ctx, operation, err == nil, time.Since(started))
		}
	}
}

// ---- accounts and credentials ----

// RegisterUser persists a new tourist or admin account, rejecting duplicate
// emails.
func (s *Service) RegisterUser(ctx context.Context, u User) (User, error) {
	ctx, done := s.instrument(ctx, "register_user")
	created, err := s.store.AddUser(ctx, u)
	done(err)
	return created, err
}

// RegisterGuide persists a new guide account, rejecting duplicate emails.
func (s *Service) RegisterGuide(ctx context.Context, g Guide) (Guide, error) {
	ctx, done := s.instrument(ctx, "register_guide")
	created, err := s.store.AddGuide(ctx, g)
	done(err)
	return created, err
}

// AuthenticateUser checks a tourist or admin credential pair. Emails compare
// case-insensitively, passwords byte for byte. On success it returns a live
// session for the account.
func (s *Service) AuthenticateUser(ctx context.Context, email, password string) (Session, error) {
	_, done := s.instrument(ctx, "authenticate_user")
	u, ok := s.store.FindUser(email)
	if !ok || u.Password != password {
		done(ErrInvalidCredentials)
		return Session{}, ErrInvalidCredentials
	}
	done(nil)
	return NewSession(u, s.now()), nil
}

// AuthenticateGuide checks a guide credential pair the same way
// AuthenticateUser does.
func (s *Service) AuthenticateGuide(ctx context.Context, email, password string) (Session, error) {
	_, done := s.instrument(ctx, "authenticate_guide")
	g, ok := s.store.FindGuide(email)
	if !ok || g.Password != password {
		done(ErrInvalidCredentials)
		return Session{}, ErrInvalidCredentials
	}
	done(nil)
	return NewSession(User{
		FirstName:   g.FirstName,
		LastName:    g.LastName,
		Email:       g.Email,
		Phone:       g.Phone,
		Password:    g.Password,
		UserType:    UserTypeGuide,
		Nationality: g.Nationality,
	}, s.now()), nil
}

// UpdateUser replaces a stored user record.
func (s *Service) UpdateUser(ctx context.Context, u User) (User, error) {
	ctx, done := s.instrument(ctx, "update_user")
	updated, err := s.store.UpdateUser(ctx, u)
	done(err)
	return updated, err
}

// DeleteUser removes a tourist account. Admin accounts are never removed.
func (s *Service) DeleteUser(ctx context.Context, email string) error {
	ctx, done := s.instrument(ctx, "delete_user")
	err := s.store.DeleteUser(ctx, email)
	done(err)
	return err
}

// UpdateGuide replaces a stored guide record.
func (s *Service) UpdateGuide(ctx context.Context, g Guide) (Guide, error) {
	ctx, done := s.instrument(ctx, "update_guide")
	updated, err := s.store.UpdateGuide(ctx, g)
	done(err)
	return updated, err
}

// DeleteGuide removes a guide record.
func (s *Service) DeleteGuide(ctx context.Context, email string) error {
	ctx, done := s.instrument(ctx, "delete_guide")
	err := s.store.DeleteGuide(ctx, email)
	done(err)
	return err
}

// ---- attractions ----

// CreateAttraction persists a new attraction.
func (s *Service) CreateAttraction(ctx context.Context, a Attraction) (Attraction, error) {
	ctx, done := s.instrument(ctx, "create_attraction")
	created, err := s.store.AddAttraction(ctx, a)
	done(err)
	return created, err
}

// UpdateAttraction replaces a stored attraction.
func (s *Service) UpdateAttraction(ctx context.Context, a Attraction) (Attraction, error) {
	ctx, done := s.instrument(ctx, "update_attraction")
	updated, err := s.store.UpdateAttraction(ctx, a)
	done(err)
	return updated, err
}

// DeleteAttraction removes an attraction. Treks referencing it keep their
// attraction id; reads degrade to a placeholder.
func (s *Service) DeleteAttraction(ctx context.Context, id int) error {
	ctx, done := s.instrument(ctx, "delete_attraction")
	err := s.store.DeleteAttraction(ctx, id)
	done(err)
	return err
}

// ---- treks ----

// CreateTrek persists a new trek with normalized pricing.
func (s *Service) CreateTrek(ctx context.Context, t Trek) (Trek, error) {
	ctx, done := s.instrument(ctx, "create_trek")
	created, err := s.store.AddTrek(ctx, t)
	done(err)
	return created, err
}

// UpdateTrek replaces a stored trek with normalized pricing.
func (s *Service) UpdateTrek(ctx context.Context, t Trek) (Trek, error) {
	ctx, done := s.instrument(ctx, "update_trek")
	updated, err := s.store.UpdateTrek(ctx, t)
	done(err)
	return updated, err
}

// DeleteTrek removes a trek. Existing bookings keep their trek id.
func (s *Service) DeleteTrek(ctx context.Context, id int) error {
	ctx, done := s.instrument(ctx, "delete_trek")
	err := s.store.DeleteTrek(ctx, id)
	done(err)
	return err
}

// ---- bookings ----

// newBookingID builds the public booking identifier: a BK prefix, the current
// unix milliseconds, and four hex characters of entropy. Generated once and
// never re-verified for uniqueness.
func (s *Service) newBookingID() string {
	id := uuid.New()
	return fmt.Sprintf("BK%d%02x%02x", s.now().UnixMilli(), id[0], id[1])
}

// CreateBooking books a trek for a user. The trek's start date is snapshotted
// onto the booking; a missing trek logs a warning and leaves the snapshot
// empty, but the booking is still created since collections share no
// transaction.
func (s *Service) CreateBooking(ctx context.Context, trekID int, userEmail, guideEmail string) (Booking, error) {
	ctx, done := s.instrument(ctx, "create_booking")
	booking := Booking{
		BookingID:  s.newBookingID(),
		TrekID:     trekID,
		UserEmail:  userEmail,
		GuideEmail: guideEmail,
	}
	if trek, ok := s.store.FindTrek(trekID); ok {
		booking.TrekStartDateStr = trek.StartDateStr
		if booking.GuideEmail == "" {
			booking.GuideEmail = trek.GuideEmail
		}
	} else {
		s.log.Warn().Int("trek_id", trekID).Str("user", userEmail).Msg("booking references missing trek")
	}
	created, err := s.store.AddBooking(ctx, booking)
	done(err)
	return created, err
}

// CancelBooking removes a booking by internal id.
func (s *Service) CancelBooking(ctx context.Context, id int) error {
	ctx, done := s.instrument(ctx, "cancel_booking")
	err := s.store.DeleteBooking(ctx, id)
	done(err)
	return err
}

// ---- emergencies ----

// ReportEmergency persists a new emergency report. The store stamps the
// reported-at time and defaults severity and status.
func (s *Service) ReportEmergency(ctx context.Context, e Emergency) (Emergency, error) {
	ctx, done := s.instrument(ctx, "report_emergency")
	created, err := s.store.AddEmergency(ctx, e)
	done(err)
	return created, err
}

// UpdateEmergency replaces a stored emergency report.
func (s *Service) UpdateEmergency(ctx context.Context, e Emergency) (Emergency, error) {
	ctx, done := s.instrument(ctx, "update_emergency")
	updated, err := s.store.UpdateEmergency(ctx, e)
	done(err)
	return updated, err
}

// UpdateEmergencyStatus transitions an emergency to the given status. Moving to
// Resolved stamps the resolution time; moving away clears it.
func (s *Service) UpdateEmergencyStatus(ctx context.Context, id int, status EmergencyStatus) (Emergency, error) {
	ctx, done := s.instrument(ctx, "update_emergency_status")
	e, ok := s.store.FindEmergency(id)
	if !ok {
		err := domain.ErrNotFound{Entity: EntityEmergency, Key: strconv.Itoa(id)}
		done(err)
		return Emergency{}, err
	}
	e.Status = status
	updated, err := s.store.UpdateEmergency(ctx, e)
	done(err)
	return updated, err
}

// ResolveEmergency marks an emergency as resolved.
func (s *Service) ResolveEmergency(ctx context.Context, id int) (Emergency, error) {
	return s.UpdateEmergencyStatus(ctx, id, StatusResolved)
}

// DeleteEmergency removes an emergency report.
func (s *Service) DeleteEmergency(ctx context.Context, id int) error {
	ctx, done := s.instrument(ctx, "delete_emergency")
	err := s.store.DeleteEmergency(ctx, id)
	done(err)
	return err
}

