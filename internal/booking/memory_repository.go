package booking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is a mutex-guarded Repository used by unit tests and the
// booking simulator. Semantics mirror the Postgres implementation, including
// the conditional status update and the atomic waiting-room side effects.
type MemoryRepository struct {
	mu sync.Mutex

	doctors      map[string]Doctor
	clinics      map[int64]Clinic
	sessions     map[int64]Session
	overrides    map[int64]map[string]SessionOverride
	appointments map[uuid.UUID]Appointment
	history      []HistoryEntry
	waiting      map[uuid.UUID]WaitingRoomEntry

	nextSessionID  int64
	nextOverrideID int64
	nextHistoryID  int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		doctors:      make(map[string]Doctor),
		clinics:      make(map[int64]Clinic),
		sessions:     make(map[int64]Session),
		overrides:    make(map[int64]map[string]SessionOverride),
		appointments: make(map[uuid.UUID]Appointment),
		waiting:      make(map[uuid.UUID]WaitingRoomEntry),
	}
}

func dateKey(t time.Time) string {
	return DateOnly(t).Format("2006-01-02")
}

// Directory

func (r *MemoryRepository) GetDoctor(_ context.Context, userID string) (*Doctor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	d, ok := r.doctors[userID]
	if !ok {
		return nil, ErrDoctorNotFound
	}
	return &d, nil
}

func (r *MemoryRepository) GetClinic(_ context.Context, id int64) (*Clinic, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clinics[id]
	if !ok {
		return nil, ErrClinicNotFound
	}
	return &c, nil
}

func (r *MemoryRepository) UpsertDoctor(_ context.Context, d *Doctor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.doctors[d.UserID] = *d
	return nil
}

func (r *MemoryRepository) UpsertClinic(_ context.Context, c *Clinic) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.clinics[c.ID] = *c
	return nil
}

// Sessions and overrides

func (r *MemoryRepository) GetSession(_ context.Context, id int64) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &s, nil
}

func (r *MemoryRepository) CreateSession(_ context.Context, s *Session) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextSessionID++
	created := *s
	created.ID = r.nextSessionID
	created.CreatedAt = time.Now()
	created.UpdatedAt = created.CreatedAt
	r.sessions[created.ID] = created
	return &created, nil
}

func (r *MemoryRepository) UpdateSession(_ context.Context, s *Session) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[s.ID]; !ok {
		return nil, ErrSessionNotFound
	}
	updated := *s
	updated.UpdatedAt = time.Now()
	r.sessions[s.ID] = updated
	return &updated, nil
}

func (r *MemoryRepository) ListSessionsByDoctor(_ context.Context, doctorID string, activeOnly bool) ([]Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []Session
	for _, s := range r.sessions {
		if s.DoctorID != doctorID {
			continue
		}
		if activeOnly && !s.Active {
			continue
		}
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].DayOfWeek != result[j].DayOfWeek {
			return result[i].DayOfWeek < result[j].DayOfWeek
		}
		return result[i].StartTime.Minutes() < result[j].StartTime.Minutes()
	})
	return result, nil
}

func (r *MemoryRepository) ListSessionsByDoctorAndDay(_ context.Context, doctorID string, day time.Weekday) ([]Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []Session
	for _, s := range r.sessions {
		if s.DoctorID == doctorID && s.DayOfWeek == day && s.Active {
			result = append(result, s)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartTime.Minutes() < result[j].StartTime.Minutes()
	})
	return result, nil
}

func (r *MemoryRepository) FindOverlappingSessions(_ context.Context, doctorID string, day time.Weekday, start, end TimeOfDay) ([]Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []Session
	for _, s := range r.sessions {
		if s.DoctorID != doctorID || s.DayOfWeek != day || !s.Active {
			continue
		}
		if s.StartTime.Minutes() < end.Minutes() && start.Minutes() < s.EndTime.Minutes() {
			result = append(result, s)
		}
	}
	return result, nil
}

func (r *MemoryRepository) GetOverride(_ context.Context, sessionID int64, date time.Time) (*SessionOverride, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ov, ok := r.overrides[sessionID][dateKey(date)]
	if !ok {
		return nil, ErrOverrideNotFound
	}
	return &ov, nil
}

func (r *MemoryRepository) CreateOverride(_ context.Context, ov *SessionOverride) (*SessionOverride, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := dateKey(ov.Date)
	if _, ok := r.overrides[ov.SessionID][key]; ok {
		return nil, ErrOverrideExists
	}

	r.nextOverrideID++
	created := *ov
	created.ID = r.nextOverrideID
	created.Date = DateOnly(ov.Date)
	created.CreatedAt = time.Now()

	if r.overrides[ov.SessionID] == nil {
		r.overrides[ov.SessionID] = make(map[string]SessionOverride)
	}
	r.overrides[ov.SessionID][key] = created
	return &created, nil
}

// Appointments

func (r *MemoryRepository) GetAppointment(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *MemoryRepository) CreateBookedAppointment(_ context.Context, appt *Appointment, entry HistoryEntry) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.appointments {
		if existing.SessionID == appt.SessionID &&
			SameDate(existing.Date, appt.Date) &&
			existing.QueueNumber == appt.QueueNumber &&
			existing.Status != StatusCancelled {
			return nil, ErrBookingContended
		}
	}

	created := *appt
	created.Date = DateOnly(appt.Date)
	created.CreatedAt = entry.CreatedAt
	created.UpdatedAt = entry.CreatedAt
	r.appointments[created.ID] = created

	r.appendHistory(created.ID, entry)
	return &created, nil
}

func (r *MemoryRepository) MaxQueueNumber(_ context.Context, sessionID int64, date time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	max := 0
	for _, a := range r.appointments {
		if a.SessionID == sessionID && SameDate(a.Date, date) && a.Status != StatusCancelled && a.QueueNumber > max {
			max = a.QueueNumber
		}
	}
	return max, nil
}

func (r *MemoryRepository) CountActiveAppointments(_ context.Context, sessionID int64, date time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, a := range r.appointments {
		if a.SessionID == sessionID && SameDate(a.Date, date) && a.Status != StatusCancelled {
			count++
		}
	}
	return count, nil
}

func (r *MemoryRepository) FindActiveByPatientDoctorDate(_ context.Context, patientID, doctorID string, date time.Time) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, a := range r.appointments {
		if a.PatientID == patientID && a.DoctorID == doctorID && SameDate(a.Date, date) && a.Status != StatusCancelled {
			found := a
			return &found, nil
		}
	}
	return nil, ErrAppointmentNotFound
}

func (r *MemoryRepository) ListByDoctorAndDate(_ context.Context, doctorID string, date time.Time) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []Appointment
	for _, a := range r.appointments {
		if a.DoctorID == doctorID && SameDate(a.Date, date) {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].QueueNumber < result[j].QueueNumber
	})
	return result, nil
}

func (r *MemoryRepository) ListByPatient(_ context.Context, patientID string, limit, offset int) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []Appointment
	for _, a := range r.appointments {
		if a.PatientID == patientID {
			result = append(result, a)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.After(result[j].Date)
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if offset >= len(result) {
		return nil, nil
	}
	result = result[offset:]
	if limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

func (r *MemoryRepository) FindOverdue(_ context.Context, before time.Time) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := DateOnly(before)
	var result []Appointment
	for _, a := range r.appointments {
		if a.Date.Before(cutoff) && (a.Status == StatusBooked || a.Status == StatusCheckedIn) {
			result = append(result, a)
		}
	}
	return result, nil
}

func (r *MemoryRepository) SetPayment(_ context.Context, id uuid.UUID, status PaymentStatus, ref string) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	a.PaymentStatus = status
	a.PaymentRef = &ref
	a.UpdatedAt = time.Now()
	r.appointments[id] = a
	return &a, nil
}

func (r *MemoryRepository) TransitionAppointment(_ context.Context, id uuid.UUID, from, to AppointmentStatus, entry HistoryEntry, opts TransitionOpts) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if a.Status != from {
		return nil, ErrIllegalTransition
	}

	a.Status = to
	a.UpdatedAt = entry.CreatedAt
	if opts.SetActualEnd {
		end := entry.CreatedAt
		a.ActualEnd = &end
	}
	r.appointments[id] = a

	r.appendHistory(id, entry)

	if opts.CreateWaiting {
		r.waiting[id] = WaitingRoomEntry{
			ID:            uuid.New(),
			AppointmentID: id,
			CheckedInAt:   entry.CreatedAt,
			CreatedAt:     entry.CreatedAt,
			UpdatedAt:     entry.CreatedAt,
		}
	}
	if opts.MarkCalled != nil {
		w, ok := r.waiting[id]
		if !ok || w.CalledAt != nil {
			return nil, ErrQueueContended
		}
		at := entry.CreatedAt
		w.CalledAt = &at
		w.CalledBy = opts.MarkCalled
		w.UpdatedAt = at
		r.waiting[id] = w
	}
	if opts.RemoveWaiting {
		delete(r.waiting, id)
	}

	return &a, nil
}

func (r *MemoryRepository) appendHistory(id uuid.UUID, entry HistoryEntry) {
	r.nextHistoryID++
	entry.ID = r.nextHistoryID
	entry.AppointmentID = id
	r.history = append(r.history, entry)
}

func (r *MemoryRepository) ListHistory(_ context.Context, appointmentID uuid.UUID) ([]HistoryEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []HistoryEntry
	for _, h := range r.history {
		if h.AppointmentID == appointmentID {
			result = append(result, h)
		}
	}
	return result, nil
}

// Waiting room

func (r *MemoryRepository) GetWaitingRoomEntry(_ context.Context, appointmentID uuid.UUID) (*WaitingRoomEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.waiting[appointmentID]
	if !ok {
		return nil, ErrWaitingRoomNotFound
	}
	return &w, nil
}

func (r *MemoryRepository) NextWaiting(_ context.Context, doctorID string, date time.Time) (*WaitingRoomEntry, *Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		best     *Appointment
		bestWait *WaitingRoomEntry
	)
	for id, w := range r.waiting {
		if w.CalledAt != nil {
			continue
		}
		a, ok := r.appointments[id]
		if !ok || a.DoctorID != doctorID || !SameDate(a.Date, date) || a.Status != StatusCheckedIn {
			continue
		}
		if best == nil || a.QueueNumber < best.QueueNumber {
			appt := a
			wait := w
			best = &appt
			bestWait = &wait
		}
	}
	if best == nil {
		return nil, nil, ErrWaitingRoomNotFound
	}
	return bestWait, best, nil
}

func (r *MemoryRepository) MarkConsultationStarted(_ context.Context, appointmentID uuid.UUID, at time.Time) (*WaitingRoomEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.waiting[appointmentID]
	if !ok {
		return nil, ErrWaitingRoomNotFound
	}
	if w.CalledAt == nil {
		return nil, ErrNotYetCalled
	}

	w.ConsultationStartedAt = &at
	w.UpdatedAt = at
	r.waiting[appointmentID] = w

	a := r.appointments[appointmentID]
	a.ActualStart = &at
	a.UpdatedAt = at
	r.appointments[appointmentID] = a

	return &w, nil
}

func (r *MemoryRepository) CurrentInProgressQueueNumber(_ context.Context, doctorID string, date time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current := 0
	for _, a := range r.appointments {
		if a.DoctorID == doctorID && SameDate(a.Date, date) && a.Status == StatusInProgress && a.QueueNumber > current {
			current = a.QueueNumber
		}
	}
	return current, nil
}

func (r *MemoryRepository) CountPatientsAhead(_ context.Context, doctorID string, date time.Time, queueNumber int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, a := range r.appointments {
		if a.DoctorID == doctorID && SameDate(a.Date, date) && a.QueueNumber < queueNumber &&
			(a.Status == StatusCheckedIn || a.Status == StatusInProgress) {
			count++
		}
	}
	return count, nil
}

// LocalLocker is an in-process Locker for tests and the simulator. Unlike the
// Redis lease it blocks until the key is free, so concurrent callers
// serialize instead of failing.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *LocalLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	defer m.Unlock()

	return fn(ctx)
}
