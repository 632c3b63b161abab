// Package inmemdb keeps every table in process memory. It enforces the same unique constraints as the SQL schema.
package inmemdb

import (
	"sync"
	"time"

	"github.com/mmust/marktrack/core/complaint"
	"github.com/mmust/marktrack/core/marks"
	"github.com/mmust/marktrack/core/school"
)

type archivedResponse struct {
	complaint.Response
	ArchivedAt time.Time
}

type state struct {
	schools      map[string]school.School
	departments  map[string]school.Department
	courses      map[string]school.Course
	students     map[string]school.Student
	lecturers    map[string]school.Lecturer
	units        map[string]school.Unit
	years        map[int]school.AcademicYear
	assignments  map[int]school.Assignment
	nominalRolls map[int]marks.NominalRoll
	results      map[int]marks.Result
	complaints   map[string]complaint.Complaint
	responses    map[int]complaint.Response
	history      []archivedResponse
	seq          map[string]int
}

func newState() *state {
	return &state{
		schools:      make(map[string]school.School),
		departments:  make(map[string]school.Department),
		courses:      make(map[string]school.Course),
		students:     make(map[string]school.Student),
		lecturers:    make(map[string]school.Lecturer),
		units:        make(map[string]school.Unit),
		years:        make(map[int]school.AcademicYear),
		assignments:  make(map[int]school.Assignment),
		nominalRolls: make(map[int]marks.NominalRoll),
		results:      make(map[int]marks.Result),
		complaints:   make(map[string]complaint.Complaint),
		responses:    make(map[int]complaint.Response),
		seq:          make(map[string]int),
	}
}

func (s *state) nextID(table string) int {
	s.seq[table]++
	return s.seq[table]
}

// clone copies the state so that a transaction can be discarded.
func (s *state) clone() *state {
	c := newState()
	for k, v := range s.schools {
		c.schools[k] = v
	}
	for k, v := range s.departments {
		c.departments[k] = v
	}
	for k, v := range s.courses {
		c.courses[k] = v
	}
	for k, v := range s.students {
		c.students[k] = v
	}
	for k, v := range s.lecturers {
		c.lecturers[k] = v
	}
	for k, v := range s.units {
		c.units[k] = v
	}
	for k, v := range s.years {
		c.years[k] = v
	}
	for k, v := range s.assignments {
		c.assignments[k] = v
	}
	for k, v := range s.nominalRolls {
		c.nominalRolls[k] = v
	}
	for k, v := range s.results {
		c.results[k] = v
	}
	for k, v := range s.complaints {
		c.complaints[k] = v
	}
	for k, v := range s.responses {
		c.responses[k] = v
	}
	c.history = append(c.history, s.history...)
	for k, v := range s.seq {
		c.seq[k] = v
	}
	return c
}

// DB is an in-memory database shared by the repositories built on it.
type DB struct {
	mu    sync.RWMutex
	state *state
}

func NewDB() *DB {
	return &DB{state: newState()}
}

// Close is a no-op; it mirrors *sql.DB.
func (db *DB) Close() error {
	return nil
}

// session runs operations either directly on the DB (taking its lock) or
// on the state of an ongoing transaction (whose lock is already held).
type session struct {
	db *DB
	tx *state
}

func (s session) read(fn func(st *state) error) error {
	if s.tx != nil {
		return fn(s.tx)
	}
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()
	return fn(s.db.state)
}

func (s session) write(fn func(st *state) error) error {
	if s.tx != nil {
		return fn(s.tx)
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return fn(s.db.state)
}

// withTx runs fn on a copy of the state which replaces the DB's state when fn succeeds.
// Nested calls reuse the ongoing transaction.
func (s session) withTx(fn func(tx session) error) error {
	if s.tx != nil {
		return fn(s)
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	txState := s.db.state.clone()
	if err := fn(session{db: s.db, tx: txState}); err != nil {
		return err
	}
	s.db.state = txState
	return nil
}

func containsStr(items []string, item string) bool {
	if items == nil {
		return true
	}
	for _, it := range items {
		if it == item {
			return true
		}
	}
	return false
}

func containsInt(items []int, item int) bool {
	if items == nil {
		return true
	}
	for _, it := range items {
		if it == item {
			return true
		}
	}
	return false
}
