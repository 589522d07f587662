// Package posestore records tracking results in a SQLite database for offline analysis.
package posestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/golang/geo/r3"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	_ "modernc.org/sqlite" // register the sqlite driver

	"github.com/fiducial-nav/markerpose/tracking"
)

// ErrUnknownSession is returned when recording into a session that was never created.
var ErrUnknownSession = errors.New("unknown session")

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id TEXT PRIMARY KEY,
	label TEXT NOT NULL,
	created_ns INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS frames (
	frame_id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	source TEXT,
	timestamp_ns INTEGER NOT NULL,
	success INTEGER NOT NULL,
	error TEXT,
	method TEXT,
	rvec_x DOUBLE, rvec_y DOUBLE, rvec_z DOUBLE,
	tvec_x DOUBLE, tvec_y DOUBLE, tvec_z DOUBLE,
	roll DOUBLE, pitch DOUBLE, yaw DOUBLE,
	camera_x DOUBLE, camera_y DOUBLE, camera_z DOUBLE,
	reprojection_error DOUBLE,
	matched_ids TEXT,
	FOREIGN KEY(session_id) REFERENCES sessions(session_id)
);
CREATE INDEX IF NOT EXISTS frames_session ON frames(session_id);
`

// Store is a pose result database.
type Store struct {
	db *sql.DB
}

// Session is one recorded tracking run.
type Session struct {
	ID      uuid.UUID
	Label   string
	Created time.Time
	Frames  int
}

// Open opens or creates the database at path. Use ":memory:" for a private in-memory store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// sqlite allows a single writer.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		return nil, multierr.Combine(errors.Wrap(err, "cannot create pose store schema"), db.Close())
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateSession starts a new session.
func (s *Store) CreateSession(ctx context.Context, label string, created time.Time) (Session, error) {
	sess := Session{ID: uuid.New(), Label: label, Created: created}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO sessions (session_id, label, created_ns) VALUES (?, ?, ?)",
		sess.ID.String(), label, created.UnixNano())
	if err != nil {
		return Session{}, errors.Wrap(err, "cannot create session")
	}
	return sess, nil
}

func (s *Store) hasSession(ctx context.Context, id uuid.UUID) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions WHERE session_id = ?", id.String()).Scan(&n)
	return n > 0, err
}

// RecordFrame stores one frame result. Pose columns stay NULL for failed frames.
func (s *Store) RecordFrame(ctx context.Context, sessionID uuid.UUID, res *tracking.FrameResult) error {
	ok, err := s.hasSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if !ok {
		return errors.Wrapf(ErrUnknownSession, "%s", sessionID)
	}

	var errText sql.NullString
	if res.Err != nil {
		errText = sql.NullString{String: res.Err.Error(), Valid: true}
	}
	ids, err := json.Marshal(res.MatchedIDs)
	if err != nil {
		return err
	}
	success := 0
	if res.Success {
		success = 1
	}
	args := []interface{}{sessionID.String(), res.Source, res.Timestamp.UnixNano(), success, errText}
	if res.Success {
		pose := res.Estimate.Pose
		args = append(args,
			res.Estimate.Method.String(),
			pose.RVec.X, pose.RVec.Y, pose.RVec.Z,
			pose.TVec.X, pose.TVec.Y, pose.TVec.Z,
			res.Euler.Roll, res.Euler.Pitch, res.Euler.Yaw,
			res.CameraPosition.X, res.CameraPosition.Y, res.CameraPosition.Z,
			res.Estimate.ReprojectionError,
		)
	} else {
		for i := 0; i < 14; i++ {
			args = append(args, nil)
		}
	}
	args = append(args, string(ids))

	_, err = s.db.ExecContext(ctx, `INSERT INTO frames (
		session_id, source, timestamp_ns, success, error, method,
		rvec_x, rvec_y, rvec_z, tvec_x, tvec_y, tvec_z,
		roll, pitch, yaw, camera_x, camera_y, camera_z,
		reprojection_error, matched_ids
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	return errors.Wrap(err, "cannot record frame")
}

// Sessions lists all sessions, oldest first, with their frame counts.
func (s *Store) Sessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.session_id, s.label, s.created_ns, COUNT(f.frame_id)
		FROM sessions s LEFT JOIN frames f ON f.session_id = s.session_id
		GROUP BY s.session_id
		ORDER BY s.created_ns, s.label`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var id, label string
		var created int64
		var frames int
		if err := rows.Scan(&id, &label, &created, &frames); err != nil {
			return nil, err
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, errors.Wrapf(err, "corrupt session id %q", id)
		}
		sessions = append(sessions, Session{ID: parsed, Label: label, Created: time.Unix(0, created), Frames: frames})
	}
	return sessions, rows.Err()
}

// Translations returns the translation vectors of a session's successful frames in recording order.
func (s *Store) Translations(ctx context.Context, sessionID uuid.UUID) ([]r3.Vector, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT tvec_x, tvec_y, tvec_z FROM frames WHERE session_id = ? AND success = 1 ORDER BY frame_id",
		sessionID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []r3.Vector
	for rows.Next() {
		var v r3.Vector
		if err := rows.Scan(&v.X, &v.Y, &v.Z); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
