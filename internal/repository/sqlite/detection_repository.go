package sqlite

import (
	"github.com/pkg/errors"

	"github.com/ranitraj/instaLens/internal/model"
)

// DetectionRepository implements repository.DetectionRepository for SQLite.
type DetectionRepository struct {
	db *DB
}

// NewDetectionRepository creates a new SQLite detection repository.
func NewDetectionRepository(db *DB) *DetectionRepository {
	return &DetectionRepository{db: db}
}

const insertDetectionSQL = `
	INSERT INTO detections (image_id, label, box_left, box_top, box_right, box_bottom, confidence)
	VALUES (?, ?, ?, ?, ?, ?, ?)
`

// InsertBatch adds multiple detections in a single transaction.
func (r *DetectionRepository) InsertBatch(detections []model.DetectionRecord) error {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(insertDetectionSQL)
	if err != nil {
		return errors.Wrap(err, "failed to prepare statement")
	}
	defer stmt.Close()

	for _, det := range detections {
		if _, err := stmt.Exec(det.ImageID, det.Label, det.Left, det.Top, det.Right, det.Bottom, det.Confidence); err != nil {
			return errors.Wrap(err, "failed to insert detection")
		}
	}

	return tx.Commit()
}

// GetByImageID retrieves all detections for an image in insertion order.
func (r *DetectionRepository) GetByImageID(imageID int64) ([]model.DetectionRecord, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	rows, err := r.db.Conn().Query(`
		SELECT id, image_id, label, box_left, box_top, box_right, box_bottom, confidence
		FROM detections WHERE image_id = ? ORDER BY id
	`, imageID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query detections")
	}
	defer rows.Close()

	var detections []model.DetectionRecord
	for rows.Next() {
		var det model.DetectionRecord
		if err := rows.Scan(&det.ID, &det.ImageID, &det.Label, &det.Left, &det.Top, &det.Right, &det.Bottom, &det.Confidence); err != nil {
			return nil, errors.Wrap(err, "failed to scan detection")
		}
		detections = append(detections, det)
	}

	return detections, rows.Err()
}

// GetLabelsByImageID returns the distinct labels of an image.
func (r *DetectionRepository) GetLabelsByImageID(imageID int64) ([]string, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	return r.queryStrings(`SELECT DISTINCT label FROM detections WHERE image_id = ? ORDER BY label`, imageID)
}

// GetAllLabels returns a list of all distinct detected labels.
func (r *DetectionRepository) GetAllLabels() ([]string, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	return r.queryStrings(`SELECT DISTINCT label FROM detections ORDER BY label`)
}

func (r *DetectionRepository) queryStrings(query string, args ...interface{}) ([]string, error) {
	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query labels")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, errors.Wrap(err, "failed to scan label")
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteByImageID removes all detections for a specific image.
func (r *DetectionRepository) DeleteByImageID(imageID int64) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM detections WHERE image_id = ?`, imageID); err != nil {
		return errors.Wrap(err, "failed to delete detections")
	}
	return nil
}
