package sqlite

import (
	"database/sql"

	"github.com/pkg/errors"

	"github.com/ranitraj/instaLens/internal/dto"
	"github.com/ranitraj/instaLens/internal/model"
)

// ImageRepository implements repository.ImageRepository for SQLite.
type ImageRepository struct {
	db *DB
}

// NewImageRepository creates a new SQLite image repository.
func NewImageRepository(db *DB) *ImageRepository {
	return &ImageRepository{db: db}
}

const insertImageSQL = `
	INSERT INTO images (filename, lens, timestamp, filepath, filesize)
	VALUES (?, ?, ?, ?, ?)
`

// Insert adds a new image record to the database.
func (r *ImageRepository) Insert(img *model.Image) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	result, err := r.db.Conn().Exec(insertImageSQL, img.Filename, string(img.Lens), img.Timestamp, img.FilePath, img.FileSize)
	if err != nil {
		return 0, errors.Wrap(err, "failed to insert image")
	}

	return result.LastInsertId()
}

// InsertWithDetections adds an image and its detections in one transaction.
func (r *ImageRepository) InsertWithDetections(img *model.Image, detections []model.DetectionRecord) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	tx, err := r.db.Conn().Begin()
	if err != nil {
		return 0, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	result, err := tx.Exec(insertImageSQL, img.Filename, string(img.Lens), img.Timestamp, img.FilePath, img.FileSize)
	if err != nil {
		return 0, errors.Wrap(err, "failed to insert image")
	}
	imageID, err := result.LastInsertId()
	if err != nil {
		return 0, errors.Wrap(err, "failed to read image id")
	}

	if len(detections) > 0 {
		stmt, err := tx.Prepare(insertDetectionSQL)
		if err != nil {
			return 0, errors.Wrap(err, "failed to prepare statement")
		}
		defer stmt.Close()

		for _, det := range detections {
			if _, err := stmt.Exec(imageID, det.Label, det.Left, det.Top, det.Right, det.Bottom, det.Confidence); err != nil {
				return 0, errors.Wrap(err, "failed to insert detection")
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "failed to commit image")
	}
	img.ID = imageID
	return imageID, nil
}

const selectImageSQL = `SELECT id, filename, lens, timestamp, filepath, filesize FROM images`

func scanImage(row interface{ Scan(...interface{}) error }) (*model.Image, error) {
	var img model.Image
	var lens string
	if err := row.Scan(&img.ID, &img.Filename, &lens, &img.Timestamp, &img.FilePath, &img.FileSize); err != nil {
		return nil, err
	}
	img.Lens = model.Lens(lens)
	return &img, nil
}

// GetByID retrieves an image by its ID.
func (r *ImageRepository) GetByID(id int64) (*model.Image, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	img, err := scanImage(r.db.Conn().QueryRow(selectImageSQL+` WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get image")
	}
	return img, nil
}

// GetByFilename retrieves an image by its filename.
func (r *ImageRepository) GetByFilename(filename string) (*model.Image, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	img, err := scanImage(r.db.Conn().QueryRow(selectImageSQL+` WHERE filename = ?`, filename))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get image")
	}
	return img, nil
}

// applyFilters appends the WHERE conditions for filter to query.
func applyFilters(query string, filter *dto.ImageFilters) (string, []interface{}) {
	args := []interface{}{}
	if filter == nil {
		return query, args
	}

	if filter.Lens != "" {
		query += " AND i.lens = ?"
		args = append(args, filter.Lens)
	}

	if filter.Label != "" {
		query += " AND d.label = ?"
		args = append(args, filter.Label)
	}

	if !filter.DateAfter.IsZero() {
		query += " AND DATE(i.timestamp) >= DATE(?)"
		args = append(args, filter.DateAfter.Format("2006-01-02"))
	}

	if !filter.DateBefore.IsZero() {
		query += " AND DATE(i.timestamp) <= DATE(?)"
		args = append(args, filter.DateBefore.Format("2006-01-02"))
	}

	if !filter.TimeAfter.IsZero() {
		query += " AND TIME(i.timestamp) >= TIME(?)"
		args = append(args, filter.TimeAfter.Format("15:04:05"))
	}

	if !filter.TimeBefore.IsZero() {
		query += " AND TIME(i.timestamp) <= TIME(?)"
		args = append(args, filter.TimeBefore.Format("15:04:05"))
	}

	return query, args
}

// GetAll retrieves images based on filter criteria, newest first.
func (r *ImageRepository) GetAll(filter *dto.ImageFilters) ([]model.Image, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query, args := applyFilters(`
		SELECT DISTINCT i.id, i.filename, i.lens, i.timestamp, i.filepath, i.filesize
		FROM images i
		LEFT JOIN detections d ON i.id = d.image_id
		WHERE 1=1
	`, filter)

	query += " ORDER BY i.timestamp DESC, i.id DESC"

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)

		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query images")
	}
	defer rows.Close()

	var images []model.Image
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan image")
		}
		images = append(images, *img)
	}

	return images, rows.Err()
}

// GetTotalCount returns the total count of images matching the filter.
func (r *ImageRepository) GetTotalCount(filter *dto.ImageFilters) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query, args := applyFilters(`
		SELECT COUNT(DISTINCT i.id)
		FROM images i
		LEFT JOIN detections d ON i.id = d.image_id
		WHERE 1=1
	`, filter)

	var count int
	if err := r.db.Conn().QueryRow(query, args...).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "failed to count images")
	}

	return count, nil
}

// Exists checks if an image with the given filename exists.
func (r *ImageRepository) Exists(filename string) (bool, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var count int
	err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM images WHERE filename = ?`, filename).Scan(&count)
	if err != nil {
		return false, errors.Wrap(err, "failed to check image existence")
	}
	return count > 0, nil
}

// GetStats returns statistics about stored images.
func (r *ImageRepository) GetStats() (*model.ImageStats, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	stats := &model.ImageStats{
		PerLens:     make(map[string]int),
		LabelCounts: make(map[string]int),
	}

	if err := r.db.Conn().QueryRow(`SELECT COUNT(*) FROM images`).Scan(&stats.TotalImages); err != nil {
		return nil, errors.Wrap(err, "failed to count images")
	}

	if err := r.db.Conn().QueryRow(`SELECT COALESCE(SUM(filesize), 0) FROM images`).Scan(&stats.TotalSizeBytes); err != nil {
		return nil, errors.Wrap(err, "failed to sum image sizes")
	}

	rows, err := r.db.Conn().Query(`SELECT lens, COUNT(*) FROM images GROUP BY lens`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count per lens")
	}
	defer rows.Close()

	for rows.Next() {
		var lens string
		var count int
		if err := rows.Scan(&lens, &count); err != nil {
			return nil, err
		}
		stats.PerLens[lens] = count
	}

	// Most detected labels
	labelRows, err := r.db.Conn().Query(`
		SELECT label, COUNT(*) as cnt
		FROM detections
		GROUP BY label
		ORDER BY cnt DESC
		LIMIT 10
	`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count labels")
	}
	defer labelRows.Close()

	for labelRows.Next() {
		var label string
		var count int
		if err := labelRows.Scan(&label, &count); err != nil {
			return nil, err
		}
		stats.LabelCounts[label] = count
	}

	return stats, nil
}

// Delete removes an image by its ID.
func (r *ImageRepository) Delete(id int64) error {
	r.db.Lock()
	defer r.db.Unlock()

	// First delete related detections
	if _, err := r.db.Conn().Exec(`DELETE FROM detections WHERE image_id = ?`, id); err != nil {
		return errors.Wrap(err, "failed to delete detections")
	}

	if _, err := r.db.Conn().Exec(`DELETE FROM images WHERE id = ?`, id); err != nil {
		return errors.Wrap(err, "failed to delete image")
	}
	return nil
}

// DeleteByFilename removes an image by its filename.
func (r *ImageRepository) DeleteByFilename(filename string) error {
	r.db.Lock()
	defer r.db.Unlock()

	var imageID int64
	err := r.db.Conn().QueryRow(`SELECT id FROM images WHERE filename = ?`, filename).Scan(&imageID)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "failed to get image id")
	}

	if _, err := r.db.Conn().Exec(`DELETE FROM detections WHERE image_id = ?`, imageID); err != nil {
		return errors.Wrap(err, "failed to delete detections")
	}

	if _, err := r.db.Conn().Exec(`DELETE FROM images WHERE id = ?`, imageID); err != nil {
		return errors.Wrap(err, "failed to delete image")
	}
	return nil
}

// DeleteAll removes all images and their detections.
func (r *ImageRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM detections`); err != nil {
		return errors.Wrap(err, "failed to delete detections")
	}

	if _, err := r.db.Conn().Exec(`DELETE FROM images`); err != nil {
		return errors.Wrap(err, "failed to delete images")
	}

	return nil
}
