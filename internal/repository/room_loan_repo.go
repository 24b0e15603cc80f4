package repository

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"roombooking/internal/domain"
)

type RoomLoanRepository struct {
	db *gorm.DB
}

func NewRoomLoanRepository(db *gorm.DB) *RoomLoanRepository {
	return &RoomLoanRepository{db: db}
}

type roomLoanModel struct {
	ID           int64      `gorm:"column:id;primaryKey;autoIncrement"`
	BorrowerName string     `gorm:"column:borrower_name;size:100;not null;index"`
	BorrowerKey  string     `gorm:"column:borrower_key;size:100;not null;default:''"`
	RoomName     string     `gorm:"column:room_name;size:100;not null"`
	RoomKey      string     `gorm:"column:room_key;size:100;not null;default:'';index:idx_room_loans_room_key_status"`
	Purpose      string     `gorm:"column:purpose;size:500;not null"`
	Status       string     `gorm:"column:status;size:16;not null;default:Pending;index:idx_room_loans_room_key_status;check:chk_room_loans_status,status IN ('Pending','Approved','Rejected','Cancelled')"`
	Date         time.Time  `gorm:"column:date;not null"`
	StartTime    *time.Time `gorm:"column:start_time"`
	EndTime      *time.Time `gorm:"column:end_time"`
	ApprovedBy   *string    `gorm:"column:approved_by;size:100"`
	ApprovedAt   *time.Time `gorm:"column:approved_at"`
	RejectedBy   *string    `gorm:"column:rejected_by;size:100"`
	RejectedAt   *time.Time `gorm:"column:rejected_at"`
	Notes        *string    `gorm:"column:notes;size:1000"`
	CreatedAt    time.Time  `gorm:"column:created_at;not null;index"`
	UpdatedAt    *time.Time `gorm:"column:updated_at;autoUpdateTime:false"`
}

func (roomLoanModel) TableName() string { return "room_loans" }

// Room and borrower keys are folded in Go. SQLite's LOWER() only folds ASCII,
// so comparing against LOWER(column) would miss names like "Ruang É".
func foldName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func toDomainRoomLoan(m roomLoanModel) *domain.RoomLoan {
	return &domain.RoomLoan{
		ID:           m.ID,
		BorrowerName: m.BorrowerName,
		RoomName:     m.RoomName,
		Purpose:      m.Purpose,
		Status:       domain.LoanStatus(m.Status),
		Date:         m.Date.UTC(),
		StartTime:    utcPtr(m.StartTime),
		EndTime:      utcPtr(m.EndTime),
		ApprovedBy:   m.ApprovedBy,
		ApprovedAt:   utcPtr(m.ApprovedAt),
		RejectedBy:   m.RejectedBy,
		RejectedAt:   utcPtr(m.RejectedAt),
		Notes:        m.Notes,
		CreatedAt:    m.CreatedAt.UTC(),
		UpdatedAt:    utcPtr(m.UpdatedAt),
	}
}

func toRoomLoanModel(l *domain.RoomLoan) roomLoanModel {
	return roomLoanModel{
		ID:           l.ID,
		BorrowerName: l.BorrowerName,
		BorrowerKey:  foldName(l.BorrowerName),
		RoomName:     l.RoomName,
		RoomKey:      domain.RoomKey(l.RoomName),
		Purpose:      l.Purpose,
		Status:       string(l.Status),
		Date:         l.Date,
		StartTime:    l.StartTime,
		EndTime:      l.EndTime,
		ApprovedBy:   l.ApprovedBy,
		ApprovedAt:   l.ApprovedAt,
		RejectedBy:   l.RejectedBy,
		RejectedAt:   l.RejectedAt,
		Notes:        l.Notes,
		CreatedAt:    l.CreatedAt,
		UpdatedAt:    l.UpdatedAt,
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

// Transaction runs fn in a database transaction. Repository calls made with
// the context passed to fn join that transaction.
func (r *RoomLoanRepository) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return runInTx(ctx, r.db, fn)
}

func (r *RoomLoanRepository) Create(ctx context.Context, l *domain.RoomLoan) error {
	db, _ := conn(ctx, r.db)
	m := toRoomLoanModel(l)
	if err := db.Create(&m).Error; err != nil {
		return translateError(err)
	}
	*l = *toDomainRoomLoan(m)
	return nil
}

// GetByID loads one loan. Inside a transaction the row is locked for update
// on dialects that support it.
func (r *RoomLoanRepository) GetByID(ctx context.Context, id int64) (*domain.RoomLoan, error) {
	db, inTx := conn(ctx, r.db)
	if inTx && db.Dialector.Name() == "postgres" {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var m roomLoanModel
	if err := db.First(&m, id).Error; err != nil {
		return nil, err
	}
	return toDomainRoomLoan(m), nil
}

// Update writes every mutable column of l.
func (r *RoomLoanRepository) Update(ctx context.Context, l *domain.RoomLoan) error {
	db, _ := conn(ctx, r.db)
	m := toRoomLoanModel(l)
	tx := db.Model(&roomLoanModel{ID: l.ID}).
		Select("*").
		Omit("id", "created_at").
		Updates(&m)
	if tx.Error != nil {
		return translateError(tx.Error)
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *RoomLoanRepository) Delete(ctx context.Context, id int64) error {
	db, _ := conn(ctx, r.db)
	tx := db.Delete(&roomLoanModel{}, id)
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// List returns loans matching q, newest first.
func (r *RoomLoanRepository) List(ctx context.Context, q domain.LoanQuery) ([]domain.RoomLoan, error) {
	db, _ := conn(ctx, r.db)

	var rows []roomLoanModel
	err := applyLoanQuery(db.Model(&roomLoanModel{}), q).
		Order("created_at DESC").
		Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]domain.RoomLoan, 0, len(rows))
	for _, m := range rows {
		out = append(out, *toDomainRoomLoan(m))
	}
	return out, nil
}

// Statistics counts loans per status among those matching q.
func (r *RoomLoanRepository) Statistics(ctx context.Context, q domain.LoanQuery) (domain.LoanStatistics, error) {
	db, _ := conn(ctx, r.db)

	var rows []struct {
		Status string
		Count  int64
	}
	err := applyLoanQuery(db.Model(&roomLoanModel{}), q).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return domain.LoanStatistics{}, err
	}

	var st domain.LoanStatistics
	for _, row := range rows {
		st.Total += row.Count
		switch domain.LoanStatus(row.Status) {
		case domain.LoanPending:
			st.Pending = row.Count
		case domain.LoanApproved:
			st.Approved = row.Count
		case domain.LoanRejected:
			st.Rejected = row.Count
		case domain.LoanCancelled:
			st.Cancelled = row.Count
		}
	}
	return st, nil
}

// ApprovedInRoom returns approved loans with a full interval whose room name
// equals room ignoring case. excludeID of 0 excludes nothing.
func (r *RoomLoanRepository) ApprovedInRoom(ctx context.Context, room string, excludeID int64) ([]domain.RoomLoan, error) {
	db, _ := conn(ctx, r.db)

	q := db.Model(&roomLoanModel{}).
		Where("room_key = ?", domain.RoomKey(room)).
		Where("status = ?", string(domain.LoanApproved)).
		Where("start_time IS NOT NULL AND end_time IS NOT NULL")
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}

	var rows []roomLoanModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]domain.RoomLoan, 0, len(rows))
	for _, m := range rows {
		out = append(out, *toDomainRoomLoan(m))
	}
	return out, nil
}

func applyLoanQuery(db *gorm.DB, q domain.LoanQuery) *gorm.DB {
	if q.BorrowerExact != nil {
		db = db.Where("borrower_name = ?", *q.BorrowerExact)
	}
	if q.Status != nil {
		db = db.Where("status = ?", string(*q.Status))
	}
	if s := strings.TrimSpace(q.RoomContains); s != "" {
		db = db.Where(`room_key LIKE ? ESCAPE '\'`, containsPattern(s))
	}
	if s := strings.TrimSpace(q.BorrowerContains); s != "" {
		db = db.Where(`borrower_key LIKE ? ESCAPE '\'`, containsPattern(s))
	}
	if q.StartFrom != nil {
		db = db.Where("start_time >= ?", q.StartFrom.UTC())
	}
	if q.EndUntil != nil {
		db = db.Where("end_time <= ?", q.EndUntil.UTC())
	}
	return db
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(foldName(s)) + "%"
}

// BackfillLoanKeys fills room_key and borrower_key on rows written before the
// columns existed.
func BackfillLoanKeys(ctx context.Context, db *gorm.DB) (int, error) {
	var rows []roomLoanModel
	err := db.WithContext(ctx).
		Select("id", "room_name", "borrower_name").
		Where("room_key = '' OR borrower_key = ''").
		Find(&rows).Error
	if err != nil {
		return 0, err
	}

	for _, m := range rows {
		err := db.WithContext(ctx).Model(&roomLoanModel{ID: m.ID}).Updates(map[string]any{
			"room_key":     domain.RoomKey(m.RoomName),
			"borrower_key": foldName(m.BorrowerName),
		}).Error
		if err != nil {
			return 0, err
		}
	}
	return len(rows), nil
}
