package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	gormmysql "gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/rl1809/storefront/internal/core/domain"
)

// userRecord maps user_table.
type userRecord struct {
	UserID       string `gorm:"column:user_id;primaryKey;size:64"`
	PasswordHash string `gorm:"column:user_pw;not null"`
	Name         string `gorm:"column:user_name;not null;size:64"`
	Tel          string `gorm:"column:user_tel;index;size:20"`
	Address      string `gorm:"column:user_address"`
	CreatedAt    time.Time
}

func (userRecord) TableName() string { return "user_table" }

type questionRecord struct {
	QNo       int64  `gorm:"column:q_no;primaryKey;autoIncrement"`
	Title     string `gorm:"column:q_title;not null"`
	Content   string `gorm:"column:q_content;type:text"`
	Writer    string `gorm:"column:q_writer;size:64"`
	CreatedAt time.Time
}

func (questionRecord) TableName() string { return "question_table" }

type answerRecord struct {
	ANo       int64  `gorm:"column:a_no;primaryKey;autoIncrement"`
	QNo       int64  `gorm:"column:q_no;index;not null"`
	Content   string `gorm:"column:a_content;type:text"`
	Writer    string `gorm:"column:a_writer;size:64"`
	CreatedAt time.Time
}

func (answerRecord) TableName() string { return "answer_table" }

type employeeRecord struct {
	EmpNo    int64     `gorm:"column:empno;primaryKey;autoIncrement:false"`
	Name     string    `gorm:"column:ename;size:32"`
	Job      string    `gorm:"column:job;size:32"`
	HireDate time.Time `gorm:"column:hiredate"`
	DeptNo   int       `gorm:"column:deptno;index"`
}

func (employeeRecord) TableName() string { return "emp" }

// OpenDirectory opens the gorm handle for the account, board and employee tables.
// The mysql driver reuses the catalog pool so both share one set of connections.
func OpenDirectory(driver, dsn string, shared *sql.DB) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "", "mysql":
		if shared == nil {
			return nil, errors.New("directory: mysql driver needs the shared pool")
		}
		dialector = gormmysql.New(gormmysql.Config{Conn: shared})
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("directory: unknown driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: open directory: %w", domain.ErrStoreUnavailable, err)
	}

	if err := db.AutoMigrate(&userRecord{}, &questionRecord{}, &answerRecord{}, &employeeRecord{}); err != nil {
		return nil, fmt.Errorf("directory migrate: %w", err)
	}
	return db, nil
}

type GormDirectory struct {
	db *gorm.DB
}

func NewGormDirectory(db *gorm.DB) *GormDirectory {
	return &GormDirectory{db: db}
}

func gormErr(op string, err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%s: %w: %w", op, domain.ErrConflict, err)
	default:
		return fmt.Errorf("%s: %w", op, classify(err))
	}
}

// ---------- accounts ----------

func (g *GormDirectory) CreateUser(ctx context.Context, u domain.User) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cnt int64
		if err := tx.Model(&userRecord{}).Where("user_id = ?", u.UserID).Count(&cnt).Error; err != nil {
			return gormErr("count user", err)
		}
		if cnt > 0 {
			return fmt.Errorf("user %s: %w", u.UserID, domain.ErrConflict)
		}
		if u.Tel != "" {
			if err := tx.Model(&userRecord{}).Where("user_tel = ?", u.Tel).Count(&cnt).Error; err != nil {
				return gormErr("count tel", err)
			}
			if cnt > 0 {
				return fmt.Errorf("tel %s: %w", u.Tel, domain.ErrConflict)
			}
		}

		rec := userRecord{
			UserID:       u.UserID,
			PasswordHash: u.PasswordHash,
			Name:         u.Name,
			Tel:          u.Tel,
			Address:      u.Address,
		}
		if err := tx.Create(&rec).Error; err != nil {
			return gormErr("create user", err)
		}
		return nil
	})
}

func (g *GormDirectory) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	var rec userRecord
	if err := g.db.WithContext(ctx).Where("user_id = ?", userID).First(&rec).Error; err != nil {
		return nil, gormErr("get user", err)
	}
	return &domain.User{
		UserID:       rec.UserID,
		PasswordHash: rec.PasswordHash,
		Name:         rec.Name,
		Tel:          rec.Tel,
		Address:      rec.Address,
	}, nil
}

func (g *GormDirectory) FindUserID(ctx context.Context, name, tel string) (string, error) {
	var rec userRecord
	err := g.db.WithContext(ctx).
		Where("user_name = ? AND user_tel = ?", name, tel).
		First(&rec).Error
	if err != nil {
		return "", gormErr("find user id", err)
	}
	return rec.UserID, nil
}

func (g *GormDirectory) TelTaken(ctx context.Context, tel, exceptUserID string) (bool, error) {
	var cnt int64
	err := g.db.WithContext(ctx).Model(&userRecord{}).
		Where("user_tel = ? AND user_id <> ?", tel, exceptUserID).
		Count(&cnt).Error
	if err != nil {
		return false, gormErr("count tel", err)
	}
	return cnt > 0, nil
}

func (g *GormDirectory) UpdateUser(ctx context.Context, u domain.User) error {
	updates := map[string]any{
		"user_name":    u.Name,
		"user_tel":     u.Tel,
		"user_address": u.Address,
	}
	if u.PasswordHash != "" {
		updates["user_pw"] = u.PasswordHash
	}

	res := g.db.WithContext(ctx).Model(&userRecord{}).Where("user_id = ?", u.UserID).Updates(updates)
	if res.Error != nil {
		return gormErr("update user", res.Error)
	}
	if res.RowsAffected == 0 {
		// RowsAffected is 0 on mysql when nothing changed, so confirm the row is really gone
		var cnt int64
		if err := g.db.WithContext(ctx).Model(&userRecord{}).Where("user_id = ?", u.UserID).Count(&cnt).Error; err != nil {
			return gormErr("count user", err)
		}
		if cnt == 0 {
			return fmt.Errorf("user %s: %w", u.UserID, domain.ErrNotFound)
		}
	}
	return nil
}

// ---------- board ----------

func (g *GormDirectory) ListQuestions(ctx context.Context) ([]domain.Question, error) {
	var questions []questionRecord
	if err := g.db.WithContext(ctx).Order("q_no").Find(&questions).Error; err != nil {
		return nil, gormErr("list questions", err)
	}
	var answers []answerRecord
	if err := g.db.WithContext(ctx).Order("a_no").Find(&answers).Error; err != nil {
		return nil, gormErr("list answers", err)
	}

	byQuestion := make(map[int64][]domain.Answer, len(questions))
	for _, a := range answers {
		byQuestion[a.QNo] = append(byQuestion[a.QNo], domain.Answer{
			ANo: a.ANo, QNo: a.QNo, Content: a.Content, Writer: a.Writer,
		})
	}

	out := make([]domain.Question, 0, len(questions))
	for _, q := range questions {
		as := byQuestion[q.QNo]
		if as == nil {
			as = []domain.Answer{}
		}
		out = append(out, domain.Question{
			QNo: q.QNo, Title: q.Title, Content: q.Content, Writer: q.Writer, Answers: as,
		})
	}
	return out, nil
}

func (g *GormDirectory) CreateQuestion(ctx context.Context, q domain.Question) (int64, error) {
	rec := questionRecord{Title: q.Title, Content: q.Content, Writer: q.Writer}
	if err := g.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return 0, gormErr("create question", err)
	}
	return rec.QNo, nil
}

func (g *GormDirectory) CreateAnswer(ctx context.Context, a domain.Answer) (int64, error) {
	rec := answerRecord{QNo: a.QNo, Content: a.Content, Writer: a.Writer}
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cnt int64
		if err := tx.Model(&questionRecord{}).Where("q_no = ?", a.QNo).Count(&cnt).Error; err != nil {
			return gormErr("count question", err)
		}
		if cnt == 0 {
			return fmt.Errorf("question %d: %w", a.QNo, domain.ErrNotFound)
		}
		if err := tx.Create(&rec).Error; err != nil {
			return gormErr("create answer", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return rec.ANo, nil
}

// ---------- employees ----------

func (g *GormDirectory) CreateEmployee(ctx context.Context, e domain.Employee) error {
	rec := employeeRecord{EmpNo: e.EmpNo, Name: e.Name, Job: e.Job, HireDate: e.HireDate, DeptNo: e.DeptNo}
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cnt int64
		if err := tx.Model(&employeeRecord{}).Where("empno = ?", e.EmpNo).Count(&cnt).Error; err != nil {
			return gormErr("count employee", err)
		}
		if cnt > 0 {
			return fmt.Errorf("employee %d: %w", e.EmpNo, domain.ErrConflict)
		}
		if err := tx.Create(&rec).Error; err != nil {
			return gormErr("create employee", err)
		}
		return nil
	})
}

func (g *GormDirectory) DeleteEmployee(ctx context.Context, empNo int64) error {
	res := g.db.WithContext(ctx).Where("empno = ?", empNo).Delete(&employeeRecord{})
	if res.Error != nil {
		return gormErr("delete employee", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("employee %d: %w", empNo, domain.ErrNotFound)
	}
	return nil
}

func (g *GormDirectory) ListEmployees(ctx context.Context, f domain.EmployeeFilter) ([]domain.Employee, error) {
	q := g.db.WithContext(ctx).Model(&employeeRecord{})
	if f.Name != "" && f.Name != domain.MatchAll {
		q = q.Where("ename = ?", f.Name)
	}
	if f.Job != "" && f.Job != domain.MatchAll {
		q = q.Where("job = ?", f.Job)
	}
	if f.DeptNo != domain.MatchAllDept {
		q = q.Where("deptno = ?", f.DeptNo)
	}

	var recs []employeeRecord
	if err := q.Order("empno").Find(&recs).Error; err != nil {
		return nil, gormErr("list employees", err)
	}

	out := make([]domain.Employee, 0, len(recs))
	for _, r := range recs {
		out = append(out, domain.Employee{
			EmpNo: r.EmpNo, Name: r.Name, Job: r.Job, HireDate: r.HireDate, DeptNo: r.DeptNo,
		})
	}
	return out, nil
}
