package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/port"
)

const (
	useCaseHire          = "employee.hire"
	useCaseFire          = "employee.fire"
	useCaseListEmployees = "employee.list"

	HireDateLayout = "2006-01-02"
)

type HireInput struct {
	EmpNo    int64
	Name     string
	Job      string
	HireDate string
	DeptNo   int
}

type EmployeeService struct {
	repo port.EmployeeRepository
	opts options
}

func NewEmployeeService(repo port.EmployeeRepository, opts ...Option) *EmployeeService {
	return &EmployeeService{repo: repo, opts: newOptions(opts)}
}

func (s *EmployeeService) Hire(ctx context.Context, in HireInput) (err error) {
	ctx, run := s.opts.begin(ctx, useCaseHire, attribute.Int64("employee.no", in.EmpNo))
	defer func() { run.end(err, zap.Int64("empno", in.EmpNo)) }()

	in.Name = strings.TrimSpace(in.Name)
	in.Job = strings.TrimSpace(in.Job)
	if in.EmpNo <= 0 || in.Name == "" {
		return fmt.Errorf("empno and ename are required: %w", domain.ErrInvalidInput)
	}

	e := domain.Employee{EmpNo: in.EmpNo, Name: in.Name, Job: in.Job, DeptNo: in.DeptNo}
	if hd := strings.TrimSpace(in.HireDate); hd != "" {
		t, perr := time.Parse(HireDateLayout, hd)
		if perr != nil {
			return fmt.Errorf("hiredate %q: %w", hd, domain.ErrInvalidInput)
		}
		e.HireDate = t
	} else {
		e.HireDate = time.Now().UTC().Truncate(24 * time.Hour)
	}
	return s.repo.CreateEmployee(ctx, e)
}

func (s *EmployeeService) Fire(ctx context.Context, empNo int64) (err error) {
	ctx, run := s.opts.begin(ctx, useCaseFire, attribute.Int64("employee.no", empNo))
	defer func() { run.end(err, zap.Int64("empno", empNo)) }()

	if empNo <= 0 {
		return fmt.Errorf("empno: %w", domain.ErrInvalidInput)
	}
	return s.repo.DeleteEmployee(ctx, empNo)
}

// List returns employees matching the filter. Name and job accept ALL and dept
// accepts -1 as wildcards.
func (s *EmployeeService) List(ctx context.Context, f domain.EmployeeFilter) (emps []domain.Employee, err error) {
	ctx, run := s.opts.begin(ctx, useCaseListEmployees)
	defer func() { run.end(err, zap.Int("employees", len(emps))) }()

	f.Name = strings.TrimSpace(f.Name)
	f.Job = strings.TrimSpace(f.Job)
	return s.repo.ListEmployees(ctx, f)
}
