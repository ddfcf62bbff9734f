package domain

import "time"

// Wildcards accepted by employee listing filters.
const (
	MatchAll     = "ALL"
	MatchAllDept = -1
)

type Employee struct {
	EmpNo    int64     `json:"empno"`
	Name     string    `json:"ename"`
	Job      string    `json:"job"`
	HireDate time.Time `json:"hiredate"`
	DeptNo   int       `json:"deptno"`
}

type EmployeeFilter struct {
	Name   string
	Job    string
	DeptNo int
}
