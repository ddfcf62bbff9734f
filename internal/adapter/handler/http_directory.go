package handler

import (
	"strconv"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"github.com/rl1809/storefront/internal/core/domain"
	"github.com/rl1809/storefront/internal/core/service"
)

// ---------- accounts ----------

type registerRequest struct {
	UserID   string `json:"userId"`
	Password string `json:"userPw"`
	Name     string `json:"userName"`
	Tel      string `json:"userTel"`
	Address  string `json:"userAddress"`
}

func (h *HTTPHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, invalid("invalid request body"))
		return
	}
	err := h.accounts.Register(c.Request.Context(), service.RegisterInput{
		UserID:   req.UserID,
		Password: req.Password,
		Name:     req.Name,
		Tel:      req.Tel,
		Address:  req.Address,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, nil)
}

type loginRequest struct {
	UserID   string `json:"userId"`
	Password string `json:"userPw"`
}

func (h *HTTPHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, invalid("invalid request body"))
		return
	}
	u, err := h.accounts.Login(c.Request.Context(), req.UserID, req.Password)
	if err != nil {
		fail(c, err)
		return
	}

	sess := sessions.Default(c)
	sess.Set(sessionUserKey, u.UserID)
	if err := sess.Save(); err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"userId": u.UserID, "userName": u.Name})
}

func (h *HTTPHandler) Logout(c *gin.Context) {
	sess := sessions.Default(c)
	sess.Clear()
	sess.Options(sessions.Options{Path: "/", MaxAge: -1})
	if err := sess.Save(); err != nil {
		fail(c, err)
		return
	}
	ok(c, nil)
}

type findIDRequest struct {
	Name string `json:"userName"`
	Tel  string `json:"userTel"`
}

func (h *HTTPHandler) FindUserID(c *gin.Context) {
	var req findIDRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, invalid("invalid request body"))
		return
	}
	id, err := h.accounts.FindUserID(c.Request.Context(), req.Name, req.Tel)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"userId": id})
}

type resetPasswordRequest struct {
	UserID string `json:"userId"`
	Name   string `json:"userName"`
}

func (h *HTTPHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, invalid("invalid request body"))
		return
	}
	temp, err := h.accounts.ResetPassword(c.Request.Context(), req.UserID, req.Name)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"tempPassword": temp})
}

// profileUser picks the account a profile request acts on. A logged in user
// may only act on their own account.
func profileUser(c *gin.Context, requested string) (string, error) {
	requested = strings.TrimSpace(requested)
	current := sessionUser(c)
	switch {
	case current == "":
		return requested, nil
	case requested == "" || requested == current:
		return current, nil
	default:
		return "", domain.ErrForbidden
	}
}

func (h *HTTPHandler) Profile(c *gin.Context) {
	userID, err := profileUser(c, c.Query("userId"))
	if err != nil {
		fail(c, err)
		return
	}
	if userID == "" {
		fail(c, invalid("userId is required"))
		return
	}
	u, err := h.accounts.Profile(c.Request.Context(), userID)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, u)
}

type updateProfileRequest struct {
	UserID   string `json:"userId"`
	Password string `json:"userPw"`
	Name     string `json:"userName"`
	Tel      string `json:"userTel"`
	Address  string `json:"userAddress"`
}

func (h *HTTPHandler) UpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, invalid("invalid request body"))
		return
	}
	userID, err := profileUser(c, req.UserID)
	if err != nil {
		fail(c, err)
		return
	}
	if userID == "" {
		fail(c, invalid("userId is required"))
		return
	}
	err = h.accounts.UpdateProfile(c.Request.Context(), userID, service.ProfileUpdate{
		Password: req.Password,
		Name:     req.Name,
		Tel:      req.Tel,
		Address:  req.Address,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, nil)
}

// ---------- board ----------

func (h *HTTPHandler) ListQuestions(c *gin.Context) {
	qs, err := h.board.ListQuestions(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	if qs == nil {
		qs = []domain.Question{}
	}
	ok(c, qs)
}

func (h *HTTPHandler) PostQuestion(c *gin.Context) {
	var q domain.Question
	if err := c.ShouldBindJSON(&q); err != nil {
		fail(c, invalid("invalid request body"))
		return
	}
	if q.Writer == "" {
		q.Writer = sessionUser(c)
	}
	qNo, err := h.board.Ask(c.Request.Context(), q)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"qNo": qNo})
}

func (h *HTTPHandler) PostAnswer(c *gin.Context) {
	var a domain.Answer
	if err := c.ShouldBindJSON(&a); err != nil {
		fail(c, invalid("invalid request body"))
		return
	}
	if a.Writer == "" {
		a.Writer = sessionUser(c)
	}
	aNo, err := h.board.Answer(c.Request.Context(), a)
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, gin.H{"aNo": aNo})
}

// ---------- employees ----------

type hireRequest struct {
	EmpNo    int64  `json:"empno"`
	Name     string `json:"ename"`
	Job      string `json:"job"`
	HireDate string `json:"hiredate"`
	DeptNo   int    `json:"deptno"`
}

func (h *HTTPHandler) HireEmployee(c *gin.Context) {
	var req hireRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, invalid("invalid request body"))
		return
	}
	err := h.employees.Hire(c.Request.Context(), service.HireInput{
		EmpNo:    req.EmpNo,
		Name:     req.Name,
		Job:      req.Job,
		HireDate: req.HireDate,
		DeptNo:   req.DeptNo,
	})
	if err != nil {
		fail(c, err)
		return
	}
	ok(c, nil)
}

func (h *HTTPHandler) RemoveEmployee(c *gin.Context) {
	empNo, err := pathInt64(c, "eno")
	if err != nil {
		fail(c, err)
		return
	}
	if err := h.employees.Fire(c.Request.Context(), empNo); err != nil {
		fail(c, err)
		return
	}
	ok(c, nil)
}

func (h *HTTPHandler) ListEmployees(c *gin.Context) {
	dept, err := strconv.Atoi(c.Param("deptno"))
	if err != nil {
		fail(c, invalid("deptno must be a number"))
		return
	}
	emps, err := h.employees.List(c.Request.Context(), domain.EmployeeFilter{
		Name:   c.Param("ename"),
		Job:    c.Param("job"),
		DeptNo: dept,
	})
	if err != nil {
		fail(c, err)
		return
	}
	if emps == nil {
		emps = []domain.Employee{}
	}
	ok(c, emps)
}
